package timingattack

import (
	"math/big"
	"time"
)

// RoundEvent describes one finished round of a search.
type RoundEvent struct {
	Timestamp    time.Time
	RunID        string
	Round        int
	Decision     Decision
	Candidate    *big.Int // Candidate after the round; a private copy
	Backtracking bool
	Backtracks   int
	Status       Status
	MeanExtra    [2]float64
	MeanNoExtra  [2]float64
	Queries      int
}

// ProgressObserver receives round events, for display or recording only.
// OnRound is called synchronously and should return quickly; the search
// never reads anything back from the observer.
type ProgressObserver interface {
	OnRound(event RoundEvent)
}

// NoopObserver discards all events.
type NoopObserver struct{}

// OnRound discards the event.
func (NoopObserver) OnRound(RoundEvent) {}

// ObserverFunc adapts a function to ProgressObserver.
type ObserverFunc func(RoundEvent)

// OnRound calls f.
func (f ObserverFunc) OnRound(event RoundEvent) { f(event) }

// Compile-time interface satisfaction checks.
var (
	_ ProgressObserver = NoopObserver{}
	_ ProgressObserver = ObserverFunc(nil)
)
