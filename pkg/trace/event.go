package trace

import (
	"math/big"
	"time"

	"github.com/mahdiidarabi/rsa-timing/pkg/timingattack"
)

// Event is one record of an attack trace.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// RunID groups the events of one search (UUID).
	RunID string `cbor:"2,keyasint"`

	// Category selects which payload is set.
	Category Category `cbor:"3,keyasint"`

	Round  *RoundData  `cbor:"4,keyasint,omitempty"`
	Result *ResultData `cbor:"5,keyasint,omitempty"`
}

// Category classifies trace events.
type Category uint8

const (
	// CategoryRound is a finished search round.
	CategoryRound Category = 0
	// CategoryResult is the summary written when a run ends.
	CategoryResult Category = 1
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryRound:
		return "ROUND"
	case CategoryResult:
		return "RESULT"
	default:
		return "UNKNOWN"
	}
}

// RoundData is the state of a search after one round.
type RoundData struct {
	Round        int                   `cbor:"1,keyasint"`
	Decision     timingattack.Decision `cbor:"2,keyasint"`
	Candidate    *big.Int              `cbor:"3,keyasint"`
	Backtracking bool                  `cbor:"4,keyasint,omitempty"`
	Backtracks   int                   `cbor:"5,keyasint"`
	Status       timingattack.Status   `cbor:"6,keyasint"`
	MeanExtra    [2]float64            `cbor:"7,keyasint"`
	MeanNoExtra  [2]float64            `cbor:"8,keyasint"`
	Queries      int                   `cbor:"9,keyasint"`
}

// Separation returns mean_extra - mean_noextra for the hypothesized bit.
func (r *RoundData) Separation(bit uint) float64 {
	return r.MeanExtra[bit&1] - r.MeanNoExtra[bit&1]
}

// ResultData summarizes a finished run.
type ResultData struct {
	Status      timingattack.Status `cbor:"1,keyasint"`
	Exponent    *big.Int            `cbor:"2,keyasint,omitempty"`
	Candidate   *big.Int            `cbor:"3,keyasint,omitempty"`
	Rounds      int                 `cbor:"4,keyasint"`
	Backtracks  int                 `cbor:"5,keyasint"`
	Queries     int                 `cbor:"6,keyasint"`
	Elapsed     time.Duration       `cbor:"7,keyasint"`
	ModulusBits int                 `cbor:"8,keyasint,omitempty"`
	Blinded     bool                `cbor:"9,keyasint,omitempty"`

	// Correct is set when the true exponent was known to the recorder.
	Correct *bool `cbor:"10,keyasint,omitempty"`
}

// FromRoundEvent converts a search round event into a trace event.
func FromRoundEvent(e timingattack.RoundEvent) Event {
	var candidate *big.Int
	if e.Candidate != nil {
		candidate = new(big.Int).Set(e.Candidate)
	}
	return Event{
		Timestamp: e.Timestamp,
		RunID:     e.RunID,
		Category:  CategoryRound,
		Round: &RoundData{
			Round:        e.Round,
			Decision:     e.Decision,
			Candidate:    candidate,
			Backtracking: e.Backtracking,
			Backtracks:   e.Backtracks,
			Status:       e.Status,
			MeanExtra:    e.MeanExtra,
			MeanNoExtra:  e.MeanNoExtra,
			Queries:      e.Queries,
		},
	}
}

// FromReport converts the outcome of a client attack into a result event.
func FromReport(report *timingattack.AttackReport, blinded bool) Event {
	r := report.Result
	correct := report.Correct
	data := &ResultData{
		Status:     r.Status,
		Rounds:     r.Rounds,
		Backtracks: r.Backtracks,
		Queries:    r.Queries,
		Elapsed:    r.Elapsed,
		Blinded:    blinded,
		Correct:    &correct,
	}
	if r.Exponent != nil {
		data.Exponent = new(big.Int).Set(r.Exponent)
	}
	if r.Candidate != nil {
		data.Candidate = new(big.Int).Set(r.Candidate)
	}
	if report.Key != nil && report.Key.Public.N != nil {
		data.ModulusBits = report.Key.Public.N.BitLen()
	}
	return Event{
		Timestamp: time.Now(),
		RunID:     r.RunID,
		Category:  CategoryResult,
		Result:    data,
	}
}
