package trace

import (
	"math/big"
	"path/filepath"
	"testing"
	"time"

	"github.com/mahdiidarabi/rsa-timing/pkg/timingattack"
)

// recorder keeps every logged event.
type recorder struct {
	events []Event
}

func (r *recorder) Log(e Event) { r.events = append(r.events, e) }

func roundEvent(runID string, round int, decision timingattack.Decision, candidate int64, status timingattack.Status) Event {
	return Event{
		Timestamp: time.Date(2026, 1, 2, 3, 4, 5, round, time.UTC),
		RunID:     runID,
		Category:  CategoryRound,
		Round: &RoundData{
			Round:        round,
			Decision:     decision,
			Candidate:    big.NewInt(candidate),
			Backtracking: decision == timingattack.Ambiguous,
			Status:       status,
			MeanExtra:    [2]float64{27.1, 26.4},
			MeanNoExtra:  [2]float64{26.1, 26.35},
			Queries:      round * 256,
		},
	}
}

func createTestTrace(t *testing.T, events []Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.tlog")

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("failed to create test trace: %v", err)
	}
	for _, e := range events {
		logger.Log(e)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("failed to close test trace: %v", err)
	}
	return path
}
