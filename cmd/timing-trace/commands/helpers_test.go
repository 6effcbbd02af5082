package commands

import (
	"math/big"
	"path/filepath"
	"testing"
	"time"

	"github.com/mahdiidarabi/rsa-timing/pkg/timingattack"
	"github.com/mahdiidarabi/rsa-timing/pkg/trace"
)

const testRunID = "abc12345-6789-0123-4567-890abcdef012"

var testTime = time.Date(2026, 1, 28, 10, 15, 32, 123456000, time.UTC)

func round(runID string, n int, decision timingattack.Decision, candidate int64, status timingattack.Status) trace.Event {
	return trace.Event{
		Timestamp: testTime.Add(time.Duration(n) * time.Millisecond),
		RunID:     runID,
		Category:  trace.CategoryRound,
		Round: &trace.RoundData{
			Round:        n,
			Decision:     decision,
			Candidate:    big.NewInt(candidate),
			Backtracking: decision == timingattack.Ambiguous,
			Backtracks:   0,
			Status:       status,
			MeanExtra:    [2]float64{11.0, 10.9},
			MeanNoExtra:  [2]float64{10.0, 10.85},
			Queries:      n * 128,
		},
	}
}

// testEvents is a short cracked run followed by a failed one.
func testEvents() []trace.Event {
	correct := true
	events := []trace.Event{
		round(testRunID, 1, timingattack.BitZero, 0b10, timingattack.Searching),
		round(testRunID, 2, timingattack.Ambiguous, 0b1, timingattack.Searching),
		round(testRunID, 3, timingattack.BitOne, 0b100111, timingattack.Cracked),
		{
			Timestamp: testTime.Add(time.Second),
			RunID:     testRunID,
			Category:  trace.CategoryResult,
			Result: &trace.ResultData{
				Status:      timingattack.Cracked,
				Exponent:    big.NewInt(0b100111),
				Candidate:   big.NewInt(0b100111),
				Rounds:      3,
				Backtracks:  1,
				Queries:     390,
				Elapsed:     time.Second,
				ModulusBits: 16,
				Correct:     &correct,
			},
		},
		round("other-run", 1, timingattack.Ambiguous, 0b1, timingattack.Failed),
	}
	events[1].Round.Backtracks = 1
	events[2].Round.Backtracks = 1
	events[4].Round.Backtracks = 1
	return events
}

func createTestTrace(t *testing.T, events []trace.Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.cbor")

	logger, err := trace.NewFileLogger(path)
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
