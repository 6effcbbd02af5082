package trace

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"math/big"
	"testing"

	"github.com/mahdiidarabi/rsa-timing/pkg/timingattack"
)

func TestSlogAdapterLogsRound(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	adapter := NewSlogAdapter(slog.New(handler))

	adapter.Log(roundEvent("run-1", 4, timingattack.BitOne, 0b1011, timingattack.Searching))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log output: %v", err)
	}

	if entry["msg"] != "round" {
		t.Errorf("msg: got %v, want %q", entry["msg"], "round")
	}
	if entry["level"] != "DEBUG" {
		t.Errorf("level: got %v, want DEBUG", entry["level"])
	}
	if entry["decision"] != "bit1" {
		t.Errorf("decision: got %v, want %q", entry["decision"], "bit1")
	}
	if entry["candidate"] != "1011" {
		t.Errorf("candidate: got %v, want %q", entry["candidate"], "1011")
	}
	if entry["run_id"] != "run-1" {
		t.Errorf("run_id: got %v, want %q", entry["run_id"], "run-1")
	}
}

func TestSlogAdapterLogsResult(t *testing.T) {
	var buf bytes.Buffer
	adapter := NewSlogAdapter(slog.New(slog.NewJSONHandler(&buf, nil)))

	correct := false
	adapter.Log(Event{
		RunID:    "run-2",
		Category: CategoryResult,
		Result:   &ResultData{Status: timingattack.Cracked, Exponent: big.NewInt(77), Rounds: 6, Correct: &correct},
	})

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log output: %v", err)
	}
	if entry["level"] != "INFO" || entry["status"] != "cracked" || entry["exponent"] != "77" {
		t.Errorf("unexpected entry: %v", entry)
	}
	if entry["correct"] != false {
		t.Errorf("correct: got %v, want false", entry["correct"])
	}
}

func TestSlogAdapterSkipsRoundsAtInfo(t *testing.T) {
	var buf bytes.Buffer
	adapter := NewSlogAdapter(slog.New(slog.NewJSONHandler(&buf, nil)))

	adapter.Log(roundEvent("run-1", 1, timingattack.BitZero, 2, timingattack.Searching))
	if buf.Len() != 0 {
		t.Errorf("round logged at Info level: %s", buf.String())
	}
}
