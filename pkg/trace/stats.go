package trace

import (
	"math/big"
	"sort"
	"time"

	"github.com/mahdiidarabi/rsa-timing/pkg/timingattack"
)

// RunStats aggregates the events of one run.
type RunStats struct {
	RunID      string
	Rounds     int
	Decisions  map[timingattack.Decision]int
	Backtracks int
	Queries    int
	Status     timingattack.Status
	Candidate  *big.Int
	// MaxPrefix is the longest candidate reached, in bits.
	MaxPrefix int
	Start     time.Time
	End       time.Time
	Result    *ResultData
}

// Summarize groups events by run, in order of first appearance.
func Summarize(events []Event) []*RunStats {
	byRun := make(map[string]*RunStats)
	var order []string

	for _, e := range events {
		s, ok := byRun[e.RunID]
		if !ok {
			s = &RunStats{RunID: e.RunID, Decisions: make(map[timingattack.Decision]int), Start: e.Timestamp}
			byRun[e.RunID] = s
			order = append(order, e.RunID)
		}
		if e.Timestamp.Before(s.Start) {
			s.Start = e.Timestamp
		}
		if e.Timestamp.After(s.End) {
			s.End = e.Timestamp
		}

		switch {
		case e.Round != nil:
			r := e.Round
			s.Decisions[r.Decision]++
			if r.Round > s.Rounds {
				s.Rounds = r.Round
				s.Backtracks = r.Backtracks
				s.Queries = r.Queries
				s.Status = r.Status
				s.Candidate = r.Candidate
			}
			if r.Candidate != nil && r.Candidate.BitLen() > s.MaxPrefix {
				s.MaxPrefix = r.Candidate.BitLen()
			}
		case e.Result != nil:
			s.Result = e.Result
			s.Status = e.Result.Status
		}
	}

	stats := make([]*RunStats, 0, len(order))
	for _, id := range order {
		stats = append(stats, byRun[id])
	}
	return stats
}

// RunIDs returns the distinct run IDs in events, sorted.
func RunIDs(events []Event) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, e := range events {
		if !seen[e.RunID] {
			seen[e.RunID] = true
			ids = append(ids, e.RunID)
		}
	}
	sort.Strings(ids)
	return ids
}
