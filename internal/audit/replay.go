package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"time"
)

// Filter holds filtering criteria for audit replay.
type Filter struct {
	RunID string    // empty = all runs
	Event string    // empty = all events
	From  time.Time // zero value = no lower bound
	To    time.Time // zero value = no upper bound
}

// Summary holds event counts and metadata for replayed entries.
type Summary struct {
	Total          int    `json:"total"`
	Executed       int    `json:"executed"`
	Blocked        int    `json:"blocked"`
	Rejected       int    `json:"rejected"`
	Failed         int    `json:"failed"` // executed with a nonzero exit code
	FirstTimestamp string `json:"first_timestamp"`
	LastTimestamp  string `json:"last_timestamp"`
}

// Result holds filtered entries and summary for an audit replay.
type Result struct {
	RunID   string  `json:"run_id,omitempty"`
	Entries []Entry `json:"entries"`
	Summary Summary `json:"summary"`
}

// Replay reads an audit log, live or archived, and returns the entries
// matching the filter.
func Replay(path string, filter Filter) (*Result, error) {
	r, err := openLogReader(path)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	defer r.Close()

	result := &Result{
		RunID: filter.RunID,
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		var entry Entry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			continue // skip malformed lines
		}

		if filter.RunID != "" && entry.RunID != filter.RunID {
			continue
		}
		if filter.Event != "" && entry.Event != filter.Event {
			continue
		}

		// Time range filtering
		if !filter.From.IsZero() || !filter.To.IsZero() {
			ts, err := time.Parse(TimestampFormat, entry.Timestamp)
			if err != nil {
				continue // skip unparseable timestamps
			}
			if !filter.From.IsZero() && ts.Before(filter.From) {
				continue
			}
			if !filter.To.IsZero() && ts.After(filter.To) {
				continue
			}
		}

		result.Entries = append(result.Entries, entry)
		updateSummary(&result.Summary, entry)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read audit log: %w", err)
	}

	return result, nil
}

func updateSummary(s *Summary, entry Entry) {
	s.Total++

	switch entry.Event {
	case EventExecuted:
		s.Executed++
		if entry.ExitCode != 0 {
			s.Failed++
		}
	case EventBlocked:
		s.Blocked++
	case EventRejected:
		s.Rejected++
	}

	if s.FirstTimestamp == "" {
		s.FirstTimestamp = entry.Timestamp
	}
	s.LastTimestamp = entry.Timestamp
}
