package audit

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const separator = "──────────────────────────────────────────────────────────────────"

// FormatTimeline renders a Result as a human-readable text timeline.
func FormatTimeline(result *Result) string {
	if len(result.Entries) == 0 {
		if result.RunID != "" {
			return fmt.Sprintf("Run: %s | No entries found.\n", result.RunID)
		}
		return "No entries found.\n"
	}

	var b strings.Builder

	// Header
	scope := "Audit log"
	if result.RunID != "" {
		scope = "Run: " + result.RunID
	}
	firstTime := formatDateRange(result.Summary.FirstTimestamp)
	lastTime := formatTimeOnly(result.Summary.LastTimestamp)
	b.WriteString(fmt.Sprintf("%s | %s–%s UTC\n", scope, firstTime, lastTime))
	b.WriteString(separator + "\n")

	// Entries
	for _, e := range result.Entries {
		ts := formatTimeOnly(e.Timestamp)
		event := strings.ToUpper(e.Event)
		subject := e.Command
		if subject == "" {
			subject = e.Param
		}
		subject = truncate(subject, 40)

		tag := ""
		switch {
		case e.Kind != "":
			tag = "  [" + e.Kind + "]"
		case e.Event == EventExecuted && e.ExitCode != 0:
			tag = fmt.Sprintf("  [exit %d]", e.ExitCode)
		case e.Event == EventRotated && e.Detail != "":
			tag = "  [" + e.Detail + "]"
		}

		b.WriteString(fmt.Sprintf("%-10s %-16s %-40s%s\n", ts, event, subject, tag))
	}

	// Footer
	b.WriteString(separator + "\n")
	b.WriteString(formatSummary(result.Summary))

	return b.String()
}

// FormatJSON renders a Result as indented JSON.
func FormatJSON(result *Result) (string, error) {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal replay result: %w", err)
	}
	return string(data), nil
}

func formatDateRange(ts string) string {
	t, err := time.Parse(TimestampFormat, ts)
	if err != nil {
		return ts
	}
	return t.Format("2006-01-02 15:04:05")
}

func formatTimeOnly(ts string) string {
	t, err := time.Parse(TimestampFormat, ts)
	if err != nil {
		return ts
	}
	return t.Format("15:04:05")
}

func formatSummary(s Summary) string {
	parts := []string{}
	if s.Executed > 0 {
		parts = append(parts, fmt.Sprintf("%d executed", s.Executed))
	}
	if s.Failed > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", s.Failed))
	}
	if s.Blocked > 0 {
		parts = append(parts, fmt.Sprintf("%d blocked", s.Blocked))
	}
	if s.Rejected > 0 {
		parts = append(parts, fmt.Sprintf("%d rejected", s.Rejected))
	}
	if len(parts) == 0 {
		parts = append(parts, "no decisions")
	}
	return fmt.Sprintf("Summary: %s | %d entries\n", strings.Join(parts, ", "), s.Total)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
