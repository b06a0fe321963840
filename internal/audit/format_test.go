package audit

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestFormatTimelineHeaderAndSummary(t *testing.T) {
	path := writeTestLog(t)
	result, err := Replay(path, Filter{RunID: "r-aaa"})
	if err != nil {
		t.Fatal(err)
	}

	out := FormatTimeline(result)

	if !strings.Contains(out, "Run: r-aaa") {
		t.Error("expected header to contain run ID")
	}
	if !strings.Contains(out, "Summary:") {
		t.Error("expected summary line")
	}
	if !strings.Contains(out, "3 executed") {
		t.Errorf("expected '3 executed' in summary, got:\n%s", out)
	}
	if !strings.Contains(out, "1 failed") {
		t.Errorf("expected '1 failed' in summary, got:\n%s", out)
	}
}

func TestFormatTimelineEntryColumns(t *testing.T) {
	path := writeTestLog(t)
	result, err := Replay(path, Filter{})
	if err != nil {
		t.Fatal(err)
	}

	out := FormatTimeline(result)

	if !strings.Contains(out, "EXECUTED") {
		t.Error("expected EXECUTED event column")
	}
	if !strings.Contains(out, "BLOCKED") {
		t.Error("expected BLOCKED event column")
	}
	if !strings.Contains(out, "REJECTED_INPUT") {
		t.Error("expected REJECTED_INPUT event column")
	}
	if !strings.Contains(out, "[NotAllowed]") {
		t.Error("expected [NotAllowed] tag")
	}
	if !strings.Contains(out, "[exit 1]") {
		t.Errorf("expected [exit 1] tag, got:\n%s", out)
	}
	if !strings.Contains(out, "ls -l") {
		t.Error("expected command column")
	}
}

func TestFormatJSONValid(t *testing.T) {
	path := writeTestLog(t)
	result, err := Replay(path, Filter{RunID: "r-aaa"})
	if err != nil {
		t.Fatal(err)
	}

	jsonStr, err := FormatJSON(result)
	if err != nil {
		t.Fatal(err)
	}

	// Should unmarshal back to a Result
	var parsed Result
	if err := json.Unmarshal([]byte(jsonStr), &parsed); err != nil {
		t.Fatalf("JSON output not valid: %v", err)
	}
	if parsed.RunID != "r-aaa" {
		t.Errorf("expected run ID r-aaa, got %s", parsed.RunID)
	}
	if len(parsed.Entries) != 3 {
		t.Errorf("expected 3 entries in JSON, got %d", len(parsed.Entries))
	}
	if parsed.Summary.Total != 3 {
		t.Errorf("expected total 3 in JSON summary, got %d", parsed.Summary.Total)
	}
}

func TestFormatTimelineEmptyEntries(t *testing.T) {
	result := &Result{
		RunID: "r-empty",
	}

	out := FormatTimeline(result)
	if !strings.Contains(out, "No entries found") {
		t.Errorf("expected 'No entries found' message, got:\n%s", out)
	}
}
