package audit

// TimestampFormat is the layout used in audit entry timestamps.
const TimestampFormat = "2006-01-02T15:04:05.000Z"

// Events recorded by the guard.
const (
	// EventExecuted marks a command that passed every gate and ran.
	EventExecuted = "executed"
	// EventBlocked marks an allow-list refusal.
	EventBlocked = "blocked"
	// EventRejected marks a validation failure on caller input.
	EventRejected = "rejected_input"
	// EventRotated heads a fresh chain segment after rotation.
	EventRotated = "rotated"
)

// Entry is one line in the hash-chained JSONL audit log.
// All fields are scalars (no map[string]any) to guarantee deterministic
// json.Marshal field order for reproducible hashing.
type Entry struct {
	Timestamp string `json:"ts"`
	RunID     string `json:"run_id"`
	Event     string `json:"event"`
	Command   string `json:"command,omitempty"`
	Param     string `json:"param,omitempty"`
	Kind      string `json:"kind,omitempty"`
	ExitCode  int    `json:"exit_code"`
	Detail    string `json:"detail,omitempty"`
	PrevHash  string `json:"prev_hash"`
}
