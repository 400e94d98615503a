package events

import (
	"encoding/json"
	"time"
)

// Record types emitted to a job's event log.
const (
	TypeLaunched = "launched"
	TypeProgress = "progress"
	TypeTerminal = "terminal"
)

// Record is the JSONL envelope. Data holds the type-specific payload.
type Record struct {
	Type  string          `json:"type"`
	TS    time.Time       `json:"ts"`
	JobID string          `json:"job_id"`
	RunID string          `json:"run_id,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// LaunchedRecord is written once when the external process starts.
type LaunchedRecord struct {
	Component string `json:"component"`
	Version   string `json:"version"`
	PID       int    `json:"pid"`
}

// ProgressRecord is written when the monitor observes log activity.
type ProgressRecord struct {
	Status   string `json:"status"`
	Progress int    `json:"progress"`
}

// TerminalRecord is written exactly once when the job reaches a terminal
// status.
type TerminalRecord struct {
	Status   string `json:"status"`
	ExitCode int    `json:"exit_code"`
}
