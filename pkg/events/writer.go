// Package events writes per-job lifecycle records as newline-delimited
// JSON. Downstream viewers tail these files alongside the tool's own log.
package events

import (
	"encoding/json"
	"errors"
	"io"
	"sync"
	"time"
)

// ErrWriterClosed is returned by writes after Close.
var ErrWriterClosed = errors.New("events: writer is closed")

// Writer emits JSONL records for one job.
//
// Writer is safe for concurrent use. Writes are serialized with a mutex so
// lines are never interleaved.
type Writer struct {
	w     io.Writer
	jobID string
	runID string

	mu     sync.Mutex
	closed bool
}

// NewWriter creates a writer for the given job. The underlying io.Writer is
// not closed by Close; the caller owns it.
func NewWriter(w io.Writer, jobID, runID string) *Writer {
	return &Writer{w: w, jobID: jobID, runID: runID}
}

// WriteLaunched emits the launch record.
func (ew *Writer) WriteLaunched(component, version string, pid int) error {
	return ew.write(TypeLaunched, LaunchedRecord{Component: component, Version: version, PID: pid})
}

// WriteProgress emits a progress record.
func (ew *Writer) WriteProgress(status string, progress int) error {
	return ew.write(TypeProgress, ProgressRecord{Status: status, Progress: progress})
}

// WriteTerminal emits the terminal record.
func (ew *Writer) WriteTerminal(status string, exitCode int) error {
	return ew.write(TypeTerminal, TerminalRecord{Status: status, ExitCode: exitCode})
}

// Close marks the writer closed. Subsequent writes fail with
// ErrWriterClosed.
func (ew *Writer) Close() error {
	ew.mu.Lock()
	defer ew.mu.Unlock()
	ew.closed = true
	return nil
}

func (ew *Writer) write(recordType string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}

	ew.mu.Lock()
	defer ew.mu.Unlock()
	if ew.closed {
		return ErrWriterClosed
	}

	rec := Record{
		Type:  recordType,
		TS:    time.Now().UTC(),
		JobID: ew.jobID,
		RunID: ew.runID,
		Data:  payload,
	}
	line, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	line = append(line, '\n')
	return writeAll(ew.w, line)
}

// writeAll loops over short writes so a JSONL line is never truncated.
func writeAll(w io.Writer, p []byte) error {
	for len(p) > 0 {
		n, err := w.Write(p)
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
		p = p[n:]
	}
	return nil
}
