package monitor

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/pakmirror/pakmirror/pkg/jobregistry"
)

// Markers scraped from mirror tool logs. Matching is case-insensitive and
// failure always wins over completion for the same line.
const (
	// FailureMarker on the last log line means the tool gave up.
	FailureMarker = "error: one or more errors occurred"
	// CompletionMarker on the last log line means the mirror finished.
	CompletionMarker = "info: mirroring completed"
	// DryRunMarker anywhere in the log, paired with a zero exit code,
	// counts as completion: dry runs never print the completion marker.
	DryRunMarker = "[dry run]"
)

// mirrorPIDPattern extracts the secondary mirror process id that the
// downloader prints after forking the actual copy tool.
var mirrorPIDPattern = regexp.MustCompile(`Image mirroring started.*\(PID:\s*(\d+)\)`)

// MirrorPID returns the mirror process id announced in the log, if any.
func MirrorPID(logContent string) (int, bool) {
	m := mirrorPIDPattern.FindStringSubmatch(logContent)
	if m == nil {
		return 0, false
	}
	pid, err := strconv.Atoi(m[1])
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, true
}

// ClassifyLine inspects the last log line for a terminal marker. The second
// return is false when the line is inconclusive.
func ClassifyLine(lastLine string) (jobregistry.Status, bool) {
	lower := strings.ToLower(lastLine)
	switch {
	case strings.Contains(lower, FailureMarker):
		return jobregistry.StatusFailed, true
	case strings.Contains(lower, CompletionMarker):
		return jobregistry.StatusCompleted, true
	}
	return "", false
}

// ClassifyExit decides the terminal status once the process has exited.
// Markers take precedence over the exit code. A marker-free zero exit is
// success; that also covers dry runs, which never print the completion
// marker.
func ClassifyExit(lastLine string, exitCode int) jobregistry.Status {
	if st, ok := ClassifyLine(lastLine); ok {
		return st
	}
	if exitCode == 0 {
		return jobregistry.StatusCompleted
	}
	return jobregistry.StatusFailed
}

// IsDryRun reports whether the log shows a dry-run invocation.
func IsDryRun(logContent string) bool {
	return strings.Contains(strings.ToLower(logContent), DryRunMarker)
}

// LastLine returns the final non-empty line of the log content.
func LastLine(content string) string {
	trimmed := strings.TrimRight(content, "\n \t")
	if trimmed == "" {
		return ""
	}
	if i := strings.LastIndexByte(trimmed, '\n'); i >= 0 {
		return trimmed[i+1:]
	}
	return trimmed
}
