package jobregistry

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a managed mirror job.
//
// NOTE: These values appear in API responses and per-job event logs and are
// part of the stable contract.
type Status string

const (
	StatusRunning     Status = "running"
	StatusProgressing Status = "progressing"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
	StatusStopped     Status = "stopped"
	StatusDismissed   Status = "dismissed"
)

// Terminal reports whether no further transition can occur from s.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusStopped, StatusDismissed:
		return true
	}
	return false
}

// Kind selects how a job's external invocation is built and retried.
type Kind string

const (
	// KindCase jobs drive the case-package downloader tool and support
	// resume relaunch via its --retry flag.
	KindCase Kind = "case"
	// KindPlatform jobs mirror a platform release (oc adm release mirror)
	// and are retried by structured relaunch.
	KindPlatform Kind = "platform-release"
	// KindCatalog jobs mirror an operator catalog (oc-mirror) and are
	// retried by structured relaunch with --ignore-history.
	KindCatalog Kind = "catalog"
)

// KindForComponent maps a component name to its job kind.
func KindForComponent(component string) Kind {
	switch component {
	case "openshift":
		return KindPlatform
	case "redhat-operators":
		return KindCatalog
	default:
		return KindCase
	}
}

// ConfigSnapshot is the full set of launch parameters for a job, retained
// verbatim so a retry can reconstruct the invocation without any ambient
// state. Fields not relevant to a job's kind stay zero.
type ConfigSnapshot struct {
	HomeDir          string `json:"home_dir,omitempty" mapstructure:"home_dir"`
	FinalRegistry    string `json:"final_registry,omitempty" mapstructure:"final_registry"`
	RegistryAuthFile string `json:"registry_auth_file,omitempty" mapstructure:"registry_auth_file"`
	EntitlementKey   string `json:"entitlement_key,omitempty" mapstructure:"entitlement_key"`
	Filter           string `json:"filter,omitempty" mapstructure:"filter"`
	DryRun           bool   `json:"dry_run,omitempty" mapstructure:"dry_run"`
	DirectToRegistry bool   `json:"direct_to_registry,omitempty" mapstructure:"direct_to_registry"`
	DownloadMode     string `json:"download_mode,omitempty" mapstructure:"download_mode"`
	MaxPerRegistry   int    `json:"max_per_registry,omitempty" mapstructure:"max_per_registry"`
	Resume           bool   `json:"resume,omitempty" mapstructure:"resume"`
	ForceRetry       bool   `json:"force_retry,omitempty" mapstructure:"force_retry"`
	Verbose          bool   `json:"verbose,omitempty" mapstructure:"verbose"`

	// Platform-release fields.
	MirrorType       string `json:"mirror_type,omitempty" mapstructure:"mirror_type"`
	LocalRepository  string `json:"local_repository,omitempty" mapstructure:"local_repository"`
	ProductRepo      string `json:"product_repo,omitempty" mapstructure:"product_repo"`
	ReleaseName      string `json:"release_name,omitempty" mapstructure:"release_name"`
	Architecture     string `json:"architecture,omitempty" mapstructure:"architecture"`
	IncludeOperators bool   `json:"include_operators,omitempty" mapstructure:"include_operators"`
	PrintIDMS        bool   `json:"print_idms,omitempty" mapstructure:"print_idms"`
	GenerateICSP     bool   `json:"generate_icsp,omitempty" mapstructure:"generate_icsp"`
	SkipVerification bool   `json:"skip_verification,omitempty" mapstructure:"skip_verification"`
	ContinueOnError  bool   `json:"continue_on_error,omitempty" mapstructure:"continue_on_error"`
	FilterByOS       string `json:"filter_by_os,omitempty" mapstructure:"filter_by_os"`

	// Catalog fields.
	CatalogVersion string   `json:"catalog_version,omitempty" mapstructure:"catalog_version"`
	Operators      []string `json:"operators,omitempty" mapstructure:"operators"`
	Channels       []string `json:"channels,omitempty" mapstructure:"channels"`
	IncludeUBI     bool     `json:"include_ubi,omitempty" mapstructure:"include_ubi"`
	IncludeHelm    bool     `json:"include_helm,omitempty" mapstructure:"include_helm"`
	IgnoreHistory  bool     `json:"ignore_history,omitempty" mapstructure:"ignore_history"`
}

// EventSink receives job lifecycle records. Implemented by pkg/events.
type EventSink interface {
	WriteProgress(status string, progress int) error
	WriteTerminal(status string, exitCode int) error
}

// Job is one tracked invocation of an external mirror tool. The registry is
// the exclusive owner of a Job while it is active; all mutation goes through
// Registry methods so the single lock serializes every read and write.
//
// The process handle, monitor binding, and event sink are fixed before the
// job is inserted and never reassigned afterwards.
type Job struct {
	ID        string
	Component string
	Version   string
	Name      string
	Kind      Kind
	RunID     string

	Status    Status
	Progress  int
	StartTime time.Time
	EndTime   time.Time

	PID           int
	MirrorPID     int
	LogPath       string
	MirrorLogPath string
	Config        ConfigSnapshot

	process  *os.Process
	exited   chan struct{}
	exitCode int

	cancel context.CancelFunc
	done   <-chan struct{}

	events     EventSink
	closeOnce  sync.Once
	closeEvent func()

	finalized bool
}

// NewJob builds a Job in its initial Running state.
func NewJob(id, component, version, name string, cfg ConfigSnapshot) *Job {
	return &Job{
		ID:        id,
		Component: component,
		Version:   version,
		Name:      name,
		Kind:      KindForComponent(component),
		RunID:     uuid.New().String(),
		Status:    StatusRunning,
		StartTime: time.Now().UTC(),
		Config:    cfg,
		exited:    make(chan struct{}),
	}
}

// AttachProcess records the spawned process. Must be called before Insert.
func (j *Job) AttachProcess(p *os.Process) {
	j.process = p
	if p != nil {
		j.PID = p.Pid
	}
}

// BindMonitor attaches the monitor's cancellation handle and join channel.
// Must be called before Insert.
func (j *Job) BindMonitor(cancel context.CancelFunc, done <-chan struct{}) {
	j.cancel = cancel
	j.done = done
}

// SetEvents attaches the job's event sink and its close hook. Must be called
// before Insert.
func (j *Job) SetEvents(sink EventSink, closeFn func()) {
	j.events = sink
	j.closeEvent = closeFn
}

// Events returns the job's event sink, which may be nil.
func (j *Job) Events() EventSink { return j.events }

// CloseEvents releases the event sink. Safe to call more than once.
func (j *Job) CloseEvents() {
	j.closeOnce.Do(func() {
		if j.closeEvent != nil {
			j.closeEvent()
		}
	})
}

// CancelMonitor requests the job's monitor goroutine to stop.
func (j *Job) CancelMonitor() {
	if j.cancel != nil {
		j.cancel()
	}
}

// MonitorDone returns a channel closed when the monitor goroutine has
// exited, or nil if no monitor was bound.
func (j *Job) MonitorDone() <-chan struct{} { return j.done }

// MarkExited records the process exit code and unblocks Exited. Called
// exactly once by the reaper goroutine (or directly by tests).
func (j *Job) MarkExited(code int) {
	j.exitCode = code
	close(j.exited)
}

// Exited returns a channel closed once the primary process has been reaped.
func (j *Job) Exited() <-chan struct{} { return j.exited }

// ExitCode returns the process exit code once the process has exited.
func (j *Job) ExitCode() (int, bool) {
	select {
	case <-j.exited:
		return j.exitCode, true
	default:
		return 0, false
	}
}

// Snapshot is a serializable copy of a Job without the owned process handle.
type Snapshot struct {
	ID        string `json:"id"`
	Component string `json:"component"`
	Version   string `json:"version"`
	Name      string `json:"name"`
	Kind      Kind   `json:"kind"`
	RunID     string `json:"run_id"`

	Status    Status    `json:"status"`
	Progress  int       `json:"progress"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time,omitzero"`

	PID           int    `json:"pid,omitempty"`
	MirrorPID     int    `json:"mirror_pid,omitempty"`
	ExitCode      int    `json:"exit_code,omitempty"`
	LogPath       string `json:"log_path,omitempty"`
	MirrorLogPath string `json:"mirror_log_path,omitempty"`

	Config ConfigSnapshot `json:"config"`
}

// snapshotLocked copies the serializable fields. Caller holds the registry
// lock.
func (j *Job) snapshotLocked() Snapshot {
	return Snapshot{
		ID:            j.ID,
		Component:     j.Component,
		Version:       j.Version,
		Name:          j.Name,
		Kind:          j.Kind,
		RunID:         j.RunID,
		Status:        j.Status,
		Progress:      j.Progress,
		StartTime:     j.StartTime,
		EndTime:       j.EndTime,
		PID:           j.PID,
		MirrorPID:     j.MirrorPID,
		LogPath:       j.LogPath,
		MirrorLogPath: j.MirrorLogPath,
		Config:        j.Config,
	}
}
