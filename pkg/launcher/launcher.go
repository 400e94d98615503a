// Package launcher validates job specifications, builds the deterministic
// external invocation for each job kind, spawns the process in its own
// group, and hands the registered job to a monitor goroutine.
package launcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"

	"github.com/pakmirror/pakmirror/pkg/events"
	"github.com/pakmirror/pakmirror/pkg/history"
	"github.com/pakmirror/pakmirror/pkg/jobregistry"
	"github.com/pakmirror/pakmirror/pkg/monitor"
	"github.com/pakmirror/pakmirror/pkg/procutil"
)

// ConfigError reports a missing or invalid launch parameter. Never retried;
// surfaced to the caller.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid config: %s: %s", e.Field, e.Reason)
}

// LaunchError reports a spawn failure. The job is never registered.
type LaunchError struct {
	ID  string
	Err error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launch %s: %v", e.ID, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// Launcher starts external mirror jobs and their monitors.
type Launcher struct {
	registry *jobregistry.Registry
	history  *history.Store
	monitor  *monitor.Monitor
	logger   *zap.Logger

	// downloaderCmd is the argv prefix for case jobs, e.g. the path of the
	// case-package downloader tool.
	downloaderCmd []string
}

func New(reg *jobregistry.Registry, hist *history.Store, mon *monitor.Monitor, logger *zap.Logger, downloaderCmd []string) *Launcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Launcher{
		registry:      reg,
		history:       hist,
		monitor:       mon,
		logger:        logger,
		downloaderCmd: downloaderCmd,
	}
}

// Registry exposes the job table for read-side callers.
func (l *Launcher) Registry() *jobregistry.Registry { return l.registry }

// History exposes the terminal record store for read-side callers.
func (l *Launcher) History() *history.Store { return l.history }

// Launch starts a new job under a freshly minted id.
func (l *Launcher) Launch(component, version, name string, cfg jobregistry.ConfigSnapshot) (jobregistry.Snapshot, error) {
	id := fmt.Sprintf("%s-%d", name, time.Now().Unix())
	return l.LaunchWithID(id, component, version, name, cfg)
}

// LaunchWithID starts a job under a caller-chosen id. The retry engine uses
// this to mint retry ids; everything else goes through Launch.
func (l *Launcher) LaunchWithID(id, component, version, name string, cfg jobregistry.ConfigSnapshot) (jobregistry.Snapshot, error) {
	if err := Validate(component, version, name, cfg); err != nil {
		return jobregistry.Snapshot{}, err
	}
	cfg = withKindDefaults(component, cfg)

	job := jobregistry.NewJob(id, component, version, name, cfg)
	workDir := filepath.Join(cfg.HomeDir, name)
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return jobregistry.Snapshot{}, &LaunchError{ID: id, Err: err}
	}

	cmd, closers, err := l.buildCommand(job, workDir)
	if err != nil {
		closeAll(closers)
		return jobregistry.Snapshot{}, err
	}
	procutil.Detach(cmd)

	if err := cmd.Start(); err != nil {
		closeAll(closers)
		return jobregistry.Snapshot{}, &LaunchError{ID: id, Err: err}
	}
	job.AttachProcess(cmd.Process)

	l.attachEvents(job, workDir)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	job.BindMonitor(cancel, done)

	if err := l.registry.Insert(job); err != nil {
		cancel()
		close(done)
		_ = procutil.KillTree(job.PID)
		job.CloseEvents()
		closeAll(closers)
		return jobregistry.Snapshot{}, err
	}

	// Reaper: waits for the process so the monitor can read the exit code
	// through the closed channel.
	go func() {
		code := waitExitCode(cmd)
		job.MarkExited(code)
		closeAll(closers)
	}()

	go func() {
		defer close(done)
		l.monitor.Run(ctx, job)
	}()

	if sink := job.Events(); sink != nil {
		if ev, ok := sink.(*events.Writer); ok {
			_ = ev.WriteLaunched(component, version, job.PID)
		}
	}

	l.logger.Info("job launched",
		zap.String("job_id", id),
		zap.String("component", component),
		zap.String("version", version),
		zap.String("kind", string(job.Kind)),
		zap.Int("pid", job.PID),
	)

	snap, _ := l.registry.Get(id)
	return snap, nil
}

// buildCommand prepares the exec.Cmd for the job's kind and sets LogPath.
// Case jobs write their own download log; the runner output goes to a
// sidecar file. Script jobs get stdout and stderr piped straight into the
// monitored log.
func (l *Launcher) buildCommand(job *jobregistry.Job, workDir string) (*exec.Cmd, []func(), error) {
	var closers []func()
	cfg := job.Config

	switch job.Kind {
	case jobregistry.KindCase:
		if len(l.downloaderCmd) == 0 {
			return nil, closers, &ConfigError{Field: "downloader_command", Reason: "not configured"}
		}
		args := append(append([]string{}, l.downloaderCmd[1:]...), BuildCaseArgs(job.Component, job.Version, job.Name, cfg)...)
		cmd := exec.Command(l.downloaderCmd[0], args...)
		cmd.Env = caseEnv(cfg)

		runnerLog, err := os.Create(filepath.Join(workDir, job.Name+"-runner.log"))
		if err != nil {
			return nil, closers, &LaunchError{ID: job.ID, Err: err}
		}
		closers = append(closers, func() { runnerLog.Close() })
		cmd.Stdout = runnerLog
		cmd.Stderr = runnerLog

		job.LogPath = filepath.Join(workDir, job.Name+"-download.log")
		job.MirrorLogPath = filepath.Join(workDir, job.Name+"-mirror.log")
		return cmd, closers, nil

	case jobregistry.KindPlatform:
		script := BuildPlatformScript(job.Version, cfg)
		return l.scriptCommand(job, script, closers)

	case jobregistry.KindCatalog:
		data, err := BuildCatalogImageSet(cfg)
		if err != nil {
			return nil, closers, &LaunchError{ID: job.ID, Err: err}
		}
		configFile := filepath.Join(cfg.HomeDir, "imageset-config.yaml")
		if err := os.WriteFile(configFile, data, 0o644); err != nil {
			return nil, closers, &LaunchError{ID: job.ID, Err: err}
		}
		script := BuildCatalogScript(cfg, configFile)
		return l.scriptCommand(job, script, closers)
	}
	return nil, closers, &ConfigError{Field: "component", Reason: "unknown job kind"}
}

// scriptCommand runs a generated shell script with output captured in the
// job's log, which doubles as the monitored file.
func (l *Launcher) scriptCommand(job *jobregistry.Job, script string, closers []func()) (*exec.Cmd, []func(), error) {
	logPath := filepath.Join(job.Config.HomeDir, job.Name+".log")
	logFile, err := os.Create(logPath)
	if err != nil {
		return nil, closers, &LaunchError{ID: job.ID, Err: err}
	}
	closers = append(closers, func() { logFile.Close() })

	cmd := exec.Command("/bin/sh", "-c", script)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	job.LogPath = logPath
	return cmd, closers, nil
}

// attachEvents opens the per-job JSONL event log. A failure here degrades
// to no event log; the job itself still runs. The sink stays open past
// process exit so the monitor can write the terminal record; CloseEvents is
// owned by whichever path finalizes the job.
func (l *Launcher) attachEvents(job *jobregistry.Job, workDir string) {
	path := filepath.Join(workDir, job.Name+"-events.jsonl")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		l.logger.Warn("open event log", zap.String("job_id", job.ID), zap.Error(err))
		return
	}
	w := events.NewWriter(f, job.ID, job.RunID)
	job.SetEvents(w, func() {
		_ = w.Close()
		_ = f.Close()
	})
}

// caseEnv extends the inherited environment with the auth material the
// downloader expects, plus the webhook/notification passthrough.
func caseEnv(cfg jobregistry.ConfigSnapshot) []string {
	env := os.Environ()
	if cfg.RegistryAuthFile != "" {
		env = append(env, "REGISTRY_AUTH_FILE="+cfg.RegistryAuthFile)
	}
	if cfg.EntitlementKey != "" {
		env = append(env, "ENTITLEMENT_KEY="+cfg.EntitlementKey)
	}
	return env
}

func closeAll(closers []func()) {
	for _, fn := range closers {
		fn()
	}
}

// waitExitCode reaps the process and normalizes the exit code. A wait error
// that is not an exit status maps to -1.
func waitExitCode(cmd *exec.Cmd) int {
	err := cmd.Wait()
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

// withKindDefaults fills kind-specific defaults into the snapshot before it
// is retained, so a later retry replays the exact effective parameters.
func withKindDefaults(component string, cfg jobregistry.ConfigSnapshot) jobregistry.ConfigSnapshot {
	switch jobregistry.KindForComponent(component) {
	case jobregistry.KindPlatform:
		if cfg.ProductRepo == "" {
			cfg.ProductRepo = "openshift-release-dev"
		}
		if cfg.ReleaseName == "" {
			cfg.ReleaseName = "ocp-release"
		}
		if cfg.Architecture == "" {
			cfg.Architecture = "x86_64"
		}
	case jobregistry.KindCatalog:
		if cfg.Architecture == "" {
			cfg.Architecture = "amd64"
		}
	case jobregistry.KindCase:
		if cfg.MaxPerRegistry == 0 {
			cfg.MaxPerRegistry = 5
		}
	}
	return cfg
}

// Validate checks the launch parameters for the component's kind.
func Validate(component, version, name string, cfg jobregistry.ConfigSnapshot) error {
	switch {
	case component == "":
		return &ConfigError{Field: "component", Reason: "required"}
	case version == "":
		return &ConfigError{Field: "version", Reason: "required"}
	case name == "":
		return &ConfigError{Field: "name", Reason: "required"}
	case cfg.HomeDir == "":
		return &ConfigError{Field: "home_dir", Reason: "required"}
	}

	if cfg.Filter != "" {
		if !doublestar.ValidatePattern(cfg.Filter) {
			return &ConfigError{Field: "filter", Reason: "invalid glob pattern"}
		}
	}

	switch jobregistry.KindForComponent(component) {
	case jobregistry.KindCase:
		if cfg.FinalRegistry == "" {
			return &ConfigError{Field: "final_registry", Reason: "required"}
		}
		if cfg.RegistryAuthFile == "" {
			return &ConfigError{Field: "registry_auth_file", Reason: "required"}
		}
	case jobregistry.KindPlatform:
		if cfg.FinalRegistry == "" {
			return &ConfigError{Field: "final_registry", Reason: "required"}
		}
		if cfg.LocalRepository == "" {
			return &ConfigError{Field: "local_repository", Reason: "required"}
		}
		if cfg.RegistryAuthFile == "" {
			return &ConfigError{Field: "registry_auth_file", Reason: "required"}
		}
	case jobregistry.KindCatalog:
		if cfg.CatalogVersion == "" {
			return &ConfigError{Field: "catalog_version", Reason: "required"}
		}
		if cfg.RegistryAuthFile == "" {
			return &ConfigError{Field: "registry_auth_file", Reason: "required"}
		}
		if cfg.MirrorType == "registry" && cfg.FinalRegistry == "" {
			return &ConfigError{Field: "final_registry", Reason: "required for registry mirror"}
		}
	}
	return nil
}
