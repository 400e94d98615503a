// Package monitor supervises one external mirror process per goroutine. It
// scrapes the tool's log on an interval, updates the job's progress, and
// performs the single terminal transition when a marker appears or the
// process exits.
package monitor

import (
	"context"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/pakmirror/pakmirror/pkg/history"
	"github.com/pakmirror/pakmirror/pkg/jobregistry"
	"github.com/pakmirror/pakmirror/pkg/report"
)

const (
	// DefaultInterval is how often the log is polled while the process runs.
	DefaultInterval = 30 * time.Second
	// DefaultGrace is how long a finalized job stays visible in the
	// registry before removal, so pollers observe the terminal status.
	DefaultGrace = 5 * time.Second
	// progressStep is added to the progress estimate each time the log grows.
	progressStep = 5
)

// Monitor watches jobs. One Monitor is shared; Run is invoked once per job
// in its own goroutine.
type Monitor struct {
	registry *jobregistry.Registry
	history  *history.Store
	logger   *zap.Logger

	// Interval and Grace may be shortened by tests.
	Interval time.Duration
	Grace    time.Duration
}

func New(reg *jobregistry.Registry, hist *history.Store, logger *zap.Logger) *Monitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		registry: reg,
		history:  hist,
		logger:   logger,
		Interval: DefaultInterval,
		Grace:    DefaultGrace,
	}
}

// Run blocks until the job reaches a terminal status or ctx is cancelled.
// Cancellation means another path (stop, dismiss, shutdown) owns the
// terminal transition; Run leaves the registry entry alone in that case.
func (m *Monitor) Run(ctx context.Context, job *jobregistry.Job) {
	log := m.logger.With(zap.String("job_id", job.ID), zap.String("log_path", job.LogPath))
	defer func() {
		if r := recover(); r != nil {
			log.Error("monitor panicked", zap.Any("panic", r))
		}
	}()
	log.Info("monitor started")

	ticker := time.NewTicker(m.Interval)
	defer ticker.Stop()

	var lastSize int64
	for {
		select {
		case <-ctx.Done():
			log.Info("monitor cancelled")
			return
		case <-job.Exited():
			m.finalCheck(ctx, job, log)
			return
		case <-ticker.C:
			if st, ok := m.poll(job, &lastSize, log); ok {
				code, _ := job.ExitCode()
				m.finalize(ctx, job, st, code, log)
				return
			}
		}
	}
}

// poll reads the log once. It captures the mirror pid, bumps progress when
// the file has grown, and reports a terminal status if the last line carries
// a marker.
func (m *Monitor) poll(job *jobregistry.Job, lastSize *int64, log *zap.Logger) (jobregistry.Status, bool) {
	info, err := os.Stat(job.LogPath)
	if err != nil {
		// The tool may not have created its log yet.
		return "", false
	}
	data, err := os.ReadFile(job.LogPath)
	if err != nil {
		log.Warn("read log", zap.Error(err))
		return "", false
	}
	content := string(data)

	if pid, ok := MirrorPID(content); ok {
		if m.registry.CaptureMirrorPID(job.ID, pid) {
			log.Info("captured mirror pid", zap.Int("mirror_pid", pid))
		}
	}

	if size := info.Size(); size > *lastSize {
		*lastSize = size
		if snap, ok := m.registry.SetProgressing(job.ID, progressStep); ok {
			if sink := job.Events(); sink != nil {
				_ = sink.WriteProgress(string(snap.Status), snap.Progress)
			}
			log.Debug("log growing", zap.Int("progress", snap.Progress))
		}
	}

	return ClassifyLine(LastLine(content))
}

// finalCheck classifies the job after the process has been reaped: markers
// first, then the exit code.
func (m *Monitor) finalCheck(ctx context.Context, job *jobregistry.Job, log *zap.Logger) {
	code, _ := job.ExitCode()
	lastLine := ""
	if data, err := os.ReadFile(job.LogPath); err == nil {
		content := string(data)
		lastLine = LastLine(content)
		if pid, ok := MirrorPID(content); ok {
			m.registry.CaptureMirrorPID(job.ID, pid)
		}
		if IsDryRun(content) && code == 0 {
			log.Info("dry run completed", zap.Int("exit_code", code))
		}
	}
	status := ClassifyExit(lastLine, code)
	log.Info("process exited", zap.Int("exit_code", code), zap.String("status", string(status)))
	m.finalize(ctx, job, status, code, log)
}

// finalize performs the terminal transition exactly once: registry status,
// history entry, summary report, terminal event, then removal after the
// grace period. Losing the Finalize race means another path already did all
// of this.
func (m *Monitor) finalize(ctx context.Context, job *jobregistry.Job, status jobregistry.Status, exitCode int, log *zap.Logger) {
	snap, ok := m.registry.Finalize(job.ID, status, exitCode)
	if !ok {
		log.Debug("job already finalized")
		return
	}
	log.Info("job finalized",
		zap.String("status", string(snap.Status)),
		zap.Int("exit_code", exitCode),
	)

	m.history.Append(history.FromSnapshot(snap))

	if _, err := report.Write(ReportInput(snap)); err != nil {
		log.Warn("write summary report", zap.Error(err))
	}

	if sink := job.Events(); sink != nil {
		_ = sink.WriteTerminal(string(snap.Status), exitCode)
	}
	job.CloseEvents()

	// Keep the terminal snapshot visible briefly so pollers catch it.
	select {
	case <-ctx.Done():
	case <-time.After(m.Grace):
	}
	m.registry.Remove(job.ID)
	log.Info("job removed from registry")
}

// ReportInput maps a finalized snapshot onto the summary report fields.
func ReportInput(snap jobregistry.Snapshot) report.Input {
	return report.Input{
		Component:        snap.Component,
		Version:          snap.Version,
		Name:             snap.Name,
		Status:           string(snap.Status),
		PID:              snap.PID,
		ExitCode:         snap.ExitCode,
		StartTime:        snap.StartTime,
		EndTime:          snap.EndTime,
		HomeDir:          snap.Config.HomeDir,
		FinalRegistry:    snap.Config.FinalRegistry,
		RegistryAuthFile: snap.Config.RegistryAuthFile,
		Filter:           snap.Config.Filter,
		LogPath:          snap.LogPath,
	}
}
