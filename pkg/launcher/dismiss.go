package launcher

import (
	"errors"

	"go.uber.org/zap"

	"github.com/pakmirror/pakmirror/pkg/history"
	"github.com/pakmirror/pakmirror/pkg/jobregistry"
	"github.com/pakmirror/pakmirror/pkg/monitor"
	"github.com/pakmirror/pakmirror/pkg/procutil"
	"github.com/pakmirror/pakmirror/pkg/report"
)

// Dismiss force-terminates a job's process tree and finalizes it as
// Dismissed. The mirror process is killed first since it does the actual
// transfer work, then the primary process group. Targets that are already
// gone are not failures; the point is registry consistency, not guaranteed
// OS-level termination. The job is removed immediately, without the
// monitor's grace period.
func (l *Launcher) Dismiss(id string) (jobregistry.Snapshot, error) {
	job, ok := l.registry.Handle(id)
	if !ok {
		return jobregistry.Snapshot{}, &jobregistry.NotFoundError{ID: id}
	}
	snap, _ := l.registry.Get(id)
	log := l.logger.With(zap.String("job_id", id))

	if snap.MirrorPID != 0 {
		if err := procutil.Kill(snap.MirrorPID); err != nil && !errors.Is(err, procutil.ErrProcessGone) {
			log.Warn("kill mirror process", zap.Int("mirror_pid", snap.MirrorPID), zap.Error(err))
		}
	}
	if snap.PID != 0 {
		if err := procutil.KillTree(snap.PID); err != nil && !errors.Is(err, procutil.ErrProcessGone) {
			log.Warn("kill process tree", zap.Int("pid", snap.PID), zap.Error(err))
		}
	}

	job.CancelMonitor()

	code, _ := job.ExitCode()
	final, won := l.registry.Finalize(id, jobregistry.StatusDismissed, code)
	if won {
		l.history.Append(history.FromSnapshot(final))
		if _, err := report.Write(monitor.ReportInput(final)); err != nil {
			log.Warn("write summary report", zap.Error(err))
		}
		if sink := job.Events(); sink != nil {
			_ = sink.WriteTerminal(string(final.Status), code)
		}
		job.CloseEvents()
	} else {
		final, _ = l.registry.Get(id)
	}

	l.registry.Remove(id)
	log.Info("job dismissed", zap.String("status", string(final.Status)))
	return final, nil
}
