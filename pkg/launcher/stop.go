package launcher

import (
	"fmt"
	"syscall"

	"go.uber.org/zap"

	"github.com/pakmirror/pakmirror/pkg/jobregistry"
)

// NotRunningError is returned by Stop when the job is already past Running.
type NotRunningError struct {
	ID     string
	Status jobregistry.Status
}

func (e *NotRunningError) Error() string {
	return fmt.Sprintf("job %s is not running (status %s)", e.ID, e.Status)
}

// Stop requests graceful termination of a Running or Progressing job. The
// job stays in the registry with status Stopped until the monitor observes
// the process exit and finalizes it; the Stopped status is sticky through
// that finalization.
func (l *Launcher) Stop(id string) error {
	snap, ok := l.registry.Get(id)
	if !ok {
		return &jobregistry.NotFoundError{ID: id}
	}
	if snap.Status != jobregistry.StatusRunning && snap.Status != jobregistry.StatusProgressing {
		return &NotRunningError{ID: id, Status: snap.Status}
	}

	if err := l.registry.Signal(id, syscall.SIGTERM); err != nil {
		l.logger.Warn("signal job", zap.String("job_id", id), zap.Error(err))
	}
	l.registry.MarkStopped(id)
	l.logger.Info("job stop requested", zap.String("job_id", id))
	return nil
}
