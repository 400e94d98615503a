// Package retry relaunches terminal or stuck jobs from their retained
// configuration snapshots. Platform and catalog jobs are rebuilt exactly
// from the snapshot (structured relaunch); case jobs are re-issued with the
// downloader's resume flag when the mapping feasibility marker exists.
package retry

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"go.uber.org/zap"

	"github.com/pakmirror/pakmirror/pkg/jobregistry"
	"github.com/pakmirror/pakmirror/pkg/launcher"
)

// MissingRetryDataError reports that a field required to reconstruct the
// invocation was never captured.
type MissingRetryDataError struct {
	ID    string
	Field string
}

func (e *MissingRetryDataError) Error() string {
	return fmt.Sprintf("cannot retry %s: missing %s", e.ID, e.Field)
}

// NotResumableError reports that a case job has nothing to resume from.
type NotResumableError struct {
	ID     string
	Reason string
}

func (e *NotResumableError) Error() string {
	return fmt.Sprintf("cannot resume %s: %s", e.ID, e.Reason)
}

// Engine relaunches jobs through the launcher after purging stale state.
type Engine struct {
	launcher *launcher.Launcher
	logger   *zap.Logger
}

func New(l *launcher.Launcher, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{launcher: l, logger: logger}
}

// Retry relaunches the job behind id, which may be active or historical.
// Overrides are decoded onto the retained snapshot before reconstruction so
// callers can point the relaunch at a different registry or auth file.
func (e *Engine) Retry(id string, overrides map[string]any) (jobregistry.Snapshot, error) {
	component, version, name, cfg, err := e.lookup(id)
	if err != nil {
		return jobregistry.Snapshot{}, err
	}

	if len(overrides) > 0 {
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{Result: &cfg})
		if err != nil {
			return jobregistry.Snapshot{}, err
		}
		if err := dec.Decode(overrides); err != nil {
			return jobregistry.Snapshot{}, &launcher.ConfigError{Field: "overrides", Reason: err.Error()}
		}
	}

	switch jobregistry.KindForComponent(component) {
	case jobregistry.KindPlatform:
		if version == "" {
			return jobregistry.Snapshot{}, &MissingRetryDataError{ID: id, Field: "version"}
		}
		cfg.DryRun = false

	case jobregistry.KindCatalog:
		if cfg.CatalogVersion == "" {
			// Older records carry only the prefixed display version.
			if strings.HasPrefix(version, "v") {
				cfg.CatalogVersion = strings.TrimPrefix(version, "v")
			} else {
				return jobregistry.Snapshot{}, &MissingRetryDataError{ID: id, Field: "catalog_version"}
			}
		}
		cfg.IgnoreHistory = true

	case jobregistry.KindCase:
		if !cfg.ForceRetry {
			if reason, ok := resumable(component, version, name, cfg); !ok {
				return jobregistry.Snapshot{}, &NotResumableError{ID: id, Reason: reason}
			}
		}
		cfg.Resume = true
	}

	// Purge every active job and history entry for the logical name so the
	// relaunch does not sit next to its own stale records.
	removed := e.launcher.Registry().RemoveByName(name)
	purged := e.launcher.History().RemoveByName(name)
	e.logger.Info("purged stale job state",
		zap.String("name", name),
		zap.Int("active_removed", len(removed)),
		zap.Int("history_removed", purged),
	)

	newID := fmt.Sprintf("%s-retry-%d", name, time.Now().Unix())
	return e.launcher.LaunchWithID(newID, component, version, name, cfg)
}

// lookup resolves the job's identity and snapshot from the active registry
// first, then the history store.
func (e *Engine) lookup(id string) (component, version, name string, cfg jobregistry.ConfigSnapshot, err error) {
	if snap, ok := e.launcher.Registry().Get(id); ok {
		return snap.Component, snap.Version, snap.Name, snap.Config, nil
	}
	if entry, ok := e.launcher.History().FindByID(id); ok {
		return entry.Component, entry.Version, entry.Name, entry.Config, nil
	}
	return "", "", "", jobregistry.ConfigSnapshot{}, &jobregistry.NotFoundError{ID: id}
}

// resumable checks for the downloader's mapping feasibility marker: without
// an images-mapping file from the earlier run there is nothing for the
// resume flag to skip.
func resumable(component, version, name string, cfg jobregistry.ConfigSnapshot) (string, bool) {
	candidates := []string{
		filepath.Join(cfg.HomeDir, ".ibm-pak", "data", "mirror", component, version, "images-mapping-to-filesystem.txt"),
		filepath.Join(cfg.HomeDir, name, "mapping.txt"),
	}
	for _, path := range candidates {
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return "", true
		}
	}
	return "no images-mapping file from a previous run", false
}
