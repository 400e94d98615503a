package retry

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/pakmirror/pakmirror/pkg/history"
	"github.com/pakmirror/pakmirror/pkg/jobregistry"
	"github.com/pakmirror/pakmirror/pkg/launcher"
	"github.com/pakmirror/pakmirror/pkg/monitor"
)

type harness struct {
	home string
	reg  *jobregistry.Registry
	hist *history.Store
	eng  *Engine
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	home := t.TempDir()
	reg := jobregistry.New()
	hist := history.NewStore()
	logger := zaptest.NewLogger(t)
	mon := monitor.New(reg, hist, logger)
	mon.Interval = 20 * time.Millisecond
	mon.Grace = 20 * time.Millisecond
	l := launcher.New(reg, hist, mon, logger, []string{"/bin/sh", "-c", "sleep 3"})
	return &harness{home: home, reg: reg, hist: hist, eng: New(l, logger)}
}

func (h *harness) failedEntry(id, component, version, name string, cfg jobregistry.ConfigSnapshot) history.Entry {
	entry := history.Entry{
		ID:        id,
		Component: component,
		Version:   version,
		Name:      name,
		Kind:      jobregistry.KindForComponent(component),
		Status:    jobregistry.StatusFailed,
		StartTime: time.Now().UTC().Add(-time.Hour),
		EndTime:   time.Now().UTC(),
		ExitCode:  1,
		Config:    cfg,
	}
	h.hist.Append(entry)
	return entry
}

func caseConfig(home string) jobregistry.ConfigSnapshot {
	return jobregistry.ConfigSnapshot{
		HomeDir:          home,
		FinalRegistry:    "registry.example.com:5000",
		RegistryAuthFile: "/root/.docker/config.json",
	}
}

func writeMappingMarker(t *testing.T, home, name string) {
	t.Helper()
	dir := filepath.Join(home, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "mapping.txt"), []byte("src=dst\n"), 0o644))
}

func TestRetry_UnknownID(t *testing.T) {
	h := newHarness(t)
	_, err := h.eng.Retry("nope", nil)
	var notFound *jobregistry.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestRetry_CaseResumeWithMarker(t *testing.T) {
	h := newHarness(t)
	h.failedEntry("mq-prod-100", "ibm-mq", "9.4.0", "mq-prod", caseConfig(h.home))
	writeMappingMarker(t, h.home, "mq-prod")

	snap, err := h.eng.Retry("mq-prod-100", nil)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(snap.ID, "mq-prod-retry-"))
	assert.True(t, snap.Config.Resume, "case retry must carry the resume flag")

	// Old history entry purged, only the relaunched job remains active.
	_, ok := h.hist.FindByID("mq-prod-100")
	assert.False(t, ok)
	_, ok = h.reg.Get(snap.ID)
	assert.True(t, ok)
}

func TestRetry_CaseNotResumableWithoutMarker(t *testing.T) {
	h := newHarness(t)
	h.failedEntry("mq-prod-100", "ibm-mq", "9.4.0", "mq-prod", caseConfig(h.home))

	_, err := h.eng.Retry("mq-prod-100", nil)
	var notResumable *NotResumableError
	require.ErrorAs(t, err, &notResumable)

	// Nothing purged on a refused retry.
	_, ok := h.hist.FindByID("mq-prod-100")
	assert.True(t, ok)
}

func TestRetry_CaseForceRetryBypassesMarker(t *testing.T) {
	h := newHarness(t)
	cfg := caseConfig(h.home)
	cfg.ForceRetry = true
	h.failedEntry("mq-prod-100", "ibm-mq", "9.4.0", "mq-prod", cfg)

	snap, err := h.eng.Retry("mq-prod-100", nil)
	require.NoError(t, err)
	assert.True(t, snap.Config.Resume)
}

func TestRetry_OverridesApplied(t *testing.T) {
	h := newHarness(t)
	h.failedEntry("mq-prod-100", "ibm-mq", "9.4.0", "mq-prod", caseConfig(h.home))
	writeMappingMarker(t, h.home, "mq-prod")

	snap, err := h.eng.Retry("mq-prod-100", map[string]any{
		"final_registry": "other.example.com:5000",
	})
	require.NoError(t, err)
	assert.Equal(t, "other.example.com:5000", snap.Config.FinalRegistry)
	assert.Equal(t, h.home, snap.Config.HomeDir, "unoverridden fields come from the snapshot")
}

func TestRetry_CatalogStructuredRelaunch(t *testing.T) {
	h := newHarness(t)
	cfg := jobregistry.ConfigSnapshot{
		HomeDir:          h.home,
		RegistryAuthFile: "/root/.docker/config.json",
		CatalogVersion:   "4.16",
		Operators:        []string{"ibm-mq"},
	}
	h.failedEntry("operators-v4.16-100", "redhat-operators", "v4.16", "operators-v4.16", cfg)

	snap, err := h.eng.Retry("operators-v4.16-100", nil)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(snap.ID, "operators-v4.16-retry-"))
	assert.True(t, snap.Config.IgnoreHistory, "catalog retry adds the resume flag")

	// The relaunch rewrote the imageset configuration.
	_, statErr := os.Stat(filepath.Join(h.home, "imageset-config.yaml"))
	assert.NoError(t, statErr)
}

func TestRetry_CatalogVersionRecoveredFromDisplayVersion(t *testing.T) {
	h := newHarness(t)
	cfg := jobregistry.ConfigSnapshot{
		HomeDir:          h.home,
		RegistryAuthFile: "/root/.docker/config.json",
	}
	h.failedEntry("operators-v4.16-100", "redhat-operators", "v4.16", "operators-v4.16", cfg)

	snap, err := h.eng.Retry("operators-v4.16-100", nil)
	require.NoError(t, err)
	assert.Equal(t, "4.16", snap.Config.CatalogVersion)
}

func TestRetry_PlatformMissingVersion(t *testing.T) {
	h := newHarness(t)
	cfg := jobregistry.ConfigSnapshot{
		HomeDir:          h.home,
		FinalRegistry:    "registry.example.com:5000",
		RegistryAuthFile: "/root/.docker/config.json",
		LocalRepository:  "ocp4/openshift4",
	}
	h.failedEntry("ocp-100", "openshift", "", "ocp-x86_64", cfg)

	_, err := h.eng.Retry("ocp-100", nil)
	var missing *MissingRetryDataError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "version", missing.Field)
}

func TestRetry_PurgesActiveJobsSharingName(t *testing.T) {
	h := newHarness(t)
	writeMappingMarker(t, h.home, "mq-prod")

	// An active job under the same logical name.
	active := jobregistry.NewJob("mq-prod-50", "ibm-mq", "9.4.0", "mq-prod", caseConfig(h.home))
	require.NoError(t, h.reg.Insert(active))
	h.failedEntry("mq-prod-100", "ibm-mq", "9.4.0", "mq-prod", caseConfig(h.home))

	snap, err := h.eng.Retry("mq-prod-100", nil)
	require.NoError(t, err)

	_, ok := h.reg.Get("mq-prod-50")
	assert.False(t, ok, "active jobs sharing the name are removed before relaunch")
	_, ok = h.reg.Get(snap.ID)
	assert.True(t, ok)
}
