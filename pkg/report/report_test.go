package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testInput(home string) Input {
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	return Input{
		Component:        "ibm-mq",
		Version:          "9.4.0",
		Name:             "mq-prod",
		Status:           "completed",
		PID:              4242,
		ExitCode:         0,
		StartTime:        start,
		EndTime:          start.Add(5 * time.Minute),
		HomeDir:          home,
		FinalRegistry:    "registry.example.com:5000",
		RegistryAuthFile: "/root/.docker/config.json",
		LogPath:          filepath.Join(home, "mq-prod", "mq-prod-download.log"),
	}
}

func TestWrite_CompletedJob(t *testing.T) {
	home := t.TempDir()
	workDir := filepath.Join(home, "mq-prod")
	require.NoError(t, os.MkdirAll(workDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(workDir, "image-a.tar"), make([]byte, 2048), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(workDir, "mq-prod-download.log"), []byte("info: mirroring completed\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(workDir, "mapping.txt"), []byte("# header\nsrc=dst\nsrc2=dst2\n\n"), 0o644))

	path, err := Write(testInput(home))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "mq-prod-summary-report.txt"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)

	assert.Contains(t, content, "Status:                 COMPLETED")
	assert.Contains(t, content, "Image Files (.tar):     1")
	assert.Contains(t, content, "  - Images Listed:      2")
	assert.Contains(t, content, "Duration:               5m0s")
	assert.NotContains(t, content, "ERROR DETAILS")
}

func TestWrite_FailedJobIncludesErrorExcerpt(t *testing.T) {
	home := t.TempDir()
	workDir := filepath.Join(home, "mq-prod")
	require.NoError(t, os.MkdirAll(workDir, 0o755))

	log := strings.Join([]string{
		"info: copying images",
		"error: manifest unknown for cp.icr.io/cp/ibm-mq",
		"info: retrying",
		"error: one or more errors occurred",
	}, "\n") + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(workDir, "mq-prod-download.log"), []byte(log), 0o644))

	in := testInput(home)
	in.Status = "failed"
	in.ExitCode = 1

	path, err := Write(in)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)

	assert.Contains(t, content, "ERROR DETAILS")
	assert.Contains(t, content, "error: manifest unknown")
	assert.Contains(t, content, "Exit Code:              1")
}

func TestWrite_MissingWorkDir(t *testing.T) {
	home := t.TempDir()
	in := testInput(home)
	in.Name = "never-started"
	in.EndTime = time.Time{}
	in.LogPath = filepath.Join(home, "never-started", "never-started-download.log")

	path, err := Write(in)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)

	assert.Contains(t, content, "Directory Exists:       No")
	assert.Contains(t, content, "End Time:               N/A")
	assert.Contains(t, content, "Duration:               N/A")
}

func TestHumanSize(t *testing.T) {
	assert.Equal(t, "512 B", humanSize(512))
	assert.Equal(t, "2.00 KB", humanSize(2048))
	assert.Equal(t, "1.50 MB", humanSize(1572864))
	assert.Equal(t, "1.00 GB", humanSize(1073741824))
}
