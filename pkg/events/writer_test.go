package events

import (
	"bufio"
	"bytes"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriter_RecordEnvelope(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, "mq-100", "run-1")

	require.NoError(t, w.WriteLaunched("ibm-mq", "9.4.0", 4242))
	require.NoError(t, w.WriteProgress("progressing", 15))
	require.NoError(t, w.WriteTerminal("completed", 0))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)

	var rec Record
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, TypeLaunched, rec.Type)
	assert.Equal(t, "mq-100", rec.JobID)
	assert.Equal(t, "run-1", rec.RunID)
	assert.False(t, rec.TS.IsZero())

	var launched LaunchedRecord
	require.NoError(t, json.Unmarshal(rec.Data, &launched))
	assert.Equal(t, 4242, launched.PID)

	require.NoError(t, json.Unmarshal([]byte(lines[2]), &rec))
	assert.Equal(t, TypeTerminal, rec.Type)
	var term TerminalRecord
	require.NoError(t, json.Unmarshal(rec.Data, &term))
	assert.Equal(t, "completed", term.Status)
	assert.Equal(t, 0, term.ExitCode)
}

func TestWriter_ClosedWriterRejects(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, "mq-100", "run-1")
	require.NoError(t, w.Close())
	assert.ErrorIs(t, w.WriteProgress("progressing", 5), ErrWriterClosed)
}

func TestWriter_ConcurrentLinesNotInterleaved(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, "mq-100", "run-1")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			_ = w.WriteProgress("progressing", p)
		}(i)
	}
	wg.Wait()

	sc := bufio.NewScanner(bytes.NewReader(buf.Bytes()))
	n := 0
	for sc.Scan() {
		var rec Record
		require.NoError(t, json.Unmarshal(sc.Bytes(), &rec), "line %d is not valid JSON", n)
		n++
	}
	assert.Equal(t, 20, n)
}
