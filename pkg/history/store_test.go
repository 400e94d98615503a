package history

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pakmirror/pakmirror/pkg/jobregistry"
)

func entry(id, name string, status jobregistry.Status) Entry {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	return Entry{
		ID:        id,
		Component: "ibm-mq",
		Version:   "9.4.0",
		Name:      name,
		Status:    status,
		StartTime: now,
		EndTime:   now.Add(5 * time.Minute),
	}
}

func TestStore_AppendIdempotentByID(t *testing.T) {
	s := NewStore()

	require.True(t, s.Append(entry("mq-100", "mq", jobregistry.StatusCompleted)))

	// Second terminal record for the same job id must be a no-op,
	// whichever path produced it.
	assert.False(t, s.Append(entry("mq-100", "mq", jobregistry.StatusDismissed)))

	require.Equal(t, 1, s.Len())
	got, ok := s.FindByID("mq-100")
	require.True(t, ok)
	assert.Equal(t, jobregistry.StatusCompleted, got.Status)
}

func TestStore_AppendConcurrentSameID(t *testing.T) {
	s := NewStore()

	var wg sync.WaitGroup
	var stored int32
	results := make(chan bool, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- s.Append(entry("mq-100", "mq", jobregistry.StatusFailed))
		}()
	}
	wg.Wait()
	close(results)

	for ok := range results {
		if ok {
			stored++
		}
	}
	assert.EqualValues(t, 1, stored, "exactly one append must win")
	assert.Equal(t, 1, s.Len())
}

func TestStore_RemoveByName(t *testing.T) {
	s := NewStore()
	s.Append(entry("mq-100", "mq", jobregistry.StatusFailed))
	s.Append(entry("mq-200", "mq", jobregistry.StatusDismissed))
	s.Append(entry("nav-100", "nav", jobregistry.StatusCompleted))

	assert.Equal(t, 2, s.RemoveByName("mq"))
	assert.Equal(t, 1, s.Len())

	_, ok := s.FindByID("mq-100")
	assert.False(t, ok)

	// A removed id can be appended again (retry mints new ids anyway, but
	// the store must not remember tombstones).
	assert.True(t, s.Append(entry("mq-100", "mq", jobregistry.StatusCompleted)))
}

func TestStore_ListTerminationOrder(t *testing.T) {
	s := NewStore()
	for i := 0; i < 5; i++ {
		s.Append(entry(fmt.Sprintf("mq-%d", i), "mq", jobregistry.StatusCompleted))
	}

	list := s.List()
	require.Len(t, list, 5)
	for i, e := range list {
		assert.Equal(t, fmt.Sprintf("mq-%d", i), e.ID)
	}
}
