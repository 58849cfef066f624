package supervise

import (
	"sync"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryFirstWriterWins(t *testing.T) {
	reg := NewRegistry()

	require.True(t, reg.Record(42, Exited(3)))
	require.False(t, reg.Record(42, Signaled(syscall.SIGKILL, false)))
	require.False(t, reg.Record(42, Exited(3)))

	got, ok := reg.Query(42)
	require.True(t, ok)
	assert.Equal(t, Exited(3), got)
	assert.Equal(t, 1, reg.Len())
	assert.Len(t, reg.All(), 1)
}

func TestRegistryQueryMissing(t *testing.T) {
	reg := NewRegistry()
	_, ok := reg.Query(7)
	assert.False(t, ok)
	assert.Empty(t, reg.All())
}

func TestRegistryConcurrentRecord(t *testing.T) {
	reg := NewRegistry()
	var wg sync.WaitGroup
	wins := make(chan int, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(code int) {
			defer wg.Done()
			if reg.Record(99, Exited(code)) {
				wins <- code
			}
		}(i)
	}
	wg.Wait()
	close(wins)

	var winners []int
	for code := range wins {
		winners = append(winners, code)
	}
	require.Len(t, winners, 1)
	got, _ := reg.Query(99)
	assert.Equal(t, winners[0], got.Code)
}
