package utils

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLockerExclusive(t *testing.T) {
	ml := NewMemoryLocker()

	unlock, ok, err := ml.TryLock("transmission", 1)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = ml.TryLock("transmission", 1)
	require.NoError(t, err)
	assert.False(t, ok, "second acquisition must be refused while held")

	unlock()

	unlock2, ok, err := ml.TryLock("transmission", 1)
	require.NoError(t, err)
	assert.True(t, ok, "released lock must be acquirable again")
	unlock2()
}

func TestMemoryLockerScopesDoNotCollide(t *testing.T) {
	ml := NewMemoryLocker()

	unlockT, ok, err := ml.TryLock("transmission", 9)
	require.NoError(t, err)
	require.True(t, ok)
	defer unlockT()

	unlockF, ok, err := ml.TryLock("funnel", 9)
	require.NoError(t, err)
	assert.True(t, ok, "same id under a different scope is a different lock")
	defer unlockF()
}

func TestMemoryLockerAtMostOneWinner(t *testing.T) {
	ml := NewMemoryLocker()

	var wg sync.WaitGroup
	winners := make(chan Unlock, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, ok, err := ml.TryLock("funnel", 3)
			if err == nil && ok {
				winners <- unlock
			}
		}()
	}
	wg.Wait()
	close(winners)

	count := 0
	for unlock := range winners {
		count++
		unlock()
	}
	assert.Equal(t, 1, count)
}
