package services

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReloadScheduler_FiresAfterDelay(t *testing.T) {
	t.Parallel()
	clock := clockwork.NewFakeClock()
	var fired atomic.Int32
	s := NewReloadScheduler(clock, time.Second, func() { fired.Add(1) })

	s.Schedule()
	due, ok := s.Due()
	require.True(t, ok)
	assert.Equal(t, clock.Now().Add(time.Second), due)

	clock.Advance(999 * time.Millisecond)
	assert.Never(t, func() bool { return fired.Load() > 0 }, 30*time.Millisecond, 5*time.Millisecond)

	clock.Advance(time.Millisecond)
	require.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.False(t, s.Pending())
}

func TestReloadScheduler_RescheduleReplaces(t *testing.T) {
	t.Parallel()
	clock := clockwork.NewFakeClock()
	var fired atomic.Int32
	s := NewReloadScheduler(clock, time.Second, func() { fired.Add(1) })

	s.Schedule()
	clock.Advance(600 * time.Millisecond)
	s.Schedule()
	clock.Advance(600 * time.Millisecond)
	assert.Never(t, func() bool { return fired.Load() > 0 }, 30*time.Millisecond, 5*time.Millisecond)

	clock.Advance(400 * time.Millisecond)
	require.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, 5*time.Millisecond)
}

func TestReloadScheduler_CancelAndClose(t *testing.T) {
	t.Parallel()
	clock := clockwork.NewFakeClock()
	var fired atomic.Int32
	s := NewReloadScheduler(clock, time.Second, func() { fired.Add(1) })

	s.Schedule()
	s.Cancel()
	assert.False(t, s.Pending())

	s.Close()
	s.Schedule()
	assert.False(t, s.Pending())
	clock.Advance(2 * time.Second)
	assert.Never(t, func() bool { return fired.Load() > 0 }, 30*time.Millisecond, 5*time.Millisecond)
}
