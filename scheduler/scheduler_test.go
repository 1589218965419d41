package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()
	s, err := New(Config{
		ID:             1,
		SchedulerCount: 1,
		ValidatorRates: map[time.Duration]int{time.Second: 100},
	})
	require.NoError(t, err)
	t.Cleanup(func() { s.Stop() })
	return s
}

func TestScheduler_GetLoadCountsSessionsAndQueues(t *testing.T) {
	s := newTestScheduler(t)
	assert.Equal(t, 0, s.GetLoad())

	s.AddSession(NewSession(1, 1))
	s.SubmitMiscTask(func() {})
	assert.Equal(t, 2, s.GetLoad())
}

func TestScheduler_IteratePasses(t *testing.T) {
	s := newTestScheduler(t)

	var ranPeriodic bool
	s.AddPeriodicTask(func() { ranPeriodic = true })

	sess := NewSession(1, -1)
	s.AddSession(sess)
	require.NoError(t, sess.EnqueueCommand(&fakeCommand{sessionID: 1, priority: 1, results: []CommandResult{CommandDone}}))

	err := s.Iterate(0)
	require.NoError(t, err)
	assert.True(t, ranPeriodic)

	_, ok := sess.frontCommand()
	assert.False(t, ok)
}

func TestScheduler_StopPreventsFurtherIteration(t *testing.T) {
	s := newTestScheduler(t)
	s.Stop()
	err := s.Iterate(0)
	assert.ErrorIs(t, err, ErrSchedulerStopped)
}

func TestScheduler_PeriodicTaskSkippedOnceStopObservedWithinIteration(t *testing.T) {
	s := newTestScheduler(t)
	var ranPeriodic bool
	s.AddPeriodicTask(func() { ranPeriodic = true })
	s.SubmitMiscTask(func() { s.Stop() })

	require.NoError(t, s.Iterate(0))
	assert.False(t, ranPeriodic)
}

func TestScheduler_ValidateSessionDelegatesToValidator(t *testing.T) {
	s := newTestScheduler(t)
	err := s.ValidateSession(true)
	assert.NoError(t, err)
}
