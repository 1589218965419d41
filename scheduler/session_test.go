package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_QueueAndRunTasks(t *testing.T) {
	s := NewSession(1, 10)
	var ran []int
	s.QueueTask(func() { ran = append(ran, 1) })
	s.QueueTask(func() { ran = append(ran, 2) })

	s.runSessionTasks()
	assert.Equal(t, []int{1, 2}, ran)
}

func TestSession_RunSessionTasksOnlyDrainsCurrentPass(t *testing.T) {
	s := NewSession(1, 10)
	var ran []int
	s.QueueTask(func() {
		ran = append(ran, 1)
		s.QueueTask(func() { ran = append(ran, 2) })
	})

	s.runSessionTasks()
	assert.Equal(t, []int{1}, ran)

	s.runSessionTasks()
	assert.Equal(t, []int{1, 2}, ran)
}

func TestSession_MarkClosed(t *testing.T) {
	s := NewSession(1, 10)
	assert.False(t, s.IsClosed())
	s.MarkClosed()
	assert.True(t, s.IsClosed())
}

func TestSessionRegistry_AddGetRemove(t *testing.T) {
	r := NewSessionRegistry()
	s1 := NewSession(1, 10)
	s2 := NewSession(2, 11)

	r.AddSession(s1)
	r.AddSession(s2)
	require.Equal(t, 2, r.Len())

	got, ok := r.Get(1)
	require.True(t, ok)
	assert.Same(t, s1, got)

	require.NoError(t, r.RemoveSession(1))
	assert.Equal(t, 1, r.Len())
	_, ok = r.Get(1)
	assert.False(t, ok)
}

func TestSessionRegistry_RemoveSessionNotFound(t *testing.T) {
	r := NewSessionRegistry()
	assert.ErrorIs(t, r.RemoveSession(99), ErrSessionNotFound)
}

func TestSession_EnqueueCommandRejectsWhenFull(t *testing.T) {
	s := NewSession(1, 10)
	for i := 0; i < maxQueuedCommands; i++ {
		require.NoError(t, s.EnqueueCommand(&fakeCommand{sessionID: 1, priority: 1, results: []CommandResult{CommandYielded}}))
	}
	assert.ErrorIs(t, s.EnqueueCommand(&fakeCommand{sessionID: 1, priority: 1, results: []CommandResult{CommandYielded}}), ErrQueueFull)
}

func TestSession_GetYieldableCommandSelfAbortsOnTimeout(t *testing.T) {
	orig := now
	defer func() { now = orig }()
	base := time.Unix(1000, 0)
	now = func() time.Time { return base }

	s := NewSession(1, 10)
	var gotPacket uint64
	var gotErr error
	s.OnSendError(func(packetID uint64, err error) { gotPacket, gotErr = packetID, err })
	cmd := &fakeCommand{sessionID: 1, priority: 1, packetID: 5, results: []CommandResult{CommandDone}}
	require.NoError(t, s.EnqueueCommand(cmd))

	now = func() time.Time { return base.Add(time.Hour) }

	got, ok := s.GetYieldableCommand(true, time.Minute)
	assert.False(t, ok)
	assert.Nil(t, got)
	assert.True(t, s.IsClosed())
	assert.Equal(t, uint64(5), gotPacket)
	assert.ErrorIs(t, gotErr, ErrSessionTimeout)
}

func TestSession_GetYieldableCommandIgnoresTimeoutWhenNotChecking(t *testing.T) {
	orig := now
	defer func() { now = orig }()
	base := time.Unix(1000, 0)
	now = func() time.Time { return base }

	s := NewSession(1, 10)
	cmd := &fakeCommand{sessionID: 1, priority: 1, results: []CommandResult{CommandDone}}
	require.NoError(t, s.EnqueueCommand(cmd))

	now = func() time.Time { return base.Add(time.Hour) }

	got, ok := s.GetYieldableCommand(false, time.Minute)
	assert.True(t, ok)
	assert.Same(t, Command(cmd), got)
	assert.False(t, s.IsClosed())
}

func TestSession_ClearQueryCache(t *testing.T) {
	s := NewSession(1, 10)
	var called bool
	s.OnClearQueryCache(func() { called = true })
	s.ClearQueryCache()
	assert.True(t, called)
}

func TestSessionRegistry_ForEachIsInsertionOrder(t *testing.T) {
	r := NewSessionRegistry()
	ids := []uint64{3, 1, 2}
	for _, id := range ids {
		r.AddSession(NewSession(id, int(id)))
	}

	var seen []uint64
	r.ForEach(func(s *Session) { seen = append(seen, s.ID) })
	assert.Equal(t, ids, seen)
}

func TestSessionRegistry_ForEachSkipsTombstones(t *testing.T) {
	r := NewSessionRegistry()
	r.AddSession(NewSession(1, 1))
	r.AddSession(NewSession(2, 2))
	r.RemoveSession(1)

	var seen []uint64
	r.ForEach(func(s *Session) { seen = append(seen, s.ID) })
	assert.Equal(t, []uint64{2}, seen)
}

func TestSessionRegistry_CompactOrder(t *testing.T) {
	r := NewSessionRegistry()
	r.AddSession(NewSession(1, 1))
	r.AddSession(NewSession(2, 2))
	r.RemoveSession(1)
	require.Len(t, r.order, 2)

	r.CompactOrder()
	assert.Len(t, r.order, 1)
}

func TestSessionRegistry_CheckSessionTimeout(t *testing.T) {
	orig := now
	defer func() { now = orig }()

	base := time.Unix(1000, 0)
	now = func() time.Time { return base }

	r := NewSessionRegistry()
	s := NewSession(1, 1)
	r.AddSession(s)

	now = func() time.Time { return base.Add(time.Hour) }

	var timedOut []uint64
	r.checkSessionTimeout(time.Minute, func(sess *Session) {
		timedOut = append(timedOut, sess.ID)
	})

	assert.Equal(t, []uint64{1}, timedOut)
	assert.True(t, s.IsClosed())
	assert.Equal(t, 0, r.Len())
}

func TestSessionRegistry_CheckSessionTimeoutDisabledWhenZero(t *testing.T) {
	r := NewSessionRegistry()
	r.AddSession(NewSession(1, 1))

	var timedOut []uint64
	r.checkSessionTimeout(0, func(sess *Session) {
		timedOut = append(timedOut, sess.ID)
	})

	assert.Empty(t, timedOut)
	assert.Equal(t, 1, r.Len())
}
