package scheduler

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCommand struct {
	sessionID uint64
	priority  int
	packetID  uint64
	results   []CommandResult
	errs      []error
	calls     int
}

func (c *fakeCommand) Advance() (CommandResult, error) {
	i := c.calls
	if i >= len(c.results) {
		i = len(c.results) - 1
	}
	c.calls++
	var err error
	if i < len(c.errs) {
		err = c.errs[i]
	}
	return c.results[i], err
}

func (c *fakeCommand) Priority() int     { return c.priority }
func (c *fakeCommand) SetPriority(p int) { c.priority = p }
func (c *fakeCommand) PacketID() uint64  { return c.packetID }
func (c *fakeCommand) SessionID() uint64 { return c.sessionID }

func TestDispatcher_PicksHighestPriority(t *testing.T) {
	r := NewSessionRegistry()
	low := NewSession(1, 1)
	high := NewSession(2, 2)
	r.AddSession(low)
	r.AddSession(high)

	_ = low.EnqueueCommand(&fakeCommand{sessionID: 1, priority: 1, results: []CommandResult{CommandDone}})
	_ = high.EnqueueCommand(&fakeCommand{sessionID: 2, priority: 9, results: []CommandResult{CommandDone}})

	d := NewDispatcher(r, nil)
	session, cmd := d.getNextBestCommand(nil, minPriority, true)
	assert.Same(t, high, session)
	assert.Equal(t, 9, cmd.Priority())
}

func TestDispatcher_StrictGreaterTieBreaksOnRegistryOrder(t *testing.T) {
	r := NewSessionRegistry()
	first := NewSession(1, 1)
	second := NewSession(2, 2)
	r.AddSession(first)
	r.AddSession(second)

	_ = first.EnqueueCommand(&fakeCommand{sessionID: 1, priority: 5, results: []CommandResult{CommandDone}})
	_ = second.EnqueueCommand(&fakeCommand{sessionID: 2, priority: 5, results: []CommandResult{CommandDone}})

	d := NewDispatcher(r, nil)
	session, _ := d.getNextBestCommand(nil, minPriority, true)
	assert.Same(t, first, session)
}

func TestDispatcher_ExcludesGivenSession(t *testing.T) {
	r := NewSessionRegistry()
	excluded := NewSession(1, 1)
	other := NewSession(2, 2)
	r.AddSession(excluded)
	r.AddSession(other)

	_ = excluded.EnqueueCommand(&fakeCommand{sessionID: 1, priority: 50, results: []CommandResult{CommandDone}})
	_ = other.EnqueueCommand(&fakeCommand{sessionID: 2, priority: 1, results: []CommandResult{CommandDone}})

	d := NewDispatcher(r, nil)
	session, cmd := d.getNextBestCommand(excluded, minPriority, true)
	assert.Same(t, other, session)
	assert.Equal(t, 1, cmd.Priority())
}

func TestDispatcher_MinPriorityExcludesTiedOrLowerCommands(t *testing.T) {
	r := NewSessionRegistry()
	s := NewSession(1, 1)
	r.AddSession(s)
	_ = s.EnqueueCommand(&fakeCommand{sessionID: 1, priority: 5, results: []CommandResult{CommandDone}})

	d := NewDispatcher(r, nil)
	_, cmd := d.getNextBestCommand(nil, 5, true)
	assert.Nil(t, cmd, "priority equal to minPriority is not strictly greater")
}

func TestDispatcher_YieldedCommandStaysAtFrontForNextPass(t *testing.T) {
	r := NewSessionRegistry()
	s := NewSession(1, 1)
	r.AddSession(s)
	cmd := &fakeCommand{sessionID: 1, priority: 1, results: []CommandResult{CommandYielded, CommandDone}}
	_ = s.EnqueueCommand(cmd)

	d := NewDispatcher(r, nil)
	require.True(t, d.executeNextStatement())
	front, ok := s.frontCommand()
	require.True(t, ok)
	assert.Same(t, cmd, front)

	require.True(t, d.executeNextStatement())
	_, ok = s.frontCommand()
	assert.False(t, ok)
}

func TestDispatcher_ErrorCommandInvokesOnErrorAndIsDropped(t *testing.T) {
	r := NewSessionRegistry()
	s := NewSession(1, 1)
	r.AddSession(s)
	wantErr := errors.New("boom")
	cmd := &fakeCommand{sessionID: 1, priority: 1, packetID: 42, results: []CommandResult{CommandError}, errs: []error{wantErr}}
	_ = s.EnqueueCommand(cmd)

	var gotPacket uint64
	var gotErr error
	d := NewDispatcher(r, func(packetID uint64, err error) {
		gotPacket, gotErr = packetID, err
	})

	require.True(t, d.executeNextStatement())
	assert.Equal(t, uint64(42), gotPacket)
	assert.ErrorIs(t, gotErr, wantErr)
	_, ok := s.frontCommand()
	assert.False(t, ok)
}

func TestDispatcher_ClosedSessionIsSkipped(t *testing.T) {
	r := NewSessionRegistry()
	s := NewSession(1, 1)
	r.AddSession(s)
	_ = s.EnqueueCommand(&fakeCommand{sessionID: 1, priority: 100, results: []CommandResult{CommandDone}})
	s.MarkClosed()

	d := NewDispatcher(r, nil)
	assert.False(t, d.executeNextStatement())
}

func TestDispatcher_RunPassStopsWhenIdle(t *testing.T) {
	r := NewSessionRegistry()
	s := NewSession(1, 1)
	r.AddSession(s)
	_ = s.EnqueueCommand(&fakeCommand{sessionID: 1, priority: 1, results: []CommandResult{CommandDone}})

	d := NewDispatcher(r, nil)
	ran := d.RunPass(0)
	assert.Equal(t, 1, ran)
}

func TestDispatcher_RunPassRespectsMaxSteps(t *testing.T) {
	r := NewSessionRegistry()
	s := NewSession(1, 1)
	r.AddSession(s)
	_ = s.EnqueueCommand(&fakeCommand{sessionID: 1, priority: 1, results: []CommandResult{CommandYielded, CommandYielded, CommandDone}})

	d := NewDispatcher(r, nil)
	ran := d.RunPass(2)
	assert.Equal(t, 2, ran)
}

func TestDispatcher_StashedCommandConsumedBeforeRescan(t *testing.T) {
	r := NewSessionRegistry()
	low := NewSession(1, 1)
	high := NewSession(2, 2)
	r.AddSession(low)
	r.AddSession(high)

	lowCmd := &fakeCommand{sessionID: 1, priority: 100, results: []CommandResult{CommandDone}}
	stashed := &fakeCommand{sessionID: 2, priority: 1, results: []CommandResult{CommandDone}}
	_ = low.EnqueueCommand(lowCmd)
	_ = high.EnqueueCommand(stashed)

	d := NewDispatcher(r, nil)
	d.stashNextBest(high, stashed)

	require.True(t, d.executeNextStatement())
	_, ok := high.frontCommand()
	assert.False(t, ok, "stashed command should run first despite lower priority")
	_, ok = low.frontCommand()
	assert.True(t, ok, "higher priority command is untouched until next pass")
}

func TestDispatcher_TimedOutSessionSkippedDuringSelection(t *testing.T) {
	orig := now
	defer func() { now = orig }()
	base := time.Unix(1000, 0)
	now = func() time.Time { return base }

	r := NewSessionRegistry()
	s := NewSession(1, 1)
	r.AddSession(s)

	var gotPacket uint64
	var gotErr error
	s.OnSendError(func(packetID uint64, err error) { gotPacket, gotErr = packetID, err })

	cmd := &fakeCommand{sessionID: 1, priority: 5, packetID: 7, results: []CommandResult{CommandDone}}
	_ = s.EnqueueCommand(cmd)

	now = func() time.Time { return base.Add(time.Hour) }

	d := NewDispatcher(r, nil)
	d.SetSessionIdleTimeout(time.Minute)

	session, got := d.getNextBestCommand(nil, minPriority, true)
	assert.Nil(t, session)
	assert.Nil(t, got)
	assert.Equal(t, uint64(7), gotPacket)
	assert.ErrorIs(t, gotErr, ErrSessionTimeout)
	assert.True(t, s.IsClosed())
}
