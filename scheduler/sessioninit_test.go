package scheduler

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPendingSessionInits_CompletesOnFirstSuccess(t *testing.T) {
	p := newPendingSessionInits(nil)
	var completed *SessionInitTask
	var gotSession *Session
	want := NewSession(9, 5)
	task := &SessionInitTask{FD: 5, Attempt: func() (SessionInitResult, *Session, error) {
		return SessionInitComplete, want, nil
	}}
	p.Submit(task)

	ran := p.RunOne(func(t *SessionInitTask, sess *Session) { completed, gotSession = t, sess }, nil)
	require.True(t, ran)
	require.NotNil(t, completed)
	assert.Equal(t, 5, completed.FD)
	assert.Same(t, want, gotSession)
	assert.Equal(t, 0, p.Len())
}

func TestPendingSessionInits_RetryRequeuesAtTail(t *testing.T) {
	p := newPendingSessionInits(nil)
	attempts := 0
	task := &SessionInitTask{FD: 1, Attempt: func() (SessionInitResult, *Session, error) {
		attempts++
		if attempts < 3 {
			return SessionInitRetry, nil, nil
		}
		return SessionInitComplete, NewSession(1, 1), nil
	}}
	p.Submit(task)

	for i := 0; i < 2; i++ {
		ran := p.RunOne(func(*SessionInitTask, *Session) {}, nil)
		require.True(t, ran)
		assert.Equal(t, 1, p.Len())
	}

	var completed *SessionInitTask
	require.True(t, p.RunOne(func(t *SessionInitTask, sess *Session) { completed = t }, nil))
	require.NotNil(t, completed)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 0, p.Len())
}

func TestPendingSessionInits_FailurePropagatesAndDrops(t *testing.T) {
	p := newPendingSessionInits(nil)
	wantErr := errors.New("auth rejected")
	p.Submit(&SessionInitTask{FD: 2, Attempt: func() (SessionInitResult, *Session, error) {
		return SessionInitFailed, nil, wantErr
	}})

	var gotErr error
	ran := p.RunOne(nil, func(task *SessionInitTask, err error) { gotErr = err })
	require.True(t, ran)
	assert.ErrorIs(t, gotErr, wantErr)
	assert.Equal(t, 0, p.Len())
}

func TestPendingSessionInits_RunOneFalseWhenEmpty(t *testing.T) {
	p := newPendingSessionInits(nil)
	assert.False(t, p.RunOne(func(*SessionInitTask, *Session) {}, func(*SessionInitTask, error) {}))
}

func TestPendingSessionInits_RespectsValidatorAdmission(t *testing.T) {
	v := NewSessionValidator(9, map[time.Duration]int{time.Second: 1000})
	v.permits.Store(0)

	p := newPendingSessionInits(v)
	attempted := false
	p.Submit(&SessionInitTask{FD: 1, Attempt: func() (SessionInitResult, *Session, error) {
		attempted = true
		return SessionInitComplete, NewSession(1, 1), nil
	}})

	ran := p.RunOne(func(*SessionInitTask, *Session) {}, func(*SessionInitTask, error) {})
	assert.False(t, ran)
	assert.False(t, attempted)
	assert.Equal(t, 1, p.Len())
}
