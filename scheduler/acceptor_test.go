package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeAcceptorManager struct {
	fds map[int]int
}

func (f *fakeAcceptorManager) TryClaim(listenerID int, schedulerID uint64) (int, bool) {
	fd, ok := f.fds[listenerID]
	return fd, ok
}

func TestAcceptorBridge_TryAcceptAllInvokesCallbackOnClaimWithFD(t *testing.T) {
	mgr := &fakeAcceptorManager{fds: map[int]int{1: 42}}
	var claimedListeners []int
	var claimedFDs []int
	a := newAcceptorBridge(mgr, 7, func(listenerID, fd int) {
		claimedListeners = append(claimedListeners, listenerID)
		claimedFDs = append(claimedFDs, fd)
	})

	a.Watch(1)
	a.Watch(2)
	a.TryAcceptAll()

	assert.Equal(t, []int{1}, claimedListeners)
	assert.Equal(t, []int{42}, claimedFDs)
}

func TestAcceptorBridge_WatchDeduplicates(t *testing.T) {
	mgr := &fakeAcceptorManager{fds: map[int]int{1: 1}}
	var calls int
	a := newAcceptorBridge(mgr, 1, func(int, int) { calls++ })

	a.Watch(1)
	a.Watch(1)
	a.TryAcceptAll()

	assert.Equal(t, 1, calls)
}

func TestAcceptorBridge_NilManagerIsNoOp(t *testing.T) {
	a := newAcceptorBridge(nil, 1, func(int, int) { t.Fatal("should not be called") })
	a.Watch(1)
	a.TryAcceptAll()
}
