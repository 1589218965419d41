package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMemoryManager struct{ need bool }

func (f fakeMemoryManager) NeedFullGC() bool { return f.need }

type fakeTransactionEngine struct {
	pendingRuns int
	fullGCCalls []int
}

func (f *fakeTransactionEngine) RunPendingTransactions() { f.pendingRuns++ }

func (f *fakeTransactionEngine) FullGC(totalSchedulers, schedulerIndex int) {
	f.fullGCCalls = append(f.fullGCCalls, schedulerIndex)
}

func TestGCCoordinator_NoOpWhenMemoryManagerDoesNotRequestGC(t *testing.T) {
	engine := &fakeTransactionEngine{}
	g := newGCCoordinator(fakeMemoryManager{need: false}, engine, 4, 2)

	ranFull := g.RunIfNeeded(nil)
	assert.False(t, ranFull)
	assert.Empty(t, engine.fullGCCalls)
}

func TestGCCoordinator_RunsFullGCWhenMemoryManagerRequestsIt(t *testing.T) {
	engine := &fakeTransactionEngine{}
	g := newGCCoordinator(fakeMemoryManager{need: true}, engine, 4, 2)

	ranFull := g.RunIfNeeded(nil)
	assert.True(t, ranFull)
	assert.Equal(t, []int{2}, engine.fullGCCalls)
}

func TestGCCoordinator_ClearsEveryOpenSessionQueryCacheBeforeFullGC(t *testing.T) {
	engine := &fakeTransactionEngine{}
	g := newGCCoordinator(fakeMemoryManager{need: true}, engine, 1, 0)

	r := NewSessionRegistry()
	var cleared []uint64
	open := NewSession(1, 1)
	open.OnClearQueryCache(func() { cleared = append(cleared, open.ID) })
	closed := NewSession(2, 2)
	closed.OnClearQueryCache(func() { cleared = append(cleared, closed.ID) })
	closed.MarkClosed()
	r.AddSession(open)
	r.AddSession(closed)

	require.True(t, g.RunIfNeeded(r))
	assert.Equal(t, []uint64{1}, cleared, "closed sessions are skipped")
	assert.Equal(t, []int{0}, engine.fullGCCalls)
}

func TestGCCoordinator_NilCollaboratorsAreNoOp(t *testing.T) {
	g := newGCCoordinator(nil, nil, 1, 0)
	assert.False(t, g.RunIfNeeded(nil))
}
