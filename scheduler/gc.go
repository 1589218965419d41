package scheduler

// gcCoordinator decides, once per dispatcher pass, whether this
// scheduler should run a full garbage-collection sweep over the shared
// transaction engine, and if so runs its own partition of that sweep.
// Every scheduler in the fleet consults NeedFullGC independently; a true
// result fans out to all of them (each sweeping only its own index), so
// no cross-scheduler coordination beyond the shared MemoryManager's own
// state is required.
type gcCoordinator struct {
	memory          MemoryManager
	engine          TransactionEngine
	totalSchedulers int
	schedulerIndex  int
}

func newGCCoordinator(memory MemoryManager, engine TransactionEngine, totalSchedulers, schedulerIndex int) *gcCoordinator {
	return &gcCoordinator{
		memory:          memory,
		engine:          engine,
		totalSchedulers: totalSchedulers,
		schedulerIndex:  schedulerIndex,
	}
}

// RunIfNeeded runs this scheduler's partition of a full GC sweep when the
// memory manager reports one is due. Every registered session has its
// query cache cleared first, in registry order, before the engine-wide
// sweep runs — clearing after would leave a session able to repopulate
// its cache from state the sweep is about to discard. It reports whether
// a full GC pass ran, for metrics.
func (g *gcCoordinator) RunIfNeeded(registry *SessionRegistry) (ranFullGC bool) {
	if g.memory == nil || g.engine == nil {
		return false
	}
	if !g.memory.NeedFullGC() {
		return false
	}
	if registry != nil {
		registry.ForEach(func(s *Session) {
			if !s.IsClosed() {
				s.ClearQueryCache()
			}
		})
	}
	g.engine.FullGC(g.totalSchedulers, g.schedulerIndex)
	return true
}
