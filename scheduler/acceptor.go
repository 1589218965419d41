package scheduler

// acceptorBridge lets a Scheduler take ownership of a pending socket
// accept on a listener it shares with every other scheduler in the
// fleet. Exactly one scheduler wins each pending accept: TryClaim is a
// compare-and-swap at the AcceptorManager, so a scheduler that loses the
// race simply moves on without touching the connection. The winner
// performs the accept as part of winning and hands the resulting fd back
// here, so onClaimed can build a session-init task scoped to this
// scheduler without a second round trip to the manager.
type acceptorBridge struct {
	manager     AcceptorManager
	schedulerID uint64
	listenerIDs []int
	onClaimed   func(listenerID, fd int)
}

func newAcceptorBridge(manager AcceptorManager, schedulerID uint64, onClaimed func(listenerID, fd int)) *acceptorBridge {
	return &acceptorBridge{manager: manager, schedulerID: schedulerID, onClaimed: onClaimed}
}

// Watch registers listenerID as one this scheduler should try to claim
// accepts from. Typically called once per listening socket at startup.
func (a *acceptorBridge) Watch(listenerID int) {
	for _, id := range a.listenerIDs {
		if id == listenerID {
			return
		}
	}
	a.listenerIDs = append(a.listenerIDs, listenerID)
}

// TryAcceptAll attempts to claim every watched listener that currently
// has a pending accept, invoking onClaimed with the accepted fd for each
// one this scheduler wins. Called at the top of every Iterate pass, from
// the dispatcher's deep-housekeeping and yield fallbacks, and from the
// event loop's accepter callback; most calls claim nothing and return
// immediately.
func (a *acceptorBridge) TryAcceptAll() {
	if a.manager == nil {
		return
	}
	for _, listenerID := range a.listenerIDs {
		if fd, ok := a.manager.TryClaim(listenerID, a.schedulerID); ok {
			if a.onClaimed != nil {
				a.onClaimed(listenerID, fd)
			}
		}
	}
}
