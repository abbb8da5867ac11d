package resource

import (
	"context"
	"fmt"
)

// baseEvent carries the resource, its owning supervisor, and the state
// the resource was in immediately before the transition that produced
// this event — every propagation decision keys off this last state.
type baseEvent struct {
	r    *Resource
	sup  Supervisor
	last State
}

func (b baseEvent) name(kind string) string {
	return fmt.Sprintf("%s(%s)", kind, b.r.Name)
}

// StartingEvent runs the resource's StartProgram.
type StartingEvent struct{ baseEvent }

func (e *StartingEvent) String() string { return e.name("StartingEvent") }
func (e *StartingEvent) Run(ctx context.Context) error {
	e.r.Start(e.sup)
	return nil
}

// StoppingEvent runs the resource's StopProgram.
type StoppingEvent struct{ baseEvent }

func (e *StoppingEvent) String() string { return e.name("StoppingEvent") }
func (e *StoppingEvent) Run(ctx context.Context) error {
	e.r.Stop(e.sup)
	return nil
}

// OnlineEvent fires whenever a resource's state becomes ONLINE (real or
// faked for a disabled resource). If it came online without having been
// asked to, that is an unexpected-online WARNING. Otherwise, if this
// transition is part of a propagation chain, it continues the chain
// downward to children whose parents are now all ready.
type OnlineEvent struct{ baseEvent }

func (e *OnlineEvent) String() string { return e.name("OnlineEvent") }

func (e *OnlineEvent) Run(_ context.Context) error {
	r, sup := e.r, e.sup

	if IsOffline(e.last) {
		sup.WarnAlert(r.Name, "resource came online unexpectedly")
		return nil
	}

	r.mu.Lock()
	propagate := r.Propagate
	r.Propagate = false
	children := append([]string(nil), r.Children...)
	r.mu.Unlock()

	if !propagate {
		return nil
	}

	for _, name := range children {
		child, ok := sup.Lookup(name)
		if !ok {
			continue
		}
		if !child.ParentsReady(sup) {
			continue
		}
		child.mu.Lock()
		child.Propagate = true
		state := child.State
		child.mu.Unlock()

		if state != Online {
			child.ChangeState(sup, Starting, false)
		} else {
			child.ChangeState(sup, Online, true)
		}
	}
	return nil
}

// OfflineEvent fires whenever a resource's state becomes OFFLINE (real
// or faked). If it was online/transitioning and went offline on its own,
// that is a fault: bump the fault count, and either declare FAULTED or
// retry unconditionally. Otherwise, continue an in-progress propagation
// chain upward to parents whose children are now all ready to stop.
type OfflineEvent struct{ baseEvent }

func (e *OfflineEvent) String() string { return e.name("OfflineEvent") }

func (e *OfflineEvent) Run(_ context.Context) error {
	r, sup := e.r, e.sup

	if IsOnline(e.last) {
		count, limit := r.IncrementFault()
		if count >= limit {
			r.ChangeState(sup, Faulted, false)
		} else {
			r.ChangeState(sup, Starting, false)
		}
		return nil
	}

	r.mu.Lock()
	propagate := r.Propagate
	r.Propagate = false
	parents := append([]string(nil), r.Parents...)
	r.mu.Unlock()

	if !propagate {
		return nil
	}

	for _, name := range parents {
		parent, ok := sup.Lookup(name)
		if !ok {
			continue
		}
		if !parent.ChildrenReady(sup) {
			continue
		}
		parent.mu.Lock()
		parent.Propagate = true
		state := parent.State
		parent.mu.Unlock()

		if state != Offline {
			parent.ChangeState(sup, Stopping, false)
		} else {
			parent.ChangeState(sup, Offline, true)
		}
	}
	return nil
}

// FaultedEvent flushes the resource and raises an ERROR alert.
type FaultedEvent struct{ baseEvent }

func (e *FaultedEvent) String() string { return e.name("FaultedEvent") }
func (e *FaultedEvent) Run(_ context.Context) error {
	e.r.Flush(e.sup)
	e.sup.ErrorAlert(e.r.Name, "resource faulted")
	return nil
}

// UnknownEvent raises a WARNING the first time a resource enters the
// unknown state (repeat unknown polls don't re-alert).
type UnknownEvent struct{ baseEvent }

func (e *UnknownEvent) String() string { return e.name("UnknownEvent") }
func (e *UnknownEvent) Run(_ context.Context) error {
	if e.last != Unknown {
		e.sup.WarnAlert(e.r.Name, "resource in unknown state")
	}
	return nil
}

// PollRunEvent launches the MonitorProgram.
type PollRunEvent struct{ baseEvent }

func (e *PollRunEvent) String() string { return e.name("PollRunEvent") }
func (e *PollRunEvent) Run(_ context.Context) error {
	e.r.Poll(e.sup)
	return nil
}

// PollOnlineEvent moves a resource to ONLINE following a monitor poll
// that reported exit code 110, unless it has since faulted.
type PollOnlineEvent struct{ baseEvent }

func (e *PollOnlineEvent) String() string { return e.name("PollOnlineEvent") }
func (e *PollOnlineEvent) Run(_ context.Context) error {
	if e.r.State != Faulted {
		e.r.ChangeState(e.sup, Online, false)
	}
	return nil
}

// PollOfflineEvent moves a resource to OFFLINE following a monitor poll
// that reported exit code 100, unless it has since faulted.
type PollOfflineEvent struct{ baseEvent }

func (e *PollOfflineEvent) String() string { return e.name("PollOfflineEvent") }
func (e *PollOfflineEvent) Run(_ context.Context) error {
	if e.r.State != Faulted {
		e.r.ChangeState(e.sup, Offline, false)
	}
	return nil
}

// PollUnknownEvent moves a resource to UNKNOWN following a monitor poll
// that exited with any other code.
type PollUnknownEvent struct{ baseEvent }

func (e *PollUnknownEvent) String() string { return e.name("PollUnknownEvent") }
func (e *PollUnknownEvent) Run(_ context.Context) error {
	e.r.ChangeState(e.sup, Unknown, false)
	return nil
}
