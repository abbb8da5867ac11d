package resource

import (
	"math/rand"
	"sync"
	"time"

	"github.com/icsd/icsd/internal/attrs"
	"github.com/icsd/icsd/internal/events"
	"github.com/icsd/icsd/internal/procexec"
)

// Supervisor is the narrow surface a Resource needs from its owning
// engine: looking up siblings by name for dependency propagation,
// enqueueing follow-on events, raising alerts, and locating the shared
// resource log file. internal/engine.Engine implements this.
type Supervisor interface {
	Lookup(name string) (*Resource, bool)
	Enqueue(events.Event)
	WarnAlert(resourceName, message string)
	ErrorAlert(resourceName, message string)
	ResourceLogPath() string
	BroadcastResourceState(name, group, state string)
}

// cmdKind distinguishes which external program is currently running.
type cmdKind int

const (
	cmdNone cmdKind = iota
	cmdStart
	cmdStop
	cmdPoll
)

// Resource is one externally managed process under supervision.
//
// State, Parents, Children, and Propagate are only ever mutated from the
// events.Dispatcher goroutine, the sole writer of resource state; mu
// guards the bookkeeping fields that other goroutines (the poll
// scheduler, RPC handlers) touch directly between dispatcher ticks.
type Resource struct {
	mu sync.Mutex

	Name  string
	Bag   *attrs.Bag
	State State

	Parents  []string
	Children []string

	LastPoll    time.Time
	PollRunning bool
	FaultCount  int
	Propagate   bool

	cmd     *procexec.Cmd
	cmdKind cmdKind
}

// New creates a resource named name belonging to group, with all
// attributes at their schema defaults and LastPoll staggered randomly
// within the last minute so a fleet of resources doesn't all poll on
// the same tick.
func New(name, group string) *Resource {
	r := &Resource{
		Name:     name,
		Bag:      attrs.NewBag(attrs.ResourceSchema),
		State:    Offline,
		LastPoll: time.Now().Add(-time.Duration(rand.Intn(60)) * time.Second),
	}
	_ = r.Bag.Set(attrs.Group, group)
	return r
}

func (r *Resource) disabled() bool {
	return !r.Bag.GetBool(attrs.Enabled) || r.Bag.GetBool(attrs.MonitorOnly)
}

// ChangeState transitions the resource and enqueues the matching event.
// When the resource is disabled or monitor-only, state never actually
// changes (forced to OFFLINE), but a pass-through event still fires so
// dependency propagation through a disabled resource keeps working.
func (r *Resource) ChangeState(sup Supervisor, newState State, force bool) bool {
	r.mu.Lock()

	cur := r.State
	if !force && newState == cur {
		r.mu.Unlock()
		return false
	}

	if r.disabled() {
		r.State = Offline

		var ev events.Event
		switch newState {
		case Starting, Online:
			cur = Online // fake the current state so propagation still runs
			ev = &OnlineEvent{baseEvent: baseEvent{r: r, sup: sup, last: cur}}
		case Stopping, Offline:
			cur = Offline
			ev = &OfflineEvent{baseEvent: baseEvent{r: r, sup: sup, last: cur}}
		default:
			r.mu.Unlock()
			return false
		}
		r.mu.Unlock()
		sup.Enqueue(ev)
		sup.BroadcastResourceState(r.Name, r.Bag.GetString(attrs.Group), r.State.String())
		return true
	}

	r.State = newState
	r.mu.Unlock()

	sup.Enqueue(newStateEvent(newState, r, sup, cur))
	sup.BroadcastResourceState(r.Name, r.Bag.GetString(attrs.Group), newState.String())
	return true
}

func newStateEvent(s State, r *Resource, sup Supervisor, last State) events.Event {
	base := baseEvent{r: r, sup: sup, last: last}
	switch s {
	case Offline:
		return &OfflineEvent{baseEvent: base}
	case Starting:
		return &StartingEvent{baseEvent: base}
	case Online:
		return &OnlineEvent{baseEvent: base}
	case Stopping:
		return &StoppingEvent{baseEvent: base}
	case Faulted:
		return &FaultedEvent{baseEvent: base}
	case Unknown:
		return &UnknownEvent{baseEvent: base}
	default:
		return &UnknownEvent{baseEvent: base}
	}
}

// ParentsReady reports whether a resource may start: every parent is
// already online, disabled, or monitor-only. A resource with no parents
// is always ready.
func (r *Resource) ParentsReady(sup Supervisor) bool {
	for _, name := range r.Parents {
		parent, ok := sup.Lookup(name)
		if !ok {
			continue
		}
		if parent.State != Online && !parent.disabled() {
			return false
		}
	}
	return true
}

// ChildrenReady reports whether a resource may stop: every child is
// already offline, disabled, or monitor-only. A resource with no children
// is always ready.
func (r *Resource) ChildrenReady(sup Supervisor) bool {
	for _, name := range r.Children {
		child, ok := sup.Lookup(name)
		if !ok {
			continue
		}
		if child.State != Offline && !child.disabled() {
			return false
		}
	}
	return true
}

// Dependencies returns the parent names this resource depends on.
func (r *Resource) Dependencies() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.Parents))
	copy(out, r.Parents)
	return out
}

// AddParent/AddChild/RemoveParent/RemoveChild maintain the dependency
// edges. Cross-group links and cycles are rejected one level up in
// internal/engine, which owns the full graph.
func (r *Resource) AddParent(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Parents = append(r.Parents, name)
}

func (r *Resource) AddChild(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Children = append(r.Children, name)
}

func (r *Resource) RemoveParent(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Parents = removeName(r.Parents, name)
}

func (r *Resource) RemoveChild(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Children = removeName(r.Children, name)
}

func removeName(list []string, name string) []string {
	out := list[:0]
	for _, n := range list {
		if n != name {
			out = append(out, n)
		}
	}
	return out
}

// UpdatePoll checks whether enough time has passed since the last poll
// to enqueue a new PollRunEvent. Called once per scheduler tick for
// every resource not already mid-command or mid-transition.
func (r *Resource) UpdatePoll(sup Supervisor) {
	r.mu.Lock()
	var interval int
	if IsOnline(r.State) {
		interval = r.Bag.GetInt(attrs.MonitorInterval)
	} else {
		interval = r.Bag.GetInt(attrs.OfflineMonitorInterval)
	}
	due := time.Since(r.LastPoll) >= time.Duration(interval)*time.Second && !r.PollRunning
	if due {
		r.PollRunning = true
	}
	r.mu.Unlock()

	if due {
		sup.Enqueue(&PollRunEvent{baseEvent: baseEvent{r: r, sup: sup}})
	}
}

// resetCmd clears the in-flight command bookkeeping.
func (r *Resource) resetCmd() {
	r.cmd = nil
	r.cmdKind = cmdNone
}

// runCmd launches argv asynchronously, tagging it with kind so
// HandleCmd knows how to interpret the exit code.
func (r *Resource) runCmd(sup Supervisor, argv []string, kind cmdKind, timeout time.Duration) {
	if len(argv) == 0 {
		r.Flush(sup)
		return
	}
	cmd, err := procexec.Start(argv, sup.ResourceLogPath(), timeout)
	if err != nil {
		sup.ErrorAlert(r.Name, "failed to launch command: "+err.Error())
		r.resetCmd()
		return
	}
	r.cmd = cmd
	r.cmdKind = kind
}

// Start runs StartProgram.
func (r *Resource) Start(sup Supervisor) {
	argv := procexec.Split(r.Bag.GetString(attrs.StartProgram))
	timeout := time.Duration(r.Bag.GetInt(attrs.OnlineTimeout)) * time.Second
	r.runCmd(sup, argv, cmdStart, timeout)
}

// Stop runs StopProgram.
func (r *Resource) Stop(sup Supervisor) {
	argv := procexec.Split(r.Bag.GetString(attrs.StopProgram))
	timeout := time.Duration(r.Bag.GetInt(attrs.OfflineTimeout)) * time.Second
	r.runCmd(sup, argv, cmdStop, timeout)
}

// Poll runs MonitorProgram.
func (r *Resource) Poll(sup Supervisor) {
	argv := procexec.Split(r.Bag.GetString(attrs.MonitorProgram))
	timeout := time.Duration(r.Bag.GetInt(attrs.MonitorTimeout)) * time.Second
	r.runCmd(sup, argv, cmdPoll, timeout)
}

// Probe manually triggers a poll cycle (res_probe RPC).
func (r *Resource) Probe(sup Supervisor) {
	sup.Enqueue(&PollRunEvent{baseEvent: baseEvent{r: r, sup: sup}})
}

// CheckCmd reports whether the in-flight command has finished. Called
// once per scheduler tick; an overdue command is handled separately by
// TimedOutCmd.
func (r *Resource) CheckCmd() (finished bool) {
	if r.cmd == nil {
		return false
	}
	done, _ := r.cmd.Poll()
	return done
}

// HasCmd reports whether a command is currently tracked.
func (r *Resource) HasCmd() bool { return r.cmd != nil }

// TimedOutCmd kills an overdue command and raises the WARNING alert.
func (r *Resource) TimedOutCmd(sup Supervisor) bool {
	if r.cmd == nil || !r.cmd.TimedOut() {
		return false
	}
	sup.WarnAlert(r.Name, "timeout occurred while attempting to run command")
	r.cmd.Kill()
	return true
}

// HandleCmd interprets a finished command's exit code and enqueues the
// matching follow-on event.
func (r *Resource) HandleCmd(sup Supervisor) {
	if r.cmd == nil {
		return
	}
	_, code := r.cmd.Poll()
	kind := r.cmdKind
	r.resetCmd()

	switch kind {
	case cmdStart, cmdStop:
		if code != 0 {
			sup.WarnAlert(r.Name, "command returned non-zero exit code")
		}
		sup.Enqueue(&PollRunEvent{baseEvent: baseEvent{r: r, sup: sup}})
	case cmdPoll:
		r.mu.Lock()
		r.LastPoll = time.Now()
		r.PollRunning = false
		r.mu.Unlock()

		switch code {
		case 110:
			sup.Enqueue(&PollOnlineEvent{baseEvent: baseEvent{r: r, sup: sup}})
		case 100:
			sup.Enqueue(&PollOfflineEvent{baseEvent: baseEvent{r: r, sup: sup}})
		default:
			sup.WarnAlert(r.Name, "error occurred while polling resource")
			sup.Enqueue(&PollUnknownEvent{baseEvent: baseEvent{r: r, sup: sup}})
		}
	}
}

// Clear resets the fault count and, if faulted, moves back to OFFLINE
// (res_clear RPC).
func (r *Resource) Clear(sup Supervisor) {
	r.mu.Lock()
	r.FaultCount = 0
	faulted := r.State == Faulted
	r.mu.Unlock()
	if faulted {
		r.ChangeState(sup, Offline, false)
	}
}

// Flush aborts any in-flight command and stops propagation, used when
// starting/stopping a group from a clean slate and when a resource
// faults (res_clear's quieter cousin, flush never touches fault_count).
func (r *Resource) Flush(sup Supervisor) {
	r.mu.Lock()
	r.Propagate = false
	cmd := r.cmd
	state := r.State
	r.mu.Unlock()

	if cmd != nil {
		cmd.Kill()
	}
	r.resetCmd()

	switch state {
	case Starting:
		r.ChangeState(sup, Offline, false)
	case Stopping:
		r.ChangeState(sup, Online, false)
	}
}

// IncrementFault bumps the fault counter and reports whether the
// RestartLimit has now been reached.
func (r *Resource) IncrementFault() (count, limit int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.FaultCount++
	return r.FaultCount, r.Bag.GetInt(attrs.RestartLimit)
}
