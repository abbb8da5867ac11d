package resource

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/icsd/icsd/internal/attrs"
	"github.com/icsd/icsd/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSupervisor is a minimal in-memory Supervisor that runs enqueued
// events synchronously (no dispatcher goroutine), so propagation chains
// can be asserted deterministically in tests.
type fakeSupervisor struct {
	mu        sync.Mutex
	resources map[string]*Resource
	warnings  []string
	errors    []string
	pending   []events.Event
}

func newFakeSupervisor(rs ...*Resource) *fakeSupervisor {
	s := &fakeSupervisor{resources: map[string]*Resource{}}
	for _, r := range rs {
		s.resources[r.Name] = r
	}
	return s
}

func (s *fakeSupervisor) Lookup(name string) (*Resource, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.resources[name]
	return r, ok
}

func (s *fakeSupervisor) Enqueue(e events.Event) {
	s.mu.Lock()
	s.pending = append(s.pending, e)
	s.mu.Unlock()
}

func (s *fakeSupervisor) WarnAlert(resourceName, message string) {
	s.mu.Lock()
	s.warnings = append(s.warnings, resourceName+": "+message)
	s.mu.Unlock()
}

func (s *fakeSupervisor) ErrorAlert(resourceName, message string) {
	s.mu.Lock()
	s.errors = append(s.errors, resourceName+": "+message)
	s.mu.Unlock()
}

func (s *fakeSupervisor) ResourceLogPath() string { return "/dev/null" }

func (s *fakeSupervisor) BroadcastResourceState(name, group, state string) {}

// drain runs every pending event (and whatever they enqueue) to a fixed
// point, simulating the dispatcher without process commands actually
// being involved (none of these tests set StartProgram/StopProgram).
func (s *fakeSupervisor) drain(t *testing.T) {
	t.Helper()
	for i := 0; i < 100; i++ {
		s.mu.Lock()
		if len(s.pending) == 0 {
			s.mu.Unlock()
			return
		}
		e := s.pending[0]
		s.pending = s.pending[1:]
		s.mu.Unlock()

		require.NoError(t, e.Run(context.Background()))
	}
	t.Fatal("event propagation did not settle")
}

func enable(r *Resource) {
	_ = r.Bag.Set(attrs.Enabled, true)
}

func TestChangeStateNoopWhenSameStateUnlessForced(t *testing.T) {
	r := New("db", "g1")
	enable(r)
	sup := newFakeSupervisor(r)

	assert.False(t, r.ChangeState(sup, Offline, false))
	assert.True(t, r.ChangeState(sup, Offline, true))
}

func TestDisabledResourcePassesThroughOnline(t *testing.T) {
	r := New("db", "g1") // Enabled defaults to false
	sup := newFakeSupervisor(r)

	changed := r.ChangeState(sup, Starting, false)
	require.True(t, changed)
	assert.Equal(t, Offline, r.State, "disabled resource is forced back to OFFLINE")
	sup.drain(t)
	assert.Empty(t, sup.errors)
}

func TestOnlinePropagatesToReadyChild(t *testing.T) {
	parent := New("db", "g1")
	child := New("app", "g1")
	enable(parent)
	enable(child)
	child.AddParent("db")
	parent.AddChild("app")

	sup := newFakeSupervisor(parent, child)

	parent.mu.Lock()
	parent.Propagate = true
	parent.State = Online
	parent.mu.Unlock()

	sup.Enqueue(&OnlineEvent{baseEvent: baseEvent{r: parent, sup: sup, last: Starting}})
	sup.drain(t)

	assert.Equal(t, Starting, child.State, "child should have been asked to start")
}

func TestOfflineEventFaultsAfterRestartLimit(t *testing.T) {
	r := New("db", "g1")
	enable(r)
	require.NoError(t, r.Bag.Set(attrs.RestartLimit, 1))
	sup := newFakeSupervisor(r)

	ev := &OfflineEvent{baseEvent: baseEvent{r: r, sup: sup, last: Online}}
	require.NoError(t, ev.Run(context.Background()))

	assert.Equal(t, Faulted, r.State)
}

func TestOfflineEventRestartsUnconditionallyBelowLimit(t *testing.T) {
	r := New("db", "g1")
	enable(r)
	require.NoError(t, r.Bag.Set(attrs.RestartLimit, 5))
	sup := newFakeSupervisor(r)

	ev := &OfflineEvent{baseEvent: baseEvent{r: r, sup: sup, last: Online}}
	require.NoError(t, ev.Run(context.Background()))

	assert.Equal(t, Starting, r.State)
}

func TestUnexpectedOnlineRaisesWarning(t *testing.T) {
	r := New("db", "g1")
	enable(r)
	sup := newFakeSupervisor(r)

	ev := &OnlineEvent{baseEvent: baseEvent{r: r, sup: sup, last: Offline}}
	require.NoError(t, ev.Run(context.Background()))

	require.Len(t, sup.warnings, 1)
	assert.Contains(t, sup.warnings[0], "unexpectedly")
}

func TestUpdatePollEnqueuesWhenIntervalElapsed(t *testing.T) {
	r := New("db", "g1")
	enable(r)
	require.NoError(t, r.Bag.Set(attrs.OfflineMonitorInterval, 0))
	r.LastPoll = time.Now().Add(-time.Hour)

	sup := newFakeSupervisor(r)
	r.UpdatePoll(sup)

	require.Len(t, sup.pending, 1)
	assert.Equal(t, "PollRunEvent(db)", sup.pending[0].String())
	assert.True(t, r.PollRunning)
}
