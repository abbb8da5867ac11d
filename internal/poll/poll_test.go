package poll

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/icsd/icsd/internal/attrs"
	"github.com/icsd/icsd/internal/events"
	"github.com/icsd/icsd/internal/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSupervisor struct {
	mu      sync.Mutex
	pending []events.Event
}

func (s *fakeSupervisor) Lookup(string) (*resource.Resource, bool) { return nil, false }
func (s *fakeSupervisor) Enqueue(e events.Event) {
	s.mu.Lock()
	s.pending = append(s.pending, e)
	s.mu.Unlock()
}
func (s *fakeSupervisor) WarnAlert(string, string)     {}
func (s *fakeSupervisor) ErrorAlert(string, string)    {}
func (s *fakeSupervisor) ResourceLogPath() string      { return "/dev/null" }
func (s *fakeSupervisor) BroadcastResourceState(string, string, string) {}
func (s *fakeSupervisor) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

type registryStub struct{ resources []*resource.Resource }

func (r registryStub) Resources() []*resource.Resource { return r.resources }

func TestSweepEnqueuesPollForDueResource(t *testing.T) {
	r := resource.New("db", "g1")
	_ = r.Bag.Set(attrs.Enabled, true)
	_ = r.Bag.Set(attrs.OfflineMonitorInterval, 0)
	r.LastPoll = time.Now().Add(-time.Minute)

	sup := &fakeSupervisor{}
	sched := New(registryStub{resources: []*resource.Resource{r}}, sup, DefaultConfig(), zap.NewNop().Sugar())
	sched.sweep()

	require.Equal(t, 1, sup.count())
}

func TestSweepSkipsDisabledResource(t *testing.T) {
	r := resource.New("db", "g1") // Enabled defaults false

	sup := &fakeSupervisor{}
	sched := New(registryStub{resources: []*resource.Resource{r}}, sup, DefaultConfig(), zap.NewNop().Sugar())
	sched.sweep()

	assert.Equal(t, 0, sup.count())
}

func TestSweepSkipsResourceMidTransition(t *testing.T) {
	r := resource.New("db", "g1")
	_ = r.Bag.Set(attrs.Enabled, true)
	r.State = resource.Starting

	sup := &fakeSupervisor{}
	sched := New(registryStub{resources: []*resource.Resource{r}}, sup, DefaultConfig(), zap.NewNop().Sugar())
	sched.sweep()

	assert.Equal(t, 0, sup.count())
}

func TestSchedulerStartStop(t *testing.T) {
	sup := &fakeSupervisor{}
	sched := New(registryStub{}, sup, Config{Interval: 10 * time.Millisecond}, zap.NewNop().Sugar())
	sched.Start(context.Background())
	time.Sleep(25 * time.Millisecond)
	sched.Stop()
}

// TestStartBlocksOnStartupProbeBeforeReturning exercises spec's startup
// ordering guarantee: every resource is probed once, at most
// StartupBurst at a time, before Start returns — a caller that brings
// AutoStart groups online right after Start is guaranteed each
// resource has already reported a state at least once.
func TestStartBlocksOnStartupProbeBeforeReturning(t *testing.T) {
	resources := make([]*resource.Resource, 0, 5)
	for i := 0; i < 5; i++ {
		r := resource.New(fmt.Sprintf("r%d", i), "g1")
		_ = r.Bag.Set(attrs.Enabled, true)
		resources = append(resources, r)
	}

	sup := &fakeSupervisor{}
	sched := New(registryStub{resources: resources}, sup,
		Config{Interval: 10 * time.Millisecond, StartupBurst: 2}, zap.NewNop().Sugar())

	done := make(chan struct{})
	go func() {
		sched.Start(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return — startup probe appears stuck")
	}
	sched.Stop()
}
