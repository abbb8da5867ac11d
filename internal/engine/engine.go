// Package engine wires the resource/group/event/poll/alert subsystems
// into the single object a running node operates through: the Engine
// owns the resources and groups maps, the node's own system attributes,
// and the table of remote cluster peers, and implements the narrow
// Supervisor/Registry interfaces those subsystems need without knowing
// about each other directly.
//
// Node identity, resource/group CRUD, and cluster fan-out all live on
// this one type rather than split across separate daemon-bootstrap and
// supervisor objects.
package engine

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/icsd/icsd/internal/alert"
	"github.com/icsd/icsd/internal/attrs"
	"github.com/icsd/icsd/internal/commandlog"
	"github.com/icsd/icsd/internal/config"
	"github.com/icsd/icsd/internal/events"
	"github.com/icsd/icsd/internal/group"
	"github.com/icsd/icsd/internal/poll"
	"github.com/icsd/icsd/internal/resource"
	"github.com/icsd/icsd/internal/xerrors"
	"go.uber.org/zap"
)

// RemoteNode is the narrow RPC surface a cluster peer proxy exposes back
// to Engine for fan-out; internal/rpc.Client implements it.
type RemoteNode interface {
	Ping(ctx context.Context) error
	ClusResOnline(ctx context.Context, resourceName, systemName string) error
	ClusResOffline(ctx context.Context, resourceName, systemName string) error
	ClusResAdd(ctx context.Context, resourceName, groupName string) error
	ClusResDelete(ctx context.Context, resourceName string) error
	ClusResLink(ctx context.Context, parentName, resourceName string) error
	ClusResUnlink(ctx context.Context, parentName, resourceName string) error
	ClusResClear(ctx context.Context, resourceName string) error
	ClusResModify(ctx context.Context, resourceName, attrName string, value any) error
	ClusResStateMany(ctx context.Context, names []string) (map[string]string, error)
	ClusGrpOnline(ctx context.Context, groupName, systemName string) error
	ClusGrpOffline(ctx context.Context, groupName, systemName string) error
	ClusGrpAdd(ctx context.Context, groupName string) error
	ClusGrpDelete(ctx context.Context, groupName string) error
	ClusGrpEnable(ctx context.Context, groupName string) error
	ClusGrpDisable(ctx context.Context, groupName string) error
	ClusGrpModify(ctx context.Context, groupName, attrName string, value any) error
	ClusGrpStateMany(ctx context.Context, names []string) (map[string]string, error)
	ClusGrpState(ctx context.Context, groupName string) (string, error)
	ClusLoad(ctx context.Context) error
}

// Engine owns every resource and group on this node, the node's own
// system attributes, and the remote peer table, and drives the
// subsystems that give them behaviour (event dispatcher, poll
// scheduler, alert pipeline, config persistence).
type Engine struct {
	mu        sync.RWMutex
	resources map[string]*resource.Resource
	groups    map[string]*group.Group
	remotes   map[string]RemoteNode

	system *attrs.Bag

	eventQueue *events.Queue
	dispatcher *events.Dispatcher

	scheduler *poll.Scheduler

	alertQueue   *alert.Queue
	alertHandler *alert.Handler
	alertClient  *alert.Client

	commandLog *commandlog.Store
	persister  *config.Persister
	watcher    *config.Watcher
	paths      config.Paths

	broadcaster Broadcaster

	log *zap.SugaredLogger
}

// Broadcaster receives a best-effort notification on every resource or
// group state change, for internal/rpc's websocket dashboard feed.
// A nil Broadcaster silently drops notifications.
type Broadcaster interface {
	BroadcastResourceState(name, group, state string)
	BroadcastGroupState(name, state string)
}

// Options bundles the collaborators Engine needs constructed but does
// not itself own the lifecycle of (the alert mailer, the command log
// store opened on its own path).
type Options struct {
	Paths       config.Paths
	AlertMailer alert.Mailer
	CommandLog  *commandlog.Store
	Broadcaster Broadcaster
	Log         *zap.SugaredLogger
}

// New creates an Engine with empty resources/groups and system
// attributes at their schema defaults. NodeName defaults to the OS
// hostname.
func New(opts Options) (*Engine, error) {
	system := attrs.NewBag(attrs.SystemSchema)
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	_ = system.Set(attrs.NodeName, hostname)
	_ = system.Set(attrs.NodeList, []string{hostname})

	log := opts.Log
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	eventQueue := events.NewQueue()
	alertQueue := alert.NewQueue()

	e := &Engine{
		resources:  make(map[string]*resource.Resource),
		groups:     make(map[string]*group.Group),
		remotes:    make(map[string]RemoteNode),
		system:     system,
		eventQueue: eventQueue,
		alertQueue: alertQueue,
		commandLog: opts.CommandLog,
		paths:      opts.Paths,
		broadcaster: opts.Broadcaster,
		log:        log,
	}

	e.alertClient = &alert.Client{Queue: alertQueue, HostName: hostname}

	handler, err := alert.NewHandler(alertQueue, opts.Paths.AlertLogDir(), hostname, "", opts.AlertMailer, alert.DefaultHTMLTemplate, log.Named("alert"))
	if err != nil {
		return nil, xerrors.Wrap(err, "create alert handler")
	}
	e.alertHandler = handler

	e.dispatcher = events.NewDispatcher(eventQueue, log.Named("dispatcher"), e.onEventError)
	e.scheduler = poll.New(e, e, poll.DefaultConfig(), log.Named("poll"))

	return e, nil
}

func (e *Engine) onEventError(ev events.Event, err error) {
	e.log.Errorw("event failed", "event", ev.String(), "error", err)
	e.alertClient.Error("", "", "event "+ev.String()+" failed: "+err.Error())
}

// Start launches every background subsystem: the event dispatcher, the
// poll scheduler, and the alert handler. Config persistence and the
// file watcher are started separately once the owning daemon has a
// snapshot function and reload callback ready (see cmd/icsd).
func (e *Engine) Start(ctx context.Context) {
	e.dispatcher.Start(ctx)
	e.scheduler.Start(ctx)
	e.alertHandler.Start(ctx)
}

// Stop stops the poll scheduler, the event dispatcher and the alert
// handler, then the persister and watcher when they are attached.
func (e *Engine) Stop() {
	e.scheduler.Stop()
	e.dispatcher.Stop()
	e.alertHandler.Stop()
	if e.persister != nil {
		e.persister.Stop()
	}
	if e.watcher != nil {
		e.watcher.Stop()
	}
}

// AttachPersistence wires the config persister and file watcher once
// the daemon entry point has an on-disk path to use (runStart in
// cmd/icsd/commands).
func (e *Engine) AttachPersistence(ctx context.Context, persister *config.Persister, watcher *config.Watcher) {
	e.persister = persister
	e.watcher = watcher
	persister.Start(ctx)
	watcher.Start()
}

// --- resource.Supervisor ---

// Lookup resolves a resource by name, satisfying resource.Supervisor.
func (e *Engine) Lookup(name string) (*resource.Resource, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	r, ok := e.resources[name]
	return r, ok
}

// Enqueue pushes an event onto the dispatcher's queue.
func (e *Engine) Enqueue(ev events.Event) { e.eventQueue.Push(ev) }

// WarnAlert raises a WARNING alert attributed to resourceName.
func (e *Engine) WarnAlert(resourceName, message string) {
	e.alertClient.Warning(resourceName, e.groupOf(resourceName), message)
}

// ErrorAlert raises an ERROR alert attributed to resourceName.
func (e *Engine) ErrorAlert(resourceName, message string) {
	e.alertClient.Error(resourceName, e.groupOf(resourceName), message)
}

// ResourceLogPath returns the current hour's stdout/stderr sink for
// child processes.
func (e *Engine) ResourceLogPath() string { return e.paths.ResourceLog(time.Now()) }

// BroadcastResourceState forwards a resource state transition to the
// dashboard feed, if one is attached. Satisfies resource.Supervisor.
func (e *Engine) BroadcastResourceState(name, group, state string) {
	if e.broadcaster != nil {
		e.broadcaster.BroadcastResourceState(name, group, state)
	}
}

// BroadcastGroupState forwards a group's aggregate state to the
// dashboard feed, if one is attached.
func (e *Engine) BroadcastGroupState(name, state string) {
	if e.broadcaster != nil {
		e.broadcaster.BroadcastGroupState(name, state)
	}
}

func (e *Engine) groupOf(resourceName string) string {
	r, ok := e.Lookup(resourceName)
	if !ok {
		return ""
	}
	return r.Bag.GetString(attrs.Group)
}

// --- poll.Registry ---

// Resources returns every resource currently known, satisfying
// poll.Registry.
func (e *Engine) Resources() []*resource.Resource {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*resource.Resource, 0, len(e.resources))
	for _, r := range e.resources {
		out = append(out, r)
	}
	return out
}

// groupLookup adapts Engine.Lookup to group.Lookup's signature.
func (e *Engine) groupLookup(name string) (*resource.Resource, bool) { return e.Lookup(name) }
