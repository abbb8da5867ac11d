package config

import (
	"context"
	"sync"
	"time"

	"github.com/icsd/icsd/internal/attrs"
	"go.uber.org/zap"
)

// Persister periodically flushes configuration to disk whenever the
// process-wide attrs.Dirty flag is set, writing the primary main.cf, an
// always-overwritten main.cf.autobackup, and — once per calendar day the
// dirty flag is seen set — a timestamped main.cf.YYMMDD_HHMMSS snapshot.
type Persister struct {
	paths    Paths
	interval time.Duration
	snapshot func() File
	log      *zap.SugaredLogger

	mu           sync.Mutex
	lastSnapshot string // date key (YYMMDD) of the last timestamped backup

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPersister creates a Persister. snapshot is called to obtain the
// current File to write whenever the dirty flag is set; internal/engine
// supplies this from its live resource/group state.
func NewPersister(paths Paths, interval time.Duration, snapshot func() File, log *zap.SugaredLogger) *Persister {
	return &Persister{paths: paths, interval: interval, snapshot: snapshot, log: log}
}

// Start spawns the persist-on-dirty loop.
func (p *Persister) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.wg.Add(1)
	go p.run(ctx)
}

// Stop cancels the loop, waits for it to exit, and flushes one last time
// if the dirty flag is still set.
func (p *Persister) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	if attrs.IsDirty() {
		if err := p.flush(); err != nil {
			p.log.Errorw("final config flush failed", "error", err)
		}
	}
}

func (p *Persister) run(ctx context.Context) {
	defer p.wg.Done()
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !attrs.IsDirty() {
				continue
			}
			if err := p.flush(); err != nil {
				p.log.Errorw("config persist failed", "error", err)
			}
		}
	}
}

func (p *Persister) flush() error {
	f := p.snapshot()

	if err := WriteFile(p.paths.ConfFile(), f); err != nil {
		return err
	}
	if err := WriteFile(p.paths.AutoBackupFile(), f); err != nil {
		p.log.Warnw("autobackup write failed", "error", err)
	}

	p.maybeSnapshot(f)

	attrs.ClearDirty()
	return nil
}

func (p *Persister) maybeSnapshot(f File) {
	now := time.Now()
	dateKey := now.Format("060102")

	p.mu.Lock()
	already := p.lastSnapshot == dateKey
	p.lastSnapshot = dateKey
	p.mu.Unlock()

	if already {
		return
	}

	path := p.paths.ConfFile() + "." + now.Format("060102_150405")
	if err := WriteFile(path, f); err != nil {
		p.log.Warnw("timestamped config backup failed", "error", err)
	}
}
