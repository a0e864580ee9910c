// Copyright (c) The Kingtaker Authors
// SPDX-License-Identifier: MPL-2.0

// Package app wires the environment together and drives the host tick
// loop: queue clocks, the bounded main/sub drain, panic capture, and
// the save path.
package app

import (
	"runtime/debug"
	"sync"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"github.com/spf13/afero"

	"github.com/falsycat/kingtaker-sub000/internal/file"
	"github.com/falsycat/kingtaker-sub000/internal/network"
	"github.com/falsycat/kingtaker-sub000/internal/queue"
	"github.com/falsycat/kingtaker-sub000/internal/store"
)

// Saved is implemented by files that want a callback right before the
// tree is serialized to disk.
type Saved interface {
	OnSaved()
}

// PanicState holds the first captured task panic of a run. The host
// surfaces it to the user and decides whether to continue.
type PanicState struct {
	Recovered interface{}
	Stack     string
}

// App owns the queues, the environment, the store and the root tree.
type App struct {
	cfg     *Config
	log     hclog.Logger
	session string
	queues  *queue.Set
	env     *file.Env
	store   *store.Store
	root    file.File

	mu         sync.Mutex
	panicState *PanicState
}

// New builds the application: logger, queue set, environment, store,
// and the root tree (loaded, or the default when the state file is
// missing).
func New(cfg *Config, afs afero.Fs) (*App, error) {
	level := hclog.LevelFromString(cfg.LogLevel)
	if level == hclog.NoLevel {
		level = hclog.Info
	}
	session := uuid.NewString()
	log := hclog.New(&hclog.LoggerOptions{
		Name:  "kingtaker",
		Level: level,
	}).With("session", session)

	a := &App{cfg: cfg, log: log, session: session}
	a.queues = queue.NewSet(cfg.CPUWorkers, a.capture)
	a.env = &file.Env{Queues: a.queues, Log: log}
	a.store = store.New(afs, cfg.StatePath, log.Named("store"))

	root, err := a.store.Load(a.env, DefaultRoot)
	if err != nil {
		a.queues.Close()
		return nil, err
	}
	a.root = root
	a.env.Root = root

	// Networks sitting directly under the root learn their location so
	// their reference nodes resolve relative paths.
	base := file.NewRefStack(root)
	root.Scan(func(name string, f file.File) {
		if nw, ok := f.(*network.Network); ok {
			rs, err := base.ResolveString(name)
			if err == nil {
				nw.SetStack(rs)
			}
		}
	})

	log.Info("application ready", "state", cfg.StatePath)
	return a, nil
}

func (a *App) Root() file.File      { return a.root }
func (a *App) Env() *file.Env       { return a.env }
func (a *App) Logger() hclog.Logger { return a.log }
func (a *App) Session() string      { return a.session }

// Tick advances all queue clocks to now and drains up to the budget
// from main then sub, then the same budget from gl. It returns the
// number of tasks run.
func (a *App) Tick(now uint64) int {
	a.queues.Tick(now)
	ran := a.drain(a.cfg.DrainBudget, a.queues.Main, a.queues.Sub)
	ran += a.drain(a.cfg.DrainBudget, a.queues.GL)
	return ran
}

// drain pops ready tasks, capturing the first panic and stopping the
// tick there; the queue itself stays usable.
func (a *App) drain(budget int, qs ...*queue.Queue) int {
	ran := 0
	for _, q := range qs {
		for ran < budget {
			ok, panicked := a.popSafe(q)
			if !ok {
				break
			}
			ran++
			if panicked {
				return ran
			}
		}
	}
	return ran
}

func (a *App) popSafe(q *queue.Queue) (ok, panicked bool) {
	defer func() {
		if r := recover(); r != nil {
			a.capture(r)
			ok, panicked = true, true
		}
	}()
	return q.Pop(), false
}

// capture records the first panic of the run. Also handed to the cpu
// pool workers.
func (a *App) capture(recovered interface{}) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.panicState == nil {
		a.panicState = &PanicState{
			Recovered: recovered,
			Stack:     string(debug.Stack()),
		}
	}
	a.log.Error("task panicked", "recovered", recovered)
}

// Panic returns the captured panic state, or nil.
func (a *App) Panic() *PanicState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.panicState
}

// ResolvePanic clears the captured state after the host handled it.
func (a *App) ResolvePanic() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.panicState = nil
}

// Save notifies every file implementing Saved, depth first, then
// writes the tree atomically.
func (a *App) Save() error {
	var notify func(f file.File)
	notify = func(f file.File) {
		f.Scan(func(_ string, child file.File) { notify(child) })
		if s, ok := f.(Saved); ok {
			s.OnSaved()
		}
	}
	notify(a.root)
	return a.store.Save(a.root)
}

// Close tears down the queues. The cpu pool joins its workers; queues
// close after the tree so queued closures may still touch files.
func (a *App) Close() {
	a.queues.Close()
	a.log.Info("application closed")
}
