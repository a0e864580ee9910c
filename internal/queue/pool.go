// Copyright (c) The Kingtaker Authors
// SPDX-License-Identifier: MPL-2.0

package queue

import (
	"golang.org/x/sync/errgroup"
)

// DefaultWorkers is the worker count of the cpu pool when the host
// config does not say otherwise.
const DefaultWorkers = 2

// Pool wraps a Queue with a fixed set of worker goroutines. Workers
// drain ready tasks and then sleep in Wait until the next Push or Tick.
type Pool struct {
	*Queue

	eg      errgroup.Group
	onPanic func(recovered interface{})
}

// NewPool spawns workers draining a new queue with the given name.
// onPanic receives the recovered value of any panicking task; it runs on
// the worker goroutine and must not panic itself. A nil onPanic drops
// recovered values silently.
func NewPool(name string, workers int, onPanic func(recovered interface{})) *Pool {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	p := &Pool{Queue: New(name), onPanic: onPanic}
	for i := 0; i < workers; i++ {
		p.eg.Go(p.work)
	}
	return p
}

func (p *Pool) work() error {
	for !p.Closed() {
		for p.pop() {
		}
		p.Wait()
	}
	return nil
}

// pop shields the worker loop from task panics; the queue itself never
// swallows them (the UI-thread drain loop handles its own).
func (p *Pool) pop() (ok bool) {
	defer func() {
		if r := recover(); r != nil && p.onPanic != nil {
			p.onPanic(r)
		}
	}()
	return p.Pop()
}

// Close stops the workers and joins them. Tasks already running finish;
// queued tasks are abandoned.
func (p *Pool) Close() {
	p.Queue.Close()
	_ = p.eg.Wait()
}

// Set bundles the four named queues of one environment.
type Set struct {
	Main *Queue
	Sub  *Queue
	GL   *Queue
	CPU  *Pool
}

// NewSet builds the standard queue set. workers sizes the cpu pool.
func NewSet(workers int, onPanic func(recovered interface{})) *Set {
	return &Set{
		Main: New(NameMain),
		Sub:  New(NameSub),
		GL:   New(NameGL),
		CPU:  NewPool(NameCPU, workers, onPanic),
	}
}

// Lookup returns the queue with the given well-known name, or nil.
func (s *Set) Lookup(name string) *Queue {
	switch name {
	case NameMain:
		return s.Main
	case NameSub:
		return s.Sub
	case NameGL:
		return s.GL
	case NameCPU:
		return s.CPU.Queue
	}
	return nil
}

// Tick advances all queue clocks to now.
func (s *Set) Tick(now uint64) {
	s.Main.Tick(now)
	s.Sub.Tick(now)
	s.GL.Tick(now)
	s.CPU.Tick(now)
}

// Close tears down the set. The cpu pool joins its workers; the
// cooperative queues just release waiters. Queues must outlive file
// destructors because queued closures may still own files.
func (s *Set) Close() {
	s.CPU.Close()
	s.Main.Close()
	s.Sub.Close()
	s.GL.Close()
}

// Drain pops up to budget ready tasks, exhausting each queue in argument
// order before moving to the next. It returns the number of tasks run.
func Drain(budget int, qs ...*Queue) int {
	ran := 0
	for _, q := range qs {
		for ran < budget && q.Pop() {
			ran++
		}
	}
	return ran
}
