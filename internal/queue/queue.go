// Copyright (c) The Kingtaker Authors
// SPDX-License-Identifier: MPL-2.0

// Package queue implements the cooperative task queues driving graph
// evaluation. Four named queues exist per environment: "main" for
// structural edits, "sub" for socket delivery, "cpu" as a worker pool,
// and "gl" drained by the host's GPU thread.
package queue

import (
	"container/heap"
	"sync"
)

// Task is a unit of queued work. Tasks must not block waiting on another
// task of the same queue.
type Task func()

// Well-known queue names, resolvable from the file tree under "_queue".
const (
	NameMain = "main"
	NameSub  = "sub"
	NameCPU  = "cpu"
	NameGL   = "gl"
)

type item struct {
	id     uint64
	emitOn uint64
	task   Task
}

type itemHeap []item

func (h itemHeap) Len() int { return len(h) }
func (h itemHeap) Less(i, j int) bool {
	if h[i].emitOn != h[j].emitOn {
		return h[i].emitOn < h[j].emitOn
	}
	return h[i].id < h[j].id
}
func (h itemHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *itemHeap) Push(x interface{}) { *h = append(*h, x.(item)) }
func (h *itemHeap) Pop() interface{} {
	old := *h
	n := len(old)
	it := old[n-1]
	*h = old[:n-1]
	return it
}

// Queue is a FIFO over (emitOn, id) pairs: tasks fire in non-decreasing
// emit tick, insertion order within one tick. The queue is the only
// cross-goroutine mutable resource of the substrate and is guarded by a
// single mutex.
type Queue struct {
	name string

	mu     sync.Mutex
	cond   *sync.Cond
	items  itemHeap
	nextID uint64
	now    uint64
	gen    uint64
	closed bool
}

// New returns an empty queue with the given name.
func New(name string) *Queue {
	q := &Queue{name: name}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *Queue) Name() string { return q.name }

// Push enqueues a task to fire no earlier than delay ticks from now.
func (q *Queue) Push(t Task, delay uint64) {
	q.mu.Lock()
	heap.Push(&q.items, item{id: q.nextID, emitOn: q.now + delay, task: t})
	q.nextID++
	q.bump()
	q.mu.Unlock()
}

// Pop runs the first task whose emit tick has been reached and reports
// whether it did. The task is removed before it runs, so a panicking
// task is never re-run.
func (q *Queue) Pop() bool {
	q.mu.Lock()
	if len(q.items) == 0 || q.items[0].emitOn > q.now {
		q.mu.Unlock()
		return false
	}
	it := heap.Pop(&q.items).(item)
	q.mu.Unlock()

	it.task()
	return true
}

// Tick advances the queue clock and wakes waiters. The clock never goes
// backwards.
func (q *Queue) Tick(now uint64) {
	q.mu.Lock()
	if now > q.now {
		q.now = now
	}
	q.bump()
	q.mu.Unlock()
}

// Wait blocks until the next Push, Tick or Wake, or returns immediately
// once the queue is closed.
func (q *Queue) Wait() {
	q.mu.Lock()
	gen := q.gen
	for q.gen == gen && !q.closed {
		q.cond.Wait()
	}
	q.mu.Unlock()
}

// Wake unblocks all waiters.
func (q *Queue) Wake() {
	q.mu.Lock()
	q.bump()
	q.mu.Unlock()
}

// Close marks the queue dead and releases all waiters. Pending tasks
// stay queued; Pop keeps working so owners can drain on shutdown.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.cond.Broadcast()
	q.mu.Unlock()
}

// Closed reports whether Close was called.
func (q *Queue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Len returns the number of queued tasks, ready or not.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// bump must be called with the lock held.
func (q *Queue) bump() {
	q.gen++
	q.cond.Broadcast()
}
