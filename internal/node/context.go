// Copyright (c) The Kingtaker Authors
// SPDX-License-Identifier: MPL-2.0

package node

import (
	"errors"
	"sync"

	"github.com/hashicorp/go-hclog"

	"github.com/falsycat/kingtaker-sub000/internal/queue"
	"github.com/falsycat/kingtaker-sub000/internal/value"
)

// Data is per-node evaluation state. Each node defines its own concrete
// Data type and retrieves it with GetOrNew.
type Data interface{}

// Watcher observes side-channel messages of one Context, e.g. the
// output values a reference node forwards back out.
type Watcher interface {
	Receive(name string, v value.Value)
}

// Context is the per-evaluation scratch space of one graph traversal.
// It maps nodes to their typed Data slot and forwards watcher messages
// through the sub queue. Values sent on one Context never reach the
// watcher of another.
type Context struct {
	sub     *queue.Queue
	log     hclog.Logger
	watcher Watcher
	life    *Life

	mu   sync.Mutex
	data map[Node]Data
}

// NewContext builds a context delivering through sub. log may be nil;
// watcher may be nil for contexts nobody observes.
func NewContext(sub *queue.Queue, log hclog.Logger, watcher Watcher) *Context {
	return &Context{
		sub:     sub,
		log:     log,
		watcher: watcher,
		life:    NewLife(),
		data:    map[Node]Data{},
	}
}

// Life returns the context liveness token. Expiring it makes queued
// deliveries and watcher messages no-ops.
func (c *Context) Life() *Life { return c.life }

// Sub returns the delivery queue.
func (c *Context) Sub() *queue.Queue { return c.sub }

// Receive forwards a named value to the attached watcher via the sub
// queue.
func (c *Context) Receive(name string, v value.Value) {
	if c.watcher == nil {
		return
	}
	c.sub.Push(func() {
		if !c.life.Alive() {
			return
		}
		c.watcher.Receive(name, v)
	}, 0)
}

// sink reports a receiver failure. Socket-level runtime errors are not
// fatal: they become a log line (the "errr" pulse is fired by the
// socket itself).
func (c *Context) sink(owner Node, sock string, err error) {
	if c.log == nil {
		return
	}
	c.log.Error("socket delivery failed",
		"node", owner.Type().Name, "sock", sock, "error", err)
}

// Drop discards the Data slot of n, typically on node teardown.
func (c *Context) Drop(n Node) {
	c.mu.Lock()
	delete(c.data, n)
	c.mu.Unlock()
}

// GetOrNew returns the T-typed Data slot of n, creating it with mk on
// first use. A slot already holding a different concrete type is an
// error.
func GetOrNew[T Data](c *Context, n Node, mk func() T) (T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if d, ok := c.data[n]; ok {
		t, ok := d.(T)
		if !ok {
			var zero T
			return zero, errors.New("data is already set, but down cast failed")
		}
		return t, nil
	}
	t := mk()
	c.data[n] = t
	return t, nil
}
