// Copyright (c) The Kingtaker Authors
// SPDX-License-Identifier: MPL-2.0

// Package node defines the dataflow side of the file tree: nodes,
// their input/output sockets, link bookkeeping, and the per-evaluation
// Context.
package node

import (
	"sync/atomic"

	"github.com/falsycat/kingtaker-sub000/internal/file"
)

// Flags carries node-level behavior hints.
type Flags uint32

const (
	// FlagMenu marks nodes that expose a per-node menu to the host.
	FlagMenu Flags = 1 << iota
)

// Node is a File participating in the dataflow graph.
type Node interface {
	file.File

	Flags() Flags
	Life() *Life
	In() []*InSock
	Out() []*OutSock
	FindIn(name string) *InSock
	FindOut(name string) *OutSock
}

// Life is a liveness token. Closures and peer sockets that refer back
// to a node hold its Life and early-return once it expires; this
// replaces per-closure cancellation registrations.
type Life struct {
	dead atomic.Bool
}

func NewLife() *Life { return &Life{} }

func (l *Life) Alive() bool {
	return l != nil && !l.dead.Load()
}

// Expire marks the owner dead. Survivors observe it on their next
// enumeration.
func (l *Life) Expire() { l.dead.Store(true) }

// Base carries the socket lists and liveness boilerplate of concrete
// node types.
type Base struct {
	file.Base

	life  *Life
	flags Flags
	in    []*InSock
	out   []*OutSock
}

// NewNodeBase stamps a Base with its TypeInfo and a fresh Life.
func NewNodeBase(ti *file.TypeInfo, flags Flags) Base {
	return Base{Base: file.NewBase(ti), life: NewLife(), flags: flags}
}

func (b *Base) Flags() Flags    { return b.flags }
func (b *Base) Life() *Life     { return b.life }
func (b *Base) In() []*InSock   { return b.in }
func (b *Base) Out() []*OutSock { return b.out }

func (b *Base) FindIn(name string) *InSock {
	for _, s := range b.in {
		if s.Name() == name {
			return s
		}
	}
	return nil
}

func (b *Base) FindOut(name string) *OutSock {
	for _, s := range b.out {
		if s.Name() == name {
			return s
		}
	}
	return nil
}

// SetSocks replaces the socket lists. Owners call this once at
// construction, and again only when reshaping (reference nodes).
func (b *Base) SetSocks(in []*InSock, out []*OutSock) {
	b.in = in
	b.out = out
}
