// Copyright (c) The Kingtaker Authors
// SPDX-License-Identifier: MPL-2.0

package network

import (
	"errors"

	"github.com/falsycat/kingtaker-sub000/internal/node"
)

// Conn is one directed link between two sockets.
type Conn struct {
	Out *node.OutSock
	In  *node.InSock
}

// LinkStore indexes the network's links in both directions so edits and
// serialization can enumerate them without walking every socket. The
// socket-level peer lists stay authoritative for delivery; the store
// mirrors them and sweeps dead entries lazily.
type LinkStore struct {
	fwd map[*node.OutSock]map[*node.InSock]struct{}
	bwd map[*node.InSock]map[*node.OutSock]struct{}
}

func newLinkStore() *LinkStore {
	return &LinkStore{
		fwd: map[*node.OutSock]map[*node.InSock]struct{}{},
		bwd: map[*node.InSock]map[*node.OutSock]struct{}{},
	}
}

func alive(s interface{ Owner() node.Node }) bool {
	return s.Owner().Life().Alive()
}

// record registers an already-made socket link in the index.
func (ls *LinkStore) record(out *node.OutSock, in *node.InSock) {
	if ls.fwd[out] == nil {
		ls.fwd[out] = map[*node.InSock]struct{}{}
	}
	ls.fwd[out][in] = struct{}{}
	if ls.bwd[in] == nil {
		ls.bwd[in] = map[*node.OutSock]struct{}{}
	}
	ls.bwd[in][out] = struct{}{}
}

// Link wires the pair and lets a cached output replay into it. Linking
// a dead socket is an error.
func (ls *LinkStore) Link(ctx *node.Context, out *node.OutSock, in *node.InSock) error {
	if !alive(out) || !alive(in) {
		return errors.New("cannot link deleted socket")
	}
	node.LinkNotify(ctx, out, in)
	ls.record(out, in)
	return nil
}

// Unlink severs the pair. Unlinking a dead socket is an error: the
// command layer relies on it to refuse stale reverts.
func (ls *LinkStore) Unlink(out *node.OutSock, in *node.InSock) error {
	if !alive(out) || !alive(in) {
		return errors.New("cannot unlink deleted socket")
	}
	node.Unlink(out, in)
	if m := ls.fwd[out]; m != nil {
		delete(m, in)
		if len(m) == 0 {
			delete(ls.fwd, out)
		}
	}
	if m := ls.bwd[in]; m != nil {
		delete(m, out)
		if len(m) == 0 {
			delete(ls.bwd, in)
		}
	}
	return nil
}

// DestsOf returns the live destinations of out, in the socket's own
// delivery order. Dead entries are dropped from the index on the way.
func (ls *LinkStore) DestsOf(out *node.OutSock) []*node.InSock {
	set := ls.fwd[out]
	if set == nil {
		return nil
	}
	var dsts []*node.InSock
	for _, in := range out.Destinations() {
		if _, ok := set[in]; !ok {
			continue
		}
		if !alive(in) {
			delete(set, in)
			continue
		}
		dsts = append(dsts, in)
	}
	return dsts
}

// SrcsOf returns the live sources of in.
func (ls *LinkStore) SrcsOf(in *node.InSock) []*node.OutSock {
	set := ls.bwd[in]
	if set == nil {
		return nil
	}
	var srcs []*node.OutSock
	for _, out := range in.Sources() {
		if _, ok := set[out]; !ok {
			continue
		}
		if !alive(out) {
			delete(set, out)
			continue
		}
		srcs = append(srcs, out)
	}
	return srcs
}

// ConnsOf returns every link touching n, outgoing first.
func (ls *LinkStore) ConnsOf(n node.Node) []Conn {
	var conns []Conn
	for _, out := range n.Out() {
		for _, in := range ls.DestsOf(out) {
			conns = append(conns, Conn{Out: out, In: in})
		}
	}
	for _, in := range n.In() {
		for _, out := range ls.SrcsOf(in) {
			if out.Owner() == n {
				continue // self link, already listed as outgoing
			}
			conns = append(conns, Conn{Out: out, In: in})
		}
	}
	return conns
}
