// Copyright (c) The Kingtaker Authors
// SPDX-License-Identifier: MPL-2.0

package node

import (
	"github.com/falsycat/kingtaker-sub000/internal/queue"
	"github.com/falsycat/kingtaker-sub000/internal/value"
)

// Receiver handles one delivered value on an input socket.
type Receiver func(ctx *Context, v value.Value) error

// InSock is a named input endpoint. It tracks its source outputs so
// the link invariant holds both ways; dead peers are swept lazily by
// CleanConns.
type InSock struct {
	owner Node
	name  string
	recv  Receiver

	cache bool
	last  *value.Value

	srcs []*OutSock
}

// NewInSock builds a plain input delivering to recv. recv is typically
// a bound method of the owner, or an ad-hoc closure for lambda inputs.
func NewInSock(owner Node, name string, recv Receiver) *InSock {
	return &InSock{owner: owner, name: name, recv: recv}
}

// NewCachedInSock builds an input that stores the last received value.
// recv may be nil.
func NewCachedInSock(owner Node, name string, recv Receiver) *InSock {
	return &InSock{owner: owner, name: name, recv: recv, cache: true}
}

func (s *InSock) Owner() Node  { return s.owner }
func (s *InSock) Name() string { return s.name }

func (s *InSock) alive() bool { return s.owner.Life().Alive() }

// Receive delivers a value. Deliveries to a dead owner are dropped
// silently. A receiver error fires a pulse on the owner's "errr"
// output when one exists, then propagates.
func (s *InSock) Receive(ctx *Context, v value.Value) error {
	if !s.alive() {
		return nil
	}
	if s.cache {
		stored := v.Clone()
		s.last = &stored
	}
	if s.recv == nil {
		return nil
	}
	if err := s.recv(ctx, v); err != nil {
		if errOut := s.owner.FindOut("errr"); errOut != nil {
			errOut.Send(ctx, value.Pulse())
		}
		return err
	}
	return nil
}

// Peek returns the cached value of a cached input.
func (s *InSock) Peek() (value.Value, bool) {
	if s.last == nil {
		return value.Value{}, false
	}
	return *s.last, true
}

// Sources returns the live source outputs.
func (s *InSock) Sources() []*OutSock {
	s.CleanConns()
	return s.srcs
}

// CleanConns drops peers whose owner died.
func (s *InSock) CleanConns() {
	live := s.srcs[:0]
	for _, o := range s.srcs {
		if o.alive() {
			live = append(live, o)
		}
	}
	s.srcs = live
}

// OutSock is a named output endpoint broadcasting through the sub
// queue.
type OutSock struct {
	owner Node
	name  string
	sub   *queue.Queue

	cache bool
	last  *value.Value

	dsts []*InSock
}

// NewOutSock builds a plain output delivering through sub.
func NewOutSock(owner Node, name string, sub *queue.Queue) *OutSock {
	return &OutSock{owner: owner, name: name, sub: sub}
}

// NewCachedOutSock builds an output that additionally stores the last
// sent value and replays it into newly linked inputs.
func NewCachedOutSock(owner Node, name string, sub *queue.Queue) *OutSock {
	return &OutSock{owner: owner, name: name, sub: sub, cache: true}
}

func (s *OutSock) Owner() Node  { return s.owner }
func (s *OutSock) Name() string { return s.name }

func (s *OutSock) alive() bool { return s.owner.Life().Alive() }

// Send enqueues one closure on the sub queue that delivers v to every
// live destination in list order. All destinations observe the value in
// the same sub tick; each receives its own clone. Receiver errors go to
// the context's error sink.
func (s *OutSock) Send(ctx *Context, v value.Value) {
	if s.cache {
		stored := v.Clone()
		s.last = &stored
	}
	life := s.owner.Life()
	s.sub.Push(func() {
		if !life.Alive() {
			return
		}
		s.CleanConns()
		for _, in := range s.dsts {
			if err := in.Receive(ctx, v.Clone()); err != nil {
				ctx.sink(in.Owner(), in.Name(), err)
			}
		}
	}, 0)
}

// Last returns the value a cached output would replay.
func (s *OutSock) Last() (value.Value, bool) {
	if s.last == nil {
		return value.Value{}, false
	}
	return *s.last, true
}

// Destinations returns the live destination inputs.
func (s *OutSock) Destinations() []*InSock {
	s.CleanConns()
	return s.dsts
}

// CleanConns drops peers whose owner died.
func (s *OutSock) CleanConns() {
	live := s.dsts[:0]
	for _, in := range s.dsts {
		if in.alive() {
			live = append(live, in)
		}
	}
	s.dsts = live
}

// notifyLink lets a cached output replay its stored value into a newly
// attached input.
func (s *OutSock) notifyLink(ctx *Context, in *InSock) {
	if !s.cache || s.last == nil {
		return
	}
	v := *s.last
	life := s.owner.Life()
	s.sub.Push(func() {
		if !life.Alive() {
			return
		}
		if err := in.Receive(ctx, v.Clone()); err != nil {
			ctx.sink(in.Owner(), in.Name(), err)
		}
	}, 0)
}

// Link appends the pair to both peer lists. Duplicates are not deduped
// here; the network edit path never creates them intentionally.
func Link(out *OutSock, in *InSock) {
	in.srcs = append(in.srcs, out)
	out.dsts = append(out.dsts, in)
}

// LinkNotify links and then lets both endpoints react; a cached output
// replays its stored value into the new input.
func LinkNotify(ctx *Context, out *OutSock, in *InSock) {
	Link(out, in)
	out.notifyLink(ctx, in)
}

// Unlink erases the pair from both peer lists and sweeps dead entries.
func Unlink(out *OutSock, in *InSock) {
	srcs := in.srcs[:0]
	for _, o := range in.srcs {
		if o != out && o.alive() {
			srcs = append(srcs, o)
		}
	}
	in.srcs = srcs

	dsts := out.dsts[:0]
	for _, i := range out.dsts {
		if i != in && i.alive() {
			dsts = append(dsts, i)
		}
	}
	out.dsts = dsts
}
