// Copyright (c) The Kingtaker Authors
// SPDX-License-Identifier: MPL-2.0

package network

import (
	"errors"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/falsycat/kingtaker-sub000/internal/file"
	"github.com/falsycat/kingtaker-sub000/internal/node"
	"github.com/falsycat/kingtaker-sub000/internal/value"
)

// refDepthMax caps the resolved stack depth so chains of references
// cannot recurse forever.
const refDepthMax = 256

// RefType is the registration of the reference node.
var RefType *file.TypeInfo

func init() {
	RefType = file.Register(&file.TypeInfo{
		Name: "NodeRef",
		Desc: "forwards I/O to the node at a path",
		Tags: []string{"Node"},
		Deserialize: func(dec *msgpack.Decoder, env *file.Env) (file.File, error) {
			return deserializeRef(dec, env)
		},
		Factory: func(env *file.Env) file.File { return NewRef(env, "") },
	})
}

// Reference is a node standing in for the node at a path. The path is
// re-resolved on every delivery, so a replaced target is picked up
// immediately; its socket lists are a snapshot mirroring the target and
// refresh only through SyncSocks.
type Reference struct {
	node.Base
	env  *file.Env
	path string
	net  *Network
}

var _ node.Node = (*Reference)(nil)
var _ internalNode = (*Reference)(nil)

// NewRef builds a reference with empty socket lists; call SyncSocks
// once the target is reachable.
func NewRef(env *file.Env, path string) *Reference {
	return &Reference{Base: node.NewNodeBase(RefType, node.FlagMenu), env: env, path: path}
}

func (r *Reference) Path() string { return r.path }

// SetPath replaces the target path. Sockets keep their old shape until
// SyncSocks.
func (r *Reference) SetPath(path string) {
	r.path = path
	r.Touch()
}

func (r *Reference) Setup(net *Network) error {
	r.net = net
	return nil
}

func (r *Reference) Teardown(net *Network) {
	if r.net == net {
		r.net = nil
	}
}

// stack returns the resolution origin: the owning network's location,
// or a root-only stack before attachment.
func (r *Reference) stack() *file.RefStack {
	if r.net != nil {
		return r.net.Stack()
	}
	return file.NewRefStack(r.env.Root)
}

// resolveTarget resolves the path to a live node.
func (r *Reference) resolveTarget() (node.Node, error) {
	rs, err := r.stack().ResolveString(r.path)
	if err != nil {
		return nil, err
	}
	if rs.Depth() > refDepthMax {
		return nil, errors.New("recursive reference")
	}
	top := rs.Top()
	if top == file.File(r) {
		return nil, errors.New("recursive reference")
	}
	nd, ok := top.(node.Node)
	if !ok {
		return nil, errors.New("target is not a node")
	}
	return nd, nil
}

// refData is the per-evaluation bridge: a nested context whose watcher
// carries the target's output values back onto the outer context.
type refData struct {
	inner *node.Context
}

func (r *Reference) bridge(outer *node.Context) (*node.Context, error) {
	d, err := node.GetOrNew(outer, node.Node(r), func() *refData {
		w := &refWatcher{ref: r, outer: outer}
		return &refData{inner: node.NewContext(r.env.Queues.Sub, r.env.Log, w)}
	})
	if err != nil {
		return nil, err
	}
	return d.inner, nil
}

type refWatcher struct {
	ref   *Reference
	outer *node.Context
}

func (w *refWatcher) Receive(name string, v value.Value) {
	if out := w.ref.FindOut(name); out != nil {
		out.Send(w.outer, v)
	}
}

func (r *Reference) makeIn(name string) *node.InSock {
	return node.NewInSock(r, name, func(ctx *node.Context, v value.Value) error {
		target, err := r.resolveTarget()
		if err != nil {
			return err
		}
		in := target.FindIn(name)
		if in == nil {
			return nil // the target lost this socket; drop
		}
		inner, err := r.bridge(ctx)
		if err != nil {
			return err
		}
		return in.Receive(inner, v)
	})
}

// SyncSocks reshapes the reference's socket lists to mirror the current
// target. Sockets whose names survive are kept so existing links stay
// valid.
func (r *Reference) SyncSocks() error {
	target, err := r.resolveTarget()
	if err != nil {
		return err
	}
	var inNames, outNames []string
	for _, s := range target.In() {
		inNames = append(inNames, s.Name())
	}
	for _, s := range target.Out() {
		outNames = append(outNames, s.Name())
	}
	r.rebuildSocks(inNames, outNames)
	return nil
}

func (r *Reference) rebuildSocks(inNames, outNames []string) {
	var in []*node.InSock
	for _, name := range inNames {
		if old := r.FindIn(name); old != nil {
			in = append(in, old)
			continue
		}
		in = append(in, r.makeIn(name))
	}
	var out []*node.OutSock
	for _, name := range outNames {
		if old := r.FindOut(name); old != nil {
			out = append(out, old)
			continue
		}
		out = append(out, node.NewOutSock(r, name, r.env.Queues.Sub))
	}
	r.SetSocks(in, out)
	r.Touch()
}

// Serialize writes {path, in, out}. The socket names persist so links
// survive a save/load cycle even when the target is unresolvable at
// load time.
func (r *Reference) Serialize(enc *msgpack.Encoder) error {
	if err := enc.EncodeMapLen(3); err != nil {
		return err
	}
	if err := enc.EncodeString("path"); err != nil {
		return err
	}
	if err := enc.EncodeString(r.path); err != nil {
		return err
	}
	if err := enc.EncodeString("in"); err != nil {
		return err
	}
	if err := enc.EncodeArrayLen(len(r.In())); err != nil {
		return err
	}
	for _, s := range r.In() {
		if err := enc.EncodeString(s.Name()); err != nil {
			return err
		}
	}
	if err := enc.EncodeString("out"); err != nil {
		return err
	}
	if err := enc.EncodeArrayLen(len(r.Out())); err != nil {
		return err
	}
	for _, s := range r.Out() {
		if err := enc.EncodeString(s.Name()); err != nil {
			return err
		}
	}
	return nil
}

func deserializeRef(dec *msgpack.Decoder, env *file.Env) (file.File, error) {
	cnt, err := dec.DecodeMapLen()
	if err != nil {
		return nil, err
	}
	r := NewRef(env, "")
	var inNames, outNames []string
	for i := 0; i < cnt; i++ {
		key, err := dec.DecodeString()
		if err != nil {
			return nil, err
		}
		switch key {
		case "path":
			if r.path, err = dec.DecodeString(); err != nil {
				return nil, err
			}
		case "in":
			if inNames, err = decodeNames(dec); err != nil {
				return nil, err
			}
		case "out":
			if outNames, err = decodeNames(dec); err != nil {
				return nil, err
			}
		default:
			if err := dec.Skip(); err != nil {
				return nil, err
			}
		}
	}
	r.rebuildSocks(inNames, outNames)
	return r, nil
}

func decodeNames(dec *msgpack.Decoder) ([]string, error) {
	cnt, err := dec.DecodeArrayLen()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, cnt)
	for i := 0; i < cnt; i++ {
		name, err := dec.DecodeString()
		if err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, nil
}

func (r *Reference) Clone(env *file.Env) (file.File, error) {
	cl := NewRef(env, r.path)
	var inNames, outNames []string
	for _, s := range r.In() {
		inNames = append(inNames, s.Name())
	}
	for _, s := range r.Out() {
		outNames = append(outNames, s.Name())
	}
	cl.rebuildSocks(inNames, outNames)
	return cl, nil
}
