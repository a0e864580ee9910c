// Copyright (c) The Kingtaker Authors
// SPDX-License-Identifier: MPL-2.0

package network

import (
	"sort"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/falsycat/kingtaker-sub000/internal/file"
	"github.com/falsycat/kingtaker-sub000/internal/node"
	"github.com/falsycat/kingtaker-sub000/internal/value"
)

// The network's own sockets are context sockets: one input socket per
// distinct InputNode name, one output socket per distinct OutputNode
// name. They appear when the first internal node of that name attaches
// and disappear with the last, and the socket lists stay sorted by
// name.

type boundIn struct {
	sock  *node.InSock
	nodes []*InputNode
}

type boundOut struct {
	sock  *node.OutSock
	nodes []*OutputNode
}

// netCtxData maps one outer evaluation onto the network's inside: a
// nested context whose watcher routes output-node values back out on
// the outer context.
type netCtxData struct {
	inner *node.Context
}

type netWatcher struct {
	net   *Network
	outer *node.Context
}

func (w *netWatcher) Receive(name string, v value.Value) {
	if out := w.net.FindOut(name); out != nil {
		out.Send(w.outer, v)
	}
}

// innerCtx returns the nested context serving outer, creating it on
// first entry.
func (n *Network) innerCtx(outer *node.Context) (*node.Context, error) {
	d, err := node.GetOrNew(outer, node.Node(n), func() *netCtxData {
		w := &netWatcher{net: n, outer: outer}
		return &netCtxData{inner: node.NewContext(n.env.Queues.Sub, n.env.Log, w)}
	})
	if err != nil {
		return nil, err
	}
	return d.inner, nil
}

func (n *Network) resortSocks() {
	in := append([]*node.InSock{}, n.In()...)
	out := append([]*node.OutSock{}, n.Out()...)
	sort.Slice(in, func(i, j int) bool { return in[i].Name() < in[j].Name() })
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	n.SetSocks(in, out)
}

func (n *Network) bindIn(name string, inode *InputNode) {
	b := n.boundIn[name]
	if b == nil {
		recv := func(ctx *node.Context, v value.Value) error {
			inner, err := n.innerCtx(ctx)
			if err != nil {
				return err
			}
			cur := n.boundIn[name]
			if cur == nil {
				return nil
			}
			for _, bound := range cur.nodes {
				if out := bound.FindOut("out"); out != nil {
					out.Send(inner, v)
				}
			}
			return nil
		}
		b = &boundIn{sock: node.NewInSock(n, name, recv)}
		n.boundIn[name] = b
		n.SetSocks(append(n.In(), b.sock), n.Out())
		n.resortSocks()
	}
	b.nodes = append(b.nodes, inode)
}

func (n *Network) unbindIn(name string, inode *InputNode) {
	b := n.boundIn[name]
	if b == nil {
		return
	}
	for i, cur := range b.nodes {
		if cur == inode {
			b.nodes = append(b.nodes[:i], b.nodes[i+1:]...)
			break
		}
	}
	if len(b.nodes) > 0 {
		return
	}
	delete(n.boundIn, name)
	in := n.In()[:0:0]
	for _, s := range n.In() {
		if s != b.sock {
			in = append(in, s)
		}
	}
	n.SetSocks(in, n.Out())
}

func (n *Network) bindOut(name string, onode *OutputNode) {
	b := n.boundOut[name]
	if b == nil {
		b = &boundOut{sock: node.NewOutSock(n, name, n.env.Queues.Sub)}
		n.boundOut[name] = b
		n.SetSocks(n.In(), append(n.Out(), b.sock))
		n.resortSocks()
	}
	b.nodes = append(b.nodes, onode)
}

func (n *Network) unbindOut(name string, onode *OutputNode) {
	b := n.boundOut[name]
	if b == nil {
		return
	}
	for i, cur := range b.nodes {
		if cur == onode {
			b.nodes = append(b.nodes[:i], b.nodes[i+1:]...)
			break
		}
	}
	if len(b.nodes) > 0 {
		return
	}
	delete(n.boundOut, name)
	out := n.Out()[:0:0]
	for _, s := range n.Out() {
		if s != b.sock {
			out = append(out, s)
		}
	}
	n.SetSocks(n.In(), out)
}

// InputType is the registration of the boundary input node.
var InputType *file.TypeInfo

func init() {
	InputType = file.Register(&file.TypeInfo{
		Name: "NodeNetIn",
		Desc: "exposes a socket on the enclosing network",
		Tags: []string{"Node"},
		Deserialize: func(dec *msgpack.Decoder, env *file.Env) (file.File, error) {
			name, err := dec.DecodeString()
			if err != nil {
				return nil, file.Deserializef(err, "broken socket name")
			}
			if err := file.CheckName(name); err != nil {
				return nil, file.Deserializef(err, "bad socket name")
			}
			return NewInput(env, name), nil
		},
		Factory: func(env *file.Env) file.File { return NewInput(env, "in") },
	})
}

// InputNode receives what arrives on the enclosing network's context
// socket of the same name and re-emits it inside.
type InputNode struct {
	node.Base
	env  *file.Env
	name string
}

var _ node.Node = (*InputNode)(nil)
var _ internalNode = (*InputNode)(nil)

func NewInput(env *file.Env, name string) *InputNode {
	n := &InputNode{Base: node.NewNodeBase(InputType, 0), env: env, name: name}
	n.SetSocks(nil, []*node.OutSock{node.NewOutSock(n, "out", env.Queues.Sub)})
	return n
}

func (n *InputNode) SockName() string { return n.name }

func (n *InputNode) Setup(net *Network) error {
	net.bindIn(n.name, n)
	return nil
}

func (n *InputNode) Teardown(net *Network) {
	net.unbindIn(n.name, n)
}

func (n *InputNode) Serialize(enc *msgpack.Encoder) error {
	return enc.EncodeString(n.name)
}

func (n *InputNode) Clone(env *file.Env) (file.File, error) {
	return NewInput(env, n.name), nil
}

// OutputType is the registration of the boundary output node.
var OutputType *file.TypeInfo

func init() {
	OutputType = file.Register(&file.TypeInfo{
		Name: "NodeNetOut",
		Desc: "forwards values out of the enclosing network",
		Tags: []string{"Node"},
		Deserialize: func(dec *msgpack.Decoder, env *file.Env) (file.File, error) {
			name, err := dec.DecodeString()
			if err != nil {
				return nil, file.Deserializef(err, "broken socket name")
			}
			if err := file.CheckName(name); err != nil {
				return nil, file.Deserializef(err, "bad socket name")
			}
			return NewOutput(env, name), nil
		},
		Factory: func(env *file.Env) file.File { return NewOutput(env, "out") },
	})
}

// OutputNode forwards everything delivered to its "in" socket to the
// evaluation's watcher; the network routes it onward to the context
// socket of the same name.
type OutputNode struct {
	node.Base
	env  *file.Env
	name string
}

var _ node.Node = (*OutputNode)(nil)
var _ internalNode = (*OutputNode)(nil)

func NewOutput(env *file.Env, name string) *OutputNode {
	n := &OutputNode{Base: node.NewNodeBase(OutputType, 0), env: env, name: name}
	in := node.NewInSock(n, "in", func(ctx *node.Context, v value.Value) error {
		ctx.Receive(n.name, v)
		return nil
	})
	n.SetSocks([]*node.InSock{in}, nil)
	return n
}

func (n *OutputNode) SockName() string { return n.name }

func (n *OutputNode) Setup(net *Network) error {
	net.bindOut(n.name, n)
	return nil
}

func (n *OutputNode) Teardown(net *Network) {
	net.unbindOut(n.name, n)
}

func (n *OutputNode) Serialize(enc *msgpack.Encoder) error {
	return enc.EncodeString(n.name)
}

func (n *OutputNode) Clone(env *file.Env) (file.File, error) {
	return NewOutput(env, n.name), nil
}
