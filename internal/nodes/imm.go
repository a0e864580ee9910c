// Copyright (c) The Kingtaker Authors
// SPDX-License-Identifier: MPL-2.0

// Package nodes holds the builtin value and plumbing nodes.
package nodes

import (
	"github.com/vmihailenco/msgpack/v5"

	"github.com/falsycat/kingtaker-sub000/internal/file"
	"github.com/falsycat/kingtaker-sub000/internal/node"
	"github.com/falsycat/kingtaker-sub000/internal/value"
)

// ImmType is the registration of the immediate-value node.
var ImmType *file.TypeInfo

func init() {
	ImmType = file.Register(&file.TypeInfo{
		Name: "Imm",
		Desc: "emits a stored value on clk",
		Tags: []string{"Node", "DirItem"},
		Deserialize: func(dec *msgpack.Decoder, env *file.Env) (file.File, error) {
			var v value.Value
			if err := v.DecodeMsgpack(dec); err != nil {
				return nil, file.Deserializef(err, "broken immediate value")
			}
			return NewImm(env, v), nil
		},
		Factory: func(env *file.Env) file.File { return NewImm(env, value.Int(0)) },
	})
}

// Imm holds one editable Value and emits it on every clk pulse. The
// output is cached so a link made after the last emission still
// observes the value.
type Imm struct {
	node.Base
	env *file.Env
	val value.Value
}

var _ node.Node = (*Imm)(nil)

func NewImm(env *file.Env, v value.Value) *Imm {
	n := &Imm{Base: node.NewNodeBase(ImmType, node.FlagMenu), env: env, val: v}
	clk := node.NewInSock(n, "clk", func(ctx *node.Context, _ value.Value) error {
		n.FindOut("out").Send(ctx, n.val)
		return nil
	})
	out := node.NewCachedOutSock(n, "out", env.Queues.Sub)
	n.SetSocks([]*node.InSock{clk}, []*node.OutSock{out})
	return n
}

// Value returns the stored value.
func (n *Imm) Value() value.Value { return n.val }

// SetValue replaces the stored value.
func (n *Imm) SetValue(v value.Value) {
	n.val = v
	n.Touch()
}

func (n *Imm) Serialize(enc *msgpack.Encoder) error {
	return n.val.EncodeMsgpack(enc)
}

func (n *Imm) Clone(env *file.Env) (file.File, error) {
	return NewImm(env, n.val.Clone()), nil
}
