// Copyright (c) The Kingtaker Authors
// SPDX-License-Identifier: MPL-2.0

package nodes

import (
	"github.com/vmihailenco/msgpack/v5"

	"github.com/falsycat/kingtaker-sub000/internal/file"
	"github.com/falsycat/kingtaker-sub000/internal/node"
	"github.com/falsycat/kingtaker-sub000/internal/value"
)

// PassthruType is the registration of the forwarding node.
var PassthruType *file.TypeInfo

func init() {
	PassthruType = file.Register(&file.TypeInfo{
		Name: "Passthru",
		Desc: "forwards its input unchanged",
		Tags: []string{"Node"},
		Deserialize: func(dec *msgpack.Decoder, env *file.Env) (file.File, error) {
			if err := dec.Skip(); err != nil {
				return nil, err
			}
			return NewPassthru(env), nil
		},
		Factory: func(env *file.Env) file.File { return NewPassthru(env) },
	})
}

// Passthru relays whatever arrives on "in" to "out". Useful as a wire
// junction and as a tap point.
type Passthru struct {
	node.Base
	env *file.Env
}

var _ node.Node = (*Passthru)(nil)

func NewPassthru(env *file.Env) *Passthru {
	n := &Passthru{Base: node.NewNodeBase(PassthruType, 0), env: env}
	in := node.NewInSock(n, "in", func(ctx *node.Context, v value.Value) error {
		n.FindOut("out").Send(ctx, v)
		return nil
	})
	out := node.NewOutSock(n, "out", env.Queues.Sub)
	n.SetSocks([]*node.InSock{in}, []*node.OutSock{out})
	return n
}

func (n *Passthru) Serialize(enc *msgpack.Encoder) error { return enc.EncodeNil() }

func (n *Passthru) Clone(env *file.Env) (file.File, error) {
	return NewPassthru(env), nil
}
