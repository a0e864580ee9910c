// Copyright (c) The Kingtaker Authors
// SPDX-License-Identifier: MPL-2.0

package nodes

import (
	"strconv"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/falsycat/kingtaker-sub000/internal/file"
	"github.com/falsycat/kingtaker-sub000/internal/node"
	"github.com/falsycat/kingtaker-sub000/internal/value"
)

// SatisfyType is the registration of the all-inputs gate.
var SatisfyType *file.TypeInfo

func init() {
	SatisfyType = file.Register(&file.TypeInfo{
		Name: "Satisfy",
		Desc: "fires once every input has arrived",
		Tags: []string{"Node"},
		Deserialize: func(dec *msgpack.Decoder, env *file.Env) (file.File, error) {
			n, err := dec.DecodeInt()
			if err != nil {
				return nil, file.Deserializef(err, "broken input count")
			}
			if n < 1 || n > satisfyMaxInputs {
				return nil, file.Deserializef(nil, "input count out of range: %d", n)
			}
			return NewSatisfy(env, n), nil
		},
		Factory: func(env *file.Env) file.File { return NewSatisfy(env, 2) },
	})
}

const satisfyMaxInputs = 64

// Satisfy emits a pulse on "out" once all of its numbered inputs have
// received a value within one context. The arrival flags are never
// reset: after the first full set, every further delivery finds the
// condition still satisfied and fires again immediately.
type Satisfy struct {
	node.Base
	env  *file.Env
	size int
}

var _ node.Node = (*Satisfy)(nil)

type satisfyData struct {
	arrived []bool
}

func NewSatisfy(env *file.Env, size int) *Satisfy {
	n := &Satisfy{Base: node.NewNodeBase(SatisfyType, node.FlagMenu), env: env, size: size}
	in := make([]*node.InSock, size)
	for i := 0; i < size; i++ {
		idx := i
		in[i] = node.NewInSock(n, strconv.Itoa(i), func(ctx *node.Context, _ value.Value) error {
			d, err := node.GetOrNew(ctx, node.Node(n), func() *satisfyData {
				return &satisfyData{arrived: make([]bool, size)}
			})
			if err != nil {
				return err
			}
			d.arrived[idx] = true
			for _, ok := range d.arrived {
				if !ok {
					return nil
				}
			}
			n.FindOut("out").Send(ctx, value.Pulse())
			return nil
		})
	}
	out := node.NewOutSock(n, "out", env.Queues.Sub)
	n.SetSocks(in, []*node.OutSock{out})
	return n
}

// Size returns the input count.
func (n *Satisfy) Size() int { return n.size }

func (n *Satisfy) Serialize(enc *msgpack.Encoder) error {
	return enc.EncodeInt(int64(n.size))
}

func (n *Satisfy) Clone(env *file.Env) (file.File, error) {
	return NewSatisfy(env, n.size), nil
}
