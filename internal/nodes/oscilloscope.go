// Copyright (c) The Kingtaker Authors
// SPDX-License-Identifier: MPL-2.0

package nodes

import (
	"github.com/vmihailenco/msgpack/v5"

	"github.com/falsycat/kingtaker-sub000/internal/file"
	"github.com/falsycat/kingtaker-sub000/internal/node"
	"github.com/falsycat/kingtaker-sub000/internal/value"
)

// OscilloscopeType is the registration of the sample recorder.
var OscilloscopeType *file.TypeInfo

func init() {
	OscilloscopeType = file.Register(&file.TypeInfo{
		Name: "Oscilloscope",
		Desc: "records received values per evaluation",
		Tags: []string{"Node"},
		Deserialize: func(dec *msgpack.Decoder, env *file.Env) (file.File, error) {
			if err := dec.Skip(); err != nil {
				return nil, err
			}
			return NewOscilloscope(env), nil
		},
		Factory: func(env *file.Env) file.File { return NewOscilloscope(env) },
	})
}

// Oscilloscope keeps a per-context sample log: each value arriving on
// "in" advances the clk counter and is stored under it, so the first
// sample sits at clk 1. The plot widget reads the log through
// Samples; the samples themselves are volatile and never persist.
type Oscilloscope struct {
	node.Base
	env *file.Env
}

var _ node.Node = (*Oscilloscope)(nil)

type oscData struct {
	clk     uint64
	samples map[uint64]value.Value
}

func NewOscilloscope(env *file.Env) *Oscilloscope {
	n := &Oscilloscope{Base: node.NewNodeBase(OscilloscopeType, node.FlagMenu), env: env}
	in := node.NewInSock(n, "in", func(ctx *node.Context, v value.Value) error {
		d, err := n.data(ctx)
		if err != nil {
			return err
		}
		d.clk++
		d.samples[d.clk] = v
		return nil
	})
	clr := node.NewInSock(n, "clear", func(ctx *node.Context, _ value.Value) error {
		d, err := n.data(ctx)
		if err != nil {
			return err
		}
		d.clk = 0
		d.samples = map[uint64]value.Value{}
		return nil
	})
	n.SetSocks([]*node.InSock{clr, in}, nil)
	return n
}

func (n *Oscilloscope) data(ctx *node.Context) (*oscData, error) {
	return node.GetOrNew(ctx, node.Node(n), func() *oscData {
		return &oscData{samples: map[uint64]value.Value{}}
	})
}

// Sample returns the value stored at clk within ctx.
func (n *Oscilloscope) Sample(ctx *node.Context, clk uint64) (value.Value, bool) {
	d, err := n.data(ctx)
	if err != nil {
		return value.Value{}, false
	}
	v, ok := d.samples[clk]
	return v, ok
}

// Clk returns the current sample counter within ctx.
func (n *Oscilloscope) Clk(ctx *node.Context) uint64 {
	d, err := n.data(ctx)
	if err != nil {
		return 0
	}
	return d.clk
}

func (n *Oscilloscope) Serialize(enc *msgpack.Encoder) error { return enc.EncodeNil() }

func (n *Oscilloscope) Clone(env *file.Env) (file.File, error) {
	return NewOscilloscope(env), nil
}
