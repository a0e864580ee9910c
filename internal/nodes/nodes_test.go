// Copyright (c) The Kingtaker Authors
// SPDX-License-Identifier: MPL-2.0

package nodes

import (
	"bytes"
	"errors"
	"testing"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/falsycat/kingtaker-sub000/internal/file"
	"github.com/falsycat/kingtaker-sub000/internal/node"
	"github.com/falsycat/kingtaker-sub000/internal/queue"
	"github.com/falsycat/kingtaker-sub000/internal/value"
)

var sinkType = file.Register(&file.TypeInfo{
	Name: "NodesTestSink",
	Desc: "capture node for builtin node tests",
	Tags: []string{"Node"},
})

type sink struct {
	node.Base
	got []value.Value
}

func (n *sink) Serialize(*msgpack.Encoder) error { return nil }
func (n *sink) Clone(*file.Env) (file.File, error) {
	return nil, errors.New("not cloneable")
}

func newSink() *sink {
	n := &sink{Base: node.NewNodeBase(sinkType, 0)}
	in := node.NewInSock(n, "in", func(_ *node.Context, v value.Value) error {
		n.got = append(n.got, v)
		return nil
	})
	n.SetSocks([]*node.InSock{in}, nil)
	return n
}

func newTestEnv() *file.Env {
	return &file.Env{
		Queues: &queue.Set{
			Main: queue.New(queue.NameMain),
			Sub:  queue.New(queue.NameSub),
			GL:   queue.New(queue.NameGL),
		},
	}
}

func drain(env *file.Env) {
	for env.Queues.Main.Pop() || env.Queues.Sub.Pop() {
	}
}

func TestImmEmitsOnClk(t *testing.T) {
	env := newTestEnv()
	ctx := node.NewContext(env.Queues.Sub, nil, nil)
	imm := NewImm(env, value.Str("hello"))
	dst := newSink()
	node.Link(imm.FindOut("out"), dst.FindIn("in"))

	if err := imm.FindIn("clk").Receive(ctx, value.Pulse()); err != nil {
		t.Fatal(err)
	}
	drain(env)
	if len(dst.got) != 1 || !dst.got[0].Equal(value.Str("hello")) {
		t.Fatalf("sink got %v", dst.got)
	}

	t.Run("cached replay on late link", func(t *testing.T) {
		late := newSink()
		node.LinkNotify(ctx, imm.FindOut("out"), late.FindIn("in"))
		drain(env)
		if len(late.got) != 1 {
			t.Fatal("late link missed the cached value")
		}
	})
}

// An integer Imm nested in directories survives a full serialize and
// reload, and resolves at the same path.
func TestImmTreeRoundTrip(t *testing.T) {
	env := newTestEnv()
	root := file.NewGenericDir(env)
	sub := file.NewGenericDir(env)
	if err := root.Add("sub", sub); err != nil {
		t.Fatal(err)
	}
	if err := sub.Add("imm", NewImm(env, value.Int(7))); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := file.SerializeWithType(msgpack.NewEncoder(&buf), root); err != nil {
		t.Fatal(err)
	}

	env2 := newTestEnv()
	f, err := file.Deserialize(msgpack.NewDecoder(bytes.NewReader(buf.Bytes())), env2)
	if err != nil {
		t.Fatal(err)
	}
	env2.Root = f
	rs, err := file.NewRefStack(f).ResolveString("sub/imm")
	if err != nil {
		t.Fatal(err)
	}
	imm, ok := rs.Top().(*Imm)
	if !ok {
		t.Fatalf("resolved a %T", rs.Top())
	}
	if !imm.Value().Equal(value.Int(7)) {
		t.Fatalf("value = %s", imm.Value())
	}
}

// Passthru feeding an Oscilloscope: the first forwarded value lands at
// clk 1.
func TestPassthruOscilloscope(t *testing.T) {
	env := newTestEnv()
	ctx := node.NewContext(env.Queues.Sub, nil, nil)
	a := NewPassthru(env)
	b := NewOscilloscope(env)
	node.Link(a.FindOut("out"), b.FindIn("in"))

	if err := a.FindIn("in").Receive(ctx, value.Int(42)); err != nil {
		t.Fatal(err)
	}
	drain(env)

	v, ok := b.Sample(ctx, 1)
	if !ok {
		t.Fatal("no sample at clk 1")
	}
	if n, _ := v.Int64(); n != 42 {
		t.Fatalf("sample = %s", v)
	}
	if b.Clk(ctx) != 1 {
		t.Fatalf("clk = %d", b.Clk(ctx))
	}
}

func TestOscilloscopeClear(t *testing.T) {
	env := newTestEnv()
	ctx := node.NewContext(env.Queues.Sub, nil, nil)
	o := NewOscilloscope(env)

	_ = o.FindIn("in").Receive(ctx, value.Int(1))
	_ = o.FindIn("in").Receive(ctx, value.Int(2))
	if o.Clk(ctx) != 2 {
		t.Fatalf("clk = %d", o.Clk(ctx))
	}
	_ = o.FindIn("clear").Receive(ctx, value.Pulse())
	if o.Clk(ctx) != 0 {
		t.Fatal("clear kept the counter")
	}
	if _, ok := o.Sample(ctx, 1); ok {
		t.Fatal("clear kept samples")
	}
}

func TestSatisfy(t *testing.T) {
	env := newTestEnv()
	ctx := node.NewContext(env.Queues.Sub, nil, nil)
	s := NewSatisfy(env, 2)
	dst := newSink()
	node.Link(s.FindOut("out"), dst.FindIn("in"))

	if err := s.FindIn("0").Receive(ctx, value.Pulse()); err != nil {
		t.Fatal(err)
	}
	drain(env)
	if len(dst.got) != 0 {
		t.Fatal("fired before all inputs arrived")
	}

	if err := s.FindIn("1").Receive(ctx, value.Pulse()); err != nil {
		t.Fatal(err)
	}
	drain(env)
	if len(dst.got) != 1 || !dst.got[0].IsPulse() {
		t.Fatalf("sink got %v", dst.got)
	}

	// The arrival flags stay set, so any further delivery refires.
	t.Run("refires once satisfied", func(t *testing.T) {
		if err := s.FindIn("0").Receive(ctx, value.Pulse()); err != nil {
			t.Fatal(err)
		}
		drain(env)
		if len(dst.got) != 2 {
			t.Fatalf("sink got %d pulses, want 2", len(dst.got))
		}
	})

	t.Run("fresh context starts unsatisfied", func(t *testing.T) {
		ctx2 := node.NewContext(env.Queues.Sub, nil, nil)
		if err := s.FindIn("0").Receive(ctx2, value.Pulse()); err != nil {
			t.Fatal(err)
		}
		drain(env)
		if len(dst.got) != 2 {
			t.Fatal("a fresh context inherited arrival flags")
		}
	})
}

func TestExprEval(t *testing.T) {
	env := newTestEnv()
	ctx := node.NewContext(env.Queues.Sub, nil, nil)
	e, err := NewExpr(env, "a + b * 2", []string{"a", "b"})
	if err != nil {
		t.Fatal(err)
	}
	dst := newSink()
	node.Link(e.FindOut("out"), dst.FindIn("in"))

	_ = e.FindIn("a").Receive(ctx, value.Int(1))
	_ = e.FindIn("b").Receive(ctx, value.Int(3))
	if err := e.FindIn("clk").Receive(ctx, value.Pulse()); err != nil {
		t.Fatal(err)
	}
	drain(env)

	if len(dst.got) != 1 {
		t.Fatalf("sink got %d values", len(dst.got))
	}
	if n, err := dst.got[0].Int64(); err != nil || n != 7 {
		t.Fatalf("result = %s (%v)", dst.got[0], err)
	}
}

func TestExprMissingInput(t *testing.T) {
	env := newTestEnv()
	ctx := node.NewContext(env.Queues.Sub, nil, nil)
	e, err := NewExpr(env, "x", []string{"x"})
	if err != nil {
		t.Fatal(err)
	}
	errSink := newSink()
	node.Link(e.FindOut("errr"), errSink.FindIn("in"))

	if err := e.FindIn("clk").Receive(ctx, value.Pulse()); err == nil {
		t.Fatal("expected an error for the unset input")
	}
	drain(env)
	if len(errSink.got) != 1 || !errSink.got[0].IsPulse() {
		t.Fatal("errr pulse missing")
	}
}

func TestExprParseError(t *testing.T) {
	env := newTestEnv()
	if _, err := NewExpr(env, "1 +", nil); err == nil {
		t.Fatal("expected a parse error")
	}
}

func TestExprSerializeRoundTrip(t *testing.T) {
	env := newTestEnv()
	e, err := NewExpr(env, "n * n", []string{"n"})
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := file.SerializeWithType(msgpack.NewEncoder(&buf), e); err != nil {
		t.Fatal(err)
	}
	f, err := file.Deserialize(msgpack.NewDecoder(bytes.NewReader(buf.Bytes())), newTestEnv())
	if err != nil {
		t.Fatal(err)
	}
	got := f.(*Expr)
	if got.Source() != "n * n" {
		t.Fatalf("source = %q", got.Source())
	}
	if got.FindIn("n") == nil {
		t.Fatal("variable socket lost")
	}
}
