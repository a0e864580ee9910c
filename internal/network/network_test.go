// Copyright (c) The Kingtaker Authors
// SPDX-License-Identifier: MPL-2.0

package network

import (
	"bytes"
	"strings"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/falsycat/kingtaker-sub000/internal/file"
	"github.com/falsycat/kingtaker-sub000/internal/node"
	"github.com/falsycat/kingtaker-sub000/internal/queue"
	"github.com/falsycat/kingtaker-sub000/internal/value"
)

var leafType *file.TypeInfo

func init() {
	leafType = file.Register(&file.TypeInfo{
		Name: "NetTestLeaf",
		Desc: "echo node for network tests",
		Tags: []string{"Node"},
		Deserialize: func(dec *msgpack.Decoder, env *file.Env) (file.File, error) {
			if err := dec.Skip(); err != nil {
				return nil, err
			}
			return newLeaf(env), nil
		},
		Factory: func(env *file.Env) file.File { return newLeaf(env) },
	})
}

// leaf records everything arriving on "in" and echoes it on "out".
type leaf struct {
	node.Base
	got []value.Value
}

func newLeaf(env *file.Env) *leaf {
	n := &leaf{Base: node.NewNodeBase(leafType, 0)}
	in := node.NewInSock(n, "in", func(ctx *node.Context, v value.Value) error {
		n.got = append(n.got, v)
		n.FindOut("out").Send(ctx, v)
		return nil
	})
	out := node.NewOutSock(n, "out", env.Queues.Sub)
	n.SetSocks([]*node.InSock{in}, []*node.OutSock{out})
	return n
}

func (n *leaf) Serialize(enc *msgpack.Encoder) error { return enc.EncodeNil() }
func (n *leaf) Clone(env *file.Env) (file.File, error) {
	return newLeaf(env), nil
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

func drainAll(t *testing.T, env *file.Env) {
	t.Helper()
	for env.Queues.Main.Pop() || env.Queues.Sub.Pop() {
	}
}

func TestNetworkAddLinkSend(t *testing.T) {
	env := newTestEnv()
	net := New(env)

	h1 := NewHolder(newLeaf(env))
	h2 := NewHolder(newLeaf(env))
	net.QueueAdd(h1, h2)
	drainAll(t, env)

	if len(net.Holders()) != 2 {
		t.Fatalf("holders = %d", len(net.Holders()))
	}
	if h1.ID() == h2.ID() {
		t.Fatal("holders share an id")
	}

	out := h1.Node().FindOut("out")
	in := h2.Node().FindIn("in")
	net.QueueLink(Conn{Out: out, In: in})
	drainAll(t, env)

	out2 := net.Links().DestsOf(out)
	if len(out2) != 1 || out2[0] != in {
		t.Fatal("link store missed the connection")
	}

	h1.Node().FindOut("out").Send(net.SharedContext(), value.Int(6))
	drainAll(t, env)
	dst := h2.Node().(*leaf)
	if len(dst.got) != 1 {
		t.Fatalf("destination received %d values", len(dst.got))
	}
}

func TestNetworkRemoveUndoRedo(t *testing.T) {
	env := newTestEnv()
	net := New(env)
	h1 := NewHolder(newLeaf(env))
	h2 := NewHolder(newLeaf(env))
	net.QueueAdd(h1, h2)
	drainAll(t, env)
	out := h1.Node().FindOut("out")
	in := h2.Node().FindIn("in")
	net.QueueLink(Conn{Out: out, In: in})
	drainAll(t, env)

	net.QueueRemove(h2.ID())
	drainAll(t, env)
	if len(net.Holders()) != 1 {
		t.Fatalf("holders = %d after remove", len(net.Holders()))
	}
	if len(net.Links().DestsOf(out)) != 0 {
		t.Fatal("links to the removed node survived")
	}

	t.Run("undo restores node and links", func(t *testing.T) {
		if _, err := net.History().Move(-1); err != nil {
			t.Fatal(err)
		}
		if net.FindHolder(h2.ID()) != h2 {
			t.Fatal("holder did not come back under its id")
		}
		dsts := net.Links().DestsOf(out)
		if len(dsts) != 1 || dsts[0] != in {
			t.Fatal("links were not replayed")
		}
	})

	t.Run("redo removes again", func(t *testing.T) {
		if _, err := net.History().Move(1); err != nil {
			t.Fatal(err)
		}
		if net.FindHolder(h2.ID()) != nil {
			t.Fatal("redo left the holder attached")
		}
	})
}

func TestNetworkRemoveMissing(t *testing.T) {
	env := newTestEnv()
	net := New(env)
	cmd := newRemoveCommand(net, []uint64{42})
	err := cmd.Apply()
	if err == nil || err.Error() != "target node is missing" {
		t.Fatalf("got %v", err)
	}
}

func TestUnlinkDeadSocket(t *testing.T) {
	env := newTestEnv()
	net := New(env)
	h1 := NewHolder(newLeaf(env))
	h2 := NewHolder(newLeaf(env))
	net.QueueAdd(h1, h2)
	drainAll(t, env)
	out := h1.Node().FindOut("out")
	in := h2.Node().FindIn("in")
	if err := net.Links().Link(net.SharedContext(), out, in); err != nil {
		t.Fatal(err)
	}

	h2.Node().Life().Expire()
	err := net.Links().Unlink(out, in)
	if err == nil || !strings.Contains(err.Error(), "cannot unlink deleted socket") {
		t.Fatalf("got %v", err)
	}
}

// A value fed into the network's context socket passes an input node,
// an inner leaf and an output node, then exits on the matching output
// socket.
func TestNetworkBoundary(t *testing.T) {
	env := newTestEnv()
	net := New(env)

	inN := NewInput(env, "x")
	mid := newLeaf(env)
	outN := NewOutput(env, "y")
	for _, n := range []node.Node{inN, mid, outN} {
		net.QueueAdd(NewHolder(n))
	}
	drainAll(t, env)

	if net.FindIn("x") == nil || net.FindOut("y") == nil {
		t.Fatal("context sockets missing")
	}

	node.Link(inN.FindOut("out"), mid.FindIn("in"))
	node.Link(mid.FindOut("out"), outN.FindIn("in"))

	sink := newLeaf(env)
	node.Link(net.FindOut("y"), sink.FindIn("in"))

	outer := node.NewContext(env.Queues.Sub, nil, nil)
	if err := net.FindIn("x").Receive(outer, value.Str("ping")); err != nil {
		t.Fatal(err)
	}
	drainAll(t, env)

	if len(mid.got) != 1 {
		t.Fatalf("inner leaf received %d values", len(mid.got))
	}
	if len(sink.got) != 1 || !sink.got[0].Equal(value.Str("ping")) {
		t.Fatalf("outer sink received %v", sink.got)
	}
}

func TestNetworkBoundarySockLifecycle(t *testing.T) {
	env := newTestEnv()
	net := New(env)
	a := NewInput(env, "x")
	b := NewInput(env, "x")
	ha, hb := NewHolder(a), NewHolder(b)
	net.QueueAdd(ha, hb)
	drainAll(t, env)

	if len(net.In()) != 1 {
		t.Fatalf("socket count = %d, want 1 shared", len(net.In()))
	}
	net.QueueRemove(ha.ID())
	drainAll(t, env)
	if net.FindIn("x") == nil {
		t.Fatal("socket vanished while a node still binds it")
	}
	net.QueueRemove(hb.ID())
	drainAll(t, env)
	if net.FindIn("x") != nil {
		t.Fatal("socket survived its last binder")
	}
}

func TestNetworkSerializeRoundTrip(t *testing.T) {
	env := newTestEnv()
	net := New(env)
	h1 := NewHolder(newLeaf(env))
	h2 := NewHolder(newLeaf(env))
	hin := NewHolder(NewInput(env, "x"))
	net.QueueAdd(h1, h2, hin)
	drainAll(t, env)
	h1.SetPos([2]float64{3, -4})
	out := h1.Node().FindOut("out")
	in := h2.Node().FindIn("in")
	if err := net.Links().Link(net.SharedContext(), out, in); err != nil {
		t.Fatal(err)
	}
	net.gui = guiState{shown: true, zoom: 1.5, offset: [2]float64{10, 20}}

	var buf bytes.Buffer
	if err := file.SerializeWithType(msgpack.NewEncoder(&buf), net); err != nil {
		t.Fatal(err)
	}

	env2 := newTestEnv()
	f, err := file.Deserialize(msgpack.NewDecoder(bytes.NewReader(buf.Bytes())), env2)
	if err != nil {
		t.Fatal(err)
	}
	got, ok := f.(*Network)
	if !ok {
		t.Fatalf("deserialized a %T", f)
	}
	if len(got.Holders()) != 3 {
		t.Fatalf("holders = %d", len(got.Holders()))
	}
	if got.nextID != net.nextID {
		t.Fatalf("nextId = %d, want %d", got.nextID, net.nextID)
	}
	gh1 := got.FindHolder(h1.ID())
	if gh1 == nil || gh1.Pos() != [2]float64{3, -4} {
		t.Fatal("holder position lost")
	}
	dsts := got.Links().DestsOf(gh1.Node().FindOut("out"))
	if len(dsts) != 1 || dsts[0].Name() != "in" {
		t.Fatal("link lost in round trip")
	}
	if got.FindIn("x") == nil {
		t.Fatal("context socket not rebuilt")
	}
	if got.gui != net.gui {
		t.Fatalf("gui state lost: %s", spew.Sdump(got.gui))
	}
}

func TestNetworkDeserializeIDConflict(t *testing.T) {
	env := newTestEnv()
	net := New(env)
	h := NewHolder(newLeaf(env))
	net.QueueAdd(h, NewHolder(newLeaf(env)))
	drainAll(t, env)
	net.nextID = 1 // stored counter lags behind the holder ids

	var buf bytes.Buffer
	if err := file.SerializeWithType(msgpack.NewEncoder(&buf), net); err != nil {
		t.Fatal(err)
	}
	_, err := file.Deserialize(msgpack.NewDecoder(bytes.NewReader(buf.Bytes())), newTestEnv())
	if err == nil || !strings.Contains(err.Error(), "node id conflict") {
		t.Fatalf("got %v", err)
	}
}

func TestNetworkClone(t *testing.T) {
	env := newTestEnv()
	net := New(env)
	h1 := NewHolder(newLeaf(env))
	h2 := NewHolder(newLeaf(env))
	net.QueueAdd(h1, h2)
	drainAll(t, env)
	out := h1.Node().FindOut("out")
	in := h2.Node().FindIn("in")
	if err := net.Links().Link(net.SharedContext(), out, in); err != nil {
		t.Fatal(err)
	}

	f, err := net.Clone(env)
	if err != nil {
		t.Fatal(err)
	}
	cl := f.(*Network)
	if len(cl.Holders()) != 2 {
		t.Fatalf("clone holders = %d", len(cl.Holders()))
	}
	for _, h := range cl.Holders() {
		if net.FindHolder(h.ID()) == nil {
			continue
		}
		if h.Node() == net.FindHolder(h.ID()).Node() {
			t.Fatal("clone shares a node with the original")
		}
	}
	clOut := cl.Holders()[0].Node().FindOut("out")
	if len(cl.Links().DestsOf(clOut)) != 1 {
		t.Fatal("clone lost the link")
	}

	// Unlinking in the original leaves the clone untouched.
	if err := net.Links().Unlink(out, in); err != nil {
		t.Fatal(err)
	}
	if len(cl.Links().DestsOf(clOut)) != 1 {
		t.Fatal("clone observed the original's unlink")
	}
}

func TestNetworkMemento(t *testing.T) {
	env := newTestEnv()
	net := New(env)
	net.gui.zoom = 1

	restore, err := net.Save()
	if err != nil {
		t.Fatal(err)
	}
	net.gui.zoom = 4
	restore()
	if net.gui.zoom != 1 {
		t.Fatalf("zoom = %v after restore", net.gui.zoom)
	}
	if _, err := net.Save(); err != file.ErrCollapse {
		t.Fatalf("unchanged snapshot returned %v", err)
	}
}

func TestReferenceForwarding(t *testing.T) {
	env := newTestEnv()
	root := file.NewGenericDir(env)
	env.Root = root
	target := newLeaf(env)
	if err := root.Add("target", target); err != nil {
		t.Fatal(err)
	}

	net := New(env)
	hr := NewHolder(NewRef(env, "target"))
	net.QueueAdd(hr)
	drainAll(t, env)
	ref := hr.Node().(*Reference)
	if err := ref.SyncSocks(); err != nil {
		t.Fatal(err)
	}
	if ref.FindIn("in") == nil || ref.FindOut("out") == nil {
		t.Fatal("SyncSocks did not mirror the target")
	}

	sink := newLeaf(env)
	node.Link(ref.FindOut("out"), sink.FindIn("in"))

	ctx := node.NewContext(env.Queues.Sub, nil, nil)
	if err := ref.FindIn("in").Receive(ctx, value.Int(9)); err != nil {
		t.Fatal(err)
	}
	drainAll(t, env)

	if len(target.got) != 1 {
		t.Fatalf("target received %d values", len(target.got))
	}
	if len(sink.got) != 1 {
		t.Fatalf("sink received %d values", len(sink.got))
	}
	if n, _ := sink.got[0].Int64(); n != 9 {
		t.Fatalf("sink got %s", sink.got[0])
	}
}

func TestReferenceLostSocketDropsSilently(t *testing.T) {
	env := newTestEnv()
	root := file.NewGenericDir(env)
	env.Root = root
	target := newLeaf(env)
	if err := root.Add("target", target); err != nil {
		t.Fatal(err)
	}

	ref := NewRef(env, "target")
	ref.rebuildSocks([]string{"ghost"}, nil)

	ctx := node.NewContext(env.Queues.Sub, nil, nil)
	if err := ref.FindIn("ghost").Receive(ctx, value.Pulse()); err != nil {
		t.Fatalf("lost socket surfaced an error: %s", err)
	}
	drainAll(t, env)
	if len(target.got) != 0 {
		t.Fatal("target received through a socket it does not have")
	}
}

func TestReferenceErrors(t *testing.T) {
	env := newTestEnv()
	root := file.NewGenericDir(env)
	env.Root = root

	t.Run("recursive reference", func(t *testing.T) {
		ref := NewRef(env, "me")
		if err := root.Add("me", ref); err != nil {
			t.Fatal(err)
		}
		_, err := ref.resolveTarget()
		if err == nil || err.Error() != "recursive reference" {
			t.Fatalf("got %v", err)
		}
	})

	t.Run("target is not a node", func(t *testing.T) {
		if err := root.Add("plain", file.NewGenericDir(env)); err != nil {
			t.Fatal(err)
		}
		ref := NewRef(env, "plain")
		_, err := ref.resolveTarget()
		if err == nil || err.Error() != "target is not a node" {
			t.Fatalf("got %v", err)
		}
	})

	t.Run("unresolvable path", func(t *testing.T) {
		ref := NewRef(env, "nowhere")
		_, err := ref.resolveTarget()
		if err == nil {
			t.Fatal("expected a resolution error")
		}
	})
}

func TestReferenceSerializeKeepsSocks(t *testing.T) {
	env := newTestEnv()
	ref := NewRef(env, "a/b")
	ref.rebuildSocks([]string{"in"}, []string{"out"})

	var buf bytes.Buffer
	if err := file.SerializeWithType(msgpack.NewEncoder(&buf), ref); err != nil {
		t.Fatal(err)
	}
	f, err := file.Deserialize(msgpack.NewDecoder(bytes.NewReader(buf.Bytes())), newTestEnv())
	if err != nil {
		t.Fatal(err)
	}
	got := f.(*Reference)
	if got.Path() != "a/b" {
		t.Fatalf("path = %q", got.Path())
	}
	if got.FindIn("in") == nil || got.FindOut("out") == nil {
		t.Fatal("socket names lost")
	}
}
