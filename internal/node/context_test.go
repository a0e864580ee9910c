// Copyright (c) The Kingtaker Authors
// SPDX-License-Identifier: MPL-2.0

package node

import (
	"testing"

	"github.com/falsycat/kingtaker-sub000/internal/queue"
	"github.com/falsycat/kingtaker-sub000/internal/value"
)

type clkData struct{ samples []int64 }

type otherData struct{}

func TestContextGetOrNew(t *testing.T) {
	sub := queue.New(queue.NameSub)
	ctx := NewContext(sub, nil, nil)
	n := newTestNode(sub)

	d1, err := GetOrNew(ctx, Node(n), func() *clkData { return &clkData{} })
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	d1.samples = append(d1.samples, 42)

	d2, err := GetOrNew(ctx, Node(n), func() *clkData { return &clkData{} })
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if d2 != d1 {
		t.Fatal("second GetOrNew built a fresh slot")
	}

	t.Run("downcast failure", func(t *testing.T) {
		_, err := GetOrNew(ctx, Node(n), func() *otherData { return &otherData{} })
		if err == nil || err.Error() != "data is already set, but down cast failed" {
			t.Fatalf("got %v", err)
		}
	})

	t.Run("drop clears the slot", func(t *testing.T) {
		ctx.Drop(n)
		if _, err := GetOrNew(ctx, Node(n), func() *otherData { return &otherData{} }); err != nil {
			t.Fatalf("slot survived Drop: %s", err)
		}
	})
}

type recordWatcher struct {
	names []string
	vals  []value.Value
}

func (w *recordWatcher) Receive(name string, v value.Value) {
	w.names = append(w.names, name)
	w.vals = append(w.vals, v)
}

func TestContextWatcher(t *testing.T) {
	sub := queue.New(queue.NameSub)
	w := &recordWatcher{}
	ctx := NewContext(sub, nil, w)

	ctx.Receive("out", value.Int(3))
	if len(w.names) != 0 {
		t.Fatal("watcher ran before the sub queue drained")
	}
	drain(sub)
	if len(w.names) != 1 || w.names[0] != "out" {
		t.Fatalf("watcher got %v", w.names)
	}
}

func TestContextIsolation(t *testing.T) {
	sub := queue.New(queue.NameSub)
	w1, w2 := &recordWatcher{}, &recordWatcher{}
	ctx1 := NewContext(sub, nil, w1)
	ctx2 := NewContext(sub, nil, w2)
	n := newTestNode(sub)

	d1, _ := GetOrNew(ctx1, Node(n), func() *clkData { return &clkData{samples: []int64{1}} })
	d2, _ := GetOrNew(ctx2, Node(n), func() *clkData { return &clkData{} })
	if d1 == d2 {
		t.Fatal("contexts share a data slot")
	}

	ctx1.Receive("x", value.Pulse())
	drain(sub)
	if len(w2.names) != 0 {
		t.Fatal("a value sent on ctx1 reached ctx2's watcher")
	}
	if len(w1.names) != 1 {
		t.Fatal("ctx1's watcher missed its value")
	}
}

func TestContextExpiry(t *testing.T) {
	sub := queue.New(queue.NameSub)
	w := &recordWatcher{}
	ctx := NewContext(sub, nil, w)

	ctx.Receive("out", value.Pulse())
	ctx.Life().Expire()
	drain(sub)
	if len(w.names) != 0 {
		t.Fatal("expired context still delivered to its watcher")
	}
}
