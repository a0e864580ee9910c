// Copyright (c) The Kingtaker Authors
// SPDX-License-Identifier: MPL-2.0

package file

import (
	"errors"
	"testing"
)

// buildTree returns root{a{b{}}, _logger-like leaf under a}.
func buildTree(t *testing.T) *GenericDir {
	t.Helper()
	root := NewGenericDir(nil)
	a := NewGenericDir(nil)
	b := NewGenericDir(nil)
	leaf := NewGenericDir(nil)
	if err := b.Add("deep", NewGenericDir(nil)); err != nil {
		t.Fatal(err)
	}
	if err := a.Add("b", b); err != nil {
		t.Fatal(err)
	}
	if err := root.Add("a", a); err != nil {
		t.Fatal(err)
	}
	if err := root.Add("_queue", leaf); err != nil {
		t.Fatal(err)
	}
	return root
}

func TestRefStackResolve(t *testing.T) {
	root := buildTree(t)
	s := NewRefStack(root)

	t.Run("down", func(t *testing.T) {
		got, err := s.ResolveString("a/b/deep")
		if err != nil {
			t.Fatalf("unexpected error: %s", err)
		}
		if got.String() != "/a/b/deep" {
			t.Fatalf("stack = %s", got)
		}
	})

	t.Run("dotdot and colon", func(t *testing.T) {
		mid, err := s.ResolveString("a/b")
		if err != nil {
			t.Fatal(err)
		}
		up, err := mid.ResolveString("../b/deep")
		if err != nil {
			t.Fatalf("unexpected error: %s", err)
		}
		if up.String() != "/a/b/deep" {
			t.Fatalf("stack = %s", up)
		}
		reset, err := mid.ResolveString(":/a")
		if err != nil {
			t.Fatalf("unexpected error: %s", err)
		}
		if reset.String() != "/a" {
			t.Fatalf("stack = %s", reset)
		}
	})

	t.Run("absolute", func(t *testing.T) {
		mid, err := s.ResolveString("a/b")
		if err != nil {
			t.Fatal(err)
		}
		got, err := mid.ResolveString("/_queue")
		if err != nil {
			t.Fatalf("unexpected error: %s", err)
		}
		if got.String() != "/_queue" {
			t.Fatalf("stack = %s", got)
		}
	})

	t.Run("not found", func(t *testing.T) {
		_, err := s.ResolveString("a/missing")
		var nf *NotFoundError
		if !errors.As(err, &nf) {
			t.Fatalf("got %v, want NotFoundError", err)
		}
		if nf.Stack != "/a" {
			t.Fatalf("partial stack = %s", nf.Stack)
		}
	})

	t.Run("receiver untouched", func(t *testing.T) {
		if _, err := s.ResolveString("a/b"); err != nil {
			t.Fatal(err)
		}
		if s.Depth() != 0 {
			t.Fatalf("Resolve mutated the receiver, depth = %d", s.Depth())
		}
	})
}

func TestRefStackResolveUpward(t *testing.T) {
	root := buildTree(t)
	s := NewRefStack(root)
	deep, err := s.ResolveString("a/b/deep")
	if err != nil {
		t.Fatal(err)
	}

	t.Run("found at root", func(t *testing.T) {
		got, err := deep.ResolveUpwardString("_queue")
		if err != nil {
			t.Fatalf("unexpected error: %s", err)
		}
		if got.String() != "/_queue" {
			t.Fatalf("stack = %s", got)
		}
	})

	t.Run("found mid-stack", func(t *testing.T) {
		got, err := deep.ResolveUpwardString("b/deep")
		if err != nil {
			t.Fatalf("unexpected error: %s", err)
		}
		if got.Top() == nil {
			t.Fatal("nil top")
		}
	})

	t.Run("missing everywhere", func(t *testing.T) {
		_, err := deep.ResolveUpwardString("nope")
		var nf *NotFoundError
		if !errors.As(err, &nf) {
			t.Fatalf("got %v, want NotFoundError", err)
		}
	})
}
