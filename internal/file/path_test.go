// Copyright (c) The Kingtaker Authors
// SPDX-License-Identifier: MPL-2.0

package file

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParsePath(t *testing.T) {
	cases := []struct {
		in   string
		segs []string
		abs  bool
	}{
		{"/a//b/../c", []string{"a", "c"}, true},
		{"a/b/c", []string{"a", "b", "c"}, false},
		{"", nil, false},
		{"/", nil, true},
		{"../x", []string{"..", "x"}, false},
		{"a/:/b", []string{"b"}, true},
		{"/../a", []string{"a"}, true},
		{"a/../..", []string{".."}, false},
	}
	for _, c := range cases {
		t.Run(c.in, func(t *testing.T) {
			p, err := ParsePath(c.in)
			if err != nil {
				t.Fatalf("unexpected error: %s", err)
			}
			if p.Abs != c.abs {
				t.Fatalf("Abs = %v, want %v", p.Abs, c.abs)
			}
			if diff := cmp.Diff(c.segs, p.Segs); diff != "" {
				t.Fatalf("segments:\n%s", diff)
			}
		})
	}

	t.Run("invalid name", func(t *testing.T) {
		if _, err := ParsePath("a/b c"); err == nil {
			t.Fatal("expected error for a segment with a space")
		}
	})
}

func TestPathRoundTrip(t *testing.T) {
	for _, in := range []string{"/a//b/../c", "x/y", "/", "", "a/./b"} {
		p, err := ParsePath(in)
		if err != nil {
			continue
		}
		again, err := ParsePath(p.String())
		if err != nil {
			t.Fatalf("reparse %q: %s", p.String(), err)
		}
		if again.String() != p.String() {
			t.Fatalf("round trip of %q: %q != %q", in, again.String(), p.String())
		}
	}
}
