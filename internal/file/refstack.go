// Copyright (c) The Kingtaker Authors
// SPDX-License-Identifier: MPL-2.0

package file

import "strings"

// Term is one step of a traversal from the root.
type Term struct {
	Name string
	File File
}

// RefStack records a traversal from the root and resolves paths
// relative to its top. A RefStack is a value: Resolve returns a new
// stack and leaves the receiver untouched.
type RefStack struct {
	root  File
	terms []Term
}

// NewRefStack starts a traversal at root.
func NewRefStack(root File) *RefStack {
	return &RefStack{root: root}
}

// Root returns the traversal origin.
func (s *RefStack) Root() File { return s.root }

// Top returns the file the stack currently points at.
func (s *RefStack) Top() File {
	if n := len(s.terms); n > 0 {
		return s.terms[n-1].File
	}
	return s.root
}

// Depth returns the number of terms above the root.
func (s *RefStack) Depth() int { return len(s.terms) }

// Push appends a term.
func (s *RefStack) Push(t Term) {
	s.terms = append(s.terms, t)
}

// Pop removes the top term. Popping an empty stack is a no-op.
func (s *RefStack) Pop() {
	if n := len(s.terms); n > 0 {
		s.terms = s.terms[:n-1]
	}
}

func (s *RefStack) clone() *RefStack {
	terms := make([]Term, len(s.terms))
	copy(terms, s.terms)
	return &RefStack{root: s.root, terms: terms}
}

// Resolve walks the path from the current top and returns the resulting
// stack. Each segment applies in order: ".." pops one term, ":" clears
// to the root, anything else looks up a child by exact name. Any
// failure returns a NotFoundError carrying the partial stack.
func (s *RefStack) Resolve(p Path) (*RefStack, error) {
	out := s.clone()
	if p.Abs {
		out.terms = out.terms[:0]
	}
	for _, seg := range p.Segs {
		switch seg {
		case "..":
			if len(out.terms) == 0 {
				return nil, &NotFoundError{Path: p.String(), Stack: out.String()}
			}
			out.Pop()
		case ":":
			out.terms = out.terms[:0]
		default:
			cur := out.Top()
			if cur == nil {
				return nil, &NotFoundError{Path: p.String(), Stack: out.String()}
			}
			next := cur.Find(seg)
			if next == nil {
				return nil, &NotFoundError{Path: p.String(), Stack: out.String()}
			}
			out.Push(Term{Name: seg, File: next})
		}
	}
	return out, nil
}

// ResolveString parses raw and resolves it.
func (s *RefStack) ResolveString(raw string) (*RefStack, error) {
	p, err := ParsePath(raw)
	if err != nil {
		return nil, err
	}
	return s.Resolve(p)
}

// ResolveUpward attempts Resolve at successively shallower prefixes of
// the stack, locating ambient resources such as "_queue" or "_logger"
// up the tree. It fails only when no prefix resolves the path.
func (s *RefStack) ResolveUpward(p Path) (*RefStack, error) {
	try := s.clone()
	for {
		if out, err := try.Resolve(p); err == nil {
			return out, nil
		}
		if len(try.terms) == 0 {
			return nil, &NotFoundError{Path: p.String(), Stack: s.String()}
		}
		try.Pop()
	}
}

// ResolveUpwardString parses raw and resolves it upward.
func (s *RefStack) ResolveUpwardString(raw string) (*RefStack, error) {
	p, err := ParsePath(raw)
	if err != nil {
		return nil, err
	}
	return s.ResolveUpward(p)
}

// String renders the full path from the root.
func (s *RefStack) String() string {
	var b strings.Builder
	for _, t := range s.terms {
		b.WriteByte('/')
		b.WriteString(t.Name)
	}
	if b.Len() == 0 {
		return "/"
	}
	return b.String()
}
