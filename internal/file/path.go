// Copyright (c) The Kingtaker Authors
// SPDX-License-Identifier: MPL-2.0

package file

import "strings"

// Path is a parsed sequence of name segments. A leading "/" marks the
// path absolute. The special segments ".." (pop one term) and ":"
// (restart from root) survive parsing only where they cannot be folded
// away statically.
type Path struct {
	Abs  bool
	Segs []string
}

// ParsePath parses a "/"-separated path string into canonical form:
// empty segments collapse, ":" resets the accumulated segments and
// turns the path absolute, and ".." folds away a preceding plain
// segment when there is one.
func ParsePath(s string) (Path, error) {
	p := Path{Abs: strings.HasPrefix(s, "/")}
	for _, seg := range strings.Split(s, "/") {
		switch seg {
		case "":
			// collapsed
		case ":":
			p.Abs = true
			p.Segs = p.Segs[:0]
		case "..":
			if n := len(p.Segs); n > 0 && p.Segs[n-1] != ".." {
				p.Segs = p.Segs[:n-1]
			} else if p.Abs {
				// ".." at the root stays at the root.
			} else {
				p.Segs = append(p.Segs, "..")
			}
		default:
			if err := CheckName(seg); err != nil {
				return Path{}, err
			}
			p.Segs = append(p.Segs, seg)
		}
	}
	return p, nil
}

// String renders the canonical path form.
func (p Path) String() string {
	s := strings.Join(p.Segs, "/")
	if p.Abs {
		return "/" + s
	}
	return s
}
