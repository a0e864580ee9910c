// Copyright (c) The Kingtaker Authors
// SPDX-License-Identifier: MPL-2.0

// Package history implements the undo/redo command log.
package history

import (
	"github.com/falsycat/kingtaker-sub000/internal/queue"
)

// Command is one reversible structural edit. Apply and Revert must be
// inverses on the visible state.
type Command interface {
	Apply() error
	Revert() error
}

// Owner is the capability interface of files carrying an edit history.
type Owner interface {
	History() *Simple
}

// Simple is an ordered command list with a cursor sitting between the
// executed and unexecuted commands.
type Simple struct {
	main   *queue.Queue
	cmds   []Command
	cursor int
}

// NewSimple builds an empty history scheduling queued additions on main.
func NewSimple(main *queue.Queue) *Simple {
	return &Simple{main: main}
}

func (h *Simple) Len() int    { return len(h.cmds) }
func (h *Simple) Cursor() int { return h.cursor }

// Add applies cmd and records it, truncating any undone tail. A failed
// Apply records nothing.
func (h *Simple) Add(cmd Command) error {
	if err := cmd.Apply(); err != nil {
		return err
	}
	h.cmds = append(h.cmds[:h.cursor], cmd)
	h.cursor = len(h.cmds)
	return nil
}

// Queue schedules Add onto the main queue. All graph mutation happens
// on main; an Apply failure there is an invariant violation and
// surfaces as a task panic for the drain loop to capture.
func (h *Simple) Queue(cmd Command) {
	h.main.Push(func() {
		if err := h.Add(cmd); err != nil {
			panic(err)
		}
	}, 0)
}

// Move walks the cursor: negative steps revert backwards, positive
// steps re-apply forward, both clamped to the available range. It
// stops early when a command fails and returns the number of steps
// that succeeded. The cursor always ends past the successful steps.
func (h *Simple) Move(step int) (int, error) {
	done := 0
	switch {
	case step < 0:
		n := -step
		if n > h.cursor {
			n = h.cursor
		}
		for i := 0; i < n; i++ {
			if err := h.cmds[h.cursor-1].Revert(); err != nil {
				return done, err
			}
			h.cursor--
			done++
		}
	case step > 0:
		n := step
		if rest := len(h.cmds) - h.cursor; n > rest {
			n = rest
		}
		for i := 0; i < n; i++ {
			if err := h.cmds[h.cursor].Apply(); err != nil {
				return done, err
			}
			h.cursor++
			done++
		}
	}
	return done, nil
}

// Drop retains only the commands within dist of the cursor and
// discards the rest.
func (h *Simple) Drop(dist int) {
	lo := h.cursor - dist
	if lo < 0 {
		lo = 0
	}
	hi := h.cursor + dist
	if hi > len(h.cmds) {
		hi = len(h.cmds)
	}
	h.cmds = append([]Command{}, h.cmds[lo:hi]...)
	h.cursor -= lo
}

// Clear empties the log.
func (h *Simple) Clear() {
	h.cmds = nil
	h.cursor = 0
}
