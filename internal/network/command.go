// Copyright (c) The Kingtaker Authors
// SPDX-License-Identifier: MPL-2.0

package network

import (
	"errors"

	"github.com/hashicorp/go-multierror"

	"github.com/falsycat/kingtaker-sub000/internal/history"
)

// linkSwap flips a set of links on and off. The same command object
// serves both link and unlink edits; only its resting direction
// differs.
type linkSwap struct {
	net    *Network
	conns  []Conn
	unlink bool
}

var _ history.Command = (*linkSwap)(nil)

func newLinkSwap(net *Network, conns []Conn, unlink bool) *linkSwap {
	return &linkSwap{net: net, conns: conns, unlink: unlink}
}

func (c *linkSwap) Apply() error  { return c.exec(c.unlink) }
func (c *linkSwap) Revert() error { return c.exec(!c.unlink) }

func (c *linkSwap) exec(unlink bool) error {
	var errs *multierror.Error
	for _, conn := range c.conns {
		var err error
		if unlink {
			err = c.net.links.Unlink(conn.Out, conn.In)
		} else {
			err = c.net.links.Link(c.net.ctx, conn.Out, conn.In)
		}
		errs = multierror.Append(errs, err)
	}
	return errs.ErrorOrNil()
}

// swap moves a set of holders in or out of the network. While the
// holders are detached the command owns them; their nodes stay alive so
// queued closures and the inverse edit remain valid. Links touching the
// holders are captured into a nested linkSwap on first removal and
// replayed on re-insertion.
type swap struct {
	net      *Network
	holders  []*Holder // owned while detached
	attached []*Holder // referenced while attached
	links    *linkSwap
	fresh    bool // ids not assigned yet
}

var _ history.Command = (*swap)(nil)

func newAddCommand(net *Network, hs []*Holder) *swap {
	return &swap{net: net, holders: hs, fresh: true}
}

func newRemoveCommand(net *Network, ids []uint64) *swap {
	c := &swap{net: net}
	for _, id := range ids {
		if h := net.FindHolder(id); h != nil {
			c.attached = append(c.attached, h)
		}
	}
	return c
}

func (c *swap) Apply() error  { return c.exec() }
func (c *swap) Revert() error { return c.exec() }

func (c *swap) exec() error {
	if len(c.holders) > 0 {
		return c.insert()
	}
	return c.remove()
}

func (c *swap) insert() error {
	for i, h := range c.holders {
		var err error
		if c.fresh {
			err = c.net.attachNew(h)
		} else {
			err = c.net.attach(h)
		}
		if err != nil {
			for _, done := range c.holders[:i] {
				_ = c.net.detach(done)
			}
			return err
		}
	}
	c.fresh = false
	c.attached = c.holders
	c.holders = nil
	if c.links != nil {
		if err := c.links.Revert(); err != nil { // relink
			return err
		}
	}
	return nil
}

func (c *swap) remove() error {
	if len(c.attached) == 0 {
		return errors.New("target node is missing")
	}
	if c.links == nil {
		var conns []Conn
		seen := map[Conn]bool{}
		for _, h := range c.attached {
			for _, conn := range c.net.links.ConnsOf(h.n) {
				if !seen[conn] {
					seen[conn] = true
					conns = append(conns, conn)
				}
			}
		}
		c.links = newLinkSwap(c.net, conns, true)
	}
	if err := c.links.Apply(); err != nil { // unlink
		return err
	}
	for _, h := range c.attached {
		if err := c.net.detach(h); err != nil {
			return err
		}
	}
	c.holders = c.attached
	c.attached = nil
	return nil
}
