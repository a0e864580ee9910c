// Copyright (c) The Kingtaker Authors
// SPDX-License-Identifier: MPL-2.0

// Package network implements the node-network file: an owned set of
// node holders wired by a link store, with undo/redo edit operations
// and full binary serialization.
package network

import (
	"fmt"
	"sort"

	"github.com/hashicorp/go-multierror"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/falsycat/kingtaker-sub000/internal/file"
	"github.com/falsycat/kingtaker-sub000/internal/history"
	"github.com/falsycat/kingtaker-sub000/internal/node"
)

// Type is the registration of the node network.
var Type *file.TypeInfo

func init() {
	Type = file.Register(&file.TypeInfo{
		Name: "NodeNet",
		Desc: "node network",
		Tags: []string{"DirItem", "Node", "History", "Memento"},
		Deserialize: func(dec *msgpack.Decoder, env *file.Env) (file.File, error) {
			return deserializeNetwork(dec, env)
		},
		Factory: func(env *file.Env) file.File { return New(env) },
	})
}

// guiState is the canvas substate. Only the GUI collaborator reads it;
// it persists and participates in the memento snapshot.
type guiState struct {
	shown  bool
	zoom   float64
	offset [2]float64
}

// Holder pairs a stable id with an owned node plus its canvas position
// and selection flag. Ids are unique within the network and never
// reused within one load.
type Holder struct {
	id       uint64
	n        node.Node
	pos      [2]float64
	selected bool
}

// NewHolder wraps n. The id is assigned by the network on attach.
func NewHolder(n node.Node) *Holder {
	return &Holder{n: n}
}

func (h *Holder) ID() uint64          { return h.id }
func (h *Holder) Node() node.Node     { return h.n }
func (h *Holder) Pos() [2]float64     { return h.pos }
func (h *Holder) SetPos(p [2]float64) { h.pos = p }
func (h *Holder) Selected() bool      { return h.selected }

// internalNode is implemented by nodes that hook the network boundary
// (input/output nodes). Setup runs on attach, Teardown on detach.
type internalNode interface {
	Setup(n *Network) error
	Teardown(n *Network)
}

// Network is a File owning nodes and links. It is itself a Node: its
// sockets are the context sockets created by internal IO nodes, so
// networks nest.
type Network struct {
	node.Base

	env   *file.Env
	hist  *history.Simple
	ctx   *node.Context
	stack *file.RefStack

	holders []*Holder
	nextID  uint64
	links   *LinkStore
	gui     guiState

	boundIn  map[string]*boundIn
	boundOut map[string]*boundOut

	lastSnap *guiState
}

var (
	_ node.Node     = (*Network)(nil)
	_ history.Owner = (*Network)(nil)
	_ file.Memento  = (*Network)(nil)
)

// New returns an empty network.
func New(env *file.Env) *Network {
	n := &Network{
		Base:     node.NewNodeBase(Type, 0),
		env:      env,
		links:    newLinkStore(),
		boundIn:  map[string]*boundIn{},
		boundOut: map[string]*boundOut{},
	}
	n.hist = history.NewSimple(env.Queues.Main)
	n.ctx = node.NewContext(env.Queues.Sub, env.Log, nil)
	n.stack = file.NewRefStack(env.Root)
	return n
}

// History exposes the edit history (capability interface).
func (n *Network) History() *history.Simple { return n.hist }

// SharedContext returns the context the editor pokes nodes with.
func (n *Network) SharedContext() *node.Context { return n.ctx }

// Links exposes the link store.
func (n *Network) Links() *LinkStore { return n.links }

// Holders returns the holder list in insertion order.
func (n *Network) Holders() []*Holder { return n.holders }

// SetStack tells the network where it lives, for path resolution by
// its reference nodes. Defaults to the environment root.
func (n *Network) SetStack(s *file.RefStack) { n.stack = s }

// Stack returns the network's location.
func (n *Network) Stack() *file.RefStack { return n.stack }

// Env returns the shared environment.
func (n *Network) Env() *file.Env { return n.env }

// FindHolder returns the holder with the given id.
func (n *Network) FindHolder(id uint64) *Holder {
	for _, h := range n.holders {
		if h.id == id {
			return h
		}
	}
	return nil
}

// holderOf returns the holder owning nd.
func (n *Network) holderOf(nd node.Node) *Holder {
	for _, h := range n.holders {
		if h.n == nd {
			return h
		}
	}
	return nil
}

// attach inserts a holder, assigning an id when it has none, and runs
// Setup on internal nodes.
func (n *Network) attach(h *Holder) error {
	if n.FindHolder(h.id) != nil {
		return fmt.Errorf("node id conflict: %d", h.id)
	}
	if h.id >= n.nextID {
		n.nextID = h.id + 1
	}
	n.holders = append(n.holders, h)
	if in, ok := h.n.(internalNode); ok {
		if err := in.Setup(n); err != nil {
			n.holders = n.holders[:len(n.holders)-1]
			return err
		}
	}
	n.Touch()
	return nil
}

// attachNew assigns the next fresh id and attaches.
func (n *Network) attachNew(h *Holder) error {
	h.id = n.nextID
	return n.attach(h)
}

// detach removes the holder without destroying its node, so a swap
// command can re-insert it later.
func (n *Network) detach(h *Holder) error {
	for i, cur := range n.holders {
		if cur == h {
			if in, ok := h.n.(internalNode); ok {
				in.Teardown(n)
			}
			n.holders = append(n.holders[:i], n.holders[i+1:]...)
			n.ctx.Drop(h.n)
			n.Touch()
			return nil
		}
	}
	return fmt.Errorf("target node is missing")
}

// Destroy expires every owned node so queued closures become no-ops.
func (n *Network) Destroy() {
	for _, h := range n.holders {
		h.n.Life().Expire()
	}
	n.Life().Expire()
	n.ctx.Life().Expire()
}

// Edit operations. All go through the history on the main queue.

// QueueAdd schedules insertion of fresh holders.
func (n *Network) QueueAdd(hs ...*Holder) {
	n.hist.Queue(newAddCommand(n, hs))
}

// QueueRemove schedules removal of the holders with the given ids.
func (n *Network) QueueRemove(ids ...uint64) {
	n.hist.Queue(newRemoveCommand(n, ids))
}

// QueueLink schedules link creation.
func (n *Network) QueueLink(conns ...Conn) {
	n.hist.Queue(newLinkSwap(n, conns, false))
}

// QueueUnlink schedules link removal.
func (n *Network) QueueUnlink(conns ...Conn) {
	n.hist.Queue(newLinkSwap(n, conns, true))
}

// Save implements file.Memento over the canvas substate.
func (n *Network) Save() (func(), error) {
	if n.lastSnap != nil && *n.lastSnap == n.gui {
		return nil, file.ErrCollapse
	}
	snap := n.gui
	n.lastSnap = &snap
	return func() { n.gui = snap }, nil
}

// Serialize writes {lastMod, nextId, nodes, links, gui}.
func (n *Network) Serialize(enc *msgpack.Encoder) error {
	if err := enc.EncodeMapLen(5); err != nil {
		return err
	}

	if err := enc.EncodeString("lastMod"); err != nil {
		return err
	}
	if err := enc.EncodeInt(n.LastModified().Unix()); err != nil {
		return err
	}

	if err := enc.EncodeString("nextId"); err != nil {
		return err
	}
	if err := enc.EncodeUint(n.nextID); err != nil {
		return err
	}

	if err := enc.EncodeString("nodes"); err != nil {
		return err
	}
	if err := enc.EncodeArrayLen(len(n.holders)); err != nil {
		return err
	}
	for _, h := range n.holders {
		if err := h.serialize(enc); err != nil {
			return err
		}
	}

	if err := enc.EncodeString("links"); err != nil {
		return err
	}
	if err := n.serializeLinks(enc); err != nil {
		return err
	}

	if err := enc.EncodeString("gui"); err != nil {
		return err
	}
	return n.serializeGUI(enc)
}

func (h *Holder) serialize(enc *msgpack.Encoder) error {
	if err := enc.EncodeMapLen(4); err != nil {
		return err
	}
	if err := enc.EncodeString("id"); err != nil {
		return err
	}
	if err := enc.EncodeUint(h.id); err != nil {
		return err
	}
	if err := enc.EncodeString("file"); err != nil {
		return err
	}
	if err := file.SerializeWithType(enc, h.n); err != nil {
		return err
	}
	if err := enc.EncodeString("pos"); err != nil {
		return err
	}
	if err := enc.EncodeArrayLen(2); err != nil {
		return err
	}
	if err := enc.EncodeFloat64(h.pos[0]); err != nil {
		return err
	}
	if err := enc.EncodeFloat64(h.pos[1]); err != nil {
		return err
	}
	if err := enc.EncodeString("select"); err != nil {
		return err
	}
	return enc.EncodeBool(h.selected)
}

// serializeLinks writes one record per holder: a map from out-socket
// name to an array of (destination index, destination socket name)
// pairs. Indices are positions in the nodes array.
func (n *Network) serializeLinks(enc *msgpack.Encoder) error {
	index := map[node.Node]int{}
	for i, h := range n.holders {
		index[h.n] = i
	}
	if err := enc.EncodeArrayLen(len(n.holders)); err != nil {
		return err
	}
	for _, h := range n.holders {
		type dst struct {
			idx  int
			name string
		}
		rec := map[string][]dst{}
		var outNames []string
		for _, out := range h.n.Out() {
			var dsts []dst
			for _, in := range n.links.DestsOf(out) {
				peer := n.holderOf(in.Owner())
				if peer == nil {
					continue // peer left the network; drop silently
				}
				dsts = append(dsts, dst{idx: index[peer.n], name: in.Name()})
			}
			if len(dsts) > 0 {
				rec[out.Name()] = dsts
				outNames = append(outNames, out.Name())
			}
		}
		sort.Strings(outNames)
		if err := enc.EncodeMapLen(len(outNames)); err != nil {
			return err
		}
		for _, name := range outNames {
			if err := enc.EncodeString(name); err != nil {
				return err
			}
			if err := enc.EncodeArrayLen(len(rec[name])); err != nil {
				return err
			}
			for _, d := range rec[name] {
				if err := enc.EncodeArrayLen(2); err != nil {
					return err
				}
				if err := enc.EncodeInt(int64(d.idx)); err != nil {
					return err
				}
				if err := enc.EncodeString(d.name); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (n *Network) serializeGUI(enc *msgpack.Encoder) error {
	if err := enc.EncodeMapLen(3); err != nil {
		return err
	}
	if err := enc.EncodeString("shown"); err != nil {
		return err
	}
	if err := enc.EncodeBool(n.gui.shown); err != nil {
		return err
	}
	if err := enc.EncodeString("zoom"); err != nil {
		return err
	}
	if err := enc.EncodeFloat64(n.gui.zoom); err != nil {
		return err
	}
	if err := enc.EncodeString("offset"); err != nil {
		return err
	}
	if err := enc.EncodeArrayLen(2); err != nil {
		return err
	}
	if err := enc.EncodeFloat64(n.gui.offset[0]); err != nil {
		return err
	}
	return enc.EncodeFloat64(n.gui.offset[1])
}

func deserializeNetwork(dec *msgpack.Decoder, env *file.Env) (*Network, error) {
	out := New(env)
	cnt, err := dec.DecodeMapLen()
	if err != nil {
		return nil, err
	}
	for i := 0; i < cnt; i++ {
		key, err := dec.DecodeString()
		if err != nil {
			return nil, err
		}
		switch key {
		case "lastMod":
			if _, err := dec.DecodeInt64(); err != nil {
				return nil, err
			}
		case "nextId":
			if out.nextID, err = dec.DecodeUint64(); err != nil {
				return nil, err
			}
		case "nodes":
			if err := out.deserializeHolders(dec, env); err != nil {
				return nil, err
			}
		case "links":
			if err := out.deserializeLinks(dec); err != nil {
				return nil, err
			}
		case "gui":
			if err := out.deserializeGUI(dec); err != nil {
				return nil, err
			}
		default:
			if err := dec.Skip(); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

func (n *Network) deserializeHolders(dec *msgpack.Decoder, env *file.Env) error {
	cnt, err := dec.DecodeArrayLen()
	if err != nil {
		return err
	}
	var errs *multierror.Error
	for i := 0; i < cnt; i++ {
		h, err := deserializeHolder(dec, env)
		if err != nil {
			return file.Deserializef(err, "node %d", i)
		}
		if h.id >= n.nextID {
			return file.Deserializef(nil, "node id conflict: %d", h.id)
		}
		if n.FindHolder(h.id) != nil {
			return file.Deserializef(nil, "duplicated node id: %d", h.id)
		}
		n.holders = append(n.holders, h)
		if in, ok := h.n.(internalNode); ok {
			if err := in.Setup(n); err != nil {
				errs = multierror.Append(errs, err)
			}
		}
	}
	return errs.ErrorOrNil()
}

func deserializeHolder(dec *msgpack.Decoder, env *file.Env) (*Holder, error) {
	cnt, err := dec.DecodeMapLen()
	if err != nil {
		return nil, err
	}
	h := &Holder{}
	for i := 0; i < cnt; i++ {
		key, err := dec.DecodeString()
		if err != nil {
			return nil, err
		}
		switch key {
		case "id":
			if h.id, err = dec.DecodeUint64(); err != nil {
				return nil, err
			}
		case "file":
			f, err := file.Deserialize(dec, env)
			if err != nil {
				return nil, err
			}
			nd, ok := f.(node.Node)
			if !ok {
				return nil, file.Deserializef(nil, "%s is not a node", f.Type().Name)
			}
			h.n = nd
		case "pos":
			l, err := dec.DecodeArrayLen()
			if err != nil {
				return nil, err
			}
			for j := 0; j < l && j < 2; j++ {
				if h.pos[j], err = dec.DecodeFloat64(); err != nil {
					return nil, err
				}
			}
		case "select":
			if h.selected, err = dec.DecodeBool(); err != nil {
				return nil, err
			}
		default:
			if err := dec.Skip(); err != nil {
				return nil, err
			}
		}
	}
	if h.n == nil {
		return nil, file.Deserializef(nil, "holder lacks a file")
	}
	return h, nil
}

// deserializeLinks consumes one record per holder. Vanished peers and
// socket names that no longer exist are dropped without error.
func (n *Network) deserializeLinks(dec *msgpack.Decoder) error {
	cnt, err := dec.DecodeArrayLen()
	if err != nil {
		return err
	}
	for i := 0; i < cnt; i++ {
		recLen, err := dec.DecodeMapLen()
		if err != nil {
			return err
		}
		for j := 0; j < recLen; j++ {
			outName, err := dec.DecodeString()
			if err != nil {
				return err
			}
			dsts, err := dec.DecodeArrayLen()
			if err != nil {
				return err
			}
			for k := 0; k < dsts; k++ {
				pair, err := dec.DecodeArrayLen()
				if err != nil {
					return err
				}
				if pair != 2 {
					return file.Deserializef(nil, "broken link record")
				}
				idx, err := dec.DecodeInt64()
				if err != nil {
					return err
				}
				inName, err := dec.DecodeString()
				if err != nil {
					return err
				}
				if i >= len(n.holders) {
					continue
				}
				out := n.holders[i].n.FindOut(outName)
				if out == nil {
					continue
				}
				if idx < 0 || int(idx) >= len(n.holders) {
					continue
				}
				in := n.holders[idx].n.FindIn(inName)
				if in == nil {
					continue
				}
				node.Link(out, in)
				n.links.record(out, in)
			}
		}
	}
	return nil
}

func (n *Network) deserializeGUI(dec *msgpack.Decoder) error {
	cnt, err := dec.DecodeMapLen()
	if err != nil {
		return err
	}
	for i := 0; i < cnt; i++ {
		key, err := dec.DecodeString()
		if err != nil {
			return err
		}
		switch key {
		case "shown":
			if n.gui.shown, err = dec.DecodeBool(); err != nil {
				return err
			}
		case "zoom":
			if n.gui.zoom, err = dec.DecodeFloat64(); err != nil {
				return err
			}
		case "offset":
			l, err := dec.DecodeArrayLen()
			if err != nil {
				return err
			}
			for j := 0; j < l && j < 2; j++ {
				if n.gui.offset[j], err = dec.DecodeFloat64(); err != nil {
					return err
				}
			}
		default:
			if err := dec.Skip(); err != nil {
				return err
			}
		}
	}
	return nil
}

// Clone walks the holder list producing fresh holders with ids starting
// at zero, then relinks through an old-to-new node map. Volatile state
// (contexts, history, selection) resets.
func (n *Network) Clone(env *file.Env) (file.File, error) {
	out := New(env)
	mapped := map[node.Node]node.Node{}
	for _, h := range n.holders {
		cl, err := h.n.Clone(env)
		if err != nil {
			return nil, fmt.Errorf("cloning node %d: %w", h.id, err)
		}
		nd, ok := cl.(node.Node)
		if !ok {
			return nil, fmt.Errorf("clone of node %d is not a node", h.id)
		}
		mapped[h.n] = nd
		nh := NewHolder(nd)
		nh.pos = h.pos
		if err := out.attachNew(nh); err != nil {
			return nil, err
		}
	}
	for _, h := range n.holders {
		for _, oldOut := range h.n.Out() {
			newOut := mapped[h.n].FindOut(oldOut.Name())
			if newOut == nil {
				continue
			}
			for _, oldIn := range n.links.DestsOf(oldOut) {
				peer, ok := mapped[oldIn.Owner()]
				if !ok {
					continue
				}
				newIn := peer.FindIn(oldIn.Name())
				if newIn == nil {
					continue
				}
				node.Link(newOut, newIn)
				out.links.record(newOut, newIn)
			}
		}
	}
	out.gui = n.gui
	return out, nil
}
