// Copyright (c) The Kingtaker Authors
// SPDX-License-Identifier: MPL-2.0

// Package file defines the persistent hierarchical tree: the File
// interface, the global TypeInfo registry driving dynamic construction
// and deserialization, path resolution, and the generic directory.
package file

import (
	"fmt"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/falsycat/kingtaker-sub000/internal/queue"
)

// File is a node of the persistent tree. Every File has exactly one
// owning parent except the root.
//
// Capability discovery is done with Go type assertions against the
// capability interfaces (Directory, Logger, QueueHolder, Memento, the
// node interfaces of other packages); a File advertises a capability by
// implementing it.
type File interface {
	// Type returns the registration record of the concrete type.
	Type() *TypeInfo

	// Find returns the named child, or nil.
	Find(name string) File

	// Scan visits all children in name order.
	Scan(fn func(name string, f File))

	// Serialize writes the type-specific body (the "param" of the
	// typed envelope) to the encoder.
	Serialize(enc *msgpack.Encoder) error

	// Clone returns a structurally independent copy with all
	// persistent state duplicated and volatile state reset.
	Clone(env *Env) (File, error)

	// LastModified reports the time of the last persistent mutation.
	LastModified() time.Time
}

// Env is the shared environment of one file tree. It is opaque to most
// files; the ones that need ambient services reach them here or through
// ResolveUpward.
type Env struct {
	Queues *queue.Set
	Log    hclog.Logger

	// Root is the tree root, set by the owner once the tree exists.
	// Absolute path resolution starts here.
	Root File
}

// Capability interfaces.

// Directory is a File whose children are owned and mutable by name.
type Directory interface {
	File
	Add(name string, f File) error
	Remove(name string) (File, bool)
}

// Logger is a File granting access to an ambient logger, found by
// resolving "_logger" upward from a node's location.
type Logger interface {
	File
	Logger() hclog.Logger
}

// QueueHolder is a File wrapping one task queue, found by resolving
// "_queue/<name>" upward.
type QueueHolder interface {
	File
	TaskQueue() *queue.Queue
}

// Memento is implemented by files that can snapshot volatile substate.
// Save captures the current substate and returns a restorer; it returns
// ErrCollapse when nothing changed since the previous snapshot, telling
// the caller to absorb this snapshot into the previous one.
type Memento interface {
	File
	Save() (restore func(), err error)
}

// DeserializeFunc builds a File from its serialized body.
type DeserializeFunc func(dec *msgpack.Decoder, env *Env) (File, error)

// TypeInfo is the global registration record of one concrete File type.
// Records are write-once at static init.
type TypeInfo struct {
	// Name keys the registry and the serialized form. Unique.
	Name string

	// Desc is a one-line human-readable description.
	Desc string

	// Tags names the capability set for registry listings; discovery
	// itself uses type assertions.
	Tags []string

	// Deserialize builds a File from the "param" body. Nil makes the
	// type non-persistable.
	Deserialize DeserializeFunc

	// Factory builds a fresh default instance, for menus and tests.
	// Optional.
	Factory func(env *Env) File
}

var (
	regMu sync.Mutex
	reg   = map[string]*TypeInfo{}
)

// Register records a TypeInfo. It panics on a duplicate or empty name;
// registration happens in package init blocks where a conflict is a
// programming error.
func Register(ti *TypeInfo) *TypeInfo {
	if ti.Name == "" {
		panic("file: TypeInfo with empty name")
	}
	regMu.Lock()
	defer regMu.Unlock()
	if _, dup := reg[ti.Name]; dup {
		panic("file: duplicate TypeInfo name: " + ti.Name)
	}
	reg[ti.Name] = ti
	return ti
}

// Lookup returns the TypeInfo registered under name, or nil.
func Lookup(name string) *TypeInfo {
	regMu.Lock()
	defer regMu.Unlock()
	return reg[name]
}

// Types returns all registered TypeInfos sorted by name.
func Types() []*TypeInfo {
	regMu.Lock()
	defer regMu.Unlock()
	out := make([]*TypeInfo, 0, len(reg))
	for _, ti := range reg {
		out = append(out, ti)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

var nameRe = regexp.MustCompile(`^[0-9A-Za-z_.]+$`)

// CheckName validates a sibling name against the allowed charset.
func CheckName(name string) error {
	if !nameRe.MatchString(name) {
		return fmt.Errorf("invalid file name: %q", name)
	}
	return nil
}

// SerializeWithType writes the typed envelope {type, param} for f.
func SerializeWithType(enc *msgpack.Encoder, f File) error {
	if err := enc.EncodeMapLen(2); err != nil {
		return err
	}
	if err := enc.EncodeString("type"); err != nil {
		return err
	}
	if err := enc.EncodeString(f.Type().Name); err != nil {
		return err
	}
	if err := enc.EncodeString("param"); err != nil {
		return err
	}
	return f.Serialize(enc)
}

// Deserialize reads a typed envelope and dispatches to the registered
// deserializer. Unknown types and malformed envelopes surface as a
// DeserializeError.
func Deserialize(dec *msgpack.Decoder, env *Env) (File, error) {
	n, err := dec.DecodeMapLen()
	if err != nil {
		return nil, Deserializef(err, "broken file envelope")
	}
	if n != 2 {
		return nil, Deserializef(nil, "file envelope has %d entries, want 2", n)
	}
	if err := expectKey(dec, "type"); err != nil {
		return nil, err
	}
	name, err := dec.DecodeString()
	if err != nil {
		return nil, Deserializef(err, "broken file type name")
	}
	ti := Lookup(name)
	if ti == nil || ti.Deserialize == nil {
		return nil, Deserializef(nil, "unknown file type: %s", name)
	}
	if err := expectKey(dec, "param"); err != nil {
		return nil, err
	}
	f, err := ti.Deserialize(dec, env)
	if err != nil {
		return nil, Deserializef(err, "broken %s", name)
	}
	return f, nil
}

func expectKey(dec *msgpack.Decoder, want string) error {
	key, err := dec.DecodeString()
	if err != nil {
		return Deserializef(err, "broken file envelope")
	}
	if key != want {
		return Deserializef(nil, "file envelope has %q where %q belongs", key, want)
	}
	return nil
}

// Base carries the boilerplate shared by concrete File types. Serialize
// and Clone stay with the concrete type.
type Base struct {
	typ     *TypeInfo
	lastMod time.Time
}

// NewBase stamps a Base with its TypeInfo and the current time.
func NewBase(ti *TypeInfo) Base {
	return Base{typ: ti, lastMod: time.Now()}
}

// NewBaseAt stamps a Base with an explicit modification time, for
// deserialized files.
func NewBaseAt(ti *TypeInfo, lastMod time.Time) Base {
	return Base{typ: ti, lastMod: lastMod}
}

func (b *Base) Type() *TypeInfo         { return b.typ }
func (b *Base) LastModified() time.Time { return b.lastMod }
func (b *Base) Find(string) File        { return nil }
func (b *Base) Scan(func(string, File)) {}

// Touch records a persistent mutation.
func (b *Base) Touch() { b.lastMod = time.Now() }
