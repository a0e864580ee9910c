// Copyright (c) The Kingtaker Authors
// SPDX-License-Identifier: MPL-2.0

package file

import (
	"fmt"
	"sort"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// GenericDirType is the registration of the plain directory.
var GenericDirType *TypeInfo

func init() {
	GenericDirType = Register(&TypeInfo{
		Name: "GenericDir",
		Desc: "generic directory",
		Tags: []string{"Dir", "DirItem"},
		Deserialize: func(dec *msgpack.Decoder, env *Env) (File, error) {
			return deserializeGenericDir(dec, env)
		},
		Factory: func(env *Env) File { return NewGenericDir(env) },
	})
}

// GenericDir is the standard directory: a name-to-child map mutated
// only through Add and Remove.
type GenericDir struct {
	Base
	env   *Env
	shown bool
	items map[string]File
}

var _ Directory = (*GenericDir)(nil)

// NewGenericDir returns an empty directory.
func NewGenericDir(env *Env) *GenericDir {
	return &GenericDir{
		Base:  NewBase(GenericDirType),
		env:   env,
		items: map[string]File{},
	}
}

func (d *GenericDir) Find(name string) File {
	return d.items[name]
}

func (d *GenericDir) Scan(fn func(string, File)) {
	names := make([]string, 0, len(d.items))
	for name := range d.items {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fn(name, d.items[name])
	}
}

// Add inserts a child under a fresh name.
func (d *GenericDir) Add(name string, f File) error {
	if err := CheckName(name); err != nil {
		return err
	}
	if _, dup := d.items[name]; dup {
		return fmt.Errorf("name conflict in directory: %q", name)
	}
	d.items[name] = f
	d.Touch()
	return nil
}

// Remove detaches and returns the named child.
func (d *GenericDir) Remove(name string) (File, bool) {
	f, ok := d.items[name]
	if !ok {
		return nil, false
	}
	delete(d.items, name)
	d.Touch()
	return f, true
}

// Len returns the child count.
func (d *GenericDir) Len() int { return len(d.items) }

func (d *GenericDir) Serialize(enc *msgpack.Encoder) error {
	if err := enc.EncodeMapLen(2); err != nil {
		return err
	}
	if err := enc.EncodeString("shown"); err != nil {
		return err
	}
	if err := enc.EncodeBool(d.shown); err != nil {
		return err
	}
	if err := enc.EncodeString("items"); err != nil {
		return err
	}
	if err := enc.EncodeMapLen(len(d.items)); err != nil {
		return err
	}
	var outer error
	d.Scan(func(name string, f File) {
		if outer != nil {
			return
		}
		if err := enc.EncodeString(name); err != nil {
			outer = err
			return
		}
		outer = SerializeWithType(enc, f)
	})
	return outer
}

func (d *GenericDir) Clone(env *Env) (File, error) {
	out := NewGenericDir(env)
	out.Base = NewBaseAt(GenericDirType, d.LastModified())
	out.shown = d.shown
	for name, f := range d.items {
		cl, err := f.Clone(env)
		if err != nil {
			return nil, fmt.Errorf("cloning %q: %w", name, err)
		}
		out.items[name] = cl
	}
	return out, nil
}

func deserializeGenericDir(dec *msgpack.Decoder, env *Env) (*GenericDir, error) {
	d := NewGenericDir(env)
	n, err := dec.DecodeMapLen()
	if err != nil {
		return nil, err
	}
	for i := 0; i < n; i++ {
		key, err := dec.DecodeString()
		if err != nil {
			return nil, err
		}
		switch key {
		case "shown":
			if d.shown, err = dec.DecodeBool(); err != nil {
				return nil, err
			}
		case "items":
			cnt, err := dec.DecodeMapLen()
			if err != nil {
				return nil, err
			}
			for j := 0; j < cnt; j++ {
				name, err := dec.DecodeString()
				if err != nil {
					return nil, err
				}
				if err := CheckName(name); err != nil {
					return nil, Deserializef(nil, "bad item name %q", name)
				}
				f, err := Deserialize(dec, env)
				if err != nil {
					return nil, Deserializef(err, "item %q", name)
				}
				if _, dup := d.items[name]; dup {
					return nil, Deserializef(nil, "duplicated item name %q", name)
				}
				d.items[name] = f
			}
		default:
			if err := dec.Skip(); err != nil {
				return nil, err
			}
		}
	}
	d.Base = NewBaseAt(GenericDirType, time.Now())
	return d, nil
}
