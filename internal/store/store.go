// Copyright (c) The Kingtaker Authors
// SPDX-License-Identifier: MPL-2.0

// Package store persists the file tree: a msgpack envelope carrying the
// writer's format version and the serialized root, written atomically.
package store

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/hashicorp/go-hclog"
	goversion "github.com/hashicorp/go-version"
	"github.com/spf13/afero"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/falsycat/kingtaker-sub000/internal/file"
)

// FormatVersion is stamped into every written state file. A loader
// refuses files written by a newer format.
const FormatVersion = "1.0.0"

var formatVersion = goversion.Must(goversion.NewVersion(FormatVersion))

// Store reads and writes one state file on an afero filesystem.
type Store struct {
	fs   afero.Fs
	path string
	log  hclog.Logger
}

// New builds a store. log may be nil.
func New(afs afero.Fs, path string, log hclog.Logger) *Store {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	return &Store{fs: afs, path: path, log: log}
}

// Path returns the state file location.
func (s *Store) Path() string { return s.path }

// Load reads the state file and deserializes the root. A missing file
// is not an error: fallback builds the initial root instead.
func (s *Store) Load(env *file.Env, fallback func(*file.Env) (file.File, error)) (file.File, error) {
	f, err := s.fs.Open(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.log.Info("state file missing, building initial root", "path", s.path)
			return fallback(env)
		}
		return nil, fmt.Errorf("opening state file: %w", err)
	}
	defer f.Close()

	dec := msgpack.NewDecoder(f)
	cnt, err := dec.DecodeMapLen()
	if err != nil {
		return nil, file.Deserializef(err, "broken state envelope")
	}
	var root file.File
	for i := 0; i < cnt; i++ {
		key, err := dec.DecodeString()
		if err != nil {
			return nil, file.Deserializef(err, "broken state envelope")
		}
		switch key {
		case "version":
			raw, err := dec.DecodeString()
			if err != nil {
				return nil, file.Deserializef(err, "broken version")
			}
			v, err := goversion.NewVersion(raw)
			if err != nil {
				return nil, file.Deserializef(err, "broken version %q", raw)
			}
			if v.GreaterThan(formatVersion) {
				return nil, fmt.Errorf(
					"state file written by a newer format (%s > %s)", v, formatVersion)
			}
		case "root":
			if root, err = file.Deserialize(dec, env); err != nil {
				return nil, err
			}
		default:
			if err := dec.Skip(); err != nil {
				return nil, file.Deserializef(err, "broken state envelope")
			}
		}
	}
	if root == nil {
		return nil, file.Deserializef(nil, "state envelope lacks a root")
	}
	s.log.Info("state loaded", "path", s.path)
	return root, nil
}

// Save serializes root into a temporary sibling and renames it over the
// state file, so a crash mid-write never corrupts the previous state.
func (s *Store) Save(root file.File) error {
	tmp := s.path + ".tmp"
	f, err := s.fs.Create(tmp)
	if err != nil {
		return fmt.Errorf("creating temp state file: %w", err)
	}
	enc := msgpack.NewEncoder(f)
	if err := writeEnvelope(enc, root); err != nil {
		f.Close()
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("serializing state: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("closing temp state file: %w", err)
	}
	if err := s.fs.Rename(tmp, s.path); err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("replacing state file: %w", err)
	}
	s.log.Info("state saved", "path", s.path)
	return nil
}

func writeEnvelope(enc *msgpack.Encoder, root file.File) error {
	if err := enc.EncodeMapLen(2); err != nil {
		return err
	}
	if err := enc.EncodeString("version"); err != nil {
		return err
	}
	if err := enc.EncodeString(FormatVersion); err != nil {
		return err
	}
	if err := enc.EncodeString("root"); err != nil {
		return err
	}
	return file.SerializeWithType(enc, root)
}
