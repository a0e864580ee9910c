// Copyright (c) The Kingtaker Authors
// SPDX-License-Identifier: MPL-2.0

// Package logger provides the tree-resident "_logger" file. Nodes
// locate it with ResolveUpward("_logger") and write through the hclog
// logger it wraps.
package logger

import (
	"github.com/hashicorp/go-hclog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/falsycat/kingtaker-sub000/internal/file"
)

// Type is the registration of the logger file.
var Type *file.TypeInfo

func init() {
	Type = file.Register(&file.TypeInfo{
		Name: "SystemLogger",
		Desc: "ambient logger",
		Tags: []string{"DirItem", "Logger"},
		Deserialize: func(dec *msgpack.Decoder, env *file.Env) (file.File, error) {
			if err := dec.Skip(); err != nil {
				return nil, err
			}
			return New(env.Log), nil
		},
		Factory: func(env *file.Env) file.File { return New(env.Log) },
	})
}

// Logger wraps one hclog.Logger as a File.
type Logger struct {
	file.Base
	log hclog.Logger
}

var _ file.Logger = (*Logger)(nil)

// New wraps log. A nil log falls back to the default hclog logger so
// callers never get a nil sink.
func New(log hclog.Logger) *Logger {
	if log == nil {
		log = hclog.Default()
	}
	return &Logger{Base: file.NewBase(Type), log: log}
}

func (l *Logger) Logger() hclog.Logger { return l.log }

func (l *Logger) Serialize(enc *msgpack.Encoder) error { return enc.EncodeNil() }

// Clone shares the sink: log output is volatile state with no identity
// of its own.
func (l *Logger) Clone(env *file.Env) (file.File, error) {
	return New(l.log), nil
}
