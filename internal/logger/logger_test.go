// Copyright (c) The Kingtaker Authors
// SPDX-License-Identifier: MPL-2.0

package logger

import (
	"bytes"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/falsycat/kingtaker-sub000/internal/file"
)

func TestResolveUpward(t *testing.T) {
	log := hclog.NewNullLogger()
	env := &file.Env{Log: log}
	root := file.NewGenericDir(env)
	deep := file.NewGenericDir(env)
	if err := root.Add("_logger", New(log)); err != nil {
		t.Fatal(err)
	}
	if err := root.Add("deep", deep); err != nil {
		t.Fatal(err)
	}

	rs, err := file.NewRefStack(root).ResolveString("deep")
	if err != nil {
		t.Fatal(err)
	}
	found, err := rs.ResolveUpwardString("_logger")
	if err != nil {
		t.Fatal(err)
	}
	lf, ok := found.Top().(file.Logger)
	if !ok {
		t.Fatalf("resolved a %T", found.Top())
	}
	if lf.Logger() != log {
		t.Fatal("logger file wraps a different sink")
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	log := hclog.NewNullLogger()
	l := New(log)

	var buf bytes.Buffer
	if err := file.SerializeWithType(msgpack.NewEncoder(&buf), l); err != nil {
		t.Fatal(err)
	}
	env := &file.Env{Log: log}
	f, err := file.Deserialize(msgpack.NewDecoder(bytes.NewReader(buf.Bytes())), env)
	if err != nil {
		t.Fatal(err)
	}
	got, ok := f.(*Logger)
	if !ok {
		t.Fatalf("deserialized a %T", f)
	}
	if got.Logger() != log {
		t.Fatal("reload dropped the environment sink")
	}
}
