// Copyright (c) The Kingtaker Authors
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"errors"
	"flag"

	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/cli"
	"github.com/spf13/afero"

	"github.com/falsycat/kingtaker-sub000/internal/file"
	"github.com/falsycat/kingtaker-sub000/internal/queue"
	"github.com/falsycat/kingtaker-sub000/internal/store"
)

type showCommand struct {
	ui cli.Ui
}

func (c *showCommand) Help() string {
	return `Usage: kingtaker show [-file=<path>]

  Prints the file tree stored in a state file.

Options:

  -file=<path>  State file. Default: kingtaker.bin`
}

func (c *showCommand) Synopsis() string {
	return "print the stored file tree"
}

func (c *showCommand) Run(args []string) int {
	flags := flag.NewFlagSet("show", flag.ContinueOnError)
	statePath := flags.String("file", "kingtaker.bin", "state file")
	if err := flags.Parse(args); err != nil {
		return 1
	}

	// Deserialization runs closures through the queues, so a real set
	// is needed even for a read-only dump.
	queues := queue.NewSet(1, nil)
	defer queues.Close()
	env := &file.Env{Queues: queues, Log: hclog.NewNullLogger()}

	st := store.New(afero.NewOsFs(), *statePath, nil)
	root, err := st.Load(env, func(*file.Env) (file.File, error) {
		return nil, errors.New("no state file at " + *statePath)
	})
	if err != nil {
		c.ui.Error(err.Error())
		return 1
	}
	env.Root = root

	c.ui.Output(file.Tree("/", root))
	return 0
}
