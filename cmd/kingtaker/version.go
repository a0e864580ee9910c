// Copyright (c) The Kingtaker Authors
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"fmt"

	"github.com/mitchellh/cli"

	"github.com/falsycat/kingtaker-sub000/internal/store"
)

const version = "0.1.0"

type versionCommand struct {
	ui cli.Ui
}

func (c *versionCommand) Help() string {
	return "Usage: kingtaker version\n\n  Prints the program and state format versions."
}

func (c *versionCommand) Synopsis() string {
	return "print version information"
}

func (c *versionCommand) Run([]string) int {
	c.ui.Output(fmt.Sprintf("kingtaker %s (state format %s)", version, store.FormatVersion))
	return 0
}
