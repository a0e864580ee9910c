// Copyright (c) The Kingtaker Authors
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/mitchellh/cli"
	"github.com/spf13/afero"

	"github.com/falsycat/kingtaker-sub000/internal/app"
)

// tickInterval paces the headless host loop. Queue timestamps are
// milliseconds since start.
const tickInterval = 16 * time.Millisecond

type runCommand struct {
	ui cli.Ui
}

func (c *runCommand) Help() string {
	return `Usage: kingtaker run [-config=<path>]

  Loads the file tree and drives the task queues until interrupted.
  The tree is saved on shutdown.

Options:

  -config=<path>  Configuration file. Default: kingtaker.toml`
}

func (c *runCommand) Synopsis() string {
	return "run the editor core loop"
}

func (c *runCommand) Run(args []string) int {
	flags := flag.NewFlagSet("run", flag.ContinueOnError)
	configPath := flags.String("config", "kingtaker.toml", "configuration file")
	if err := flags.Parse(args); err != nil {
		return 1
	}

	afs := afero.NewOsFs()
	cfg, err := app.LoadConfig(afs, *configPath)
	if err != nil {
		c.ui.Error(err.Error())
		return 1
	}
	a, err := app.New(cfg, afs)
	if err != nil {
		c.ui.Error(err.Error())
		return 1
	}
	defer a.Close()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, shutdownSignals...)
	defer signal.Stop(sig)

	start := time.Now()
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-sig:
			c.ui.Info("shutting down")
			if err := a.Save(); err != nil {
				c.ui.Error(err.Error())
				return 1
			}
			return 0
		case <-ticker.C:
			a.Tick(uint64(time.Since(start).Milliseconds()))
			if p := a.Panic(); p != nil {
				c.ui.Error(fmt.Sprintf("task panic: %v\n%s", p.Recovered, p.Stack))
				return 1
			}
		}
	}
}
