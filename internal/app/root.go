// Copyright (c) The Kingtaker Authors
// SPDX-License-Identifier: MPL-2.0

package app

import (
	"github.com/falsycat/kingtaker-sub000/internal/file"
	"github.com/falsycat/kingtaker-sub000/internal/logger"
	"github.com/falsycat/kingtaker-sub000/internal/network"
	"github.com/falsycat/kingtaker-sub000/internal/queue"
)

// DefaultRoot builds the initial tree used when no state file exists:
// the ambient "_logger" and "_queue" entries plus an empty "home"
// network.
func DefaultRoot(env *file.Env) (file.File, error) {
	root := file.NewGenericDir(env)

	if err := root.Add("_logger", logger.New(env.Log)); err != nil {
		return nil, err
	}

	queues := file.NewGenericDir(env)
	for _, name := range []string{queue.NameMain, queue.NameSub, queue.NameCPU, queue.NameGL} {
		if err := queues.Add(name, NewQueueFile(name, env.Queues.Lookup(name))); err != nil {
			return nil, err
		}
	}
	if err := root.Add("_queue", queues); err != nil {
		return nil, err
	}

	if err := root.Add("home", network.New(env)); err != nil {
		return nil, err
	}
	return root, nil
}
