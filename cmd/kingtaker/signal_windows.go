//go:build windows

// Copyright (c) The Kingtaker Authors
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"os"
)

var shutdownSignals = []os.Signal{os.Interrupt}
