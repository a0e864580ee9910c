// Copyright (c) The Kingtaker Authors
// SPDX-License-Identifier: MPL-2.0

package file

import (
	"fmt"

	"github.com/xlab/treeprint"
)

// Tree renders the subtree under f for terminal display.
func Tree(name string, f File) string {
	root := treeprint.NewWithRoot(describe(name, f))
	addChildren(root, f)
	return root.String()
}

func addChildren(branch treeprint.Tree, f File) {
	f.Scan(func(name string, child File) {
		sub := branch.AddBranch(describe(name, child))
		addChildren(sub, child)
	})
}

func describe(name string, f File) string {
	return fmt.Sprintf("%s [%s]", name, f.Type().Name)
}
