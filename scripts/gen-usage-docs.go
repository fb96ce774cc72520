//go:build ignore
// +build ignore

package main

import (
	"github.com/spf13/cobra/doc"

	"github.com/varbit/leb128/cmd/leb/cmds"
)

func main() {
	doc.GenMarkdownTree(cmds.New(), "./Documentation/usage")
}
