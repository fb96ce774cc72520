package main

import (
	"github.com/varbit/leb128/cmd/leb/cmds"
	"github.com/varbit/leb128/pkg/version"
)

// Build is the git sha of this binaries build.
var Build string

func main() {
	if Build != "" {
		version.LebVersion.Build = Build
	}
	cmds.New().Execute()
}
