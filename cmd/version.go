package cmd

import (
	"fmt"
	"runtime"
)

// Version is set at build time via -ldflags "-X github.com/paperbase/paperbase/cmd.Version=...".
var Version = "dev"

// runVersion prints version information.
func runVersion() {
	fmt.Printf("paperbase %s (%s/%s, %s)\n", Version, runtime.GOOS, runtime.GOARCH, runtime.Version())
}
