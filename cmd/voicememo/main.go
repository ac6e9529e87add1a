package main

import (
	"fmt"
	"os"

	"github.com/transono/voicememo/internal/interface/cli"
)

// version is set at build time via -ldflags
var version = "dev"

func main() {
	if err := cli.NewRoot(version).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
