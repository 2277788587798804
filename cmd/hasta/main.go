package main

import (
	"fmt"
	"os"

	"github.com/ayusman/hasta/cmd/hasta/commands"
)

// Version information - set during build
var version = "dev"

func main() {
	commands.SetVersionInfo(version)

	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
