// Command polypaper is a paper-trading ledger for Polymarket prediction markets.
package main

import (
	"fmt"
	"os"

	"polypaper/internal/cli"
)

// Set via -ldflags at build time.
var (
	version   = ""
	buildDate = ""
)

func main() {
	if version != "" {
		cli.Version = version
	}
	if buildDate != "" {
		cli.BuildDate = buildDate
	}

	if err := cli.Execute(nil); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
