// Package main is the dynmacro command.
package main

import (
	"os"

	"github.com/leapstack-labs/dynmacro/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
