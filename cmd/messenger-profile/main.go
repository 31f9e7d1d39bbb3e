// Package main is the messenger-profile command.
package main

import (
	"fmt"
	"os"

	"github.com/garyellow/messenger-bot-go/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
