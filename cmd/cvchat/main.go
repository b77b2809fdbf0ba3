// Command cvchat is the entry point for the CVChat resume assistant.
// It provides a CLI interface (via Cobra) for ingesting candidate resumes and
// chatting against them, plus an HTTP server for programmatic use.
package main

import (
	"fmt"
	"os"

	"github.com/54b3r/cvchat-go/cmd/cvchat/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
