// Package main is the entry point for the stenograf application.
package main

import (
	"errors"
	"os"

	"github.com/stenograf/stenograf/cmd/stenograf/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		if errors.Is(err, cmd.ErrConfig) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
