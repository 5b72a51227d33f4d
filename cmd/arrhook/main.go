// Package main is the entry point for the arrhook application.
package main

import (
	"os"

	"github.com/arrhook/arrhook/cmd/arrhook/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
