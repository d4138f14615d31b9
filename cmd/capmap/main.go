// Package main is the single-binary entrypoint for capmap.
package main

import "github.com/capx-network/capmap/internal/cli"

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.Execute(version)
}
