// Package main starts the three-finger-drag daemon.
package main

import (
	"flag"
	"fmt"
)

// version is overridable at build time via -ldflags "-X main.version=...".
var version = "dev"

// main is the entrypoint for the daemon.
func main() {
	configPath := flag.String("config", "", "Path to the config file (default: $XDG_CONFIG_HOME/linux-3-finger-drag/3fd-config.json)")
	debug := flag.Bool("debug", false, "Enable verbose debug logging")
	showVersion := flag.Bool("version", false, "Print the version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("3fdrag " + version)
		return
	}

	if err := run(*configPath, *debug); err != nil {
		logFatal(err)
	}
}
