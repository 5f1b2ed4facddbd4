// Command bakable is the Bakable companion for Roblox Studio.
package main

import (
	_ "embed"
	"os"

	"go.detai.dev/companion/internal/app"
	"go.detai.dev/companion/internal/cli"
)

//go:embed plugin/Bakable.rbxm
var pluginBundle []byte

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	edition := app.Edition{
		Name:        "Bakable",
		Description: "Studio companion for Bakable: viewport capture and voice for the Bakable plugin.",
		Plugin:      pluginBundle,
	}
	cmd := cli.NewRootCommand(edition, cli.BuildInfo{Version: version, Commit: commit, Date: date})
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
