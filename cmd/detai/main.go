// Command detai is the DetAI companion for Roblox Studio.
package main

import (
	_ "embed"
	"os"

	"go.detai.dev/companion/internal/app"
	"go.detai.dev/companion/internal/cli"
)

//go:embed plugin/DetAI.rbxm
var pluginBundle []byte

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	edition := app.Edition{
		Name:        "DetAI",
		Description: "Studio companion for DetAI: viewport capture and voice for the DetAI plugin.",
		Plugin:      pluginBundle,
	}
	cmd := cli.NewRootCommand(edition, cli.BuildInfo{Version: version, Commit: commit, Date: date})
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
