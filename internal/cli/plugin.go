package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"go.detai.dev/companion/plugin"
)

func newPluginCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plugin",
		Short: "Manage the bundled Roblox Studio plugin",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "install",
		Short: "Copy the bundled plugin into Studio's plugins folder",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			inst, err := e.installer()
			if err != nil {
				return err
			}
			res, err := inst.Install()
			if err != nil {
				return fmt.Errorf("install plugin: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", res.Outcome, res.Path)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "uninstall",
		Short: "Remove the plugin from Studio's plugins folder",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			inst, err := e.installer()
			if err != nil {
				return err
			}
			if err := inst.Uninstall(); err != nil {
				return fmt.Errorf("uninstall plugin: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed: %s\n", inst.Path())
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print where the plugin is installed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			inst, err := e.installer()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), inst.Path())
			return nil
		},
	})

	return cmd
}

func (e *env) installer() (*plugin.Installer, error) {
	dir := e.cfg.Plugin.Dir
	if dir == "" {
		d, err := plugin.Dir(runtime.GOOS)
		if err != nil {
			return nil, err
		}
		dir = d
	}
	return plugin.NewInstaller(dir, e.edition.Name, e.edition.Plugin), nil
}
