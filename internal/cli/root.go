// Package cli builds the command line of an edition binary.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/spf13/cobra"

	"go.detai.dev/companion/config"
	"go.detai.dev/companion/internal/app"
	"go.detai.dev/companion/internal/logging"
)

// BuildInfo is stamped by the linker.
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

// env is shared by every subcommand once the root pre-run has loaded it.
type env struct {
	edition app.Edition
	build   BuildInfo

	configPath string
	logLevel   string

	cfg    *config.Config
	logger io.Closer
}

// NewRootCommand returns the root command for one edition. Without a
// subcommand it runs the desktop app.
func NewRootCommand(edition app.Edition, build BuildInfo) *cobra.Command {
	e := &env{edition: edition, build: build}

	rootCmd := &cobra.Command{
		Use:          strings.ToLower(edition.Name),
		Short:        edition.Name + " companion for Roblox Studio",
		Long:         edition.Description,
		Version:      build.Version,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return e.setup(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			e.close()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDesktop(cmd.Context(), e)
		},
	}

	rootCmd.SetVersionTemplate(fmt.Sprintf("{{.Name}} version {{.Version}}\nCommit: %s\nBuilt: %s\nGo version: %s\nPlatform: %s/%s\n",
		build.Commit, build.Date, goVersion(), runtime.GOOS, runtime.GOARCH))

	rootCmd.PersistentFlags().StringVar(&e.configPath, "config", "", "config file (default is <config dir>/"+edition.Name+"/config.json)")
	rootCmd.PersistentFlags().StringVar(&e.logLevel, "log-level", "", "override the configured log level (debug, info, warn, error)")

	rootCmd.AddCommand(newServeCmd(e))
	rootCmd.AddCommand(newPluginCmd(e))
	rootCmd.AddCommand(newVersionCmd(e))

	return rootCmd
}

func (e *env) setup(cmd *cobra.Command) error {
	cfg, err := e.loadConfig()
	if err != nil {
		return err
	}
	e.cfg = cfg

	level := cfg.LogLevel
	if e.logLevel != "" {
		level = e.logLevel
	}
	closer, err := logging.Setup(logging.Options{
		Dir:    filepath.Join(filepath.Dir(cfg.Path()), "logs"),
		Name:   strings.ToLower(e.edition.Name),
		Level:  level,
		Stderr: cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	e.logger = closer

	slog.Debug("config loaded", "path", cfg.Path())
	return nil
}

func (e *env) loadConfig() (*config.Config, error) {
	if e.configPath != "" {
		return config.LoadFile(e.configPath)
	}
	return config.Load(e.edition.Name)
}

func (e *env) close() {
	if e.logger != nil {
		_ = e.logger.Close()
		e.logger = nil
	}
}

func (e *env) newCore() (*app.Core, error) {
	return app.NewCore(app.CoreOptions{
		Edition:   e.edition,
		Version:   e.build.Version,
		Config:    e.cfg,
		Providers: app.NativeProviders(),
		DataDir:   filepath.Dir(e.cfg.Path()),
	})
}

// goVersion returns the Go version used to build the binary.
func goVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		return info.GoVersion
	}
	return "unknown"
}
