package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"path/filepath"
	"runtime"

	"go.detai.dev/companion/capture"
	"go.detai.dev/companion/config"
	"go.detai.dev/companion/history"
	"go.detai.dev/companion/internal/types"
	"go.detai.dev/companion/permission"
	"go.detai.dev/companion/plugin"
	"go.detai.dev/companion/server"
	"go.detai.dev/companion/speech"
	"go.detai.dev/companion/telemetry"
)

// Edition identifies one branded build of the companion.
type Edition struct {
	// Name is the product name. It names the config dir and the plugin file.
	Name        string
	Description string
	// Plugin is the bundled .rbxm.
	Plugin []byte
}

// Providers are the native backends. Tests substitute fakes.
type Providers struct {
	Screen capture.Provider
	Voice  speech.Provider
}

// NativeProviders returns the backends for the running OS.
func NativeProviders() Providers {
	return Providers{Screen: capture.NewNative(), Voice: speech.NewNative()}
}

// CoreOptions configures NewCore.
type CoreOptions struct {
	Edition   Edition
	Version   string
	Config    *config.Config
	Providers Providers
	// DataDir holds history. Empty uses the per-app config dir.
	DataDir string
}

// Core wires the HTTP API and the plugin installer. It has no UI and backs
// both the desktop app and headless mode.
type Core struct {
	edition Edition
	version string
	cfg     *config.Config

	screen    capture.Provider
	gate      *permission.Gate
	speech    *speech.Service
	history   *history.Store
	metrics   *telemetry.Metrics
	server    *server.Server
	installer *plugin.Installer
}

// NewCore builds every component. Missing optional parts (history, metrics,
// plugins dir) are logged and skipped.
func NewCore(opts CoreOptions) (*Core, error) {
	if opts.Config == nil {
		return nil, errors.New("app: config is required")
	}
	if opts.Providers.Screen == nil || opts.Providers.Voice == nil {
		return nil, errors.New("app: providers are required")
	}

	c := &Core{
		edition: opts.Edition,
		version: opts.Version,
		cfg:     opts.Config,
		screen:  opts.Providers.Screen,
	}

	c.gate = permission.NewGate(map[types.Capability]permission.Checker{
		types.CapabilityScreenCapture: opts.Providers.Screen,
		types.CapabilitySpeech:        opts.Providers.Voice,
	})

	c.setupHistory(opts.DataDir)

	speechCfg := speech.Config{Locale: c.cfg.Speech.Locale}
	if c.cfg.Speech.AutoVoice {
		speechCfg.Voices = speech.NewVoicePicker(c.cfg.Speech.Locale)
	}
	if c.history != nil {
		speechCfg.Recorder = c.history
	}
	c.speech = speech.NewService(opts.Providers.Voice, c.gate, speechCfg)

	metrics, err := telemetry.New(opts.Edition.Name, opts.Version)
	if err != nil {
		slog.Warn("init telemetry", "error", err)
	}
	c.metrics = metrics

	srvOpts := server.Options{
		Version:  opts.Version,
		Gate:     c.gate,
		Capturer: capture.NewCapturer(opts.Providers.Screen, c.gate),
		Speech:   c.speech,
		Metrics:  c.metrics,
	}
	if c.history != nil {
		srvOpts.History = c.history
	}
	c.server = server.New(srvOpts)

	c.setupInstaller()
	return c, nil
}

func (c *Core) setupHistory(dataDir string) {
	if !c.cfg.History.Enabled {
		return
	}
	if dataDir == "" {
		dir, err := config.Dir(c.edition.Name)
		if err != nil {
			slog.Error("get data dir for history", "error", err)
			return
		}
		dataDir = dir
	}

	path := filepath.Join(dataDir, "history")
	store, err := history.Open(history.Options{Dir: path, TTL: c.cfg.HistoryTTL()})
	if err != nil {
		slog.Error("init history", "error", err)
		return
	}
	c.history = store
	slog.Info("history initialized", "path", path)
}

func (c *Core) setupInstaller() {
	dir := c.cfg.Plugin.Dir
	if dir == "" {
		d, err := plugin.Dir(runtime.GOOS)
		if err != nil {
			slog.Warn("resolve plugins dir", "error", err)
			return
		}
		dir = d
	}
	c.installer = plugin.NewInstaller(dir, c.edition.Name, c.edition.Plugin)
}

// Installer returns the plugin installer, or nil when the platform has no
// plugins directory.
func (c *Core) Installer() *plugin.Installer {
	return c.installer
}

// Screen returns the capture provider, which also locates Studio's window.
func (c *Core) Screen() capture.Provider {
	return c.screen
}

// Addr returns the configured listen address.
func (c *Core) Addr() string {
	return c.cfg.Addr()
}

// InstallPlugin syncs the bundled plugin to disk.
func (c *Core) InstallPlugin() (types.InstallResult, error) {
	if c.installer == nil {
		return types.InstallResult{}, plugin.ErrUnsupportedPlatform
	}
	return c.installer.Install()
}

// UninstallPlugin removes the plugin file.
func (c *Core) UninstallPlugin() error {
	if c.installer == nil {
		return plugin.ErrUnsupportedPlatform
	}
	return c.installer.Uninstall()
}

// Start installs the plugin, binds the HTTP port and runs the server and the
// plugin watcher on r. Only a bind failure is returned; install failures are
// logged. onSync observes every watcher reinstall and may be nil.
func (c *Core) Start(r *Runner, onSync func(types.InstallResult, error)) error {
	c.installOnStartup()

	ln, err := net.Listen("tcp", c.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listen %s: %w", c.cfg.Addr(), err)
	}
	slog.Info("http server listening", "addr", ln.Addr().String())

	c.startWatcher(r, onSync)
	r.Go("http-server", func(ctx context.Context) error {
		return c.server.Serve(ctx, ln)
	})
	return nil
}

// Serve runs headless until ctx is done.
func (c *Core) Serve(ctx context.Context) error {
	c.installOnStartup()

	r := NewRunner(ctx)
	defer r.Stop()
	c.startWatcher(r, nil)

	return c.server.ListenAndServe(ctx, c.cfg.Addr())
}

func (c *Core) installOnStartup() {
	res, err := c.InstallPlugin()
	switch {
	case err != nil:
		slog.Error("install plugin", "error", err)
	case res.Outcome == types.Installed:
		slog.Info("plugin installed, open Roblox Studio to use it", "edition", c.edition.Name, "path", res.Path)
	default:
		slog.Info("plugin already installed", "path", res.Path)
	}
}

func (c *Core) startWatcher(r *Runner, onSync func(types.InstallResult, error)) {
	if c.installer == nil || !c.cfg.Plugin.Watch {
		return
	}
	w := plugin.NewWatcher(c.installer)
	w.OnSync = onSync
	r.Go("plugin-watcher", w.Run)
}

// Close stops speech and releases storage.
func (c *Core) Close() {
	c.speech.StopListening()
	c.speech.StopSpeaking()

	if err := c.metrics.Shutdown(context.Background()); err != nil {
		slog.Warn("shutdown telemetry", "error", err)
	}
	if c.history != nil {
		if err := c.history.Close(); err != nil {
			slog.Error("close history", "error", err)
		}
	}
}
