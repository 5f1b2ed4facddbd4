package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"

	"github.com/wailsapp/wails/v3/pkg/application"

	"go.detai.dev/companion/hotkey"
	"go.detai.dev/companion/internal/types"
	"go.detai.dev/companion/plugin"
	"go.detai.dev/companion/snap"
)

// Snap messages shown in the window.
const (
	msgSnapEnabled  = "Snap enabled - window will follow Studio"
	msgSnapDisabled = "Snap disabled"
)

var errNoWindow = errors.New("app: window not initialized")

// Service provides application functionality bound to Wails.
// This struct focuses on orchestration; the work lives in Core and the
// feature packages.
type Service struct {
	core    *Core
	version string

	// UI references - set via Init
	app    *application.App
	window application.Window

	runner *Runner
	mode   snap.Mode
	loop   *snap.Loop
	hotkey *hotkey.HotkeyManager

	chord string
	opts  snap.Options
}

// New creates a new Service. Call Init() after Wails app is created.
func New(core *Core, version string, snapOpts snap.Options, chord string) *Service {
	return &Service{core: core, version: version, opts: snapOpts, chord: chord}
}

// GetVersion returns the application version.
func (s *Service) GetVersion() string {
	return s.version
}

// Init stores the app and window references and builds the snap loop.
// Must be called after Wails application is created.
func (s *Service) Init(app *application.App, window application.Window) {
	s.app = app
	s.window = window
	s.loop = snap.NewLoop(&s.mode, s.core.Screen(), windowMover(window), s.opts)
}

// Start launches the HTTP server, plugin watcher, snap loop and hotkey.
// A bind failure is returned; everything else is logged.
func (s *Service) Start(ctx context.Context) error {
	s.runner = NewRunner(ctx)
	if err := s.core.Start(s.runner, s.onPluginSync); err != nil {
		s.runner.Stop()
		return err
	}
	if inst := s.core.Installer(); inst != nil {
		s.emitPluginStatus(inst.IsInstalled(), nil)
	}

	if s.loop != nil {
		s.runner.Go("snap-loop", func(ctx context.Context) error {
			s.loop.Run(ctx)
			return nil
		})
	}

	s.setupHotkey()
	return nil
}

// Shutdown cleans up resources.
func (s *Service) Shutdown() {
	if s.hotkey != nil {
		s.hotkey.Stop()
	}
	if s.runner != nil {
		s.runner.Stop()
	}
	s.core.Close()
}

func (s *Service) setupHotkey() {
	if s.chord == "" {
		slog.Info("snap hotkey disabled")
		return
	}

	hk, err := hotkey.NewHotkeyManager(s.chord, func() {
		msg, err := s.SnapToStudio()
		if err != nil {
			slog.Warn("snap from hotkey", "error", err)
			return
		}
		slog.Info(msg)
	})
	if err != nil {
		slog.Error("register hotkey", "chord", s.chord, "error", err)
		return
	}
	s.hotkey = hk

	s.hotkey.SetStatusCallback(func(granted bool) {
		s.emit(EventAccessibilityPerm, granted)
		if granted {
			slog.Info("accessibility permission granted")
		} else {
			slog.Warn("accessibility permission denied")
		}
	})

	if err := s.hotkey.Start(); err != nil {
		slog.Error("start hotkey", "error", err)
	}
}

// emit is a safe wrapper around app.Event.Emit
func (s *Service) emit(name string, data any) {
	if s.app != nil {
		s.app.Event.Emit(name, data)
	}
}

// windowMover docks the Wails window at the given bounds.
func windowMover(w application.Window) snap.Mover {
	return snap.MoverFunc(func(b types.WindowBounds) error {
		if w == nil {
			return errNoWindow
		}
		w.SetPosition(b.X, b.Y)
		w.SetSize(b.Width, b.Height)
		return nil
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// Snap
// ─────────────────────────────────────────────────────────────────────────────

// SnapToStudio toggles snap mode. When turning it on the window is docked
// immediately; the mode stays on even if Studio is not running yet.
func (s *Service) SnapToStudio() (string, error) {
	if s.loop == nil {
		enabled := s.mode.Toggle()
		s.emit(EventSnapStatus, enabled)
		if !enabled {
			return msgSnapDisabled, nil
		}
		return "", errNoWindow
	}

	enabled, err := s.loop.Toggle()
	s.emit(EventSnapStatus, enabled)

	if !enabled {
		slog.Info("snap to studio disabled")
		return msgSnapDisabled, nil
	}
	slog.Info("snap to studio enabled")
	if err != nil {
		return "", err
	}
	return msgSnapEnabled, nil
}

// GetSnapStatus reports whether snap mode is on.
func (s *Service) GetSnapStatus() bool {
	return s.mode.Enabled()
}

// ─────────────────────────────────────────────────────────────────────────────
// Plugin
// ─────────────────────────────────────────────────────────────────────────────

// ReinstallPlugin writes the bundled plugin again if it differs on disk.
func (s *Service) ReinstallPlugin() (types.InstallResult, error) {
	res, err := s.core.InstallPlugin()
	s.onPluginSync(res, err)
	if err != nil {
		return res, fmt.Errorf("reinstall plugin: %w", err)
	}
	return res, nil
}

// UninstallPlugin removes the plugin from Studio's plugins folder.
func (s *Service) UninstallPlugin() error {
	if err := s.core.UninstallPlugin(); err != nil {
		s.emitPluginStatus(false, err)
		return fmt.Errorf("uninstall plugin: %w", err)
	}
	s.emitPluginStatus(false, nil)
	return nil
}

// OpenPluginsFolder reveals the plugins folder in the file manager.
func (s *Service) OpenPluginsFolder() error {
	inst := s.core.Installer()
	if inst == nil {
		return plugin.ErrUnsupportedPlatform
	}

	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", inst.Dir())
	case "windows":
		cmd = exec.Command("explorer", inst.Dir())
	default:
		cmd = exec.Command("xdg-open", inst.Dir())
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("open plugins folder: %w", err)
	}
	go func() { _ = cmd.Wait() }()
	return nil
}

func (s *Service) onPluginSync(res types.InstallResult, err error) {
	path := ""
	if inst := s.core.Installer(); inst != nil {
		path = inst.Path()
	}
	s.emit(EventPluginStatus, pluginStatus(path, res, err))
}

func (s *Service) emitPluginStatus(installed bool, err error) {
	st := PluginStatus{Installed: installed}
	if inst := s.core.Installer(); inst != nil {
		st.Path = inst.Path()
	}
	if err != nil {
		st.Error = err.Error()
	}
	s.emit(EventPluginStatus, st)
}

// ─────────────────────────────────────────────────────────────────────────────
// Status
// ─────────────────────────────────────────────────────────────────────────────

// GetStatus returns what the window shows in its status panel.
func (s *Service) GetStatus() types.AppStatus {
	st := types.AppStatus{
		Version:     s.version,
		Addr:        s.core.Addr(),
		SnapEnabled: s.mode.Enabled(),
	}
	if inst := s.core.Installer(); inst != nil {
		st.PluginPath = inst.Path()
		st.PluginInstalled = inst.IsInstalled()
	}
	return st
}
