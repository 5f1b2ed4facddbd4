// Package plugin installs the bundled Roblox Studio plugin into Studio's
// local plugins directory.
package plugin

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/natefinch/atomic"

	"go.detai.dev/companion/internal/types"
)

// Ext is the file extension of a binary Roblox model.
const Ext = ".rbxm"

var (
	// ErrUnsupportedPlatform is returned by Dir where Studio has no local
	// plugins directory.
	ErrUnsupportedPlatform = errors.New("plugin: unsupported platform")
	// ErrEmptyBundle is returned when no plugin bytes were bundled.
	ErrEmptyBundle = errors.New("plugin: empty bundle")
)

// Dir returns Studio's local plugins directory for goos.
func Dir(goos string) (string, error) {
	switch goos {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		return filepath.Join(home, "Documents", "Roblox", "Plugins"), nil
	case "windows":
		local := os.Getenv("LOCALAPPDATA")
		if local == "" {
			return "", errors.New("plugin: LOCALAPPDATA is not set")
		}
		return filepath.Join(local, "Roblox", "Plugins"), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedPlatform, goos)
	}
}

// Installer keeps one plugin file in sync with the bundled bytes.
type Installer struct {
	dir    string
	name   string
	bundle []byte

	mu sync.Mutex
	// uninstalled is set by Uninstall and cleared by Install.
	uninstalled bool
}

// NewInstaller creates an Installer writing <dir>/<name>.rbxm.
func NewInstaller(dir, name string, bundle []byte) *Installer {
	return &Installer{dir: dir, name: name, bundle: bundle}
}

// Path returns the installed plugin path.
func (i *Installer) Path() string {
	return filepath.Join(i.dir, i.name+Ext)
}

// Dir returns the plugins directory.
func (i *Installer) Dir() string {
	return i.dir
}

// Install writes the bundled plugin unless an identical file is already there.
// The file is replaced atomically so Studio never loads a partial model.
func (i *Installer) Install() (types.InstallResult, error) {
	if len(i.bundle) == 0 {
		return types.InstallResult{}, ErrEmptyBundle
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	path := i.Path()
	if err := os.MkdirAll(i.dir, 0o755); err != nil {
		return types.InstallResult{}, fmt.Errorf("create plugins dir: %w", err)
	}

	existing, err := os.ReadFile(path)
	switch {
	case err == nil && bytes.Equal(existing, i.bundle):
		i.uninstalled = false
		return types.InstallResult{Outcome: types.AlreadyCurrent, Path: path}, nil
	case err != nil && !errors.Is(err, fs.ErrNotExist):
		return types.InstallResult{}, fmt.Errorf("read installed plugin: %w", err)
	}

	if err := atomic.WriteFile(path, bytes.NewReader(i.bundle)); err != nil {
		return types.InstallResult{}, fmt.Errorf("write plugin: %w", err)
	}
	i.uninstalled = false
	slog.Info("plugin installed", "path", path, "bytes", len(i.bundle))
	return types.InstallResult{Outcome: types.Installed, Path: path}, nil
}

// Uninstall removes the plugin file. A missing file is not an error.
func (i *Installer) Uninstall() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	path := i.Path()
	i.uninstalled = true
	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("remove plugin: %w", err)
	}
	slog.Info("plugin uninstalled", "path", path)
	return nil
}

// Uninstalled reports whether the plugin was explicitly removed and not
// installed again since.
func (i *Installer) Uninstalled() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.uninstalled
}

// IsInstalled reports whether the installed file matches the bundle.
func (i *Installer) IsInstalled() bool {
	i.mu.Lock()
	defer i.mu.Unlock()

	existing, err := os.ReadFile(i.Path())
	return err == nil && bytes.Equal(existing, i.bundle)
}
