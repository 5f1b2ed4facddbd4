package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"go.detai.dev/companion/internal/types"
)

// DefaultDebounce is how long the watcher waits for the directory to settle.
const DefaultDebounce = 500 * time.Millisecond

// Watcher restores the plugin when it is deleted or modified outside the app,
// e.g. by a Studio update clearing the plugins folder. It stays idle after an
// explicit Uninstall until the next Install.
type Watcher struct {
	inst     *Installer
	debounce time.Duration

	// OnSync is called after every reinstall attempt. Optional.
	OnSync func(types.InstallResult, error)
}

// NewWatcher creates a Watcher for inst.
func NewWatcher(inst *Installer) *Watcher {
	return &Watcher{inst: inst, debounce: DefaultDebounce}
}

// Run watches the plugins directory until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	if err := os.MkdirAll(w.inst.Dir(), 0o755); err != nil {
		return fmt.Errorf("create plugins dir: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(w.inst.Dir()); err != nil {
		return fmt.Errorf("watch dir %s: %w", w.inst.Dir(), err)
	}
	slog.Info("plugin watcher started", "dir", w.inst.Dir())

	target := filepath.Clean(w.inst.Path())
	var settle <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			slog.Info("plugin watcher stopped")
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Remove|fsnotify.Rename|fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			slog.Debug("plugin file changed", "op", event.Op.String())
			settle = time.After(w.debounce)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			slog.Error("plugin watcher error", "error", err)

		case <-settle:
			settle = nil
			if w.inst.Uninstalled() {
				slog.Debug("plugin uninstalled, not restoring")
				continue
			}
			res, err := w.inst.Install()
			if err != nil {
				slog.Error("reinstall plugin", "error", err)
			} else if res.Outcome == types.Installed {
				slog.Info("plugin restored", "path", res.Path)
			}
			if w.OnSync != nil {
				w.OnSync(res, err)
			}
		}
	}
}
