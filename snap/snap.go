// Package snap keeps the companion window docked to the right edge of the
// Roblox Studio window.
package snap

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.detai.dev/companion/internal/types"
)

const (
	// DefaultInterval is the poll period of the loop.
	DefaultInterval = 8 * time.Millisecond
	// DefaultWidth is the width of the docked window.
	DefaultWidth = 420
)

// ErrStudioNotFound is returned when Studio has no visible window.
var ErrStudioNotFound = errors.New("snap: Roblox Studio not found")

// Locator finds Studio's window on screen.
type Locator interface {
	StudioWindowBounds() (types.WindowBounds, bool)
}

// Mover repositions the companion window.
type Mover interface {
	Move(types.WindowBounds) error
}

// MoverFunc adapts a function to Mover.
type MoverFunc func(types.WindowBounds) error

// Move calls f(b).
func (f MoverFunc) Move(b types.WindowBounds) error { return f(b) }

// Mode is the snap on/off switch shared by the loop and its controllers.
type Mode struct {
	enabled atomic.Bool
}

// Enabled reports whether snapping is on.
func (m *Mode) Enabled() bool { return m.enabled.Load() }

// Set turns snapping on or off.
func (m *Mode) Set(on bool) { m.enabled.Store(on) }

// Toggle flips the mode and returns the new value.
func (m *Mode) Toggle() bool {
	for {
		old := m.enabled.Load()
		if m.enabled.CompareAndSwap(old, !old) {
			return !old
		}
	}
}

// Docked returns where the companion window goes for studio.
func Docked(studio types.WindowBounds, width int) types.WindowBounds {
	return types.WindowBounds{
		X:      studio.X + studio.Width,
		Y:      studio.Y,
		Width:  width,
		Height: studio.Height,
	}
}

// Loop polls Studio's bounds and moves the window when they change.
type Loop struct {
	mode     *Mode
	locator  Locator
	mover    Mover
	interval time.Duration
	width    int

	mu   sync.Mutex
	last *types.WindowBounds
}

// Options configures a Loop. Zero values use the defaults.
type Options struct {
	Interval time.Duration
	Width    int
}

// NewLoop creates a Loop.
func NewLoop(mode *Mode, locator Locator, mover Mover, opts Options) *Loop {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Width <= 0 {
		opts.Width = DefaultWidth
	}
	return &Loop{
		mode:     mode,
		locator:  locator,
		mover:    mover,
		interval: opts.Interval,
		width:    opts.Width,
	}
}

// Run ticks until ctx is done.
func (l *Loop) Run(ctx context.Context) {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	slog.Debug("snap loop started", "interval", l.interval)
	for {
		select {
		case <-ctx.Done():
			slog.Debug("snap loop stopped")
			return
		case <-ticker.C:
			l.tick()
		}
	}
}

func (l *Loop) tick() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.mode.Enabled() {
		l.last = nil
		return
	}

	studio, ok := l.locator.StudioWindowBounds()
	if !ok {
		return
	}
	if l.last != nil && *l.last == studio {
		return
	}
	if err := l.mover.Move(Docked(studio, l.width)); err != nil {
		slog.Warn("move window", "error", err)
		return
	}
	l.last = &studio
}

// SnapNow docks the window immediately. It does nothing while the mode is off.
func (l *Loop) SnapNow() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.mode.Enabled() {
		return nil
	}
	return l.snapLocked()
}

// Toggle flips the mode and docks the window when it turns on. Ticks and
// other toggles are held off until the move finishes, so the window is never
// moved after the mode is observed off.
func (l *Loop) Toggle() (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.mode.Toggle() {
		l.last = nil
		return false, nil
	}
	return true, l.snapLocked()
}

func (l *Loop) snapLocked() error {
	studio, ok := l.locator.StudioWindowBounds()
	if !ok {
		return ErrStudioNotFound
	}
	if err := l.mover.Move(Docked(studio, l.width)); err != nil {
		return err
	}
	l.last = &studio
	return nil
}
