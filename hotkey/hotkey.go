// Package hotkey registers the global shortcut that toggles window snapping.
package hotkey

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	hook "github.com/robotn/gohook"
)

// DefaultChord toggles snap mode unless configured otherwise.
const DefaultChord = "ctrl+shift+s"

var (
	// ErrInvalidChord is returned for chords that cannot be registered.
	ErrInvalidChord = errors.New("hotkey: invalid chord")
	// ErrAccessibilityDenied is returned when the OS blocks global key hooks.
	ErrAccessibilityDenied = errors.New("hotkey: accessibility permission not granted")
)

var modifierAliases = map[string]string{
	"ctrl":    "ctrl",
	"control": "ctrl",
	"shift":   "shift",
	"alt":     "alt",
	"option":  "alt",
	"opt":     "alt",
	"cmd":     "cmd",
	"command": "cmd",
	"meta":    "cmd",
}

// modifierOrder keeps ParseChord output stable.
var modifierOrder = []string{"ctrl", "alt", "shift", "cmd"}

// ParseChord turns "ctrl+shift+s" into gohook key names, modifiers first and
// the key last.
func ParseChord(chord string) ([]string, error) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(chord)), "+")

	mods := make(map[string]bool)
	var key string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidChord, chord)
		}
		if m, ok := modifierAliases[p]; ok {
			mods[m] = true
			continue
		}
		if key != "" {
			return nil, fmt.Errorf("%w: %q has more than one key", ErrInvalidChord, chord)
		}
		key = p
	}
	if key == "" {
		return nil, fmt.Errorf("%w: %q has no key", ErrInvalidChord, chord)
	}
	if len(mods) == 0 {
		return nil, fmt.Errorf("%w: %q needs a modifier", ErrInvalidChord, chord)
	}

	keys := make([]string, 0, len(mods)+1)
	for _, m := range modifierOrder {
		if mods[m] {
			keys = append(keys, m)
		}
	}
	return append(keys, key), nil
}

// HotkeyManager owns the global key hook.
type HotkeyManager struct {
	keys     []string
	onPress  func()
	onStatus func(granted bool)

	mu      sync.Mutex
	running bool
	done    chan struct{}
}

// NewHotkeyManager creates a manager that calls onPress for chord.
func NewHotkeyManager(chord string, onPress func()) (*HotkeyManager, error) {
	keys, err := ParseChord(chord)
	if err != nil {
		return nil, err
	}
	return &HotkeyManager{keys: keys, onPress: onPress}, nil
}

// SetStatusCallback is told whether accessibility access was granted on Start.
func (m *HotkeyManager) SetStatusCallback(fn func(granted bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onStatus = fn
}

// Start installs the hook. It prompts for accessibility access when needed.
func (m *HotkeyManager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}

	granted := IsAccessibilityEnabled(true)
	if m.onStatus != nil {
		m.onStatus(granted)
	}
	if !granted {
		return ErrAccessibilityDenied
	}

	hook.Register(hook.KeyDown, m.keys, func(hook.Event) {
		slog.Debug("hotkey pressed", "keys", strings.Join(m.keys, "+"))
		// Keep the hook thread responsive.
		go m.onPress()
	})

	events := hook.Start()
	m.done = make(chan struct{})
	m.running = true

	done := m.done
	go func() {
		defer close(done)
		<-hook.Process(events)
	}()

	slog.Info("hotkey registered", "keys", strings.Join(m.keys, "+"))
	return nil
}

// Stop removes the hook and waits for the event loop to exit.
func (m *HotkeyManager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}
	hook.End()
	<-m.done
	m.running = false
}
