// Package permission gates capture and listening on OS-level grants.
//
// Requests are fire-and-forget: the OS shows its own dialog and nothing here
// waits on the user. Callers re-check Has before retrying.
package permission

import (
	"errors"
	"log/slog"
	"sync"

	"go.detai.dev/companion/internal/types"
)

// ErrUnknownCapability is returned for capabilities without a registered checker.
var ErrUnknownCapability = errors.New("permission: unknown capability")

// Checker reads and requests one OS permission.
type Checker interface {
	HasPermission() bool
	RequestPermission()
}

// Gate routes permission checks to per-capability checkers.
type Gate struct {
	mu       sync.Mutex
	checkers map[types.Capability]Checker
	pending  map[types.Capability]bool
}

// NewGate creates a Gate. Nil checkers are skipped.
func NewGate(checkers map[types.Capability]Checker) *Gate {
	g := &Gate{
		checkers: make(map[types.Capability]Checker, len(checkers)),
		pending:  make(map[types.Capability]bool),
	}
	for c, chk := range checkers {
		if chk != nil {
			g.checkers[c] = chk
		}
	}
	return g
}

// Has reports whether cap is currently granted. The provider is asked on every
// call so grants made in System Settings are picked up without a restart.
func (g *Gate) Has(c types.Capability) bool {
	chk, ok := g.checker(c)
	if !ok {
		return false
	}

	granted := chk.HasPermission()
	if granted {
		g.mu.Lock()
		delete(g.pending, c)
		g.mu.Unlock()
	}
	return granted
}

// State returns the tri-state view of a capability.
func (g *Gate) State(c types.Capability) types.PermissionState {
	if g.Has(c) {
		return types.PermissionGranted
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pending[c] {
		return types.PermissionDenied
	}
	return types.PermissionUnknown
}

// Request asks the OS for cap without blocking. The returned channel is closed
// once the request has been handed to the OS. While an earlier request is
// still unresolved no new prompt is triggered and a closed channel is returned.
func (g *Gate) Request(c types.Capability) (<-chan struct{}, error) {
	chk, ok := g.checker(c)
	if !ok {
		return nil, ErrUnknownCapability
	}

	done := make(chan struct{})

	g.mu.Lock()
	if g.pending[c] {
		g.mu.Unlock()
		close(done)
		return done, nil
	}
	g.pending[c] = true
	g.mu.Unlock()

	slog.Info("requesting permission", "capability", c)
	go func() {
		defer close(done)
		chk.RequestPermission()
	}()
	return done, nil
}

// Pending reports whether a request for cap has been issued and not yet granted.
func (g *Gate) Pending(c types.Capability) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pending[c]
}

func (g *Gate) checker(c types.Capability) (Checker, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	chk, ok := g.checkers[c]
	return chk, ok
}
