// Package capture takes screenshots of the Roblox Studio window.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.detai.dev/companion/internal/types"
	"go.detai.dev/companion/permission"
)

var (
	// ErrPermissionDenied is returned when screen recording is not granted.
	ErrPermissionDenied = errors.New("capture: screen recording permission not granted")
	// ErrWindowNotFound is returned when no Roblox Studio window is on screen.
	ErrWindowNotFound = errors.New("capture: roblox studio window not found")
	// ErrCaptureFailed is returned when the OS produced no image.
	ErrCaptureFailed = errors.New("capture: capture failed")
)

// Provider is the platform screenshot backend.
type Provider interface {
	// HasPermission reports whether screen recording is granted.
	HasPermission() bool

	// RequestPermission shows the OS prompt. It does not wait for the user.
	RequestPermission()

	// StudioWindowID returns the window number of the first Studio window.
	StudioWindowID() (int64, bool)

	// StudioWindowBounds returns the frame of the first Studio window.
	StudioWindowBounds() (types.WindowBounds, bool)

	// CaptureStudioWindow returns PNG bytes of the Studio window.
	CaptureStudioWindow() ([]byte, error)
}

// Capturer runs the permission-gated capture command.
type Capturer struct {
	provider Provider
	gate     *permission.Gate
}

// NewCapturer creates a Capturer. The gate must know CapabilityScreenCapture.
func NewCapturer(p Provider, gate *permission.Gate) *Capturer {
	return &Capturer{provider: p, gate: gate}
}

// CaptureViewport returns a PNG of the Studio viewport.
// The provider is never touched when permission is missing.
func (c *Capturer) CaptureViewport(ctx context.Context) ([]byte, error) {
	if !c.gate.Has(types.CapabilityScreenCapture) {
		return nil, ErrPermissionDenied
	}

	id, ok := c.provider.StudioWindowID()
	if !ok {
		return nil, ErrWindowNotFound
	}
	slog.DebugContext(ctx, "found studio window", "id", id)

	data, err := c.provider.CaptureStudioWindow()
	if err != nil {
		if errors.Is(err, ErrWindowNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrCaptureFailed, err)
	}
	if len(data) == 0 {
		return nil, ErrCaptureFailed
	}

	slog.InfoContext(ctx, "screenshot captured", "bytes", len(data))
	return data, nil
}

// HasPermission reports the current screen recording grant.
func (c *Capturer) HasPermission() bool {
	return c.gate.Has(types.CapabilityScreenCapture)
}
