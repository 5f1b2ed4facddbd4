//go:build !darwin

package capture

import "go.detai.dev/companion/internal/types"

// unsupported is the provider on platforms without a native backend.
type unsupported struct{}

// NewNative returns a provider that never finds Studio and is never granted.
func NewNative() Provider {
	return unsupported{}
}

func (unsupported) HasPermission() bool { return false }

func (unsupported) RequestPermission() {}

func (unsupported) StudioWindowID() (int64, bool) { return 0, false }

func (unsupported) StudioWindowBounds() (types.WindowBounds, bool) {
	return types.WindowBounds{}, false
}

func (unsupported) CaptureStudioWindow() ([]byte, error) {
	return nil, ErrWindowNotFound
}
