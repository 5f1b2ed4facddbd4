//go:build !darwin

package hotkey

// IsAccessibilityEnabled always reports true; only macOS gates key hooks.
func IsAccessibilityEnabled(bool) bool {
	return true
}
