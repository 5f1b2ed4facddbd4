//go:build darwin

package hotkey

/*
#cgo LDFLAGS: -framework ApplicationServices -framework CoreFoundation
#include <ApplicationServices/ApplicationServices.h>
#include <stdbool.h>

static bool accessibilityEnabled(bool prompt) {
	const void* keys[] = { kAXTrustedCheckOptionPrompt };
	const void* values[] = { prompt ? kCFBooleanTrue : kCFBooleanFalse };
	CFDictionaryRef opts = CFDictionaryCreate(kCFAllocatorDefault, keys, values, 1,
		&kCFCopyStringDictionaryKeyCallBacks, &kCFTypeDictionaryValueCallBacks);
	bool trusted = AXIsProcessTrustedWithOptions(opts);
	CFRelease(opts);
	return trusted;
}
*/
import "C"

// IsAccessibilityEnabled reports whether the process may observe global key
// events. With prompt set, macOS shows its permission dialog when not trusted.
func IsAccessibilityEnabled(prompt bool) bool {
	return bool(C.accessibilityEnabled(C.bool(prompt)))
}
