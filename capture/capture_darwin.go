//go:build darwin

package capture

/*
#cgo CFLAGS: -x objective-c -fobjc-arc -mmacosx-version-min=12.3
#cgo LDFLAGS: -framework CoreGraphics -framework Foundation -framework AppKit -framework ScreenCaptureKit

#import <CoreGraphics/CoreGraphics.h>
#import <Foundation/Foundation.h>
#import <AppKit/AppKit.h>
#include <stdbool.h>
#include <stdlib.h>
#include <string.h>

// Implemented in capture_darwin.m.
extern void* captureWindowScreenCaptureKit(uint32_t windowID, size_t* outLen);

static bool hasScreenCapturePermission() {
    return CGPreflightScreenCaptureAccess();
}

static void requestScreenCapturePermission() {
    CGRequestScreenCaptureAccess();
}

static bool findStudioWindow(uint32_t* outID, int* outX, int* outY, int* outW, int* outH) {
    CFArrayRef list = CGWindowListCopyWindowInfo(
        kCGWindowListOptionOnScreenOnly | kCGWindowListExcludeDesktopElements, kCGNullWindowID);
    if (list == NULL) {
        return false;
    }
    NSArray* windows = CFBridgingRelease(list);

    for (NSDictionary* w in windows) {
        NSString* owner = w[(id)kCGWindowOwnerName];
        if (owner == nil || [[owner lowercaseString] rangeOfString:@"roblox"].location == NSNotFound) {
            continue;
        }
        NSNumber* layer = w[(id)kCGWindowLayer];
        if (layer != nil && [layer intValue] != 0) {
            continue;
        }
        NSNumber* number = w[(id)kCGWindowNumber];
        NSDictionary* bounds = w[(id)kCGWindowBounds];
        if (number == nil || bounds == nil) {
            continue;
        }
        CGRect rect;
        if (!CGRectMakeWithDictionaryRepresentation((__bridge CFDictionaryRef)bounds, &rect)) {
            continue;
        }
        *outID = [number unsignedIntValue];
        *outX = (int)rect.origin.x;
        *outY = (int)rect.origin.y;
        *outW = (int)rect.size.width;
        *outH = (int)rect.size.height;
        return true;
    }
    return false;
}

static void* captureWindowCoreGraphics(uint32_t windowID, size_t* outLen) {
    CGImageRef image = CGWindowListCreateImage(CGRectNull, kCGWindowListOptionIncludingWindow,
        windowID, kCGWindowImageBoundsIgnoreFraming | kCGWindowImageBestResolution);
    if (image == NULL) {
        return NULL;
    }
    if (CGImageGetWidth(image) <= 1 || CGImageGetHeight(image) <= 1) {
        CGImageRelease(image);
        return NULL;
    }

    NSBitmapImageRep* rep = [[NSBitmapImageRep alloc] initWithCGImage:image];
    CGImageRelease(image);
    NSData* png = [rep representationUsingType:NSBitmapImageFileTypePNG properties:@{}];
    if (png == nil || png.length == 0) {
        return NULL;
    }

    void* buf = malloc(png.length);
    if (buf == NULL) {
        return NULL;
    }
    memcpy(buf, png.bytes, png.length);
    *outLen = png.length;
    return buf;
}
*/
import "C"

import (
	"unsafe"

	"go.detai.dev/companion/internal/types"
)

// native captures through CoreGraphics, falling back to ScreenCaptureKit.
type native struct{}

// NewNative returns the macOS capture provider.
func NewNative() Provider {
	return native{}
}

func (native) HasPermission() bool {
	return bool(C.hasScreenCapturePermission())
}

func (native) RequestPermission() {
	C.requestScreenCapturePermission()
}

func (native) StudioWindowID() (int64, bool) {
	id, _, ok := findStudioWindow()
	return int64(id), ok
}

func (native) StudioWindowBounds() (types.WindowBounds, bool) {
	_, b, ok := findStudioWindow()
	return b, ok
}

func (native) CaptureStudioWindow() ([]byte, error) {
	id, _, ok := findStudioWindow()
	if !ok {
		return nil, ErrWindowNotFound
	}

	var n C.size_t
	ptr := C.captureWindowCoreGraphics(C.uint32_t(id), &n)
	if ptr == nil {
		ptr = C.captureWindowScreenCaptureKit(C.uint32_t(id), &n)
	}
	if ptr == nil || n == 0 {
		if ptr != nil {
			C.free(ptr)
		}
		return nil, ErrCaptureFailed
	}
	defer C.free(ptr)

	return C.GoBytes(unsafe.Pointer(ptr), C.int(n)), nil
}

func findStudioWindow() (uint32, types.WindowBounds, bool) {
	var (
		id         C.uint32_t
		x, y, w, h C.int
	)
	if !bool(C.findStudioWindow(&id, &x, &y, &w, &h)) {
		return 0, types.WindowBounds{}, false
	}
	return uint32(id), types.WindowBounds{X: int(x), Y: int(y), Width: int(w), Height: int(h)}, true
}
