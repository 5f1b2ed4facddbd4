//go:build darwin

package speech

/*
#cgo CFLAGS: -x objective-c -fobjc-arc -mmacosx-version-min=10.15
#cgo LDFLAGS: -framework Speech -framework Foundation -framework AVFoundation

#include <stdbool.h>
#include <stdlib.h>

// Implemented in speech_darwin.m.
extern bool speechHasPermission(void);
extern void speechRequestPermission(void);
extern bool speechStartListening(const char* locale);
extern void speechStopListening(void);
extern bool speechIsListening(void);
extern char* speechCopyTranscription(void);
extern bool speechSpeak(const char* text, const char* locale);
extern void speechStopSpeaking(void);
extern bool speechIsSpeaking(void);
*/
import "C"

import "unsafe"

// native wraps SFSpeechRecognizer and AVSpeechSynthesizer.
// The Objective-C side serialises access to its own state.
type native struct{}

// NewNative returns the macOS speech provider.
func NewNative() Provider {
	return native{}
}

func (native) HasPermission() bool {
	return bool(C.speechHasPermission())
}

func (native) RequestPermission() {
	C.speechRequestPermission()
}

func (native) StartListening(locale string) bool {
	cLocale := C.CString(locale)
	defer C.free(unsafe.Pointer(cLocale))
	return bool(C.speechStartListening(cLocale))
}

func (native) StopListening() {
	C.speechStopListening()
}

func (native) IsListening() bool {
	return bool(C.speechIsListening())
}

func (native) Transcription() (string, bool) {
	cText := C.speechCopyTranscription()
	if cText == nil {
		return "", false
	}
	defer C.free(unsafe.Pointer(cText))
	return C.GoString(cText), true
}

func (native) Speak(text, locale string) bool {
	cText := C.CString(text)
	defer C.free(unsafe.Pointer(cText))
	cLocale := C.CString(locale)
	defer C.free(unsafe.Pointer(cLocale))
	return bool(C.speechSpeak(cText, cLocale))
}

func (native) StopSpeaking() {
	C.speechStopSpeaking()
}

func (native) IsSpeaking() bool {
	return bool(C.speechIsSpeaking())
}
