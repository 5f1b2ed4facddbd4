// Package types provides shared type definitions for the application.
package types

import "time"

// Capability identifies an OS-level permission the companion depends on.
type Capability string

const (
	CapabilityScreenCapture Capability = "screen-capture"
	CapabilitySpeech        Capability = "speech"
)

// PermissionState is the last known OS grant for a capability.
type PermissionState int

const (
	PermissionUnknown PermissionState = iota
	PermissionDenied
	PermissionGranted
)

func (s PermissionState) String() string {
	switch s {
	case PermissionDenied:
		return "denied"
	case PermissionGranted:
		return "granted"
	default:
		return "unknown"
	}
}

// ListeningState is the speech recognition session state.
type ListeningState int

const (
	Idle ListeningState = iota
	Listening
)

func (s ListeningState) String() string {
	if s == Listening {
		return "listening"
	}
	return "idle"
}

// WindowBounds is a snapshot of a window frame in screen points.
type WindowBounds struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// InstallOutcome describes what Install did to the plugin file.
type InstallOutcome int

const (
	// Installed means the plugin file was created or overwritten.
	Installed InstallOutcome = iota + 1
	// AlreadyCurrent means the file on disk already matched the bundle.
	AlreadyCurrent
)

func (o InstallOutcome) String() string {
	switch o {
	case Installed:
		return "installed"
	case AlreadyCurrent:
		return "already-current"
	default:
		return "unknown"
	}
}

// InstallResult is returned by a successful plugin install.
type InstallResult struct {
	Outcome InstallOutcome `json:"outcome"`
	Path    string         `json:"path"`
}

// ─────────────────────────────────────────────────────────────────────────────
// HTTP API Types
// ─────────────────────────────────────────────────────────────────────────────

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status               string `json:"status"`
	Version              string `json:"version"`
	HasCapturePermission bool   `json:"has_capture_permission"`
	HasSpeechPermission  bool   `json:"has_speech_permission"`
}

// PermissionResponse is returned by GET /permission.
type PermissionResponse struct {
	Granted bool   `json:"granted"`
	Message string `json:"message"`
}

// CaptureError is the JSON body of a failed GET /capture.
type CaptureError struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// Capture error codes.
const (
	CodePermissionDenied = "PERMISSION_DENIED"
	CodeCaptureFailed    = "CAPTURE_FAILED"
)

// CaptureQuery holds the optional /capture query parameters.
// Neither is applied to the image yet.
type CaptureQuery struct {
	Width  *uint32 `query:"width"`
	Format string  `query:"format"`
}

// SpeechStatus is returned by GET /speech/status.
type SpeechStatus struct {
	Listening     bool `json:"listening"`
	Speaking      bool `json:"speaking"`
	HasPermission bool `json:"has_permission"`
}

// TranscriptionResponse is returned by GET /speech/transcription.
// Text is null when nothing has been recognized.
type TranscriptionResponse struct {
	Text      *string `json:"text"`
	Listening bool    `json:"listening"`
}

// SpeakRequest is the body of POST /speech/speak.
type SpeakRequest struct {
	Text string `json:"text"`
}

// GenericResponse is the body of the speech command endpoints.
type GenericResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// TranscriptRecord is one finished listening session.
type TranscriptRecord struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
}

// HistoryResponse is returned by GET /speech/history.
type HistoryResponse struct {
	Transcripts []TranscriptRecord `json:"transcripts"`
}

// AppStatus is reported to the desktop window.
type AppStatus struct {
	Version         string `json:"version"`
	Addr            string `json:"addr"`
	PluginPath      string `json:"pluginPath"`
	PluginInstalled bool   `json:"pluginInstalled"`
	SnapEnabled     bool   `json:"snapEnabled"`
}
