// Package speech provides on-device speech recognition and synthesis.
package speech

import (
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"go.detai.dev/companion/internal/types"
	"go.detai.dev/companion/permission"
)

var (
	// ErrPermissionDenied is returned when speech recognition is not granted.
	ErrPermissionDenied = errors.New("speech: recognition permission not granted")
	// ErrStartFailed is returned when the recognizer refused to start.
	ErrStartFailed = errors.New("speech: failed to start recognition")
	// ErrEmptyText is returned when asked to speak nothing.
	ErrEmptyText = errors.New("speech: empty text")
	// ErrInvalidText is returned for text that cannot cross into native code.
	ErrInvalidText = errors.New("speech: text contains NUL or invalid UTF-8")
	// ErrSpeakFailed is returned when the synthesizer refused the utterance.
	ErrSpeakFailed = errors.New("speech: failed to speak")
)

// Provider is the platform speech backend. It owns the recognition session
// and the latest transcript.
type Provider interface {
	HasPermission() bool
	RequestPermission()

	// StartListening begins recognition for locale. Returns false if refused.
	// The previous transcript is discarded when a new session starts.
	StartListening(locale string) bool
	StopListening()
	IsListening() bool

	// Transcription returns the latest recognized text, if any.
	Transcription() (string, bool)

	// Speak interrupts any current utterance and speaks text.
	Speak(text, locale string) bool
	StopSpeaking()
	IsSpeaking() bool
}

// Recorder stores transcripts of finished sessions.
type Recorder interface {
	Append(rec types.TranscriptRecord) error
}

// Config configures a Service.
type Config struct {
	// Locale is the recognition locale and the fallback voice, e.g. "en-US".
	Locale string

	// Voices picks the synthesis voice from the text. Nil uses Locale.
	Voices *VoicePicker

	// Recorder receives finished transcripts. Optional.
	Recorder Recorder
}

// Service is the speech command surface.
//
// Listening is a two-state machine (Idle, Listening) driven by StartListening
// and StopListening. Speaking is independent of it.
type Service struct {
	provider Provider
	gate     *permission.Gate
	locale   string
	voices   *VoicePicker
	recorder Recorder
	now      func() time.Time

	mu        sync.Mutex
	sessionAt time.Time
	inSession bool
}

// NewService creates a Service. The gate must know CapabilitySpeech.
func NewService(p Provider, gate *permission.Gate, cfg Config) *Service {
	locale, err := CanonicalLocale(cfg.Locale)
	if err != nil {
		slog.Warn("invalid speech locale, using default", "locale", cfg.Locale, "error", err)
		locale = DefaultLocale
	}
	return &Service{
		provider: p,
		gate:     gate,
		locale:   locale,
		voices:   cfg.Voices,
		recorder: cfg.Recorder,
		now:      time.Now,
	}
}

// HasPermission reports the current speech recognition grant.
func (s *Service) HasPermission() bool {
	return s.gate.Has(types.CapabilitySpeech)
}

// State returns the current listening state as reported by the provider.
func (s *Service) State() types.ListeningState {
	if s.provider.IsListening() {
		return types.Listening
	}
	return types.Idle
}

// IsListening reports whether a recognition session is active.
func (s *Service) IsListening() bool {
	return s.provider.IsListening()
}

// StartListening moves Idle to Listening. Without permission it asks the OS
// and returns ErrPermissionDenied; the caller should retry after the grant.
func (s *Service) StartListening() error {
	if !s.gate.Has(types.CapabilitySpeech) {
		if _, err := s.gate.Request(types.CapabilitySpeech); err != nil {
			slog.Error("request speech permission", "error", err)
		}
		return ErrPermissionDenied
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.provider.IsListening() {
		return nil
	}

	slog.Info("starting speech recognition", "locale", s.locale)
	if !s.provider.StartListening(s.locale) {
		return ErrStartFailed
	}
	s.inSession = true
	s.sessionAt = s.now()
	return nil
}

// StopListening moves to Idle. It always succeeds and is idempotent.
func (s *Service) StopListening() {
	s.mu.Lock()
	defer s.mu.Unlock()

	slog.Info("stopping speech recognition")
	s.provider.StopListening()

	if !s.inSession {
		return
	}
	s.inSession = false

	text, ok := s.Transcription()
	if !ok || s.recorder == nil {
		return
	}
	rec := types.TranscriptRecord{
		Text:      text,
		StartedAt: s.sessionAt,
		EndedAt:   s.now(),
	}
	if err := s.recorder.Append(rec); err != nil {
		slog.Warn("record transcript", "error", err)
	}
}

// Transcription returns the latest transcript. An empty transcript is
// reported as absent.
func (s *Service) Transcription() (string, bool) {
	text, ok := s.provider.Transcription()
	if !ok || text == "" {
		return "", false
	}
	return text, true
}

// Speak speaks text aloud, interrupting any current utterance.
func (s *Service) Speak(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyText
	}
	if strings.ContainsRune(text, 0) || !utf8.ValidString(text) {
		return ErrInvalidText
	}

	text = norm.NFC.String(text)
	locale := s.locale
	if s.voices != nil {
		locale = s.voices.Pick(text)
	}

	slog.Info("speaking", "text", truncate(text, 50), "voice", locale)
	if !s.provider.Speak(text, locale) {
		return ErrSpeakFailed
	}
	return nil
}

// StopSpeaking silences the synthesizer.
func (s *Service) StopSpeaking() {
	s.provider.StopSpeaking()
}

// IsSpeaking reports whether an utterance is playing.
func (s *Service) IsSpeaking() bool {
	return s.provider.IsSpeaking()
}

// truncate shortens a string for logging purposes.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "..."
}
