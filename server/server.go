// Package server exposes capture and speech to the Studio plugin over a
// local HTTP API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"go.detai.dev/companion/capture"
	"go.detai.dev/companion/internal/types"
	"go.detai.dev/companion/permission"
	"go.detai.dev/companion/speech"
	"go.detai.dev/companion/telemetry"
)

// ShutdownTimeout bounds graceful shutdown once the context is cancelled.
const ShutdownTimeout = 5 * time.Second

// defaultHistoryLimit is used when /speech/history has no limit.
const defaultHistoryLimit = 20

// Messages returned to the plugin.
const (
	msgCaptureGranted   = "Screen capture permission granted"
	msgCaptureRequested = "Permission requested. Please grant access in System Settings > Privacy > Screen Recording"
	msgCaptureDenied    = "Screen capture permission not granted. Visit /permission to request."
	msgCaptureFailed    = "Failed to capture Roblox Studio. Is it running?"
	msgSpeechDenied     = "Speech permission not granted. Please grant in System Settings > Privacy > Speech Recognition"
	msgListenStarted    = "Started listening"
	msgListenFailed     = "Failed to start speech recognition"
	msgListenStopped    = "Stopped listening"
	msgSpeaking         = "Speaking"
	msgSpeakFailed      = "Failed to speak"
	msgSpeakingStopped  = "Stopped speaking"
)

// HistoryReader lists recent transcripts.
type HistoryReader interface {
	Recent(limit int) ([]types.TranscriptRecord, error)
}

// Options configures a Server.
type Options struct {
	Version  string
	Gate     *permission.Gate
	Capturer *capture.Capturer
	Speech   *speech.Service

	// History is optional.
	History HistoryReader
	// Metrics is optional.
	Metrics *telemetry.Metrics
}

// Server is the command surface. Handlers keep no per-request state.
type Server struct {
	e       *echo.Echo
	version string
	gate    *permission.Gate
	capture *capture.Capturer
	speech  *speech.Service
	history HistoryReader
	metrics *telemetry.Metrics
}

// New builds the router.
func New(opts Options) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.RequestLogger())

	s := &Server{
		e:       e,
		version: opts.Version,
		gate:    opts.Gate,
		capture: opts.Capturer,
		speech:  opts.Speech,
		history: opts.History,
		metrics: opts.Metrics,
	}
	e.Use(s.countRequests)

	e.GET("/health", s.health)
	e.GET("/permission", s.permission)
	e.GET("/capture", s.captureViewport)

	speechGroup := e.Group("/speech")
	speechGroup.GET("/status", s.speechStatus)
	speechGroup.POST("/listen", s.startListening)
	speechGroup.POST("/stop", s.stopListening)
	speechGroup.GET("/transcription", s.transcription)
	speechGroup.POST("/speak", s.speak)
	speechGroup.POST("/silence", s.silence)
	speechGroup.GET("/history", s.transcriptHistory)

	e.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))

	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.e
}

// ListenAndServe binds addr and serves until ctx is done. Bind errors are
// returned before anything is served.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	slog.Info("http server listening", "addr", ln.Addr().String())
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.e,
		ReadHeaderTimeout: 10 * time.Second,
	}

	stopped := make(chan struct{})
	defer close(stopped)
	go func() {
		select {
		case <-ctx.Done():
		case <-stopped:
			return
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("http server shutdown", "error", err)
		}
	}()

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("http server", "error", err)
		return err
	}
	return nil
}

// countRequests records one metric per response.
func (s *Server) countRequests(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		err := next(c)
		if err != nil {
			c.Error(err)
		}
		route := c.Path()
		if route == "" {
			route = "unmatched"
		}
		s.metrics.RecordRequest(c.Request().Context(), route, c.Response().Status)
		return nil
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Health & Capture
// ─────────────────────────────────────────────────────────────────────────────

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, types.HealthResponse{
		Status:               "ok",
		Version:              s.version,
		HasCapturePermission: s.gate.Has(types.CapabilityScreenCapture),
		HasSpeechPermission:  s.gate.Has(types.CapabilitySpeech),
	})
}

func (s *Server) permission(c echo.Context) error {
	if s.gate.Has(types.CapabilityScreenCapture) {
		return c.JSON(http.StatusOK, types.PermissionResponse{Granted: true, Message: msgCaptureGranted})
	}

	if _, err := s.gate.Request(types.CapabilityScreenCapture); err != nil {
		slog.Error("request screen capture permission", "error", err)
	}
	return c.JSON(http.StatusOK, types.PermissionResponse{Granted: false, Message: msgCaptureRequested})
}

func (s *Server) captureViewport(c echo.Context) error {
	// Options are logged and not applied.
	if q := parseCaptureQuery(c); q.Width != nil {
		slog.Debug("capture options", "width", *q.Width, "format", q.Format)
	} else if q.Format != "" {
		slog.Debug("capture options", "format", q.Format)
	}

	ctx := c.Request().Context()
	data, err := s.capture.CaptureViewport(ctx)
	switch {
	case err == nil:
		s.metrics.RecordCapture(ctx, "ok")
		return c.Blob(http.StatusOK, "image/png", data)
	case errors.Is(err, capture.ErrPermissionDenied):
		s.metrics.RecordCapture(ctx, "permission_denied")
		return c.JSON(http.StatusForbidden, types.CaptureError{
			Error: msgCaptureDenied,
			Code:  types.CodePermissionDenied,
		})
	default:
		result := "failed"
		if errors.Is(err, capture.ErrWindowNotFound) {
			result = "not_found"
		}
		s.metrics.RecordCapture(ctx, result)
		slog.Warn("capture viewport", "error", err)
		return c.JSON(http.StatusServiceUnavailable, types.CaptureError{
			Error: msgCaptureFailed,
			Code:  types.CodeCaptureFailed,
		})
	}
}

// parseCaptureQuery reads the optional capture parameters. A malformed width
// is ignored rather than rejected.
func parseCaptureQuery(c echo.Context) types.CaptureQuery {
	q := types.CaptureQuery{Format: c.QueryParam("format")}
	if v := c.QueryParam("width"); v != "" {
		if w, err := strconv.ParseUint(v, 10, 32); err == nil {
			width := uint32(w)
			q.Width = &width
		}
	}
	return q
}

// ─────────────────────────────────────────────────────────────────────────────
// Speech
// ─────────────────────────────────────────────────────────────────────────────

func (s *Server) speechStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, types.SpeechStatus{
		Listening:     s.speech.IsListening(),
		Speaking:      s.speech.IsSpeaking(),
		HasPermission: s.gate.Has(types.CapabilitySpeech),
	})
}

func (s *Server) startListening(c echo.Context) error {
	ctx := c.Request().Context()
	err := s.speech.StartListening()
	switch {
	case err == nil:
		s.metrics.RecordSpeech(ctx, "listen", "ok")
		return c.JSON(http.StatusOK, types.GenericResponse{Success: true, Message: msgListenStarted})
	case errors.Is(err, speech.ErrPermissionDenied):
		s.metrics.RecordSpeech(ctx, "listen", "permission_denied")
		return c.JSON(http.StatusOK, types.GenericResponse{Success: false, Message: msgSpeechDenied})
	default:
		s.metrics.RecordSpeech(ctx, "listen", "failed")
		slog.Warn("start listening", "error", err)
		return c.JSON(http.StatusOK, types.GenericResponse{Success: false, Message: msgListenFailed})
	}
}

func (s *Server) stopListening(c echo.Context) error {
	s.speech.StopListening()
	s.metrics.RecordSpeech(c.Request().Context(), "stop", "ok")
	return c.JSON(http.StatusOK, types.GenericResponse{Success: true, Message: msgListenStopped})
}

func (s *Server) transcription(c echo.Context) error {
	resp := types.TranscriptionResponse{Listening: s.speech.IsListening()}
	if text, ok := s.speech.Transcription(); ok {
		resp.Text = &text
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) speak(c echo.Context) error {
	var req types.SpeakRequest
	if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
	}

	ctx := c.Request().Context()
	if err := s.speech.Speak(req.Text); err != nil {
		s.metrics.RecordSpeech(ctx, "speak", "failed")
		slog.Warn("speak", "error", err)
		return c.JSON(http.StatusOK, types.GenericResponse{Success: false, Message: msgSpeakFailed})
	}
	s.metrics.RecordSpeech(ctx, "speak", "ok")
	return c.JSON(http.StatusOK, types.GenericResponse{Success: true, Message: msgSpeaking})
}

func (s *Server) silence(c echo.Context) error {
	s.speech.StopSpeaking()
	s.metrics.RecordSpeech(c.Request().Context(), "silence", "ok")
	return c.JSON(http.StatusOK, types.GenericResponse{Success: true, Message: msgSpeakingStopped})
}

func (s *Server) transcriptHistory(c echo.Context) error {
	limit := defaultHistoryLimit
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = n
	}

	if s.history == nil {
		return c.JSON(http.StatusOK, types.HistoryResponse{Transcripts: []types.TranscriptRecord{}})
	}

	recs, err := s.history.Recent(limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("failed to read history: %v", err))
	}
	return c.JSON(http.StatusOK, types.HistoryResponse{Transcripts: recs})
}
