package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.detai.dev/companion/config"
	"go.detai.dev/companion/internal/types"
	"go.detai.dev/companion/plugin"
	"go.detai.dev/companion/snap"
)

var testPlugin = []byte("<roblox!test-plugin")

type fakeScreen struct {
	found  atomic.Bool
	bounds types.WindowBounds
}

func (f *fakeScreen) HasPermission() bool           { return false }
func (f *fakeScreen) RequestPermission()            {}
func (f *fakeScreen) StudioWindowID() (int64, bool) { return 1, f.found.Load() }

func (f *fakeScreen) StudioWindowBounds() (types.WindowBounds, bool) {
	return f.bounds, f.found.Load()
}

func (f *fakeScreen) CaptureStudioWindow() ([]byte, error) { return nil, errors.New("unused") }

type fakeVoice struct{}

func (fakeVoice) HasPermission() bool           { return false }
func (fakeVoice) RequestPermission()            {}
func (fakeVoice) StartListening(string) bool    { return false }
func (fakeVoice) StopListening()                {}
func (fakeVoice) IsListening() bool             { return false }
func (fakeVoice) Transcription() (string, bool) { return "", false }
func (fakeVoice) Speak(string, string) bool     { return false }
func (fakeVoice) StopSpeaking()                 {}
func (fakeVoice) IsSpeaking() bool              { return false }

// speakingVoice accepts every utterance and keeps the last voice used.
type speakingVoice struct {
	fakeVoice

	mu     sync.Mutex
	locale string
}

func (v *speakingVoice) Speak(_, locale string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.locale = locale
	return true
}

func (v *speakingVoice) lastLocale() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.locale
}

type recordingMover struct {
	moves atomic.Int32
	last  atomic.Value
}

func (m *recordingMover) Move(b types.WindowBounds) error {
	m.moves.Add(1)
	m.last.Store(b)
	return nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Server.Port = 0
	cfg.Plugin.Dir = filepath.Join(t.TempDir(), "Plugins")
	cfg.Plugin.Watch = false
	return cfg
}

func newTestCore(t *testing.T, cfg *config.Config, screen *fakeScreen) *Core {
	t.Helper()
	core, err := NewCore(CoreOptions{
		Edition:   Edition{Name: "DetAI", Plugin: testPlugin},
		Version:   "test",
		Config:    cfg,
		Providers: Providers{Screen: screen, Voice: fakeVoice{}},
		DataDir:   t.TempDir(),
	})
	require.NoError(t, err)
	t.Cleanup(core.Close)
	return core
}

func TestNewCoreRequiresDeps(t *testing.T) {
	_, err := NewCore(CoreOptions{})
	assert.Error(t, err)

	_, err = NewCore(CoreOptions{Config: config.Default()})
	assert.Error(t, err)
}

func TestCoreStartInstallsPluginAndServes(t *testing.T) {
	cfg := testConfig(t)
	core := newTestCore(t, cfg, &fakeScreen{})

	r := NewRunner(t.Context())
	require.NoError(t, core.Start(r, nil))
	defer r.Stop()

	got, err := os.ReadFile(filepath.Join(cfg.Plugin.Dir, "DetAI.rbxm"))
	require.NoError(t, err)
	assert.Equal(t, testPlugin, got)
	assert.True(t, core.Installer().IsInstalled())
}

func TestCoreStartBindFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	cfg := testConfig(t)
	cfg.Server.Port = ln.Addr().(*net.TCPAddr).Port
	core := newTestCore(t, cfg, &fakeScreen{})

	r := NewRunner(t.Context())
	defer r.Stop()
	err = core.Start(r, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), strconv.Itoa(cfg.Server.Port))

	// Install still ran before the bind.
	assert.True(t, core.Installer().IsInstalled())
}

func TestCoreServeHeadless(t *testing.T) {
	cfg := testConfig(t)
	core := newTestCore(t, cfg, &fakeScreen{})

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- core.Serve(ctx) }()

	require.Eventually(t, core.Installer().IsInstalled, 2*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("headless server did not stop")
	}
}

func TestCoreWithoutHistory(t *testing.T) {
	cfg := testConfig(t)
	cfg.History.Enabled = false
	core := newTestCore(t, cfg, &fakeScreen{})
	assert.Nil(t, core.history)
}

func TestServiceSnapToStudio(t *testing.T) {
	screen := &fakeScreen{bounds: types.WindowBounds{X: 0, Y: 25, Width: 1440, Height: 875}}
	core := newTestCore(t, testConfig(t), screen)

	s := New(core, "test", snap.Options{}, "")
	mover := &recordingMover{}
	s.loop = snap.NewLoop(&s.mode, screen, mover, snap.Options{})

	// Studio not running: the mode still turns on.
	_, err := s.SnapToStudio()
	require.ErrorIs(t, err, snap.ErrStudioNotFound)
	assert.True(t, s.GetSnapStatus())

	msg, err := s.SnapToStudio()
	require.NoError(t, err)
	assert.Equal(t, msgSnapDisabled, msg)
	assert.False(t, s.GetSnapStatus())

	screen.found.Store(true)
	msg, err = s.SnapToStudio()
	require.NoError(t, err)
	assert.Equal(t, msgSnapEnabled, msg)
	require.Equal(t, int32(1), mover.moves.Load())
	assert.Equal(t, types.WindowBounds{X: 1440, Y: 25, Width: 420, Height: 875}, mover.last.Load())
}

func TestServiceSnapWithoutWindow(t *testing.T) {
	screen := &fakeScreen{}
	screen.found.Store(true)
	s := New(newTestCore(t, testConfig(t), screen), "test", snap.Options{}, "")
	s.Init(nil, nil)

	_, err := s.SnapToStudio()
	assert.ErrorIs(t, err, errNoWindow)
}

func TestServicePluginLifecycle(t *testing.T) {
	core := newTestCore(t, testConfig(t), &fakeScreen{})
	s := New(core, "1.2.3", snap.Options{}, "")

	res, err := s.ReinstallPlugin()
	require.NoError(t, err)
	assert.Equal(t, types.Installed, res.Outcome)

	st := s.GetStatus()
	assert.Equal(t, "1.2.3", st.Version)
	assert.True(t, st.PluginInstalled)
	assert.Equal(t, core.Installer().Path(), st.PluginPath)
	assert.False(t, st.SnapEnabled)

	require.NoError(t, s.UninstallPlugin())
	assert.False(t, s.GetStatus().PluginInstalled)

	res, err = s.ReinstallPlugin()
	require.NoError(t, err)
	assert.Equal(t, types.Installed, res.Outcome)
	assert.Equal(t, "1.2.3", s.GetVersion())
}

func TestPluginStatus(t *testing.T) {
	st := pluginStatus("/p/DetAI.rbxm", types.InstallResult{Outcome: types.AlreadyCurrent}, nil)
	assert.Equal(t, PluginStatus{Path: "/p/DetAI.rbxm", Installed: true, Outcome: "already-current"}, st)

	st = pluginStatus("/p/DetAI.rbxm", types.InstallResult{}, plugin.ErrEmptyBundle)
	assert.False(t, st.Installed)
	assert.NotEmpty(t, st.Error)
}

func TestServiceUninstallSurvivesWatcher(t *testing.T) {
	cfg := testConfig(t)
	cfg.Plugin.Watch = true
	core := newTestCore(t, cfg, &fakeScreen{})
	s := New(core, "test", snap.Options{}, "")

	require.NoError(t, s.Start(t.Context()))
	defer s.runner.Stop()
	require.True(t, core.Installer().IsInstalled())

	// Let the watcher register the plugins dir.
	time.Sleep(200 * time.Millisecond)
	require.NoError(t, s.UninstallPlugin())

	time.Sleep(plugin.DefaultDebounce + 500*time.Millisecond)
	assert.NoFileExists(t, core.Installer().Path())
	assert.False(t, s.GetStatus().PluginInstalled)

	_, err := s.ReinstallPlugin()
	require.NoError(t, err)
	assert.True(t, s.GetStatus().PluginInstalled)
}

func TestCoreAutoVoiceSpeaksInDetectedLanguage(t *testing.T) {
	cfg := testConfig(t)
	cfg.Speech.AutoVoice = true
	voice := &speakingVoice{}

	core, err := NewCore(CoreOptions{
		Edition:   Edition{Name: "DetAI", Plugin: testPlugin},
		Version:   "test",
		Config:    cfg,
		Providers: Providers{Screen: &fakeScreen{}, Voice: voice},
		DataDir:   t.TempDir(),
	})
	require.NoError(t, err)
	t.Cleanup(core.Close)

	body := `{"text":"Hola, la pieza se ha anclado a la placa base correctamente."}`
	req := httptest.NewRequest(http.MethodPost, "/speech/speak", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	core.server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"message":"Speaking"}`, rec.Body.String())
	assert.True(t, strings.HasPrefix(voice.lastLocale(), "es-"), "voice %q", voice.lastLocale())
}
