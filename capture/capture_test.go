package capture

import (
	"context"
	"errors"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"go.detai.dev/companion/internal/types"
	"go.detai.dev/companion/permission"
)

// fakeProvider records which provider calls were made.
type fakeProvider struct {
	granted   bool
	windowID  int64
	hasWindow bool
	data      []byte
	err       error

	lookups  int
	captures int
}

func (f *fakeProvider) HasPermission() bool { return f.granted }
func (f *fakeProvider) RequestPermission()  {}

func (f *fakeProvider) StudioWindowID() (int64, bool) {
	f.lookups++
	return f.windowID, f.hasWindow
}

func (f *fakeProvider) StudioWindowBounds() (types.WindowBounds, bool) {
	f.lookups++
	return types.WindowBounds{}, f.hasWindow
}

func (f *fakeProvider) CaptureStudioWindow() ([]byte, error) {
	f.captures++
	return f.data, f.err
}

func newCapturer(p *fakeProvider) *Capturer {
	gate := permission.NewGate(map[types.Capability]permission.Checker{
		types.CapabilityScreenCapture: p,
	})
	return NewCapturer(p, gate)
}

func TestCaptureViewport(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G'}

	tests := []struct {
		name     string
		provider *fakeProvider
		want     []byte
		wantErr  error
	}{
		{
			name:     "permission denied",
			provider: &fakeProvider{hasWindow: true, data: png},
			wantErr:  ErrPermissionDenied,
		},
		{
			name:     "studio not running",
			provider: &fakeProvider{granted: true},
			wantErr:  ErrWindowNotFound,
		},
		{
			name:     "empty image",
			provider: &fakeProvider{granted: true, hasWindow: true, windowID: 7},
			wantErr:  ErrCaptureFailed,
		},
		{
			name:     "provider error",
			provider: &fakeProvider{granted: true, hasWindow: true, windowID: 7, err: errors.New("boom")},
			wantErr:  ErrCaptureFailed,
		},
		{
			name:     "window vanished during capture",
			provider: &fakeProvider{granted: true, hasWindow: true, windowID: 7, err: ErrWindowNotFound},
			wantErr:  ErrWindowNotFound,
		},
		{
			name:     "success",
			provider: &fakeProvider{granted: true, hasWindow: true, windowID: 7, data: png},
			want:     png,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := newCapturer(tt.provider).CaptureViewport(t.Context())
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCaptureWithoutPermissionNeverTouchesProvider(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		p := &fakeProvider{
			hasWindow: rapid.Bool().Draw(t, "hasWindow"),
			windowID:  rapid.Int64().Draw(t, "windowID"),
			data:      rapid.SliceOf(rapid.Byte()).Draw(t, "data"),
		}
		c := newCapturer(p)

		calls := rapid.IntRange(1, 5).Draw(t, "calls")
		for range calls {
			_, err := c.CaptureViewport(context.Background())
			if !errors.Is(err, ErrPermissionDenied) {
				t.Fatalf("got %v, want ErrPermissionDenied", err)
			}
		}
		if p.lookups != 0 || p.captures != 0 {
			t.Fatalf("provider used without permission: lookups=%d captures=%d", p.lookups, p.captures)
		}
	})
}

func TestNativeProvider(t *testing.T) {
	p := NewNative()
	if runtime.GOOS == "darwin" {
		t.Skip("native capture depends on the host session")
	}

	assert.False(t, p.HasPermission())
	_, ok := p.StudioWindowID()
	assert.False(t, ok)
	_, err := p.CaptureStudioWindow()
	assert.ErrorIs(t, err, ErrWindowNotFound)
}
