package permission

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.detai.dev/companion/internal/types"
)

type fakeChecker struct {
	granted  atomic.Bool
	requests atomic.Int32
}

func (f *fakeChecker) HasPermission() bool { return f.granted.Load() }
func (f *fakeChecker) RequestPermission()  { f.requests.Add(1) }

func waitClosed(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("request channel was not closed")
	}
}

func TestGateHas(t *testing.T) {
	capture := &fakeChecker{}
	g := NewGate(map[types.Capability]Checker{types.CapabilityScreenCapture: capture})

	assert.False(t, g.Has(types.CapabilityScreenCapture))
	capture.granted.Store(true)
	assert.True(t, g.Has(types.CapabilityScreenCapture), "grant must be observed without caching")
	assert.False(t, g.Has(types.CapabilitySpeech), "unregistered capability is never granted")
}

func TestGateRequestOncePerUnresolved(t *testing.T) {
	speech := &fakeChecker{}
	g := NewGate(map[types.Capability]Checker{types.CapabilitySpeech: speech})

	ch, err := g.Request(types.CapabilitySpeech)
	require.NoError(t, err)
	waitClosed(t, ch)

	ch, err = g.Request(types.CapabilitySpeech)
	require.NoError(t, err)
	waitClosed(t, ch)

	assert.Equal(t, int32(1), speech.requests.Load())
	assert.Equal(t, types.PermissionDenied, g.State(types.CapabilitySpeech))

	speech.granted.Store(true)
	assert.Equal(t, types.PermissionGranted, g.State(types.CapabilitySpeech))
	assert.False(t, g.Pending(types.CapabilitySpeech))

	// A revoke after a grant allows a fresh prompt.
	speech.granted.Store(false)
	assert.Equal(t, types.PermissionUnknown, g.State(types.CapabilitySpeech))
	ch, err = g.Request(types.CapabilitySpeech)
	require.NoError(t, err)
	waitClosed(t, ch)
	assert.Equal(t, int32(2), speech.requests.Load())
}

func TestGateRequestConcurrent(t *testing.T) {
	capture := &fakeChecker{}
	g := NewGate(map[types.Capability]Checker{types.CapabilityScreenCapture: capture})

	var wg sync.WaitGroup
	for range 16 {
		wg.Go(func() {
			ch, err := g.Request(types.CapabilityScreenCapture)
			if err == nil {
				<-ch
			}
		})
	}
	wg.Wait()

	assert.Equal(t, int32(1), capture.requests.Load())
}

func TestGateUnknownCapability(t *testing.T) {
	g := NewGate(nil)

	_, err := g.Request(types.CapabilitySpeech)
	assert.ErrorIs(t, err, ErrUnknownCapability)
	assert.Equal(t, types.PermissionUnknown, g.State(types.CapabilitySpeech))
}
