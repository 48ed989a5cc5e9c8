package stats

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vircadia/assetd/internal/session"
)

type fakeSource struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeSource) ConnectionCounters() map[session.SenderID]Counters {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return map[session.SenderID]Counters{
		"alice": {BytesSent: 10, BytesReceived: 20, PacketsSent: 1, PacketsReceived: 2},
	}
}

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestSamplerRunSamplesPeriodically(t *testing.T) {
	source := &fakeSource{}
	sampler := NewSampler(source, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 55*time.Millisecond)
	defer cancel()

	sampler.Run(ctx)

	require.GreaterOrEqual(t, source.callCount(), 2)
}

func TestSamplerStopsOnContextCancel(t *testing.T) {
	source := &fakeSource{}
	sampler := NewSampler(source, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sampler.Run(ctx)
	require.Equal(t, 0, source.callCount(), "no samples should be taken after immediate cancellation")
}
