package nodes

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sctg-development/photoacoustic-go/internal/computing"
	"github.com/sctg-development/photoacoustic-go/internal/processing"
)

func sineF32(freqHz float64, amp float64, sampleRate, n int) []float32 {
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		out[i] = float32(amp * math.Sin(2*math.Pi*freqHz*float64(i)/float64(sampleRate)))
	}
	return out
}

func TestPeakFinderWritesPeakToBusOnceWindowFills(t *testing.T) {
	bus := computing.NewBus()
	factory := NewPeakFinderFactory(bus)
	node, err := factory("pf1", map[string]any{
		"window_size": 1024.0, "band": []any{1000.0, 3000.0}, "floor": 0.01,
	})
	require.NoError(t, err)

	frame := processing.DualChannel{
		ChannelA:   sineF32(2000, 0.5, 48000, 1024),
		ChannelB:   sineF32(2000, 0.5, 48000, 1024),
		SampleRate: 48000,
	}

	out, err := node.Process(frame)
	require.NoError(t, err)
	assert.Equal(t, frame, out) // pass-through law (spec §8 property 3)

	peak, ok := bus.Peak("pf1")
	require.True(t, ok)
	assert.InDelta(t, 2000, peak.FrequencyHz, 60)
	assert.Greater(t, peak.Amplitude, 0.01)
}

func TestPeakFinderSkipsBelowFloor(t *testing.T) {
	bus := computing.NewBus()
	factory := NewPeakFinderFactory(bus)
	node, err := factory("pf1", map[string]any{
		"window_size": 1024.0, "band": []any{1000.0, 3000.0}, "floor": 10.0,
	})
	require.NoError(t, err)

	frame := processing.DualChannel{
		ChannelA:   sineF32(2000, 0.01, 48000, 1024),
		ChannelB:   sineF32(2000, 0.01, 48000, 1024),
		SampleRate: 48000,
	}
	_, err = node.Process(frame)
	require.NoError(t, err)

	_, ok := bus.Peak("pf1")
	assert.False(t, ok)
}

func TestPeakFinderAccumulatesAcrossShortFrames(t *testing.T) {
	bus := computing.NewBus()
	factory := NewPeakFinderFactory(bus)
	node, err := factory("pf1", map[string]any{"window_size": 2048.0, "floor": 0.001})
	require.NoError(t, err)

	small := processing.SingleChannel{Samples: sineF32(1000, 0.3, 48000, 512), SampleRate: 48000}
	for i := 0; i < 3; i++ {
		_, err := node.Process(small)
		require.NoError(t, err)
		_, ok := bus.Peak("pf1")
		assert.False(t, ok, "should not have a full window yet")
	}

	_, err = node.Process(small)
	require.NoError(t, err)
	_, ok := bus.Peak("pf1")
	assert.True(t, ok)
}

func TestPeakFinderResetClearsPending(t *testing.T) {
	bus := computing.NewBus()
	factory := NewPeakFinderFactory(bus)
	node, err := factory("pf1", map[string]any{"window_size": 2048.0})
	require.NoError(t, err)

	pf := node.(*PeakFinder)
	_, err = pf.Process(processing.SingleChannel{Samples: sineF32(1000, 0.3, 48000, 512), SampleRate: 48000})
	require.NoError(t, err)
	pf.Reset()
	assert.Empty(t, pf.pending)
}

func TestBusLatestPeakReturnsMostRecentlyTimestampedEntry(t *testing.T) {
	bus := computing.NewBus()
	bus.WritePeak("a", computing.PeakResult{Timestamp: time.Now().Add(-time.Minute)})
	bus.WritePeak("b", computing.PeakResult{Timestamp: time.Now()})

	id, _, ok := bus.LatestPeak()
	require.True(t, ok)
	assert.Equal(t, "b", id)
}
