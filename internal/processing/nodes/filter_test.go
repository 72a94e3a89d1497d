package nodes

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sctg-development/photoacoustic-go/internal/dsp"
	"github.com/sctg-development/photoacoustic-go/internal/processing"
)

func sineF32Node(freqHz float64, sampleRate, n int) []float32 {
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		out[i] = float32(math.Sin(2 * math.Pi * freqHz * float64(i) / float64(sampleRate)))
	}
	return out
}

func TestFilterNodeDesignsLazilyFromFirstFrame(t *testing.T) {
	node, err := NewFilter("bp", map[string]any{
		"kind": string(dsp.FamilyButterworth), "shape": string(dsp.ShapeBandpass),
		"low": 300.0, "high": 3000.0, "order": 4.0,
	})
	require.NoError(t, err)

	frame := processing.DualChannel{
		ChannelA:   sineF32Node(1500, 48000, 4096),
		ChannelB:   sineF32Node(1500, 48000, 4096),
		SampleRate: 48000,
	}

	out, err := node.Process(frame)
	require.NoError(t, err)
	filtered := out.(processing.DualChannel)
	assert.Len(t, filtered.ChannelA, len(frame.ChannelA))
}

func TestFilterNodeRejectsUnsupportedKind(t *testing.T) {
	node, err := NewFilter("lp", map[string]any{"cutoff": 1000.0})
	require.NoError(t, err)
	assert.False(t, node.AcceptsKind(processing.KindPhotoacousticResult))
}

func TestFilterNodeUpdateConfigRedesignsAfterFirstFrame(t *testing.T) {
	node, err := NewFilter("lp", map[string]any{"cutoff": 1000.0, "order": 2.0})
	require.NoError(t, err)

	frame := processing.SingleChannel{Samples: sineF32Node(500, 48000, 2048), SampleRate: 48000}
	_, err = node.Process(frame)
	require.NoError(t, err)

	changed, err := node.UpdateConfig(map[string]any{"cutoff": 2000.0, "order": 2.0})
	require.NoError(t, err)
	assert.True(t, changed)

	sameAgain, err := node.UpdateConfig(map[string]any{"cutoff": 2000.0, "order": 2.0})
	require.NoError(t, err)
	assert.False(t, sameAgain)
}

func TestFilterNodeResetClearsStreamingState(t *testing.T) {
	node, err := NewFilter("lp", map[string]any{"cutoff": 1000.0, "order": 2.0})
	require.NoError(t, err)

	frame := processing.SingleChannel{Samples: sineF32Node(500, 48000, 2048), SampleRate: 48000}
	_, err = node.Process(frame)
	require.NoError(t, err)

	node.(*Filter).Reset()
}
