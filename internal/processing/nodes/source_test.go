package nodes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sctg-development/photoacoustic-go/internal/processing"
)

func TestSourceAcquisitionClipsOutOfRangeSamples(t *testing.T) {
	node, err := NewSourceAcquisition("mic", nil)
	require.NoError(t, err)

	frame := processing.AudioFrame{
		ChannelA:   []float32{2.0, -2.0, 0.5},
		ChannelB:   []float32{1.5, -1.5, -0.25},
		SampleRate: 48000,
	}

	out, err := node.Process(frame)
	require.NoError(t, err)
	clipped := out.(processing.AudioFrame)
	assert.Equal(t, float32(1.0), clipped.ChannelA[0])
	assert.Equal(t, float32(-1.0), clipped.ChannelA[1])
	assert.Equal(t, float32(0.5), clipped.ChannelA[2])
	assert.Equal(t, float32(1.0), clipped.ChannelB[0])
	assert.Equal(t, float32(-1.0), clipped.ChannelB[1])
}

func TestSourceAcquisitionAcceptsOnlyAudioFrame(t *testing.T) {
	node, err := NewSourceAcquisition("mic", nil)
	require.NoError(t, err)

	assert.True(t, node.AcceptsKind(processing.KindAudioFrame))
	assert.False(t, node.AcceptsKind(processing.KindSingleChannel))

	_, ok := node.OutputKindFor(processing.KindSingleChannel)
	assert.False(t, ok)
}
