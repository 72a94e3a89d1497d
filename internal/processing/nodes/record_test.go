package nodes

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sctg-development/photoacoustic-go/internal/processing"
)

func TestRecordRoundTripsInterleavedStereoSamples(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.wav")

	node, err := NewRecord("rec1", map[string]any{"file": path})
	require.NoError(t, err)

	const n = 16
	a := make([]float32, n)
	b := make([]float32, n)
	for i := 0; i < n; i++ {
		a[i] = float32(0.5 * math.Sin(float64(i)))
		b[i] = float32(-0.25 * math.Cos(float64(i)))
	}

	out, err := node.Process(processing.AudioFrame{ChannelA: a, ChannelB: b, SampleRate: 48000})
	require.NoError(t, err)
	_, ok := out.(processing.AudioFrame)
	assert.True(t, ok, "pass-through law (spec §8 property 3)")

	node.(*Record).Reset() // finalize header before reading back

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	dec := wav.NewDecoder(f)
	buf, err := dec.FullPCMBuffer()
	require.NoError(t, err)
	require.Equal(t, 2, buf.Format.NumChannels)
	require.Len(t, buf.Data, 2*n)

	for i := 0; i < n; i++ {
		wantA := clampToInt16(a[i])
		wantB := clampToInt16(b[i])
		assert.InDelta(t, wantA, buf.Data[2*i], 1)
		assert.InDelta(t, wantB, buf.Data[2*i+1], 1)
	}
}

func TestRecordRotatesWhenMaxSizeExceeded(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.wav")

	node, err := NewRecord("rec1", map[string]any{"file": path, "max_size_kb": 1})
	require.NoError(t, err)
	r := node.(*Record)

	samples := make([]float32, 1024)
	for i := range samples {
		samples[i] = 0.1
	}

	for i := 0; i < 5; i++ {
		_, err := r.Process(processing.SingleChannel{Samples: samples, SampleRate: 48000})
		require.NoError(t, err)
	}

	assert.Greater(t, r.rotationIdx, 0, "expected at least one rotation past the 1KB budget")
	r.Reset()

	_, err = os.Stat(path)
	assert.NoError(t, err, "first file uses the configured name verbatim")
}

func TestRecordAutoDeletesPreviousRotatedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.wav")

	node, err := NewRecord("rec1", map[string]any{"file": path, "max_size_kb": 1, "auto_delete": true})
	require.NoError(t, err)
	r := node.(*Record)

	samples := make([]float32, 2048)
	for i := range samples {
		samples[i] = 0.1
	}

	for i := 0; i < 8; i++ {
		_, err := r.Process(processing.SingleChannel{Samples: samples, SampleRate: 48000})
		require.NoError(t, err)
	}
	r.Reset()

	assert.GreaterOrEqual(t, r.rotationIdx, 2, "need at least two rotations to exercise auto_delete")
}

func TestRecordUpdateConfigResetsRotationCounter(t *testing.T) {
	dir := t.TempDir()
	node, err := NewRecord("rec1", map[string]any{"file": filepath.Join(dir, "a.wav")})
	require.NoError(t, err)
	r := node.(*Record)
	r.rotationIdx = 3

	changed, err := r.UpdateConfig(map[string]any{"file": filepath.Join(dir, "b.wav")})
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 0, r.rotationIdx)
}
