package computing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWritePeakThenRead(t *testing.T) {
	b := NewBus()
	b.WritePeak("pf1", PeakResult{FrequencyHz: 2000, Amplitude: 0.5, Timestamp: time.Now()})

	r, ok := b.Peak("pf1")
	require.True(t, ok)
	assert.Equal(t, 2000.0, r.FrequencyHz)
	assert.Nil(t, r.ConcentrationPPM)
}

func TestAnnotatePeakConcentrationDoesNotDisturbOtherFields(t *testing.T) {
	b := NewBus()
	b.WritePeak("pf1", PeakResult{FrequencyHz: 2000, Amplitude: 0.4, Timestamp: time.Now()})

	ok := b.AnnotatePeakConcentration("pf1", 400)
	require.True(t, ok)

	r, _ := b.Peak("pf1")
	require.NotNil(t, r.ConcentrationPPM)
	assert.Equal(t, 400.0, *r.ConcentrationPPM)
	assert.Equal(t, 2000.0, r.FrequencyHz)
}

func TestAnnotatePeakConcentrationMissingNodeReturnsFalse(t *testing.T) {
	b := NewBus()
	assert.False(t, b.AnnotatePeakConcentration("missing", 1))
}

func TestLatestPeakPicksMostRecentTimestamp(t *testing.T) {
	b := NewBus()
	now := time.Now()
	b.WritePeak("old", PeakResult{FrequencyHz: 1000, Timestamp: now.Add(-time.Minute)})
	b.WritePeak("new", PeakResult{FrequencyHz: 2000, Timestamp: now})

	id, r, ok := b.LatestPeak()
	require.True(t, ok)
	assert.Equal(t, "new", id)
	assert.Equal(t, 2000.0, r.FrequencyHz)
}

func TestSnapshotIsIndependentCopy(t *testing.T) {
	b := NewBus()
	b.WritePeak("pf1", PeakResult{FrequencyHz: 1000})

	snap := b.Snapshot()
	b.WritePeak("pf1", PeakResult{FrequencyHz: 9999})

	assert.Equal(t, 1000.0, snap.Peaks["pf1"].FrequencyHz)
}

func TestPeakResultIsStale(t *testing.T) {
	now := time.Now()
	r := PeakResult{Timestamp: now.Add(-45 * time.Second)}
	assert.True(t, r.IsStale(30*time.Second, now))
	assert.False(t, r.IsStale(60*time.Second, now))
}
