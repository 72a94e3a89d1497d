package acquisition

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFanOutDeliversToAllSubscribers(t *testing.T) {
	src := NewGeneratorSource("gen1", GeneratorConfig{SampleRate: 48000, FrameSize: 128})
	require.NoError(t, src.Start(context.Background()))
	defer src.Stop()

	fo := NewFanOut(src, 8)
	defer fo.Stop()

	a := fo.Subscribe("a")
	b := fo.Subscribe("b")

	select {
	case <-a:
	case <-time.After(2 * time.Second):
		t.Fatal("consumer a got no frame")
	}
	select {
	case <-b:
	case <-time.After(2 * time.Second):
		t.Fatal("consumer b got no frame")
	}
}

func TestFanOutDropsOldestWhenConsumerQueueFull(t *testing.T) {
	src := NewGeneratorSource("gen1", GeneratorConfig{SampleRate: 48000, FrameSize: 64})
	require.NoError(t, src.Start(context.Background()))
	defer src.Stop()

	fo := NewFanOut(src, 1) // depth 1: first backpressure hits immediately
	defer fo.Stop()

	slow := fo.Subscribe("slow")
	_ = slow // never drained, forcing drops

	time.Sleep(200 * time.Millisecond)
	assert.Greater(t, fo.DroppedFrames("slow"), uint64(0))
}

func TestFanOutUnsubscribeClosesChannel(t *testing.T) {
	src := NewGeneratorSource("gen1", GeneratorConfig{})
	require.NoError(t, src.Start(context.Background()))
	defer src.Stop()

	fo := NewFanOut(src, 4)
	defer fo.Stop()

	ch := fo.Subscribe("x")
	fo.Unsubscribe("x")

	_, ok := <-ch
	assert.False(t, ok)
}
