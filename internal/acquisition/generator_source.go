package acquisition

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sctg-development/photoacoustic-go/internal/processing"
)

// GeneratorConfig configures a deterministic synthetic source, used for
// calibration and for exercising the processing graph without hardware.
type GeneratorConfig struct {
	SampleRate  int
	FrameSize   int
	FrequencyHz float64 // 0 = silence
	Amplitude   float64
	QueueDepth  int
}

// GeneratorSource emits a deterministic sine (or silence) signal on both
// channels at a fixed cadence. When its bounded output channel is full, it
// drops the oldest queued frame to make room for the new one.
type GeneratorSource struct {
	id      string
	config  GeneratorConfig
	out     chan processing.AudioFrame
	errCh   chan error
	running atomic.Bool
	frameNo atomic.Uint64

	mu     sync.Mutex
	cancel context.CancelFunc
}

func NewGeneratorSource(id string, config GeneratorConfig) *GeneratorSource {
	if config.SampleRate <= 0 {
		config.SampleRate = 48000
	}
	if config.FrameSize <= 0 {
		config.FrameSize = 1024
	}
	if config.Amplitude == 0 {
		config.Amplitude = 1.0
	}
	if config.QueueDepth <= 0 {
		config.QueueDepth = 32
	}
	return &GeneratorSource{
		id:     id,
		config: config,
		out:    make(chan processing.AudioFrame, config.QueueDepth),
		errCh:  make(chan error, 1),
	}
}

func (s *GeneratorSource) ID() string      { return s.id }
func (s *GeneratorSource) SampleRate() int { return s.config.SampleRate }
func (s *GeneratorSource) IsActive() bool  { return s.running.Load() }

func (s *GeneratorSource) AudioOutput() <-chan processing.AudioFrame { return s.out }
func (s *GeneratorSource) Errors() <-chan error                      { return s.errCh }

func (s *GeneratorSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running.Load() {
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running.Store(true)

	frameDuration := time.Duration(float64(s.config.FrameSize) / float64(s.config.SampleRate) * float64(time.Second))
	go s.run(runCtx, frameDuration)
	return nil
}

func (s *GeneratorSource) run(ctx context.Context, frameDuration time.Duration) {
	ticker := time.NewTicker(frameDuration)
	defer ticker.Stop()

	var phase float64
	step := 2 * math.Pi * s.config.FrequencyHz / float64(s.config.SampleRate)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a := make([]float32, s.config.FrameSize)
			b := make([]float32, s.config.FrameSize)
			for i := range a {
				v := float32(s.config.Amplitude * math.Sin(phase))
				a[i], b[i] = v, v
				phase += step
			}
			frame := processing.AudioFrame{
				ChannelA:    a,
				ChannelB:    b,
				SampleRate:  s.config.SampleRate,
				FrameNumber: s.frameNo.Add(1),
			}
			select {
			case s.out <- frame:
			default:
				// queue full: evict the oldest queued frame, then enqueue
				select {
				case <-s.out:
				default:
				}
				select {
				case s.out <- frame:
				default:
				}
			}
		}
	}
}

func (s *GeneratorSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running.Load() {
		return nil
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.running.Store(false)
	return nil
}
