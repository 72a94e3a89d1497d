package acquisition

import (
	"context"
	"encoding/binary"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"

	"github.com/sctg-development/photoacoustic-go/internal/errors"
	"github.com/sctg-development/photoacoustic-go/internal/logging"
	"github.com/sctg-development/photoacoustic-go/internal/processing"
)

// MicrophoneConfig configures a live differential-pair capture device.
type MicrophoneConfig struct {
	DeviceName string
	SampleRate uint32
	QueueDepth int
}

// MicrophoneSource captures a stereo differential microphone pair through
// malgo and emits AudioFrame values, one per device callback.
type MicrophoneSource struct {
	id     string
	config MicrophoneConfig
	logger *slog.Logger

	mu     sync.Mutex
	ctx    *malgo.AllocatedContext
	device *malgo.Device
	cancel context.CancelFunc

	outputCh chan processing.AudioFrame
	errCh    chan error
	running  atomic.Bool
	frameNo  atomic.Uint64
}

// NewMicrophoneSource constructs a capture source bound to the system's
// default capture device (or config.DeviceName, once device enumeration
// is wired up — the teacher's malgo source resolves names the same way).
func NewMicrophoneSource(id string, config MicrophoneConfig) *MicrophoneSource {
	if config.SampleRate == 0 {
		config.SampleRate = 48000
	}
	if config.QueueDepth <= 0 {
		config.QueueDepth = 32
	}
	return &MicrophoneSource{
		id:       id,
		config:   config,
		logger:   logging.ForComponent("acquisition"),
		outputCh: make(chan processing.AudioFrame, config.QueueDepth),
		errCh:    make(chan error, 8),
	}
}

func (s *MicrophoneSource) ID() string          { return s.id }
func (s *MicrophoneSource) SampleRate() int     { return int(s.config.SampleRate) }
func (s *MicrophoneSource) IsActive() bool      { return s.running.Load() }
func (s *MicrophoneSource) AudioOutput() <-chan processing.AudioFrame { return s.outputCh }
func (s *MicrophoneSource) Errors() <-chan error                      { return s.errCh }

// Start initializes the malgo context and device and begins capture
// (grounded on the teacher's internal/audiocore/sources/malgo.MalgoSource
// .Start — device init, callback wiring, device.Start()).
func (s *MicrophoneSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running.Load() {
		return errors.New(nil).Component("acquisition").Category(errors.CategoryAcquisition).
			Context("source_id", s.id).Context("error", "already running").Build()
	}

	malgoCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return errors.New(err).Component("acquisition").Category(errors.CategoryAcquisition).
			Context("source_id", s.id).Context("operation", "init_context").Build()
	}
	s.ctx = malgoCtx

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = 2
	deviceConfig.SampleRate = s.config.SampleRate
	deviceConfig.Alsa.NoMMap = 1

	captureCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	callbacks := malgo.DeviceCallbacks{Data: s.onData, Stop: s.onStop}
	device, err := malgo.InitDevice(s.ctx.Context, deviceConfig, callbacks)
	if err != nil {
		cancel()
		_ = malgoCtx.Uninit()
		return errors.New(err).Component("acquisition").Category(errors.CategoryAcquisition).
			Context("source_id", s.id).Context("operation", "init_device").Build()
	}
	s.device = device

	if err := device.Start(); err != nil {
		device.Uninit()
		cancel()
		_ = malgoCtx.Uninit()
		return errors.New(err).Component("acquisition").Category(errors.CategoryAcquisition).
			Context("source_id", s.id).Context("operation", "start_device").Build()
	}

	s.running.Store(true)
	go func() {
		<-captureCtx.Done()
		_ = s.Stop()
	}()

	return nil
}

// onData is the malgo device callback. It runs on malgo's audio thread —
// no allocation-heavy work beyond the unavoidable int16->float32 decode
// and frame struct, and a non-blocking send so a slow consumer can never
// stall the audio callback (spec.md §5 fan-out semantics apply here too).
func (s *MicrophoneSource) onData(out, in []byte, frameCount uint32) {
	n := int(frameCount)
	a := make([]float32, n)
	b := make([]float32, n)
	for i := 0; i < n; i++ {
		off := i * 4 // 2 channels * 2 bytes (S16)
		a[i] = s16ToFloat32(binary.LittleEndian.Uint16(in[off : off+2]))
		b[i] = s16ToFloat32(binary.LittleEndian.Uint16(in[off+2 : off+4]))
	}

	frame := processing.AudioFrame{
		ChannelA:    a,
		ChannelB:    b,
		SampleRate:  int(s.config.SampleRate),
		FrameNumber: s.frameNo.Add(1),
	}

	select {
	case s.outputCh <- frame:
	default:
		select {
		case s.errCh <- errors.New(nil).Component("acquisition").Category(errors.CategoryAcquisition).
			Context("source_id", s.id).Context("error", "output queue full, frame dropped").Build():
		default:
		}
	}
}

func (s *MicrophoneSource) onStop() {
	s.logger.Info("capture device stopped", "source_id", s.id)
}

func s16ToFloat32(v uint16) float32 {
	return float32(int16(v)) / float32(-math.MinInt16)
}

// Stop halts capture and releases the malgo device and context.
func (s *MicrophoneSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running.Load() {
		return nil
	}
	if s.cancel != nil {
		s.cancel()
	}
	if s.device != nil {
		_ = s.device.Stop()
		s.device.Uninit()
		s.device = nil
	}
	if s.ctx != nil {
		_ = s.ctx.Uninit()
		s.ctx = nil
	}
	s.running.Store(false)
	return nil
}
