package acquisition

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/sctg-development/photoacoustic-go/internal/logging"
	"github.com/sctg-development/photoacoustic-go/internal/processing"
)

// FanOut replicates one Source's output to multiple bounded consumer
// channels (spec.md §5: the graph executor and, e.g., a calibration tap
// both need the same stream). A slow consumer never blocks the others or
// the source: a full consumer channel drops the oldest queued frame to
// make room, and the drop is counted rather than silently lost.
type FanOut struct {
	logger *slog.Logger

	mu        sync.Mutex
	consumers map[string]chan processing.AudioFrame
	depth     int
	dropped   map[string]*atomic.Uint64

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewFanOut starts copying source's output to registered consumers.
// Subscribe at any time — frames published before a consumer subscribes
// are simply missed, matching a live broadcast.
func NewFanOut(source Source, depth int) *FanOut {
	if depth <= 0 {
		depth = 32
	}
	f := &FanOut{
		logger:    logging.ForComponent("acquisition"),
		consumers: make(map[string]chan processing.AudioFrame),
		depth:     depth,
		dropped:   make(map[string]*atomic.Uint64),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
	go f.run(source)
	return f
}

func (f *FanOut) run(source Source) {
	defer close(f.doneCh)
	for {
		select {
		case <-f.stopCh:
			return
		case frame, ok := <-source.AudioOutput():
			if !ok {
				return
			}
			f.publish(frame)
		}
	}
}

func (f *FanOut) publish(frame processing.AudioFrame) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, ch := range f.consumers {
		select {
		case ch <- frame:
		default:
			// drop-oldest: evict the head to make room for the latest frame
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- frame:
			default:
			}
			f.dropped[id].Add(1)
			f.logger.Warn("fan-out consumer queue full, dropped oldest frame", "consumer_id", id)
		}
	}
}

// Subscribe registers a new bounded consumer channel.
func (f *FanOut) Subscribe(id string) <-chan processing.AudioFrame {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan processing.AudioFrame, f.depth)
	f.consumers[id] = ch
	f.dropped[id] = &atomic.Uint64{}
	return ch
}

// Unsubscribe removes and closes a consumer's channel.
func (f *FanOut) Unsubscribe(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ch, ok := f.consumers[id]; ok {
		close(ch)
		delete(f.consumers, id)
		delete(f.dropped, id)
	}
}

// DroppedFrames returns the drop counter for a consumer, or 0 if unknown.
func (f *FanOut) DroppedFrames(id string) uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.dropped[id]; ok {
		return c.Load()
	}
	return 0
}

// Stop halts the fan-out's copy goroutine and closes all consumer
// channels. Does not stop the underlying source.
func (f *FanOut) Stop() {
	close(f.stopCh)
	<-f.doneCh
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, ch := range f.consumers {
		close(ch)
		delete(f.consumers, id)
	}
}
