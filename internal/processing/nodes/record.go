package nodes

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/smallnest/ringbuffer"

	"github.com/sctg-development/photoacoustic-go/internal/logging"
	"github.com/sctg-development/photoacoustic-go/internal/processing"
)

// stageCapacityBytes bounds the ring buffer samples are staged through
// before each WAV write. Sized well above a single frame's worth of
// int16 PCM so Process never blocks on a full ring.
const stageCapacityBytes = 1 << 20

// RecordParams is the decoded configuration (spec.md §6: "Record:
// {file, max_size_kb, auto_delete}").
type RecordParams struct {
	File       string
	MaxSizeKB  int
	AutoDelete bool
}

func decodeRecordParams(raw map[string]any) RecordParams {
	p := RecordParams{File: "recordings/output.wav", MaxSizeKB: 0}
	if v, ok := raw["file"].(string); ok && v != "" {
		p.File = v
	}
	if v, ok := numericValue(raw["max_size_kb"]); ok {
		p.MaxSizeKB = int(v)
	}
	if v, ok := raw["auto_delete"].(bool); ok {
		p.AutoDelete = v
	}
	return p
}

// Record is a sink node (spec.md §4.5): pass-through on the signal, writes
// samples to a PCM-16 WAV file, auto-detecting channel count, and rotates
// to a new file once the configured size budget is exceeded.
type Record struct {
	processing.BaseNode

	logger *slog.Logger

	mu           sync.Mutex
	params       RecordParams
	encoder      *wav.Encoder
	file         *os.File
	stage        *ringbuffer.RingBuffer
	bytesWritten int64
	rotationIdx  int
	currentPath  string
	lastRotated  string
}

func NewRecord(id string, raw map[string]any) (processing.Node, error) {
	return &Record{
		BaseNode: processing.NewBaseNode(id, "record", processing.FamilySink),
		logger:   logging.ForComponent("record"),
		params:   decodeRecordParams(raw),
		stage:    ringbuffer.New(stageCapacityBytes),
	}, nil
}

func (r *Record) AcceptsKind(k processing.Kind) bool {
	switch k {
	case processing.KindAudioFrame, processing.KindDualChannel, processing.KindSingleChannel:
		return true
	default:
		return false
	}
}

func (r *Record) OutputKindFor(k processing.Kind) (processing.Kind, bool) {
	if r.AcceptsKind(k) {
		return k, true
	}
	return "", false
}

func clampToInt16(x float32) int {
	v := float64(x) * 32767
	if v > 32767 {
		v = 32767
	}
	if v < -32768 {
		v = -32768
	}
	return int(math.Round(v))
}

func interleave(a, b []float32) []int {
	out := make([]int, 0, len(a)+len(b))
	for i := range a {
		out = append(out, clampToInt16(a[i]))
		if i < len(b) {
			out = append(out, clampToInt16(b[i]))
		}
	}
	return out
}

func mono(samples []float32) []int {
	out := make([]int, len(samples))
	for i, v := range samples {
		out[i] = clampToInt16(v)
	}
	return out
}

func (r *Record) Process(input processing.Data) (processing.Data, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var pcm []int
	var channels, sampleRate int

	switch v := input.(type) {
	case processing.AudioFrame:
		pcm, channels, sampleRate = interleave(v.ChannelA, v.ChannelB), 2, v.SampleRate
	case processing.DualChannel:
		pcm, channels, sampleRate = interleave(v.ChannelA, v.ChannelB), 2, v.SampleRate
	case processing.SingleChannel:
		pcm, channels, sampleRate = mono(v.Samples), 1, v.SampleRate
	default:
		return input, nil
	}

	if err := r.ensureOpen(channels, sampleRate); err != nil {
		r.logger.Warn("record node: failed to open writer", "node_id", r.ID(), "error", err)
		return input, nil // write errors never propagate (spec §4.5)
	}

	pcm, err := r.stagePCM(pcm)
	if err != nil {
		r.logger.Warn("record node: staging failed", "node_id", r.ID(), "error", err)
		return input, nil
	}

	buf := &audio.IntBuffer{
		Format:         &audio.Format{SampleRate: sampleRate, NumChannels: channels},
		Data:           pcm,
		SourceBitDepth: 16,
	}
	if err := r.encoder.Write(buf); err != nil {
		r.logger.Warn("record node: write failed", "node_id", r.ID(), "error", err)
		return input, nil
	}
	r.bytesWritten += int64(len(pcm) * 2)

	if r.params.MaxSizeKB > 0 && r.bytesWritten >= int64(r.params.MaxSizeKB)*1024 {
		if err := r.rotate(); err != nil {
			r.logger.Warn("record node: rotation failed", "node_id", r.ID(), "error", err)
		}
	}

	return input, nil
}

// stagePCM round-trips int16 PCM samples through a ring buffer before the
// WAV encoder sees them (spec.md §4.5 NEW addition), decoupling the sample
// conversion step from the encoder write so a future writer could drain
// the ring on its own schedule without changing this node's Process loop.
func (r *Record) stagePCM(pcm []int) ([]int, error) {
	raw := make([]byte, len(pcm)*2)
	for i, v := range pcm {
		binary.LittleEndian.PutUint16(raw[i*2:], uint16(int16(v)))
	}
	if _, err := r.stage.Write(raw); err != nil {
		return nil, fmt.Errorf("staging pcm: %w", err)
	}

	staged := make([]byte, len(raw))
	if _, err := r.stage.Read(staged); err != nil {
		return nil, fmt.Errorf("draining staged pcm: %w", err)
	}

	out := make([]int, len(pcm))
	for i := range out {
		out[i] = int(int16(binary.LittleEndian.Uint16(staged[i*2:])))
	}
	return out, nil
}

func (r *Record) ensureOpen(channels, sampleRate int) error {
	if r.encoder != nil {
		return nil
	}
	path := r.params.File
	if r.rotationIdx > 0 {
		path = suffixedPath(r.params.File, rotationSuffix())
	}
	return r.openAt(path, channels, sampleRate)
}

func (r *Record) openAt(path string, channels, sampleRate int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	r.file = f
	r.encoder = wav.NewEncoder(f, sampleRate, 16, channels, 1)
	r.currentPath = path
	r.bytesWritten = 0
	return nil
}

// rotate closes the current file (finalising its header) and, when
// auto_delete is set, deletes the file closed at the previous rotation. It
// does not open the next file: the next Process call does, through
// ensureOpen, under an epoch-seconds suffix (spec.md §4.5: "first
// file uses the configured name verbatim; subsequent files append an
// epoch-seconds suffix before the extension").
func (r *Record) rotate() error {
	closedPath := r.currentPath
	if err := r.closeCurrent(); err != nil {
		return err
	}
	if r.params.AutoDelete && r.lastRotated != "" {
		_ = os.Remove(r.lastRotated)
	}
	r.lastRotated = closedPath
	r.rotationIdx++
	return nil
}

func (r *Record) closeCurrent() error {
	if r.encoder == nil {
		return nil
	}
	err := r.encoder.Close()
	r.encoder = nil
	if r.file != nil {
		_ = r.file.Close()
		r.file = nil
	}
	return err
}

func suffixedPath(path string, suffix string) string {
	ext := ""
	base := path
	if idx := strings.LastIndex(path, "."); idx > strings.LastIndex(path, "/") {
		ext = path[idx:]
		base = path[:idx]
	}
	return fmt.Sprintf("%s-%s%s", base, suffix, ext)
}

func rotationSuffix() string {
	return fmt.Sprintf("%d", time.Now().Unix())
}

func (r *Record) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	_ = r.closeCurrent()
}

func (r *Record) SupportsHotReload() bool { return true }

func (r *Record) UpdateConfig(raw map[string]any) (bool, error) {
	newParams := decodeRecordParams(raw)
	r.mu.Lock()
	defer r.mu.Unlock()
	if newParams == r.params {
		return false, nil
	}
	_ = r.closeCurrent()
	r.params = newParams
	r.rotationIdx = 0
	r.lastRotated = ""
	return true, nil
}

func (r *Record) CloneShape() processing.Node {
	r.mu.Lock()
	defer r.mu.Unlock()
	return &Record{
		BaseNode: processing.NewBaseNode(r.ID(), "record", processing.FamilySink),
		logger:   r.logger,
		params:   r.params,
		stage:    ringbuffer.New(stageCapacityBytes),
	}
}
