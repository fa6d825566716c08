// Package audio wraps the APU's float32 sample stream in an oto/v3 output
// device. It is entirely a host-layer concern: the core never imports it.
package audio

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/ebitengine/oto/v3"

	"gones/internal/neserr"
)

// ringBuffer is an io.Reader fed by Push; it outputs silence on underrun
// rather than blocking, since the emulator must never stall waiting for
// the audio device.
type ringBuffer struct {
	mu   sync.Mutex
	data []byte
	cap  int
}

func newRingBuffer(maxBytes int) *ringBuffer {
	return &ringBuffer{cap: maxBytes}
}

// Read implements io.Reader, draining available bytes and padding the rest
// of p with silence (zero bytes, which is 0.0 for float32 samples).
func (r *ringBuffer) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := copy(p, r.data)
	r.data = r.data[n:]
	for i := n; i < len(p); i++ {
		p[i] = 0
	}
	return len(p), nil
}

// Push appends samples encoded as little-endian float32, dropping the
// oldest bytes if the buffer would exceed its cap (a slow consumer loses
// old audio rather than the producer blocking or growing without bound).
func (r *ringBuffer) Push(samples []float32) {
	if len(samples) == 0 {
		return
	}

	encoded := make([]byte, 4*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint32(encoded[i*4:], math.Float32bits(s))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.data = append(r.data, encoded...)
	if excess := len(r.data) - r.cap; excess > 0 {
		r.data = r.data[excess:]
	}
}

// Sink plays mono float32 audio samples pulled from the APU. A Sink that
// failed to open its device is still safe to use: Push becomes a no-op.
type Sink struct {
	ctx    *oto.Context
	player *oto.Player
	buf    *ringBuffer
}

// Open opens the default audio device at the given sample rate. On failure
// it returns a non-nil Sink wrapping ErrAudioUnavailable whose Push calls
// are silently dropped, per the "report but continue" contract for audio:
// a missing device must not be fatal to emulation.
func Open(sampleRate int) (*Sink, error) {
	options := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 1,
		Format:       oto.FormatFloat32LE,
	}

	ctx, ready, err := oto.NewContext(options)
	if err != nil {
		return &Sink{}, fmt.Errorf("%w: %v", neserr.ErrAudioUnavailable, err)
	}
	<-ready

	buf := newRingBuffer(4 * sampleRate * 2) // ~2 seconds of headroom
	player := ctx.NewPlayer(buf)
	player.Play()

	return &Sink{ctx: ctx, player: player, buf: buf}, nil
}

// Push queues samples for playback. Safe to call on a Sink whose device
// failed to open.
func (s *Sink) Push(samples []float32) {
	if s.buf == nil {
		return
	}
	s.buf.Push(samples)
}

// Close stops playback and releases the device, if one was opened.
func (s *Sink) Close() error {
	if s.player == nil {
		return nil
	}
	return s.player.Close()
}
