// Package clock paces frame delivery to a wall-clock target. It is used by
// the host loop only: the core (cpu/ppu/apu/bus) never sleeps or reads the
// wall clock itself.
package clock

import (
	"time"
)

// historyLen is the number of frame timestamps kept for FPS measurement,
// matching the reference implementation's 10-frame rolling window (11
// timestamps bound 10 intervals).
const historyLen = 11

// Pacer records wall-clock timestamps of the last several frames and sleeps
// just before each frame boundary so the mean frame period matches the
// target rate. Pacing is advisory: a caller that never calls Tick just runs
// as fast as the host loop drives it.
type Pacer struct {
	targetFrameDuration time.Duration
	history             []time.Time
	now                 func() time.Time
}

// NewPacer creates a Pacer targeting the given frame rate (frames per
// second). A non-positive rate disables pacing: Tick returns immediately
// and GetFPS always reports 0.
func NewPacer(targetFPS float64) *Pacer {
	p := &Pacer{now: time.Now}
	if targetFPS > 0 {
		p.targetFrameDuration = time.Duration(float64(time.Second) / targetFPS)
	}
	p.history = []time.Time{p.now()}
	return p
}

// Tick blocks until the target frame duration has elapsed since the last
// recorded frame, then records the new frame boundary. Call once per
// rendered frame.
func (p *Pacer) Tick() {
	now := p.now()
	if p.targetFrameDuration > 0 && len(p.history) > 0 {
		last := p.history[len(p.history)-1]
		elapsed := now.Sub(last)
		if remaining := p.targetFrameDuration - elapsed; remaining > 0 {
			time.Sleep(remaining)
			now = p.now()
		}
	}

	p.history = append(p.history, now)
	if len(p.history) > historyLen {
		p.history = p.history[len(p.history)-historyLen:]
	}
}

// GetFPS returns the measured frames-per-second over the current history
// window, or 0 if not enough frames have been ticked yet to measure.
func (p *Pacer) GetFPS() float64 {
	if len(p.history) < historyLen {
		return 0
	}
	front := p.history[0]
	back := p.history[len(p.history)-1]
	elapsed := back.Sub(front)
	if elapsed <= 0 {
		return 0
	}
	intervals := float64(len(p.history) - 1)
	return intervals * float64(time.Second) / float64(elapsed)
}

// TargetFrameDuration returns the configured per-frame duration, or 0 if
// pacing is disabled.
func (p *Pacer) TargetFrameDuration() time.Duration {
	return p.targetFrameDuration
}
