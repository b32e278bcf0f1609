package audio

import (
	"context"
	"log"
	"sync"
	"time"
)

// Pipeline is a transport output that paces the playing track out as 20ms
// PCM frames at real-time rate, for network listeners. Start and Stop are
// called from the engine loop; Run owns the clock.
type Pipeline struct {
	frameCh chan []int16

	mu       sync.Mutex
	track    *Track
	frame    int // next frame index to emit
	playing  bool
	fadeIn   bool
	stopping bool // emit one faded-out frame, then go quiet
	volume   float64
}

// NewPipeline creates a frame pipeline at full volume.
func NewPipeline() *Pipeline {
	return &Pipeline{
		frameCh: make(chan []int16, 100),
		volume:  1,
	}
}

// Frames returns the channel of outgoing PCM frames (20ms each).
func (p *Pipeline) Frames() <-chan []int16 {
	return p.frameCh
}

// Start begins emitting t from offset, replacing whatever was playing.
func (p *Pipeline) Start(t *Track, offset time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.track = t
	p.frame = t.FrameAt(offset)
	p.playing = true
	p.fadeIn = true
	p.stopping = false
	return nil
}

// Stop halts emission after a short fade-out.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.playing {
		p.stopping = true
	}
}

// SetVolume sets the output gain, clamped to [0,1].
func (p *Pipeline) SetVolume(v float64) {
	p.mu.Lock()
	p.volume = clampUnit(v)
	p.mu.Unlock()
}

// Status returns the track being emitted and the emission position.
func (p *Pipeline) Status() (track *Track, position, duration time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.track == nil {
		return nil, 0, 0
	}
	return p.track, FramesToDuration(p.frame), p.track.Duration
}

// Run emits frames until ctx is cancelled.
func (p *Pipeline) Run(ctx context.Context) {
	defer close(p.frameCh)

	ticker := time.NewTicker(FrameDuration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		frame := p.next()
		if frame == nil {
			continue
		}

		select {
		case p.frameCh <- frame:
		case <-ctx.Done():
			return
		}
	}
}

// next cuts the next frame out of the current track, or returns nil when idle.
func (p *Pipeline) next() []int16 {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.playing || p.track == nil {
		return nil
	}

	total := p.track.Frames()
	if p.frame >= total {
		p.playing = false
		log.Printf("Pipeline reached end of %s", p.track.ID)
		return nil
	}

	end := p.frame + FrameSize
	if end > total {
		end = total
	}
	raw := make([]int16, FrameSamples) // short tail stays zero-padded for fixed-size encoders
	copy(raw, p.track.Samples[p.frame*Channels:end*Channels])
	p.frame = end

	var out []int16
	switch {
	case p.stopping:
		out = Ramp(raw, p.volume, 0)
		p.playing = false
		p.stopping = false
	case p.fadeIn:
		out = Ramp(raw, 0, p.volume)
		p.fadeIn = false
	default:
		out = Scale(raw, p.volume)
	}
	return out
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
