package audio

import (
	"time"

	"github.com/google/uuid"
)

const (
	SampleRate    = 48000
	Channels      = 2
	BitDepth      = 16
	FrameDuration = 20 * time.Millisecond
	FrameSize     = 960                  // samples per channel per 20ms frame
	FrameSamples  = FrameSize * Channels // total interleaved samples per frame
	FrameBytes    = FrameSamples * 2     // bytes per frame (int16 = 2 bytes)
)

// Track is a fully decoded audio buffer: interleaved stereo int16 at SampleRate.
// A Track is immutable once built and may be shared between goroutines.
type Track struct {
	ID       string
	Name     string
	Artist   string
	Samples  []int16
	Duration time.Duration
}

// NewTrack wraps decoded samples and assigns a fresh ID.
func NewTrack(name, artist string, samples []int16) *Track {
	if len(samples)%Channels != 0 {
		samples = samples[:len(samples)-len(samples)%Channels]
	}
	return &Track{
		ID:       uuid.NewString(),
		Name:     name,
		Artist:   artist,
		Samples:  samples,
		Duration: FramesToDuration(len(samples) / Channels),
	}
}

// Frames returns the number of sample frames (one sample per channel).
func (t *Track) Frames() int {
	return len(t.Samples) / Channels
}

// FrameAt converts a playback offset to a frame index clamped to the track.
func (t *Track) FrameAt(offset time.Duration) int {
	f := DurationToFrames(offset)
	if f < 0 {
		return 0
	}
	if n := t.Frames(); f > n {
		return n
	}
	return f
}

// DurationToFrames converts a duration to a frame count at SampleRate.
func DurationToFrames(d time.Duration) int {
	return int(d.Seconds() * SampleRate)
}

// FramesToDuration converts a frame count at SampleRate to a duration.
func FramesToDuration(frames int) time.Duration {
	return time.Duration(frames) * time.Second / SampleRate
}
