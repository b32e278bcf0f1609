// Package transport is the playback clock: what is loaded, whether it is
// playing, and where the playhead is.
package transport

import (
	"fmt"
	"log"
	"time"

	"github.com/satindergrewal/liteshow/internal/audio"
)

// Clock is a monotonic time source.
type Clock interface {
	Now() time.Duration
}

// SystemClock reads the runtime's monotonic clock.
type SystemClock struct {
	origin time.Time
}

func NewSystemClock() *SystemClock {
	return &SystemClock{origin: time.Now()}
}

// Now returns the monotonic time elapsed since the clock was created.
func (c *SystemClock) Now() time.Duration {
	return time.Since(c.origin)
}

// ManualClock only moves when told to. Offline analysis drives the
// transport with it.
type ManualClock struct {
	now time.Duration
}

func (c *ManualClock) Now() time.Duration { return c.now }

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) { c.now += d }

// Output renders the playing track somewhere: a sound card, a network stream.
type Output interface {
	Start(t *audio.Track, offset time.Duration) error
	Stop()
}

// VolumeSetter is implemented by outputs with adjustable gain.
type VolumeSetter interface {
	SetVolume(v float64)
}

// State is a copy of the transport for consumers.
type State struct {
	Playing  bool    `json:"playing"`
	Position float64 `json:"position"` // seconds
	Duration float64 `json:"duration"` // seconds
	Volume   float64 `json:"volume"`
	TrackID  string  `json:"trackId,omitempty"`
	Name     string  `json:"name,omitempty"`
	Artist   string  `json:"artist,omitempty"`
}

// Transport owns playback state. It is not safe for concurrent use; the
// engine loop is its only caller.
type Transport struct {
	clock   Clock
	outputs []Output

	track        *audio.Track
	playing      bool
	startRef     time.Duration // clock time that corresponds to position 0
	pausedOffset time.Duration
	volume       float64
}

// New creates an empty transport driving the given outputs.
func New(clock Clock, outputs ...Output) *Transport {
	return &Transport{clock: clock, outputs: outputs, volume: 1}
}

// Load replaces the current track. Playback stops and the playhead returns
// to the start; Load never starts playback itself.
func (t *Transport) Load(track *audio.Track) {
	if t.playing {
		t.stopOutputs()
	}
	t.track = track
	t.playing = false
	t.pausedOffset = 0
	if track != nil {
		log.Printf("Transport loaded %q (%s)", track.Name, track.Duration.Round(time.Second))
	}
}

// Play starts from the stored offset. It does nothing if already playing
// or if no track is loaded. A track that finished plays again from the top.
func (t *Transport) Play() error {
	if t.playing || t.track == nil {
		return nil
	}
	if t.pausedOffset >= t.track.Duration {
		t.pausedOffset = 0
	}
	if err := t.startOutputs(t.pausedOffset); err != nil {
		return err
	}
	t.startRef = t.clock.Now() - t.pausedOffset
	t.playing = true
	return nil
}

// Pause captures the playhead and stops the outputs.
func (t *Transport) Pause() {
	if !t.playing {
		return
	}
	t.pausedOffset = t.Position()
	t.stopOutputs()
	t.playing = false
}

// Toggle pauses if playing, plays otherwise.
func (t *Transport) Toggle() error {
	if t.playing {
		t.Pause()
		return nil
	}
	return t.Play()
}

// Seek moves the playhead, clamped to the track. While playing the outputs
// restart at the new offset.
func (t *Transport) Seek(pos time.Duration) error {
	wasPlaying := t.playing
	if wasPlaying {
		t.stopOutputs()
		t.playing = false
	}
	t.pausedOffset = max(0, min(pos, t.Duration()))
	// Seeking to the very end while playing is a natural end, not a replay.
	if wasPlaying && t.pausedOffset < t.Duration() {
		return t.Play()
	}
	return nil
}

// Position is the playhead: derived from the clock while playing, the
// stored offset otherwise.
func (t *Transport) Position() time.Duration {
	if !t.playing {
		return t.pausedOffset
	}
	return max(0, min(t.clock.Now()-t.startRef, t.Duration()))
}

// Duration is the length of the loaded track, 0 if none.
func (t *Transport) Duration() time.Duration {
	if t.track == nil {
		return 0
	}
	return t.track.Duration
}

func (t *Transport) Playing() bool       { return t.playing }
func (t *Transport) Track() *audio.Track { return t.track }
func (t *Transport) Volume() float64     { return t.volume }

// Update observes the end of the track. When the playhead reaches the
// duration the transport pauses there on its own and Update reports true.
func (t *Transport) Update() (ended bool) {
	if !t.playing || t.track == nil {
		return false
	}
	if t.clock.Now()-t.startRef < t.track.Duration {
		return false
	}
	t.stopOutputs()
	t.playing = false
	t.pausedOffset = t.track.Duration
	log.Printf("Transport reached end of %q", t.track.Name)
	return true
}

// SetVolume sets output gain in [0,1] on every output that supports it.
func (t *Transport) SetVolume(v float64) {
	t.volume = max(0, min(v, 1))
	for _, o := range t.outputs {
		if vs, ok := o.(VolumeSetter); ok {
			vs.SetVolume(t.volume)
		}
	}
}

// State returns a copy of the transport for consumers.
func (t *Transport) State() State {
	s := State{
		Playing:  t.playing,
		Position: t.Position().Seconds(),
		Duration: t.Duration().Seconds(),
		Volume:   t.volume,
	}
	if t.track != nil {
		s.TrackID = t.track.ID
		s.Name = t.track.Name
		s.Artist = t.track.Artist
	}
	return s
}

// startOutputs starts every output, undoing the ones already started if
// any fails so they never disagree.
func (t *Transport) startOutputs(offset time.Duration) error {
	for i, o := range t.outputs {
		if err := o.Start(t.track, offset); err != nil {
			for _, started := range t.outputs[:i] {
				started.Stop()
			}
			return fmt.Errorf("start output: %w", err)
		}
	}
	return nil
}

func (t *Transport) stopOutputs() {
	for _, o := range t.outputs {
		o.Stop()
	}
}
