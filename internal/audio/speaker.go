package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/hajimehoshi/oto/v2"
)

// Speaker is a transport output that plays tracks on the local sound device.
type Speaker struct {
	ctx *oto.Context

	mu     sync.Mutex
	player oto.Player
	volume float64
}

// NewSpeaker opens the default audio device. Blocks until the device is ready.
func NewSpeaker() (*Speaker, error) {
	ctx, ready, err := oto.NewContext(SampleRate, Channels, oto.FormatSignedInt16LE)
	if err != nil {
		return nil, fmt.Errorf("oto context: %w", err)
	}
	<-ready
	return &Speaker{ctx: ctx, volume: 1}, nil
}

// Start plays t from offset, replacing any current playback.
func (s *Speaker) Start(t *Track, offset time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closePlayer()
	start := t.FrameAt(offset) * Channels
	player := s.ctx.NewPlayer(&pcmReader{samples: t.Samples[start:]})
	player.SetVolume(s.volume)
	player.Play()
	s.player = player
	return nil
}

// Stop halts playback.
func (s *Speaker) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closePlayer()
}

// SetVolume sets the output gain, clamped to [0,1].
func (s *Speaker) SetVolume(v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.volume = clampUnit(v)
	if s.player != nil {
		s.player.SetVolume(s.volume)
	}
}

func (s *Speaker) closePlayer() {
	if s.player == nil {
		return
	}
	if err := s.player.Close(); err != nil {
		log.Printf("Speaker: close player: %v", err)
	}
	s.player = nil
}

// pcmReader streams int16 samples as little-endian bytes without copying the track.
type pcmReader struct {
	samples []int16
	pos     int
}

func (r *pcmReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.samples) {
		return 0, io.EOF
	}
	n := 0
	for n+1 < len(p) && r.pos < len(r.samples) {
		binary.LittleEndian.PutUint16(p[n:], uint16(r.samples[r.pos]))
		n += 2
		r.pos++
	}
	return n, nil
}
