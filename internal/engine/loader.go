package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/satindergrewal/liteshow/internal/audio"
	"github.com/satindergrewal/liteshow/internal/transport"
)

// ErrSuperseded is returned by a load that a newer load replaced.
// It is not a failure and should not be shown to users.
var ErrSuperseded = errors.New("load superseded")

const (
	claimPending int32 = iota
	claimCommitted
	claimAbandoned
)

// Media is encoded audio plus what to call it.
type Media struct {
	Name   string
	Artist string
	Data   []byte
}

// FetchFunc acquires encoded audio. It must honour ctx cancellation.
type FetchFunc func(ctx context.Context) (Media, error)

// Loader acquires, decodes and commits tracks with at most one load in
// flight: starting a load cancels the one before it.
type Loader struct {
	loop *Loop

	// Decode turns encoded bytes into samples; audio.Decode by default.
	Decode func([]byte) ([]int16, error)

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
}

func NewLoader(loop *Loop) *Loader {
	return &Loader{loop: loop, Decode: audio.Decode}
}

// Load fetches and decodes off the engine loop, then commits the track on
// it. With play set the new track starts immediately. A failed load leaves
// the current track untouched.
func (l *Loader) Load(ctx context.Context, fetch FetchFunc, play bool) (transport.State, error) {
	ctx, gen := l.begin(ctx)
	defer l.end(gen)

	media, err := fetch(ctx)
	if err != nil {
		if l.superseded(gen) {
			return transport.State{}, ErrSuperseded
		}
		return transport.State{}, err
	}

	samples, err := l.Decode(media.Data)
	if l.superseded(gen) {
		return transport.State{}, ErrSuperseded
	}
	if err != nil {
		return transport.State{}, err
	}
	track := audio.NewTrack(media.Name, media.Artist, samples)

	// claim settles the race between the commit closure and an abandoned
	// Do: whichever side moves it off pending first decides the outcome.
	var (
		claim   atomic.Int32
		ran     = make(chan struct{})
		state   transport.State
		stale   bool
		playErr error
	)
	err = l.loop.Do(ctx, func(e *Engine) {
		defer close(ran)
		// Re-check on the loop: a newer load may have committed first, or
		// the caller may have gone away while this was queued.
		if l.superseded(gen) || ctx.Err() != nil || !claim.CompareAndSwap(claimPending, claimCommitted) {
			stale = true
			return
		}
		e.Commit(track)
		if play {
			playErr = e.Transport().Play()
		}
		state = e.Transport().State()
	})
	if err != nil {
		if claim.CompareAndSwap(claimPending, claimAbandoned) {
			if l.superseded(gen) {
				return transport.State{}, ErrSuperseded
			}
			return transport.State{}, err
		}
		// The commit already happened; report it.
		<-ran
	}
	if stale {
		if l.superseded(gen) {
			return transport.State{}, ErrSuperseded
		}
		return transport.State{}, ctx.Err()
	}
	if playErr != nil {
		return state, fmt.Errorf("play %q: %w", track.Name, playErr)
	}
	return state, nil
}

func (l *Loader) begin(parent context.Context) (context.Context, uint64) {
	ctx, cancel := context.WithCancel(parent)
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		log.Println("Loader: superseding in-flight load")
		l.cancel()
	}
	l.gen++
	l.cancel = cancel
	return ctx, l.gen
}

func (l *Loader) end(gen uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.gen == gen && l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
}

func (l *Loader) superseded(gen uint64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.gen != gen
}
