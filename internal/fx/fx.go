// Package fx is the DJ effect pad: eight momentary effects that jump to 1
// when triggered and fade linearly back to 0.
package fx

import (
	"encoding/json"
	"errors"
	"fmt"
)

// DecayRate is how much of an effect fades per second.
const DecayRate = 0.7

// ImpulseLevel is the level burst must still be above for its impulse to fire.
const ImpulseLevel = 0.9

var ErrUnknownEffect = errors.New("unknown effect")

// Effect names one pad.
type Effect int

const (
	Strobe Effect = iota
	Drop
	Bloom
	Spin
	Color
	Freeze
	Burst
	Divine

	Count = int(Divine) + 1
)

var names = [Count]string{"strobe", "drop", "bloom", "spin", "color", "freeze", "burst", "divine"}

func (e Effect) String() string {
	if e < 0 || int(e) >= Count {
		return fmt.Sprintf("Effect(%d)", int(e))
	}
	return names[e]
}

// All returns every effect in pad order.
func All() []Effect {
	out := make([]Effect, Count)
	for i := range out {
		out[i] = Effect(i)
	}
	return out
}

// Parse looks an effect up by name.
func Parse(name string) (Effect, error) {
	for i, n := range names {
		if n == name {
			return Effect(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownEffect, name)
}

// FromKey maps the digit keys 1-8 to effects in pad order.
func FromKey(r rune) (Effect, bool) {
	if r < '1' || r > '0'+rune(Count) {
		return 0, false
	}
	return Effect(r - '1'), true
}

// Phase is where an effect is in its trigger cycle.
type Phase int

const (
	Idle     Phase = iota // level is 0
	Armed                 // triggered, no tick has run since
	Decaying              // fading; burst has spent its impulse
)

func (p Phase) String() string {
	switch p {
	case Armed:
		return "armed"
	case Decaying:
		return "decaying"
	}
	return "idle"
}

// Levels is a read-only view of every effect's level.
type Levels [Count]float64

// Get returns the level of e.
func (l Levels) Get(e Effect) float64 {
	if e < 0 || int(e) >= Count {
		return 0
	}
	return l[e]
}

// Active reports whether e is above zero.
func (l Levels) Active(e Effect) bool {
	return l.Get(e) > 0
}

// MarshalJSON encodes levels as an object keyed by effect name.
func (l Levels) MarshalJSON() ([]byte, error) {
	m := make(map[string]float64, Count)
	for i, v := range l {
		m[names[i]] = v
	}
	return json.Marshal(m)
}

// Set holds the state of all effects. The zero value is ready to use.
type Set struct {
	levels Levels
	phases [Count]Phase
}

// Trigger sets e to full, restarting its cycle.
func (s *Set) Trigger(e Effect) {
	if e < 0 || int(e) >= Count {
		return
	}
	s.levels[e] = 1
	s.phases[e] = Armed
}

// Tick fades every active effect by dt*DecayRate. It reports whether the
// burst impulse fired: once per trigger, on the first tick after it.
func (s *Set) Tick(dt float64) (impulse bool) {
	if dt <= 0 {
		return false
	}
	for i := range s.levels {
		if s.levels[i] <= 0 {
			s.phases[i] = Idle
			continue
		}
		if s.phases[i] == Armed {
			s.phases[i] = Decaying
			// Sampled before the fade so a long tick cannot skip it.
			if Effect(i) == Burst && s.levels[i] > ImpulseLevel {
				impulse = true
			}
		}

		s.levels[i] -= dt * DecayRate
		if s.levels[i] < 0 {
			s.levels[i] = 0
		}
		if s.levels[i] == 0 {
			s.phases[i] = Idle
		}
	}
	return impulse
}

// Levels returns a copy of the current levels.
func (s *Set) Levels() Levels { return s.levels }

// Phase returns where e is in its cycle.
func (s *Set) Phase(e Effect) Phase {
	if e < 0 || int(e) >= Count {
		return Idle
	}
	return s.phases[e]
}
