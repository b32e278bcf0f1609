package analysis

import (
	"fmt"
	"math"
)

const (
	AttackHigh = 0.5  // high, highMid
	AttackLow  = 0.35 // subBass, bass
	AttackMid  = 0.3  // everything else, energy included
	Decay      = 0.08
	PeakDecay  = 0.96

	// ReferenceRate is the tick rate PeakDecay was tuned at.
	ReferenceRate = 60.0
)

// PeakMode selects how peak decay relates to tick duration.
type PeakMode int

const (
	// PeakPerFrame multiplies by PeakDecay once per tick regardless of dt.
	PeakPerFrame PeakMode = iota
	// PeakPerSecond scales the decay by dt so it behaves the same at any tick rate.
	PeakPerSecond
)

func (m PeakMode) String() string {
	if m == PeakPerSecond {
		return "time"
	}
	return "frame"
}

// ParsePeakMode accepts "frame" or "time".
func ParsePeakMode(s string) (PeakMode, error) {
	switch s {
	case "frame", "":
		return PeakPerFrame, nil
	case "time":
		return PeakPerSecond, nil
	}
	return PeakPerFrame, fmt.Errorf("unknown peak decay mode %q (want frame or time)", s)
}

// Envelope tracks a smoothed and a peak value for every band.
type Envelope struct {
	mode   PeakMode
	smooth FrequencyBands
	peak   FrequencyBands
}

// NewEnvelope returns an envelope at rest.
func NewEnvelope(mode PeakMode) *Envelope {
	return &Envelope{mode: mode}
}

func attackRate(b Band) float64 {
	switch b {
	case High, HighMid:
		return AttackHigh
	case SubBass, Bass:
		return AttackLow
	}
	return AttackMid
}

// Update advances both envelopes from this tick's raw bands.
// A non-positive dt is a no-op.
func (e *Envelope) Update(raw FrequencyBands, dt float64) {
	if dt <= 0 {
		return
	}

	peakFactor := PeakDecay
	if e.mode == PeakPerSecond {
		peakFactor = math.Pow(PeakDecay, dt*ReferenceRate)
	}

	for _, b := range AllBands {
		target := clamp01(raw.Get(b))

		cur := e.smooth.Get(b)
		rate := Decay
		if target > cur {
			rate = attackRate(b)
		}
		e.smooth.Set(b, clamp01(cur+(target-cur)*rate))

		if target > e.peak.Get(b) {
			e.peak.Set(b, target)
		} else {
			e.peak.Set(b, e.peak.Get(b)*peakFactor)
		}
	}
}

// Smoothed returns the current smoothed bands.
func (e *Envelope) Smoothed() FrequencyBands { return e.smooth }

// Peak returns the current peak bands.
func (e *Envelope) Peak() FrequencyBands { return e.peak }

// Reset zeroes both envelopes.
func (e *Envelope) Reset() {
	e.smooth = FrequencyBands{}
	e.peak = FrequencyBands{}
}
