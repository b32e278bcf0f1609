// Package analysis turns audio into the normalized control values the
// visual consumers read every tick: band energies, their envelopes and
// beat events.
package analysis

import "math"

// Band identifies one scalar of a FrequencyBands record.
type Band int

const (
	SubBass Band = iota
	Bass
	LowMid
	Mid
	HighMid
	High
	Energy
)

// SpectralBands are the six bands measured directly from the spectrum.
// Energy is derived from them.
var SpectralBands = [...]Band{SubBass, Bass, LowMid, Mid, HighMid, High}

// AllBands lists every field of FrequencyBands, Energy last.
var AllBands = [...]Band{SubBass, Bass, LowMid, Mid, HighMid, High, Energy}

var bandNames = [...]string{"subBass", "bass", "lowMid", "mid", "highMid", "high", "energy"}

func (b Band) String() string {
	if b < 0 || int(b) >= len(bandNames) {
		return "unknown"
	}
	return bandNames[b]
}

// binRanges are half-open FFT bin ranges for a 2048-point transform.
var binRanges = [...][2]int{
	SubBass: {1, 5},
	Bass:    {5, 12},
	LowMid:  {12, 40},
	Mid:     {40, 100},
	HighMid: {100, 200},
	High:    {200, 500},
}

// BinRange returns the half-open bin range [lo, hi) a spectral band averages over.
func BinRange(b Band) (lo, hi int) {
	if b < SubBass || b > High {
		return 0, 0
	}
	r := binRanges[b]
	return r[0], r[1]
}

// FrequencyBands holds six band energies and their mean, all in [0,1].
type FrequencyBands struct {
	SubBass float64 `json:"subBass"`
	Bass    float64 `json:"bass"`
	LowMid  float64 `json:"lowMid"`
	Mid     float64 `json:"mid"`
	HighMid float64 `json:"highMid"`
	High    float64 `json:"high"`
	Energy  float64 `json:"energy"`
}

// Get returns the value of band b.
func (f FrequencyBands) Get(b Band) float64 {
	if p := f.field(b); p != nil {
		return *p
	}
	return 0
}

// Set assigns band b.
func (f *FrequencyBands) Set(b Band, v float64) {
	if p := f.field(b); p != nil {
		*p = v
	}
}

func (f *FrequencyBands) field(b Band) *float64 {
	switch b {
	case SubBass:
		return &f.SubBass
	case Bass:
		return &f.Bass
	case LowMid:
		return &f.LowMid
	case Mid:
		return &f.Mid
	case HighMid:
		return &f.HighMid
	case High:
		return &f.High
	case Energy:
		return &f.Energy
	}
	return nil
}

// Extract averages each band's bin range, applies sensitivity and clamps
// to [0,1]. Bins missing from a short magnitude array count as zero.
func Extract(freq []float64, sensitivity float64) FrequencyBands {
	if sensitivity < 0 || math.IsNaN(sensitivity) {
		sensitivity = 0
	}

	var out FrequencyBands
	var sum float64
	for _, b := range SpectralBands {
		lo, hi := BinRange(b)
		var s float64
		for i := lo; i < hi && i < len(freq); i++ {
			s += freq[i]
		}
		v := clamp01(s / float64(hi-lo) * sensitivity)
		out.Set(b, v)
		sum += v
	}
	out.Energy = sum / float64(len(SpectralBands))
	return out
}

// Sensitivity is the slowly drifting gain applied before extraction.
// t is elapsed engine time in seconds, energy the last smoothed energy.
func Sensitivity(t, energy float64) float64 {
	return 0.8 + math.Sin(t*0.07)*0.15 + energy*0.15
}

func clamp01(v float64) float64 {
	switch {
	case v > 1:
		return 1
	case v > 0:
		return v
	}
	// negatives and NaN
	return 0
}
