package analysis

import (
	"math"
	"time"

	"github.com/mjibson/go-dsp/window"
	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/satindergrewal/liteshow/internal/audio"
)

// Analyser settings, matching what browsers use for an AnalyserNode with
// fftSize 2048 and smoothingTimeConstant 0.75.
const (
	FFTSize     = 2048
	BinCount    = FFTSize / 2
	Smoothing   = 0.75
	MinDecibels = -100.0
	MaxDecibels = -30.0
)

// Sampler produces one frequency snapshot and one time-domain snapshot per
// call. Magnitudes are Blackman-windowed, normalized by FFTSize, smoothed
// over time and mapped from [MinDecibels, MaxDecibels] to [0,1].
//
// The slices returned by Process and SampleTrack are owned by the Sampler
// and overwritten on the next call.
type Sampler struct {
	fft    *fourier.FFT
	window []float64

	input    []float64
	coeffs   []complex128
	smoothed []float64
	freq     []float64
	wave     []float64
}

// NewSampler allocates all buffers up front; sampling never allocates.
func NewSampler() *Sampler {
	return &Sampler{
		fft:      fourier.NewFFT(FFTSize),
		window:   window.Blackman(FFTSize),
		input:    make([]float64, FFTSize),
		coeffs:   make([]complex128, FFTSize/2+1),
		smoothed: make([]float64, BinCount),
		freq:     make([]float64, BinCount),
		wave:     make([]float64, BinCount),
	}
}

// Process analyses the most recent FFTSize mono samples in [-1,1].
// Shorter input is treated as preceded by silence.
func (s *Sampler) Process(mono []float64) (freq, wave []float64) {
	if len(mono) > FFTSize {
		mono = mono[len(mono)-FFTSize:]
	}
	pad := FFTSize - len(mono)
	for i := 0; i < pad; i++ {
		s.input[i] = 0
	}
	copy(s.input[pad:], mono)
	return s.analyse()
}

// SampleTrack analyses the FFTSize frames of t that end at pos, mixed to mono.
func (s *Sampler) SampleTrack(t *audio.Track, pos time.Duration) (freq, wave []float64) {
	end := t.FrameAt(pos)
	start := end - FFTSize
	for i := range s.input {
		f := start + i
		if f < 0 {
			s.input[i] = 0
			continue
		}
		l := t.Samples[f*audio.Channels]
		r := t.Samples[f*audio.Channels+1]
		s.input[i] = (float64(l) + float64(r)) / 2 / 32768
	}
	return s.analyse()
}

// Reset forgets the temporal smoothing history.
func (s *Sampler) Reset() {
	for i := range s.smoothed {
		s.smoothed[i] = 0
	}
}

func (s *Sampler) analyse() (freq, wave []float64) {
	copy(s.wave, s.input[FFTSize-BinCount:])

	// input is scratch once wave holds the raw tail
	for i, w := range s.window {
		s.input[i] *= w
	}
	s.coeffs = s.fft.Coefficients(s.coeffs, s.input)

	const dbRange = MaxDecibels - MinDecibels
	for k := 0; k < BinCount; k++ {
		c := s.coeffs[k]
		mag := math.Hypot(real(c), imag(c)) / FFTSize
		s.smoothed[k] = Smoothing*s.smoothed[k] + (1-Smoothing)*mag

		v := 0.0
		if s.smoothed[k] > 0 {
			db := 20 * math.Log10(s.smoothed[k])
			v = clamp01((db - MinDecibels) / dbRange)
		}
		s.freq[k] = v
	}
	return s.freq, s.wave
}
