package main

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"slices"
	"time"

	"github.com/satindergrewal/liteshow/internal/analysis"
	"github.com/satindergrewal/liteshow/internal/audio"
	"github.com/satindergrewal/liteshow/internal/engine"
	"github.com/satindergrewal/liteshow/internal/transport"
)

type beatLine struct {
	Time     float64 `json:"t"`
	Hard     bool    `json:"hard"`
	Energy   float64 `json:"energy"`
	SubBass  float64 `json:"subBass"`
	Bass     float64 `json:"bass"`
	Position float64 `json:"position"`
}

type summary struct {
	Track     string  `json:"track"`
	Duration  float64 `json:"duration"`
	Ticks     int     `json:"ticks"`
	Beats     int     `json:"beats"`
	HardBeats int     `json:"hardBeats"`
	BPM       float64 `json:"bpm"` // from the median beat interval, 0 with fewer than two beats
}

// tickStep is the clock advance per tick. Rates too high for a
// nanosecond step would never move the clock.
func tickStep(rate int) (time.Duration, error) {
	if rate <= 0 || time.Second/time.Duration(rate) == 0 {
		return 0, fmt.Errorf("--rate must be between 1 and %d, got %d", int(time.Second), rate)
	}
	return time.Second / time.Duration(rate), nil
}

// analyze plays t through a fresh engine on a manual clock, ticking rate
// times per second until the track ends.
func analyze(t *audio.Track, rate int, mode analysis.PeakMode, w io.Writer) (summary, error) {
	step, err := tickStep(rate)
	if err != nil {
		return summary{}, err
	}
	clock := &transport.ManualClock{}
	eng := engine.New(transport.New(clock), engine.Options{PeakMode: mode, Seed: 1})
	eng.Commit(t)
	if err := eng.Transport().Play(); err != nil {
		return summary{}, err
	}

	enc := json.NewEncoder(w)
	dt := step.Seconds()

	sum := summary{Track: t.Name, Duration: t.Duration.Seconds()}
	var beatTimes []float64
	for eng.Transport().Playing() {
		clock.Advance(step)
		s := eng.Tick(dt)
		sum.Ticks++
		if !s.IsBeat {
			continue
		}
		sum.Beats++
		if s.IsHardBeat {
			sum.HardBeats++
		}
		beatTimes = append(beatTimes, s.Transport.Position)
		if err := enc.Encode(beatLine{
			Time:     s.Time,
			Hard:     s.IsHardBeat,
			Energy:   s.Raw.Energy,
			SubBass:  s.Raw.SubBass,
			Bass:     s.Raw.Bass,
			Position: s.Transport.Position,
		}); err != nil {
			return sum, err
		}
	}
	sum.BPM = estimateBPM(beatTimes)
	return sum, enc.Encode(sum)
}

// estimateBPM converts the median gap between beats into beats per minute.
func estimateBPM(times []float64) float64 {
	if len(times) < 2 {
		return 0
	}
	gaps := make([]float64, 0, len(times)-1)
	for i := 1; i < len(times); i++ {
		gaps = append(gaps, times[i]-times[i-1])
	}
	slices.Sort(gaps)
	median := gaps[len(gaps)/2]
	if len(gaps)%2 == 0 {
		median = (gaps[len(gaps)/2-1] + gaps[len(gaps)/2]) / 2
	}
	if median <= 0 {
		return 0
	}
	return math.Round(60/median*10) / 10
}
