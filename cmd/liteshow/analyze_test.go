package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/satindergrewal/liteshow/internal/analysis"
	"github.com/satindergrewal/liteshow/internal/audio"
)

// kicks is a bass pulse every interval: 80 ms of 60 Hz sine, then silence.
func kicks(interval, total time.Duration) *audio.Track {
	frames := audio.DurationToFrames(total)
	every := audio.DurationToFrames(interval)
	hit := audio.DurationToFrames(80 * time.Millisecond)
	samples := make([]int16, frames*audio.Channels)
	for i := 0; i < frames; i++ {
		if i%every >= hit {
			continue
		}
		v := int16(0.9 * 32767 * math.Sin(2*math.Pi*60*float64(i)/audio.SampleRate))
		samples[i*2] = v
		samples[i*2+1] = v
	}
	return audio.NewTrack("kicks", "", samples)
}

func TestAnalyzeSilence(t *testing.T) {
	tr := audio.NewTrack("quiet", "", make([]int16, 2*audio.SampleRate*audio.Channels))
	var out bytes.Buffer
	sum, err := analyze(tr, 60, analysis.PeakPerFrame, &out)
	if err != nil {
		t.Fatal(err)
	}
	if sum.Beats != 0 || sum.BPM != 0 {
		t.Errorf("silence produced %d beats at %v BPM", sum.Beats, sum.BPM)
	}
	if sum.Ticks < 119 || sum.Ticks > 121 {
		t.Errorf("Ticks = %d, want about 120 for 2s at 60 Hz", sum.Ticks)
	}

	lines := bytes.Count(out.Bytes(), []byte("\n"))
	if lines != 1 {
		t.Errorf("output has %d lines, want only the summary", lines)
	}
}

func TestAnalyzeKicks(t *testing.T) {
	// Kicks far enough apart for the smoothed spectrum to fall silent between them.
	tr := kicks(1500*time.Millisecond, 9*time.Second)
	var out bytes.Buffer
	sum, err := analyze(tr, 60, analysis.PeakPerFrame, &out)
	if err != nil {
		t.Fatal(err)
	}
	if sum.Beats < 4 {
		t.Fatalf("Beats = %d, want most of 6 kicks", sum.Beats)
	}
	if math.Abs(sum.BPM-40) > 2 {
		t.Errorf("BPM = %v, want about 40", sum.BPM)
	}
	if sum.HardBeats > sum.Beats {
		t.Errorf("HardBeats %d > Beats %d", sum.HardBeats, sum.Beats)
	}

	// Every line is valid JSON; the last one is the summary.
	sc := bufio.NewScanner(&out)
	var last []byte
	n := 0
	for sc.Scan() {
		if !json.Valid(sc.Bytes()) {
			t.Fatalf("line %d is not JSON: %s", n, sc.Bytes())
		}
		last = append(last[:0], sc.Bytes()...)
		n++
	}
	if n != sum.Beats+1 {
		t.Errorf("%d lines for %d beats", n, sum.Beats)
	}
	var got summary
	json.Unmarshal(last, &got)
	if got.Beats != sum.Beats || got.Track != "kicks" {
		t.Errorf("summary line = %+v", got)
	}
}

func TestEstimateBPM(t *testing.T) {
	tests := []struct {
		times []float64
		want  float64
	}{
		{nil, 0},
		{[]float64{1}, 0},
		{[]float64{0, 0.5, 1, 1.5}, 120},
		{[]float64{0, 0.5, 1, 1.5, 3}, 120}, // one missed beat doesn't move the median
		{[]float64{0, 1, 2}, 60},
	}
	for _, tt := range tests {
		if got := estimateBPM(tt.times); got != tt.want {
			t.Errorf("estimateBPM(%v) = %v, want %v", tt.times, got, tt.want)
		}
	}
}

func TestTickStep(t *testing.T) {
	tests := []struct {
		rate    int
		want    time.Duration
		wantErr bool
	}{
		{60, time.Second / 60, false},
		{1, time.Second, false},
		{1e9, time.Nanosecond, false},
		{0, 0, true},
		{-5, 0, true},
		{2e9, 0, true},
	}
	for _, tt := range tests {
		got, err := tickStep(tt.rate)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("tickStep(%d) = %v, %v; want %v, err %v", tt.rate, got, err, tt.want, tt.wantErr)
		}
	}
}

func TestAnalyzeRejectsStalledRate(t *testing.T) {
	tr := audio.NewTrack("short", "", make([]int16, audio.SampleRate*audio.Channels))
	var out bytes.Buffer
	if _, err := analyze(tr, 2e9, analysis.PeakPerFrame, &out); err == nil {
		t.Fatal("a rate with a zero step should be rejected, not loop forever")
	}
}
