package engine

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/satindergrewal/liteshow/internal/analysis"
	"github.com/satindergrewal/liteshow/internal/audio"
	"github.com/satindergrewal/liteshow/internal/fx"
	"github.com/satindergrewal/liteshow/internal/stream"
	"github.com/satindergrewal/liteshow/internal/transport"
)

const dt = 1.0 / 60

// toneTrack is a sine at freq Hz, amplitude amp, for d.
func toneTrack(freq, amp float64, d time.Duration) *audio.Track {
	frames := audio.DurationToFrames(d)
	samples := make([]int16, frames*audio.Channels)
	for i := 0; i < frames; i++ {
		v := int16(amp * 32767 * math.Sin(2*math.Pi*freq*float64(i)/audio.SampleRate))
		samples[i*2] = v
		samples[i*2+1] = v
	}
	return audio.NewTrack("tone", "test", samples)
}

func newEngine() (*Engine, *transport.ManualClock) {
	clk := &transport.ManualClock{}
	return New(transport.New(clk), Options{Seed: 1}), clk
}

// tick advances the transport clock in step with the engine.
func tick(e *Engine, clk *transport.ManualClock, d float64) Snapshot {
	clk.Advance(time.Duration(d * float64(time.Second)))
	return e.Tick(d)
}

func TestTickIdle(t *testing.T) {
	e, clk := newEngine()
	var s Snapshot
	for i := 0; i < 30; i++ {
		s = tick(e, clk, dt)
	}
	if s.Raw != (analysis.FrequencyBands{}) || s.IsBeat {
		t.Errorf("idle engine produced audio output: %+v", s.Raw)
	}
	if s.Seq != 30 {
		t.Errorf("Seq = %d, want 30", s.Seq)
	}
	if s.Spectrum != nil {
		t.Error("idle engine should not publish a spectrum")
	}
	if s.Camera.Position == (Snapshot{}).Camera.Position {
		t.Error("camera should still move while idle")
	}
}

func TestZeroDtReturnsPrevious(t *testing.T) {
	e, clk := newEngine()
	first := tick(e, clk, dt)
	if again := e.Tick(0); again.Seq != first.Seq || again.Time != first.Time {
		t.Errorf("dt=0 advanced the engine: seq %d -> %d", first.Seq, again.Seq)
	}
	if again := e.Tick(-1); again.Seq != first.Seq {
		t.Error("negative dt advanced the engine")
	}
}

func TestPlayingToneProducesBeats(t *testing.T) {
	e, clk := newEngine()
	e.Commit(toneTrack(70, 0.8, 5*time.Second))
	if err := e.Transport().Play(); err != nil {
		t.Fatal(err)
	}

	beats := 0
	var s Snapshot
	for i := 0; i < 60; i++ {
		s = tick(e, clk, dt)
		if s.IsBeat {
			beats++
		}
		if s.IsHardBeat && !s.IsBeat {
			t.Fatalf("hard beat without beat at tick %d", i)
		}
	}
	if beats == 0 {
		t.Error("a loud bass tone after silence should fire at least one beat")
	}
	if s.Smoothed.SubBass <= 0 || s.Raw.SubBass <= s.Raw.High {
		t.Errorf("bass tone not reflected in bands: raw %+v", s.Raw)
	}
	if len(s.Spectrum) != analysis.BinCount || len(s.Waveform) != analysis.BinCount {
		t.Errorf("spectrum %d waveform %d, want %d", len(s.Spectrum), len(s.Waveform), analysis.BinCount)
	}
	if !s.Transport.Playing || s.Transport.Position <= 0 {
		t.Errorf("transport state = %+v", s.Transport)
	}
}

func TestSnapshotsDoNotShareSlices(t *testing.T) {
	e, clk := newEngine()
	e.Commit(toneTrack(70, 0.8, time.Second))
	e.Transport().Play()
	a := tick(e, clk, dt)
	keep := a.Spectrum[3]
	b := tick(e, clk, dt)
	b.Spectrum[3] = -1
	if a.Spectrum[3] != keep {
		t.Error("a later snapshot mutated an earlier one")
	}
}

func TestPausedFreezesAnalysis(t *testing.T) {
	e, clk := newEngine()
	e.Commit(toneTrack(70, 0.8, 5*time.Second))
	e.Transport().Play()
	for i := 0; i < 20; i++ {
		tick(e, clk, dt)
	}
	e.Transport().Pause()
	frozen := tick(e, clk, dt)
	for i := 0; i < 30; i++ {
		s := tick(e, clk, dt)
		if s.IsBeat {
			t.Fatal("beat reported while paused")
		}
		if s.Smoothed != frozen.Smoothed {
			t.Fatal("smoothed bands changed while paused")
		}
	}
}

func TestCanvasClickFiresManualBeat(t *testing.T) {
	e, clk := newEngine()
	e.Commit(toneTrack(70, 0, 5*time.Second)) // silence: the detector runs but never fires
	e.Transport().Play()
	for i := 0; i < 5; i++ {
		tick(e, clk, dt)
	}
	e.PointerDown(100, 100, false)
	res := e.PointerUp()
	if !res.WasCanvasClick {
		t.Fatalf("PointerUp = %+v, want click", res)
	}

	s := tick(e, clk, dt)
	if !s.IsBeat || !s.IsHardBeat || s.TimeSinceLastBeat != 0 {
		t.Errorf("manual beat snapshot: beat %v hard %v since %v", s.IsBeat, s.IsHardBeat, s.TimeSinceLastBeat)
	}
	if s.Pointer == nil || !s.Pointer.WasCanvasClick {
		t.Errorf("snapshot should carry the release result, got %+v", s.Pointer)
	}

	s = tick(e, clk, dt)
	if s.IsBeat || s.Pointer != nil {
		t.Errorf("manual beat should last one tick: beat %v pointer %+v", s.IsBeat, s.Pointer)
	}
	if math.Abs(s.TimeSinceLastBeat-dt) > 1e-9 {
		t.Errorf("TimeSinceLastBeat = %v, want %v", s.TimeSinceLastBeat, dt)
	}
}

func TestCanvasClickWhilePausedIsIgnored(t *testing.T) {
	e, clk := newEngine()
	e.PointerDown(100, 100, false)
	if res := e.PointerUp(); !res.WasCanvasClick {
		t.Fatalf("PointerUp = %+v, want click", res)
	}
	if s := tick(e, clk, dt); s.IsBeat {
		t.Error("a click with nothing playing should not fire a beat")
	}
}

func TestColorCyclesPalette(t *testing.T) {
	e, clk := newEngine()
	for i := 1; i <= PaletteCount+1; i++ {
		e.Trigger(fx.Color)
		if got, want := tick(e, clk, dt).Palette, i%PaletteCount; got != want {
			t.Fatalf("after %d color triggers palette = %d, want %d", i, got, want)
		}
	}
	e.Trigger(fx.Strobe)
	if got := tick(e, clk, dt).Palette; got != 1 {
		t.Errorf("strobe changed palette to %d", got)
	}
}

func TestDragDoesNotFireBeat(t *testing.T) {
	e, clk := newEngine()
	e.PointerDown(100, 100, false)
	e.PointerMove(150, 100, 800, 600)
	if res := e.PointerUp(); !res.WasDrag {
		t.Fatalf("PointerUp = %+v, want drag", res)
	}
	if s := tick(e, clk, dt); s.IsBeat {
		t.Error("a drag should not fire a beat")
	}
}

func TestEffectsInSnapshot(t *testing.T) {
	e, clk := newEngine()
	e.Trigger(fx.Color)
	e.Trigger(fx.Burst)
	s := tick(e, clk, 0.5)
	if got := s.FX.Get(fx.Color); math.Abs(got-0.65) > 1e-9 {
		t.Errorf("color = %v, want 0.65", got)
	}
	if !s.BurstImpulse {
		t.Error("burst impulse should fire on the first tick")
	}
	if s = tick(e, clk, dt); s.BurstImpulse {
		t.Error("burst impulse fired twice")
	}
}

func TestDropWidensFOV(t *testing.T) {
	e, clk := newEngine()
	start := tick(e, clk, dt).Camera.FOV
	e.Trigger(fx.Drop)
	var s Snapshot
	for i := 0; i < 60; i++ {
		s = tick(e, clk, dt)
	}
	if s.Camera.FOV <= start {
		t.Errorf("FOV during drop = %v, want above %v", s.Camera.FOV, start)
	}
}

func TestCommitResetsTransport(t *testing.T) {
	e, clk := newEngine()
	e.Commit(toneTrack(70, 0.5, 2*time.Second))
	e.Transport().Play()
	tick(e, clk, 0.5)
	e.Commit(toneTrack(200, 0.5, 3*time.Second))
	s := tick(e, clk, dt)
	if s.Transport.Playing || s.Transport.Position != 0 || s.Transport.Duration != 3 {
		t.Errorf("after commit: %+v", s.Transport)
	}
}

func TestNaturalEndPauses(t *testing.T) {
	e, clk := newEngine()
	e.Commit(toneTrack(70, 0.5, 200*time.Millisecond))
	e.Transport().Play()
	var s Snapshot
	for i := 0; i < 20; i++ {
		s = tick(e, clk, 0.05)
	}
	if s.Transport.Playing {
		t.Error("transport should pause at the end of the track")
	}
	if math.Abs(s.Transport.Position-0.2) > 1e-9 {
		t.Errorf("Position = %v, want 0.2", s.Transport.Position)
	}
}

func TestCameraSpeed(t *testing.T) {
	if got := CameraSpeed(0, 0); got != 0.8 {
		t.Errorf("CameraSpeed(0,0) = %v, want 0.8", got)
	}
	if got := CameraSpeed(0, 1); math.Abs(got-1.4) > 1e-12 {
		t.Errorf("CameraSpeed(0,1) = %v, want 1.4", got)
	}
}

func TestLite(t *testing.T) {
	s := Snapshot{Seq: 3, Spectrum: []float64{1}, Waveform: []float64{2}}
	lite := s.Lite()
	if lite.Spectrum != nil || lite.Waveform != nil || lite.Seq != 3 {
		t.Errorf("Lite = %+v", lite)
	}
	if s.Spectrum == nil {
		t.Error("Lite modified the original")
	}
}

// --- Loop ---

func startLoop(t *testing.T, out *stream.Broadcaster[Snapshot]) (*Loop, context.CancelFunc) {
	t.Helper()
	e := New(transport.New(transport.NewSystemClock()), Options{Seed: 2})
	l := NewLoop(e, transport.NewSystemClock(), 200, 50*time.Millisecond, out)
	ctx, cancel := context.WithCancel(context.Background())
	go l.Run(ctx)
	return l, cancel
}

func TestLoopPublishes(t *testing.T) {
	out := stream.NewBroadcaster[Snapshot](16)
	sub := out.Subscribe()
	l, cancel := startLoop(t, out)
	defer cancel()

	select {
	case s := <-sub.C:
		if s.Seq == 0 {
			t.Error("published snapshot should have advanced")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot published")
	}
	if l.Latest().Seq == 0 {
		t.Error("Latest should track published snapshots")
	}
}

func TestLoopDo(t *testing.T) {
	l, cancel := startLoop(t, nil)
	defer cancel()

	ctx, done := context.WithTimeout(context.Background(), 2*time.Second)
	defer done()
	var level float64
	err := l.Do(ctx, func(e *Engine) {
		e.Trigger(fx.Strobe)
		level = e.effects.Levels().Get(fx.Strobe)
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if level != 1 {
		t.Errorf("strobe level inside Do = %v, want 1", level)
	}
}

func TestLoopDoAfterStop(t *testing.T) {
	l, cancel := startLoop(t, nil)
	cancel()
	<-l.stopped
	if err := l.Do(context.Background(), func(*Engine) {}); !errors.Is(err, ErrStopped) {
		t.Errorf("Do after stop = %v, want ErrStopped", err)
	}
}

func TestLoopClampsStep(t *testing.T) {
	e, _ := newEngine()
	l := NewLoop(e, &transport.ManualClock{}, 60, 50*time.Millisecond, nil)
	l.step(time.Second)
	if got := l.Latest().DT; got != 0.05 {
		t.Errorf("DT = %v, want 0.05", got)
	}
}

func TestLoopZeroMaxStepStillClamps(t *testing.T) {
	e, _ := newEngine()
	l := NewLoop(e, &transport.ManualClock{}, 60, 0, nil)
	l.step(10 * time.Second)
	if got, want := l.Latest().DT, DefaultMaxStep.Seconds(); got != want {
		t.Errorf("DT = %v, want %v", got, want)
	}
}
