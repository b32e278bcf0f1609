// Package engine composes the analysis stages, effects and camera into one
// immutable Snapshot per tick.
package engine

import (
	"math"
	"math/rand/v2"

	"github.com/satindergrewal/liteshow/internal/analysis"
	"github.com/satindergrewal/liteshow/internal/audio"
	"github.com/satindergrewal/liteshow/internal/camera"
	"github.com/satindergrewal/liteshow/internal/fx"
	"github.com/satindergrewal/liteshow/internal/transport"
)

// Snapshot is everything visual consumers read for one tick.
// Treat it as read-only: its slices are never reused by the engine.
type Snapshot struct {
	Seq  uint64  `json:"seq"`
	Time float64 `json:"time"` // engine time, seconds
	DT   float64 `json:"dt"`

	Raw      analysis.FrequencyBands `json:"raw"`
	Smoothed analysis.FrequencyBands `json:"smoothed"`
	Peak     analysis.FrequencyBands `json:"peak"`

	IsBeat            bool    `json:"isBeat"`
	IsHardBeat        bool    `json:"isHardBeat"`
	TimeSinceLastBeat float64 `json:"timeSinceLastBeat"`
	Sensitivity       float64 `json:"sensitivity"`

	FX           fx.Levels `json:"fx"`
	BurstImpulse bool      `json:"burstImpulse"`
	Palette      int       `json:"palette"` // index into the renderer's palettes

	Camera  camera.Pose        `json:"camera"`
	Pointer *camera.DragResult `json:"pointer,omitempty"` // set on the tick after a release

	Transport transport.State `json:"transport"`

	Spectrum []float64 `json:"spectrum,omitempty"`
	Waveform []float64 `json:"waveform,omitempty"`
}

// Lite returns a copy without the spectrum and waveform arrays.
func (s Snapshot) Lite() Snapshot {
	s.Spectrum = nil
	s.Waveform = nil
	return s
}

// PaletteCount is how many colour palettes the color effect cycles through.
const PaletteCount = 6

// Options configures an Engine.
type Options struct {
	PeakMode analysis.PeakMode
	Seed     uint64 // camera shake RNG; 0 picks a random seed
}

// Engine owns every piece of per-tick state. It is not safe for concurrent
// use; Loop gives it a single owning goroutine.
type Engine struct {
	transport *transport.Transport
	sampler   *analysis.Sampler
	envelope  *analysis.Envelope
	detector  *analysis.Detector
	effects   fx.Set
	camera    *camera.Controller

	time        float64
	seq         uint64
	raw         analysis.FrequencyBands
	sensitivity float64
	manualBeat  bool
	palette     int
	release     *camera.DragResult
	last        Snapshot
}

// New builds an engine around tr.
func New(tr *transport.Transport, opts Options) *Engine {
	seed := opts.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	e := &Engine{
		transport:   tr,
		sampler:     analysis.NewSampler(),
		envelope:    analysis.NewEnvelope(opts.PeakMode),
		detector:    analysis.NewDetector(),
		camera:      camera.New(rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))),
		sensitivity: analysis.Sensitivity(0, 0),
	}
	e.last = e.snapshot(0, false)
	return e
}

// Tick advances everything by dt seconds and returns the new snapshot.
// A non-positive dt changes nothing and returns the previous snapshot.
func (e *Engine) Tick(dt float64) Snapshot {
	if dt <= 0 {
		return e.last
	}
	e.time += dt
	e.seq++

	e.transport.Update()

	var spectrum, waveform []float64
	beat := analysis.BeatState{TimeSinceLastBeat: e.detector.State().TimeSinceLastBeat}
	if e.transport.Playing() {
		e.sensitivity = analysis.Sensitivity(e.time, e.envelope.Smoothed().Energy)
		freq, wave := e.sampler.SampleTrack(e.transport.Track(), e.transport.Position())
		e.raw = analysis.Extract(freq, e.sensitivity)
		e.envelope.Update(e.raw, dt)
		beat = e.detector.Update(e.raw, dt)
		spectrum = append([]float64(nil), freq...)
		waveform = append([]float64(nil), wave...)
	}

	if e.manualBeat {
		e.manualBeat = false
		e.detector.Mark()
		beat.IsBeat = true
		beat.IsHardBeat = true
		beat.TimeSinceLastBeat = 0
	}

	impulse := e.effects.Tick(dt)
	levels := e.effects.Levels()

	smoothed := e.envelope.Smoothed()
	e.camera.Update(dt, camera.Input{
		Time:       e.time,
		Smoothed:   smoothed,
		IsBeat:     beat.IsBeat,
		IsHardBeat: beat.IsHardBeat,
		Drop:       levels.Active(fx.Drop),
		Speed:      CameraSpeed(e.time, smoothed.Energy),
	})

	s := e.snapshot(dt, impulse)
	s.IsBeat = beat.IsBeat
	s.IsHardBeat = beat.IsHardBeat
	s.TimeSinceLastBeat = beat.TimeSinceLastBeat
	s.Spectrum = spectrum
	s.Waveform = waveform
	e.last = s
	return s
}

func (e *Engine) snapshot(dt float64, impulse bool) Snapshot {
	s := Snapshot{
		Seq:               e.seq,
		Time:              e.time,
		DT:                dt,
		Raw:               e.raw,
		Smoothed:          e.envelope.Smoothed(),
		Peak:              e.envelope.Peak(),
		TimeSinceLastBeat: e.detector.State().TimeSinceLastBeat,
		Sensitivity:       e.sensitivity,
		FX:                e.effects.Levels(),
		BurstImpulse:      impulse,
		Palette:           e.palette,
		Camera:            e.camera.Pose(),
		Pointer:           e.release,
		Transport:         e.transport.State(),
	}
	e.release = nil
	return s
}

// CameraSpeed is the slowly drifting auto-orbit speed.
func CameraSpeed(t, energy float64) float64 {
	return 0.8 + math.Sin(t*0.05)*0.4 + energy*0.6
}

// Last returns the most recent snapshot.
func (e *Engine) Last() Snapshot { return e.last }

// Transport exposes the playback clock for commands run on the loop.
func (e *Engine) Transport() *transport.Transport { return e.transport }

// Trigger fires an effect. Color also steps the palette.
func (e *Engine) Trigger(effect fx.Effect) {
	e.effects.Trigger(effect)
	if effect == fx.Color {
		e.palette = (e.palette + 1) % PaletteCount
	}
}

// Beat fires a manual beat on the next tick. Detector history and
// cooldown are left alone.
func (e *Engine) Beat() { e.manualBeat = true }

// PointerDown forwards a press in pixel coordinates.
func (e *Engine) PointerDown(x, y float64, onUI bool) { e.camera.PointerDown(x, y, onUI) }

// PointerMove forwards pointer motion over a w×h viewport.
func (e *Engine) PointerMove(x, y, w, h float64) { e.camera.PointerMove(x, y, w, h) }

// PointerUp ends a press. A canvas click during playback fires a manual beat.
func (e *Engine) PointerUp() camera.DragResult {
	res := e.camera.PointerUp()
	if res.WasCanvasClick && e.transport.Playing() {
		e.Beat()
	}
	e.release = &res
	return res
}

// Commit swaps in a freshly decoded track. The transport is reset to the
// start without playing and the sampler forgets the old track's spectrum.
func (e *Engine) Commit(t *audio.Track) {
	e.transport.Load(t)
	e.sampler.Reset()
}
