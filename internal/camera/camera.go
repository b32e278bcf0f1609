// Package camera drives an orbiting show camera from the analysed audio:
// auto-orbit, preset switching on hard beats, beat shake, and a
// drag-to-orbit override that hands control back smoothly on release.
package camera

import (
	"math"
	"math/rand/v2"

	"github.com/satindergrewal/liteshow/internal/analysis"
)

const (
	DragThreshold  = 8.0 // pixels before a press becomes a drag
	MinYOffset     = -6.0
	MaxYOffset     = 10.0
	PresetInterval = 5.0 // seconds between automatic preset switches

	blendRate      = 0.7
	influenceRate  = 3.0
	returnRate     = 4.0
	yOffsetRate    = 2.0
	idleWindow     = 2.0
	orbitRate      = 0.12
	shakeDecay     = 0.87
	hardShake      = 0.7
	softShake      = 0.25
	dragAngleScale = 0.005
	dragYScale     = 0.03
	lookHeight     = 3.5
)

// Preset is a framing the camera eases toward.
type Preset struct {
	Radius float64
	Height float64
	FOV    float64
}

// Presets are cycled in order on hard beats.
var Presets = [...]Preset{
	{16, 5, 55},
	{9, 3.5, 65},
	{20, 1, 48},
	{12, 9, 52},
	{6, 4, 80},
}

// DropPreset overrides radius and FOV while the drop effect is active.
var DropPreset = Preset{Radius: 5, FOV: 90}

type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (v Vec3) Scale(s float64) Vec3 { return Vec3{v.X * s, v.Y * s, v.Z * s} }

// Pose is where the camera is and what it looks at.
type Pose struct {
	Position Vec3    `json:"position"`
	Target   Vec3    `json:"target"`
	FOV      float64 `json:"fov"`
	Preset   int     `json:"preset"`
	Dragging bool    `json:"dragging"`
}

// DragResult reports how a pointer release was interpreted.
type DragResult struct {
	WasDrag        bool `json:"wasDrag"`
	WasCanvasClick bool `json:"wasCanvasClick"`
}

// Input is what the camera reads from the rest of the pipeline each tick.
type Input struct {
	Time       float64 // elapsed show time, seconds
	Smoothed   analysis.FrequencyBands
	IsBeat     bool
	IsHardBeat bool
	Drop       bool    // drop effect active
	Speed      float64 // auto-orbit speed multiplier
}

type pointer struct {
	x, y  float64 // normalized to [-1,1]
	idle  float64
	down  bool
	inflX float64
	inflY float64
}

type drag struct {
	active      bool
	onCanvas    bool
	didDrag     bool
	startX      float64
	startY      float64
	prevX       float64
	prevY       float64
	yOffset     float64
	returnBlend float64
}

// Controller holds camera state. Not safe for concurrent use.
type Controller struct {
	rng *rand.Rand

	angle       float64
	radius      float64
	height      float64
	fov         float64
	preset      int
	presetTimer float64
	shake       Vec3

	ptr  pointer
	drag drag
	pose Pose
}

// New returns a controller at the first preset. rng drives beat shake.
func New(rng *rand.Rand) *Controller {
	p := Presets[0]
	c := &Controller{rng: rng, radius: p.Radius, height: p.Height, fov: p.FOV}
	c.pose = c.compose(0)
	return c
}

// PointerDown arms drag tracking when the press lands on the canvas.
// Coordinates are in pixels.
func (c *Controller) PointerDown(x, y float64, onUI bool) {
	c.ptr.down = true
	c.drag.onCanvas = !onUI
	if !onUI {
		c.drag.startX = x
		c.drag.startY = y
		c.drag.didDrag = false
	}
}

// PointerMove tracks the pointer over a w×h viewport and orbits the
// camera once a press has moved past DragThreshold.
func (c *Controller) PointerMove(x, y, w, h float64) {
	if w > 0 && h > 0 {
		c.ptr.x = x/w*2 - 1
		c.ptr.y = y/h*2 - 1
	}
	c.ptr.idle = 0

	if !c.ptr.down || !c.drag.onCanvas {
		return
	}
	if !c.drag.didDrag && math.Hypot(x-c.drag.startX, y-c.drag.startY) > DragThreshold {
		c.drag.didDrag = true
		c.drag.active = true
		c.drag.prevX = x
		c.drag.prevY = y
	}
	if c.drag.active {
		c.angle -= (x - c.drag.prevX) * dragAngleScale
		c.drag.yOffset = clamp(c.drag.yOffset+(y-c.drag.prevY)*dragYScale, MinYOffset, MaxYOffset)
		c.drag.prevX = x
		c.drag.prevY = y
	}
}

// PointerUp ends a press. A press that never became a drag is a canvas click.
func (c *Controller) PointerUp() DragResult {
	c.ptr.down = false
	res := DragResult{
		WasDrag:        c.drag.active,
		WasCanvasClick: c.drag.onCanvas && !c.drag.didDrag,
	}
	if c.drag.active {
		c.drag.active = false
		c.drag.returnBlend = 1
	}
	c.drag.onCanvas = false
	return res
}

// Dragging reports whether a drag is in progress.
func (c *Controller) Dragging() bool { return c.drag.active }

// Update advances the camera by dt seconds and returns the new pose.
// A non-positive dt returns the previous pose unchanged.
func (c *Controller) Update(dt float64, in Input) Pose {
	if dt <= 0 {
		return c.pose
	}

	c.ptr.inflX += (c.ptr.x - c.ptr.inflX) * dt * influenceRate
	c.ptr.inflY += (c.ptr.y - c.ptr.inflY) * dt * influenceRate
	c.ptr.idle += dt

	if !c.drag.active {
		c.drag.returnBlend *= math.Exp(-dt * returnRate)
		if c.drag.returnBlend < 0.001 {
			c.drag.returnBlend = 0
		}
		c.drag.yOffset *= math.Exp(-dt * yOffsetRate)
		if math.Abs(c.drag.yOffset) < 0.01 {
			c.drag.yOffset = 0
		}
	}

	auto := 1 - c.drag.returnBlend
	if c.drag.active {
		auto = 0
	}
	c.angle += dt * orbitRate * in.Speed * (1 + in.Smoothed.Mid*0.4) * auto
	if c.ptr.idle < idleWindow {
		c.angle += c.ptr.inflX * dt * 0.5 * auto
	}

	c.presetTimer += dt
	if in.IsHardBeat && c.presetTimer > PresetInterval && !c.drag.active {
		c.preset = (c.preset + 1) % len(Presets)
		c.presetTimer = 0
	}

	target := Presets[c.preset]
	if in.Drop {
		target.Radius = DropPreset.Radius
		target.FOV = DropPreset.FOV
	}
	k := 1 - math.Exp(-dt*blendRate)
	c.radius += (target.Radius - c.radius) * k
	c.height += (target.Height - c.height) * k
	c.fov += (target.FOV - c.fov) * k

	if in.IsBeat {
		i := softShake
		if in.IsHardBeat {
			i = hardShake
		}
		c.shake = Vec3{
			X: (c.rng.Float64() - 0.5) * i,
			Y: (c.rng.Float64() - 0.5) * i * 0.4,
			Z: (c.rng.Float64() - 0.5) * i,
		}
	}
	c.shake = c.shake.Scale(shakeDecay)

	c.pose = c.compose(in.Time)
	return c.pose
}

// Pose returns the pose computed by the last Update.
func (c *Controller) Pose() Pose { return c.pose }

func (c *Controller) compose(t float64) Pose {
	y := c.drag.yOffset
	return Pose{
		Position: Vec3{
			X: math.Cos(c.angle)*c.radius + c.shake.X,
			Y: c.height + y + c.shake.Y + math.Sin(t*0.25)*0.4,
			Z: math.Sin(c.angle)*c.radius + c.shake.Z,
		},
		Target: Vec3{
			Y: lookHeight + y*0.5 + math.Sin(t*0.18)*0.4 - c.ptr.inflY*1.5,
		},
		FOV:      c.fov,
		Preset:   c.preset,
		Dragging: c.drag.active,
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
