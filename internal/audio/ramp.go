package audio

// Smoothstep returns the smoothstep interpolation for t in [0,1].
// Formula: 3t^2 - 2t^3.
func Smoothstep(t float64) float64 {
	if t <= 0 {
		return 0
	}
	if t >= 1 {
		return 1
	}
	return t * t * (3 - 2*t)
}

// Ramp returns a copy of frame with its gain moving from `from` to `to`
// along a smoothstep curve. Used to fade a frame in or out when playback
// starts or stops mid-stream so listeners don't hear a click.
// Gains are scaled per sample frame so both channels move together.
func Ramp(frame []int16, from, to float64) []int16 {
	result := make([]int16, len(frame))
	frames := len(frame) / Channels
	if frames == 0 {
		return result
	}

	for i := 0; i < frames; i++ {
		progress := float64(i) / float64(frames)
		gain := from + (to-from)*Smoothstep(progress)
		for c := 0; c < Channels; c++ {
			result[i*Channels+c] = scaleSample(frame[i*Channels+c], gain)
		}
	}

	return result
}

// Scale returns a copy of frame multiplied by gain, clipped to int16 range.
func Scale(frame []int16, gain float64) []int16 {
	result := make([]int16, len(frame))
	for i, s := range frame {
		result[i] = scaleSample(s, gain)
	}
	return result
}

func scaleSample(s int16, gain float64) int16 {
	v := float64(s) * gain
	// Clip to int16 range
	if v > 32767 {
		v = 32767
	} else if v < -32768 {
		v = -32768
	}
	return int16(v)
}
