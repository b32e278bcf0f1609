package analysis

const (
	HistorySize = 60

	BeatThreshold     = 1.4
	HardBeatThreshold = 1.8
	BeatMinEnergy     = 0.15
	HardBeatMinEnergy = 0.3
	BeatCooldown      = 0.12
	HardBeatCooldown  = 0.15

	// initialTimeSinceBeat reads as "long ago" before the first beat.
	initialTimeSinceBeat = 99
)

// BeatState is the detector's output for one tick.
type BeatState struct {
	IsBeat            bool    `json:"isBeat"`
	IsHardBeat        bool    `json:"isHardBeat"`
	Cooldown          float64 `json:"cooldown"`
	TimeSinceLastBeat float64 `json:"timeSinceLastBeat"`
	Onset             float64 `json:"onset"`
	Mean              float64 `json:"mean"`
}

// Detector finds beats by comparing bass-weighted onset energy against
// its rolling mean. The history starts zero-filled, so the first second
// of a track fires easily.
type Detector struct {
	history [HistorySize]float64
	idx     int
	state   BeatState
}

// NewDetector returns a detector with an empty history.
func NewDetector() *Detector {
	return &Detector{state: BeatState{TimeSinceLastBeat: initialTimeSinceBeat}}
}

// Onset is the bass-weighted energy used for detection.
func Onset(raw FrequencyBands) float64 {
	return 0.6*raw.SubBass + 0.4*raw.Bass
}

// Update feeds one tick of raw (unsmoothed) bands and returns the new state.
// A non-positive dt leaves the state untouched.
func (d *Detector) Update(raw FrequencyBands, dt float64) BeatState {
	if dt <= 0 {
		return d.state
	}

	onset := Onset(raw)
	d.history[d.idx] = onset
	d.idx = (d.idx + 1) % HistorySize

	var sum float64
	for _, v := range d.history {
		sum += v
	}
	mean := sum / HistorySize

	s := &d.state
	s.Onset = onset
	s.Mean = mean
	s.Cooldown -= dt
	if s.Cooldown < 0 {
		s.Cooldown = 0
	}
	s.TimeSinceLastBeat += dt
	s.IsBeat = false
	s.IsHardBeat = false

	if s.Cooldown <= 0 && onset > mean*BeatThreshold && onset > BeatMinEnergy {
		s.IsBeat = true
		s.TimeSinceLastBeat = 0
		s.Cooldown = BeatCooldown
		if onset > mean*HardBeatThreshold && onset > HardBeatMinEnergy {
			s.IsHardBeat = true
			s.Cooldown = HardBeatCooldown
		}
	}
	return d.state
}

// Mark records a beat that came from outside the audio, such as a click.
// Only the time since the last beat moves; history and cooldown are kept.
func (d *Detector) Mark() {
	d.state.TimeSinceLastBeat = 0
}

// State returns the most recent state without advancing.
func (d *Detector) State() BeatState { return d.state }

// Reset clears history and cooldown.
func (d *Detector) Reset() {
	*d = *NewDetector()
}
