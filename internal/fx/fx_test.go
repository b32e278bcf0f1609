package fx

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
)

func TestParse(t *testing.T) {
	for _, e := range All() {
		got, err := Parse(e.String())
		if err != nil || got != e {
			t.Errorf("Parse(%q) = %v, %v", e, got, err)
		}
	}
	if _, err := Parse("laser"); !errors.Is(err, ErrUnknownEffect) {
		t.Errorf("Parse(laser) error = %v, want ErrUnknownEffect", err)
	}
}

func TestFromKey(t *testing.T) {
	tests := []struct {
		key  rune
		want Effect
		ok   bool
	}{
		{'1', Strobe, true},
		{'2', Drop, true},
		{'7', Burst, true},
		{'8', Divine, true},
		{'9', 0, false},
		{'0', 0, false},
		{'a', 0, false},
	}
	for _, tt := range tests {
		got, ok := FromKey(tt.key)
		if ok != tt.ok || (ok && got != tt.want) {
			t.Errorf("FromKey(%q) = %v, %v, want %v, %v", tt.key, got, ok, tt.want, tt.ok)
		}
	}
}

func TestTriggerThenDecay(t *testing.T) {
	var s Set
	s.Trigger(Color)
	s.Tick(0.5)
	if got := s.Levels().Get(Color); math.Abs(got-0.65) > 1e-9 {
		t.Errorf("after one tick = %v, want 0.65", got)
	}
	s.Tick(0.5)
	if got := s.Levels().Get(Color); math.Abs(got-0.3) > 1e-9 {
		t.Errorf("after two ticks = %v, want 0.3", got)
	}
	s.Tick(0.5)
	if got := s.Levels().Get(Color); got != 0 {
		t.Errorf("after three ticks = %v, want 0", got)
	}
	if s.Phase(Color) != Idle {
		t.Errorf("phase = %v, want idle", s.Phase(Color))
	}
}

func TestDecayReachesExactlyZero(t *testing.T) {
	var s Set
	s.Trigger(Strobe)
	s.Tick(1)
	if got := s.Levels().Get(Strobe); math.Abs(got-0.3) > 1e-9 {
		t.Errorf("after 1s = %v, want 0.3", got)
	}
	s.Tick(1)
	if got := s.Levels().Get(Strobe); got != 0 {
		t.Errorf("after 2s = %v, want exactly 0", got)
	}
}

func TestRetriggerDoesNotStack(t *testing.T) {
	var s Set
	for i := 0; i < 5; i++ {
		s.Trigger(Drop)
	}
	if got := s.Levels().Get(Drop); got != 1 {
		t.Errorf("level = %v, want 1", got)
	}
	s.Tick(0.1)
	s.Trigger(Drop)
	if got := s.Levels().Get(Drop); got != 1 {
		t.Errorf("retrigger level = %v, want 1", got)
	}
}

func TestTickInactiveIsNoop(t *testing.T) {
	var s Set
	s.Tick(0.05)
	for _, e := range All() {
		if s.Levels().Active(e) || s.Phase(e) != Idle {
			t.Errorf("%s changed on idle tick", e)
		}
	}
}

func TestBurstImpulseOncePerTrigger(t *testing.T) {
	var s Set
	s.Trigger(Burst)
	if s.Phase(Burst) != Armed {
		t.Fatalf("phase after trigger = %v, want armed", s.Phase(Burst))
	}

	if !s.Tick(1.0 / 60) {
		t.Fatal("first tick after trigger should fire the impulse")
	}
	// Still above ImpulseLevel for several more ticks, but spent.
	for i := 0; i < 5; i++ {
		if s.Levels().Get(Burst) <= ImpulseLevel {
			t.Fatalf("level fell below impulse level too early: %v", s.Levels().Get(Burst))
		}
		if s.Tick(1.0 / 60) {
			t.Fatalf("impulse fired again at tick %d", i+2)
		}
	}

	s.Trigger(Burst)
	if !s.Tick(1.0 / 60) {
		t.Error("a new trigger should re-arm the impulse")
	}
}

func TestBurstImpulseSurvivesLongTicks(t *testing.T) {
	for _, dt := range []float64{0.2, 0.5, 2} {
		var s Set
		s.Trigger(Burst)
		fired := 0
		for i := 0; i < 10; i++ {
			if s.Tick(dt) {
				fired++
			}
		}
		if fired != 1 {
			t.Errorf("dt=%v: impulse fired %d times, want 1", dt, fired)
		}
	}
}

func TestOtherEffectsNoImpulse(t *testing.T) {
	var s Set
	s.Trigger(Divine)
	s.Trigger(Spin)
	if s.Tick(1.0 / 60) {
		t.Error("only burst has an impulse")
	}
	if s.Phase(Divine) != Decaying {
		t.Errorf("phase = %v, want decaying", s.Phase(Divine))
	}
}

func TestZeroDtKeepsArmed(t *testing.T) {
	var s Set
	s.Trigger(Burst)
	if s.Tick(0) {
		t.Error("dt=0 should not fire the impulse")
	}
	if s.Phase(Burst) != Armed || s.Levels().Get(Burst) != 1 {
		t.Errorf("dt=0 changed burst: phase %v level %v", s.Phase(Burst), s.Levels().Get(Burst))
	}
}

func TestLevelsJSON(t *testing.T) {
	var s Set
	s.Trigger(Bloom)
	data, err := json.Marshal(s.Levels())
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]float64
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatal(err)
	}
	if len(m) != Count {
		t.Errorf("got %d keys, want %d", len(m), Count)
	}
	if m["bloom"] != 1 || m["strobe"] != 0 {
		t.Errorf("unexpected levels %v", m)
	}
}
