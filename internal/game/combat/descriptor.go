package combat

import (
	"time"

	"github.com/cory-johannsen/rogue/internal/game/geom"
)

const (
	// SwingDuration is how long a melee swing sweeps its arc.
	SwingDuration = 200 * time.Millisecond
	// BowDuration is how long a bow draw stays visible.
	BowDuration = 150 * time.Millisecond
	// HalfFanDegrees is the half-width of the hit fan around the sweep angle.
	HalfFanDegrees = 15.0
)

// Kind distinguishes sweeping swings from static bow draws.
type Kind int

const (
	KindSwing Kind = iota
	KindBow
)

func (k Kind) String() string {
	switch k {
	case KindSwing:
		return "swing"
	case KindBow:
		return "bow"
	default:
		return "unknown"
	}
}

// Descriptor is an immutable description of one attack in flight. Angles are
// radians.
type Descriptor struct {
	Kind       Kind
	Origin     geom.Vec
	Direction  geom.Vec
	Range      float64
	BaseAngle  float64
	StartAngle float64
	EndAngle   float64
	HalfFan    float64
	Start      time.Time
	Duration   time.Duration
}

// NewSwing describes a swing from origin centered on aim, sweeping widthDeg
// degrees.
//
// Precondition: rangeTiles > 0.
func NewSwing(origin, aim geom.Vec, rangeTiles, widthDeg float64, now time.Time) Descriptor {
	dir := aim.Normalize()
	center := dir.Angle()
	half := geom.Radians(widthDeg) / 2
	return Descriptor{
		Kind:       KindSwing,
		Origin:     origin,
		Direction:  dir,
		Range:      rangeTiles,
		BaseAngle:  center,
		StartAngle: center - half,
		EndAngle:   center + half,
		HalfFan:    geom.Radians(HalfFanDegrees),
		Start:      now,
		Duration:   SwingDuration,
	}
}

// NewBow describes a static bow draw along aim.
func NewBow(origin, aim geom.Vec, rangeTiles float64, now time.Time) Descriptor {
	dir := aim.Normalize()
	angle := dir.Angle()
	return Descriptor{
		Kind:       KindBow,
		Origin:     origin,
		Direction:  dir,
		Range:      rangeTiles,
		BaseAngle:  angle,
		StartAngle: angle,
		EndAngle:   angle,
		Start:      now,
		Duration:   BowDuration,
	}
}

// CurrentAngle returns the sweep angle at t: StartAngle up to Start,
// EndAngle from Start+Duration, linear in between.
func (d Descriptor) CurrentAngle(t time.Time) float64 {
	elapsed := t.Sub(d.Start)
	if elapsed <= 0 {
		return d.StartAngle
	}
	if elapsed >= d.Duration {
		return d.EndAngle
	}
	frac := float64(elapsed) / float64(d.Duration)
	return d.StartAngle + (d.EndAngle-d.StartAngle)*frac
}

// IsActive reports whether t falls before the end of the attack.
func (d Descriptor) IsActive(t time.Time) bool {
	return t.Sub(d.Start) < d.Duration
}
