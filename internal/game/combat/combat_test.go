package combat_test

import (
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/rogue/internal/clock"
	"github.com/cory-johannsen/rogue/internal/game/combat"
	"github.com/cory-johannsen/rogue/internal/game/geom"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestDamage_Floor(t *testing.T) {
	assert.Equal(t, 1, combat.Damage(5, 10))
	assert.Equal(t, 1, combat.Damage(10, 10))
	assert.Equal(t, 8, combat.Damage(18, 10))
}

func TestProperty_Damage(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		atk := rapid.IntRange(-1000, 1000).Draw(rt, "atk")
		def := rapid.IntRange(-1000, 1000).Draw(rt, "def")
		got := combat.Damage(atk, def)
		want := atk - def
		if want < 1 {
			want = 1
		}
		if got != want {
			rt.Fatalf("Damage(%d, %d) = %d, want %d", atk, def, got, want)
		}
	})
}

func TestPushback(t *testing.T) {
	assert.InDelta(t, 1.2*32, combat.PushbackDistance(1.0), 1e-9)
	assert.InDelta(t, 32*0.18, combat.PushbackSpeed, 1e-9)
}

func TestNewSwing_Angles(t *testing.T) {
	d := combat.NewSwing(geom.Vec{}, geom.Vec{X: 3}, 2, 120, epoch)
	assert.Equal(t, combat.KindSwing, d.Kind)
	assert.InDelta(t, 0, d.BaseAngle, 1e-12)
	assert.InDelta(t, -math.Pi/3, d.StartAngle, 1e-12)
	assert.InDelta(t, math.Pi/3, d.EndAngle, 1e-12)
	assert.Equal(t, combat.SwingDuration, d.Duration)
	assert.InDelta(t, 1, d.Direction.Len(), 1e-12)
}

func TestNewBow_Static(t *testing.T) {
	d := combat.NewBow(geom.Vec{}, geom.Vec{Y: -1}, 8, epoch)
	assert.Equal(t, combat.KindBow, d.Kind)
	assert.Equal(t, d.StartAngle, d.EndAngle)
	assert.Equal(t, d.StartAngle, d.CurrentAngle(epoch.Add(75*time.Millisecond)))
	assert.True(t, d.IsActive(epoch.Add(149*time.Millisecond)))
	assert.False(t, d.IsActive(epoch.Add(150*time.Millisecond)))
}

func TestProperty_CurrentAngle(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		aim := geom.FromAngle(rapid.Float64Range(-math.Pi, math.Pi).Draw(rt, "aim"))
		width := rapid.Float64Range(0, 180).Draw(rt, "width")
		d := combat.NewSwing(geom.Vec{}, aim, 1, width, epoch)
		offset := time.Duration(rapid.Int64Range(-int64(time.Second), int64(time.Second)).Draw(rt, "offset"))
		at := epoch.Add(offset)

		got := d.CurrentAngle(at)
		if got != d.CurrentAngle(at) {
			rt.Fatalf("CurrentAngle is not a pure function of time")
		}
		switch {
		case offset <= 0:
			if got != d.StartAngle {
				rt.Fatalf("before start: got %v want %v", got, d.StartAngle)
			}
		case offset >= d.Duration:
			if got != d.EndAngle {
				rt.Fatalf("after end: got %v want %v", got, d.EndAngle)
			}
		default:
			frac := float64(offset) / float64(d.Duration)
			want := d.StartAngle + (d.EndAngle-d.StartAngle)*frac
			if math.Abs(got-want) > 1e-9 {
				rt.Fatalf("at %v: got %v want %v", offset, got, want)
			}
		}
	})
}

func TestSwingHits_Scenario(t *testing.T) {
	attacker := geom.Vec{X: 100, Y: 100}
	target := attacker.Add(geom.Vec{X: 0.9 * geom.TileSize})
	assert.True(t, combat.SwingHits(attacker, target, 1.0, 0))
	assert.False(t, combat.SwingHits(attacker, target, 1.0, geom.Radians(16)))
	assert.True(t, combat.SwingHits(attacker, target, 1.0, geom.Radians(15)-1e-9))
	far := attacker.Add(geom.Vec{X: 1.26 * geom.TileSize})
	assert.False(t, combat.SwingHits(attacker, far, 1.0, 0))
}

func TestSwingHits_WrapsAngles(t *testing.T) {
	attacker := geom.Vec{}
	target := geom.Vec{X: -32, Y: 0.01}
	assert.True(t, combat.SwingHits(attacker, target, 2, -math.Pi+geom.Radians(5)))
}

func TestProperty_SwingHitsBounds(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		rangeTiles := rapid.Float64Range(0.5, 6).Draw(rt, "range")
		dist := rapid.Float64Range(0.01, 10).Draw(rt, "dist")
		bearing := rapid.Float64Range(-math.Pi, math.Pi).Draw(rt, "bearing")
		angle := rapid.Float64Range(-math.Pi, math.Pi).Draw(rt, "angle")

		attacker := geom.Vec{X: 500, Y: 500}
		target := attacker.Add(geom.FromAngle(bearing).Scale(dist * geom.TileSize))
		got := combat.SwingHits(attacker, target, rangeTiles, angle)

		realDist := target.Sub(attacker).Len() / geom.TileSize
		realDelta := math.Abs(geom.AngleDelta(target.Sub(attacker).Angle(), angle))
		want := realDist <= rangeTiles+combat.HitSlack && realDelta <= geom.Radians(combat.HalfFanDegrees)
		if got != want {
			rt.Fatalf("SwingHits dist=%v delta=%v range=%v: got %v want %v", realDist, realDelta, rangeTiles, got, want)
		}
	})
}

func TestSampler_HitsOncePerSwing(t *testing.T) {
	clk := clock.NewFake(epoch)
	desc := combat.NewSwing(geom.Vec{}, geom.Vec{X: 1}, 1, 0, clk.Now())
	var samples, hits atomic.Int32
	s := combat.StartSampler(clk, desc, 16*time.Millisecond, combat.DetectorFunc(func(sm *combat.Sample) {
		samples.Add(1)
		if sm.FirstHit("target") {
			hits.Add(1)
		}
	}))
	require.Equal(t, int32(1), samples.Load(), "first sample is synchronous")

	for i := 0; i < 20; i++ {
		clk.Advance(16 * time.Millisecond)
		time.Sleep(time.Millisecond)
	}
	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("sampler did not stop after the swing expired")
	}
	assert.Equal(t, int32(1), hits.Load())
	assert.Greater(t, samples.Load(), int32(1))
}

func TestSampler_CancelIsIdempotent(t *testing.T) {
	clk := clock.NewFake(epoch)
	desc := combat.NewSwing(geom.Vec{}, geom.Vec{X: 1}, 1, 90, clk.Now())
	var samples atomic.Int32
	s := combat.StartSampler(clk, desc, 16*time.Millisecond, combat.DetectorFunc(func(*combat.Sample) {
		samples.Add(1)
	}))
	s.Cancel()
	s.Cancel()
	assert.True(t, s.Cancelled())
	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled sampler did not finish")
	}
	before := samples.Load()
	clk.Advance(100 * time.Millisecond)
	assert.Equal(t, before, samples.Load())
}

func TestSampler_CancelFromDetect(t *testing.T) {
	clk := clock.NewFake(epoch)
	desc := combat.NewSwing(geom.Vec{}, geom.Vec{X: 1}, 1, 90, clk.Now())
	var s *combat.Sampler
	var calls atomic.Int32
	s = combat.StartSampler(clk, desc, 16*time.Millisecond, combat.DetectorFunc(func(*combat.Sample) {
		if calls.Add(1) == 2 {
			s.Cancel()
		}
	}))
	clk.Advance(16 * time.Millisecond)
	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("sampler cancelled from Detect did not finish")
	}
	clk.Advance(16 * time.Millisecond)
	assert.Equal(t, int32(2), calls.Load())
}

func TestSampler_ExpiredDescriptor(t *testing.T) {
	clk := clock.NewFake(epoch)
	desc := combat.NewSwing(geom.Vec{}, geom.Vec{X: 1}, 1, 90, epoch.Add(-time.Second))
	called := false
	s := combat.StartSampler(clk, desc, 0, combat.DetectorFunc(func(*combat.Sample) { called = true }))
	<-s.Done()
	assert.False(t, called)
	assert.Zero(t, clk.ActiveTickers())
}

type dummy struct {
	id     string
	center geom.Vec
	alive  bool
	atk    int
}

func (d *dummy) ID() string       { return d.id }
func (d *dummy) Center() geom.Vec { return d.center }
func (d *dummy) Alive() bool      { return d.alive }
func (d *dummy) TotalAttack() int { return d.atk }

func open(geom.Tile) bool { return true }

func TestProjectile_ExpiresAfterFourTicks(t *testing.T) {
	p := combat.NewProjectile(&dummy{id: "owner"}, combat.FactionPlayer, geom.Vec{X: 16, Y: 16}, geom.Vec{X: 1}, 5, 2)
	for i := 1; i <= 3; i++ {
		assert.Nil(t, p.Update(0.1, open, nil))
		require.True(t, p.Active(), "still active after tick %d", i)
	}
	assert.Nil(t, p.Update(0.1, open, nil))
	assert.False(t, p.Active(), "inactive after exactly 4 ticks")
	assert.InDelta(t, 2.0, p.State().Travelled, 1e-12)
}

func TestProjectile_IdempotentWhenInactive(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		p := combat.NewProjectile(&dummy{id: "o"}, combat.FactionEnemy, geom.Vec{}, geom.Vec{X: 1, Y: 1}, 5, 0.1)
		p.Update(1, open, nil)
		if p.Active() {
			rt.Fatalf("expected projectile to be spent")
		}
		before := p.State()
		target := &dummy{id: "t", center: before.Position, alive: true}
		for i, n := 0, rapid.IntRange(1, 20).Draw(rt, "updates"); i < n; i++ {
			dt := rapid.Float64Range(0, 5).Draw(rt, "dt")
			if hit := p.Update(dt, open, []combat.Target{target}); hit != nil {
				rt.Fatalf("inactive projectile struck %s", hit.ID())
			}
		}
		if p.State() != before {
			rt.Fatalf("inactive projectile mutated: %+v -> %+v", before, p.State())
		}
	})
}

func TestProjectile_WallFirst(t *testing.T) {
	target := &dummy{id: "t", center: geom.Vec{X: 48, Y: 16}, alive: true}
	p := combat.NewProjectile(&dummy{id: "o"}, combat.FactionPlayer, geom.Vec{X: 16, Y: 16}, geom.Vec{X: 1}, 10, 8)
	walls := func(t geom.Tile) bool { return t.X == 0 }
	assert.Nil(t, p.Update(0.1, walls, []combat.Target{target}))
	assert.False(t, p.Active())
}

func TestProjectile_HitsFirstLiveTarget(t *testing.T) {
	dead := &dummy{id: "dead", center: geom.Vec{X: 40, Y: 16}}
	live := &dummy{id: "live", center: geom.Vec{X: 40, Y: 16}, alive: true}
	p := combat.NewProjectile(&dummy{id: "o"}, combat.FactionPlayer, geom.Vec{X: 16, Y: 16}, geom.Vec{X: 1}, 5, 8)
	hit := p.Update(0.1, open, []combat.Target{dead, live})
	require.NotNil(t, hit)
	assert.Equal(t, "live", hit.ID())
	assert.False(t, p.Active())
	assert.InDelta(t, 8+16-4, p.HitRadius(), 1e-12)
}

func TestPlayerProjectileSpeed(t *testing.T) {
	assert.InDelta(t, 5.1, combat.PlayerProjectileSpeed(4, 5), 1e-12)
	assert.InDelta(t, 20, combat.PlayerProjectileSpeed(20, 4.5), 1e-12)
}
