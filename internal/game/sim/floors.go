package sim

import (
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/rogue/internal/game/ai"
	"github.com/cory-johannsen/rogue/internal/game/entity"
	"github.com/cory-johannsen/rogue/internal/game/event"
	"github.com/cory-johannsen/rogue/internal/game/world"
)

// Floor progression.
const (
	// BossEvery places a boss floor after every third floor count.
	BossEvery = 3
	// BonusAfter is the floor count after which bonus floors may appear.
	BonusAfter = 3
	// BaseBonusChance is the bonus floor percentage after a reset.
	BaseBonusChance = 20
	// BonusChanceStep is added to the bonus chance for every floor left
	// without taking a bonus floor.
	BonusChanceStep = 5
)

// nextKindLocked decides the kind of the floor about to be generated from the
// updated floor count.
func (e *Engine) nextKindLocked() world.Kind {
	if e.floorCount > 0 && e.floorCount%BossEvery == 0 {
		return world.KindBoss
	}
	if e.floorCount > BonusAfter && !e.bonusTriggered && e.roller.Percent("bonus floor", e.bonusChance) {
		e.bonusTriggered = true
		return world.KindBonus
	}
	return world.KindRegular
}

// startTransitionLocked blanks the floor for the transition countdown.
//
// Precondition: the caller has already consumed the Floor Key.
func (e *Engine) startTransitionLocked(now time.Time, out *outbox) {
	from := e.floor.Number
	e.transitioning = true
	e.transitionAt = now.Add(e.cfg.FloorTransition)
	e.clearEnemiesLocked()
	e.clearProjectilesLocked()
	e.logger.Info("floor transition", zap.Int("from", from))
	out.emit(event.FloorTransitionStarted{From: from})
}

func (e *Engine) advanceFloorLocked(now time.Time, out *outbox) {
	if e.floor.Kind == world.KindBonus {
		e.bonusChance = BaseBonusChance
		e.bonusTriggered = false
	} else {
		e.bonusChance += BonusChanceStep
	}
	e.floorCount++
	kind := e.nextKindLocked()
	next, err := e.floors.Floor(e.floor.Number+1, kind)
	if err != nil {
		e.floorCount--
		e.transitionAt = now.Add(e.cfg.FloorTransition)
		e.logger.Error("generating floor", zap.Int("floor", e.floor.Number+1), zap.Error(err))
		return
	}
	e.transitioning = false
	e.player.CancelPushback()
	e.enterFloorLocked(next)
	e.logger.Info("floor advanced", zap.Int("floor", next.Number), zap.String("kind", string(next.Kind)), zap.String("layout", next.Layout))
	out.emit(event.FloorAdvanced{Floor: next.Number, FloorKind: string(next.Kind)})
}

// enterFloorLocked installs f and spawns its enemies.
func (e *Engine) enterFloorLocked(f *world.Floor) {
	agents := make([]*ai.Agent, 0, len(f.Enemies))
	for _, spawn := range f.Enemies {
		class, err := e.catalog.Class(spawn.Class)
		if err != nil {
			e.logger.Warn("skipping enemy spawn", zap.String("class", spawn.Class), zap.Error(err))
			continue
		}
		var enemy *entity.Enemy
		if spawn.Boss {
			enemy = entity.NewBoss(class, spawn.Tile, spawn.Pattern)
		} else {
			enemy = entity.NewEnemy(class, spawn.Tile, spawn.Pattern)
		}
		agents = append(agents, ai.NewAgent(enemy, e.patternFor(spawn.Pattern), e.roller, e.logger))
	}
	e.floor = f
	e.clearEnemiesLocked()
	e.enemyUpdateMu.Lock()
	e.enemyMu.Lock()
	e.agents = append(e.agents, agents...)
	e.enemyMu.Unlock()
	e.enemyUpdateMu.Unlock()
	if e.player != nil {
		e.player.SetTile(f.Spawn)
	}
}

func (e *Engine) patternFor(name string) ai.Pattern {
	if e.patterns == nil || name == "" {
		return nil
	}
	p, ok := e.patterns.PatternFor(name)
	if !ok {
		return nil
	}
	return p
}
