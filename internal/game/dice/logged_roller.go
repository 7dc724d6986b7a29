package dice

import "go.uber.org/zap"

// Roller wraps a Source and logger; every roll is logged at debug level.
type Roller struct {
	src    Source
	logger *zap.Logger
}

// NewLoggedRoller creates a Roller that rolls with src and logs to logger.
//
// Precondition: src and logger must be non-nil.
func NewLoggedRoller(src Source, logger *zap.Logger) *Roller {
	return &Roller{src: src, logger: logger}
}

// Source returns the underlying randomness source.
func (r *Roller) Source() Source { return r.src }

// Roll evaluates expr and logs the result.
func (r *Roller) Roll(expr Expression) RollResult {
	result := Roll(expr, r.src)
	r.logger.Debug("dice roll",
		zap.String("expression", result.Expression),
		zap.Ints("dice", result.Dice),
		zap.Int("modifier", result.Modifier),
		zap.Int("total", result.Total()),
	)
	return result
}

// Chance reports true with probability 1/n and logs the outcome under label.
func (r *Roller) Chance(label string, n int) bool {
	hit := OneIn(r.src, n)
	r.logger.Debug("chance roll",
		zap.String("label", label),
		zap.Int("one_in", n),
		zap.Bool("hit", hit),
	)
	return hit
}

// Percent reports true with probability pct/100 and logs the outcome.
func (r *Roller) Percent(label string, pct int) bool {
	hit := Percent(r.src, pct)
	r.logger.Debug("percent roll",
		zap.String("label", label),
		zap.Int("pct", pct),
		zap.Bool("hit", hit),
	)
	return hit
}
