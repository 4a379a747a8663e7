package shellloop

import (
	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/logiface"
)

// diagnostics wraps the logger, rate limiting the noisy categories.
type diagnostics struct {
	logger  *logiface.Logger[logiface.Event]
	limiter *catrate.Limiter
}

// limited returns a builder for category, or nil if the level is disabled or
// the category is currently rate limited.
func (d *diagnostics) limited(level logiface.Level, category string) *logiface.Builder[logiface.Event] {
	b := d.logger.Build(level)
	if b == nil {
		return nil
	}
	if _, ok := d.limiter.Allow(category); !ok {
		b.Release()
		return nil
	}
	return b.Str("category", category)
}

// always returns a builder for category, bypassing the limiter.
func (d *diagnostics) always(level logiface.Level, category string) *logiface.Builder[logiface.Event] {
	return d.logger.Build(level).Str("category", category)
}
