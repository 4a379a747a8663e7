// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package runloop

import (
	"time"

	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/logiface"
)

// DefaultMaxWait caps a single blocking wait when no timer is due sooner.
const DefaultMaxWait = 10 * time.Second

// runLoopOptions holds configuration options for RunLoop creation.
type runLoopOptions struct {
	logger  *logiface.Logger[logiface.Event]
	limiter *catrate.Limiter
	maxWait time.Duration
}

// Option configures a RunLoop instance.
type Option interface {
	applyRunLoop(*runLoopOptions) error
}

// optionImpl implements Option.
type optionImpl struct {
	applyRunLoopFunc func(*runLoopOptions) error
}

func (o *optionImpl) applyRunLoop(opts *runLoopOptions) error {
	return o.applyRunLoopFunc(opts)
}

// WithLogger sets the logger used to report recovered callback panics.
// A nil logger disables logging.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &optionImpl{func(opts *runLoopOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithLimiter rate limits repetitive diagnostics, per category. A nil
// limiter applies no limit.
func WithLimiter(limiter *catrate.Limiter) Option {
	return &optionImpl{func(opts *runLoopOptions) error {
		opts.limiter = limiter
		return nil
	}}
}

// WithMaxWait caps how long a single blocking wait may last, when no timer is
// due sooner. Values <= 0 select [DefaultMaxWait].
func WithMaxWait(d time.Duration) Option {
	return &optionImpl{func(opts *runLoopOptions) error {
		if d <= 0 {
			d = DefaultMaxWait
		}
		opts.maxWait = d
		return nil
	}}
}

// resolveOptions applies Option instances to runLoopOptions.
func resolveOptions(opts []Option) (*runLoopOptions, error) {
	cfg := &runLoopOptions{
		maxWait: DefaultMaxWait,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyRunLoop(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
