// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package shellloop

import (
	"fmt"
	"time"

	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/logiface"
)

const (
	// DefaultEventBudget is the number of posted events delivered per pass.
	DefaultEventBudget = 1024

	// DefaultSignalBuffer is the os/signal channel buffer per trapped signal.
	DefaultSignalBuffer = 4
)

// DefaultDiagnosticRates limits each category of repetitive diagnostic.
var DefaultDiagnosticRates = map[time.Duration]int{
	time.Second: 5,
	time.Minute: 60,
}

// managerOptions holds configuration options for Manager creation.
type managerOptions struct {
	logger       *logiface.Logger[logiface.Event]
	limiter      *catrate.Limiter
	maxWait      time.Duration
	eventBudget  int
	signalBuffer int
}

// Option configures a Manager instance.
type Option interface {
	applyManager(*managerOptions) error
}

// optionImpl implements Option.
type optionImpl struct {
	applyManagerFunc func(*managerOptions) error
}

func (o *optionImpl) applyManager(opts *managerOptions) error {
	return o.applyManagerFunc(opts)
}

// WithLogger sets the structured logger. A nil logger disables logging.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &optionImpl{func(opts *managerOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithMaxWait caps a single blocking wait of the native run loop, when no
// timer is due sooner.
func WithMaxWait(d time.Duration) Option {
	return &optionImpl{func(opts *managerOptions) error {
		if d < 0 {
			return fmt.Errorf("shellloop: max wait must be >= 0, got %s", d)
		}
		opts.maxWait = d
		return nil
	}}
}

// WithEventBudget sets how many posted events are delivered per pass, before
// the loop goes back to timers and descriptors. Zero means unlimited.
func WithEventBudget(n int) Option {
	return &optionImpl{func(opts *managerOptions) error {
		if n < 0 {
			return fmt.Errorf("shellloop: event budget must be >= 0, got %d", n)
		}
		opts.eventBudget = n
		return nil
	}}
}

// WithSignalBuffer sets the channel buffer used for each trapped signal.
func WithSignalBuffer(n int) Option {
	return &optionImpl{func(opts *managerOptions) error {
		if n < 1 {
			return fmt.Errorf("shellloop: signal buffer must be >= 1, got %d", n)
		}
		opts.signalBuffer = n
		return nil
	}}
}

// WithDiagnosticRates sets the per category rate limits for repetitive
// diagnostics (see catrate.NewLimiter). An empty map disables limiting.
func WithDiagnosticRates(rates map[time.Duration]int) Option {
	return &optionImpl{func(opts *managerOptions) (err error) {
		if len(rates) == 0 {
			opts.limiter = nil
			return nil
		}
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("shellloop: invalid diagnostic rates: %v", r)
			}
		}()
		opts.limiter = catrate.NewLimiter(rates)
		return nil
	}}
}

// resolveOptions applies Option instances to managerOptions.
func resolveOptions(opts []Option) (*managerOptions, error) {
	cfg := &managerOptions{
		limiter:      catrate.NewLimiter(DefaultDiagnosticRates),
		eventBudget:  DefaultEventBudget,
		signalBuffer: DefaultSignalBuffer,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyManager(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
