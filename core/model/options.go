package model

import (
	"time"

	"github.com/artpar/modelkit/core/scheduler"
	"github.com/rs/zerolog"
)

// Observer is notified about model activity. adapters/metrics implements it.
type Observer interface {
	FieldChanged(model, field string)
	Validated(model string, invalid int, elapsed time.Duration)
}

// Option configures a model class or instance.
type Option func(*options)

type options struct {
	sched    scheduler.Scheduler
	logger   zerolog.Logger
	observer Observer
}

func defaultOptions() options {
	return options{logger: zerolog.Nop()}
}

// WithScheduler sets the scheduler that coalesces change notifications.
// Without it every model gets its own queue, drained by Model.Flush.
func WithScheduler(s scheduler.Scheduler) Option {
	return func(o *options) { o.sched = s }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithObserver sets the activity observer.
func WithObserver(obs Observer) Option {
	return func(o *options) { o.observer = obs }
}
