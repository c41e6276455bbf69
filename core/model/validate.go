package model

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/artpar/modelkit/core/field"
	"golang.org/x/sync/errgroup"
)

// ValidationError lists the fields that failed validation, in declaration order.
type ValidationError struct {
	Fields []*field.Field
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", strings.Join(e.Names(), ", "))
}

// Names returns the names of the invalid fields.
func (e *ValidationError) Names() []string {
	names := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		names[i] = f.Name()
	}
	return names
}

// Future is the pending outcome of ValidateAsync.
type Future struct {
	done chan struct{}
	err  error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

func (f *Future) resolve(err error) {
	f.err = err
	close(f.done)
}

// Done is closed once the outcome is known.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Err returns the outcome: nil or *ValidationError. Only meaningful after Done.
func (f *Future) Err() error {
	select {
	case <-f.done:
		return f.err
	default:
		return nil
	}
}

// Wait blocks until the outcome is known or ctx is done. Giving up on the wait
// does not stop the validation.
func (f *Future) Wait(ctx context.Context) error {
	select {
	case <-f.done:
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Validate runs every field validator and waits for all of them. It returns
// nil when all pass, otherwise a *ValidationError.
func (m *Model) Validate(ctx context.Context) error {
	return m.ValidateAsync(ctx).Wait(ctx)
}

// ValidateAsync starts validating every field concurrently. No validator is
// skipped, even once a failure is known. Values are captured before this
// returns, so later Set calls do not affect the running validation.
func (m *Model) ValidateAsync(ctx context.Context) *Future {
	start := time.Now()

	fields := m.Fields()
	values := make([]any, len(fields))
	for i, f := range fields {
		values[i] = f.Get()
	}

	fut := newFuture()
	go func() {
		results := make([]bool, len(fields))

		var g errgroup.Group
		for i, f := range fields {
			g.Go(func() error {
				results[i] = f.Descriptor().Check(ctx, values[i])
				return nil
			})
		}
		_ = g.Wait()

		var invalid []*field.Field
		for i, ok := range results {
			if !ok {
				invalid = append(invalid, fields[i])
			}
		}

		if m.observer != nil {
			m.observer.Validated(m.Name(), len(invalid), time.Since(start))
		}

		if len(invalid) == 0 {
			m.logger.Debug().Msg("model valid")
			fut.resolve(nil)
			return
		}

		verr := &ValidationError{Fields: invalid}
		m.logger.Debug().Strs("fields", verr.Names()).Msg("model invalid")
		fut.resolve(verr)
	}()

	return fut
}
