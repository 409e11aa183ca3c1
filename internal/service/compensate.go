package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// compensator undoes the sub-writes of a partially applied decision, in
// reverse order. If an undo itself fails, the failure is logged and
// surfaced with a correlation id so the records can be reconciled by hand;
// it is never swallowed.
type compensator struct {
	logger *zap.Logger
	undos  []undo
}

type undo struct {
	name string
	fn   func(context.Context) error
}

func newCompensator(logger *zap.Logger) *compensator {
	return &compensator{logger: logger}
}

func (c *compensator) add(name string, fn func(context.Context) error) {
	c.undos = append(c.undos, undo{name: name, fn: fn})
}

// fail rolls back everything registered so far and returns the original
// error, annotated if compensation itself failed.
func (c *compensator) fail(ctx context.Context, cause error) error {
	var failed []string
	correlationID := uuid.NewString()

	for i := len(c.undos) - 1; i >= 0; i-- {
		u := c.undos[i]
		if err := u.fn(ctx); err != nil {
			failed = append(failed, u.name)
			c.logger.Error("compensation step failed",
				zap.String("correlation_id", correlationID),
				zap.String("step", u.name),
				zap.Error(err))
		}
	}

	if len(failed) > 0 {
		return fmt.Errorf("%w (compensation incomplete, correlation_id=%s, failed steps: %v)",
			cause, correlationID, failed)
	}
	return cause
}
