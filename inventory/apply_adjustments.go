package inventory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Apply runs every adjustment concurrently and waits for all of them to
// settle. It returns the adjustments that took effect and, if any failed,
// the joined failures. Nothing is rolled back here; see Compensate.
func (a *Adjuster) Apply(ctx context.Context, adjs []Adjustment) ([]Adjustment, error) {
	var (
		g       errgroup.Group
		mu      sync.Mutex
		applied = make([]Adjustment, 0, len(adjs))
		errs    = make([]error, len(adjs))
	)

	for i, adj := range adjs {
		g.Go(func() error {
			if _, err := a.Adjust(ctx, adj); err != nil {
				errs[i] = &AdjustmentError{Adjustment: adj, Err: err}
				return nil
			}
			mu.Lock()
			applied = append(applied, adj)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return applied, errors.Join(errs...)
}

// AdjustmentError reports one adjustment that did not take effect.
type AdjustmentError struct {
	Adjustment Adjustment
	Err        error
}

func (e *AdjustmentError) Error() string {
	return fmt.Sprintf("%s: %v", e.Adjustment.ProductID, e.Err)
}

func (e *AdjustmentError) Unwrap() error {
	return e.Err
}

// Failures splits an error returned by Apply into its per-adjustment parts.
func Failures(err error) []*AdjustmentError {
	if err == nil {
		return nil
	}
	parts := []error{err}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		parts = joined.Unwrap()
	}
	var out []*AdjustmentError
	for _, part := range parts {
		var adjErr *AdjustmentError
		if errors.As(part, &adjErr) {
			out = append(out, adjErr)
		}
	}
	return out
}

// Compensate undoes previously applied adjustments by applying their
// inverses. Credits that undo a debit cannot run short; a debit that undoes
// a credit can, and is reported like any other failure.
func (a *Adjuster) Compensate(ctx context.Context, applied []Adjustment) error {
	if len(applied) == 0 {
		return nil
	}
	inverse := make([]Adjustment, 0, len(applied))
	for _, adj := range applied {
		inverse = append(inverse, adj.Inverse())
	}

	done, err := a.Apply(ctx, inverse)
	if err != nil {
		a.logger.Error("stock compensation incomplete",
			zap.Int("requested", len(inverse)),
			zap.Int("applied", len(done)),
			zap.Error(err),
		)
		return fmt.Errorf("compensate stock: %w", err)
	}
	a.logger.Info("stock compensated", zap.Int("adjustments", len(done)))
	return nil
}
