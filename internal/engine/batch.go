package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/pdp-engine/go-core/pkg/types"
)

// ErrBatchTooLarge rejects oversized batches before any evaluation starts
type ErrBatchTooLarge struct {
	Size int
}

func (e *ErrBatchTooLarge) Error() string {
	return fmt.Sprintf("batch of %d requests exceeds the maximum of %d", e.Size, types.MaxBatchSize)
}

// EvaluateBatch evaluates up to MaxBatchSize requests concurrently. The
// result preserves input order for positional correlation, and one item's
// failure never affects its siblings.
func (e *Engine) EvaluateBatch(ctx context.Context, requests []*types.EvaluationRequest) ([]*types.Decision, error) {
	if len(requests) > types.MaxBatchSize {
		return nil, &ErrBatchTooLarge{Size: len(requests)}
	}

	e.metrics.RecordBatch(len(requests))

	decisions := make([]*types.Decision, len(requests))
	var wg sync.WaitGroup

	for i, req := range requests {
		i, req := i, req
		if req == nil {
			req = &types.EvaluationRequest{}
		}
		wg.Add(1)
		err := e.pool.Submit(ctx, func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					e.logger.Error("Batch item panicked",
						zap.Int("index", i),
						zap.Any("panic", r),
					)
					decisions[i] = e.systemDeny(req, types.ReasonEvaluationError)
				}
			}()
			decisions[i] = e.Evaluate(ctx, req)
		})
		if err != nil {
			// The item never ran; deny it in place and keep going so the
			// result still correlates positionally
			wg.Done()
			reason := types.ReasonEvaluationError
			if errors.Is(err, context.DeadlineExceeded) {
				reason = types.ReasonEvaluationTimeout
			}
			decisions[i] = e.systemDeny(req, reason)
		}
	}

	wg.Wait()
	return decisions, nil
}
