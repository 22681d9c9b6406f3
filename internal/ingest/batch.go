package ingest

import (
	"context"
	"errors"
	"sync"

	"github.com/gammazero/workerpool"

	"github.com/bytevault/bytevault/internal/verifier"
)

// Item statuses of a batch import. Failures are per-item; one bad contract
// never aborts its siblings.
const (
	ItemStatusSuccess             = "success"
	ItemStatusImportFailure       = "import_failure"
	ItemStatusVerificationFailure = "verification_failure"
)

// ItemResult is the discriminated outcome of one batch item.
type ItemResult struct {
	Status  string
	Message string

	// Populated on success.
	CreationMatchType string
	RuntimeMatchType  string
	Result            *Result
}

// RunBatch ingests every deployment against one shared compilation at the
// given concurrency. Results keep the input order; items run independently
// and in no guaranteed order.
func (s *Service) RunBatch(ctx context.Context, actor string, compilation *verifier.Compilation, deployments []*Deployment, concurrency int) []ItemResult {
	if concurrency < 1 {
		concurrency = 1
	}

	results := make([]ItemResult, len(deployments))
	pool := workerpool.New(concurrency)
	var mu sync.Mutex

	for i, deployment := range deployments {
		i, deployment := i, deployment
		pool.Submit(func() {
			result := s.ingestItem(ctx, actor, compilation, deployment)
			mu.Lock()
			results[i] = result
			mu.Unlock()
		})
	}
	pool.StopWait()
	return results
}

func (s *Service) ingestItem(ctx context.Context, actor string, compilation *verifier.Compilation, deployment *Deployment) ItemResult {
	result, err := s.Ingest(ctx, actor, compilation, deployment)
	switch {
	case errors.Is(err, ErrNoMatch):
		return ItemResult{Status: ItemStatusVerificationFailure, Message: err.Error()}
	case err != nil:
		s.logger.Warn("batch item failed",
			"chain_id", deployment.ChainID,
			"error", err)
		return ItemResult{Status: ItemStatusImportFailure, Message: err.Error()}
	default:
		return ItemResult{
			Status:            ItemStatusSuccess,
			CreationMatchType: MatchType(result.CreationMatch),
			RuntimeMatchType:  MatchType(result.RuntimeMatch),
			Result:            result,
		}
	}
}
