package inference

import (
	"context"

	"github.com/neuraxis/ctreport/internal/model"
)

// Model scores a batch of normalized tensors and returns one prediction per
// input, in input order. Implementations must accept any batch size from 1
// up to the scheduler's configured maximum.
type Model interface {
	Predict(ctx context.Context, batch []*model.NormalizedTensor) (*model.BatchResult, error)
}
