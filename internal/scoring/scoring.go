// Package scoring is the port to the external fraud-scoring model. The model
// is opaque: it returns a status recommendation and a confidence.
package scoring

import (
	"context"
	"time"

	"autoshield/internal/registry/models"
	"autoshield/pkg/domain"
	dErrors "autoshield/pkg/domain-errors"
)

// ErrUnavailable is returned while the scoring service cannot be reached.
var ErrUnavailable = dErrors.New(dErrors.CodeUnavailable, "scoring service unavailable")

// Assessment is one model verdict for an account.
type Assessment struct {
	Status models.Status
	// Confidence is a percentage in [0, 100] with up to two decimals.
	Confidence   float64
	RiskScore    int
	RiskLevel    string
	RiskFactors  []string
	ModelVersion string
	AnalyzedAt   time.Time
}

// Scorer assesses an account.
type Scorer interface {
	Score(ctx context.Context, addr domain.Address) (Assessment, error)
}
