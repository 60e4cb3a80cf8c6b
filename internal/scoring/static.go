package scoring

import (
	"context"
	"time"

	"autoshield/pkg/domain"
)

// StaticScorer returns a fixed assessment after an optional latency. It stands
// in for the model in local runs and tests.
type StaticScorer struct {
	Latency    time.Duration
	Assessment Assessment
	// Overrides replaces the assessment for specific accounts.
	Overrides map[domain.Address]Assessment
}

func (s StaticScorer) Score(ctx context.Context, addr domain.Address) (Assessment, error) {
	if s.Latency > 0 {
		select {
		case <-ctx.Done():
			return Assessment{}, ctx.Err()
		case <-time.After(s.Latency):
		}
	}
	if a, ok := s.Overrides[addr]; ok {
		return a, nil
	}
	return s.Assessment, nil
}
