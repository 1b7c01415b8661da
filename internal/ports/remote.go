package ports

import (
	"context"

	"github.com/scamshield/scam-detector/internal/domain"
)

// RemoteRiskScorer is an external service that estimates risk from raw signal scores
//
// Implementations never return an error: timeouts and failures are reported in the
// RemoteResult so callers can fall back to the local score.
type RemoteRiskScorer interface {
	Score(ctx context.Context, signals map[string]float64) domain.RemoteResult
}
