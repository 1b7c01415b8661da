package ports

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/scamshield/scam-detector/internal/domain"
)

// ErrNotFound is returned by stores when an assessment does not exist
var ErrNotFound = errors.New("assessment not found")

// AssessmentStore defines the contract for persisting assessment history
type AssessmentStore interface {
	// SaveAssessment records a completed pipeline run for a session
	SaveAssessment(ctx context.Context, session domain.AnalysisSession, assessment *domain.RiskAssessment) error

	// GetAssessment returns a stored assessment by id
	GetAssessment(ctx context.Context, id uuid.UUID) (*domain.RiskAssessment, error)

	// RecentHighRisk returns the latest high-risk assessments, newest first
	RecentHighRisk(ctx context.Context, limit int) ([]domain.RiskAssessment, error)

	// Lifecycle
	Close() error
}
