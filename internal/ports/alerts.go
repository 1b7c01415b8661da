package ports

import (
	"context"

	"github.com/scamshield/scam-detector/internal/domain"
)

// AlertPublisher delivers medium and high risk verdicts to the presentation layer
type AlertPublisher interface {
	Publish(ctx context.Context, alert domain.Alert) error
}
