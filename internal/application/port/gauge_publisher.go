package port

import (
	"context"

	"github.com/dreschagin/risk-dashboard/internal/domain/entity"
)

// GaugePublisher publishes risk gauges to an external observability platform.
type GaugePublisher interface {
	// PublishBatch buffers gauges for the next flush.
	PublishBatch(ctx context.Context, gauges []entity.RiskGauge) error

	// Flush forces immediate publication of any buffered gauges.
	// Should be called during graceful shutdown to prevent data loss.
	Flush(ctx context.Context) error
}
