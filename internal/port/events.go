package port

import (
	"context"

	"github.com/mvtrinh/sneaker-market/internal/core/domain"
)

// EventPublisher emits order lifecycle events to interested consumers.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.OrderEvent) error
}
