package observability

import (
	"context"
	"sort"

	"go.uber.org/zap"
)

// EventBus implements the EventPublisher interface on top of the logger.
type EventBus struct {
	logger *zap.Logger
}

// NewEventBus creates a new event bus.
func NewEventBus(logger *zap.Logger) *EventBus {
	return &EventBus{
		logger: logger,
	}
}

// Publish logs the event with its data as structured fields and counts it.
func (e *EventBus) Publish(ctx context.Context, eventType string, data map[string]interface{}) {
	EventsTotal.WithLabelValues(eventType).Inc()

	if e.logger == nil {
		return
	}

	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make([]zap.Field, 0, len(keys)+1)
	fields = append(fields, zap.String("event", eventType))
	for _, k := range keys {
		fields = append(fields, zap.Any(k, data[k]))
	}

	e.logger.With(contextFields(ctx)...).Info("job event", fields...)
}
