package events

import (
	"context"

	"go.uber.org/zap"
)

// LogTransport writes events to the structured log. It is the development
// default and never fails.
type LogTransport struct {
	logger *zap.Logger
}

// NewLogTransport creates the transport.
func NewLogTransport(logger *zap.Logger) *LogTransport {
	return &LogTransport{logger: logger}
}

func (t *LogTransport) Send(_ context.Context, event Event) error {
	t.logger.Info("notification",
		zap.String("event_id", event.ID),
		zap.String("kind", string(event.Kind)),
		zap.String("recipient_id", event.RecipientID),
		zap.String("subject", event.Subject))
	return nil
}
