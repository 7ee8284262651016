package service

import (
	"alcyxob/gym-sessions/internal/domain"
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("gym-sessions/service")

// Notifier is the fire-and-forget notification sink. Implementations must not block
// and never report failure to the caller.
type Notifier interface {
	Notify(ctx context.Context, memberID primitive.ObjectID, severity domain.Severity, message string)
}

// NopNotifier drops every notification.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, primitive.ObjectID, domain.Severity, string) {}
