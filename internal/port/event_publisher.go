package port

import "context"

type EventPublisher interface {
	Publish(ctx context.Context, eventType, key string, payload any) error
}
