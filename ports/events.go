package ports

import "context"

// EventPublisher publishes events to notify other instances
type EventPublisher interface {
	PublishLogin(ctx context.Context, address string, sessionID string) error
	PublishLogout(ctx context.Context, address string, tokenID string) error
}
