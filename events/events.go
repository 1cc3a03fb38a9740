package events

import (
	"context"
	"errors"
	"time"

	"usercenter/models"

	"go.uber.org/zap"
)

const (
	UserCreated = "user.created"
	UserRemoved = "user.removed"
)

// Event is a notification emitted after a user mutation has been committed.
type Event struct {
	Type       string    `json:"type"`
	UserID     uint      `json:"user_id"`
	Username   string    `json:"username"`
	OccurredAt time.Time `json:"occurred_at"`
}

func NewUserEvent(eventType string, user *models.User) Event {
	return Event{
		Type:       eventType,
		UserID:     user.ID,
		Username:   user.Username,
		OccurredAt: time.Now().UTC(),
	}
}

// Publisher receives committed events. Callers treat publishing as fire and
// forget: an error is logged, never surfaced to the request.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

type logPublisher struct {
	logger *zap.Logger
}

// NewLogPublisher returns a Publisher that writes every event to logger.
func NewLogPublisher(logger *zap.Logger) Publisher {
	return &logPublisher{logger: logger.Named("events")}
}

func (p *logPublisher) Publish(_ context.Context, event Event) error {
	p.logger.Info("User event",
		zap.String("type", event.Type),
		zap.Uint("user_id", event.UserID),
		zap.String("username", event.Username),
	)
	return nil
}

type multiPublisher []Publisher

// Multi fans an event out to every publisher and joins their errors.
func Multi(publishers ...Publisher) Publisher {
	return multiPublisher(publishers)
}

func (m multiPublisher) Publish(ctx context.Context, event Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
