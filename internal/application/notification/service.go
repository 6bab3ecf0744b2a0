package notification

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/emmegi/catalog-api/internal/domain"
)

type Repo interface {
	Get(ctx context.Context, notificationID string) (*domain.Notification, error)
	ListUnread(ctx context.Context, userID string) ([]domain.Notification, error)
	MarkAsRead(ctx context.Context, notificationID string) error
}

// Service exposes the in-app notification inbox.
type Service struct {
	notifications Repo
	logger        *slog.Logger
}

func NewService(notifications Repo, logger *slog.Logger) *Service {
	return &Service{notifications: notifications, logger: logger}
}

func (s *Service) ListUnread(ctx context.Context, userID string) ([]domain.Notification, error) {
	return s.notifications.ListUnread(ctx, userID)
}

// MarkAsRead marks a notification read, refusing to touch another user's.
func (s *Service) MarkAsRead(ctx context.Context, userID, notificationID string) error {
	n, err := s.notifications.Get(ctx, notificationID)
	if err != nil {
		return err
	}
	if n.UserID != userID {
		return fmt.Errorf("notification belongs to another user: %w", domain.ErrForbidden)
	}
	return s.notifications.MarkAsRead(ctx, notificationID)
}
