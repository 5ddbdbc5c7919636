package services

import (
	"context"

	"github.com/zenpa1/budget-tracker/internal/auth"
	"github.com/zenpa1/budget-tracker/internal/cache"
	apperrors "github.com/zenpa1/budget-tracker/internal/errors"
	"github.com/zenpa1/budget-tracker/internal/logger"
	"github.com/zenpa1/budget-tracker/internal/models"
	"github.com/zenpa1/budget-tracker/internal/store"
	"github.com/zenpa1/budget-tracker/internal/views"
)

// notificationService handles the notification bell.
type notificationService struct {
	store store.Client
	cache *cache.Cache
}

// NewNotificationService creates a new NotificationServicer.
func NewNotificationService(st store.Client, c *cache.Cache) NotificationServicer {
	return &notificationService{store: st, cache: c}
}

// ListNotifications returns the notifications user can see, newest first.
func (s *notificationService) ListNotifications(user *models.User) []models.Notification {
	if user == nil {
		return nil
	}
	return views.NotificationsFor(s.cache.Snapshot(), user.Role)
}

// MarkNotificationRead marks one notification read. Marking an already read
// notification succeeds without touching the store.
func (s *notificationService) MarkNotificationRead(ctx context.Context, user *models.User, id string) error {
	if err := auth.Require(user, auth.ReadNotifications); err != nil {
		return err
	}

	n, ok := s.cache.Notification(id)
	if !ok || !n.VisibleTo(user.Role) {
		return apperrors.ErrNotificationNotFound
	}
	if n.Read {
		return nil
	}
	return s.markRead(ctx, []string{id})
}

// MarkAllNotificationsRead marks every unread notification as read, whatever
// its audience, and returns how many changed.
func (s *notificationService) MarkAllNotificationsRead(ctx context.Context, user *models.User) (int, error) {
	if err := auth.Require(user, auth.ReadNotifications); err != nil {
		return 0, err
	}

	ids := s.cache.UnreadNotificationIDs("")
	if len(ids) == 0 {
		return 0, nil
	}
	if err := s.markRead(ctx, ids); err != nil {
		return 0, err
	}
	return len(ids), nil
}

func (s *notificationService) markRead(ctx context.Context, ids []string) error {
	res, err := s.store.Commit(ctx, &store.Batch{
		NotificationsRead: &models.NotificationReadUpdate{IDs: ids},
	})
	if err != nil {
		logger.Get().Errorw("Failed to mark notifications read", "count", len(ids), "error", err)
		return storeError(err)
	}
	s.cache.Apply(res.Records()...)
	return nil
}
