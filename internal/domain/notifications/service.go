package notifications

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotificationNotFound = errors.New("notification not found")
	ErrMissingPushToken     = errors.New("missing expo_push_token")
)

type Service struct {
	notificationRepo NotificationRepository
	deviceRepo       DeviceRepository
}

func NewService(notificationRepo NotificationRepository, deviceRepo DeviceRepository) *Service {
	return &Service{
		notificationRepo: notificationRepo,
		deviceRepo:       deviceRepo,
	}
}

// ListForUser returns the user's notifications, newest first.
func (s *Service) ListForUser(ctx context.Context, userID uuid.UUID, unreadOnly bool) ([]*Notification, error) {
	list, err := s.notificationRepo.ListByUser(ctx, userID, unreadOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return list, nil
}

// MarkRead stamps a notification as read. Marking an already-read notification
// succeeds without change.
func (s *Service) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	found, err := s.notificationRepo.MarkRead(ctx, userID, notificationID)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	if !found {
		return ErrNotificationNotFound
	}
	return nil
}

// RegisterDevice upserts an Expo push token for the user.
func (s *Service) RegisterDevice(ctx context.Context, userID uuid.UUID, token string) (*Device, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrMissingPushToken
	}

	device, err := s.deviceRepo.UpsertDevice(ctx, userID, token)
	if err != nil {
		return nil, fmt.Errorf("failed to register device: %w", err)
	}
	return device, nil
}

// CreateForUsers persists one notification per recipient and returns the rows.
func (s *Service) CreateForUsers(ctx context.Context, userIDs []uuid.UUID, typ Type, payload map[string]any) ([]*Notification, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}

	now := time.Now()
	list := make([]*Notification, 0, len(userIDs))
	for _, userID := range userIDs {
		list = append(list, &Notification{
			ID:        uuid.New(),
			UserID:    userID,
			Type:      typ,
			Payload:   payload,
			CreatedAt: now,
		})
	}

	if err := s.notificationRepo.CreateNotifications(ctx, list); err != nil {
		return nil, fmt.Errorf("failed to create notifications: %w", err)
	}
	return list, nil
}

// PushTokensForUsers returns every Expo token registered by the users.
func (s *Service) PushTokensForUsers(ctx context.Context, userIDs []uuid.UUID) ([]string, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	tokens, err := s.deviceRepo.ListTokensForUsers(ctx, userIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to list push tokens: %w", err)
	}
	return tokens, nil
}
