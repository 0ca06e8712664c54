package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/finsecure/portal-core/pkg/domain"
)

// Profile returns the caller's customer profile.
func (s *Service) Profile(ctx context.Context, userID uuid.UUID) (*domain.CustomerProfile, error) {
	return s.repo.GetCustomerProfile(ctx, userID)
}

// Customers pages the customer directory. Search matches name, email, phone and username.
func (s *Service) Customers(ctx context.Context, req domain.PageRequest) (domain.Page[domain.CustomerProfile], error) {
	items, total, err := s.repo.ListCustomers(ctx, req)
	if err != nil {
		return domain.Page[domain.CustomerProfile]{}, fmt.Errorf("failed to list customers: %w", err)
	}
	return domain.NewPage(items, req, total), nil
}

// Notifications pages the caller's notifications, newest first.
func (s *Service) Notifications(ctx context.Context, userID uuid.UUID, req domain.PageRequest) (domain.Page[domain.Notification], error) {
	items, total, err := s.repo.ListNotifications(ctx, userID, req)
	if err != nil {
		return domain.Page[domain.Notification]{}, fmt.Errorf("failed to list notifications: %w", err)
	}
	return domain.NewPage(items, req, total), nil
}

// MarkAllNotificationsRead marks every unread notification of the caller as read.
func (s *Service) MarkAllNotificationsRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.repo.MarkAllNotificationsRead(ctx, userID)
}

func formatDate(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format("02 Jan 2006")
}
