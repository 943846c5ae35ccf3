package application

import (
	"context"
	"fmt"

	"github.com/assetdesk/stock-ledger-service/pkg/logging"

	"github.com/assetdesk/stock-ledger-service/internal/domain"
)

// Notifier delivers low-stock notifications to an external channel
type Notifier interface {
	NotifyLowStock(ctx context.Context, alert domain.LowStockAlertEvent) error
}

// NotificationService scans for allocations at or below their notification
// threshold and hands each one to the notifier. It is idempotent: a scan
// reports the current low allocations, it keeps no per-alert state.
type NotificationService struct {
	items    domain.ItemRepository
	notifier Notifier
	logger   *logging.Logger
}

// NewNotificationService creates a new NotificationService
func NewNotificationService(items domain.ItemRepository, notifier Notifier, logger *logging.Logger) *NotificationService {
	return &NotificationService{
		items:    items,
		notifier: notifier,
		logger:   logger,
	}
}

// FindLowStock returns every allocation currently at or below its threshold
func (s *NotificationService) FindLowStock(ctx context.Context) ([]LowStockDTO, error) {
	items, err := s.items.FindBelowThreshold(ctx)
	if err != nil {
		s.logger.Error("Failed to find low stock items", "error", err)
		return nil, fmt.Errorf("failed to find low stock items: %w", err)
	}
	return ToLowStockDTOs(items), nil
}

// Scan evaluates all items and notifies once per low allocation. Notification
// failures are logged and do not stop the scan. Returns the number of alerts
// delivered.
func (s *NotificationService) Scan(ctx context.Context) (int, error) {
	items, err := s.items.FindBelowThreshold(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to find low stock items: %w", err)
	}

	delivered := 0
	for _, item := range items {
		for _, alloc := range item.BelowThreshold() {
			alert := domain.LowStockAlertEvent{
				ItemID:                item.ItemID,
				ProjectID:             alloc.ProjectID,
				CurrentQuantity:       alloc.Quantity,
				NotificationThreshold: alloc.NotificationThreshold,
				AlertedAt:             item.UpdatedAt,
			}
			if s.notifier != nil {
				if err := s.notifier.NotifyLowStock(ctx, alert); err != nil {
					s.logger.Error("Failed to deliver low stock notification", "itemId", item.ItemID, "projectId", alloc.ProjectID, "error", err)
					continue
				}
			}
			delivered++
			s.logger.Info("Low stock notification", "itemId", item.ItemID, "projectId", alloc.ProjectID, "quantity", alloc.Quantity, "threshold", alloc.NotificationThreshold)
		}
	}
	return delivered, nil
}
