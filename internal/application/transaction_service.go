package application

import (
	"context"
	"errors"
	"fmt"

	apperrors "github.com/assetdesk/stock-ledger-service/pkg/errors"
	"github.com/assetdesk/stock-ledger-service/pkg/logging"
	"github.com/assetdesk/stock-ledger-service/pkg/metrics"

	"github.com/assetdesk/stock-ledger-service/internal/domain"
	"github.com/assetdesk/stock-ledger-service/internal/infrastructure/projections"
)

// TransactionService is the single entry point for stock mutations. Every
// mutation loads the aggregate, runs the domain logic, and persists the
// updated aggregate together with its ledger entries in one atomic write
// guarded by the aggregate revision.
type TransactionService struct {
	items     domain.ItemRepository
	ledger    domain.LedgerRepository
	publisher domain.EventPublisher
	projector *projections.StockProjector
	metrics   *metrics.Metrics
	logger    *logging.Logger
}

// NewTransactionService creates a new TransactionService
func NewTransactionService(
	items domain.ItemRepository,
	ledger domain.LedgerRepository,
	publisher domain.EventPublisher,
	projector *projections.StockProjector,
	m *metrics.Metrics,
	logger *logging.Logger,
) *TransactionService {
	return &TransactionService{
		items:     items,
		ledger:    ledger,
		publisher: publisher,
		projector: projector,
		metrics:   m,
		logger:    logger,
	}
}

// Apply validates the request shape and dispatches on the transaction kind.
func (s *TransactionService) Apply(ctx context.Context, req Request) (*ItemDTO, error) {
	if err := validateShape(req); err != nil {
		s.recordTransaction(req.Kind, "rejected")
		return nil, err
	}

	var (
		dto *ItemDTO
		err error
	)
	switch req.Kind {
	case domain.KindCreate:
		dto, err = s.CreateItem(ctx, req)
	case domain.KindAdd:
		dto, err = s.AddStock(ctx, req)
	case domain.KindIssue:
		dto, err = s.IssueStock(ctx, req)
	case domain.KindReturn:
		dto, err = s.ReturnStock(ctx, req)
	case domain.KindConsume:
		dto, err = s.ConsumeStock(ctx, req)
	case domain.KindMove:
		dto, err = s.MoveStock(ctx, req)
	case domain.KindEdit:
		dto, err = s.EditAllocation(ctx, req)
	default:
		err = apperrors.ErrValidation(fmt.Sprintf("unknown transaction kind %q", req.Kind))
	}

	if err != nil {
		s.recordTransaction(req.Kind, "failed")
		return nil, err
	}
	s.recordTransaction(req.Kind, "applied")
	return dto, nil
}

// CreateItem registers a new item with its initial allocation
func (s *TransactionService) CreateItem(ctx context.Context, req Request) (*ItemDTO, error) {
	existing, err := s.items.FindByItemID(ctx, req.ItemID)
	if err != nil {
		s.logger.Error("Failed to check item existence", "itemId", req.ItemID, "error", err)
		return nil, fmt.Errorf("failed to check item existence: %w", err)
	}
	if existing != nil {
		return nil, mapDomainError(domain.ErrItemAlreadyExists, req.ItemID)
	}

	item, entry, err := domain.NewItem(
		req.ItemID, req.Name, req.PartNumber, req.ProjectID,
		req.Quantity, req.threshold(), req.LocationDetail,
		req.SupplierRef, req.Note, req.ActorID,
	)
	if err != nil {
		return nil, mapDomainError(err, req.ItemID)
	}

	events := item.PullEvents()

	if err := s.items.Create(ctx, item, entry); err != nil {
		if errors.Is(err, domain.ErrItemAlreadyExists) {
			return nil, mapDomainError(err, req.ItemID)
		}
		s.logger.Error("Failed to create item", "itemId", req.ItemID, "error", err)
		return nil, fmt.Errorf("failed to create item: %w", err)
	}

	s.afterCommit(ctx, item, events)

	s.logger.Info("Created item", "itemId", req.ItemID, "projectId", req.ProjectID, "quantity", req.Quantity)
	return ToItemDTO(item), nil
}

// AddStock adds incoming stock to a project allocation
func (s *TransactionService) AddStock(ctx context.Context, req Request) (*ItemDTO, error) {
	return s.mutate(ctx, req, func(item *domain.Item) ([]domain.LedgerEntry, error) {
		entry, err := item.AddStock(req.ProjectID, req.Quantity, req.threshold(), req.LocationDetail, req.SupplierRef, req.Note, req.ActorID)
		if err != nil {
			return nil, err
		}
		return []domain.LedgerEntry{entry}, nil
	})
}

// IssueStock hands stock from a project allocation to a counterparty
func (s *TransactionService) IssueStock(ctx context.Context, req Request) (*ItemDTO, error) {
	return s.mutate(ctx, req, func(item *domain.Item) ([]domain.LedgerEntry, error) {
		entry, err := item.Issue(req.ProjectID, req.Quantity, req.CounterpartyID, req.Note, req.ActorID)
		if err != nil {
			return nil, err
		}
		return []domain.LedgerEntry{entry}, nil
	})
}

// ReturnStock takes previously issued stock back from a counterparty.
// The bound is the counterparty's outstanding issued balance, derived
// from the ledger rather than the aggregate. The balance is read only
// after the aggregate snapshot is loaded: any ledger append that commits
// afterwards bumps the revision and fails the guarded write, so a return
// computed against a stale balance can never land.
func (s *TransactionService) ReturnStock(ctx context.Context, req Request) (*ItemDTO, error) {
	return s.mutate(ctx, req, func(item *domain.Item) ([]domain.LedgerEntry, error) {
		outstanding, err := s.outstandingBalance(ctx, req)
		if err != nil {
			return nil, err
		}
		entry, err := item.ReturnStock(req.ProjectID, req.Quantity, req.CounterpartyID, req.Note, req.ActorID, outstanding)
		if err != nil {
			return nil, err
		}
		return []domain.LedgerEntry{entry}, nil
	})
}

// ConsumeStock records issued stock as permanently used up. Like
// ReturnStock, the outstanding balance is read after the aggregate load
// so the revision guard covers both reads.
func (s *TransactionService) ConsumeStock(ctx context.Context, req Request) (*ItemDTO, error) {
	return s.mutate(ctx, req, func(item *domain.Item) ([]domain.LedgerEntry, error) {
		outstanding, err := s.outstandingBalance(ctx, req)
		if err != nil {
			return nil, err
		}
		entry, err := item.Consume(req.ProjectID, req.Quantity, req.CounterpartyID, req.Note, req.ActorID, outstanding)
		if err != nil {
			return nil, err
		}
		return []domain.LedgerEntry{entry}, nil
	})
}

func (s *TransactionService) outstandingBalance(ctx context.Context, req Request) (int, error) {
	outstanding, err := s.ledger.OutstandingIssuedBalance(ctx, req.ItemID, req.ProjectID, req.CounterpartyID)
	if err != nil {
		s.logger.Error("Failed to compute outstanding balance", "itemId", req.ItemID, "counterparty", req.CounterpartyID, "error", err)
		return 0, apperrors.ErrInternal("failed to compute outstanding balance").Wrap(err)
	}
	return outstanding, nil
}

// MoveStock transfers stock between two project allocations
func (s *TransactionService) MoveStock(ctx context.Context, req Request) (*ItemDTO, error) {
	return s.mutate(ctx, req, func(item *domain.Item) ([]domain.LedgerEntry, error) {
		entry, err := item.Move(req.FromProjectID, req.ToProjectID, req.Quantity, req.Note, req.ActorID)
		if err != nil {
			return nil, err
		}
		return []domain.LedgerEntry{entry}, nil
	})
}

// EditAllocation replaces an allocation quantity with an explicit value.
// An edit that leaves the quantity unchanged still updates threshold and
// location metadata but writes no ledger entry.
func (s *TransactionService) EditAllocation(ctx context.Context, req Request) (*ItemDTO, error) {
	return s.mutate(ctx, req, func(item *domain.Item) ([]domain.LedgerEntry, error) {
		entry, err := item.EditAllocation(req.ProjectID, req.Quantity, req.threshold(), req.LocationDetail, req.Note, req.ActorID)
		if err != nil {
			return nil, err
		}
		if entry == nil {
			return nil, nil
		}
		return []domain.LedgerEntry{*entry}, nil
	})
}

// mutate runs one stock mutation against the current aggregate and persists
// it with a revision check. A concurrent writer surfaces as a conflict; the
// caller retries with fresh state.
func (s *TransactionService) mutate(ctx context.Context, req Request, fn func(*domain.Item) ([]domain.LedgerEntry, error)) (*ItemDTO, error) {
	item, err := s.items.FindByItemID(ctx, req.ItemID)
	if err != nil {
		s.logger.Error("Failed to load item", "itemId", req.ItemID, "error", err)
		return nil, fmt.Errorf("failed to load item: %w", err)
	}
	if item == nil {
		return nil, mapDomainError(domain.ErrUnknownItem, req.ItemID)
	}

	expectedRevision := item.Revision

	entries, err := fn(item)
	if err != nil {
		return nil, mapDomainError(err, req.ItemID)
	}

	events := item.PullEvents()

	if err := s.items.Update(ctx, item, expectedRevision, entries); err != nil {
		if errors.Is(err, domain.ErrConcurrentModification) {
			s.logger.Warn("Concurrent modification rejected", "itemId", req.ItemID, "kind", string(req.Kind), "revision", expectedRevision)
			return nil, mapDomainError(err, req.ItemID)
		}
		s.logger.Error("Failed to save item", "itemId", req.ItemID, "error", err)
		return nil, fmt.Errorf("failed to save item: %w", err)
	}

	s.afterCommit(ctx, item, events)

	s.logger.Info("Applied stock transaction",
		"kind", string(req.Kind),
		"itemId", req.ItemID,
		"quantity", req.Quantity,
		"revision", item.Revision,
	)
	return ToItemDTO(item), nil
}

// afterCommit updates the read model and publishes domain events. Both are
// eventually consistent; failures are logged and never roll back the write.
func (s *TransactionService) afterCommit(ctx context.Context, item *domain.Item, events []domain.DomainEvent) {
	if s.projector != nil {
		if err := s.projector.OnItemChanged(ctx, item); err != nil {
			s.logger.Error("Failed to update projection", "itemId", item.ItemID, "error", err)
		}
	}

	if s.publisher != nil && len(events) > 0 {
		if err := s.publisher.PublishAll(ctx, events); err != nil {
			s.logger.Error("Failed to publish domain events", "itemId", item.ItemID, "count", len(events), "error", err)
		}
	}

	for _, event := range events {
		if alert, ok := event.(*domain.LowStockAlertEvent); ok {
			if s.metrics != nil {
				s.metrics.RecordLowStockAlert(alert.ItemID, alert.ProjectID)
			}
			s.logger.Event(ctx, alert.EventType(), map[string]any{
				"itemId":                alert.ItemID,
				"projectId":             alert.ProjectID,
				"currentQuantity":       alert.CurrentQuantity,
				"notificationThreshold": alert.NotificationThreshold,
			})
		}
	}
}

func (s *TransactionService) recordTransaction(kind domain.TransactionKind, status string) {
	if s.metrics != nil {
		s.metrics.RecordTransaction(string(kind), status)
	}
}

// validateShape checks kind-specific request fields before touching state
func validateShape(req Request) error {
	if req.ItemID == "" {
		return apperrors.ErrValidation("itemId is required")
	}
	if req.ActorID == "" {
		return apperrors.ErrValidation("actorId is required")
	}
	if req.NotificationThreshold != nil && *req.NotificationThreshold < 0 {
		return mapDomainError(domain.ErrInvalidNotificationThreshold, req.ItemID)
	}

	if req.CounterpartyID != "" && !req.Kind.RequiresCounterparty() {
		return mapDomainError(domain.ErrCounterpartyNotAllowed, req.ItemID)
	}
	if req.SupplierRef != "" && !req.Kind.AllowsSupplier() {
		return mapDomainError(domain.ErrSupplierNotAllowed, req.ItemID)
	}

	switch req.Kind {
	case domain.KindMove:
		if req.FromProjectID == "" || req.ToProjectID == "" {
			return apperrors.ErrValidation("move requires fromProjectId and toProjectId")
		}
	case domain.KindCreate:
		if req.Name == "" {
			return apperrors.ErrValidation("name is required")
		}
		if req.ProjectID == "" {
			return apperrors.ErrValidation("projectId is required")
		}
	default:
		if req.ProjectID == "" {
			return apperrors.ErrValidation("projectId is required")
		}
	}
	return nil
}

// mapDomainError translates domain sentinel errors into transport-facing
// application errors. Errors that are already application errors pass
// through untouched.
func mapDomainError(err error, itemID string) error {
	switch {
	case apperrors.IsAppError(err):
		return err
	case errors.Is(err, domain.ErrUnknownItem):
		return apperrors.ErrNotFoundWithID("item", itemID).Wrap(err)
	case errors.Is(err, domain.ErrUnknownAllocation):
		return apperrors.ErrNotFound("allocation").WithDetail("itemId", itemID).Wrap(err)
	case errors.Is(err, domain.ErrItemAlreadyExists):
		return apperrors.ErrConflict("item already exists").WithDetail("itemId", itemID).Wrap(err)
	case errors.Is(err, domain.ErrConcurrentModification):
		return apperrors.ErrConflict("item was modified concurrently, retry with fresh state").WithDetail("itemId", itemID).Wrap(err)
	case err != nil:
		return apperrors.ErrValidation(err.Error()).Wrap(err)
	default:
		return nil
	}
}
