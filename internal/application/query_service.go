package application

import (
	"context"
	"fmt"

	apperrors "github.com/assetdesk/stock-ledger-service/pkg/errors"
	"github.com/assetdesk/stock-ledger-service/pkg/logging"

	"github.com/assetdesk/stock-ledger-service/internal/domain"
	"github.com/assetdesk/stock-ledger-service/internal/infrastructure/projections"
)

const defaultLedgerLimit = 100

// QueryService serves reads: aggregates, ledger history, availability and
// the stock summary list. List reads come from the projection read model.
type QueryService struct {
	items     domain.ItemRepository
	ledger    domain.LedgerRepository
	summaries *projections.StockSummaryRepository
	logger    *logging.Logger
}

// NewQueryService creates a new QueryService
func NewQueryService(
	items domain.ItemRepository,
	ledger domain.LedgerRepository,
	summaries *projections.StockSummaryRepository,
	logger *logging.Logger,
) *QueryService {
	return &QueryService{
		items:     items,
		ledger:    ledger,
		summaries: summaries,
		logger:    logger,
	}
}

// GetItem retrieves one item aggregate by its ID
func (s *QueryService) GetItem(ctx context.Context, query GetItemQuery) (*ItemDTO, error) {
	item, err := s.items.FindByItemID(ctx, query.ItemID)
	if err != nil {
		s.logger.Error("Failed to get item", "itemId", query.ItemID, "error", err)
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	if item == nil {
		return nil, apperrors.ErrNotFoundWithID("item", query.ItemID)
	}
	return ToItemDTO(item), nil
}

// GetLedger retrieves an item's ledger entries, newest first
func (s *QueryService) GetLedger(ctx context.Context, query GetLedgerQuery) ([]LedgerEntryDTO, error) {
	item, err := s.items.FindByItemID(ctx, query.ItemID)
	if err != nil {
		s.logger.Error("Failed to get item", "itemId", query.ItemID, "error", err)
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	if item == nil {
		return nil, apperrors.ErrNotFoundWithID("item", query.ItemID)
	}

	limit := query.Limit
	if limit <= 0 {
		limit = defaultLedgerLimit
	}

	entries, err := s.ledger.FindByItemID(ctx, query.ItemID, limit)
	if err != nil {
		s.logger.Error("Failed to get ledger", "itemId", query.ItemID, "error", err)
		return nil, fmt.Errorf("failed to get ledger: %w", err)
	}
	return ToLedgerEntryDTOs(entries), nil
}

// GetAvailability computes what can currently be issued from the allocation
// and what the counterparty can still return or consume. Issuable comes from
// the aggregate; the outstanding balance comes from the ledger.
func (s *QueryService) GetAvailability(ctx context.Context, query AvailabilityQuery) (*AvailabilityDTO, error) {
	item, err := s.items.FindByItemID(ctx, query.ItemID)
	if err != nil {
		s.logger.Error("Failed to get item", "itemId", query.ItemID, "error", err)
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	if item == nil {
		return nil, apperrors.ErrNotFoundWithID("item", query.ItemID)
	}

	dto := &AvailabilityDTO{
		ItemID:         query.ItemID,
		ProjectID:      query.ProjectID,
		CounterpartyID: query.CounterpartyID,
		Issuable:       item.IssuableQuantity(query.ProjectID),
	}

	if query.CounterpartyID != "" {
		outstanding, err := s.ledger.OutstandingIssuedBalance(ctx, query.ItemID, query.ProjectID, query.CounterpartyID)
		if err != nil {
			s.logger.Error("Failed to compute outstanding balance", "itemId", query.ItemID, "counterparty", query.CounterpartyID, "error", err)
			return nil, fmt.Errorf("failed to compute outstanding balance: %w", err)
		}
		dto.Returnable = outstanding
		// Consuming also requires the stock to still sit in the allocation
		dto.Consumable = outstanding
		if dto.Issuable < outstanding {
			dto.Consumable = dto.Issuable
		}
	}

	return dto, nil
}

// ListItems lists stock summaries from the read model with pagination
func (s *QueryService) ListItems(ctx context.Context, query ListItemsQuery) ([]projections.StockSummary, error) {
	limit := query.Limit
	if limit <= 0 {
		limit = 50
	}

	var (
		summaries []projections.StockSummary
		err       error
	)
	switch {
	case query.OnlyLow:
		summaries, err = s.summaries.FindLowStock(ctx, limit, query.Offset)
	case query.SearchTerm != "":
		summaries, err = s.summaries.Search(ctx, query.SearchTerm, limit, query.Offset)
	default:
		summaries, err = s.summaries.FindAll(ctx, limit, query.Offset)
	}
	if err != nil {
		s.logger.Error("Failed to list items", "error", err)
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	return summaries, nil
}

// AuditItem rebuilds one item from its ledger and compares the result
// against the cached aggregate.
func (s *QueryService) AuditItem(ctx context.Context, itemID string) (*AuditReportDTO, error) {
	item, err := s.items.FindByItemID(ctx, itemID)
	if err != nil {
		s.logger.Error("Failed to get item", "itemId", itemID, "error", err)
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	if item == nil {
		return nil, apperrors.ErrNotFoundWithID("item", itemID)
	}

	entries, err := s.ledger.FindByItemIDAscending(ctx, itemID)
	if err != nil {
		s.logger.Error("Failed to read ledger", "itemId", itemID, "error", err)
		return nil, fmt.Errorf("failed to read ledger: %w", err)
	}

	rebuilt, err := domain.ReplayLedger(itemID, entries)
	if err != nil {
		s.logger.Error("Ledger replay failed", "itemId", itemID, "error", err)
		return nil, fmt.Errorf("ledger replay failed: %w", err)
	}

	report := &AuditReportDTO{
		ItemID:       itemID,
		EntryCount:   len(entries),
		CachedTotal:  item.TotalQuantity,
		RebuiltTotal: rebuilt.TotalQuantity,
		Diverged:     domain.Diverges(item, rebuilt),
	}
	if report.Diverged {
		s.logger.Warn("Aggregate diverged from ledger", "itemId", itemID, "cachedTotal", report.CachedTotal, "rebuiltTotal", report.RebuiltTotal)
	}
	return report, nil
}
