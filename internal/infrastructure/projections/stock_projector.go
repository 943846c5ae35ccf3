package projections

import (
	"context"

	"github.com/assetdesk/stock-ledger-service/pkg/logging"

	"github.com/assetdesk/stock-ledger-service/internal/domain"
)

// StockProjector keeps the stock summary read model in sync with the
// aggregate. Since every mutation rewrites the whole aggregate, the summary
// is rebuilt from it wholesale rather than patched per event type.
type StockProjector struct {
	summaries *StockSummaryRepository
	logger    *logging.Logger
}

// NewStockProjector creates a new stock projector
func NewStockProjector(summaries *StockSummaryRepository, logger *logging.Logger) *StockProjector {
	return &StockProjector{
		summaries: summaries,
		logger:    logger,
	}
}

// OnItemChanged rebuilds the summary from the committed aggregate state.
// The repository enforces revision staleness atomically, so a summary from
// a writer that already projected past this revision is never overwritten.
func (p *StockProjector) OnItemChanged(ctx context.Context, item *domain.Item) error {
	if err := p.summaries.Upsert(ctx, BuildSummary(item)); err != nil {
		p.logger.Error("Failed to project summary", "itemId", item.ItemID, "error", err)
		return err
	}
	return nil
}

// OnItemRemoved drops the summary for a deleted item
func (p *StockProjector) OnItemRemoved(ctx context.Context, itemID string) error {
	return p.summaries.Delete(ctx, itemID)
}

// BuildSummary flattens an aggregate into its list read model
func BuildSummary(item *domain.Item) *StockSummary {
	projects := make([]string, 0, len(item.Allocations))
	lowProjects := make([]string, 0)
	for _, alloc := range item.Allocations {
		projects = append(projects, alloc.ProjectID)
		if alloc.IsBelowThreshold() {
			lowProjects = append(lowProjects, alloc.ProjectID)
		}
	}

	return &StockSummary{
		ItemID:        item.ItemID,
		Name:          item.Name,
		PartNumber:    item.PartNumber,
		TotalQuantity: item.TotalQuantity,
		ProjectCount:  len(item.Allocations),
		Projects:      projects,
		LowProjects:   lowProjects,
		IsLowStock:    len(lowProjects) > 0,
		Revision:      item.Revision,
		UpdatedAt:     item.UpdatedAt,
	}
}
