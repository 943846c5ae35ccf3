package application

import (
	"context"
	"errors"
	"fmt"

	apperrors "github.com/assetdesk/stock-ledger-service/pkg/errors"
	"github.com/assetdesk/stock-ledger-service/pkg/logging"

	"github.com/assetdesk/stock-ledger-service/internal/domain"
)

// ImportRow is one line of a bulk stock import
type ImportRow struct {
	ItemID                string `json:"itemId"`
	Name                  string `json:"name"`
	PartNumber            string `json:"partNumber,omitempty"`
	ProjectID             string `json:"projectId"`
	Quantity              int    `json:"quantity"`
	NotificationThreshold *int   `json:"notificationThreshold,omitempty"`
	LocationDetail        string `json:"locationDetail,omitempty"`
	SupplierRef           string `json:"supplierRef,omitempty"`
}

// ImportResult summarizes one bulk import run
type ImportResult struct {
	Created int      `json:"created"`
	Added   int      `json:"added"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors,omitempty"`
}

// ImportService funnels bulk rows through the same transaction path as
// single mutations, so every imported quantity still lands in the ledger.
// Unknown items become creates, known items become adds.
type ImportService struct {
	transactions *TransactionService
	logger       *logging.Logger
}

// NewImportService creates a new ImportService
func NewImportService(transactions *TransactionService, logger *logging.Logger) *ImportService {
	return &ImportService{transactions: transactions, logger: logger}
}

// Import applies all rows, continuing past per-row failures
func (s *ImportService) Import(ctx context.Context, rows []ImportRow, actor string) (*ImportResult, error) {
	if actor == "" {
		return nil, apperrors.ErrValidation("actorId is required")
	}

	result := &ImportResult{Errors: make([]string, 0)}
	for i, row := range rows {
		req := Request{
			Kind:                  domain.KindCreate,
			ItemID:                row.ItemID,
			Name:                  row.Name,
			PartNumber:            row.PartNumber,
			ProjectID:             row.ProjectID,
			Quantity:              row.Quantity,
			NotificationThreshold: row.NotificationThreshold,
			LocationDetail:        row.LocationDetail,
			SupplierRef:           row.SupplierRef,
			ActorID:               actor,
			Note:                  "bulk import",
		}

		_, err := s.transactions.Apply(ctx, req)
		if err == nil {
			result.Created++
			continue
		}

		if isConflict(err) {
			req.Kind = domain.KindAdd
			req.Name = ""
			req.PartNumber = ""
			if _, err = s.transactions.Apply(ctx, req); err == nil {
				result.Added++
				continue
			}
		}

		result.Failed++
		result.Errors = append(result.Errors, fmt.Sprintf("row %d (%s): %v", i+1, row.ItemID, err))
		s.logger.Warn("Import row failed", "row", i+1, "itemId", row.ItemID, "error", err)
	}

	s.logger.Info("Bulk import finished", "created", result.Created, "added", result.Added, "failed", result.Failed)
	return result, nil
}

func isConflict(err error) bool {
	if errors.Is(err, domain.ErrItemAlreadyExists) {
		return true
	}
	if appErr, ok := apperrors.AsAppError(err); ok {
		return appErr.Code == apperrors.CodeConflict
	}
	return false
}
