package application

import "github.com/assetdesk/stock-ledger-service/internal/domain"

// Request is the intent-only transaction contract: callers submit a kind,
// identifiers and a quantity, never pre-computed resulting totals. Resulting
// quantities are computed exclusively by the transaction processor.
type Request struct {
	Kind     domain.TransactionKind `json:"kind"`
	ItemID   string                 `json:"itemId"`
	Quantity int                    `json:"quantity"`

	ProjectID     string `json:"projectId,omitempty"`
	FromProjectID string `json:"fromProjectId,omitempty"`
	ToProjectID   string `json:"toProjectId,omitempty"`

	ActorID        string `json:"actorId"`
	CounterpartyID string `json:"counterpartyId,omitempty"`
	SupplierRef    string `json:"supplierRef,omitempty"`
	Note           string `json:"note,omitempty"`
	LocationDetail string `json:"locationDetail,omitempty"`

	// NotificationThreshold is optional; nil keeps the current threshold.
	NotificationThreshold *int `json:"notificationThreshold,omitempty"`

	// Item metadata, meaningful only for create
	Name       string `json:"name,omitempty"`
	PartNumber string `json:"partNumber,omitempty"`
}

func (r Request) threshold() int {
	if r.NotificationThreshold == nil {
		return -1
	}
	return *r.NotificationThreshold
}

// GetItemQuery fetches one item aggregate
type GetItemQuery struct {
	ItemID string
}

// GetLedgerQuery fetches an item's ledger entries, newest first
type GetLedgerQuery struct {
	ItemID string
	Limit  int
}

// AvailabilityQuery asks what can be issued, returned or consumed
type AvailabilityQuery struct {
	ItemID         string
	ProjectID      string
	CounterpartyID string
}

// ListItemsQuery lists stock summaries with pagination
type ListItemsQuery struct {
	Limit      int
	Offset     int
	OnlyLow    bool
	SearchTerm string
}
