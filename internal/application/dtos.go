package application

import "time"

// ItemDTO is the full aggregate view returned by mutations and item reads
type ItemDTO struct {
	ItemID        string          `json:"itemId"`
	Name          string          `json:"name"`
	PartNumber    string          `json:"partNumber,omitempty"`
	TotalQuantity int             `json:"totalQuantity"`
	Allocations   []AllocationDTO `json:"allocations"`
	Revision      int64           `json:"revision"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// AllocationDTO is one project's slice of an item
type AllocationDTO struct {
	ProjectID             string    `json:"projectId"`
	Quantity              int       `json:"quantity"`
	NotificationThreshold int       `json:"notificationThreshold"`
	LocationDetail        string    `json:"locationDetail,omitempty"`
	BelowThreshold        bool      `json:"belowThreshold"`
	LastModifiedBy        string    `json:"lastModifiedBy"`
	LastModifiedAt        time.Time `json:"lastModifiedAt"`
}

// LedgerEntryDTO is one immutable ledger line
type LedgerEntryDTO struct {
	EntryID          string    `json:"entryId"`
	ItemID           string    `json:"itemId"`
	Kind             string    `json:"kind"`
	ProjectID        string    `json:"projectId,omitempty"`
	MovedFromProject string    `json:"movedFromProject,omitempty"`
	MovedToProject   string    `json:"movedToProject,omitempty"`
	Quantity         int       `json:"quantity"`
	NewQuantity      *int      `json:"newQuantity,omitempty"`
	InventoryHandler string    `json:"inventoryHandler"`
	Counterparty     string    `json:"counterparty,omitempty"`
	SupplierRef      string    `json:"supplierRef,omitempty"`
	Note             string    `json:"note,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
}

// AvailabilityDTO answers "how much can happen right now" for one
// (item, project, counterparty) triple
type AvailabilityDTO struct {
	ItemID         string `json:"itemId"`
	ProjectID      string `json:"projectId"`
	CounterpartyID string `json:"counterpartyId,omitempty"`
	Issuable       int    `json:"issuable"`
	Returnable     int    `json:"returnable"`
	Consumable     int    `json:"consumable"`
}

// LowStockDTO is one allocation at or below its notification threshold
type LowStockDTO struct {
	ItemID                string `json:"itemId"`
	Name                  string `json:"name"`
	ProjectID             string `json:"projectId"`
	Quantity              int    `json:"quantity"`
	NotificationThreshold int    `json:"notificationThreshold"`
	LocationDetail        string `json:"locationDetail,omitempty"`
}

// AuditReportDTO is the outcome of rebuilding one item from its ledger
type AuditReportDTO struct {
	ItemID       string `json:"itemId"`
	EntryCount   int    `json:"entryCount"`
	CachedTotal  int    `json:"cachedTotal"`
	RebuiltTotal int    `json:"rebuiltTotal"`
	Diverged     bool   `json:"diverged"`
}
