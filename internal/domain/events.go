package domain

import "time"

// DomainEvent is the interface for all domain events
type DomainEvent interface {
	EventType() string
	OccurredAt() time.Time
}

// ItemCreatedEvent is published when an item is created with its initial allocation
type ItemCreatedEvent struct {
	ItemID    string    `json:"itemId"`
	ProjectID string    `json:"projectId"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"createdAt"`
}

func (e *ItemCreatedEvent) EventType() string     { return "stock.item.created" }
func (e *ItemCreatedEvent) OccurredAt() time.Time { return e.CreatedAt }

// StockAddedEvent is published when stock is added to a project allocation
type StockAddedEvent struct {
	ItemID    string    `json:"itemId"`
	ProjectID string    `json:"projectId"`
	Quantity  int       `json:"quantity"`
	AddedAt   time.Time `json:"addedAt"`
}

func (e *StockAddedEvent) EventType() string     { return "stock.added" }
func (e *StockAddedEvent) OccurredAt() time.Time { return e.AddedAt }

// StockIssuedEvent is published when stock is issued to a counterparty
type StockIssuedEvent struct {
	ItemID       string    `json:"itemId"`
	ProjectID    string    `json:"projectId"`
	Quantity     int       `json:"quantity"`
	Counterparty string    `json:"counterparty"`
	IssuedAt     time.Time `json:"issuedAt"`
}

func (e *StockIssuedEvent) EventType() string     { return "stock.issued" }
func (e *StockIssuedEvent) OccurredAt() time.Time { return e.IssuedAt }

// StockReturnedEvent is published when issued stock comes back
type StockReturnedEvent struct {
	ItemID       string    `json:"itemId"`
	ProjectID    string    `json:"projectId"`
	Quantity     int       `json:"quantity"`
	Counterparty string    `json:"counterparty"`
	ReturnedAt   time.Time `json:"returnedAt"`
}

func (e *StockReturnedEvent) EventType() string     { return "stock.returned" }
func (e *StockReturnedEvent) OccurredAt() time.Time { return e.ReturnedAt }

// StockConsumedEvent is published when issued stock is used up permanently
type StockConsumedEvent struct {
	ItemID       string    `json:"itemId"`
	ProjectID    string    `json:"projectId"`
	Quantity     int       `json:"quantity"`
	Counterparty string    `json:"counterparty"`
	ConsumedAt   time.Time `json:"consumedAt"`
}

func (e *StockConsumedEvent) EventType() string     { return "stock.consumed" }
func (e *StockConsumedEvent) OccurredAt() time.Time { return e.ConsumedAt }

// StockMovedEvent is published when stock moves between project allocations
type StockMovedEvent struct {
	ItemID      string    `json:"itemId"`
	FromProject string    `json:"fromProject"`
	ToProject   string    `json:"toProject"`
	Quantity    int       `json:"quantity"`
	MovedAt     time.Time `json:"movedAt"`
}

func (e *StockMovedEvent) EventType() string     { return "stock.moved" }
func (e *StockMovedEvent) OccurredAt() time.Time { return e.MovedAt }

// AllocationEditedEvent is published when an admin correction replaces an allocation quantity
type AllocationEditedEvent struct {
	ItemID      string    `json:"itemId"`
	ProjectID   string    `json:"projectId"`
	OldQuantity int       `json:"oldQuantity"`
	NewQuantity int       `json:"newQuantity"`
	EditedAt    time.Time `json:"editedAt"`
}

func (e *AllocationEditedEvent) EventType() string     { return "stock.allocation.edited" }
func (e *AllocationEditedEvent) OccurredAt() time.Time { return e.EditedAt }

// LowStockAlertEvent is published when an allocation falls to or below its threshold
type LowStockAlertEvent struct {
	ItemID                string    `json:"itemId"`
	ProjectID             string    `json:"projectId"`
	CurrentQuantity       int       `json:"currentQuantity"`
	NotificationThreshold int       `json:"notificationThreshold"`
	AlertedAt             time.Time `json:"alertedAt"`
}

func (e *LowStockAlertEvent) EventType() string     { return "stock.low-stock-alert" }
func (e *LowStockAlertEvent) OccurredAt() time.Time { return e.AlertedAt }
