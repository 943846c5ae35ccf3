package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Allocation is the quantity of an item assigned to one consuming project
type Allocation struct {
	ProjectID             string    `bson:"projectId" json:"projectId"`
	Quantity              int       `bson:"quantity" json:"quantity"`
	NotificationThreshold int       `bson:"notificationThreshold" json:"notificationThreshold"`
	LocationDetail        string    `bson:"locationDetail,omitempty" json:"locationDetail,omitempty"`
	LastModifiedBy        string    `bson:"lastModifiedBy" json:"lastModifiedBy"`
	LastModifiedAt        time.Time `bson:"lastModifiedAt" json:"lastModifiedAt"`
}

// IsBelowThreshold reports whether the allocation should trigger a low-stock alert
func (a Allocation) IsBelowThreshold() bool {
	return a.Quantity <= a.NotificationThreshold
}

// Item is the aggregate root for one trackable inventory unit type.
// TotalQuantity is derived and must equal the sum of allocation quantities
// at all times. The persisted document is a cache of the ledger fold;
// Revision guards concurrent writers.
type Item struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	ItemID     string             `bson:"itemId" json:"itemId"`
	Name       string             `bson:"name" json:"name"`
	PartNumber string             `bson:"partNumber,omitempty" json:"partNumber,omitempty"`

	TotalQuantity int          `bson:"totalQuantity" json:"totalQuantity"`
	Allocations   []Allocation `bson:"allocations" json:"allocations"`

	Revision  int64     `bson:"revision" json:"revision"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`

	DomainEvents []DomainEvent `bson:"-" json:"-"`
}

// NewItem creates an item with its initial allocation and returns the
// create ledger entry that records the event. threshold < 0 means no
// explicit threshold and defaults to 0.
func NewItem(itemID, name, partNumber, projectID string, quantity, threshold int, locationDetail, supplierRef, note, actor string) (*Item, LedgerEntry, error) {
	if quantity <= 0 {
		return nil, LedgerEntry{}, ErrInvalidQuantity
	}
	if threshold < 0 {
		threshold = 0
	}
	if threshold >= quantity {
		return nil, LedgerEntry{}, ErrInvalidNotificationThreshold
	}

	now := time.Now().UTC()
	item := &Item{
		ItemID:     itemID,
		Name:       name,
		PartNumber: partNumber,
		Allocations: []Allocation{{
			ProjectID:             projectID,
			Quantity:              quantity,
			NotificationThreshold: threshold,
			LocationDetail:        locationDetail,
			LastModifiedBy:        actor,
			LastModifiedAt:        now,
		}},
		TotalQuantity: quantity,
		Revision:      1,
		CreatedAt:     now,
		UpdatedAt:     now,
		DomainEvents:  make([]DomainEvent, 0),
	}

	entry, err := NewLedgerEntry(itemID, KindCreate, projectID, quantity, actor, "", supplierRef, note)
	if err != nil {
		return nil, LedgerEntry{}, err
	}

	item.addDomainEvent(&ItemCreatedEvent{
		ItemID:    itemID,
		ProjectID: projectID,
		Quantity:  quantity,
		CreatedAt: now,
	})

	return item, entry, nil
}

// AddStock adds quantity to a project allocation, creating the allocation
// when the project is new to this item. threshold < 0 keeps the existing
// threshold (new allocations then default to 0).
func (i *Item) AddStock(projectID string, quantity, threshold int, locationDetail, supplierRef, note, actor string) (LedgerEntry, error) {
	if quantity <= 0 {
		return LedgerEntry{}, ErrInvalidQuantity
	}

	now := time.Now().UTC()
	alloc := i.allocation(projectID)
	if alloc == nil {
		newThreshold := 0
		if threshold >= 0 {
			newThreshold = threshold
		}
		if newThreshold >= quantity {
			return LedgerEntry{}, ErrInvalidNotificationThreshold
		}
		i.Allocations = append(i.Allocations, Allocation{
			ProjectID:             projectID,
			Quantity:              quantity,
			NotificationThreshold: newThreshold,
			LocationDetail:        locationDetail,
			LastModifiedBy:        actor,
			LastModifiedAt:        now,
		})
	} else {
		newQuantity := alloc.Quantity + quantity
		if threshold >= 0 {
			if threshold >= newQuantity {
				return LedgerEntry{}, ErrInvalidNotificationThreshold
			}
			alloc.NotificationThreshold = threshold
		} else if alloc.NotificationThreshold >= newQuantity {
			return LedgerEntry{}, ErrInvalidNotificationThreshold
		}
		alloc.Quantity = newQuantity
		if locationDetail != "" {
			alloc.LocationDetail = locationDetail
		}
		alloc.LastModifiedBy = actor
		alloc.LastModifiedAt = now
	}

	i.TotalQuantity += quantity
	i.UpdatedAt = now

	entry, err := NewLedgerEntry(i.ItemID, KindAdd, projectID, quantity, actor, "", supplierRef, note)
	if err != nil {
		return LedgerEntry{}, err
	}

	i.addDomainEvent(&StockAddedEvent{
		ItemID:    i.ItemID,
		ProjectID: projectID,
		Quantity:  quantity,
		AddedAt:   now,
	})

	return entry, nil
}

// Issue hands quantity from a project allocation to a counterparty.
// Bounded by the allocation's current quantity, a direct aggregate read.
func (i *Item) Issue(projectID string, quantity int, counterparty, note, actor string) (LedgerEntry, error) {
	if quantity <= 0 {
		return LedgerEntry{}, ErrInvalidQuantity
	}
	if counterparty == "" {
		return LedgerEntry{}, ErrCounterpartyRequired
	}

	alloc := i.allocation(projectID)
	if alloc == nil {
		return LedgerEntry{}, ErrUnknownAllocation
	}
	if alloc.Quantity < quantity {
		return LedgerEntry{}, ErrInsufficientStock
	}

	now := time.Now().UTC()
	alloc.Quantity -= quantity
	alloc.LastModifiedBy = actor
	alloc.LastModifiedAt = now
	i.TotalQuantity -= quantity
	i.UpdatedAt = now

	entry, err := NewLedgerEntry(i.ItemID, KindIssue, projectID, quantity, actor, counterparty, "", note)
	if err != nil {
		return LedgerEntry{}, err
	}

	i.addDomainEvent(&StockIssuedEvent{
		ItemID:       i.ItemID,
		ProjectID:    projectID,
		Quantity:     quantity,
		Counterparty: counterparty,
		IssuedAt:     now,
	})
	i.alertIfBelowThreshold(*alloc)

	return entry, nil
}

// ReturnStock takes quantity back from a counterparty into the allocation.
// outstanding is the counterparty's net issued balance for this project,
// computed from the ledger by the caller.
func (i *Item) ReturnStock(projectID string, quantity int, counterparty, note, actor string, outstanding int) (LedgerEntry, error) {
	if quantity <= 0 {
		return LedgerEntry{}, ErrInvalidQuantity
	}
	if counterparty == "" {
		return LedgerEntry{}, ErrCounterpartyRequired
	}

	alloc := i.allocation(projectID)
	if alloc == nil {
		return LedgerEntry{}, ErrUnknownAllocation
	}
	if quantity > outstanding {
		return LedgerEntry{}, ErrInsufficientIssuedBalance
	}

	now := time.Now().UTC()
	alloc.Quantity += quantity
	alloc.LastModifiedBy = actor
	alloc.LastModifiedAt = now
	i.TotalQuantity += quantity
	i.UpdatedAt = now

	entry, err := NewLedgerEntry(i.ItemID, KindReturn, projectID, quantity, actor, counterparty, "", note)
	if err != nil {
		return LedgerEntry{}, err
	}

	i.addDomainEvent(&StockReturnedEvent{
		ItemID:       i.ItemID,
		ProjectID:    projectID,
		Quantity:     quantity,
		Counterparty: counterparty,
		ReturnedAt:   now,
	})

	return entry, nil
}

// Consume records quantity as permanently used up by a counterparty.
// Consumed stock leaves the allocation and the total; the bound is the
// counterparty's net issued balance, same as a return.
func (i *Item) Consume(projectID string, quantity int, counterparty, note, actor string, outstanding int) (LedgerEntry, error) {
	if quantity <= 0 {
		return LedgerEntry{}, ErrInvalidQuantity
	}
	if counterparty == "" {
		return LedgerEntry{}, ErrCounterpartyRequired
	}

	alloc := i.allocation(projectID)
	if alloc == nil {
		return LedgerEntry{}, ErrUnknownAllocation
	}
	if quantity > outstanding {
		return LedgerEntry{}, ErrInsufficientIssuedBalance
	}
	if alloc.Quantity < quantity {
		return LedgerEntry{}, ErrInsufficientStock
	}

	now := time.Now().UTC()
	alloc.Quantity -= quantity
	alloc.LastModifiedBy = actor
	alloc.LastModifiedAt = now
	i.TotalQuantity -= quantity
	i.UpdatedAt = now

	entry, err := NewLedgerEntry(i.ItemID, KindConsume, projectID, quantity, actor, counterparty, "", note)
	if err != nil {
		return LedgerEntry{}, err
	}

	i.addDomainEvent(&StockConsumedEvent{
		ItemID:       i.ItemID,
		ProjectID:    projectID,
		Quantity:     quantity,
		Counterparty: counterparty,
		ConsumedAt:   now,
	})
	i.alertIfBelowThreshold(*alloc)

	return entry, nil
}

// Move transfers quantity between two project allocations of the same item.
// Both sides change in one unit; the total is unchanged.
func (i *Item) Move(fromProject, toProject string, quantity int, note, actor string) (LedgerEntry, error) {
	if quantity <= 0 {
		return LedgerEntry{}, ErrInvalidQuantity
	}
	if fromProject == toProject {
		return LedgerEntry{}, ErrNoOpMove
	}

	source := i.allocation(fromProject)
	if source == nil {
		return LedgerEntry{}, ErrUnknownAllocation
	}
	if source.Quantity < quantity {
		return LedgerEntry{}, ErrInsufficientStock
	}

	now := time.Now().UTC()
	source.Quantity -= quantity
	source.LastModifiedBy = actor
	source.LastModifiedAt = now

	dest := i.allocation(toProject)
	if dest == nil {
		i.Allocations = append(i.Allocations, Allocation{
			ProjectID:      toProject,
			Quantity:       quantity,
			LastModifiedBy: actor,
			LastModifiedAt: now,
		})
	} else {
		dest.Quantity += quantity
		dest.LastModifiedBy = actor
		dest.LastModifiedAt = now
	}
	i.UpdatedAt = now

	entry, err := NewMoveLedgerEntry(i.ItemID, fromProject, toProject, quantity, actor, note)
	if err != nil {
		return LedgerEntry{}, err
	}

	i.addDomainEvent(&StockMovedEvent{
		ItemID:      i.ItemID,
		FromProject: fromProject,
		ToProject:   toProject,
		Quantity:    quantity,
		MovedAt:     now,
	})
	i.alertIfBelowThreshold(*i.allocation(fromProject))

	return entry, nil
}

// EditAllocation replaces one allocation's quantity with an explicit new
// value (admin correction). threshold < 0 keeps the current threshold.
// The item total is recomputed from the allocation set. When the quantity
// is unchanged no ledger entry is produced, since nothing stock-affecting
// happened.
func (i *Item) EditAllocation(projectID string, newQuantity, threshold int, locationDetail, note, actor string) (*LedgerEntry, error) {
	if newQuantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	alloc := i.allocation(projectID)
	if alloc == nil {
		return nil, ErrUnknownAllocation
	}

	newThreshold := alloc.NotificationThreshold
	if threshold >= 0 {
		newThreshold = threshold
	}
	if newThreshold < 0 || newThreshold >= newQuantity {
		return nil, ErrInvalidNotificationThreshold
	}

	now := time.Now().UTC()
	oldQuantity := alloc.Quantity
	alloc.Quantity = newQuantity
	alloc.NotificationThreshold = newThreshold
	if locationDetail != "" {
		alloc.LocationDetail = locationDetail
	}
	alloc.LastModifiedBy = actor
	alloc.LastModifiedAt = now

	i.recomputeTotal()
	i.UpdatedAt = now

	i.addDomainEvent(&AllocationEditedEvent{
		ItemID:      i.ItemID,
		ProjectID:   projectID,
		OldQuantity: oldQuantity,
		NewQuantity: newQuantity,
		EditedAt:    now,
	})
	i.alertIfBelowThreshold(*alloc)

	if newQuantity == oldQuantity {
		return nil, nil
	}

	entry, err := NewEditLedgerEntry(i.ItemID, projectID, oldQuantity, newQuantity, actor, note)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// IssuableQuantity returns how much can currently be issued from a project
// allocation, a direct aggregate read.
func (i *Item) IssuableQuantity(projectID string) int {
	if alloc := i.allocation(projectID); alloc != nil {
		return alloc.Quantity
	}
	return 0
}

// GetAllocation returns a copy of the allocation for a project, or nil
func (i *Item) GetAllocation(projectID string) *Allocation {
	if alloc := i.allocation(projectID); alloc != nil {
		copied := *alloc
		return &copied
	}
	return nil
}

// BelowThreshold returns the allocations at or below their notification threshold
func (i *Item) BelowThreshold() []Allocation {
	low := make([]Allocation, 0)
	for _, alloc := range i.Allocations {
		if alloc.IsBelowThreshold() {
			low = append(low, alloc)
		}
	}
	return low
}

func (i *Item) allocation(projectID string) *Allocation {
	for idx := range i.Allocations {
		if i.Allocations[idx].ProjectID == projectID {
			return &i.Allocations[idx]
		}
	}
	return nil
}

func (i *Item) recomputeTotal() {
	total := 0
	for _, alloc := range i.Allocations {
		total += alloc.Quantity
	}
	i.TotalQuantity = total
}

func (i *Item) alertIfBelowThreshold(alloc Allocation) {
	if alloc.IsBelowThreshold() {
		i.addDomainEvent(&LowStockAlertEvent{
			ItemID:                i.ItemID,
			ProjectID:             alloc.ProjectID,
			CurrentQuantity:       alloc.Quantity,
			NotificationThreshold: alloc.NotificationThreshold,
			AlertedAt:             time.Now().UTC(),
		})
	}
}

// addDomainEvent appends a pending domain event
func (i *Item) addDomainEvent(event DomainEvent) {
	i.DomainEvents = append(i.DomainEvents, event)
}

// PullEvents returns and clears pending domain events
func (i *Item) PullEvents() []DomainEvent {
	events := i.DomainEvents
	i.DomainEvents = nil
	return events
}

// ClearDomainEvents clears all pending domain events
func (i *Item) ClearDomainEvents() {
	i.DomainEvents = nil
}
