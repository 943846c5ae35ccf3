package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// LedgerEntryID represents a unique identifier for a ledger entry
type LedgerEntryID struct {
	value string
}

// NewLedgerEntryID creates a new unique ledger entry ID
func NewLedgerEntryID() LedgerEntryID {
	timestamp := time.Now().UTC().Format("20060102150405")
	return LedgerEntryID{
		value: fmt.Sprintf("LE-%s-%s", timestamp, uuid.New().String()[:8]),
	}
}

// ParseLedgerEntryID parses a string into a LedgerEntryID
func ParseLedgerEntryID(s string) (LedgerEntryID, error) {
	if s == "" {
		return LedgerEntryID{}, errors.New("ledger entry ID cannot be empty")
	}
	return LedgerEntryID{value: s}, nil
}

// String returns the string representation
func (id LedgerEntryID) String() string {
	return id.value
}

// MarshalBSONValue implements bson.ValueMarshaler
func (id LedgerEntryID) MarshalBSONValue() (bsontype.Type, []byte, error) {
	return bson.MarshalValue(id.value)
}

// UnmarshalBSONValue implements bson.ValueUnmarshaler
func (id *LedgerEntryID) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	return bson.UnmarshalValue(t, data, &id.value)
}

// LedgerEntry is an immutable record of one stock-affecting event.
// Entries are append-only: they are never updated or deleted, and the
// item aggregate must always be reconstructible by folding them in
// timestamp order.
type LedgerEntry struct {
	EntryID          LedgerEntryID   `bson:"entryId" json:"entryId"`
	ItemID           string          `bson:"itemId" json:"itemId"`
	Kind             TransactionKind `bson:"kind" json:"kind"`
	ProjectID        string          `bson:"projectId,omitempty" json:"projectId,omitempty"`
	MovedFromProject string          `bson:"movedFromProject,omitempty" json:"movedFromProject,omitempty"`
	MovedToProject   string          `bson:"movedToProject,omitempty" json:"movedToProject,omitempty"`
	Quantity         int             `bson:"quantity" json:"quantity"` // always a positive magnitude
	// NewQuantity carries the explicit post-correction allocation quantity
	// for edit entries, so a fold can replay the correction.
	NewQuantity      *int      `bson:"newQuantity,omitempty" json:"newQuantity,omitempty"`
	InventoryHandler string    `bson:"inventoryHandler" json:"inventoryHandler"`
	Counterparty     string    `bson:"counterparty,omitempty" json:"counterparty,omitempty"`
	SupplierRef      string    `bson:"supplierRef,omitempty" json:"supplierRef,omitempty"`
	Note             string    `bson:"note,omitempty" json:"note,omitempty"`
	CreatedAt        time.Time `bson:"createdAt" json:"createdAt"`
}

// NewLedgerEntry creates an entry for a single-project transaction kind
func NewLedgerEntry(itemID string, kind TransactionKind, projectID string, quantity int, actor, counterparty, supplierRef, note string) (LedgerEntry, error) {
	if quantity <= 0 {
		return LedgerEntry{}, ErrInvalidQuantity
	}

	return LedgerEntry{
		EntryID:          NewLedgerEntryID(),
		ItemID:           itemID,
		Kind:             kind,
		ProjectID:        projectID,
		Quantity:         quantity,
		InventoryHandler: actor,
		Counterparty:     counterparty,
		SupplierRef:      supplierRef,
		Note:             note,
		CreatedAt:        time.Now().UTC(),
	}, nil
}

// NewMoveLedgerEntry creates an entry for a move between two projects
func NewMoveLedgerEntry(itemID, fromProject, toProject string, quantity int, actor, note string) (LedgerEntry, error) {
	if quantity <= 0 {
		return LedgerEntry{}, ErrInvalidQuantity
	}
	if fromProject == toProject {
		return LedgerEntry{}, ErrNoOpMove
	}

	return LedgerEntry{
		EntryID:          NewLedgerEntryID(),
		ItemID:           itemID,
		Kind:             KindMove,
		MovedFromProject: fromProject,
		MovedToProject:   toProject,
		Quantity:         quantity,
		InventoryHandler: actor,
		Note:             note,
		CreatedAt:        time.Now().UTC(),
	}, nil
}

// NewEditLedgerEntry creates an admin-correction entry. The stored quantity is
// the magnitude of the correction and newQuantity the explicit resulting value.
func NewEditLedgerEntry(itemID, projectID string, oldQuantity, newQuantity int, actor, note string) (LedgerEntry, error) {
	delta := newQuantity - oldQuantity
	if delta < 0 {
		delta = -delta
	}
	if delta == 0 {
		return LedgerEntry{}, ErrInvalidQuantity
	}

	nq := newQuantity
	return LedgerEntry{
		EntryID:          NewLedgerEntryID(),
		ItemID:           itemID,
		Kind:             KindEdit,
		ProjectID:        projectID,
		Quantity:         delta,
		NewQuantity:      &nq,
		InventoryHandler: actor,
		Note:             note,
		CreatedAt:        time.Now().UTC(),
	}, nil
}

// IsInbound reports whether the entry increases the item's total quantity
func (e LedgerEntry) IsInbound() bool {
	switch e.Kind {
	case KindCreate, KindAdd, KindReturn:
		return true
	default:
		return false
	}
}

// IsOutbound reports whether the entry decreases the item's total quantity
func (e LedgerEntry) IsOutbound() bool {
	return e.Kind == KindIssue || e.Kind == KindConsume
}
