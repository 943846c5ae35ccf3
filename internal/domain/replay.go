package domain

import "fmt"

// ReplayLedger folds an item's ledger entries in commit order into the
// quantity state of the aggregate. The ledger is the source of truth for
// quantities; thresholds and location details are allocation configuration
// and are not part of the fold.
func ReplayLedger(itemID string, entries []LedgerEntry) (*Item, error) {
	item := &Item{
		ItemID:      itemID,
		Allocations: make([]Allocation, 0),
	}

	for _, entry := range entries {
		if entry.ItemID != itemID {
			return nil, fmt.Errorf("ledger entry %s belongs to item %s, not %s", entry.EntryID, entry.ItemID, itemID)
		}
		if err := applyEntry(item, entry); err != nil {
			return nil, err
		}
	}

	item.recomputeTotal()
	return item, nil
}

func applyEntry(item *Item, entry LedgerEntry) error {
	switch entry.Kind {
	case KindCreate, KindAdd, KindReturn:
		replayAdjust(item, entry.ProjectID, entry.Quantity)
	case KindIssue, KindConsume:
		replayAdjust(item, entry.ProjectID, -entry.Quantity)
	case KindMove:
		replayAdjust(item, entry.MovedFromProject, -entry.Quantity)
		replayAdjust(item, entry.MovedToProject, entry.Quantity)
	case KindEdit:
		if entry.NewQuantity == nil {
			return fmt.Errorf("edit entry %s carries no resulting quantity", entry.EntryID)
		}
		alloc := item.allocation(entry.ProjectID)
		if alloc == nil {
			return fmt.Errorf("edit entry %s references unknown allocation %s", entry.EntryID, entry.ProjectID)
		}
		alloc.Quantity = *entry.NewQuantity
	default:
		return fmt.Errorf("ledger entry %s has unknown kind %q", entry.EntryID, entry.Kind)
	}
	return nil
}

func replayAdjust(item *Item, projectID string, delta int) {
	alloc := item.allocation(projectID)
	if alloc == nil {
		item.Allocations = append(item.Allocations, Allocation{ProjectID: projectID, Quantity: delta})
		return
	}
	alloc.Quantity += delta
}

// Diverges compares the cached aggregate's quantity state against a ledger
// rebuild. A true result means the cache has drifted and must be repaired.
func Diverges(cached, rebuilt *Item) bool {
	if cached.TotalQuantity != rebuilt.TotalQuantity {
		return true
	}
	if len(cached.Allocations) != len(rebuilt.Allocations) {
		return true
	}
	for _, alloc := range cached.Allocations {
		other := rebuilt.allocation(alloc.ProjectID)
		if other == nil || other.Quantity != alloc.Quantity {
			return true
		}
	}
	return false
}
