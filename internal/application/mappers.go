package application

import "github.com/assetdesk/stock-ledger-service/internal/domain"

// ToItemDTO converts a domain item to its DTO
func ToItemDTO(item *domain.Item) *ItemDTO {
	if item == nil {
		return nil
	}

	allocations := make([]AllocationDTO, 0, len(item.Allocations))
	for _, alloc := range item.Allocations {
		allocations = append(allocations, ToAllocationDTO(alloc))
	}

	return &ItemDTO{
		ItemID:        item.ItemID,
		Name:          item.Name,
		PartNumber:    item.PartNumber,
		TotalQuantity: item.TotalQuantity,
		Allocations:   allocations,
		Revision:      item.Revision,
		CreatedAt:     item.CreatedAt,
		UpdatedAt:     item.UpdatedAt,
	}
}

// ToAllocationDTO converts a domain allocation to its DTO
func ToAllocationDTO(alloc domain.Allocation) AllocationDTO {
	return AllocationDTO{
		ProjectID:             alloc.ProjectID,
		Quantity:              alloc.Quantity,
		NotificationThreshold: alloc.NotificationThreshold,
		LocationDetail:        alloc.LocationDetail,
		BelowThreshold:        alloc.IsBelowThreshold(),
		LastModifiedBy:        alloc.LastModifiedBy,
		LastModifiedAt:        alloc.LastModifiedAt,
	}
}

// ToLedgerEntryDTO converts a ledger entry to its DTO
func ToLedgerEntryDTO(entry domain.LedgerEntry) LedgerEntryDTO {
	return LedgerEntryDTO{
		EntryID:          entry.EntryID.String(),
		ItemID:           entry.ItemID,
		Kind:             string(entry.Kind),
		ProjectID:        entry.ProjectID,
		MovedFromProject: entry.MovedFromProject,
		MovedToProject:   entry.MovedToProject,
		Quantity:         entry.Quantity,
		NewQuantity:      entry.NewQuantity,
		InventoryHandler: entry.InventoryHandler,
		Counterparty:     entry.Counterparty,
		SupplierRef:      entry.SupplierRef,
		Note:             entry.Note,
		CreatedAt:        entry.CreatedAt,
	}
}

// ToLedgerEntryDTOs converts a slice of ledger entries
func ToLedgerEntryDTOs(entries []domain.LedgerEntry) []LedgerEntryDTO {
	dtos := make([]LedgerEntryDTO, 0, len(entries))
	for _, entry := range entries {
		dtos = append(dtos, ToLedgerEntryDTO(entry))
	}
	return dtos
}

// ToLowStockDTOs flattens items into one row per low allocation
func ToLowStockDTOs(items []*domain.Item) []LowStockDTO {
	rows := make([]LowStockDTO, 0)
	for _, item := range items {
		for _, alloc := range item.BelowThreshold() {
			rows = append(rows, LowStockDTO{
				ItemID:                item.ItemID,
				Name:                  item.Name,
				ProjectID:             alloc.ProjectID,
				Quantity:              alloc.Quantity,
				NotificationThreshold: alloc.NotificationThreshold,
				LocationDetail:        alloc.LocationDetail,
			})
		}
	}
	return rows
}
