package application

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/assetdesk/stock-ledger-service/pkg/errors"
	"github.com/assetdesk/stock-ledger-service/pkg/logging"

	"github.com/assetdesk/stock-ledger-service/internal/domain"
)

func newQueryFixture(t *testing.T) (*QueryService, *fakeItemRepo, *fakeLedgerRepo) {
	t.Helper()
	items := &fakeItemRepo{}
	ledger := &fakeLedgerRepo{outstanding: map[string]int{}}
	logger := logging.New(logging.DefaultConfig("test"))

	item, createEntry, err := domain.NewItem("ITEM-1", "Hex Bolt M8", "HB-M8-40", "PROJ-A", 100, 10, "", "PO-1", "", "tester")
	require.NoError(t, err)
	require.NoError(t, items.Create(context.Background(), item, createEntry))
	ledger.entries = append(ledger.entries, createEntry)

	return NewQueryService(items, ledger, nil, logger), items, ledger
}

func TestQueryService_GetItem(t *testing.T) {
	svc, _, _ := newQueryFixture(t)

	dto, err := svc.GetItem(context.Background(), GetItemQuery{ItemID: "ITEM-1"})
	require.NoError(t, err)
	assert.Equal(t, "ITEM-1", dto.ItemID)
	assert.Equal(t, 100, dto.TotalQuantity)
	require.Len(t, dto.Allocations, 1)
	assert.False(t, dto.Allocations[0].BelowThreshold)

	_, err = svc.GetItem(context.Background(), GetItemQuery{ItemID: "MISSING"})
	assertAppErrorCode(t, err, apperrors.CodeNotFound)
}

func TestQueryService_GetLedger(t *testing.T) {
	svc, _, ledger := newQueryFixture(t)

	issue, err := domain.NewLedgerEntry("ITEM-1", domain.KindIssue, "PROJ-A", 30, "tester", "crew-7", "", "")
	require.NoError(t, err)
	ledger.entries = append(ledger.entries, issue)

	entries, err := svc.GetLedger(context.Background(), GetLedgerQuery{ItemID: "ITEM-1"})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	// Newest first
	assert.Equal(t, "issue", entries[0].Kind)
	assert.Equal(t, "create", entries[1].Kind)

	_, err = svc.GetLedger(context.Background(), GetLedgerQuery{ItemID: "MISSING"})
	assertAppErrorCode(t, err, apperrors.CodeNotFound)
}

func TestQueryService_GetAvailability(t *testing.T) {
	svc, _, ledger := newQueryFixture(t)
	ledger.outstanding[outstandingKey("ITEM-1", "PROJ-A", "crew-7")] = 150

	dto, err := svc.GetAvailability(context.Background(), AvailabilityQuery{
		ItemID: "ITEM-1", ProjectID: "PROJ-A", CounterpartyID: "crew-7",
	})
	require.NoError(t, err)
	assert.Equal(t, 100, dto.Issuable)
	assert.Equal(t, 150, dto.Returnable)
	// Consuming needs the stock to still sit in the allocation
	assert.Equal(t, 100, dto.Consumable)

	// Without a counterparty only the issuable side is reported
	dto, err = svc.GetAvailability(context.Background(), AvailabilityQuery{
		ItemID: "ITEM-1", ProjectID: "PROJ-A",
	})
	require.NoError(t, err)
	assert.Equal(t, 100, dto.Issuable)
	assert.Zero(t, dto.Returnable)
	assert.Zero(t, dto.Consumable)

	// Unknown project issues nothing
	dto, err = svc.GetAvailability(context.Background(), AvailabilityQuery{
		ItemID: "ITEM-1", ProjectID: "PROJ-X",
	})
	require.NoError(t, err)
	assert.Zero(t, dto.Issuable)
}

func TestQueryService_AuditItem(t *testing.T) {
	svc, items, _ := newQueryFixture(t)

	report, err := svc.AuditItem(context.Background(), "ITEM-1")
	require.NoError(t, err)
	assert.False(t, report.Diverged)
	assert.Equal(t, 1, report.EntryCount)
	assert.Equal(t, 100, report.CachedTotal)
	assert.Equal(t, 100, report.RebuiltTotal)

	// Drift the cached aggregate away from its ledger
	items.items["ITEM-1"].TotalQuantity = 90
	items.items["ITEM-1"].Allocations[0].Quantity = 90

	report, err = svc.AuditItem(context.Background(), "ITEM-1")
	require.NoError(t, err)
	assert.True(t, report.Diverged)
	assert.Equal(t, 90, report.CachedTotal)
	assert.Equal(t, 100, report.RebuiltTotal)

	_, err = svc.AuditItem(context.Background(), "MISSING")
	assertAppErrorCode(t, err, apperrors.CodeNotFound)
}
