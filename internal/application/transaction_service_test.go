package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/assetdesk/stock-ledger-service/pkg/errors"
	"github.com/assetdesk/stock-ledger-service/pkg/logging"

	"github.com/assetdesk/stock-ledger-service/internal/domain"
)

type fakeItemRepo struct {
	items   map[string]*domain.Item
	entries []domain.LedgerEntry

	findErr   error
	createErr error
	updateErr error

	// staleSnapshot, when set, is returned by loads instead of the stored
	// state, simulating a reader that raced with another writer.
	staleSnapshot *domain.Item
}

func copyItem(item *domain.Item) *domain.Item {
	copied := *item
	copied.Allocations = append([]domain.Allocation(nil), item.Allocations...)
	copied.DomainEvents = nil
	return &copied
}

func (f *fakeItemRepo) FindByItemID(ctx context.Context, itemID string) (*domain.Item, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	if f.staleSnapshot != nil {
		return copyItem(f.staleSnapshot), nil
	}
	item, ok := f.items[itemID]
	if !ok {
		return nil, nil
	}
	return copyItem(item), nil
}

func (f *fakeItemRepo) Create(ctx context.Context, item *domain.Item, entry domain.LedgerEntry) error {
	if f.createErr != nil {
		return f.createErr
	}
	if f.items == nil {
		f.items = make(map[string]*domain.Item)
	}
	if _, exists := f.items[item.ItemID]; exists {
		return domain.ErrItemAlreadyExists
	}
	f.items[item.ItemID] = copyItem(item)
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeItemRepo) Update(ctx context.Context, item *domain.Item, expectedRevision int64, entries []domain.LedgerEntry) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	stored, ok := f.items[item.ItemID]
	if !ok || stored.Revision != expectedRevision {
		return domain.ErrConcurrentModification
	}
	item.Revision = expectedRevision + 1
	f.items[item.ItemID] = copyItem(item)
	f.entries = append(f.entries, entries...)
	return nil
}

func (f *fakeItemRepo) FindAll(ctx context.Context, limit, offset int) ([]*domain.Item, error) {
	results := make([]*domain.Item, 0, len(f.items))
	for _, item := range f.items {
		results = append(results, copyItem(item))
	}
	return results, nil
}

func (f *fakeItemRepo) FindBelowThreshold(ctx context.Context) ([]*domain.Item, error) {
	results := make([]*domain.Item, 0)
	for _, item := range f.items {
		if len(item.BelowThreshold()) > 0 {
			results = append(results, copyItem(item))
		}
	}
	return results, nil
}

type fakeLedgerRepo struct {
	outstanding map[string]int
	entries     []domain.LedgerEntry

	// onOutstanding, when set, runs once while a balance read is in
	// flight, after the value has been computed. It simulates a rival
	// writer committing in that window.
	onOutstanding func()
}

func outstandingKey(itemID, projectID, counterparty string) string {
	return itemID + "|" + projectID + "|" + counterparty
}

func (f *fakeLedgerRepo) FindByItemID(ctx context.Context, itemID string, limit int) ([]domain.LedgerEntry, error) {
	results := make([]domain.LedgerEntry, 0)
	for i := len(f.entries) - 1; i >= 0 && len(results) < limit; i-- {
		if f.entries[i].ItemID == itemID {
			results = append(results, f.entries[i])
		}
	}
	return results, nil
}

func (f *fakeLedgerRepo) FindByItemIDAscending(ctx context.Context, itemID string) ([]domain.LedgerEntry, error) {
	results := make([]domain.LedgerEntry, 0)
	for _, e := range f.entries {
		if e.ItemID == itemID {
			results = append(results, e)
		}
	}
	return results, nil
}

func (f *fakeLedgerRepo) OutstandingIssuedBalance(ctx context.Context, itemID, projectID, counterparty string) (int, error) {
	balance := f.outstanding[outstandingKey(itemID, projectID, counterparty)]
	if f.onOutstanding != nil {
		hook := f.onOutstanding
		f.onOutstanding = nil
		hook()
	}
	return balance, nil
}

func (f *fakeLedgerRepo) FindByTimeRange(ctx context.Context, itemID string, start, end time.Time) ([]domain.LedgerEntry, error) {
	return f.FindByItemIDAscending(ctx, itemID)
}

type fakePublisher struct {
	events     []domain.DomainEvent
	publishErr error
}

func (f *fakePublisher) Publish(ctx context.Context, event domain.DomainEvent) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.events = append(f.events, event)
	return nil
}

func (f *fakePublisher) PublishAll(ctx context.Context, events []domain.DomainEvent) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.events = append(f.events, events...)
	return nil
}

func newTestService(items *fakeItemRepo, ledger *fakeLedgerRepo, publisher *fakePublisher) *TransactionService {
	logger := logging.New(logging.DefaultConfig("test"))
	return NewTransactionService(items, ledger, publisher, nil, nil, logger)
}

func createRequest(itemID string, quantity int) Request {
	return Request{
		Kind:      domain.KindCreate,
		ItemID:    itemID,
		Name:      "Hex Bolt M8",
		ProjectID: "PROJ-A",
		Quantity:  quantity,
		ActorID:   "tester",
	}
}

func assertAppErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok, "expected AppError, got %v", err)
	assert.Equal(t, code, appErr.Code)
}

func TestTransactionService_CreateItem(t *testing.T) {
	items := &fakeItemRepo{}
	ledger := &fakeLedgerRepo{}
	publisher := &fakePublisher{}
	svc := newTestService(items, ledger, publisher)

	dto, err := svc.Apply(context.Background(), createRequest("ITEM-1", 100))
	require.NoError(t, err)
	require.NotNil(t, dto)
	assert.Equal(t, 100, dto.TotalQuantity)
	assert.Equal(t, int64(1), dto.Revision)
	require.Len(t, items.entries, 1)
	assert.Equal(t, domain.KindCreate, items.entries[0].Kind)
	require.Len(t, publisher.events, 1)
	assert.Equal(t, "stock.item.created", publisher.events[0].EventType())

	// Creating the same item again is a conflict
	_, err = svc.Apply(context.Background(), createRequest("ITEM-1", 50))
	assertAppErrorCode(t, err, apperrors.CodeConflict)
}

func TestTransactionService_AddIssueReturnConsume(t *testing.T) {
	items := &fakeItemRepo{}
	ledger := &fakeLedgerRepo{outstanding: map[string]int{}}
	publisher := &fakePublisher{}
	svc := newTestService(items, ledger, publisher)

	_, err := svc.Apply(context.Background(), createRequest("ITEM-1", 100))
	require.NoError(t, err)

	dto, err := svc.Apply(context.Background(), Request{
		Kind: domain.KindAdd, ItemID: "ITEM-1", ProjectID: "PROJ-A",
		Quantity: 20, SupplierRef: "PO-9", ActorID: "tester",
	})
	require.NoError(t, err)
	assert.Equal(t, 120, dto.TotalQuantity)

	dto, err = svc.Apply(context.Background(), Request{
		Kind: domain.KindIssue, ItemID: "ITEM-1", ProjectID: "PROJ-A",
		Quantity: 30, CounterpartyID: "crew-7", ActorID: "tester",
	})
	require.NoError(t, err)
	assert.Equal(t, 90, dto.TotalQuantity)

	// Nothing outstanding yet according to the fake ledger
	_, err = svc.Apply(context.Background(), Request{
		Kind: domain.KindReturn, ItemID: "ITEM-1", ProjectID: "PROJ-A",
		Quantity: 10, CounterpartyID: "crew-7", ActorID: "tester",
	})
	assertAppErrorCode(t, err, apperrors.CodeValidationError)

	ledger.outstanding[outstandingKey("ITEM-1", "PROJ-A", "crew-7")] = 30

	dto, err = svc.Apply(context.Background(), Request{
		Kind: domain.KindReturn, ItemID: "ITEM-1", ProjectID: "PROJ-A",
		Quantity: 10, CounterpartyID: "crew-7", ActorID: "tester",
	})
	require.NoError(t, err)
	assert.Equal(t, 100, dto.TotalQuantity)

	dto, err = svc.Apply(context.Background(), Request{
		Kind: domain.KindConsume, ItemID: "ITEM-1", ProjectID: "PROJ-A",
		Quantity: 15, CounterpartyID: "crew-7", ActorID: "tester",
	})
	require.NoError(t, err)
	assert.Equal(t, 85, dto.TotalQuantity)

	// create + add + issue + return + consume
	assert.Len(t, items.entries, 5)
	assert.Equal(t, int64(5), items.items["ITEM-1"].Revision)
}

func TestTransactionService_MoveAndEdit(t *testing.T) {
	items := &fakeItemRepo{}
	svc := newTestService(items, &fakeLedgerRepo{}, &fakePublisher{})

	_, err := svc.Apply(context.Background(), createRequest("ITEM-1", 100))
	require.NoError(t, err)

	dto, err := svc.Apply(context.Background(), Request{
		Kind: domain.KindMove, ItemID: "ITEM-1",
		FromProjectID: "PROJ-A", ToProjectID: "PROJ-B",
		Quantity: 40, ActorID: "tester",
	})
	require.NoError(t, err)
	assert.Equal(t, 100, dto.TotalQuantity)
	require.Len(t, dto.Allocations, 2)

	dto, err = svc.Apply(context.Background(), Request{
		Kind: domain.KindEdit, ItemID: "ITEM-1", ProjectID: "PROJ-B",
		Quantity: 25, ActorID: "tester", Note: "cycle count",
	})
	require.NoError(t, err)
	assert.Equal(t, 85, dto.TotalQuantity)

	// create + move + edit
	require.Len(t, items.entries, 3)
	editEntry := items.entries[2]
	assert.Equal(t, domain.KindEdit, editEntry.Kind)
	require.NotNil(t, editEntry.NewQuantity)
	assert.Equal(t, 25, *editEntry.NewQuantity)
}

func TestTransactionService_EditUnchangedQuantityWritesNoEntry(t *testing.T) {
	items := &fakeItemRepo{}
	svc := newTestService(items, &fakeLedgerRepo{}, &fakePublisher{})

	_, err := svc.Apply(context.Background(), createRequest("ITEM-1", 100))
	require.NoError(t, err)

	threshold := 40
	dto, err := svc.Apply(context.Background(), Request{
		Kind: domain.KindEdit, ItemID: "ITEM-1", ProjectID: "PROJ-A",
		Quantity: 100, NotificationThreshold: &threshold, ActorID: "tester",
	})
	require.NoError(t, err)
	assert.Equal(t, 100, dto.TotalQuantity)
	assert.Equal(t, 40, dto.Allocations[0].NotificationThreshold)

	// Only the create entry; the quantity did not change
	assert.Len(t, items.entries, 1)
	// The aggregate still advanced a revision for the threshold change
	assert.Equal(t, int64(2), items.items["ITEM-1"].Revision)
}

func TestTransactionService_ConcurrentModification(t *testing.T) {
	items := &fakeItemRepo{}
	svc := newTestService(items, &fakeLedgerRepo{}, &fakePublisher{})

	_, err := svc.Apply(context.Background(), createRequest("ITEM-1", 10))
	require.NoError(t, err)

	// Both writers read revision 1 with 10 in stock
	snapshot := copyItem(items.items["ITEM-1"])

	// First writer commits normally
	_, err = svc.Apply(context.Background(), Request{
		Kind: domain.KindIssue, ItemID: "ITEM-1", ProjectID: "PROJ-A",
		Quantity: 6, CounterpartyID: "crew-7", ActorID: "tester",
	})
	require.NoError(t, err)

	// Second writer still holds the pre-commit snapshot; its guarded write
	// must be rejected even though 6 <= 10 looked fine on its copy
	items.staleSnapshot = snapshot
	_, err = svc.Apply(context.Background(), Request{
		Kind: domain.KindIssue, ItemID: "ITEM-1", ProjectID: "PROJ-A",
		Quantity: 6, CounterpartyID: "crew-7", ActorID: "tester",
	})
	assertAppErrorCode(t, err, apperrors.CodeConflict)

	// Only one issue landed; a retry with fresh state sees 4 left
	items.staleSnapshot = nil
	stored := items.items["ITEM-1"]
	assert.Equal(t, 4, stored.TotalQuantity)
	assert.Len(t, items.entries, 2)

	_, err = svc.Apply(context.Background(), Request{
		Kind: domain.KindIssue, ItemID: "ITEM-1", ProjectID: "PROJ-A",
		Quantity: 6, CounterpartyID: "crew-7", ActorID: "tester",
	})
	assertAppErrorCode(t, err, apperrors.CodeValidationError)
}

func TestTransactionService_ReturnRacingCommitRejected(t *testing.T) {
	items := &fakeItemRepo{}
	ledger := &fakeLedgerRepo{outstanding: map[string]int{}}
	svc := newTestService(items, ledger, &fakePublisher{})

	_, err := svc.Apply(context.Background(), createRequest("ITEM-1", 10))
	require.NoError(t, err)
	_, err = svc.Apply(context.Background(), Request{
		Kind: domain.KindIssue, ItemID: "ITEM-1", ProjectID: "PROJ-A",
		Quantity: 4, CounterpartyID: "crew-7", ActorID: "tester",
	})
	require.NoError(t, err)

	key := outstandingKey("ITEM-1", "PROJ-A", "crew-7")
	ledger.outstanding[key] = 4

	// A rival return of the full issued balance commits while our balance
	// read is in flight. The rival's commit bumps the stored revision, so
	// our write must hit the revision guard instead of landing a second
	// full return on top of a drained balance.
	ledger.onOutstanding = func() {
		stored := items.items["ITEM-1"]
		entry, hookErr := stored.ReturnStock("PROJ-A", 4, "crew-7", "", "rival", 4)
		require.NoError(t, hookErr)
		stored.Revision++
		stored.ClearDomainEvents()
		items.entries = append(items.entries, entry)
		ledger.outstanding[key] = 0
	}

	_, err = svc.Apply(context.Background(), Request{
		Kind: domain.KindReturn, ItemID: "ITEM-1", ProjectID: "PROJ-A",
		Quantity: 4, CounterpartyID: "crew-7", ActorID: "tester",
	})
	assertAppErrorCode(t, err, apperrors.CodeConflict)

	// Only the rival's return landed: 10 units total ever, three entries
	stored := items.items["ITEM-1"]
	assert.Equal(t, 10, stored.TotalQuantity)
	assert.Len(t, items.entries, 3)

	// A retry sees the drained balance and is rejected outright
	_, err = svc.Apply(context.Background(), Request{
		Kind: domain.KindReturn, ItemID: "ITEM-1", ProjectID: "PROJ-A",
		Quantity: 4, CounterpartyID: "crew-7", ActorID: "tester",
	})
	assertAppErrorCode(t, err, apperrors.CodeValidationError)
}

func TestTransactionService_NegativeThresholdRejected(t *testing.T) {
	items := &fakeItemRepo{}
	svc := newTestService(items, &fakeLedgerRepo{}, &fakePublisher{})

	ten := 10
	create := createRequest("ITEM-1", 100)
	create.NotificationThreshold = &ten
	_, err := svc.Apply(context.Background(), create)
	require.NoError(t, err)

	negative := -5
	_, err = svc.Apply(context.Background(), Request{
		Kind: domain.KindEdit, ItemID: "ITEM-1", ProjectID: "PROJ-A",
		Quantity: 100, NotificationThreshold: &negative, ActorID: "tester",
	})
	assertAppErrorCode(t, err, apperrors.CodeValidationError)

	// The stored threshold survives untouched; nothing was clamped
	stored := items.items["ITEM-1"]
	assert.Equal(t, 10, stored.GetAllocation("PROJ-A").NotificationThreshold)
	assert.Equal(t, int64(1), stored.Revision)
}

func TestTransactionService_ValidateShape(t *testing.T) {
	negative := -1
	tests := []struct {
		name string
		req  Request
	}{
		{
			name: "negative threshold on create",
			req: Request{
				Kind: domain.KindCreate, ItemID: "ITEM-1", Name: "Hex Bolt M8",
				ProjectID: "PROJ-A", Quantity: 10, NotificationThreshold: &negative, ActorID: "tester",
			},
		},
		{
			name: "negative threshold on add",
			req: Request{
				Kind: domain.KindAdd, ItemID: "ITEM-1", ProjectID: "PROJ-A",
				Quantity: 10, NotificationThreshold: &negative, ActorID: "tester",
			},
		},
		{
			name: "missing item id",
			req:  Request{Kind: domain.KindAdd, ProjectID: "PROJ-A", Quantity: 1, ActorID: "tester"},
		},
		{
			name: "missing actor",
			req:  Request{Kind: domain.KindAdd, ItemID: "ITEM-1", ProjectID: "PROJ-A", Quantity: 1},
		},
		{
			name: "counterparty on add",
			req: Request{
				Kind: domain.KindAdd, ItemID: "ITEM-1", ProjectID: "PROJ-A",
				Quantity: 1, CounterpartyID: "crew-7", ActorID: "tester",
			},
		},
		{
			name: "supplier on issue",
			req: Request{
				Kind: domain.KindIssue, ItemID: "ITEM-1", ProjectID: "PROJ-A",
				Quantity: 1, CounterpartyID: "crew-7", SupplierRef: "PO-1", ActorID: "tester",
			},
		},
		{
			name: "move without destination",
			req: Request{
				Kind: domain.KindMove, ItemID: "ITEM-1", FromProjectID: "PROJ-A",
				Quantity: 1, ActorID: "tester",
			},
		},
		{
			name: "create without name",
			req: Request{
				Kind: domain.KindCreate, ItemID: "ITEM-1", ProjectID: "PROJ-A",
				Quantity: 1, ActorID: "tester",
			},
		},
		{
			name: "unknown kind",
			req:  Request{Kind: "destroy", ItemID: "ITEM-1", ProjectID: "PROJ-A", Quantity: 1, ActorID: "tester"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items := &fakeItemRepo{}
			svc := newTestService(items, &fakeLedgerRepo{}, &fakePublisher{})

			_, err := svc.Apply(context.Background(), tt.req)
			assertAppErrorCode(t, err, apperrors.CodeValidationError)
			assert.Empty(t, items.entries, "rejected request must write nothing")
		})
	}
}

func TestTransactionService_UnknownItem(t *testing.T) {
	svc := newTestService(&fakeItemRepo{}, &fakeLedgerRepo{}, &fakePublisher{})

	_, err := svc.Apply(context.Background(), Request{
		Kind: domain.KindAdd, ItemID: "MISSING", ProjectID: "PROJ-A",
		Quantity: 1, ActorID: "tester",
	})
	assertAppErrorCode(t, err, apperrors.CodeNotFound)
}

func TestTransactionService_PublishFailureDoesNotFailTransaction(t *testing.T) {
	items := &fakeItemRepo{}
	publisher := &fakePublisher{publishErr: assert.AnError}
	svc := newTestService(items, &fakeLedgerRepo{}, publisher)

	dto, err := svc.Apply(context.Background(), createRequest("ITEM-1", 100))
	require.NoError(t, err)
	assert.Equal(t, 100, dto.TotalQuantity)
	assert.NotNil(t, items.items["ITEM-1"])
}
