package mongodb

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/assetdesk/stock-ledger-service/internal/domain"
)

type ItemRepositoryIntegrationTestSuite struct {
	suite.Suite
	mongoContainer *mongodb.MongoDBContainer
	client         *mongo.Client
	db             *mongo.Database
	items          *ItemRepository
	ledger         *LedgerRepository
	ctx            context.Context
}

func (s *ItemRepositoryIntegrationTestSuite) SetupSuite() {
	s.ctx = context.Background()

	// Transactions need a replica set; WithReplicaSet configures a
	// single-node one and waits until it's ready
	container, err := mongodb.Run(s.ctx, "mongo:6",
		mongodb.WithReplicaSet("rs"),
	)
	s.Require().NoError(err)
	s.mongoContainer = container

	connStr, err := container.ConnectionString(s.ctx)
	s.Require().NoError(err)

	clientOpts := options.Client().ApplyURI(connStr).SetDirect(true)
	client, err := mongo.Connect(s.ctx, clientOpts)
	s.Require().NoError(err)
	s.client = client

	err = client.Ping(s.ctx, nil)
	s.Require().NoError(err)

	s.db = client.Database("stockledger_test")
	s.items = NewItemRepository(s.db)
	s.ledger = NewLedgerRepository(s.db)
}

func (s *ItemRepositoryIntegrationTestSuite) TearDownSuite() {
	if s.client != nil {
		s.client.Disconnect(s.ctx)
	}
	if s.mongoContainer != nil {
		s.Require().NoError(s.mongoContainer.Terminate(s.ctx))
	}
}

func (s *ItemRepositoryIntegrationTestSuite) TearDownTest() {
	s.db.Collection(itemsCollection).Drop(s.ctx)
	s.db.Collection(ledgerCollection).Drop(s.ctx)
}

func TestItemRepositoryIntegrationTestSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}
	suite.Run(t, new(ItemRepositoryIntegrationTestSuite))
}

func (s *ItemRepositoryIntegrationTestSuite) newStoredItem(itemID string, quantity, threshold int) *domain.Item {
	item, entry, err := domain.NewItem(itemID, "Hex Bolt M8", "HB-M8-40", "PROJ-A", quantity, threshold, "", "PO-1", "", "tester")
	s.Require().NoError(err)
	err = s.items.Create(s.ctx, item, entry)
	s.Require().NoError(err)
	item.ClearDomainEvents()
	return item
}

func (s *ItemRepositoryIntegrationTestSuite) TestCreate_PersistsItemAndLedgerEntry() {
	s.newStoredItem("ITEM-1", 100, 10)

	retrieved, err := s.items.FindByItemID(s.ctx, "ITEM-1")
	s.Require().NoError(err)
	s.Require().NotNil(retrieved)
	s.Equal("ITEM-1", retrieved.ItemID)
	s.Equal(100, retrieved.TotalQuantity)
	s.Equal(int64(1), retrieved.Revision)

	entries, err := s.ledger.FindByItemIDAscending(s.ctx, "ITEM-1")
	s.Require().NoError(err)
	s.Require().Len(entries, 1)
	s.Equal(domain.KindCreate, entries[0].Kind)
	s.Equal(100, entries[0].Quantity)
}

func (s *ItemRepositoryIntegrationTestSuite) TestCreate_DuplicateItemID() {
	s.newStoredItem("ITEM-1", 100, 10)

	duplicate, entry, err := domain.NewItem("ITEM-1", "Other", "", "PROJ-B", 5, 0, "", "", "", "tester")
	s.Require().NoError(err)

	err = s.items.Create(s.ctx, duplicate, entry)
	s.ErrorIs(err, domain.ErrItemAlreadyExists)

	// The losing create must not leave a ledger entry behind
	entries, err := s.ledger.FindByItemIDAscending(s.ctx, "ITEM-1")
	s.Require().NoError(err)
	s.Len(entries, 1)
}

func (s *ItemRepositoryIntegrationTestSuite) TestFindByItemID_NotFound() {
	item, err := s.items.FindByItemID(s.ctx, "MISSING")
	s.Require().NoError(err)
	s.Nil(item)
}

func (s *ItemRepositoryIntegrationTestSuite) TestUpdate_AppendsEntriesAndBumpsRevision() {
	item := s.newStoredItem("ITEM-1", 100, 10)

	entry, err := item.Issue("PROJ-A", 30, "crew-7", "", "tester")
	s.Require().NoError(err)

	err = s.items.Update(s.ctx, item, 1, []domain.LedgerEntry{entry})
	s.Require().NoError(err)
	s.Equal(int64(2), item.Revision)

	retrieved, err := s.items.FindByItemID(s.ctx, "ITEM-1")
	s.Require().NoError(err)
	s.Equal(70, retrieved.TotalQuantity)
	s.Equal(int64(2), retrieved.Revision)

	entries, err := s.ledger.FindByItemID(s.ctx, "ITEM-1", 10)
	s.Require().NoError(err)
	s.Require().Len(entries, 2)
	// Newest first
	s.Equal(domain.KindIssue, entries[0].Kind)
	s.Equal(domain.KindCreate, entries[1].Kind)
}

func (s *ItemRepositoryIntegrationTestSuite) TestUpdate_StaleRevisionRejected() {
	item := s.newStoredItem("ITEM-1", 100, 10)

	entry, err := item.Issue("PROJ-A", 30, "crew-7", "", "tester")
	s.Require().NoError(err)
	err = s.items.Update(s.ctx, item, 1, []domain.LedgerEntry{entry})
	s.Require().NoError(err)

	// A writer still holding revision 1 must be rejected wholesale
	stale := *item
	staleEntry, err := stale.Issue("PROJ-A", 10, "crew-8", "", "tester")
	s.Require().NoError(err)

	err = s.items.Update(s.ctx, &stale, 1, []domain.LedgerEntry{staleEntry})
	s.ErrorIs(err, domain.ErrConcurrentModification)
	s.Equal(int64(1), stale.Revision, "failed update must restore the caller's revision")

	// Nothing from the rejected write may reach the ledger
	entries, err := s.ledger.FindByItemIDAscending(s.ctx, "ITEM-1")
	s.Require().NoError(err)
	s.Len(entries, 2)
}

func (s *ItemRepositoryIntegrationTestSuite) TestUpdate_ConcurrentWritersOneWins() {
	s.newStoredItem("ITEM-1", 10, 0)

	var wg sync.WaitGroup
	results := make(chan error, 2)

	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx := context.Background()

			loaded, err := s.items.FindByItemID(ctx, "ITEM-1")
			if err != nil {
				results <- err
				return
			}
			entry, err := loaded.Issue("PROJ-A", 6, "crew-7", "", "tester")
			if err != nil {
				results <- err
				return
			}
			results <- s.items.Update(ctx, loaded, loaded.Revision, []domain.LedgerEntry{entry})
		}()
	}
	wg.Wait()
	close(results)

	succeeded, conflicted := 0, 0
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case s.ErrorIs(err, domain.ErrConcurrentModification):
			conflicted++
		}
	}
	// Both writers saw 10 in stock; the revision guard lets only one land
	s.Equal(1, succeeded)
	s.Equal(1, conflicted)

	retrieved, err := s.items.FindByItemID(s.ctx, "ITEM-1")
	s.Require().NoError(err)
	s.Equal(4, retrieved.TotalQuantity)

	entries, err := s.ledger.FindByItemIDAscending(s.ctx, "ITEM-1")
	s.Require().NoError(err)
	s.Len(entries, 2)
}

func (s *ItemRepositoryIntegrationTestSuite) TestFindBelowThreshold() {
	ok := s.newStoredItem("ITEM-OK", 100, 10)
	low := s.newStoredItem("ITEM-LOW", 20, 10)

	entry, err := low.Issue("PROJ-A", 12, "crew-7", "", "tester")
	s.Require().NoError(err)
	err = s.items.Update(s.ctx, low, 1, []domain.LedgerEntry{entry})
	s.Require().NoError(err)

	items, err := s.items.FindBelowThreshold(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(items, 1)
	s.Equal("ITEM-LOW", items[0].ItemID)
	s.NotEqual(ok.ItemID, items[0].ItemID)
}

func (s *ItemRepositoryIntegrationTestSuite) TestOutstandingIssuedBalance() {
	item := s.newStoredItem("ITEM-1", 100, 0)

	mutations := []func() (domain.LedgerEntry, error){
		func() (domain.LedgerEntry, error) { return item.Issue("PROJ-A", 40, "crew-7", "", "tester") },
		func() (domain.LedgerEntry, error) { return item.ReturnStock("PROJ-A", 10, "crew-7", "", "tester", 40) },
		func() (domain.LedgerEntry, error) { return item.Consume("PROJ-A", 5, "crew-7", "", "tester", 30) },
		func() (domain.LedgerEntry, error) { return item.Issue("PROJ-A", 3, "crew-9", "", "tester") },
	}
	for _, mutate := range mutations {
		entry, err := mutate()
		s.Require().NoError(err)
		err = s.items.Update(s.ctx, item, item.Revision, []domain.LedgerEntry{entry})
		s.Require().NoError(err)
	}

	// crew-7: 40 issued - 10 returned - 5 consumed
	balance, err := s.ledger.OutstandingIssuedBalance(s.ctx, "ITEM-1", "PROJ-A", "crew-7")
	s.Require().NoError(err)
	s.Equal(25, balance)

	balance, err = s.ledger.OutstandingIssuedBalance(s.ctx, "ITEM-1", "PROJ-A", "crew-9")
	s.Require().NoError(err)
	s.Equal(3, balance)

	// A counterparty with no history has nothing outstanding
	balance, err = s.ledger.OutstandingIssuedBalance(s.ctx, "ITEM-1", "PROJ-A", "crew-0")
	s.Require().NoError(err)
	s.Equal(0, balance)
}

func (s *ItemRepositoryIntegrationTestSuite) TestFindByTimeRange() {
	s.newStoredItem("ITEM-1", 100, 10)

	now := time.Now().UTC()
	entries, err := s.ledger.FindByTimeRange(s.ctx, "ITEM-1", now.Add(-time.Hour), now.Add(time.Hour))
	s.Require().NoError(err)
	s.Len(entries, 1)

	entries, err = s.ledger.FindByTimeRange(s.ctx, "ITEM-1", now.Add(-2*time.Hour), now.Add(-time.Hour))
	s.Require().NoError(err)
	s.Len(entries, 0)
}
