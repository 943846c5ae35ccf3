package projections

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type StockSummaryRepositoryIntegrationTestSuite struct {
	suite.Suite
	mongoContainer *mongodb.MongoDBContainer
	client         *mongo.Client
	db             *mongo.Database
	summaries      *StockSummaryRepository
	ctx            context.Context
}

func (s *StockSummaryRepositoryIntegrationTestSuite) SetupSuite() {
	s.ctx = context.Background()

	container, err := mongodb.Run(s.ctx, "mongo:6")
	s.Require().NoError(err)
	s.mongoContainer = container

	connStr, err := container.ConnectionString(s.ctx)
	s.Require().NoError(err)

	client, err := mongo.Connect(s.ctx, options.Client().ApplyURI(connStr))
	s.Require().NoError(err)
	s.client = client

	err = client.Ping(s.ctx, nil)
	s.Require().NoError(err)

	s.db = client.Database("stockledger_test")
	s.summaries = NewStockSummaryRepository(s.db)
}

func (s *StockSummaryRepositoryIntegrationTestSuite) TearDownSuite() {
	if s.client != nil {
		s.client.Disconnect(s.ctx)
	}
	if s.mongoContainer != nil {
		s.Require().NoError(s.mongoContainer.Terminate(s.ctx))
	}
}

func (s *StockSummaryRepositoryIntegrationTestSuite) TearDownTest() {
	s.db.Collection("stock_summaries").Drop(s.ctx)
}

func TestStockSummaryRepositoryIntegrationTestSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}
	suite.Run(t, new(StockSummaryRepositoryIntegrationTestSuite))
}

func summaryAt(revision int64, total int) *StockSummary {
	return &StockSummary{
		ItemID:        "ITEM-1",
		Name:          "Hex Bolt M8",
		TotalQuantity: total,
		ProjectCount:  1,
		Projects:      []string{"PROJ-A"},
		LowProjects:   []string{},
		Revision:      revision,
	}
}

func (s *StockSummaryRepositoryIntegrationTestSuite) TestUpsert_InsertsAndReplaces() {
	s.Require().NoError(s.summaries.Upsert(s.ctx, summaryAt(1, 100)))

	got, err := s.summaries.FindByItemID(s.ctx, "ITEM-1")
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.Equal(100, got.TotalQuantity)

	s.Require().NoError(s.summaries.Upsert(s.ctx, summaryAt(2, 70)))

	got, err = s.summaries.FindByItemID(s.ctx, "ITEM-1")
	s.Require().NoError(err)
	s.Equal(int64(2), got.Revision)
	s.Equal(70, got.TotalQuantity)
}

func (s *StockSummaryRepositoryIntegrationTestSuite) TestUpsert_StaleRevisionDoesNotOverwrite() {
	s.Require().NoError(s.summaries.Upsert(s.ctx, summaryAt(3, 70)))

	// A projector that lost the race arrives with an older snapshot. The
	// write must be a silent no-op, enforced by the filter rather than a
	// separate read.
	s.Require().NoError(s.summaries.Upsert(s.ctx, summaryAt(2, 100)))

	got, err := s.summaries.FindByItemID(s.ctx, "ITEM-1")
	s.Require().NoError(err)
	s.Equal(int64(3), got.Revision)
	s.Equal(70, got.TotalQuantity)

	// Replaying the same revision is equally a no-op
	s.Require().NoError(s.summaries.Upsert(s.ctx, summaryAt(3, 100)))

	got, err = s.summaries.FindByItemID(s.ctx, "ITEM-1")
	s.Require().NoError(err)
	s.Equal(70, got.TotalQuantity)
}
