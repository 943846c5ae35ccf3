package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/assetdesk/stock-ledger-service/internal/domain"
)

const (
	itemsCollection  = "items"
	ledgerCollection = "ledger_entries"
)

// ItemRepository persists item aggregates. It also owns the ledger writes:
// an aggregate change and its ledger entries always commit in one MongoDB
// transaction, so the ledger can never miss a mutation that was applied.
type ItemRepository struct {
	collection *mongo.Collection
	ledger     *mongo.Collection
	db         *mongo.Database
}

func NewItemRepository(db *mongo.Database) *ItemRepository {
	repo := &ItemRepository{
		collection: db.Collection(itemsCollection),
		ledger:     db.Collection(ledgerCollection),
		db:         db,
	}
	repo.ensureIndexes(context.Background())
	return repo
}

func (r *ItemRepository) ensureIndexes(ctx context.Context) {
	itemIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "itemId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "allocations.projectId", Value: 1}}},
		{Keys: bson.D{{Key: "partNumber", Value: 1}}},
	}
	r.collection.Indexes().CreateMany(ctx, itemIndexes)

	ledgerIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "entryId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "itemId", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "itemId", Value: 1}, {Key: "projectId", Value: 1}, {Key: "counterparty", Value: 1}}},
	}
	r.ledger.Indexes().CreateMany(ctx, ledgerIndexes)
}

func (r *ItemRepository) FindByItemID(ctx context.Context, itemID string) (*domain.Item, error) {
	var item domain.Item
	err := r.collection.FindOne(ctx, bson.M{"itemId": itemID}).Decode(&item)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find item: %w", err)
	}
	return &item, nil
}

// Create inserts a new aggregate with its create ledger entry in one
// transaction. The unique index on itemId turns races into a clean
// already-exists error.
func (r *ItemRepository) Create(ctx context.Context, item *domain.Item, entry domain.LedgerEntry) error {
	session, err := r.db.Client().StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		if _, err := r.collection.InsertOne(sessCtx, item); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return nil, domain.ErrItemAlreadyExists
			}
			return nil, fmt.Errorf("failed to insert item: %w", err)
		}
		if _, err := r.ledger.InsertOne(sessCtx, entry); err != nil {
			return nil, fmt.Errorf("failed to insert ledger entry: %w", err)
		}
		return nil, nil
	})
	return err
}

// Update replaces the aggregate document and appends the mutation's ledger
// entries in one transaction. The replace filter matches both itemId and the
// revision the caller loaded; when another writer got there first the filter
// matches nothing and the whole transaction aborts with
// ErrConcurrentModification.
func (r *ItemRepository) Update(ctx context.Context, item *domain.Item, expectedRevision int64, entries []domain.LedgerEntry) error {
	session, err := r.db.Client().StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	item.Revision = expectedRevision + 1
	item.UpdatedAt = time.Now().UTC()

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		filter := bson.M{"itemId": item.ItemID, "revision": expectedRevision}
		result, err := r.collection.ReplaceOne(sessCtx, filter, item)
		if err != nil {
			return nil, fmt.Errorf("failed to replace item: %w", err)
		}
		if result.MatchedCount == 0 {
			return nil, domain.ErrConcurrentModification
		}

		if len(entries) > 0 {
			documents := make([]interface{}, len(entries))
			for i, entry := range entries {
				documents[i] = entry
			}
			if _, err := r.ledger.InsertMany(sessCtx, documents); err != nil {
				return nil, fmt.Errorf("failed to insert ledger entries: %w", err)
			}
		}
		return nil, nil
	})
	if err != nil {
		// Restore the caller's view on failure
		item.Revision = expectedRevision
		return err
	}
	return nil
}

func (r *ItemRepository) FindAll(ctx context.Context, limit, offset int) ([]*domain.Item, error) {
	opts := options.Find().
		SetLimit(int64(limit)).
		SetSkip(int64(offset)).
		SetSort(bson.D{{Key: "itemId", Value: 1}})

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find items: %w", err)
	}
	defer cursor.Close(ctx)

	var items []*domain.Item
	if err := cursor.All(ctx, &items); err != nil {
		return nil, fmt.Errorf("failed to decode items: %w", err)
	}
	return items, nil
}

// FindBelowThreshold matches items with at least one allocation whose
// quantity sits at or below its notification threshold.
func (r *ItemRepository) FindBelowThreshold(ctx context.Context) ([]*domain.Item, error) {
	filter := bson.M{
		"$expr": bson.M{
			"$anyElementTrue": bson.M{
				"$map": bson.M{
					"input": "$allocations",
					"as":    "alloc",
					"in":    bson.M{"$lte": []string{"$$alloc.quantity", "$$alloc.notificationThreshold"}},
				},
			},
		},
	}

	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to find low stock items: %w", err)
	}
	defer cursor.Close(ctx)

	var items []*domain.Item
	if err := cursor.All(ctx, &items); err != nil {
		return nil, fmt.Errorf("failed to decode items: %w", err)
	}
	return items, nil
}
