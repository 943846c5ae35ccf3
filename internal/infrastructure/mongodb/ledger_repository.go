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

// LedgerRepository reads the append-only ledger. Writes go through
// ItemRepository so they always commit together with the aggregate.
type LedgerRepository struct {
	collection *mongo.Collection
}

func NewLedgerRepository(db *mongo.Database) *LedgerRepository {
	return &LedgerRepository{
		collection: db.Collection(ledgerCollection),
	}
}

func (r *LedgerRepository) FindByItemID(ctx context.Context, itemID string, limit int) ([]domain.LedgerEntry, error) {
	opts := options.Find().
		SetLimit(int64(limit)).
		SetSort(bson.D{{Key: "createdAt", Value: -1}})

	cursor, err := r.collection.Find(ctx, bson.M{"itemId": itemID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find ledger entries: %w", err)
	}
	defer cursor.Close(ctx)

	var entries []domain.LedgerEntry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode ledger entries: %w", err)
	}
	return entries, nil
}

func (r *LedgerRepository) FindByItemIDAscending(ctx context.Context, itemID string) ([]domain.LedgerEntry, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})

	cursor, err := r.collection.Find(ctx, bson.M{"itemId": itemID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find ledger entries: %w", err)
	}
	defer cursor.Close(ctx)

	var entries []domain.LedgerEntry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode ledger entries: %w", err)
	}
	return entries, nil
}

// OutstandingIssuedBalance sums the counterparty's issue entries minus its
// return and consume entries for one (item, project), floored at zero.
func (r *LedgerRepository) OutstandingIssuedBalance(ctx context.Context, itemID, projectID, counterparty string) (int, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"itemId":       itemID,
			"projectId":    projectID,
			"counterparty": counterparty,
			"kind": bson.M{"$in": []string{
				string(domain.KindIssue),
				string(domain.KindReturn),
				string(domain.KindConsume),
			}},
		}}},
		{{Key: "$group", Value: bson.M{
			"_id": nil,
			"balance": bson.M{"$sum": bson.M{"$cond": bson.A{
				bson.M{"$eq": bson.A{"$kind", string(domain.KindIssue)}},
				"$quantity",
				bson.M{"$multiply": bson.A{-1, "$quantity"}},
			}}},
		}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return 0, fmt.Errorf("failed to aggregate outstanding balance: %w", err)
	}
	defer cursor.Close(ctx)

	var results []struct {
		Balance int `bson:"balance"`
	}
	if err := cursor.All(ctx, &results); err != nil {
		return 0, fmt.Errorf("failed to decode outstanding balance: %w", err)
	}

	if len(results) == 0 || results[0].Balance < 0 {
		return 0, nil
	}
	return results[0].Balance, nil
}

func (r *LedgerRepository) FindByTimeRange(ctx context.Context, itemID string, start, end time.Time) ([]domain.LedgerEntry, error) {
	filter := bson.M{
		"itemId": itemID,
		"createdAt": bson.M{
			"$gte": start,
			"$lte": end,
		},
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find ledger entries: %w", err)
	}
	defer cursor.Close(ctx)

	var entries []domain.LedgerEntry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode ledger entries: %w", err)
	}
	return entries, nil
}
