package projections

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// StockSummary is the denormalized list read model: one document per item,
// flattened for list screens so they never touch the aggregate collection.
type StockSummary struct {
	ItemID         string    `bson:"_id" json:"itemId"`
	Name           string    `bson:"name" json:"name"`
	PartNumber     string    `bson:"partNumber,omitempty" json:"partNumber,omitempty"`
	TotalQuantity  int       `bson:"totalQuantity" json:"totalQuantity"`
	ProjectCount   int       `bson:"projectCount" json:"projectCount"`
	Projects       []string  `bson:"projects" json:"projects"`
	LowProjects    []string  `bson:"lowProjects" json:"lowProjects"`
	IsLowStock     bool      `bson:"isLowStock" json:"isLowStock"`
	Revision       int64     `bson:"revision" json:"revision"`
	UpdatedAt      time.Time `bson:"updatedAt" json:"updatedAt"`
}

// StockSummaryRepository manages the stock summary read model
type StockSummaryRepository struct {
	collection *mongo.Collection
}

// NewStockSummaryRepository creates a new repository
func NewStockSummaryRepository(db *mongo.Database) *StockSummaryRepository {
	repo := &StockSummaryRepository{
		collection: db.Collection("stock_summaries"),
	}
	repo.ensureIndexes(context.Background())
	return repo
}

func (r *StockSummaryRepository) ensureIndexes(ctx context.Context) {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "name", Value: 1}}},
		{Keys: bson.D{{Key: "partNumber", Value: 1}}},
		{Keys: bson.D{{Key: "isLowStock", Value: 1}, {Key: "totalQuantity", Value: 1}}},
	}
	r.collection.Indexes().CreateMany(ctx, indexes)
}

// Upsert writes the summary unless an equal or newer revision is already
// present. The guard lives in the upsert filter, not in a prior read, so
// racing projectors cannot interleave and let an older summary overwrite
// a newer one. When the filter misses because a newer document exists,
// the upsert degenerates into an insert that collides on _id; that
// duplicate key is the stale case and is silently skipped.
func (r *StockSummaryRepository) Upsert(ctx context.Context, summary *StockSummary) error {
	summary.UpdatedAt = time.Now().UTC()

	filter := bson.M{
		"_id":      summary.ItemID,
		"revision": bson.M{"$lt": summary.Revision},
	}
	opts := options.Replace().SetUpsert(true)

	_, err := r.collection.ReplaceOne(ctx, filter, summary, opts)
	if mongo.IsDuplicateKeyError(err) {
		return nil
	}
	return err
}

// FindByItemID retrieves one summary, or nil when absent
func (r *StockSummaryRepository) FindByItemID(ctx context.Context, itemID string) (*StockSummary, error) {
	var summary StockSummary
	err := r.collection.FindOne(ctx, bson.M{"_id": itemID}).Decode(&summary)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &summary, nil
}

// FindAll lists summaries sorted by item ID
func (r *StockSummaryRepository) FindAll(ctx context.Context, limit, offset int) ([]StockSummary, error) {
	opts := options.Find().
		SetLimit(int64(limit)).
		SetSkip(int64(offset)).
		SetSort(bson.D{{Key: "_id", Value: 1}})
	return r.find(ctx, bson.M{}, opts)
}

// FindLowStock lists summaries with at least one low allocation
func (r *StockSummaryRepository) FindLowStock(ctx context.Context, limit, offset int) ([]StockSummary, error) {
	opts := options.Find().
		SetLimit(int64(limit)).
		SetSkip(int64(offset)).
		SetSort(bson.D{{Key: "totalQuantity", Value: 1}})
	return r.find(ctx, bson.M{"isLowStock": true}, opts)
}

// Search matches the term against name, part number and item ID
func (r *StockSummaryRepository) Search(ctx context.Context, term string, limit, offset int) ([]StockSummary, error) {
	pattern := bson.M{"$regex": term, "$options": "i"}
	filter := bson.M{"$or": []bson.M{
		{"_id": pattern},
		{"name": pattern},
		{"partNumber": pattern},
	}}
	opts := options.Find().
		SetLimit(int64(limit)).
		SetSkip(int64(offset)).
		SetSort(bson.D{{Key: "_id", Value: 1}})
	return r.find(ctx, filter, opts)
}

// Delete removes one summary
func (r *StockSummaryRepository) Delete(ctx context.Context, itemID string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": itemID})
	return err
}

// Count returns the number of summaries
func (r *StockSummaryRepository) Count(ctx context.Context) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{})
}

func (r *StockSummaryRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]StockSummary, error) {
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	summaries := make([]StockSummary, 0)
	if err := cursor.All(ctx, &summaries); err != nil {
		return nil, err
	}
	return summaries, nil
}
