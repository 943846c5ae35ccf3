package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/assetdesk/stock-ledger-service/pkg/mongodb"

	"github.com/assetdesk/stock-ledger-service/internal/domain"
	mongoRepo "github.com/assetdesk/stock-ledger-service/internal/infrastructure/mongodb"
	"github.com/assetdesk/stock-ledger-service/internal/infrastructure/projections"
)

// Migration tool: ensures indexes and rebuilds the stock summary read model
// from the item aggregates. With -verify it additionally replays every ledger
// and reports aggregates that diverged from their entries.

var (
	mongoURI  = flag.String("mongo-uri", "mongodb://localhost:27017", "MongoDB connection URI")
	dbName    = flag.String("db", "stockledger", "Database name")
	dryRun    = flag.Bool("dry-run", true, "Dry run mode (no actual writes)")
	batchSize = flag.Int("batch-size", 100, "Batch size for processing")
	verify    = flag.Bool("verify", false, "Replay ledgers and report diverged aggregates")
)

func main() {
	flag.Parse()

	log.Printf("Starting stock ledger migration...")
	log.Printf("MongoDB URI: %s", *mongoURI)
	log.Printf("Database: %s", *dbName)
	log.Printf("Dry Run: %v", *dryRun)
	log.Printf("Batch Size: %d", *batchSize)
	log.Printf("Verify: %v", *verify)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongodb.Connect(ctx, &mongodb.Config{
		URI:            *mongoURI,
		Database:       *dbName,
		ConnectTimeout: 10 * time.Second,
		MaxPoolSize:    10,
		MinPoolSize:    1,
	})
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer client.Close(context.Background())
	log.Println("Connected to MongoDB successfully")

	// Constructing the repositories creates all indexes
	itemRepo := mongoRepo.NewItemRepository(client.Database())
	ledgerRepo := mongoRepo.NewLedgerRepository(client.Database())
	summaryRepo := projections.NewStockSummaryRepository(client.Database())
	log.Println("Indexes ensured")

	if err := rebuildSummaries(context.Background(), itemRepo, ledgerRepo, summaryRepo); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	log.Println("Migration completed successfully!")
}

func rebuildSummaries(
	ctx context.Context,
	items *mongoRepo.ItemRepository,
	ledger *mongoRepo.LedgerRepository,
	summaries *projections.StockSummaryRepository,
) error {
	var (
		totalItems    int
		rebuilt       int
		diverged      int
		divergedItems []string
	)

	offset := 0
	for {
		page, err := items.FindAll(ctx, *batchSize, offset)
		if err != nil {
			return fmt.Errorf("failed to load items: %w", err)
		}
		if len(page) == 0 {
			break
		}

		for _, item := range page {
			totalItems++

			if !*dryRun {
				if err := summaries.Upsert(ctx, projections.BuildSummary(item)); err != nil {
					log.Printf("WARNING: Failed to upsert summary for %s: %v", item.ItemID, err)
					continue
				}
			}
			rebuilt++

			if *verify {
				entries, err := ledger.FindByItemIDAscending(ctx, item.ItemID)
				if err != nil {
					log.Printf("WARNING: Failed to read ledger for %s: %v", item.ItemID, err)
					continue
				}
				replayed, err := domain.ReplayLedger(item.ItemID, entries)
				if err != nil {
					log.Printf("WARNING: Ledger replay failed for %s: %v", item.ItemID, err)
					continue
				}
				if domain.Diverges(item, replayed) {
					diverged++
					divergedItems = append(divergedItems, item.ItemID)
				}
			}

			if totalItems%100 == 0 {
				log.Printf("Processed %d items...", totalItems)
			}
		}

		if len(page) < *batchSize {
			break
		}
		offset += *batchSize
	}

	// Print summary
	fmt.Println("\n=== Migration Summary ===")
	fmt.Printf("Total Items Processed: %d\n", totalItems)
	fmt.Printf("Summaries Rebuilt: %d\n", rebuilt)

	if *verify {
		fmt.Printf("\nLedger Verification:\n")
		fmt.Printf("  Diverged aggregates: %d\n", diverged)
		for _, id := range divergedItems {
			fmt.Printf("  - %s\n", id)
		}
	}

	if *dryRun {
		fmt.Println("\n⚠️  DRY RUN MODE - No actual changes were made")
		fmt.Println("Run with -dry-run=false to rebuild the read model")
	} else {
		fmt.Println("\n✅ Read model rebuilt successfully!")
	}

	return nil
}
