package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/assetdesk/stock-ledger-service/pkg/logging"
	"github.com/assetdesk/stock-ledger-service/pkg/mongodb"

	"github.com/assetdesk/stock-ledger-service/internal/application"
	"github.com/assetdesk/stock-ledger-service/internal/domain"
	mongoRepo "github.com/assetdesk/stock-ledger-service/internal/infrastructure/mongodb"
	"github.com/assetdesk/stock-ledger-service/internal/infrastructure/projections"
)

// Operational monitoring tool for the stock ledger.
//
// Modes:
//   low-stock  list every allocation at or below its notification threshold
//   audit      rebuild items from their ledgers and report divergence

var (
	mongoURI = flag.String("mongo-uri", "mongodb://localhost:27017", "MongoDB connection URI")
	dbName   = flag.String("db", "stockledger", "Database name")
	mode     = flag.String("mode", "low-stock", "Monitoring mode: low-stock or audit")
	itemID   = flag.String("item", "", "Audit a single item instead of all items")
)

const auditPageSize = 500

func main() {
	flag.Parse()

	log.Printf("Starting stock monitor...")
	log.Printf("MongoDB URI: %s", *mongoURI)
	log.Printf("Database: %s", *dbName)
	log.Printf("Mode: %s", *mode)

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

	logger := logging.New(logging.DefaultConfig("stock-monitor"))

	itemRepo := mongoRepo.NewItemRepository(client.Database())
	ledgerRepo := mongoRepo.NewLedgerRepository(client.Database())
	summaryRepo := projections.NewStockSummaryRepository(client.Database())

	switch *mode {
	case "low-stock":
		notifications := application.NewNotificationService(itemRepo, nil, logger)
		if err := reportLowStock(context.Background(), notifications); err != nil {
			log.Fatalf("Low stock scan failed: %v", err)
		}
	case "audit":
		queries := application.NewQueryService(itemRepo, ledgerRepo, summaryRepo, logger)
		if err := reportAudit(context.Background(), itemRepo, queries); err != nil {
			log.Fatalf("Ledger audit failed: %v", err)
		}
	default:
		log.Fatalf("Unknown mode %q (expected low-stock or audit)", *mode)
	}
}

func reportLowStock(ctx context.Context, service *application.NotificationService) error {
	alerts, err := service.FindLowStock(ctx)
	if err != nil {
		return err
	}

	fmt.Println("\n=== Low Stock Allocations ===")
	if len(alerts) == 0 {
		fmt.Println("✅ No allocations at or below their notification threshold")
		return nil
	}

	fmt.Printf("⚠️  Found %d low allocations:\n\n", len(alerts))
	fmt.Println("Item                                 Project               Quantity  Threshold")
	fmt.Println("-----------------------------------  --------------------  --------  ---------")
	for _, alert := range alerts {
		fmt.Printf("%-35s  %-20s  %8d  %9d\n",
			alert.ItemID,
			alert.ProjectID,
			alert.Quantity,
			alert.NotificationThreshold,
		)
	}
	return nil
}

func reportAudit(ctx context.Context, items domain.ItemRepository, service *application.QueryService) error {
	ids := []string{*itemID}
	if *itemID == "" {
		ids = ids[:0]
		offset := 0
		for {
			page, err := items.FindAll(ctx, auditPageSize, offset)
			if err != nil {
				return err
			}
			for _, item := range page {
				ids = append(ids, item.ItemID)
			}
			if len(page) < auditPageSize {
				break
			}
			offset += auditPageSize
		}
	}

	fmt.Println("\n=== Ledger Audit ===")
	fmt.Printf("Auditing %d items\n\n", len(ids))

	diverged := 0
	for _, id := range ids {
		report, err := service.AuditItem(ctx, id)
		if err != nil {
			log.Printf("WARNING: Failed to audit %s: %v", id, err)
			continue
		}
		if !report.Diverged {
			continue
		}
		diverged++
		fmt.Printf("🔴 %s: cached total %d, rebuilt total %d (%d ledger entries)\n",
			report.ItemID, report.CachedTotal, report.RebuiltTotal, report.EntryCount)
	}

	if diverged == 0 {
		fmt.Println("✅ All items match their ledgers")
	} else {
		fmt.Printf("\n⚠️  %d of %d items diverged from their ledgers\n", diverged, len(ids))
	}
	return nil
}
