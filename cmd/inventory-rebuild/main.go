package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/zedibooks/ledger_backend/config"
	"github.com/zedibooks/ledger_backend/models"
	"github.com/zedibooks/ledger_backend/workflow"
	"gorm.io/gorm"
)

// Rebuilds on-hand quantities from the stock movement log after manual data
// surgery. Dry-run prints the divergence per product without writing.
func main() {
	userID := flag.String("user-id", "", "Required: tenant user id (uuid)")
	productID := flag.String("product-id", "", "Optional: limit to one product")
	dryRun := flag.Bool("dry-run", true, "Show divergence only (no writes)")
	flag.Parse()

	if strings.TrimSpace(*userID) == "" {
		fmt.Fprintln(os.Stderr, "--user-id is required")
		os.Exit(1)
	}

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}
	logger := config.GetLogger()

	var user models.User
	if err := db.Where("id = ?", *userID).First(&user).Error; err != nil {
		fmt.Fprintf(os.Stderr, "user not found: %v\n", err)
		os.Exit(1)
	}

	var inventories []models.Inventory
	q := db.Where("user_id = ?", *userID)
	if strings.TrimSpace(*productID) != "" {
		q = q.Where("product_id = ?", *productID)
	}
	if err := q.Find(&inventories).Error; err != nil {
		fmt.Fprintf(os.Stderr, "load inventories: %v\n", err)
		os.Exit(1)
	}

	if *dryRun {
		for _, inv := range inventories {
			total, err := models.SumMovements(db, *userID, inv.ProductId)
			if err != nil {
				fmt.Fprintf(os.Stderr, "sum movements for %s: %v\n", inv.ProductId, err)
				os.Exit(1)
			}
			if !total.Equal(inv.QuantityInStock) {
				fmt.Printf("product=%s stored=%s movements=%s\n", inv.ProductId, inv.QuantityInStock, total)
			}
		}
		return
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := workflow.AcquireTenantPostingLock(tx, *userID); err != nil {
			return err
		}
		defer workflow.ReleaseTenantPostingLock(tx, *userID)

		for _, inv := range inventories {
			if err := models.RebuildInventory(tx, logger, *userID, inv.ProductId); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "rebuild failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("rebuilt %d inventories\n", len(inventories))
}
