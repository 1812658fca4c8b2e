package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/zedibooks/ledger_backend/config"
	"github.com/zedibooks/ledger_backend/models"
	"github.com/zedibooks/ledger_backend/workflow"
	"gorm.io/gorm"
)

// Backfills tax periods, financial summaries and metric samples for a range
// of months from the source tables. Safe to re-run: every step is a full
// recompute.
func main() {
	userID := flag.String("user-id", "", "Required: tenant user id (uuid)")
	from := flag.String("from", "", "Required: first month, YYYY-MM")
	to := flag.String("to", "", "Required: last month inclusive, YYYY-MM")
	flag.Parse()

	if strings.TrimSpace(*userID) == "" {
		fmt.Fprintln(os.Stderr, "--user-id is required")
		os.Exit(1)
	}
	start, err := time.Parse("2006-01", *from)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid --from: %v\n", err)
		os.Exit(1)
	}
	end, err := time.Parse("2006-01", *to)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid --to: %v\n", err)
		os.Exit(1)
	}
	if end.Before(start) {
		fmt.Fprintln(os.Stderr, "--to must not be before --from")
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

	months := 0
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := workflow.AcquireTenantPostingLock(tx, *userID); err != nil {
			return err
		}
		defer workflow.ReleaseTenantPostingLock(tx, *userID)

		for cursor := start; !cursor.After(end); cursor = cursor.AddDate(0, 1, 0) {
			year, month := cursor.Year(), int(cursor.Month())
			if _, err := workflow.RebuildTaxPeriod(tx, logger, *userID, year, month); err != nil {
				return err
			}
			if _, err := workflow.RecomputeSummary(tx, logger, *userID, year, month); err != nil {
				return err
			}
			if err := workflow.UpdateMetricsForMonth(tx, logger, *userID, year, month); err != nil {
				return err
			}
			months++
		}
		return nil
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "backfill failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("backfilled %d months\n", months)
}
