// ledger-verify recomputes every batch quantity from the stock movement
// ledger and reports drift against the cached column. With --fix it rewrites
// the cached quantity to the ledger value and logs an adjust movement so the
// correction itself is auditable.
//
// Usage:
//
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/ledger-verify [--batch-id N] [--fix]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"bitbucket.org/mmdatafocus/livestock_backend/appctx"
	"bitbucket.org/mmdatafocus/livestock_backend/config"
	"bitbucket.org/mmdatafocus/livestock_backend/models"
)

func main() {
	batchID := flag.Int("batch-id", 0, "Optional: verify a single batch")
	fix := flag.Bool("fix", false, "Rewrite drifted quantities to the ledger value")
	flag.Parse()

	ctx := appctx.EnsureCorrelationId(context.Background())
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized. Set DB_* env vars.")
		os.Exit(1)
	}

	var batchIDs []int
	if *batchID > 0 {
		batchIDs = append(batchIDs, *batchID)
	} else {
		if err := db.WithContext(ctx).Model(&models.VaccineBatch{}).
			Unscoped().Order("id").Pluck("id", &batchIDs).Error; err != nil {
			fmt.Fprintf(os.Stderr, "failed to list batches: %v\n", err)
			os.Exit(1)
		}
	}

	drifted := 0
	for _, id := range batchIDs {
		var batch models.VaccineBatch
		if err := db.WithContext(ctx).Unscoped().First(&batch, id).Error; err != nil {
			fmt.Fprintf(os.Stderr, "batch %d: %v\n", id, err)
			os.Exit(1)
		}
		ledger, err := models.LedgerBatchQuantity(ctx, id)
		if err != nil {
			fmt.Fprintf(os.Stderr, "batch %d: ledger fold failed: %v\n", id, err)
			os.Exit(1)
		}
		if ledger == batch.Quantity {
			continue
		}
		drifted++
		fmt.Printf("batch %d (%s): cached=%d ledger=%d drift=%d\n",
			id, batch.BatchNo, batch.Quantity, ledger, batch.Quantity-ledger)

		if *fix {
			// AdjustBatch resolves batches under the default scope, so a
			// tombstoned row cannot be fixed through it; report and move on.
			if batch.DeletedAt.Valid {
				fmt.Printf("batch %d: tombstoned, drift left in place (restore the batch to fix)\n", id)
				continue
			}
			actor := models.AdminActor(0)
			_, err := models.AdjustBatch(ctx, actor, id, ledger, "ledger-verify reconciliation")
			if err != nil {
				fmt.Fprintf(os.Stderr, "batch %d: fix failed: %v\n", id, err)
				os.Exit(1)
			}
			fmt.Printf("batch %d: quantity set to %d\n", id, ledger)
		}
	}

	if drifted == 0 {
		fmt.Printf("ok: %d batches match their ledger\n", len(batchIDs))
		return
	}
	fmt.Printf("%d of %d batches drifted\n", drifted, len(batchIDs))
	if !*fix {
		os.Exit(2)
	}
}
