// stock-reconcile replays the procurement, sale and override journals against every
// stock ledger once, stores the findings and prints them. Exit code 3 means drift was found.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/karibu/produce_backend/config"
	"github.com/karibu/produce_backend/models"
	"github.com/karibu/produce_backend/utils"
)

func main() {
	asJSON := flag.Bool("json", false, "Print findings as JSON")
	timeout := flag.Duration("timeout", 5*time.Minute, "Abort the run after this long")
	flag.Parse()

	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	ctx = utils.SetCorrelationIdInContext(ctx, fmt.Sprintf("cli-%d", time.Now().Unix()))

	cid, findings, err := models.RunStockReconciliationChecks(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "reconciliation failed: %v\n", err)
		os.Exit(1)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(map[string]any{"correlation_id": cid, "findings": findings})
	} else {
		fmt.Printf("correlation_id=%s findings=%d\n", cid, len(findings))
		for _, f := range findings {
			fmt.Printf("- %s %s#%d: %s\n", f.CheckType, f.EntityType, f.EntityId, f.Details)
		}
	}
	if len(findings) > 0 {
		os.Exit(3)
	}
}
