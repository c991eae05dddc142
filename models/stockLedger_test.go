package models_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/karibu/produce_backend/models"
	"github.com/karibu/produce_backend/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStockLifecycle_ProcureSellUpdateDelete(t *testing.T) {
	f := setupDB(t)
	ctx := actorCtx(f.agent)

	// procure 100 t
	procurement, err := models.CreateProcurement(ctx, procurementInput(f.beans.ID, "100"))
	require.NoError(t, err)
	requireBalance(t, f.db, f.beans.ID, "100")

	// sell 40 t
	sale, err := models.CreateSale(ctx, saleInput(f.beans.ID, "40"))
	require.NoError(t, err)
	assert.Equal(t, f.agent.ID, sale.AgentId)
	assert.Len(t, sale.ReceiptId, 8)
	requireBalance(t, f.db, f.beans.ID, "60")

	// selling 1000 t is rejected and nothing changes
	_, err = models.CreateSale(ctx, saleInput(f.beans.ID, "1000"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, utils.ErrInsufficientStock))
	requireBalance(t, f.db, f.beans.ID, "60")
	assert.Equal(t, int64(1), countRows(t, f.db, &models.Sale{}))

	// procurement corrected from 100 t to 70 t
	updated, err := models.UpdateProcurement(ctx, procurement.ID, procurementInput(f.beans.ID, "70"))
	require.NoError(t, err)
	assert.True(t, updated.Tonnage.Equal(tons("70")))
	requireBalance(t, f.db, f.beans.ID, "30")

	// deleting the sale returns its 40 t
	_, err = models.DeleteSale(ctx, sale.ID)
	require.NoError(t, err)
	requireBalance(t, f.db, f.beans.ID, "70")

	_, findings, err := models.RunStockReconciliationChecks(ctx)
	require.NoError(t, err)
	assert.Empty(t, findings)
}

// On sqlite the single pooled connection serializes the two transactions, so this
// covers the conditional update but not FOR UPDATE; stockLedger_mysql_test.go does.
func TestCreateSale_ConcurrentSalesCannotOversell(t *testing.T) {
	f := setupDB(t)
	ctx := actorCtx(f.agent)

	_, err := models.CreateProcurement(ctx, procurementInput(f.beans.ID, "60"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = models.CreateSale(ctx, saleInput(f.beans.ID, "50"))
		}(i)
	}
	wg.Wait()

	var ok, insufficient int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, utils.ErrInsufficientStock):
			insufficient++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, insufficient)
	requireBalance(t, f.db, f.beans.ID, "10")
	assert.Equal(t, int64(1), countRows(t, f.db, &models.Sale{}))
}

func TestCreateSale_MissingLedgerIsInsufficientStock(t *testing.T) {
	f := setupDB(t)
	ctx := actorCtx(f.agent)

	_, err := models.CreateSale(ctx, saleInput(f.maize.ID, "1"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, utils.ErrInsufficientStock))
	assert.Equal(t, int64(0), countRows(t, f.db, &models.Sale{}))
	assert.Equal(t, int64(0), countRows(t, f.db, &models.StockLedger{}))
}

func TestRejectedSale_LeavesNoMovementOrOutboxRow(t *testing.T) {
	f := setupDB(t)
	ctx := actorCtx(f.agent)

	_, err := models.CreateProcurement(ctx, procurementInput(f.beans.ID, "5"))
	require.NoError(t, err)
	movements := countRows(t, f.db, &models.StockMovement{})
	outbox := countRows(t, f.db, &models.OutboxMessage{})
	require.Equal(t, int64(1), movements)
	require.Equal(t, int64(1), outbox)

	_, err = models.CreateSale(ctx, saleInput(f.beans.ID, "5.01"))
	require.True(t, errors.Is(err, utils.ErrInsufficientStock))

	assert.Equal(t, movements, countRows(t, f.db, &models.StockMovement{}))
	assert.Equal(t, outbox, countRows(t, f.db, &models.OutboxMessage{}))
	requireBalance(t, f.db, f.beans.ID, "5")
}

func TestFractionalSales_DoNotDrift(t *testing.T) {
	f := setupDB(t)
	ctx := actorCtx(f.agent)

	_, err := models.CreateProcurement(ctx, procurementInput(f.beans.ID, "1.30"))
	require.NoError(t, err)
	_, err = models.CreateSale(ctx, saleInput(f.beans.ID, "1.10"))
	require.NoError(t, err)
	requireBalance(t, f.db, f.beans.ID, "0.20")

	level, err := models.GetStock(ctx, f.beans.ID)
	require.NoError(t, err)
	assert.Equal(t, "0.20", level.CurrentTonnage.StringFixed(2))

	// the last 0.20 t must be sellable
	_, err = models.CreateSale(ctx, saleInput(f.beans.ID, "0.20"))
	require.NoError(t, err)
	requireBalance(t, f.db, f.beans.ID, "0")

	_, findings, err := models.RunStockReconciliationChecks(ctx)
	require.NoError(t, err)
	assert.Empty(t, findings)
}

func TestReconciliation_ReportsUnroundedBalance(t *testing.T) {
	f := setupDB(t)
	ctx := actorCtx(f.agent)

	_, err := models.CreateProcurement(ctx, procurementInput(f.beans.ID, "1.30"))
	require.NoError(t, err)
	_, err = models.CreateSale(ctx, saleInput(f.beans.ID, "1.10"))
	require.NoError(t, err)

	require.NoError(t, f.db.Exec("UPDATE stock_ledgers SET current_tonnage = 0.19999999999999996 WHERE produce_id = ?", f.beans.ID).Error)

	_, findings, err := models.RunStockReconciliationChecks(ctx)
	require.NoError(t, err)
	checks := map[string]bool{}
	for _, finding := range findings {
		checks[finding.CheckType] = true
	}
	assert.True(t, checks[models.CheckJournalReplay])
}

func TestSellingEntireBalanceLeavesZero(t *testing.T) {
	f := setupDB(t)
	ctx := actorCtx(f.agent)

	_, err := models.CreateProcurement(ctx, procurementInput(f.beans.ID, "12.5"))
	require.NoError(t, err)
	_, err = models.CreateSale(ctx, saleInput(f.beans.ID, "12.5"))
	require.NoError(t, err)
	requireBalance(t, f.db, f.beans.ID, "0")
}

func TestOverrideStock_RecordsMovementAndReconciles(t *testing.T) {
	f := setupDB(t)

	_, err := models.CreateProcurement(actorCtx(f.agent), procurementInput(f.beans.ID, "20"))
	require.NoError(t, err)

	level, err := models.OverrideStock(actorCtx(f.manager), f.beans.ID, tons("17.5"))
	require.NoError(t, err)
	assert.True(t, level.CurrentTonnage.Equal(tons("17.5")))
	requireBalance(t, f.db, f.beans.ID, "17.5")

	var movement models.StockMovement
	require.NoError(t, f.db.Where("kind = ?", models.StockMovementOverride).First(&movement).Error)
	assert.True(t, movement.Delta.Equal(tons("-2.5")))
	assert.Equal(t, f.manager.ID, movement.ActorId)

	// overriding a never-stocked produce creates its ledger
	_, err = models.OverrideStock(actorCtx(f.ceo), f.maize.ID, tons("3"))
	require.NoError(t, err)
	requireBalance(t, f.db, f.maize.ID, "3")

	_, findings, err := models.RunStockReconciliationChecks(actorCtx(f.ceo))
	require.NoError(t, err)
	assert.Empty(t, findings)
}

func TestOverrideStock_InvalidatesReportCache(t *testing.T) {
	f := setupDB(t)
	t.Setenv("ENABLE_REPORT_CACHE", "true")
	mr := useMiniredis(t)

	_, err := models.CreateProcurement(actorCtx(f.agent), procurementInput(f.beans.ID, "20"))
	require.NoError(t, err)

	require.NoError(t, mr.Set("Report:kpis:-:-", `{"total_sales":"0"}`))
	require.NoError(t, mr.Set("User:1", "{}"))

	_, err = models.OverrideStock(actorCtx(f.manager), f.beans.ID, tons("15"))
	require.NoError(t, err)

	assert.False(t, mr.Exists("Report:kpis:-:-"))
	assert.True(t, mr.Exists("User:1"))
}

func TestOverrideStock_RejectsNegativeAndAgents(t *testing.T) {
	f := setupDB(t)

	_, err := models.OverrideStock(actorCtx(f.manager), f.beans.ID, tons("-1"))
	assert.True(t, errors.Is(err, utils.ErrValidation))

	_, err = models.OverrideStock(actorCtx(f.agent), f.beans.ID, tons("10"))
	assert.True(t, errors.Is(err, utils.ErrForbidden))

	_, err = models.OverrideStock(actorCtx(f.manager), 9999, tons("10"))
	assert.True(t, errors.Is(err, utils.ErrNotFound))
}

func TestGetStocks_ListsUnstockedProduceAsZero(t *testing.T) {
	f := setupDB(t)
	_, err := models.CreateProcurement(actorCtx(f.agent), procurementInput(f.beans.ID, "8"))
	require.NoError(t, err)

	levels, err := models.GetStocks(actorCtx(f.ceo), nil)
	require.NoError(t, err)
	require.Len(t, levels, 2)
	assert.Equal(t, f.beans.ID, levels[0].ProduceId)
	assert.True(t, levels[0].CurrentTonnage.Equal(tons("8")))
	assert.True(t, levels[1].CurrentTonnage.IsZero())

	branch := models.BranchMatugga
	levels, err = models.GetStocks(actorCtx(f.agent), &branch)
	require.NoError(t, err)
	require.Len(t, levels, 1)
	assert.Equal(t, f.maize.ID, levels[0].ProduceId)

	one, err := models.GetStock(actorCtx(f.agent), f.maize.ID)
	require.NoError(t, err)
	assert.True(t, one.CurrentTonnage.IsZero())
}

func TestReconciliation_ReportsTamperedLedger(t *testing.T) {
	f := setupDB(t)
	ctx := actorCtx(f.agent)
	_, err := models.CreateProcurement(ctx, procurementInput(f.beans.ID, "30"))
	require.NoError(t, err)

	require.NoError(t, f.db.Exec("UPDATE stock_ledgers SET current_tonnage = 31 WHERE produce_id = ?", f.beans.ID).Error)

	cid, findings, err := models.RunStockReconciliationChecks(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, cid)
	checks := map[string]bool{}
	for _, finding := range findings {
		checks[finding.CheckType] = true
	}
	assert.True(t, checks[models.CheckJournalReplay])
	assert.True(t, checks[models.CheckLedgerMovements])
	assert.Equal(t, int64(len(findings)), countRows(t, f.db, &models.ReconciliationReport{}))
}
