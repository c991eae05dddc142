package models_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/karibu/produce_backend/models"
	"github.com/karibu/produce_backend/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateCreditSale(t *testing.T) {
	f := setupDB(t)
	ctx := actorCtx(f.agent)
	_, err := models.CreateProcurement(ctx, procurementInput(f.beans.ID, "10"))
	require.NoError(t, err)

	input := saleInput(f.beans.ID, "4")
	input.IsCredit = true
	input.Credit = creditInput()
	sale, err := models.CreateSale(ctx, input)
	require.NoError(t, err)
	require.NotNil(t, sale.Credit)
	assert.Equal(t, sale.ID, sale.Credit.SaleId)
	assert.Equal(t, "2026-12-31", sale.Credit.DueDate.Format("2006-01-02"))
	requireBalance(t, f.db, f.beans.ID, "6")

	stored, err := models.GetSale(ctx, sale.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.Credit)
	assert.Equal(t, "Kasangati", stored.Credit.Location)
}

func TestCreateCreditSale_InvalidCreditRollsBackEverything(t *testing.T) {
	f := setupDB(t)
	ctx := actorCtx(f.agent)
	_, err := models.CreateProcurement(ctx, procurementInput(f.beans.ID, "10"))
	require.NoError(t, err)
	movements := countRows(t, f.db, &models.StockMovement{})

	cases := map[string]*models.NewCreditSale{
		"missing credit":    nil,
		"blank national id": {NationalId: "", Location: "Gayaza", AmountDue: tons("1"), DueDate: "2026-12-31"},
		"long location":     {NationalId: "CM1", Location: strings.Repeat("x", 101), AmountDue: tons("1"), DueDate: "2026-12-31"},
		"negative amount":   {NationalId: "CM1", Location: "Gayaza", AmountDue: tons("-1"), DueDate: "2026-12-31"},
		"bad due date":      {NationalId: "CM1", Location: "Gayaza", AmountDue: tons("1"), DueDate: "31/12/2026"},
	}
	for name, credit := range cases {
		input := saleInput(f.beans.ID, "4")
		input.IsCredit = true
		input.Credit = credit
		_, err := models.CreateSale(ctx, input)
		require.Error(t, err, name)
		assert.True(t, errors.Is(err, utils.ErrValidation), name)
	}

	assert.Equal(t, int64(0), countRows(t, f.db, &models.Sale{}))
	assert.Equal(t, int64(0), countRows(t, f.db, &models.CreditSale{}))
	assert.Equal(t, movements, countRows(t, f.db, &models.StockMovement{}))
	requireBalance(t, f.db, f.beans.ID, "10")
}

func TestCreateSale_ValidatesAgentAndReceipt(t *testing.T) {
	f := setupDB(t)
	ctx := actorCtx(f.agent)
	_, err := models.CreateProcurement(ctx, procurementInput(f.beans.ID, "10"))
	require.NoError(t, err)

	// agent must hold the Agent role
	input := saleInput(f.beans.ID, "1")
	input.AgentId = &f.manager.ID
	_, err = models.CreateSale(ctx, input)
	var appErr *utils.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Contains(t, appErr.Fields, "agent_id")

	input = saleInput(f.beans.ID, "1")
	input.ReceiptId = "rcpt-001"
	first, err := models.CreateSale(ctx, input)
	require.NoError(t, err)
	assert.Equal(t, "RCPT-001", first.ReceiptId)

	input = saleInput(f.beans.ID, "1")
	input.ReceiptId = "RCPT-001"
	_, err = models.CreateSale(ctx, input)
	require.True(t, errors.As(err, &appErr))
	assert.Contains(t, appErr.Fields, "receipt_id")
	requireBalance(t, f.db, f.beans.ID, "9")

	input = saleInput(f.beans.ID, "0.001")
	_, err = models.CreateSale(ctx, input)
	assert.True(t, errors.Is(err, utils.ErrValidation))
}

func TestUpdateSale_AdjustsLedgerAndCredit(t *testing.T) {
	f := setupDB(t)
	ctx := actorCtx(f.agent)
	_, err := models.CreateProcurement(ctx, procurementInput(f.beans.ID, "50"))
	require.NoError(t, err)
	sale, err := models.CreateSale(ctx, saleInput(f.beans.ID, "20"))
	require.NoError(t, err)

	// more tonnage on the same sale, switched to credit
	input := saleInput(f.beans.ID, "30")
	input.IsCredit = true
	input.Credit = creditInput()
	updated, err := models.UpdateSale(ctx, sale.ID, input)
	require.NoError(t, err)
	requireBalance(t, f.db, f.beans.ID, "20")
	require.NotNil(t, updated.Credit)
	assert.Equal(t, sale.ReceiptId, updated.ReceiptId)

	// more than available is rejected, sale keeps its values
	_, err = models.UpdateSale(ctx, sale.ID, saleInput(f.beans.ID, "51"))
	require.True(t, errors.Is(err, utils.ErrInsufficientStock))
	requireBalance(t, f.db, f.beans.ID, "20")

	// back to cash drops the credit extension
	cash := saleInput(f.beans.ID, "10")
	updated, err = models.UpdateSale(ctx, sale.ID, cash)
	require.NoError(t, err)
	assert.Nil(t, updated.Credit)
	assert.False(t, updated.IsCredit)
	assert.Equal(t, int64(0), countRows(t, f.db, &models.CreditSale{}))
	requireBalance(t, f.db, f.beans.ID, "40")
}

func TestUpdateSale_MovesBetweenProduce(t *testing.T) {
	f := setupDB(t)
	ctx := actorCtx(f.agent)
	_, err := models.CreateProcurement(ctx, procurementInput(f.beans.ID, "10"))
	require.NoError(t, err)
	_, err = models.CreateProcurement(ctx, procurementInput(f.maize.ID, "10"))
	require.NoError(t, err)
	sale, err := models.CreateSale(ctx, saleInput(f.beans.ID, "6"))
	require.NoError(t, err)

	_, err = models.UpdateSale(ctx, sale.ID, saleInput(f.maize.ID, "7"))
	require.NoError(t, err)
	requireBalance(t, f.db, f.beans.ID, "10")
	requireBalance(t, f.db, f.maize.ID, "3")

	_, findings, err := models.RunStockReconciliationChecks(ctx)
	require.NoError(t, err)
	assert.Empty(t, findings)
}

func TestDeleteSale_RemovesCreditAndRestoresStock(t *testing.T) {
	f := setupDB(t)
	ctx := actorCtx(f.agent)
	_, err := models.CreateProcurement(ctx, procurementInput(f.beans.ID, "10"))
	require.NoError(t, err)
	input := saleInput(f.beans.ID, "10")
	input.IsCredit = true
	input.Credit = creditInput()
	sale, err := models.CreateSale(ctx, input)
	require.NoError(t, err)
	requireBalance(t, f.db, f.beans.ID, "0")

	_, err = models.DeleteSale(ctx, sale.ID)
	require.NoError(t, err)
	requireBalance(t, f.db, f.beans.ID, "10")
	assert.Equal(t, int64(0), countRows(t, f.db, &models.CreditSale{}))
	assert.Equal(t, int64(0), countRows(t, f.db, &models.Sale{}))
}

func TestDeleteSale_MissingLedgerIsIntegrityError(t *testing.T) {
	f := setupDB(t)
	ctx := actorCtx(f.agent)
	_, err := models.CreateProcurement(ctx, procurementInput(f.beans.ID, "10"))
	require.NoError(t, err)
	sale, err := models.CreateSale(ctx, saleInput(f.beans.ID, "3"))
	require.NoError(t, err)

	require.NoError(t, f.db.Exec("DELETE FROM stock_ledgers").Error)

	_, err = models.DeleteSale(ctx, sale.ID)
	require.True(t, errors.Is(err, utils.ErrIntegrity))
	assert.Equal(t, int64(1), countRows(t, f.db, &models.Sale{}))
}

func TestGetReceipt(t *testing.T) {
	f := setupDB(t)
	ctx := actorCtx(f.agent)
	_, err := models.CreateProcurement(ctx, procurementInput(f.beans.ID, "10"))
	require.NoError(t, err)
	input := saleInput(f.beans.ID, "2.5")
	input.IsCredit = true
	input.Credit = creditInput()
	sale, err := models.CreateSale(ctx, input)
	require.NoError(t, err)

	receipt, err := models.GetReceipt(actorCtx(f.manager), strings.ToLower(sale.ReceiptId))
	require.NoError(t, err)
	assert.Equal(t, sale.ID, receipt.SaleId)
	assert.Equal(t, "Beans", receipt.ProduceName)
	assert.Equal(t, f.agent.Name, receipt.AgentName)

	text, err := receipt.RenderText()
	require.NoError(t, err)
	assert.Contains(t, text, sale.ReceiptId)
	assert.Contains(t, text, "Tonnage    : 2.50")
	assert.Contains(t, text, "CREDIT SALE")

	_, err = models.GetReceipt(ctx, "NOPE0000")
	assert.True(t, errors.Is(err, utils.ErrNotFound))
}
