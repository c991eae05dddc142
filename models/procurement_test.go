package models_test

import (
	"errors"
	"testing"

	"github.com/karibu/produce_backend/models"
	"github.com/karibu/produce_backend/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateProcurement_ValidatesInput(t *testing.T) {
	f := setupDB(t)
	ctx := actorCtx(f.agent)

	input := procurementInput(f.beans.ID, "0.5")
	input.DealerName = ""
	input.DealerContact = "0700"
	_, err := models.CreateProcurement(ctx, input)
	require.Error(t, err)

	var appErr *utils.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, utils.KindValidation, appErr.Kind)
	assert.Contains(t, appErr.Fields, "tonnage")
	assert.Contains(t, appErr.Fields, "dealer_name")
	assert.Contains(t, appErr.Fields, "dealer_contact")

	_, err = models.CreateProcurement(ctx, procurementInput(4242, "10"))
	require.True(t, errors.As(err, &appErr))
	assert.Contains(t, appErr.Fields, "produce_id")

	bad := procurementInput(f.beans.ID, "10")
	bad.Branch = "kampala"
	_, err = models.CreateProcurement(ctx, bad)
	require.True(t, errors.As(err, &appErr))
	assert.Contains(t, appErr.Fields, "branch")

	assert.Equal(t, int64(0), countRows(t, f.db, &models.Procurement{}))
	assert.Equal(t, int64(0), countRows(t, f.db, &models.StockLedger{}))
}

func TestCreateProcurement_DefaultsBranchFromProduce(t *testing.T) {
	f := setupDB(t)
	p, err := models.CreateProcurement(actorCtx(f.agent), procurementInput(f.maize.ID, "1"))
	require.NoError(t, err)
	assert.Equal(t, models.BranchMatugga, p.Branch)
	assert.Equal(t, f.agent.ID, p.CreatedBy)
	assert.False(t, p.DateTime.IsZero())
}

func TestProcurementMutations_AreAgentOnly(t *testing.T) {
	f := setupDB(t)
	for _, user := range []*models.User{f.manager, f.ceo} {
		_, err := models.CreateProcurement(actorCtx(user), procurementInput(f.beans.ID, "10"))
		assert.True(t, errors.Is(err, utils.ErrForbidden), "role %s", user.Role)
	}
}

func TestUpdateProcurement_RejectsDeltaBelowZero(t *testing.T) {
	f := setupDB(t)
	ctx := actorCtx(f.agent)

	p, err := models.CreateProcurement(ctx, procurementInput(f.beans.ID, "100"))
	require.NoError(t, err)
	_, err = models.CreateSale(ctx, saleInput(f.beans.ID, "90"))
	require.NoError(t, err)

	_, err = models.UpdateProcurement(ctx, p.ID, procurementInput(f.beans.ID, "50"))
	require.True(t, errors.Is(err, utils.ErrInsufficientStock))

	stored, err := models.GetProcurement(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, stored.Tonnage.Equal(tons("100")))
	requireBalance(t, f.db, f.beans.ID, "10")
}

func TestUpdateProcurement_MovesBetweenProduce(t *testing.T) {
	f := setupDB(t)
	ctx := actorCtx(f.agent)

	p, err := models.CreateProcurement(ctx, procurementInput(f.beans.ID, "25"))
	require.NoError(t, err)

	moved, err := models.UpdateProcurement(ctx, p.ID, procurementInput(f.maize.ID, "30"))
	require.NoError(t, err)
	assert.Equal(t, f.maize.ID, moved.ProduceId)
	requireBalance(t, f.db, f.beans.ID, "0")
	requireBalance(t, f.db, f.maize.ID, "30")

	_, findings, err := models.RunStockReconciliationChecks(ctx)
	require.NoError(t, err)
	assert.Empty(t, findings)
}

func TestUpdateProcurement_MoveRejectedWhenOldStockSold(t *testing.T) {
	f := setupDB(t)
	ctx := actorCtx(f.agent)

	p, err := models.CreateProcurement(ctx, procurementInput(f.beans.ID, "25"))
	require.NoError(t, err)
	_, err = models.CreateSale(ctx, saleInput(f.beans.ID, "5"))
	require.NoError(t, err)

	_, err = models.UpdateProcurement(ctx, p.ID, procurementInput(f.maize.ID, "25"))
	require.True(t, errors.Is(err, utils.ErrInsufficientStock))
	requireBalance(t, f.db, f.beans.ID, "20")
	assert.Equal(t, int64(0), countRows(t, f.db.Where("produce_id = ?", f.maize.ID), &models.StockMovement{}))
}

func TestDeleteProcurement(t *testing.T) {
	f := setupDB(t)
	ctx := actorCtx(f.agent)

	keep, err := models.CreateProcurement(ctx, procurementInput(f.beans.ID, "40"))
	require.NoError(t, err)
	drop, err := models.CreateProcurement(ctx, procurementInput(f.beans.ID, "10"))
	require.NoError(t, err)

	_, err = models.DeleteProcurement(ctx, drop.ID)
	require.NoError(t, err)
	requireBalance(t, f.db, f.beans.ID, "40")

	_, err = models.CreateSale(ctx, saleInput(f.beans.ID, "35"))
	require.NoError(t, err)

	// 35 of the 40 t are sold; reversing the procurement would go negative
	_, err = models.DeleteProcurement(ctx, keep.ID)
	require.True(t, errors.Is(err, utils.ErrInsufficientStock))
	requireBalance(t, f.db, f.beans.ID, "5")
	assert.Equal(t, int64(1), countRows(t, f.db, &models.Procurement{}))

	_, err = models.DeleteProcurement(ctx, 777)
	assert.True(t, errors.Is(err, utils.ErrNotFound))
}

func TestGetProcurements_Filters(t *testing.T) {
	f := setupDB(t)
	ctx := actorCtx(f.agent)
	_, err := models.CreateProcurement(ctx, procurementInput(f.beans.ID, "1"))
	require.NoError(t, err)
	_, err = models.CreateProcurement(ctx, procurementInput(f.maize.ID, "2"))
	require.NoError(t, err)

	all, err := models.GetProcurements(actorCtx(f.ceo), models.ProcurementFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	branch := models.BranchMaganjo
	filtered, err := models.GetProcurements(ctx, models.ProcurementFilter{Branch: &branch})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, f.beans.ID, filtered[0].ProduceId)
}
