package models_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/karibu/produce_backend/config"
	"github.com/karibu/produce_backend/models"
	"github.com/karibu/produce_backend/utils"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testPhone = "+256772123456"

type fixture struct {
	db      *gorm.DB
	agent   *models.User
	manager *models.User
	ceo     *models.User
	beans   *models.Produce
	maize   *models.Produce
}

func setupDB(t *testing.T) *fixture {
	t.Helper()
	t.Setenv("RECONCILE_CRON", "off")
	t.Setenv("ENABLE_REPORT_CACHE", "")

	db, err := config.OpenSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, models.AutoMigrateAll(db))
	config.SetDB(db)
	config.SetRedisClient(nil)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	f := &fixture{db: db}
	f.agent = createTestUser(t, db, "agent1", models.UserRoleAgent)
	f.manager = createTestUser(t, db, "manager1", models.UserRoleManager)
	f.ceo = createTestUser(t, db, "ceo1", models.UserRoleCEO)

	f.beans = &models.Produce{Name: "Beans", Type: models.CommodityBeans, Branch: models.BranchMaganjo}
	f.maize = &models.Produce{Name: "Maize", Type: models.CommodityMaize, Branch: models.BranchMatugga}
	require.NoError(t, db.Create(f.beans).Error)
	require.NoError(t, db.Create(f.maize).Error)
	return f
}

func createTestUser(t *testing.T, db *gorm.DB, username string, role models.UserRole) *models.User {
	t.Helper()
	user := &models.User{
		Username: username,
		Name:     username,
		Password: "not-a-real-hash",
		Role:     role,
		IsActive: utils.NewTrue(),
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func actorCtx(user *models.User) context.Context {
	ctx := utils.WithActor(context.Background(), user.ID, user.Username, string(user.Role))
	return utils.SetCorrelationIdInContext(ctx, "test-"+user.Username)
}

func tons(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func procurementInput(produceId int, tonnage string) *models.NewProcurement {
	return &models.NewProcurement{
		ProduceId:     produceId,
		Tonnage:       tons(tonnage),
		Cost:          tons("1000000"),
		DealerName:    "Okello Traders",
		DealerContact: testPhone,
		SellingPrice:  tons("3500"),
	}
}

func saleInput(produceId int, tonnage string) *models.NewSale {
	return &models.NewSale{
		ProduceId:    produceId,
		Tonnage:      tons(tonnage),
		AmountPaid:   tons("500000"),
		BuyerName:    "Nakato Stores",
		BuyerContact: testPhone,
	}
}

func creditInput() *models.NewCreditSale {
	return &models.NewCreditSale{
		NationalId: "CM9001234567AB",
		Location:   "Kasangati",
		AmountDue:  tons("250000"),
		DueDate:    "2026-12-31",
	}
}

func requireBalance(t *testing.T, db *gorm.DB, produceId int, expected string) {
	t.Helper()
	var ledger models.StockLedger
	require.NoError(t, db.Where("produce_id = ?", produceId).First(&ledger).Error)
	require.Truef(t, ledger.CurrentTonnage.Equal(tons(expected)),
		"produce %d: expected balance %s, got %s", produceId, expected, ledger.CurrentTonnage.String())
}

func countRows(t *testing.T, db *gorm.DB, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(model).Count(&n).Error)
	return n
}

// useMiniredis points the redis helpers at an in-process server for the test.
func useMiniredis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	config.SetRedisClient(client)
	t.Cleanup(func() {
		config.SetRedisClient(nil)
		_ = client.Close()
	})
	return mr
}
