package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/karibu/produce_backend/config"
	"github.com/karibu/produce_backend/models"
	"github.com/karibu/produce_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakePublisher struct {
	mu   sync.Mutex
	err  error
	sent []models.OutboxMessage
}

func (p *fakePublisher) Publish(_ context.Context, msg models.OutboxMessage) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return "", p.err
	}
	p.sent = append(p.sent, msg)
	return "msg-" + msg.OrderingKey, nil
}

func setupWorkflowDB(t *testing.T) (*gorm.DB, context.Context, int) {
	t.Helper()
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

	agent := &models.User{Username: "agent", Name: "Agent", Password: "x", Role: models.UserRoleAgent, IsActive: utils.NewTrue()}
	require.NoError(t, db.Create(agent).Error)
	produce := &models.Produce{Name: "Beans", Type: models.CommodityBeans, Branch: models.BranchMaganjo}
	require.NoError(t, db.Create(produce).Error)

	ctx := utils.WithActor(context.Background(), agent.ID, agent.Username, string(agent.Role))
	return db, ctx, produce.ID
}

func procure(t *testing.T, ctx context.Context, produceId int, tonnage string) {
	t.Helper()
	_, err := models.CreateProcurement(ctx, &models.NewProcurement{
		ProduceId:     produceId,
		Tonnage:       decimal.RequireFromString(tonnage),
		Cost:          decimal.NewFromInt(1000),
		DealerName:    "Okello Traders",
		DealerContact: "+256772123456",
		SellingPrice:  decimal.NewFromInt(10),
	})
	require.NoError(t, err)
}

func TestOutboxDispatcher_PublishesPendingStockEvents(t *testing.T) {
	db, ctx, produceId := setupWorkflowDB(t)
	procure(t, ctx, produceId, "10")
	procure(t, ctx, produceId, "5")

	pub := &fakePublisher{}
	d := NewOutboxDispatcher(db, nil, pub)
	assert.Equal(t, 2, d.dispatchOnce(context.Background()))
	require.Len(t, pub.sent, 2)

	var event models.StockEvent
	require.NoError(t, json.Unmarshal(pub.sent[1].Payload, &event))
	assert.Equal(t, produceId, event.ProduceId)
	assert.Equal(t, models.StockMovementProcurement, event.Kind)
	assert.True(t, event.BalanceAfter.Equal(decimal.NewFromInt(15)))

	var rows []models.OutboxMessage
	require.NoError(t, db.Order("id ASC").Find(&rows).Error)
	for _, row := range rows {
		assert.Equal(t, models.OutboxPublishStatusSent, row.PublishStatus)
		assert.Equal(t, 1, row.PublishAttempts)
		require.NotNil(t, row.PubSubMessageId)
		assert.Nil(t, row.LockedBy)
	}

	// nothing left to send
	assert.Equal(t, 0, d.dispatchOnce(context.Background()))
}

func TestOutboxDispatcher_FailureSchedulesRetryThenDead(t *testing.T) {
	db, ctx, produceId := setupWorkflowDB(t)
	procure(t, ctx, produceId, "10")

	pub := &fakePublisher{err: errors.New("broker unavailable")}
	d := NewOutboxDispatcher(db, nil, pub)
	d.MaxAttempts = 2
	assert.Equal(t, 0, d.dispatchOnce(context.Background()))

	var row models.OutboxMessage
	require.NoError(t, db.First(&row).Error)
	assert.Equal(t, models.OutboxPublishStatusFailed, row.PublishStatus)
	assert.Equal(t, 1, row.PublishAttempts)
	require.NotNil(t, row.NextAttemptAt)
	assert.True(t, row.NextAttemptAt.After(time.Now().UTC()))
	require.NotNil(t, row.LastPublishError)
	assert.Equal(t, "broker unavailable", *row.LastPublishError)

	// not yet due
	assert.Equal(t, 0, d.dispatchOnce(context.Background()))
	require.NoError(t, db.First(&row).Error)
	assert.Equal(t, 1, row.PublishAttempts)

	require.NoError(t, db.Model(&models.OutboxMessage{}).Where("id = ?", row.ID).
		Update("next_attempt_at", time.Now().UTC().Add(-time.Minute)).Error)
	d.dispatchOnce(context.Background())
	require.NoError(t, db.First(&row).Error)
	assert.Equal(t, models.OutboxPublishStatusDead, row.PublishStatus)
	assert.Equal(t, 2, row.PublishAttempts)
}

func TestRetryBackoff(t *testing.T) {
	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{1, 5 * time.Second},
		{2, 10 * time.Second},
		{4, 40 * time.Second},
		{20, 10 * time.Minute},
	}
	for _, tc := range tests {
		if got := retryBackoff(5*time.Second, tc.attempt); got != tc.expected {
			t.Fatalf("retryBackoff(%d) expected %v, got %v", tc.attempt, tc.expected, got)
		}
	}
}

func TestReconciliationScheduler(t *testing.T) {
	s, err := NewReconciliationScheduler("", nil)
	require.NoError(t, err)
	assert.Nil(t, s)

	_, err = NewReconciliationScheduler("not a cron spec", nil)
	require.Error(t, err)

	db, ctx, produceId := setupWorkflowDB(t)
	procure(t, ctx, produceId, "10")

	s, err = NewReconciliationScheduler("0 2 * * *", nil)
	require.NoError(t, err)
	findings, ok := s.RunOnce(context.Background())
	require.True(t, ok)
	assert.Equal(t, 0, findings)
	assert.NotEmpty(t, s.LastRun)

	require.NoError(t, db.Exec("UPDATE stock_ledgers SET current_tonnage = 3").Error)
	findings, ok = s.RunOnce(context.Background())
	require.True(t, ok)
	assert.Greater(t, findings, 0)
}
