package models

import (
	"context"
	"time"

	"github.com/karibu/produce_backend/config"
	"github.com/karibu/produce_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// StockMovement is the append-only record of every applied ledger delta.
// Replaying the movements of a produce item reproduces its ledger balance.
type StockMovement struct {
	ID            int               `gorm:"primary_key" json:"id"`
	ProduceId     int               `gorm:"index;not null" json:"produce_id"`
	Kind          StockMovementKind `gorm:"size:20;not null;index:idx_movement_ref,priority:1" json:"kind"`
	Action        StockAction       `gorm:"size:10;not null" json:"action"`
	ReferenceId   int               `gorm:"not null;index:idx_movement_ref,priority:2" json:"reference_id"`
	Delta         decimal.Decimal   `gorm:"type:decimal(20,2);not null" json:"delta"`
	BalanceAfter  decimal.Decimal   `gorm:"type:decimal(20,2);not null" json:"balance_after"`
	ActorId       int               `json:"actor_id"`
	CorrelationId string            `gorm:"size:64" json:"correlation_id"`
	CreatedAt     time.Time         `gorm:"autoCreateTime" json:"created_at"`
}

func recordStockMovement(ctx context.Context, tx *gorm.DB, produceId int, delta decimal.Decimal, balanceAfter decimal.Decimal, ref StockRef) error {
	movement := StockMovement{
		ProduceId:     produceId,
		Kind:          ref.Kind,
		Action:        ref.Action,
		ReferenceId:   ref.ReferenceId,
		Delta:         delta,
		BalanceAfter:  balanceAfter,
		ActorId:       actorId(ctx),
		CorrelationId: correlationId(ctx),
	}
	if err := tx.Create(&movement).Error; err != nil {
		return err
	}
	return enqueueStockEvent(tx, &movement)
}

// GetStockMovements lists the movements of one produce item, newest first.
func GetStockMovements(ctx context.Context, produceId int, limit int) ([]*StockMovement, error) {
	if err := Authorize(ctx, OpGetStock); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 500 {
		limit = config.SearchLimit
	}
	var results []*StockMovement
	err := config.GetDB().WithContext(ctx).
		Where("produce_id = ?", produceId).
		Order("id DESC").
		Limit(limit).
		Find(&results).Error
	return results, err
}

func logStockChange(ctx context.Context, funcName string, produceId int, delta decimal.Decimal, balance decimal.Decimal) {
	username, _ := utils.GetUsernameFromContext(ctx)
	config.GetLogger().WithFields(logrus.Fields{
		"module":         "Stock",
		"funcName":       funcName,
		"produce_id":     produceId,
		"delta":          delta.StringFixed(2),
		"balance_after":  balance.StringFixed(2),
		"actor_id":       actorId(ctx),
		"actor":          username,
		"correlation_id": correlationId(ctx),
	}).Info("stock ledger changed")
}
