package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/karibu/produce_backend/config"
	"github.com/karibu/produce_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StockLedger holds the running tonnage for one produce item.
// CurrentTonnage is never negative after a committed mutation.
type StockLedger struct {
	ID             int             `gorm:"primary_key" json:"id"`
	ProduceId      int             `gorm:"uniqueIndex;not null" json:"produce_id"`
	CurrentTonnage decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"current_tonnage"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// StockRef identifies the journal entry behind a ledger change.
type StockRef struct {
	Kind        StockMovementKind
	Action      StockAction
	ReferenceId int
}

// what to do when a produce item has no ledger row yet
type missingLedgerPolicy int

const (
	ledgerCreate missingLedgerPolicy = iota
	ledgerMissingIsInsufficient
	ledgerMissingIsIntegrity
)

// GetOrCreateStockLedger returns the row-locked ledger for produceId, creating it at zero.
func GetOrCreateStockLedger(tx *gorm.DB, produceId int) (*StockLedger, error) {
	ledger, err := lockStockLedger(tx, produceId)
	if err == nil {
		return ledger, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	ledger = &StockLedger{ProduceId: produceId, CurrentTonnage: decimal.Zero}
	if createErr := tx.Create(ledger).Error; createErr != nil {
		// lost the race to a concurrent first procurement; the row exists now
		existing, lockErr := lockStockLedger(tx, produceId)
		if lockErr != nil {
			return nil, createErr
		}
		return existing, nil
	}
	return ledger, nil
}

func lockStockLedger(tx *gorm.DB, produceId int) (*StockLedger, error) {
	var ledger StockLedger
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("produce_id = ?", produceId).
		First(&ledger).Error
	if err != nil {
		return nil, err
	}
	// sqlite keeps decimal columns as REAL
	ledger.CurrentTonnage = utils.Round2(ledger.CurrentTonnage)
	return &ledger, nil
}

// lockStockLedgers takes row locks on every existing ledger in ascending produce id order.
func lockStockLedgers(tx *gorm.DB, produceIds []int) error {
	ids := utils.SortedUniqueInts(produceIds)
	if len(ids) == 0 {
		return nil
	}
	var ledgers []StockLedger
	return tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("produce_id IN ?", ids).
		Order("produce_id ASC").
		Find(&ledgers).Error
}

// ApplyStockDelta changes the ledger of produceId by delta inside tx and records the movement.
// Positive deltas create a missing ledger; negative deltas against a missing ledger or a balance
// smaller than -delta fail with INSUFFICIENT_STOCK. Returns the balance after the change.
func ApplyStockDelta(ctx context.Context, tx *gorm.DB, produceId int, delta decimal.Decimal, ref StockRef) (decimal.Decimal, error) {
	policy := ledgerCreate
	if delta.IsNegative() {
		policy = ledgerMissingIsInsufficient
	}
	return applyStockDelta(ctx, tx, produceId, delta, ref, policy)
}

func applyStockDelta(ctx context.Context, tx *gorm.DB, produceId int, delta decimal.Decimal, ref StockRef, policy missingLedgerPolicy) (decimal.Decimal, error) {
	delta = utils.Round2(delta)

	var ledger *StockLedger
	var err error
	if policy == ledgerCreate {
		ledger, err = GetOrCreateStockLedger(tx, produceId)
	} else {
		ledger, err = lockStockLedger(tx, produceId)
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if policy == ledgerMissingIsIntegrity {
				return decimal.Zero, utils.NewIntegrityError(fmt.Sprintf("stock ledger missing for produce %d", produceId), err)
			}
			return decimal.Zero, utils.NewInsufficientStockError("no stock recorded for produce %d (requested=%s)", produceId, delta.Neg().StringFixed(2))
		}
		return decimal.Zero, err
	}

	if delta.IsZero() {
		return ledger.CurrentTonnage, nil
	}

	newBalance := ledger.CurrentTonnage.Add(delta)
	if newBalance.IsNegative() {
		return decimal.Zero, insufficientStock(produceId, ledger.CurrentTonnage, delta)
	}

	// conditional update is the guard; the locked read above only shapes the error.
	// ROUND keeps REAL-backed columns (sqlite) at two places.
	result := tx.Exec(
		"UPDATE stock_ledgers SET current_tonnage = ROUND(current_tonnage + CAST(? AS DECIMAL(20,2)), 2), updated_at = ? WHERE id = ? AND ROUND(current_tonnage + CAST(? AS DECIMAL(20,2)), 2) >= 0",
		delta, time.Now().UTC(), ledger.ID, delta,
	)
	if result.Error != nil {
		return decimal.Zero, result.Error
	}
	if result.RowsAffected == 0 {
		return decimal.Zero, insufficientStock(produceId, ledger.CurrentTonnage, delta)
	}

	if err := recordStockMovement(ctx, tx, produceId, delta, newBalance, ref); err != nil {
		return decimal.Zero, err
	}
	return newBalance, nil
}

func insufficientStock(produceId int, available decimal.Decimal, delta decimal.Decimal) error {
	return utils.NewInsufficientStockError("insufficient stock for produce %d (available=%s, requested=%s)",
		produceId, available.StringFixed(2), delta.Neg().StringFixed(2))
}

// StockLevel is the read model returned by GetStock and GetStocks.
type StockLevel struct {
	ProduceId      int             `json:"produce_id"`
	ProduceName    string          `json:"produce_name"`
	Type           CommodityType   `json:"type"`
	Branch         Branch          `json:"branch"`
	CurrentTonnage decimal.Decimal `json:"current_tonnage"`
	UpdatedAt      *time.Time      `json:"updated_at"`
}

// GetStock returns the balance for one produce item. A produce item that was never
// stocked reads as zero.
func GetStock(ctx context.Context, produceId int) (*StockLevel, error) {
	if err := Authorize(ctx, OpGetStock); err != nil {
		return nil, err
	}
	db := config.GetDB()
	produce, err := utils.FetchModel[Produce](ctx, db, "produce", produceId)
	if err != nil {
		return nil, err
	}
	level := &StockLevel{
		ProduceId:      produce.ID,
		ProduceName:    produce.Name,
		Type:           produce.Type,
		Branch:         produce.Branch,
		CurrentTonnage: decimal.Zero,
	}
	var ledger StockLedger
	err = db.WithContext(ctx).Where("produce_id = ?", produceId).First(&ledger).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if err == nil {
		level.CurrentTonnage = utils.Round2(ledger.CurrentTonnage)
		level.UpdatedAt = &ledger.UpdatedAt
	}
	return level, nil
}

// GetStocks lists every produce item with its balance, optionally filtered by branch.
func GetStocks(ctx context.Context, branch *Branch) ([]*StockLevel, error) {
	if err := Authorize(ctx, OpGetStock); err != nil {
		return nil, err
	}
	db := config.GetDB()
	var rows []struct {
		ProduceId      int
		ProduceName    string
		Type           CommodityType
		Branch         Branch
		CurrentTonnage decimal.NullDecimal
		UpdatedAt      *time.Time
	}
	q := db.WithContext(ctx).Table("produces").
		Select("produces.id AS produce_id, produces.name AS produce_name, produces.type, produces.branch, stock_ledgers.current_tonnage, stock_ledgers.updated_at").
		Joins("LEFT JOIN stock_ledgers ON stock_ledgers.produce_id = produces.id").
		Order("produces.id ASC")
	if branch != nil {
		q = q.Where("produces.branch = ?", *branch)
	}
	if err := q.Scan(&rows).Error; err != nil {
		return nil, err
	}
	levels := make([]*StockLevel, 0, len(rows))
	for _, r := range rows {
		level := &StockLevel{
			ProduceId:      r.ProduceId,
			ProduceName:    r.ProduceName,
			Type:           r.Type,
			Branch:         r.Branch,
			CurrentTonnage: decimal.Zero,
			UpdatedAt:      r.UpdatedAt,
		}
		if r.CurrentTonnage.Valid {
			level.CurrentTonnage = utils.Round2(r.CurrentTonnage.Decimal)
		}
		levels = append(levels, level)
	}
	return levels, nil
}

// OverrideStock sets the balance directly. The change is still journaled as an OVERRIDE movement.
func OverrideStock(ctx context.Context, produceId int, value decimal.Decimal) (*StockLevel, error) {
	ctx, span := startSpan(ctx, "OverrideStock")
	defer span.End()

	if err := Authorize(ctx, OpOverrideStock); err != nil {
		return nil, err
	}
	value = utils.Round2(value)
	if value.IsNegative() {
		return nil, utils.NewFieldError("current_tonnage", "ensure this value is greater than or equal to 0")
	}

	db := config.GetDB()
	if _, err := utils.FetchModel[Produce](ctx, db, "produce", produceId); err != nil {
		return nil, err
	}

	release, err := utils.ProduceLock(ctx, produceId, "Stock", "OverrideStock")
	if err != nil {
		return nil, err
	}
	defer release()

	tx := db.WithContext(ctx).Begin()
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback().Error
			panic(r)
		}
	}()
	defer func() { _ = tx.Rollback().Error }()

	ledger, err := GetOrCreateStockLedger(tx, produceId)
	if err != nil {
		return nil, recordSpanError(span, err)
	}
	delta := value.Sub(ledger.CurrentTonnage)
	if !delta.IsZero() {
		if err := tx.Model(&StockLedger{}).Where("id = ?", ledger.ID).Updates(map[string]interface{}{
			"current_tonnage": value,
			"updated_at":      time.Now().UTC(),
		}).Error; err != nil {
			return nil, recordSpanError(span, err)
		}
		if err := recordStockMovement(ctx, tx, produceId, delta, value, StockRef{
			Kind:        StockMovementOverride,
			Action:      StockActionUpdate,
			ReferenceId: ledger.ID,
		}); err != nil {
			return nil, recordSpanError(span, err)
		}
	}
	if err := tx.Commit().Error; err != nil {
		return nil, recordSpanError(span, err)
	}

	logStockChange(ctx, "OverrideStock", produceId, delta, value)
	invalidateReportCache()
	return GetStock(ctx, produceId)
}
