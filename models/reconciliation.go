package models

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/karibu/produce_backend/config"
	"github.com/karibu/produce_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const (
	CheckLedgerMovements = "LEDGER_MOVEMENTS"
	CheckJournalReplay   = "JOURNAL_REPLAY"
	CheckNegativeBalance = "NEGATIVE_BALANCE"
	CheckCreditExtension = "CREDIT_EXTENSION"
)

// ReconciliationReport is one drift finding (nightly or admin-triggered).
type ReconciliationReport struct {
	ID            int       `gorm:"primary_key" json:"id"`
	CheckType     string    `gorm:"size:50;index;not null" json:"check_type"`
	EntityType    string    `gorm:"size:50;index;not null" json:"entity_type"`
	EntityId      int       `gorm:"index;not null" json:"entity_id"`
	Details       string    `gorm:"type:text" json:"details"`
	CorrelationId string    `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}

type produceTotals struct {
	ProduceId int
	Total     decimal.NullDecimal
}

func sumByProduce(ctx context.Context, query string) (map[int]decimal.Decimal, error) {
	var rows []produceTotals
	if err := config.GetDB().WithContext(ctx).Raw(query).Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[int]decimal.Decimal, len(rows))
	for _, r := range rows {
		if r.Total.Valid {
			out[r.ProduceId] = utils.Round2(r.Total.Decimal)
		}
	}
	return out, nil
}

// RunStockReconciliationChecks replays the journals against every ledger and writes a
// reconciliation_reports row per mismatch. The expected balance of a produce item is
// procured - sold + override adjustments.
func RunStockReconciliationChecks(ctx context.Context) (string, []ReconciliationReport, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	db := config.GetDB()
	if db == nil {
		return "", nil, fmt.Errorf("db is nil")
	}
	logger := config.GetLogger()

	cid, ok := utils.GetCorrelationIdFromContext(ctx)
	if !ok || cid == "" {
		cid = uuid.NewString()
	}

	var ledgers []StockLedger
	if err := db.WithContext(ctx).Order("produce_id ASC").Find(&ledgers).Error; err != nil {
		return cid, nil, err
	}
	procured, err := sumByProduce(ctx, "SELECT produce_id, SUM(tonnage) AS total FROM procurements GROUP BY produce_id")
	if err != nil {
		return cid, nil, err
	}
	sold, err := sumByProduce(ctx, "SELECT produce_id, SUM(tonnage) AS total FROM sales GROUP BY produce_id")
	if err != nil {
		return cid, nil, err
	}
	overrides, err := sumByProduce(ctx, "SELECT produce_id, SUM(delta) AS total FROM stock_movements WHERE kind = 'OVERRIDE' GROUP BY produce_id")
	if err != nil {
		return cid, nil, err
	}
	movements, err := sumByProduce(ctx, "SELECT produce_id, SUM(delta) AS total FROM stock_movements GROUP BY produce_id")
	if err != nil {
		return cid, nil, err
	}

	var findings []ReconciliationReport
	add := func(checkType string, entityType string, entityId int, details string) {
		findings = append(findings, ReconciliationReport{
			CheckType:     checkType,
			EntityType:    entityType,
			EntityId:      entityId,
			Details:       details,
			CorrelationId: cid,
		})
	}

	seen := make(map[int]bool, len(ledgers))
	for _, l := range ledgers {
		seen[l.ProduceId] = true
		// compared unrounded so float drift in the stored value shows up
		balance := l.CurrentTonnage
		if balance.IsNegative() {
			add(CheckNegativeBalance, "StockLedger", l.ID, fmt.Sprintf("produce %d current_tonnage=%s is negative", l.ProduceId, balance.StringFixed(2)))
		}
		expected := procured[l.ProduceId].Sub(sold[l.ProduceId]).Add(overrides[l.ProduceId])
		if !expected.Equal(balance) {
			add(CheckJournalReplay, "StockLedger", l.ID, fmt.Sprintf("produce %d current_tonnage=%s != procured-sold+overrides=%s",
				l.ProduceId, balance.StringFixed(2), expected.StringFixed(2)))
		}
		if moved := movements[l.ProduceId]; !moved.Equal(balance) {
			add(CheckLedgerMovements, "StockLedger", l.ID, fmt.Sprintf("produce %d current_tonnage=%s != sum(stock_movements.delta)=%s",
				l.ProduceId, balance.StringFixed(2), moved.StringFixed(2)))
		}
	}
	// journal activity on a produce item with no ledger at all
	for produceId, total := range procured {
		if !seen[produceId] && !total.IsZero() {
			add(CheckJournalReplay, "Produce", produceId, fmt.Sprintf("produce %d has procurements (%s t) but no stock ledger", produceId, total.StringFixed(2)))
		}
	}

	type idRow struct{ ID int }
	var orphans []idRow
	if err := db.WithContext(ctx).Raw(`
		SELECT s.id
		FROM sales s
		LEFT JOIN credit_sales c ON c.sale_id = s.id
		WHERE s.is_credit = ? AND c.id IS NULL
	`, true).Scan(&orphans).Error; err != nil {
		return cid, nil, err
	}
	for _, o := range orphans {
		add(CheckCreditExtension, "Sale", o.ID, "credit sale has no credit extension")
	}
	var stray []idRow
	if err := db.WithContext(ctx).Raw(`
		SELECT c.id
		FROM credit_sales c
		LEFT JOIN sales s ON s.id = c.sale_id
		WHERE s.id IS NULL OR s.is_credit = ?
	`, false).Scan(&stray).Error; err != nil {
		return cid, nil, err
	}
	for _, o := range stray {
		add(CheckCreditExtension, "CreditSale", o.ID, "credit extension without a credit sale")
	}

	if len(findings) > 0 {
		if err := db.WithContext(ctx).Create(&findings).Error; err != nil {
			return cid, findings, err
		}
	}

	logger.WithFields(logrus.Fields{
		"module":         "Reconciliation",
		"correlation_id": cid,
		"ledgers":        len(ledgers),
		"findings":       len(findings),
	}).Info("stock reconciliation finished")
	return cid, findings, nil
}

func GetReconciliationReports(ctx context.Context, correlationId string) ([]*ReconciliationReport, error) {
	if err := Authorize(ctx, OpRunReconciliation); err != nil {
		return nil, err
	}
	q := config.GetDB().WithContext(ctx).Order("id DESC")
	if correlationId != "" {
		q = q.Where("correlation_id = ?", correlationId)
	} else {
		q = q.Limit(maxPageSize)
	}
	var results []*ReconciliationReport
	err := q.Find(&results).Error
	return results, err
}
