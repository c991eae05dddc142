package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/karibu/produce_backend/config"
	"github.com/karibu/produce_backend/utils"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Procurement struct {
	ID            int             `gorm:"primary_key" json:"id"`
	ProduceId     int             `gorm:"index;not null" json:"produce_id"`
	Tonnage       decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"tonnage"`
	Cost          decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"cost"`
	DealerName    string          `gorm:"size:100;not null;index" json:"dealer_name"`
	DealerContact string          `gorm:"size:20;not null" json:"dealer_contact"`
	Branch        Branch          `gorm:"size:20;not null;index" json:"branch"`
	SellingPrice  decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"selling_price"`
	DateTime      time.Time       `gorm:"index;not null" json:"date_time"`
	CreatedBy     int             `gorm:"index" json:"created_by"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewProcurement struct {
	ProduceId     int             `json:"produce_id" validate:"required"`
	Tonnage       decimal.Decimal `json:"tonnage" validate:"dgte=1"`
	Cost          decimal.Decimal `json:"cost" validate:"dgte=0"`
	DealerName    string          `json:"dealer_name" validate:"required,max=100"`
	DealerContact string          `json:"dealer_contact" validate:"required,phone"`
	Branch        Branch          `json:"branch"`
	SellingPrice  decimal.Decimal `json:"selling_price" validate:"dgte=0"`
}

func (input *NewProcurement) validate(ctx context.Context) error {
	input.DealerName = strings.TrimSpace(input.DealerName)
	input.DealerContact = strings.TrimSpace(input.DealerContact)
	input.Tonnage = utils.Round2(input.Tonnage)
	input.Cost = utils.Round2(input.Cost)
	input.SellingPrice = utils.Round2(input.SellingPrice)

	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	produce, err := utils.FetchModel[Produce](ctx, config.GetDB(), "produce", input.ProduceId)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return utils.NewFieldError("produce_id", "invalid pk \""+itoa(input.ProduceId)+"\" - object does not exist")
		}
		return err
	}
	if input.Branch == "" {
		input.Branch = produce.Branch
	}
	if !input.Branch.IsValid() {
		return utils.NewFieldError("branch", "\""+string(input.Branch)+"\" is not a valid choice")
	}
	return nil
}

func procurementRef(action StockAction, id int) StockRef {
	return StockRef{Kind: StockMovementProcurement, Action: action, ReferenceId: id}
}

// CreateProcurement records incoming produce and adds its tonnage to the ledger in one transaction.
func CreateProcurement(ctx context.Context, input *NewProcurement) (*Procurement, error) {
	ctx, span := startSpan(ctx, "CreateProcurement")
	defer span.End()

	if err := Authorize(ctx, OpCreateProcurement); err != nil {
		return nil, err
	}
	if err := input.validate(ctx); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("produce_id", input.ProduceId))

	release, err := utils.ProduceLock(ctx, input.ProduceId, "Procurement", "CreateProcurement")
	if err != nil {
		return nil, err
	}
	defer release()

	procurement := Procurement{
		ProduceId:     input.ProduceId,
		Tonnage:       input.Tonnage,
		Cost:          input.Cost,
		DealerName:    input.DealerName,
		DealerContact: input.DealerContact,
		Branch:        input.Branch,
		SellingPrice:  input.SellingPrice,
		DateTime:      time.Now().UTC(),
		CreatedBy:     actorId(ctx),
	}

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback().Error
			panic(r)
		}
	}()
	defer func() { _ = tx.Rollback().Error }()

	if err := tx.Create(&procurement).Error; err != nil {
		return nil, recordSpanError(span, err)
	}
	balance, err := ApplyStockDelta(ctx, tx, procurement.ProduceId, procurement.Tonnage, procurementRef(StockActionCreate, procurement.ID))
	if err != nil {
		return nil, recordSpanError(span, err)
	}
	if err := tx.Commit().Error; err != nil {
		return nil, recordSpanError(span, err)
	}

	logStockChange(ctx, "CreateProcurement", procurement.ProduceId, procurement.Tonnage, balance)
	invalidateReportCache()
	return &procurement, nil
}

// UpdateProcurement applies the difference between the stored and the new tonnage.
// Moving an entry to another produce item reverses it on the old ledger and applies it on the new one.
func UpdateProcurement(ctx context.Context, id int, input *NewProcurement) (*Procurement, error) {
	ctx, span := startSpan(ctx, "UpdateProcurement", attribute.Int("procurement_id", id))
	defer span.End()

	if err := Authorize(ctx, OpUpdateProcurement); err != nil {
		return nil, err
	}
	db := config.GetDB()
	current, err := utils.FetchModel[Procurement](ctx, db, "procurement", id)
	if err != nil {
		return nil, err
	}
	if err := input.validate(ctx); err != nil {
		return nil, err
	}

	release, err := utils.ProduceLocks(ctx, []int{current.ProduceId, input.ProduceId}, "Procurement", "UpdateProcurement")
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

	// the stored values are read under the transaction, before any overwrite
	var old Procurement
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&old, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewNotFoundError("procurement", id)
		}
		return nil, recordSpanError(span, err)
	}
	if err := lockStockLedgers(tx, []int{old.ProduceId, input.ProduceId}); err != nil {
		return nil, recordSpanError(span, err)
	}

	if err := tx.Model(&Procurement{}).Where("id = ?", id).Updates(map[string]interface{}{
		"produce_id":     input.ProduceId,
		"tonnage":        input.Tonnage,
		"cost":           input.Cost,
		"dealer_name":    input.DealerName,
		"dealer_contact": input.DealerContact,
		"branch":         input.Branch,
		"selling_price":  input.SellingPrice,
	}).Error; err != nil {
		return nil, recordSpanError(span, err)
	}

	ref := procurementRef(StockActionUpdate, id)
	type change struct {
		produceId int
		delta     decimal.Decimal
		policy    missingLedgerPolicy
	}
	var changes []change
	if old.ProduceId == input.ProduceId {
		delta := input.Tonnage.Sub(old.Tonnage)
		policy := ledgerCreate
		if delta.IsNegative() {
			policy = ledgerMissingIsIntegrity
		}
		changes = append(changes, change{old.ProduceId, delta, policy})
	} else {
		changes = append(changes,
			change{old.ProduceId, old.Tonnage.Neg(), ledgerMissingIsIntegrity},
			change{input.ProduceId, input.Tonnage, ledgerCreate},
		)
	}
	balances := make([]decimal.Decimal, len(changes))
	for i, c := range changes {
		balance, err := applyStockDelta(ctx, tx, c.produceId, c.delta, ref, c.policy)
		if err != nil {
			return nil, recordSpanError(span, err)
		}
		balances[i] = balance
	}

	var updated Procurement
	if err := tx.First(&updated, id).Error; err != nil {
		return nil, recordSpanError(span, err)
	}
	if err := tx.Commit().Error; err != nil {
		return nil, recordSpanError(span, err)
	}

	for i, c := range changes {
		logStockChange(ctx, "UpdateProcurement", c.produceId, c.delta, balances[i])
	}
	invalidateReportCache()
	return &updated, nil
}

// DeleteProcurement reverses the entry's tonnage and removes it. The delete is rejected when
// the reversal would take the ledger below zero, i.e. the procured stock has already been sold.
func DeleteProcurement(ctx context.Context, id int) (*Procurement, error) {
	ctx, span := startSpan(ctx, "DeleteProcurement", attribute.Int("procurement_id", id))
	defer span.End()

	if err := Authorize(ctx, OpDeleteProcurement); err != nil {
		return nil, err
	}
	db := config.GetDB()
	current, err := utils.FetchModel[Procurement](ctx, db, "procurement", id)
	if err != nil {
		return nil, err
	}

	release, err := utils.ProduceLock(ctx, current.ProduceId, "Procurement", "DeleteProcurement")
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

	var old Procurement
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&old, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewNotFoundError("procurement", id)
		}
		return nil, recordSpanError(span, err)
	}
	balance, err := applyStockDelta(ctx, tx, old.ProduceId, old.Tonnage.Neg(), procurementRef(StockActionDelete, id), ledgerMissingIsIntegrity)
	if err != nil {
		if errors.Is(err, utils.ErrInsufficientStock) {
			return nil, recordSpanError(span, utils.NewInsufficientStockError(
				"cannot delete procurement %d: %s t of it has already been sold", id, old.Tonnage.StringFixed(2)))
		}
		return nil, recordSpanError(span, err)
	}
	if err := tx.Delete(&Procurement{}, id).Error; err != nil {
		return nil, recordSpanError(span, err)
	}
	if err := tx.Commit().Error; err != nil {
		return nil, recordSpanError(span, err)
	}

	logStockChange(ctx, "DeleteProcurement", old.ProduceId, old.Tonnage.Neg(), balance)
	invalidateReportCache()
	return &old, nil
}

type ProcurementFilter struct {
	ProduceId  *int
	Branch     *Branch
	DealerName *string
	FromDate   *time.Time
	ToDate     *time.Time
	Limit      int
	Offset     int
}

func GetProcurements(ctx context.Context, filter ProcurementFilter) ([]*Procurement, error) {
	if err := Authorize(ctx, OpListProcurements); err != nil {
		return nil, err
	}
	q := config.GetDB().WithContext(ctx).Order("date_time DESC, id DESC")
	if filter.ProduceId != nil {
		q = q.Where("produce_id = ?", *filter.ProduceId)
	}
	if filter.Branch != nil {
		q = q.Where("branch = ?", *filter.Branch)
	}
	if filter.DealerName != nil && *filter.DealerName != "" {
		q = q.Where("dealer_name LIKE ?", "%"+*filter.DealerName+"%")
	}
	if filter.FromDate != nil {
		q = q.Where("date_time >= ?", *filter.FromDate)
	}
	if filter.ToDate != nil {
		q = q.Where("date_time < ?", *filter.ToDate)
	}
	q = paginate(q, filter.Limit, filter.Offset)

	var results []*Procurement
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func GetProcurement(ctx context.Context, id int) (*Procurement, error) {
	if err := Authorize(ctx, OpListProcurements); err != nil {
		return nil, err
	}
	return utils.FetchModel[Procurement](ctx, config.GetDB(), "procurement", id)
}
