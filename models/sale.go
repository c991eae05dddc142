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

type Sale struct {
	ID           int             `gorm:"primary_key" json:"id"`
	ProduceId    int             `gorm:"index;not null" json:"produce_id"`
	Tonnage      decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"tonnage"`
	AmountPaid   decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"amount_paid"`
	BuyerName    string          `gorm:"size:100;not null" json:"buyer_name"`
	BuyerContact string          `gorm:"size:20;not null" json:"buyer_contact"`
	AgentId      int             `gorm:"index;not null" json:"agent_id"`
	DateTime     time.Time       `gorm:"index;not null" json:"date_time"`
	IsCredit     bool            `gorm:"not null;default:false" json:"is_credit"`
	ReceiptId    string          `gorm:"size:50;not null;uniqueIndex" json:"receipt_id"`
	Credit       *CreditSale     `gorm:"foreignKey:SaleId" json:"credit,omitempty"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewSale struct {
	ProduceId    int             `json:"produce_id" validate:"required"`
	Tonnage      decimal.Decimal `json:"tonnage" validate:"dgte=0.01"`
	AmountPaid   decimal.Decimal `json:"amount_paid" validate:"dgte=0"`
	BuyerName    string          `json:"buyer_name" validate:"required,max=100"`
	BuyerContact string          `json:"buyer_contact" validate:"required,phone"`
	AgentId      *int            `json:"agent_id"`
	IsCredit     bool            `json:"is_credit"`
	ReceiptId    string          `json:"receipt_id" validate:"max=50"`
	Credit       *NewCreditSale  `json:"credit" validate:"-"`
}

const receiptIdAttempts = 5

func (input *NewSale) validate(ctx context.Context) error {
	input.BuyerName = strings.TrimSpace(input.BuyerName)
	input.BuyerContact = strings.TrimSpace(input.BuyerContact)
	input.ReceiptId = strings.ToUpper(strings.TrimSpace(input.ReceiptId))
	input.Tonnage = utils.Round2(input.Tonnage)
	input.AmountPaid = utils.Round2(input.AmountPaid)

	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	if _, err := utils.FetchModel[Produce](ctx, config.GetDB(), "produce", input.ProduceId); err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return utils.NewFieldError("produce_id", "invalid pk \""+itoa(input.ProduceId)+"\" - object does not exist")
		}
		return err
	}
	return nil
}

func saleRef(action StockAction, id int) StockRef {
	return StockRef{Kind: StockMovementSale, Action: action, ReferenceId: id}
}

// resolveAgent returns the selling agent: the explicit agent_id or the acting user.
func resolveAgent(ctx context.Context, tx *gorm.DB, agentId *int) (*User, error) {
	id := actorId(ctx)
	if agentId != nil {
		id = *agentId
	}
	if id == 0 {
		return nil, utils.NewFieldError("agent_id", "this field is required")
	}
	var agent User
	if err := tx.First(&agent, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewFieldError("agent_id", "invalid pk \""+itoa(id)+"\" - object does not exist")
		}
		return nil, err
	}
	if agent.Role != UserRoleAgent {
		return nil, utils.NewFieldError("agent_id", "selected user is not a sales agent")
	}
	if agent.IsActive != nil && !*agent.IsActive {
		return nil, utils.NewFieldError("agent_id", "selected agent is disabled")
	}
	return &agent, nil
}

// assignReceiptId checks a supplied receipt id for uniqueness, or generates a fresh one.
func assignReceiptId(tx *gorm.DB, supplied string, exceptSaleId int) (string, error) {
	if supplied != "" {
		exists, err := receiptIdTaken(tx, supplied, exceptSaleId)
		if err != nil {
			return "", err
		}
		if exists {
			return "", utils.NewFieldError("receipt_id", "sale with this receipt id already exists")
		}
		return supplied, nil
	}
	for i := 0; i < receiptIdAttempts; i++ {
		candidate := utils.GenerateReceiptId()
		exists, err := receiptIdTaken(tx, candidate, 0)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
	}
	return "", errors.New("could not allocate a unique receipt id")
}

func receiptIdTaken(tx *gorm.DB, receiptId string, exceptSaleId int) (bool, error) {
	var count int64
	err := tx.Model(&Sale{}).Where("receipt_id = ? AND id <> ?", receiptId, exceptSaleId).Count(&count).Error
	return count > 0, err
}

// CreateSale debits the ledger, records the sale and, for credit sales, the credit extension,
// all in one transaction. Insufficient stock or an invalid credit extension leaves nothing behind.
func CreateSale(ctx context.Context, input *NewSale) (*Sale, error) {
	ctx, span := startSpan(ctx, "CreateSale")
	defer span.End()

	if err := Authorize(ctx, OpCreateSale); err != nil {
		return nil, err
	}
	if err := input.validate(ctx); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("produce_id", input.ProduceId))

	release, err := utils.ProduceLock(ctx, input.ProduceId, "Sale", "CreateSale")
	if err != nil {
		return nil, err
	}
	defer release()

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback().Error
			panic(r)
		}
	}()
	defer func() { _ = tx.Rollback().Error }()

	agent, err := resolveAgent(ctx, tx, input.AgentId)
	if err != nil {
		return nil, err
	}
	receiptId, err := assignReceiptId(tx, input.ReceiptId, 0)
	if err != nil {
		return nil, recordSpanError(span, err)
	}

	sale := Sale{
		ProduceId:    input.ProduceId,
		Tonnage:      input.Tonnage,
		AmountPaid:   input.AmountPaid,
		BuyerName:    input.BuyerName,
		BuyerContact: input.BuyerContact,
		AgentId:      agent.ID,
		DateTime:     time.Now().UTC(),
		IsCredit:     input.IsCredit,
		ReceiptId:    receiptId,
	}
	if err := tx.Omit(clause.Associations).Create(&sale).Error; err != nil {
		return nil, recordSpanError(span, err)
	}

	balance, err := ApplyStockDelta(ctx, tx, sale.ProduceId, sale.Tonnage.Neg(), saleRef(StockActionCreate, sale.ID))
	if err != nil {
		return nil, recordSpanError(span, err)
	}

	if sale.IsCredit {
		credit, err := upsertCreditSale(tx, sale.ID, input.Credit)
		if err != nil {
			return nil, recordSpanError(span, err)
		}
		sale.Credit = credit
	}

	if err := tx.Commit().Error; err != nil {
		return nil, recordSpanError(span, err)
	}

	logStockChange(ctx, "CreateSale", sale.ProduceId, sale.Tonnage.Neg(), balance)
	invalidateReportCache()
	return &sale, nil
}

// UpdateSale gives the ledger old-new for the same produce item, or reverses the old sale and
// applies the new one when the produce item changes. The credit extension follows IsCredit.
func UpdateSale(ctx context.Context, id int, input *NewSale) (*Sale, error) {
	ctx, span := startSpan(ctx, "UpdateSale", attribute.Int("sale_id", id))
	defer span.End()

	if err := Authorize(ctx, OpUpdateSale); err != nil {
		return nil, err
	}
	db := config.GetDB()
	current, err := utils.FetchModel[Sale](ctx, db, "sale", id)
	if err != nil {
		return nil, err
	}
	if err := input.validate(ctx); err != nil {
		return nil, err
	}

	release, err := utils.ProduceLocks(ctx, []int{current.ProduceId, input.ProduceId}, "Sale", "UpdateSale")
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

	var old Sale
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&old, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewNotFoundError("sale", id)
		}
		return nil, recordSpanError(span, err)
	}
	if err := lockStockLedgers(tx, []int{old.ProduceId, input.ProduceId}); err != nil {
		return nil, recordSpanError(span, err)
	}

	agentId := old.AgentId
	if input.AgentId != nil {
		agent, err := resolveAgent(ctx, tx, input.AgentId)
		if err != nil {
			return nil, err
		}
		agentId = agent.ID
	}
	receiptId := old.ReceiptId
	if input.ReceiptId != "" && input.ReceiptId != old.ReceiptId {
		receiptId, err = assignReceiptId(tx, input.ReceiptId, id)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Model(&Sale{}).Where("id = ?", id).Updates(map[string]interface{}{
		"produce_id":    input.ProduceId,
		"tonnage":       input.Tonnage,
		"amount_paid":   input.AmountPaid,
		"buyer_name":    input.BuyerName,
		"buyer_contact": input.BuyerContact,
		"agent_id":      agentId,
		"is_credit":     input.IsCredit,
		"receipt_id":    receiptId,
	}).Error; err != nil {
		return nil, recordSpanError(span, err)
	}

	ref := saleRef(StockActionUpdate, id)
	type change struct {
		produceId int
		delta     decimal.Decimal
		policy    missingLedgerPolicy
	}
	var changes []change
	if old.ProduceId == input.ProduceId {
		changes = append(changes, change{old.ProduceId, old.Tonnage.Sub(input.Tonnage), ledgerMissingIsIntegrity})
	} else {
		changes = append(changes,
			change{old.ProduceId, old.Tonnage, ledgerMissingIsIntegrity},
			change{input.ProduceId, input.Tonnage.Neg(), ledgerMissingIsInsufficient},
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

	if input.IsCredit {
		if _, err := upsertCreditSale(tx, id, input.Credit); err != nil {
			return nil, recordSpanError(span, err)
		}
	} else if old.IsCredit {
		if err := deleteCreditSale(tx, id); err != nil {
			return nil, recordSpanError(span, err)
		}
	}

	var updated Sale
	if err := tx.Preload("Credit").First(&updated, id).Error; err != nil {
		return nil, recordSpanError(span, err)
	}
	if err := tx.Commit().Error; err != nil {
		return nil, recordSpanError(span, err)
	}

	for i, c := range changes {
		logStockChange(ctx, "UpdateSale", c.produceId, c.delta, balances[i])
	}
	invalidateReportCache()
	return &updated, nil
}

// DeleteSale returns the sold tonnage to the ledger and removes the sale with its credit extension.
func DeleteSale(ctx context.Context, id int) (*Sale, error) {
	ctx, span := startSpan(ctx, "DeleteSale", attribute.Int("sale_id", id))
	defer span.End()

	if err := Authorize(ctx, OpDeleteSale); err != nil {
		return nil, err
	}
	db := config.GetDB()
	current, err := utils.FetchModel[Sale](ctx, db, "sale", id)
	if err != nil {
		return nil, err
	}

	release, err := utils.ProduceLock(ctx, current.ProduceId, "Sale", "DeleteSale")
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

	var old Sale
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Preload("Credit").First(&old, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewNotFoundError("sale", id)
		}
		return nil, recordSpanError(span, err)
	}
	balance, err := applyStockDelta(ctx, tx, old.ProduceId, old.Tonnage, saleRef(StockActionDelete, id), ledgerMissingIsIntegrity)
	if err != nil {
		return nil, recordSpanError(span, err)
	}
	if err := deleteCreditSale(tx, id); err != nil {
		return nil, recordSpanError(span, err)
	}
	if err := tx.Delete(&Sale{}, id).Error; err != nil {
		return nil, recordSpanError(span, err)
	}
	if err := tx.Commit().Error; err != nil {
		return nil, recordSpanError(span, err)
	}

	logStockChange(ctx, "DeleteSale", old.ProduceId, old.Tonnage, balance)
	invalidateReportCache()
	return &old, nil
}

type SaleFilter struct {
	ProduceId *int
	AgentId   *int
	IsCredit  *bool
	FromDate  *time.Time
	ToDate    *time.Time
	Limit     int
	Offset    int
}

func GetSales(ctx context.Context, filter SaleFilter) ([]*Sale, error) {
	if err := Authorize(ctx, OpListSales); err != nil {
		return nil, err
	}
	q := config.GetDB().WithContext(ctx).Preload("Credit").Order("date_time DESC, id DESC")
	if filter.ProduceId != nil {
		q = q.Where("produce_id = ?", *filter.ProduceId)
	}
	if filter.AgentId != nil {
		q = q.Where("agent_id = ?", *filter.AgentId)
	}
	if filter.IsCredit != nil {
		q = q.Where("is_credit = ?", *filter.IsCredit)
	}
	if filter.FromDate != nil {
		q = q.Where("date_time >= ?", *filter.FromDate)
	}
	if filter.ToDate != nil {
		q = q.Where("date_time < ?", *filter.ToDate)
	}
	q = paginate(q, filter.Limit, filter.Offset)

	var results []*Sale
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func GetSale(ctx context.Context, id int) (*Sale, error) {
	if err := Authorize(ctx, OpListSales); err != nil {
		return nil, err
	}
	return utils.FetchModel[Sale](ctx, config.GetDB(), "sale", id, "Credit")
}
