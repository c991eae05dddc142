package models

import (
	"errors"
	"strings"
	"time"

	"github.com/karibu/produce_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CreditSale extends a sale sold on credit. It exists iff the parent sale has IsCredit set.
type CreditSale struct {
	ID         int             `gorm:"primary_key" json:"id"`
	SaleId     int             `gorm:"uniqueIndex;not null" json:"sale_id"`
	NationalId string          `gorm:"size:20;not null" json:"national_id"`
	Location   string          `gorm:"size:100;not null" json:"location"`
	AmountDue  decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"amount_due"`
	DueDate    time.Time       `gorm:"type:date;not null" json:"due_date"`
	CreatedAt  time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewCreditSale struct {
	NationalId string          `json:"national_id" validate:"required,max=20"`
	Location   string          `json:"location" validate:"required,max=100"`
	AmountDue  decimal.Decimal `json:"amount_due" validate:"dgte=0"`
	DueDate    string          `json:"due_date" validate:"required,datetime=2006-01-02"`
}

func (input *NewCreditSale) validate() (time.Time, error) {
	if input == nil {
		return time.Time{}, utils.NewFieldError("credit", "credit details are required for a credit sale")
	}
	input.NationalId = strings.TrimSpace(input.NationalId)
	input.Location = strings.TrimSpace(input.Location)
	input.DueDate = strings.TrimSpace(input.DueDate)
	input.AmountDue = utils.Round2(input.AmountDue)
	if err := utils.ValidateStruct(input); err != nil {
		var appErr *utils.AppError
		if errors.As(err, &appErr) && appErr.Kind == utils.KindValidation {
			return time.Time{}, prefixFields(appErr, "credit.")
		}
		return time.Time{}, err
	}
	due, err := utils.ParseDate(input.DueDate)
	if err != nil {
		return time.Time{}, utils.NewFieldError("credit.due_date", "date has wrong format, use YYYY-MM-DD")
	}
	return due, nil
}

// upsertCreditSale validates and writes the credit extension inside the sale's transaction.
func upsertCreditSale(tx *gorm.DB, saleId int, input *NewCreditSale) (*CreditSale, error) {
	due, err := input.validate()
	if err != nil {
		return nil, err
	}
	var credit CreditSale
	err = tx.Where("sale_id = ?", saleId).Limit(1).Find(&credit).Error
	if err != nil {
		return nil, err
	}
	credit.SaleId = saleId
	credit.NationalId = input.NationalId
	credit.Location = input.Location
	credit.AmountDue = input.AmountDue
	credit.DueDate = due
	if credit.ID == 0 {
		err = tx.Create(&credit).Error
	} else {
		err = tx.Save(&credit).Error
	}
	if err != nil {
		return nil, err
	}
	return &credit, nil
}

func deleteCreditSale(tx *gorm.DB, saleId int) error {
	return tx.Where("sale_id = ?", saleId).Delete(&CreditSale{}).Error
}

func prefixFields(appErr *utils.AppError, prefix string) *utils.AppError {
	fields := make(map[string]string, len(appErr.Fields))
	for k, v := range appErr.Fields {
		fields[prefix+k] = v
	}
	return utils.NewValidationError(appErr.Message, fields)
}
