package models

import (
	"context"
	"strings"
	"time"

	"github.com/karibu/produce_backend/config"
	"github.com/karibu/produce_backend/utils"
)

type Produce struct {
	ID        int           `gorm:"primary_key" json:"id"`
	Name      string        `gorm:"size:50;not null" json:"name"`
	Type      CommodityType `gorm:"size:20;not null;index" json:"type"`
	Branch    Branch        `gorm:"size:20;not null;index" json:"branch"`
	CreatedAt time.Time     `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time     `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewProduce struct {
	Name   string        `json:"name" validate:"required,max=50"`
	Type   CommodityType `json:"type" validate:"required"`
	Branch Branch        `json:"branch" validate:"required"`
}

func (input *NewProduce) validate() error {
	input.Name = strings.TrimSpace(input.Name)
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	fields := map[string]string{}
	if !input.Type.IsValid() {
		fields["type"] = "\"" + string(input.Type) + "\" is not a valid choice"
	}
	if !input.Branch.IsValid() {
		fields["branch"] = "\"" + string(input.Branch) + "\" is not a valid choice"
	}
	if len(fields) > 0 {
		return utils.NewValidationError("invalid input", fields)
	}
	return nil
}

func CreateProduce(ctx context.Context, input *NewProduce) (*Produce, error) {
	if err := Authorize(ctx, OpCreateProduce); err != nil {
		return nil, err
	}
	if err := input.validate(); err != nil {
		return nil, err
	}
	produce := Produce{
		Name:   input.Name,
		Type:   input.Type,
		Branch: input.Branch,
	}
	if err := config.GetDB().WithContext(ctx).Create(&produce).Error; err != nil {
		return nil, err
	}
	return &produce, nil
}

func GetProduce(ctx context.Context, id int) (*Produce, error) {
	return utils.FetchModel[Produce](ctx, config.GetDB(), "produce", id)
}

type ProduceFilter struct {
	Type   *CommodityType
	Branch *Branch
}

func GetProduces(ctx context.Context, filter ProduceFilter) ([]*Produce, error) {
	if err := Authorize(ctx, OpListProduce); err != nil {
		return nil, err
	}
	q := config.GetDB().WithContext(ctx).Order("id ASC")
	if filter.Type != nil {
		q = q.Where("type = ?", *filter.Type)
	}
	if filter.Branch != nil {
		q = q.Where("branch = ?", *filter.Branch)
	}
	var results []*Produce
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// GetProducesByIds is used by the request-scoped loaders.
func GetProducesByIds(ctx context.Context, ids []int) ([]*Produce, error) {
	var results []*Produce
	err := config.GetDB().WithContext(ctx).Where("id IN ?", ids).Find(&results).Error
	return results, err
}

// SeedProduceCatalog creates one produce item per commodity and branch when none exist.
func SeedProduceCatalog(ctx context.Context) (int, error) {
	db := config.GetDB().WithContext(ctx)
	var count int64
	if err := db.Model(&Produce{}).Count(&count).Error; err != nil {
		return 0, err
	}
	if count > 0 {
		return 0, nil
	}
	var catalog []Produce
	for _, branch := range AllBranch {
		for _, t := range AllCommodityType {
			catalog = append(catalog, Produce{Name: t.Label(), Type: t, Branch: branch})
		}
	}
	if err := db.Create(&catalog).Error; err != nil {
		return 0, err
	}
	return len(catalog), nil
}
