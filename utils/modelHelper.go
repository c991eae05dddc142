package utils

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// FetchModel loads one row by primary key on db (which may be an open transaction).
// A missing row becomes a NOT_FOUND AppError naming resource.
func FetchModel[T any](ctx context.Context, db *gorm.DB, resource string, id int, associations ...string) (*T, error) {
	q := db.WithContext(ctx)
	for _, field := range associations {
		q = q.Preload(field)
	}
	var result T
	if err := q.First(&result, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewNotFoundError(resource, id)
		}
		return nil, err
	}
	return &result, nil
}

// ResourceExists reports whether model has a row matching the condition.
func ResourceExists(ctx context.Context, db *gorm.DB, model any, cond string, args ...any) (bool, error) {
	var count int64
	if err := db.WithContext(ctx).Model(model).Where(cond, args...).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
