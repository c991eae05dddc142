package middlewares

import (
	"context"

	"github.com/graph-gophers/dataloader/v7"
	"github.com/karibu/produce_backend/models"
)

type userReader struct{}

func (r *userReader) getUsers(ctx context.Context, ids []int) []*dataloader.Result[*models.User] {
	results, err := models.GetUsersByIds(ctx, ids)
	if err != nil {
		return handleError[*models.User](len(ids), err)
	}
	return generateLoaderResults(results, ids, func(u *models.User) int { return u.ID })
}

func GetUser(ctx context.Context, id int) (*models.User, error) {
	loaders := For(ctx)
	return loaders.userLoader.Load(ctx, id)()
}

func GetUsers(ctx context.Context, ids []int) ([]*models.User, []error) {
	loaders := For(ctx)
	return loaders.userLoader.LoadMany(ctx, ids)()
}
