package middlewares

import (
	"context"

	"github.com/graph-gophers/dataloader/v7"
	"github.com/karibu/produce_backend/models"
)

type produceReader struct{}

func (r *produceReader) getProduces(ctx context.Context, ids []int) []*dataloader.Result[*models.Produce] {
	results, err := models.GetProducesByIds(ctx, ids)
	if err != nil {
		return handleError[*models.Produce](len(ids), err)
	}
	return generateLoaderResults(results, ids, func(p *models.Produce) int { return p.ID })
}

func GetProduce(ctx context.Context, id int) (*models.Produce, error) {
	loaders := For(ctx)
	return loaders.produceLoader.Load(ctx, id)()
}

func GetProduces(ctx context.Context, ids []int) ([]*models.Produce, []error) {
	loaders := For(ctx)
	return loaders.produceLoader.LoadMany(ctx, ids)()
}
