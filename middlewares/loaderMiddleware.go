package middlewares

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/graph-gophers/dataloader/v7"
	"github.com/karibu/produce_backend/models"
)

type ctxKey string

const (
	loadersKey = ctxKey("dataloaders")
)

// Loaders batch the produce and agent lookups list responses make per row.
type Loaders struct {
	produceLoader *dataloader.Loader[int, *models.Produce]
	userLoader    *dataloader.Loader[int, *models.User]
}

func NewLoaders() *Loaders {
	produceReader := &produceReader{}
	userReader := &userReader{}

	return &Loaders{
		produceLoader: dataloader.NewBatchedLoader(produceReader.getProduces, dataloader.WithWait[int, *models.Produce](time.Millisecond)),
		userLoader:    dataloader.NewBatchedLoader(userReader.getUsers, dataloader.WithWait[int, *models.User](time.Millisecond)),
	}
}

func LoaderMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := WithLoaders(c.Request.Context())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func WithLoaders(ctx context.Context) context.Context {
	return context.WithValue(ctx, loadersKey, NewLoaders())
}

// For returns the request loaders, creating a fresh set when none are attached.
func For(ctx context.Context) *Loaders {
	if loaders, ok := ctx.Value(loadersKey).(*Loaders); ok {
		return loaders
	}
	return NewLoaders()
}

// handleError creates array of result with the same error repeated for as many items requested
func handleError[T any](itemsLength int, err error) []*dataloader.Result[T] {
	result := make([]*dataloader.Result[T], itemsLength)
	for i := 0; i < itemsLength; i++ {
		result[i] = &dataloader.Result[T]{Error: err}
	}
	return result
}

// generateLoaderResults orders results by the requested ids. Missing ids resolve to nil.
func generateLoaderResults[T any](results []*T, ids []int, idOf func(*T) int) []*dataloader.Result[*T] {
	resultMap := make(map[int]*T, len(results))
	for _, result := range results {
		resultMap[idOf(result)] = result
	}

	loaderResults := make([]*dataloader.Result[*T], 0, len(ids))
	for _, id := range ids {
		loaderResults = append(loaderResults, &dataloader.Result[*T]{Data: resultMap[id]})
	}
	return loaderResults
}
