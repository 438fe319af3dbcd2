package catalog

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

// MaxConcurrentLookups ограничивает число одновременных запросов к каталогу.
const MaxConcurrentLookups = 8

// Lookup собирает карточки товаров для набора идентификаторов.
// Каталог нужен только для отображения, поэтому отсутствующие товары пропускаются.
// Первая ошибка, кроме ErrProductNotFound, отменяет оставшиеся запросы:
// ответ строится из того, что успели получить.
func Lookup(ctx context.Context, client Client, logger *slog.Logger, productIDs []string) map[string]*Product {
	products := make(map[string]*Product)
	if client == nil {
		return products
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(MaxConcurrentLookups)

	for _, id := range lo.Uniq(productIDs) {
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			product, err := client.GetProduct(gctx, id)
			switch {
			case errors.Is(err, ErrProductNotFound):
				return nil
			case err != nil:
				return err
			}

			mu.Lock()
			products[id] = product
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		logger.Warn("catalog lookup aborted",
			slog.Int("requested", len(productIDs)),
			slog.Int("resolved", len(products)),
			slog.String("error", err.Error()))
	}
	return products
}
