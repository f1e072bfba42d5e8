package catalog

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Agroly/store/internal/entity"
	"github.com/Agroly/store/internal/metrics"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

// fetchTimeout bounds each individual lookup in a batch so one hung fetch
// cannot suspend the whole resolution.
const fetchTimeout = 5 * time.Second

// Fetcher is the slice of the commerce client the catalog needs.
type Fetcher interface {
	Products(ctx context.Context) ([]entity.Product, error)
	Product(ctx context.Context, id int) (*entity.Product, error)
}

// Result is the outcome of resolving one product id in a batch. Partial
// failure is first class: callers degrade failed lines instead of failing
// the whole view.
type Result struct {
	Product entity.Product
	Err     error
}

// Cache holds the client's view of the catalog. Records are stored with
// image references already rewritten to absolute URLs, so consumers never
// touch the remote base themselves.
type Cache struct {
	fetcher Fetcher
	baseURL string
	backend Backend
	metrics *metrics.Registry
}

func NewCache(fetcher Fetcher, baseURL string, backend Backend, m *metrics.Registry) *Cache {
	return &Cache{
		fetcher: fetcher,
		baseURL: strings.TrimRight(baseURL, "/"),
		backend: backend,
		metrics: m,
	}
}

// FetchAll refreshes the whole catalog. On success the cached set is
// replaced; on failure it is left untouched and the error is returned for
// the caller to surface.
func (c *Cache) FetchAll(ctx context.Context) ([]entity.Product, error) {
	products, err := c.fetcher.Products(ctx)
	if err != nil {
		c.metrics.CatalogFetchFailures.Inc()
		logger.Error().Err(err).Msg("Error fetching product catalog")
		return nil, err
	}

	for i := range products {
		products[i] = c.rewriteImages(products[i])
	}

	if err := c.backend.ReplaceAll(ctx, products); err != nil {
		logger.Error().Err(err).Msg("Error replacing cached catalog")
		return nil, err
	}
	return products, nil
}

// FetchOne retrieves a single product and caches it. Used when resolving
// order history lines whose products the list fetch never saw.
func (c *Cache) FetchOne(ctx context.Context, id int) (entity.Product, error) {
	p, err := c.fetcher.Product(ctx, id)
	if err != nil {
		c.metrics.CatalogFetchFailures.Inc()
		logger.Error().Err(err).Msgf("Error fetching product %d", id)
		return entity.Product{}, err
	}

	product := c.rewriteImages(*p)
	if err := c.backend.Put(ctx, product); err != nil {
		logger.Error().Err(err).Msgf("Error caching product %d", id)
		return entity.Product{}, err
	}
	return product, nil
}

// Resolve returns the cached product or absent. A miss is not an error;
// callers omit enrichment for absent products.
func (c *Cache) Resolve(ctx context.Context, id int) (entity.Product, bool) {
	p, ok, err := c.backend.Get(ctx, id)
	if err != nil {
		logger.Error().Err(err).Msgf("Error reading product %d from cache", id)
		return entity.Product{}, false
	}
	return p, ok
}

// All returns the cached catalog.
func (c *Cache) All(ctx context.Context) ([]entity.Product, error) {
	return c.backend.All(ctx)
}

// ResolveBatch resolves a set of product ids, fetching uncached ones
// concurrently. Fetches may complete in any order; the result map carries
// one entry per distinct id, failed lookups included, so one failure never
// blocks the rest of the batch.
func (c *Cache) ResolveBatch(ctx context.Context, ids []int) map[int]Result {
	results := make(map[int]Result, len(ids))

	var missing []int
	for _, id := range ids {
		if _, done := results[id]; done {
			continue
		}
		if p, ok := c.Resolve(ctx, id); ok {
			results[id] = Result{Product: p}
			continue
		}
		results[id] = Result{}
		missing = append(missing, id)
	}

	if len(missing) == 0 {
		return results
	}

	fetched := make(chan struct {
		ID      int
		Product entity.Product
		Err     error
	}, len(missing))

	for _, id := range missing {
		go func(id int) {
			fetchCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
			defer cancel()

			p, err := c.FetchOne(fetchCtx, id)
			fetched <- struct {
				ID      int
				Product entity.Product
				Err     error
			}{ID: id, Product: p, Err: err}
		}(id)
	}

	for range missing {
		r := <-fetched
		results[r.ID] = Result{Product: r.Product, Err: r.Err}
	}
	return results
}

// rewriteImages turns the relative image references the API serves into
// directly fetchable URLs. List responses carry a relative photoUrl; by-id
// responses carry only the file name under images/products.
func (c *Cache) rewriteImages(p entity.Product) entity.Product {
	switch {
	case p.PhotoFileName != "":
		p.PhotoURL = c.baseURL + "/images/products/" + p.PhotoFileName
	case p.PhotoURL != "" && !strings.Contains(p.PhotoURL, "://"):
		p.PhotoURL = c.baseURL + "/" + strings.TrimLeft(p.PhotoURL, "/")
	}
	return p
}
