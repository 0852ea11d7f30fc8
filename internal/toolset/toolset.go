// Package toolset registers the assistant's two search tools on a registry.
// Registration happens once at startup; the registry holds no per-turn state
// after that.
package toolset

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"

	"github.com/voiceshop/assistant/config"
	"github.com/voiceshop/assistant/internal/registry"
	"github.com/voiceshop/assistant/models"
	"github.com/voiceshop/assistant/tools/catalog"
	"github.com/voiceshop/assistant/tools/web_search"
	"github.com/voiceshop/assistant/utils"
)

// Build wires the catalog index and the live web searcher into a registry.
func Build(cfg *config.Config, logger *log.Logger) (*registry.Registry, error) {
	reg := registry.New(logger)

	ix, err := catalog.Open(cfg.Tools.Catalog.ProductsPath)
	if err != nil {
		return nil, fmt.Errorf("toolset: %w", err)
	}
	logger.Printf("catalog index ready: %d products", ix.Size())

	searcher, err := buildWebSearcher(cfg)
	if err != nil {
		return nil, fmt.Errorf("toolset: %w", err)
	}

	if err := reg.Register(ragSearchTool(ix)); err != nil {
		return nil, err
	}
	if err := reg.Register(webSearchTool(searcher)); err != nil {
		return nil, err
	}
	return reg, nil
}

func buildWebSearcher(cfg *config.Config) (web_search.Searcher, error) {
	if cfg.Tools.Web.APIKey == "" {
		// Keep the tool discoverable; calls report an upstream error that
		// the retriever absorbs.
		return unconfiguredSearcher{}, nil
	}
	base, err := web_search.NewSearcher(web_search.Provider(cfg.Tools.Web.Provider), cfg.Tools.Web.APIKey)
	if err != nil {
		return nil, err
	}

	var rdb *redis.Client
	if cfg.Storage.Redis.Enabled() {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Storage.Redis.Addr(), DB: cfg.Storage.Redis.DB})
	}
	return web_search.NewCached(base, rdb, cfg.Tools.Web.CacheTTL, cfg.Tools.Web.MinInterval), nil
}

type unconfiguredSearcher struct{}

func (unconfiguredSearcher) Discover(ctx context.Context, q string, k int) ([]models.Product, error) {
	return nil, errors.New("web search api key not configured")
}

// searchSchema is the argument schema both tools share: required query,
// nullable category and max_price, bounded limit.
func searchSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query":     map[string]any{"type": "string", "minLength": 1},
			"category":  map[string]any{"type": []string{"string", "null"}},
			"max_price": map[string]any{"type": []string{"number", "null"}, "minimum": 0},
			"limit":     map[string]any{"type": "integer", "minimum": 1, "maximum": 25},
		},
		"required":             []string{"query"},
		"additionalProperties": false,
	}
}

func ragSearchTool(ix *catalog.Index) registry.Tool {
	return registry.Tool{
		Name:        models.ToolRagSearch,
		Description: "Search the private product catalog.",
		InputSchema: searchSchema(),
		Handler: func(ctx context.Context, args map[string]any) ([]models.Product, error) {
			limit := utils.AsInt(args["limit"])
			if limit == 0 {
				limit = 5
			}
			params := catalog.Params{
				Query:    utils.Str(args["query"]),
				Category: utils.Str(args["category"]),
				Limit:    utils.ClampInt(limit, 1, 25),
			}
			if v, ok := utils.AsFloat(args["max_price"]); ok {
				params.MaxPrice = &v
			}
			return ix.Search(ctx, params)
		},
	}
}

func webSearchTool(searcher web_search.Searcher) registry.Tool {
	return registry.Tool{
		Name:        models.ToolWebSearch,
		Description: "Search the live web for current prices and availability.",
		InputSchema: searchSchema(),
		Handler: func(ctx context.Context, args map[string]any) ([]models.Product, error) {
			k := utils.AsInt(args["limit"])
			if k == 0 {
				k = 3
			}
			k = utils.ClampInt(k, 1, 25)
			products, err := searcher.Discover(ctx, utils.Str(args["query"]), k)
			if err != nil {
				return nil, err
			}
			if v, ok := utils.AsFloat(args["max_price"]); ok {
				kept := products[:0]
				for _, p := range products {
					if p.Price != nil && *p.Price > v {
						continue
					}
					kept = append(kept, p)
				}
				products = kept
			}
			return products, nil
		},
	}
}
