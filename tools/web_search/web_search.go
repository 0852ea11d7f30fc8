// Package web_search is the volatile live source behind web.search.
package web_search

import (
	"context"
	"errors"

	"github.com/voiceshop/assistant/models"
	"github.com/voiceshop/assistant/tools/web_search/brave"
	"github.com/voiceshop/assistant/tools/web_search/serper"
)

// Searcher discovers product-like records on the live web.
type Searcher interface {
	Discover(ctx context.Context, q string, k int) ([]models.Product, error)
}

type Provider string

const (
	SerperProvider Provider = "serper"
	BraveProvider  Provider = "brave"
)

var ErrUnsupportedProvider = errors.New("unsupported web search provider")

func NewSearcher(provider Provider, apiKey string) (Searcher, error) {
	switch provider {
	case SerperProvider:
		return serper.Search{ApiKey: apiKey}, nil
	case BraveProvider:
		return brave.Search{ApiKey: apiKey}, nil
	default:
		return nil, ErrUnsupportedProvider
	}
}
