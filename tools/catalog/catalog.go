// Package catalog is the private product index behind rag.search. The index
// is built once at startup from a product snapshot and is read-only after
// that; how the snapshot is produced is somebody else's pipeline.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/blevesearch/bleve"

	"github.com/voiceshop/assistant/models"
)

// Record is one product row in the snapshot file.
type Record struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Brand    string   `json:"brand"`
	Category string   `json:"category"`
	Price    *float64 `json:"price"`
	Rating   *float64 `json:"rating"`
	URL      string   `json:"url"`
	ImageURL string   `json:"image_url"`
}

// indexDoc is the text-searchable slice of a Record.
type indexDoc struct {
	Title    string `json:"title"`
	Brand    string `json:"brand"`
	Category string `json:"category"`
}

// Index is an in-memory bleve index over the product snapshot.
type Index struct {
	idx   bleve.Index
	meta  map[string]Record
	order []string // snapshot order, used for unfiltered scans
}

// Open loads the snapshot and builds the index.
func Open(path string) (*Index, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	var records []Record
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("catalog: parse %s: %w", path, err)
	}
	return Build(records)
}

// Build indexes the given records in memory.
func Build(records []Record) (*Index, error) {
	idx, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("catalog: bleve index: %w", err)
	}
	ix := &Index{idx: idx, meta: make(map[string]Record, len(records))}
	for _, rec := range records {
		if rec.ID == "" || rec.Title == "" {
			return nil, fmt.Errorf("catalog: record missing id or title: %+v", rec)
		}
		if err := idx.Index(rec.ID, indexDoc{Title: rec.Title, Brand: rec.Brand, Category: rec.Category}); err != nil {
			return nil, fmt.Errorf("catalog: index %s: %w", rec.ID, err)
		}
		ix.meta[rec.ID] = rec
		ix.order = append(ix.order, rec.ID)
	}
	return ix, nil
}

// Params are the rag.search arguments after schema validation.
type Params struct {
	Query    string
	Category string
	MaxPrice *float64
	Limit    int
}

// Search runs a relevance query and post-filters on price, like the index it
// fronts: fetch three times the requested size, then filter and cap. Results
// come back in similarity order with Rank set.
func (ix *Index) Search(ctx context.Context, p Params) ([]models.Product, error) {
	if p.Limit <= 0 {
		p.Limit = 5
	}

	ids, err := ix.candidates(ctx, p)
	if err != nil {
		return nil, err
	}

	out := make([]models.Product, 0, p.Limit)
	for _, id := range ids {
		rec, ok := ix.meta[id]
		if !ok {
			continue
		}
		if p.MaxPrice != nil && rec.Price != nil && *rec.Price > *p.MaxPrice {
			continue
		}
		out = append(out, models.Product{
			ID:       rec.ID,
			Title:    rec.Title,
			Price:    rec.Price,
			Rating:   rec.Rating,
			Brand:    rec.Brand,
			Source:   models.ToolRagSearch,
			URL:      rec.URL,
			ImageURL: rec.ImageURL,
			Rank:     len(out),
		})
		if len(out) >= p.Limit {
			break
		}
	}
	return out, nil
}

// candidates returns ids in relevance order. An empty query degrades to a
// snapshot-order scan so a turn without an extractable category still works.
func (ix *Index) candidates(ctx context.Context, p Params) ([]string, error) {
	terms := strings.TrimSpace(strings.Join([]string{p.Query, p.Category}, " "))
	if terms == "" {
		return ix.order, nil
	}
	query := bleve.NewMatchQuery(terms)
	req := bleve.NewSearchRequestOptions(query, p.Limit*3, 0, false)
	res, err := ix.idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("catalog: search: %w", err)
	}
	ids := make([]string, 0, len(res.Hits))
	for _, hit := range res.Hits {
		ids = append(ids, hit.ID)
	}
	return ids, nil
}

// Size reports how many products are indexed.
func (ix *Index) Size() int { return len(ix.order) }
