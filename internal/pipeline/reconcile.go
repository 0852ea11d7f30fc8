package pipeline

import (
	"sort"

	"github.com/voiceshop/assistant/models"
)

// Rank assigned to records that never appeared in the private index. They
// sort after every catalog hit but stay in appearance order among themselves.
const unrankedRank = 1 << 30

type entry struct {
	product models.Product
	ragID   string // private catalog id backing this entry, if any
	webURL  string // live record url backing this entry, if any
}

// Reconcile merges the tool results into one deduplicated, ranked, capped
// product list plus the citations backing it. It is a pure function of its
// inputs: identical results produce an identical list, run to run.
func Reconcile(intent Intent, results []models.ToolResult, topN int) (models.RankedProductList, models.Citations) {
	if topN <= 0 {
		topN = 5
	}

	var entries []*entry
	byTitle := make(map[string][]*entry)

	add := func(p models.Product, fromWeb bool, sourceOK bool) {
		norm := models.NormalizeTitle(p.Title)
		for _, e := range byTitle[norm] {
			if sameItem(e.product, p) {
				merge(e, p, fromWeb, sourceOK)
				return
			}
		}
		e := &entry{product: p}
		if fromWeb {
			e.webURL = p.URL
			e.product.Rank = unrankedRank
		} else {
			e.ragID = p.ID
		}
		entries = append(entries, e)
		byTitle[norm] = append(byTitle[norm], e)
	}

	// Private results first: stability wins on descriptive fields, so the
	// catalog record is always the base of a merged entry.
	for _, res := range results {
		if res.Tool != models.ToolWebSearch {
			for _, p := range res.Products {
				add(p, false, res.Status == models.StatusSuccess)
			}
		}
	}
	for _, res := range results {
		if res.Tool == models.ToolWebSearch {
			for _, p := range res.Products {
				add(p, true, res.Status == models.StatusSuccess)
			}
		}
	}

	kept := entries[:0]
	for _, e := range entries {
		if intent.Constraints.MaxPrice != nil && e.product.Price != nil && *e.product.Price > *intent.Constraints.MaxPrice {
			continue
		}
		kept = append(kept, e)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		a, b := kept[i].product, kept[j].product
		if a.Rank != b.Rank {
			return a.Rank < b.Rank
		}
		if intent.Constraints.MaxPrice != nil && !floatEq(a.Price, b.Price) {
			return lessPrice(a.Price, b.Price)
		}
		if !floatEq(a.Rating, b.Rating) {
			return moreRating(a.Rating, b.Rating)
		}
		return false // stable: keep original order
	})

	if len(kept) > topN {
		kept = kept[:topN]
	}

	ranked := models.RankedProductList{}
	cites := models.Citations{Rag: []string{}, Web: []string{}}
	for _, e := range kept {
		ranked = append(ranked, e.product)
		if e.ragID != "" {
			cites.Rag = append(cites.Rag, e.ragID)
		}
		if e.webURL != "" {
			cites.Web = append(cites.Web, e.webURL)
		}
	}
	return ranked, cites
}

// sameItem is the cross-source identity rule: normalized titles must match
// exactly, and either the ids agree or one record is missing the price the
// other supplies. Anything weaker treats the records as distinct items.
func sameItem(a, b models.Product) bool {
	if models.NormalizeTitle(a.Title) != models.NormalizeTitle(b.Title) {
		return false
	}
	if a.ID == b.ID {
		return true
	}
	return (a.Price == nil) != (b.Price == nil)
}

// merge folds an incoming record into an existing entry. The base keeps the
// more stable descriptive fields; a live price from a successful web result
// overwrites, because freshness wins on price.
func merge(e *entry, p models.Product, fromWeb, sourceOK bool) {
	if fromWeb {
		e.webURL = p.URL
		if sourceOK && p.Price != nil {
			e.product.Price = p.Price
		}
		if e.product.URL == "" {
			e.product.URL = p.URL
		}
		return
	}
	if e.ragID == "" {
		e.ragID = p.ID
	}
	// Catalog record completes whatever the base lacks.
	if e.product.Price == nil && sourceOK {
		e.product.Price = p.Price
	}
	if e.product.Rating == nil {
		e.product.Rating = p.Rating
	}
	if e.product.Brand == "" {
		e.product.Brand = p.Brand
	}
	if e.product.ImageURL == "" {
		e.product.ImageURL = p.ImageURL
	}
}

func floatEq(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// lessPrice sorts ascending with unknown prices last.
func lessPrice(a, b *float64) bool {
	if a == nil {
		return false
	}
	if b == nil {
		return true
	}
	return *a < *b
}

// moreRating sorts descending with unknown ratings last.
func moreRating(a, b *float64) bool {
	if a == nil {
		return false
	}
	if b == nil {
		return true
	}
	return *a > *b
}
