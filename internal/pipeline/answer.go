package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/voiceshop/assistant/models"
)

// RuleAnswerer composes the grounded answer without a model call. Every
// claim it makes is read off a product in the ranked list; failures of the
// live source are stated, never papered over.
type RuleAnswerer struct{}

func NewRuleAnswerer() *RuleAnswerer { return &RuleAnswerer{} }

func (a *RuleAnswerer) Compose(ctx context.Context, intent Intent, ranked models.RankedProductList, results []models.ToolResult) (string, error) {
	if ragFailed(results) {
		return "Sorry, the product catalog could not be searched right now, so I have no grounded results for you. Please try again in a moment.", nil
	}
	if len(ranked) == 0 {
		return "Sorry, I could not find any grounded results for that. Try rephrasing, or relax the price limit.", nil
	}

	var b strings.Builder
	subject := intent.Category
	if subject == "" {
		subject = "your request"
	}
	fmt.Fprintf(&b, "I found %d option%s for %s.", len(ranked), plural(len(ranked)), subject)

	top, _ := ranked.TopPick()
	fmt.Fprintf(&b, " Top pick: %s", top.Title)
	if top.Brand != "" {
		fmt.Fprintf(&b, " by %s", top.Brand)
	}
	if top.Price != nil {
		fmt.Fprintf(&b, " at $%.2f", *top.Price)
		if top.Source == models.ToolWebSearch || backedByLive(top, results) {
			b.WriteString(" (live price)")
		}
	}
	if top.Rating != nil {
		fmt.Fprintf(&b, ", rated %.1f", *top.Rating)
	}
	b.WriteString(".")

	if intent.Constraints.MaxPrice != nil {
		fmt.Fprintf(&b, " All listed options respect your $%.0f limit where a price is known.", *intent.Constraints.MaxPrice)
	}

	if webPlannedAndFailed(results) {
		b.WriteString(" Live pricing was unavailable, so prices shown come from the catalog and may not be current.")
	}
	return b.String(), nil
}

// ragFailed reports whether the private search itself failed. That is the
// single hard failure path of the pipeline.
func ragFailed(results []models.ToolResult) bool {
	for _, res := range results {
		if res.Tool == models.ToolRagSearch {
			return res.Status != models.StatusSuccess
		}
	}
	return true
}

// webPlannedAndFailed reports whether a planned live lookup ended in
// timeout or error.
func webPlannedAndFailed(results []models.ToolResult) bool {
	for _, res := range results {
		if res.Tool == models.ToolWebSearch {
			return res.Status != models.StatusSuccess
		}
	}
	return false
}

// backedByLive reports whether a successful live result contributed this
// product's price.
func backedByLive(p models.Product, results []models.ToolResult) bool {
	for _, res := range results {
		if res.Tool != models.ToolWebSearch || res.Status != models.StatusSuccess {
			continue
		}
		for _, wp := range res.Products {
			if wp.Price != nil && models.NormalizeTitle(wp.Title) == models.NormalizeTitle(p.Title) {
				return true
			}
		}
	}
	return false
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
