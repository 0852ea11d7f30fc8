package models

import (
	"strings"
	"time"
	"unicode"
)

// Tool names form a closed set; the planner never targets anything else.
const (
	ToolRagSearch = "rag.search"
	ToolWebSearch = "web.search"
)

// ToolStatus reports how a single tool invocation ended.
type ToolStatus string

const (
	StatusSuccess ToolStatus = "success"
	StatusTimeout ToolStatus = "timeout"
	StatusError   ToolStatus = "error"
)

// Product is one catalog or web record. ID is stable within a source but not
// across sources; Price and Rating are nil when the source did not supply them.
type Product struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Price    *float64 `json:"price"`
	Rating   *float64 `json:"rating"`
	Brand    string   `json:"brand,omitempty"`
	Source   string   `json:"source"`
	URL      string   `json:"url,omitempty"`
	ImageURL string   `json:"image_url,omitempty"`

	// Rank is the similarity rank from the private index (0 = most relevant).
	// Web-only records carry no rank and sort after ranked ones.
	Rank int `json:"-"`
}

// ToolResult is the outcome of one ToolInvocation: exactly one per invocation,
// whatever happened. Failed invocations carry an empty product list.
type ToolResult struct {
	Tool     string        `json:"tool"`
	Status   ToolStatus    `json:"status"`
	Products []Product     `json:"products"`
	Latency  time.Duration `json:"latency"`
	Err      string        `json:"error,omitempty"`
}

// RankedProductList is the deduplicated, ranked, capped evidence list. The
// first element is the top pick.
type RankedProductList []Product

// TopPick returns the primary recommendation, if any.
func (l RankedProductList) TopPick() (Product, bool) {
	if len(l) == 0 {
		return Product{}, false
	}
	return l[0], true
}

// Citations groups the evidence backing an answer: private catalog ids and
// live web urls.
type Citations struct {
	Rag []string `json:"rag"`
	Web []string `json:"web"`
}

// NormalizeTitle collapses a product title for cross-source identity checks:
// lowercase, punctuation stripped, whitespace folded.
func NormalizeTitle(title string) string {
	var b strings.Builder
	lastSpace := true
	for _, r := range strings.ToLower(title) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		default:
			if !lastSpace {
				b.WriteRune(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}
