package serp

import (
	"regexp"
	"strconv"

	"github.com/voiceshop/assistant/models"
)

// Result is one raw SERP entry before normalization.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

var priceRe = regexp.MustCompile(`\$(\d+(?:,\d{3})*(?:\.\d{1,2})?)`)

// ParsePrice pulls the first dollar amount out of a snippet. Live results
// often carry no price at all; the pointer stays nil then.
func ParsePrice(snippet string) *float64 {
	m := priceRe.FindStringSubmatch(snippet)
	if m == nil {
		return nil
	}
	cleaned := ""
	for _, r := range m[1] {
		if r != ',' {
			cleaned += string(r)
		}
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return nil
	}
	return &v
}

// ToProduct normalizes a SERP entry into the shared product shape. The URL
// doubles as the id: live sources have no catalog id scheme.
func (r Result) ToProduct() models.Product {
	return models.Product{
		ID:     r.URL,
		Title:  r.Title,
		Price:  ParsePrice(r.Snippet),
		Source: models.ToolWebSearch,
		URL:    r.URL,
	}
}
