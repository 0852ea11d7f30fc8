package pipeline

import (
	"context"
	"strings"

	"github.com/voiceshop/assistant/config"
	"github.com/voiceshop/assistant/models"
)

// RulePlanner maps an Intent onto the closed tool set. Private search is the
// grounding baseline and is always planned; live search is added only when
// the intent asks for live data, with a smaller result budget because it is
// the latency-expensive call.
type RulePlanner struct {
	catalogLimit int
	webLimit     int
}

func NewRulePlanner(cfg config.PipelineConfig) *RulePlanner {
	return &RulePlanner{catalogLimit: cfg.CatalogLimit, webLimit: cfg.WebLimit}
}

func (p *RulePlanner) Plan(ctx context.Context, intent Intent) (Plan, error) {
	plan := Plan{
		Invocations: []ToolInvocation{
			{Tool: models.ToolRagSearch, Arguments: searchArgs(intent, p.catalogLimit)},
		},
	}
	if intent.NeedsLiveData {
		plan.Invocations = append(plan.Invocations, ToolInvocation{
			Tool:      models.ToolWebSearch,
			Arguments: searchArgs(intent, p.webLimit),
		})
	}
	return plan, nil
}

// searchArgs encodes category and constraints into the shared tool schema.
// Category may be null; the tools then run an unfiltered query.
func searchArgs(intent Intent, limit int) map[string]any {
	terms := intent.Category
	if intent.Constraints.Brand != "" {
		terms = strings.TrimSpace(terms + " " + intent.Constraints.Brand)
	}
	if terms == "" {
		terms = intent.RawQuery
	}

	args := map[string]any{
		"query":     terms,
		"category":  nil,
		"max_price": nil,
		"limit":     limit,
	}
	if intent.Category != "" {
		args["category"] = intent.Category
	}
	if intent.Constraints.MaxPrice != nil {
		args["max_price"] = *intent.Constraints.MaxPrice
	}
	return args
}
