package pipeline

import (
	"context"
	"encoding/json"
	"log"
	"strings"

	"github.com/voiceshop/assistant/models"
	"github.com/voiceshop/assistant/provider"
)

// Model-backed stage implementations. Each one satisfies the same interface
// as its rule-based sibling and degrades to it when the model call or its
// JSON output is unusable, so a flaky provider never fails a turn.

const routerSystemPrompt = `You are an intent classification agent for a product shopping assistant.
Extract JSON with fields:
- "category": the product the user is looking for (string, may be empty)
- "max_price": numeric price ceiling if the user stated one, else null
- "brand": preferred brand if stated, else empty string
- "needs_live_data": true only if the user asks for current/latest price or availability
Output JSON only.`

const answererSystemPrompt = `You are the answering agent of a product shopping assistant.
You receive the user's intent and a ranked list of grounded products.
Write a short helpful answer that mentions only the listed products.
If "live_unavailable" is true, state that live pricing could not be obtained.
Output JSON only: {"answer": "..."}`

// LLMRouter classifies with a model call and falls back to the rule router.
type LLMRouter struct {
	provider provider.Provider
	fallback *RuleRouter
	logger   *log.Logger
}

func NewLLMRouter(p provider.Provider, fallback *RuleRouter, logger *log.Logger) *LLMRouter {
	return &LLMRouter{provider: p, fallback: fallback, logger: logger}
}

func (r *LLMRouter) Classify(ctx context.Context, q Query) (Intent, error) {
	raw, err := r.provider.CompleteJSON(ctx, routerSystemPrompt, q.Text)
	if err != nil {
		r.logger.Printf("llm router unavailable, using rules: %v", err)
		return r.fallback.Classify(ctx, q)
	}

	var out struct {
		Category      string   `json:"category"`
		MaxPrice      *float64 `json:"max_price"`
		Brand         string   `json:"brand"`
		NeedsLiveData bool     `json:"needs_live_data"`
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		r.logger.Printf("llm router returned bad JSON, using rules: %v", err)
		return r.fallback.Classify(ctx, q)
	}

	intent := Intent{
		Category:      strings.ToLower(strings.TrimSpace(out.Category)),
		NeedsLiveData: out.NeedsLiveData,
		RawQuery:      q.Text,
	}
	intent.Constraints.MaxPrice = out.MaxPrice
	intent.Constraints.Brand = strings.ToLower(strings.TrimSpace(out.Brand))

	// The force override outranks the model, same as it outranks the rules.
	switch r.fallback.forceLive {
	case "on":
		intent.NeedsLiveData = true
	case "off":
		intent.NeedsLiveData = false
	}
	return intent, nil
}

// LLMAnswerer writes the final text with a model call, constrained to the
// reconciled evidence. Falls back to the rule answerer.
type LLMAnswerer struct {
	provider provider.Provider
	fallback *RuleAnswerer
	logger   *log.Logger
}

func NewLLMAnswerer(p provider.Provider, logger *log.Logger) *LLMAnswerer {
	return &LLMAnswerer{provider: p, fallback: NewRuleAnswerer(), logger: logger}
}

func (a *LLMAnswerer) Compose(ctx context.Context, intent Intent, ranked models.RankedProductList, results []models.ToolResult) (string, error) {
	// The degraded paths stay deterministic: no model call without evidence.
	if ragFailed(results) || len(ranked) == 0 {
		return a.fallback.Compose(ctx, intent, ranked, results)
	}

	payload, err := json.Marshal(map[string]any{
		"intent":           intent,
		"products":         ranked,
		"live_unavailable": webPlannedAndFailed(results),
	})
	if err != nil {
		return a.fallback.Compose(ctx, intent, ranked, results)
	}

	raw, err := a.provider.CompleteJSON(ctx, answererSystemPrompt, string(payload))
	if err != nil {
		a.logger.Printf("llm answerer unavailable, using rules: %v", err)
		return a.fallback.Compose(ctx, intent, ranked, results)
	}
	var out struct {
		Answer string `json:"answer"`
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil || strings.TrimSpace(out.Answer) == "" {
		a.logger.Printf("llm answerer returned bad JSON, using rules")
		return a.fallback.Compose(ctx, intent, ranked, results)
	}
	if !grounded(out.Answer, ranked) {
		a.logger.Printf("llm answer referenced no listed product, using rules")
		return a.fallback.Compose(ctx, intent, ranked, results)
	}
	return out.Answer, nil
}

// grounded checks the model actually talked about the evidence it was given.
func grounded(answer string, ranked models.RankedProductList) bool {
	lower := strings.ToLower(answer)
	for _, p := range ranked {
		for _, w := range strings.Fields(strings.ToLower(p.Title)) {
			if len(w) >= 4 && strings.Contains(lower, w) {
				return true
			}
		}
	}
	return false
}
