package pipeline

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/voiceshop/assistant/config"
)

// RuleRouter is the deterministic intent classifier. It surfaces the product
// category, numeric constraints, and the live-data signal from a fixed
// trigger-phrase policy, without any model call.
type RuleRouter struct {
	triggers  []*regexp.Regexp
	forceLive string // "", "on" or "off"
}

func NewRuleRouter(cfg config.PipelineConfig) *RuleRouter {
	triggers := make([]*regexp.Regexp, 0, len(cfg.LiveTriggerPhrases))
	for _, p := range cfg.LiveTriggerPhrases {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		// Whole-word match only: a bare "now" trigger must not fire
		// inside "snow".
		triggers = append(triggers, regexp.MustCompile(`\b`+regexp.QuoteMeta(p)+`\b`))
	}
	return &RuleRouter{triggers: triggers, forceLive: cfg.ForceLiveData}
}

var (
	maxPriceRe = regexp.MustCompile(`(?:under|below|less than|at most|up to|within|cheaper than)\s+\$?\s*(\d+(?:\.\d{1,2})?)`)
	orLessRe   = regexp.MustCompile(`\$\s*(\d+(?:\.\d{1,2})?)\s+or\s+less`)
	brandRe    = regexp.MustCompile(`\bby\s+([a-z0-9][a-z0-9&'-]*)`)
)

// fillerWords are dropped when distilling the category phrase.
var fillerWords = map[string]bool{
	"a": true, "an": true, "the": true, "some": true, "any": true,
	"i": true, "me": true, "my": true, "we": true, "you": true,
	"find": true, "recommend": true, "show": true, "get": true, "buy": true,
	"need": true, "want": true, "looking": true, "searching": true, "search": true,
	"for": true, "of": true, "to": true, "in": true, "with": true, "and": true,
	"what": true, "whats": true, "is": true, "are": true, "s": true,
	"price": true, "prices": true, "cost": true, "availability": true,
	"please": true, "good": true, "best": true, "cheap": true, "by": true,
}

func (r *RuleRouter) Classify(ctx context.Context, q Query) (Intent, error) {
	text := strings.ToLower(q.Text)

	intent := Intent{RawQuery: q.Text}
	intent.NeedsLiveData = r.needsLiveData(text)

	// Numeric constraints: "under $50", "$50 or less".
	remainder := text
	if m := maxPriceRe.FindStringSubmatch(text); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			intent.Constraints.MaxPrice = &v
		}
		remainder = maxPriceRe.ReplaceAllString(remainder, " ")
	} else if m := orLessRe.FindStringSubmatch(text); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			intent.Constraints.MaxPrice = &v
		}
		remainder = orLessRe.ReplaceAllString(remainder, " ")
	}

	if m := brandRe.FindStringSubmatch(remainder); m != nil && !fillerWords[m[1]] {
		intent.Constraints.Brand = m[1]
		remainder = strings.Replace(remainder, m[0], " ", 1)
	}

	// Trigger phrases are routing signal, not category words.
	for _, re := range r.triggers {
		remainder = re.ReplaceAllString(remainder, " ")
	}

	intent.Category = categoryPhrase(remainder)
	return intent, nil
}

func (r *RuleRouter) needsLiveData(text string) bool {
	switch r.forceLive {
	case "on":
		return true
	case "off":
		return false
	}
	for _, re := range r.triggers {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

var tokenRe = regexp.MustCompile(`[a-z0-9][a-z0-9-]*`)

// categoryPhrase keeps the content words, in order. Empty output is fine:
// the intent then carries no category and the planner falls back to an
// unfiltered private search.
func categoryPhrase(text string) string {
	text = strings.ReplaceAll(text, "'", "")
	var words []string
	for _, w := range tokenRe.FindAllString(text, -1) {
		if fillerWords[w] {
			continue
		}
		words = append(words, w)
	}
	return strings.Join(words, " ")
}
