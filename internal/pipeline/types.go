// Package pipeline implements the multi-agent retrieval pipeline: a query is
// routed to an intent, planned into tool invocations, retrieved through the
// tool client, and reconciled into a ranked product list plus a grounded
// answer.
package pipeline

import (
	"context"
	"time"

	"github.com/voiceshop/assistant/models"
)

// Query is the transcribed user utterance. Immutable once created.
type Query struct {
	ID         string    `json:"id"`
	Text       string    `json:"text"`
	ReceivedAt time.Time `json:"received_at"`
}

// Constraints are the structured conditions extracted from a query.
type Constraints struct {
	MaxPrice *float64 `json:"max_price,omitempty"`
	Brand    string   `json:"brand,omitempty"`
}

// Intent is the router's read of a query. Created once per turn, read-only
// after that. An empty Category means classification found nothing and the
// pipeline degrades to a broader unfiltered private search.
type Intent struct {
	Category      string      `json:"category,omitempty"`
	Constraints   Constraints `json:"constraints"`
	NeedsLiveData bool        `json:"needs_live_data"`
	RawQuery      string      `json:"raw_query"`
}

// ToolInvocation is one planned tool call.
type ToolInvocation struct {
	Tool      string         `json:"tool"`
	Arguments map[string]any `json:"arguments"`
}

// Plan is the ordered set of invocations chosen for one intent. A valid plan
// always has a rag.search invocation, at most one invocation per tool, and
// web.search only when the intent needs live data.
type Plan struct {
	Invocations []ToolInvocation `json:"invocations"`
}

// Answer is the terminal artifact of one pipeline run.
type Answer struct {
	Text      string                   `json:"text"`
	Products  models.RankedProductList `json:"products"`
	Citations models.Citations         `json:"citations"`
	Degraded  bool                     `json:"degraded"`
}

// Stage values a run walks through. No state is revisited within a turn.
type Stage string

const (
	StageStart      Stage = "START"
	StageRouted     Stage = "ROUTED"
	StagePlanned    Stage = "PLANNED"
	StageRetrieved  Stage = "RETRIEVED"
	StageReconciled Stage = "RECONCILED"
)

// RunState carries everything a single turn produced. Never shared across
// concurrent turns, so it needs no locking.
type RunState struct {
	ID          string             `json:"id"`
	Stage       Stage              `json:"stage"`
	Query       Query              `json:"query"`
	Intent      Intent             `json:"intent"`
	Plan        Plan               `json:"plan"`
	Results     []models.ToolResult `json:"results"`
	Answer      Answer             `json:"answer"`
	StartedAt   time.Time          `json:"started_at"`
	CompletedAt time.Time          `json:"completed_at"`
}

// Router classifies a query into an Intent.
type Router interface {
	Classify(ctx context.Context, q Query) (Intent, error)
}

// Planner turns an Intent into a Plan.
type Planner interface {
	Plan(ctx context.Context, intent Intent) (Plan, error)
}

// Answerer composes the final grounded text for a reconciled evidence set.
// The ranked list passed in is the only thing it may reference.
type Answerer interface {
	Compose(ctx context.Context, intent Intent, ranked models.RankedProductList, results []models.ToolResult) (string, error)
}
