package pipeline

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/voiceshop/assistant/config"
	"github.com/voiceshop/assistant/internal/telemetry"
	"github.com/voiceshop/assistant/models"
)

// TurnStore persists completed turns. Optional: a nil store disables the
// turn log without touching the pipeline.
type TurnStore interface {
	SaveTurn(ctx context.Context, state *RunState) error
}

// Orchestrator sequences Router → Planner → Retriever → Reconciler/Answerer
// over a fresh RunState per turn. A failed turn never corrupts or blocks the
// next one; the orchestrator itself keeps no per-turn state.
type Orchestrator struct {
	logger    *log.Logger
	telemetry *telemetry.Telemetry

	router    Router
	planner   Planner
	retriever *Retriever
	answerer  Answerer

	topN  int
	store TurnStore
}

func NewOrchestrator(cfg config.PipelineConfig, logger *log.Logger, tel *telemetry.Telemetry, router Router, planner Planner, retriever *Retriever, answerer Answerer) *Orchestrator {
	return &Orchestrator{
		logger:    logger,
		telemetry: tel,
		router:    router,
		planner:   planner,
		retriever: retriever,
		answerer:  answerer,
		topN:      cfg.TopN,
	}
}

// AttachTurnStore wires the optional turn log.
func (o *Orchestrator) AttachTurnStore(store TurnStore) { o.store = store }

// ProcessQuery runs one full turn for a transcribed query and returns the
// terminal RunState. The only errors it returns are caller mistakes (empty
// query); everything downstream degrades instead of failing.
func (o *Orchestrator) ProcessQuery(ctx context.Context, text string) (*RunState, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("empty query")
	}

	now := time.Now()
	state := &RunState{
		ID:        uuid.NewString(),
		Stage:     StageStart,
		Query:     Query{ID: uuid.NewString(), Text: text, ReceivedAt: now},
		StartedAt: now,
	}

	stageStart := time.Now()
	intent, err := o.router.Classify(ctx, state.Query)
	if err != nil {
		// No category at all still yields a broad private search.
		o.logger.Printf("router failed, degrading to unfiltered intent: %v", err)
		intent = Intent{RawQuery: text}
	}
	state.Intent = intent
	state.Stage = StageRouted
	o.telemetry.RecordStage(telemetry.StageRoute, time.Since(stageStart))

	stageStart = time.Now()
	plan, err := o.planner.Plan(ctx, intent)
	if err != nil || len(plan.Invocations) == 0 {
		o.logger.Printf("planner failed, falling back to catalog-only plan: %v", err)
		plan = Plan{Invocations: []ToolInvocation{{
			Tool:      models.ToolRagSearch,
			Arguments: searchArgs(intent, o.topN),
		}}}
	}
	state.Plan = plan
	state.Stage = StagePlanned
	o.telemetry.RecordStage(telemetry.StagePlan, time.Since(stageStart))

	stageStart = time.Now()
	state.Results = o.retriever.Retrieve(ctx, plan)
	state.Stage = StageRetrieved
	o.telemetry.RecordStage(telemetry.StageRetrieve, time.Since(stageStart))

	stageStart = time.Now()
	state.Answer = o.reconcileAndAnswer(ctx, state)
	state.Stage = StageReconciled
	state.CompletedAt = time.Now()
	o.telemetry.RecordStage(telemetry.StageReconcile, time.Since(stageStart))

	outcome := telemetry.OutcomeSuccess
	if state.Answer.Degraded {
		outcome = telemetry.OutcomeDegraded
	}
	o.telemetry.RecordTurn(outcome)
	o.logger.Printf("turn %s %s in %s (%d products)", state.ID, outcome, state.CompletedAt.Sub(state.StartedAt), len(state.Answer.Products))

	if o.store != nil {
		if err := o.store.SaveTurn(ctx, state); err != nil {
			o.logger.Printf("turn log save failed: %v", err)
		}
	}
	return state, nil
}

// reconcileAndAnswer merges evidence and synthesizes the answer, collapsing
// to the degraded terminal when no usable evidence came back or the private
// search itself failed.
func (o *Orchestrator) reconcileAndAnswer(ctx context.Context, state *RunState) Answer {
	degraded := noEvidence(state.Results) || ragFailed(state.Results)

	ranked := models.RankedProductList{}
	cites := models.Citations{Rag: []string{}, Web: []string{}}
	if !degraded {
		ranked, cites = Reconcile(state.Intent, state.Results, o.topN)
	}

	text, err := o.answerer.Compose(ctx, state.Intent, ranked, state.Results)
	if err != nil {
		o.logger.Printf("answerer failed, using rule text: %v", err)
		text, _ = NewRuleAnswerer().Compose(ctx, state.Intent, ranked, state.Results)
	}
	return Answer{Text: text, Products: ranked, Citations: cites, Degraded: degraded}
}

// noEvidence reports whether every ToolResult came back empty or errored.
func noEvidence(results []models.ToolResult) bool {
	for _, res := range results {
		if res.Status == models.StatusSuccess && len(res.Products) > 0 {
			return false
		}
	}
	return true
}
