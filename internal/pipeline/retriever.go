package pipeline

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/voiceshop/assistant/config"
	"github.com/voiceshop/assistant/internal/registry"
	"github.com/voiceshop/assistant/internal/telemetry"
	"github.com/voiceshop/assistant/internal/toolclient"
	"github.com/voiceshop/assistant/models"
)

// Retriever executes a plan through the tool client. Invocations are
// independent, so they fan out concurrently; the stage waits for all of them
// to finish or hit their own timeout, never the sum. All failures are
// absorbed here as failed ToolResults; nothing past the retriever ever sees
// a tool error directly.
type Retriever struct {
	client    toolclient.Client
	logger    *log.Logger
	telemetry *telemetry.Telemetry

	catalogTimeout time.Duration
	webTimeout     time.Duration
}

func NewRetriever(client toolclient.Client, cfg config.PipelineConfig, logger *log.Logger, tel *telemetry.Telemetry) *Retriever {
	return &Retriever{
		client:         client,
		logger:         logger,
		telemetry:      tel,
		catalogTimeout: cfg.CatalogTimeout,
		webTimeout:     cfg.WebTimeout,
	}
}

// Retrieve returns exactly one ToolResult per invocation, in plan order,
// regardless of success or failure.
func (r *Retriever) Retrieve(ctx context.Context, plan Plan) []models.ToolResult {
	results := make([]models.ToolResult, len(plan.Invocations))

	var wg sync.WaitGroup
	for i, inv := range plan.Invocations {
		wg.Add(1)
		go func(i int, inv ToolInvocation) {
			defer wg.Done()
			results[i] = r.invoke(ctx, inv)
		}(i, inv)
	}
	wg.Wait()

	for _, res := range results {
		r.telemetry.RecordToolInvocation(res.Tool, string(res.Status))
	}
	return results
}

func (r *Retriever) invoke(ctx context.Context, inv ToolInvocation) models.ToolResult {
	res, err := r.client.Invoke(ctx, inv.Tool, inv.Arguments, r.timeoutFor(inv.Tool))
	if err != nil {
		// A contract violation here means the planner emitted something the
		// registry rejects. The turn proceeds on the other results.
		if errors.Is(err, registry.ErrUnknownTool) || errors.Is(err, registry.ErrInvalidArguments) {
			r.logger.Printf("planner defect: %s rejected: %v", inv.Tool, err)
		} else {
			r.logger.Printf("tool %s failed: %v", inv.Tool, err)
		}
	}
	if res.Status != models.StatusSuccess {
		r.logger.Printf("tool %s ended %s after %s", inv.Tool, res.Status, res.Latency)
	}
	return res
}

func (r *Retriever) timeoutFor(tool string) time.Duration {
	if tool == models.ToolWebSearch {
		return r.webTimeout
	}
	return r.catalogTimeout
}
