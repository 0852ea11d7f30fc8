package pipeline

import (
	"context"
	"testing"

	"github.com/voiceshop/assistant/models"
)

func TestPlanWithoutLiveDataTargetsCatalogOnly(t *testing.T) {
	planner := NewRulePlanner(testPipelineConfig())

	price := 20.0
	intent := Intent{Category: "toy fire truck", RawQuery: "find a toy fire truck under $20"}
	intent.Constraints.MaxPrice = &price

	plan, err := planner.Plan(context.Background(), intent)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(plan.Invocations) != 1 {
		t.Fatalf("invocations = %d, want 1", len(plan.Invocations))
	}
	inv := plan.Invocations[0]
	if inv.Tool != models.ToolRagSearch {
		t.Fatalf("tool = %s, want %s", inv.Tool, models.ToolRagSearch)
	}
	if inv.Arguments["category"] != "toy fire truck" {
		t.Fatalf("category arg = %v", inv.Arguments["category"])
	}
	if inv.Arguments["max_price"] != 20.0 {
		t.Fatalf("max_price arg = %v", inv.Arguments["max_price"])
	}
	if inv.Arguments["limit"] != 5 {
		t.Fatalf("limit arg = %v, want catalog limit 5", inv.Arguments["limit"])
	}
}

func TestPlanWithLiveDataAddsWebSearch(t *testing.T) {
	planner := NewRulePlanner(testPipelineConfig())

	plan, err := planner.Plan(context.Background(), Intent{
		Category:      "ps5 controller",
		NeedsLiveData: true,
		RawQuery:      "current price of a ps5 controller",
	})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(plan.Invocations) != 2 {
		t.Fatalf("invocations = %d, want 2", len(plan.Invocations))
	}
	if plan.Invocations[0].Tool != models.ToolRagSearch {
		t.Fatalf("first invocation = %s, want rag.search", plan.Invocations[0].Tool)
	}
	if plan.Invocations[1].Tool != models.ToolWebSearch {
		t.Fatalf("second invocation = %s, want web.search", plan.Invocations[1].Tool)
	}
	if plan.Invocations[1].Arguments["limit"] != 3 {
		t.Fatalf("web limit = %v, want 3 (smaller than catalog)", plan.Invocations[1].Arguments["limit"])
	}
}

func TestPlanEmptyIntentStillSearchesCatalog(t *testing.T) {
	planner := NewRulePlanner(testPipelineConfig())

	plan, err := planner.Plan(context.Background(), Intent{RawQuery: "hmm"})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(plan.Invocations) != 1 || plan.Invocations[0].Tool != models.ToolRagSearch {
		t.Fatalf("empty intent must still yield one rag.search invocation, got %+v", plan.Invocations)
	}
	if plan.Invocations[0].Arguments["query"] != "hmm" {
		t.Fatalf("query arg = %v, want raw query fallback", plan.Invocations[0].Arguments["query"])
	}
	if plan.Invocations[0].Arguments["category"] != nil {
		t.Fatalf("category arg = %v, want nil", plan.Invocations[0].Arguments["category"])
	}
}
