package registry

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"

	"github.com/voiceshop/assistant/models"
)

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	return New(log.New(io.Discard, "", 0))
}

func echoTool(name string) Tool {
	return Tool{
		Name:        name,
		Description: name + " tool",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{"type": "string", "minLength": 1},
			},
			"required":             []any{"query"},
			"additionalProperties": false,
		},
		Handler: func(ctx context.Context, args map[string]any) ([]models.Product, error) {
			return []models.Product{{ID: "p-1", Title: args["query"].(string)}}, nil
		},
	}
}

func TestCallUnknownTool(t *testing.T) {
	r := testRegistry(t)
	_, err := r.Call(context.Background(), "nope.search", map[string]any{"query": "x"})
	if !errors.Is(err, ErrUnknownTool) {
		t.Fatalf("err = %v, want ErrUnknownTool", err)
	}
}

func TestCallInvalidArguments(t *testing.T) {
	r := testRegistry(t)
	if err := r.Register(echoTool(models.ToolRagSearch)); err != nil {
		t.Fatalf("register: %v", err)
	}

	cases := []map[string]any{
		nil,                           // missing required query
		{"query": ""},                 // empty query
		{"query": "x", "bogus": true}, // unknown property
		{"query": 12},                 // wrong type
	}
	for _, args := range cases {
		if _, err := r.Call(context.Background(), models.ToolRagSearch, args); !errors.Is(err, ErrInvalidArguments) {
			t.Fatalf("args %v: err = %v, want ErrInvalidArguments", args, err)
		}
	}
}

func TestCallWrapsHandlerErrors(t *testing.T) {
	r := testRegistry(t)
	tool := echoTool(models.ToolRagSearch)
	tool.Handler = func(ctx context.Context, args map[string]any) ([]models.Product, error) {
		return nil, errors.New("index offline")
	}
	if err := r.Register(tool); err != nil {
		t.Fatalf("register: %v", err)
	}

	_, err := r.Call(context.Background(), models.ToolRagSearch, map[string]any{"query": "x"})
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("err = %v, want ErrUpstream wrap", err)
	}
}

func TestCallPassesDeadlineThrough(t *testing.T) {
	r := testRegistry(t)
	tool := echoTool(models.ToolRagSearch)
	tool.Handler = func(ctx context.Context, args map[string]any) ([]models.Product, error) {
		return nil, context.DeadlineExceeded
	}
	if err := r.Register(tool); err != nil {
		t.Fatalf("register: %v", err)
	}

	_, err := r.Call(context.Background(), models.ToolRagSearch, map[string]any{"query": "x"})
	if !errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrUpstream) {
		t.Fatalf("err = %v, want bare deadline so callers can tell timeout from failure", err)
	}
}

func TestListKeepsRegistrationOrder(t *testing.T) {
	r := testRegistry(t)
	for _, name := range []string{models.ToolRagSearch, models.ToolWebSearch} {
		if err := r.Register(echoTool(name)); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}

	list := r.List()
	if len(list) != 2 || list[0].Name != models.ToolRagSearch || list[1].Name != models.ToolWebSearch {
		t.Fatalf("list = %+v, want registration order", list)
	}
	if list[0].InputSchema == nil || list[0].Description == "" {
		t.Fatalf("descriptor must carry schema and description: %+v", list[0])
	}
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	r := testRegistry(t)
	if err := r.Register(echoTool(models.ToolRagSearch)); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.Register(echoTool(models.ToolRagSearch)); err == nil {
		t.Fatal("duplicate registration must fail")
	}
}
