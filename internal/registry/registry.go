// Package registry hosts the callable search tools. The registry holds no
// per-turn state: concurrent turns share it freely.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/voiceshop/assistant/models"
)

// Typed failures surfaced to callers. Retriever policy depends on which one
// it gets: contract violations are planner defects, upstream ones transient.
var (
	ErrUnknownTool      = errors.New("unknown_tool")
	ErrInvalidArguments = errors.New("invalid_arguments")
	ErrUpstream         = errors.New("upstream_error")
)

// Handler executes one tool call against validated arguments.
type Handler func(ctx context.Context, args map[string]any) ([]models.Product, error)

// Tool describes one registered tool, including the JSON schema its
// arguments are validated against.
type Tool struct {
	Name        string
	Description string
	InputSchema map[string]any
	Handler     Handler
}

// Descriptor is the discovery shape advertised over tools/list.
type Descriptor struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

// Registry validates and dispatches tool calls.
type Registry struct {
	logger  *log.Logger
	mu      sync.RWMutex
	tools   map[string]Tool
	order   []string
	schemas map[string]*gojsonschema.Schema
}

func New(logger *log.Logger) *Registry {
	return &Registry{
		logger:  logger,
		tools:   make(map[string]Tool),
		schemas: make(map[string]*gojsonschema.Schema),
	}
}

// Register adds a tool at startup. Re-registering a name is a wiring bug.
func (r *Registry) Register(t Tool) error {
	if t.Name == "" || t.Handler == nil {
		return fmt.Errorf("register: tool needs a name and a handler")
	}
	raw, err := json.Marshal(t.InputSchema)
	if err != nil {
		return fmt.Errorf("register %s: marshal schema: %w", t.Name, err)
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("register %s: compile schema: %w", t.Name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.tools[t.Name]; dup {
		return fmt.Errorf("register: tool %s already registered", t.Name)
	}
	r.tools[t.Name] = t
	r.schemas[t.Name] = schema
	r.order = append(r.order, t.Name)
	return nil
}

// List returns tool descriptors in registration order.
func (r *Registry) List() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		out = append(out, Descriptor{Name: t.Name, Description: t.Description, InputSchema: t.InputSchema})
	}
	return out
}

// Call validates the tool name and arguments, then executes the lookup.
// Handler errors come back wrapped as ErrUpstream; a context deadline passes
// through untouched so callers can tell timeout from failure.
func (r *Registry) Call(ctx context.Context, name string, args map[string]any) ([]models.Product, error) {
	r.mu.RLock()
	tool, ok := r.tools[name]
	schema := r.schemas[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}

	if args == nil {
		args = map[string]any{}
	}
	res, err := schema.Validate(gojsonschema.NewGoLoader(args))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidArguments, name, err)
	}
	if !res.Valid() {
		return nil, fmt.Errorf("%w: %s: %s", ErrInvalidArguments, name, firstIssue(res))
	}

	products, err := tool.Handler(ctx, args)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, err
		}
		r.logger.Printf("tool %s failed: %v", name, err)
		return nil, fmt.Errorf("%w: %s: %v", ErrUpstream, name, err)
	}
	return products, nil
}

func firstIssue(res *gojsonschema.Result) string {
	for _, e := range res.Errors() {
		return e.String()
	}
	return "invalid arguments"
}
