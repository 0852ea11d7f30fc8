// Package toolclient is the uniform interface the pipeline uses to invoke a
// registered tool. It hides transport and retry details: the retriever only
// ever sees a ToolResult and, for contract violations, a typed error.
package toolclient

import (
	"context"
	"errors"
	"time"

	"github.com/voiceshop/assistant/internal/registry"
	"github.com/voiceshop/assistant/models"
)

// Client invokes a named tool with arguments and a per-invocation timeout.
// The returned ToolResult is always usable; the error mirrors typed registry
// failures (unknown_tool, invalid_arguments) so callers can log them as
// planner defects.
type Client interface {
	Invoke(ctx context.Context, tool string, args map[string]any, timeout time.Duration) (models.ToolResult, error)
}

// Local calls the registry in-process. No transport, so no retry: a
// tool-reported error is never retried.
type Local struct {
	reg *registry.Registry
}

func NewLocal(reg *registry.Registry) *Local {
	return &Local{reg: reg}
}

func (c *Local) Invoke(ctx context.Context, tool string, args map[string]any, timeout time.Duration) (models.ToolResult, error) {
	start := time.Now()
	cctx := ctx
	if timeout > 0 {
		// The invocation runs against its own deadline, not the caller's:
		// an aborted turn lets the in-flight call finish and the result is
		// simply discarded, same as the remote client does.
		var cancel context.CancelFunc
		cctx, cancel = context.WithTimeout(context.Background(), timeout)
		defer cancel()
	}

	products, err := c.reg.Call(cctx, tool, args)
	res := models.ToolResult{
		Tool:     tool,
		Status:   models.StatusSuccess,
		Products: products,
		Latency:  time.Since(start),
	}
	if err == nil {
		if res.Products == nil {
			res.Products = []models.Product{}
		}
		return res, nil
	}

	res.Products = []models.Product{}
	res.Err = err.Error()
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		res.Status = models.StatusTimeout
		return res, nil
	case errors.Is(err, registry.ErrUnknownTool), errors.Is(err, registry.ErrInvalidArguments):
		res.Status = models.StatusError
		return res, err
	default:
		res.Status = models.StatusError
		return res, nil
	}
}
