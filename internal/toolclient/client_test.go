package toolclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"strconv"
	"testing"
	"time"

	"github.com/voiceshop/assistant/internal/registry"
	"github.com/voiceshop/assistant/models"
)

func testRegistry(t *testing.T, handler registry.Handler) *registry.Registry {
	t.Helper()
	reg := registry.New(log.New(io.Discard, "", 0))
	err := reg.Register(registry.Tool{
		Name:        models.ToolRagSearch,
		Description: "private catalog search",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{"type": "string", "minLength": 1},
			},
			"required":             []any{"query"},
			"additionalProperties": false,
		},
		Handler: handler,
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	return reg
}

func TestLocalInvokeSuccess(t *testing.T) {
	reg := testRegistry(t, func(ctx context.Context, args map[string]any) ([]models.Product, error) {
		return []models.Product{{ID: "p-1", Title: "EcoShine Cleaner"}}, nil
	})
	c := NewLocal(reg)

	res, err := c.Invoke(context.Background(), models.ToolRagSearch, map[string]any{"query": "cleaner"}, time.Second)
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if res.Status != models.StatusSuccess || len(res.Products) != 1 {
		t.Fatalf("result = %+v, want success with one product", res)
	}
}

func TestLocalInvokeTimeout(t *testing.T) {
	reg := testRegistry(t, func(ctx context.Context, args map[string]any) ([]models.Product, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	c := NewLocal(reg)

	res, err := c.Invoke(context.Background(), models.ToolRagSearch, map[string]any{"query": "cleaner"}, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("timeout must not surface as an error: %v", err)
	}
	if res.Status != models.StatusTimeout {
		t.Fatalf("status = %s, want timeout", res.Status)
	}
}

func TestLocalInvokeOutlivesCallerContext(t *testing.T) {
	reg := testRegistry(t, func(ctx context.Context, args map[string]any) ([]models.Product, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return []models.Product{{ID: "p-1", Title: "EcoShine Cleaner"}}, nil
	})
	c := NewLocal(reg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := c.Invoke(ctx, models.ToolRagSearch, map[string]any{"query": "cleaner"}, time.Second)
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if res.Status != models.StatusSuccess {
		t.Fatalf("status = %s, want the invocation to run on its own deadline", res.Status)
	}
}

func TestLocalInvokeTypedFailures(t *testing.T) {
	reg := testRegistry(t, func(ctx context.Context, args map[string]any) ([]models.Product, error) {
		return nil, nil
	})
	c := NewLocal(reg)

	res, err := c.Invoke(context.Background(), "nope.search", map[string]any{"query": "x"}, time.Second)
	if !errors.Is(err, registry.ErrUnknownTool) || res.Status != models.StatusError {
		t.Fatalf("unknown tool: res=%+v err=%v", res, err)
	}

	res, err = c.Invoke(context.Background(), models.ToolRagSearch, map[string]any{"query": ""}, time.Second)
	if !errors.Is(err, registry.ErrInvalidArguments) || res.Status != models.StatusError {
		t.Fatalf("invalid arguments: res=%+v err=%v", res, err)
	}
}

func TestLocalInvokeAbsorbsUpstreamError(t *testing.T) {
	reg := testRegistry(t, func(ctx context.Context, args map[string]any) ([]models.Product, error) {
		return nil, errors.New("index offline")
	})
	c := NewLocal(reg)

	res, err := c.Invoke(context.Background(), models.ToolRagSearch, map[string]any{"query": "x"}, time.Second)
	if err != nil {
		t.Fatalf("upstream error must be absorbed into the result: %v", err)
	}
	if res.Status != models.StatusError || res.Err == "" {
		t.Fatalf("result = %+v, want error status with message", res)
	}
}

// pipeRW joins the client side of two in-memory pipes into one ReadWriter.
type pipeRW struct {
	io.Reader
	io.Writer
}

// serveTools runs a fake far-side registry over the given pipes, answering
// every request with handle's response.
func serveTools(t *testing.T, r io.Reader, w io.Writer, handle func(req rpcReq) rpcResp) {
	t.Helper()
	dec := json.NewDecoder(r)
	enc := json.NewEncoder(w)
	go func() {
		for {
			var req rpcReq
			if err := dec.Decode(&req); err != nil {
				return
			}
			if err := enc.Encode(handle(req)); err != nil {
				return
			}
		}
	}()
}

func wireID(id int64) json.Number { return json.Number(strconv.FormatInt(id, 10)) }

func TestRPCInvokeSuccess(t *testing.T) {
	fromServer, toClient := io.Pipe()
	fromClient, toServer := io.Pipe()
	defer toClient.Close()
	defer toServer.Close()

	serveTools(t, fromClient, toClient, func(req rpcReq) rpcResp {
		if req.Method != "tools/call" {
			t.Errorf("method = %s, want tools/call", req.Method)
		}
		return rpcResp{ID: wireID(req.ID), Result: json.RawMessage(`{"results":[{"id":"p-1","title":"EcoShine Cleaner","source":"rag.search"}]}`)}
	})

	c := NewRPC(&pipeRW{Reader: fromServer, Writer: toServer}, log.New(io.Discard, "", 0))
	res, err := c.Invoke(context.Background(), models.ToolRagSearch, map[string]any{"query": "cleaner"}, time.Second)
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if res.Status != models.StatusSuccess || len(res.Products) != 1 || res.Products[0].ID != "p-1" {
		t.Fatalf("result = %+v, want the decoded product", res)
	}
}

func TestRPCInvokeTimeout(t *testing.T) {
	fromServer, toClient := io.Pipe()
	fromClient, toServer := io.Pipe()
	defer toClient.Close()
	defer toServer.Close()

	// Swallow requests, never answer.
	go io.Copy(io.Discard, fromClient)

	c := NewRPC(&pipeRW{Reader: fromServer, Writer: toServer}, log.New(io.Discard, "", 0))
	res, err := c.Invoke(context.Background(), models.ToolWebSearch, map[string]any{"query": "x"}, 30*time.Millisecond)
	if err != nil {
		t.Fatalf("timeout must not surface as an error: %v", err)
	}
	if res.Status != models.StatusTimeout || res.Err != "upstream_timeout" {
		t.Fatalf("result = %+v, want upstream_timeout", res)
	}
}

func TestRPCInvokeMapsTypedFailures(t *testing.T) {
	fromServer, toClient := io.Pipe()
	fromClient, toServer := io.Pipe()
	defer toClient.Close()
	defer toServer.Close()

	serveTools(t, fromClient, toClient, func(req rpcReq) rpcResp {
		return rpcResp{ID: wireID(req.ID), Error: &rpcError{Code: -32601, Message: "unknown_tool: nope.search"}}
	})

	c := NewRPC(&pipeRW{Reader: fromServer, Writer: toServer}, log.New(io.Discard, "", 0))
	res, err := c.Invoke(context.Background(), "nope.search", map[string]any{"query": "x"}, time.Second)
	if !errors.Is(err, registry.ErrUnknownTool) {
		t.Fatalf("err = %v, want the unknown_tool sentinel", err)
	}
	if res.Status != models.StatusError {
		t.Fatalf("status = %s, want error", res.Status)
	}
}

// flakyWriter fails the first write, then delegates. Exercises the
// single-retry policy on transport failures.
type flakyWriter struct {
	w      io.Writer
	failed bool
}

func (f *flakyWriter) Write(p []byte) (int, error) {
	if !f.failed {
		f.failed = true
		return 0, errors.New("broken pipe")
	}
	return f.w.Write(p)
}

func TestRPCRetriesOnceOnTransportFailure(t *testing.T) {
	fromServer, toClient := io.Pipe()
	fromClient, toServer := io.Pipe()
	defer toClient.Close()
	defer toServer.Close()

	serveTools(t, fromClient, toClient, func(req rpcReq) rpcResp {
		return rpcResp{ID: wireID(req.ID), Result: json.RawMessage(`{"results":[]}`)}
	})

	c := NewRPC(&pipeRW{Reader: fromServer, Writer: &flakyWriter{w: toServer}}, log.New(io.Discard, "", 0))
	res, err := c.Invoke(context.Background(), models.ToolRagSearch, map[string]any{"query": "x"}, time.Second)
	if err != nil {
		t.Fatalf("invoke after retry: %v", err)
	}
	if res.Status != models.StatusSuccess {
		t.Fatalf("status = %s, want success on the retried call", res.Status)
	}
}

func TestRPCDoesNotRetryToolErrors(t *testing.T) {
	fromServer, toClient := io.Pipe()
	fromClient, toServer := io.Pipe()
	defer toClient.Close()
	defer toServer.Close()

	var calls int
	serveTools(t, fromClient, toClient, func(req rpcReq) rpcResp {
		calls++
		return rpcResp{ID: wireID(req.ID), Error: &rpcError{Code: -32000, Message: "upstream_error: serp 503"}}
	})

	c := NewRPC(&pipeRW{Reader: fromServer, Writer: toServer}, log.New(io.Discard, "", 0))
	res, err := c.Invoke(context.Background(), models.ToolWebSearch, map[string]any{"query": "x"}, time.Second)
	if err != nil {
		t.Fatalf("tool-reported error must be absorbed: %v", err)
	}
	if res.Status != models.StatusError {
		t.Fatalf("status = %s, want error", res.Status)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, tool-reported errors must not be retried", calls)
	}
}
