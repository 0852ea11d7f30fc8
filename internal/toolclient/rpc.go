package toolclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/voiceshop/assistant/internal/registry"
	"github.com/voiceshop/assistant/models"
)

// RPC speaks the stdio JSON-RPC tool protocol ("tools/list", "tools/call")
// against an external registry process. One in-flight retry is allowed, same
// arguments, and only on a transport failure, never on a tool-reported
// error.
type RPC struct {
	logger *log.Logger

	writeMu sync.Mutex
	enc     *json.Encoder
	dec     *json.Decoder

	mu      sync.Mutex
	nextID  int64
	pending map[int64]chan rpcResp
	readErr error
	started bool
}

type rpcReq struct {
	JSONRPC string         `json:"jsonrpc"`
	ID      int64          `json:"id"`
	Method  string         `json:"method"`
	Params  map[string]any `json:"params"`
}

type rpcResp struct {
	ID     json.Number     `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func NewRPC(rw io.ReadWriter, logger *log.Logger) *RPC {
	c := &RPC{
		logger:  logger,
		enc:     json.NewEncoder(rw),
		dec:     json.NewDecoder(rw),
		pending: make(map[int64]chan rpcResp),
	}
	go c.readLoop()
	return c
}

// readLoop routes responses to waiting invocations. Late responses for
// abandoned ids are dropped: a timed-out invocation runs to completion on
// the far side and its result is simply discarded.
func (c *RPC) readLoop() {
	for {
		var resp rpcResp
		if err := c.dec.Decode(&resp); err != nil {
			c.mu.Lock()
			c.readErr = err
			for id, ch := range c.pending {
				close(ch)
				delete(c.pending, id)
			}
			c.mu.Unlock()
			return
		}
		id, err := resp.ID.Int64()
		if err != nil {
			continue
		}
		c.mu.Lock()
		ch, ok := c.pending[id]
		if ok {
			delete(c.pending, id)
		}
		c.mu.Unlock()
		if ok {
			ch <- resp
		}
	}
}

func (c *RPC) Invoke(ctx context.Context, tool string, args map[string]any, timeout time.Duration) (models.ToolResult, error) {
	start := time.Now()
	res := models.ToolResult{Tool: tool, Products: []models.Product{}}

	cctx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		cctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	resp, err := c.call(cctx, tool, args)
	if err != nil && isTransport(err) {
		resp, err = c.call(cctx, tool, args)
	}
	res.Latency = time.Since(start)

	switch {
	case err == nil && resp.Error == nil:
		var payload struct {
			Results []models.Product `json:"results"`
		}
		if uerr := json.Unmarshal(resp.Result, &payload); uerr != nil {
			res.Status = models.StatusError
			res.Err = fmt.Sprintf("decode result: %v", uerr)
			return res, nil
		}
		res.Status = models.StatusSuccess
		if payload.Results != nil {
			res.Products = payload.Results
		}
		return res, nil

	case err != nil && errors.Is(err, context.DeadlineExceeded):
		res.Status = models.StatusTimeout
		res.Err = "upstream_timeout"
		return res, nil

	case err != nil:
		res.Status = models.StatusError
		res.Err = err.Error()
		return res, nil

	default:
		res.Status = models.StatusError
		res.Err = resp.Error.Message
		typed := typedFailure(resp.Error.Message)
		if typed != nil {
			return res, typed
		}
		return res, nil
	}
}

// call sends one request and waits for its response or the deadline.
func (c *RPC) call(ctx context.Context, tool string, args map[string]any) (rpcResp, error) {
	c.mu.Lock()
	if c.readErr != nil {
		err := c.readErr
		c.mu.Unlock()
		return rpcResp{}, fmt.Errorf("transport: %w", err)
	}
	c.nextID++
	id := c.nextID
	ch := make(chan rpcResp, 1)
	c.pending[id] = ch
	c.mu.Unlock()

	req := rpcReq{
		JSONRPC: "2.0",
		ID:      id,
		Method:  "tools/call",
		Params:  map[string]any{"name": tool, "arguments": args},
	}
	c.writeMu.Lock()
	err := c.enc.Encode(req)
	c.writeMu.Unlock()
	if err != nil {
		c.abandon(id)
		return rpcResp{}, fmt.Errorf("transport: %w", err)
	}

	select {
	case <-ctx.Done():
		c.abandon(id)
		return rpcResp{}, ctx.Err()
	case resp, ok := <-ch:
		if !ok {
			return rpcResp{}, fmt.Errorf("transport: connection closed")
		}
		return resp, nil
	}
}

func (c *RPC) abandon(id int64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func isTransport(err error) bool {
	return err != nil && strings.Contains(err.Error(), "transport:")
}

// typedFailure maps wire error messages back onto the registry sentinels so
// the retriever treats remote and in-process registries the same way.
func typedFailure(msg string) error {
	switch {
	case strings.Contains(msg, registry.ErrUnknownTool.Error()):
		return fmt.Errorf("%w: %s", registry.ErrUnknownTool, msg)
	case strings.Contains(msg, registry.ErrInvalidArguments.Error()):
		return fmt.Errorf("%w: %s", registry.ErrInvalidArguments, msg)
	default:
		return nil
	}
}
