// Minimal MCP stdio server exposing the two stateless search tools.
// The pipeline (or any MCP client) connects via stdio JSON-RPC:
// "tools/list" and "tools/call".
//
// Start: `go run mcp/server.go`

package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/voiceshop/assistant/config"
	"github.com/voiceshop/assistant/internal/registry"
	"github.com/voiceshop/assistant/internal/toolset"
	"github.com/voiceshop/assistant/models"
)

// ---------- JSON-RPC skeleton ----------

type rpcReq struct {
	JSONRPC string                 `json:"jsonrpc"`
	ID      any                    `json:"id"`
	Method  string                 `json:"method"`
	Params  map[string]interface{} `json:"params"`
}
type rpcResp struct {
	JSONRPC string                 `json:"jsonrpc"`
	ID      any                    `json:"id"`
	Result  map[string]interface{} `json:"result,omitempty"`
	Error   *rpcError              `json:"error,omitempty"`
}
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeResp(w io.Writer, id any, result map[string]interface{}, err error) {
	resp := rpcResp{JSONRPC: "2.0", ID: id}
	if err != nil {
		resp.Error = &rpcError{Code: -32000, Message: err.Error()}
	} else {
		resp.Result = result
	}
	enc := json.NewEncoder(w)
	_ = enc.Encode(resp)
}

// MCPServer holds the shared registry; per-call state does not exist.
type MCPServer struct {
	Registry       *registry.Registry
	DefaultTimeout time.Duration
}

// NewMCPServer wires dependencies once.
func NewMCPServer() (*MCPServer, error) {
	cfg := config.LoadConfig(os.Getenv("VOICESHOP_CONFIG"))
	logger := log.New(os.Stderr, "[MCP] ", log.LstdFlags|log.Lshortfile)

	reg, err := toolset.Build(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("toolset: %w", err)
	}
	return &MCPServer{Registry: reg, DefaultTimeout: cfg.General.DefaultTimeout}, nil
}

// callTool dispatches through the registry and shapes the wire result.
func (srv *MCPServer) callTool(ctx context.Context, name string, args map[string]any) (map[string]any, error) {
	products, err := srv.Registry.Call(ctx, name, args)
	if err != nil {
		return nil, err
	}
	if products == nil {
		products = []models.Product{}
	}
	return map[string]any{"results": products}, nil
}

// ---------- stdio loop ----------

// Serve runs a simple stdio JSON-RPC loop for MCP.
func (srv *MCPServer) Serve(in io.Reader, out io.Writer) error {
	rd := bufio.NewReader(in)
	dec := json.NewDecoder(rd)
	for {
		var req rpcReq
		if err := dec.Decode(&req); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			// Decoder errors are sticky; resync on the next line.
			if _, rerr := rd.ReadString('\n'); rerr != nil {
				return err
			}
			dec = json.NewDecoder(rd)
			continue
		}

		switch req.Method {
		case "tools/list":
			writeResp(out, req.ID, map[string]any{"tools": srv.Registry.List()}, nil)

		case "tools/call":
			name := ""
			args := map[string]any{}
			if v, ok := req.Params["name"].(string); ok {
				name = v
			}
			if m, ok := req.Params["arguments"].(map[string]any); ok {
				args = m
			}
			// Per-call timeout to avoid stuck handlers
			ctx, cancel := context.WithTimeout(context.Background(), srv.DefaultTimeout)
			res, err := srv.callTool(ctx, name, args)
			cancel()
			writeResp(out, req.ID, res, err)

		default:
			writeResp(out, req.ID, nil, fmt.Errorf("unknown method: %s", req.Method))
		}
	}
}

func main() {
	srv, err := NewMCPServer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "init error: %v\n", err)
		os.Exit(1)
	}
	if err := srv.Serve(os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "serve error: %v\n", err)
		os.Exit(1)
	}
}
