// Package mcp exposes a running agent pool over the Model Context Protocol
// so MCP-capable clients can inspect agents and their memory. Every tool is
// a read-only diagnostic; nothing served here mutates pool or memory state.
package mcp

import (
	"context"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/jllopis/ergon/pkg/errors"
	"github.com/jllopis/ergon/pkg/runtime"
)

const (
	serverName    = "ergon-inspector"
	serverVersion = "0.1.0"
)

const instructions = `Read-only inspector for a running ergon agent pool.
Start with agent_status to list the registered agents and their IDs. Feed an
ID to memory_stats for tier and context-type counts, to memory_recent for the
latest entries, or to memory_search for a semantic query over that agent's
memory. No tool mutates agent or memory state.`

// tool is the surface every inspection tool implements.
type tool interface {
	Definition() mcp.Tool
	Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)
}

// Server serves pool and memory inspection tools over MCP.
type Server struct {
	pool   *runtime.Pool
	logger *slog.Logger
	tools  []tool
	mcp    *server.MCPServer
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger for serve-time notices. Handlers never log; on
// the stdio transport the protocol stream owns stdout.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// New builds an inspection server over the pool. Tools resolve agents at
// call time, so agents registered after construction are visible too.
func New(pool *runtime.Pool, opts ...Option) (*Server, error) {
	if pool == nil {
		return nil, errors.New(errors.CodeInvalidInput, "mcp server requires an agent pool", nil)
	}

	s := &Server{
		pool:   pool,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.tools = []tool{
		&statusTool{pool: pool},
		&statsTool{pool: pool},
		&recentTool{pool: pool},
		&searchTool{pool: pool},
	}

	m := server.NewMCPServer(serverName, serverVersion,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(instructions),
	)
	for _, t := range s.tools {
		m.AddTool(t.Definition(), t.Handle)
	}
	s.mcp = m
	return s, nil
}

// ServeStdio serves the inspector over stdin/stdout and blocks until the
// stream closes.
func (s *Server) ServeStdio() error {
	s.logger.Info("mcp.serve", "transport", "stdio", "tools", len(s.tools))
	return server.ServeStdio(s.mcp)
}
