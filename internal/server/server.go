package server

import (
	"context"
	"errors"
	"fmt"

	"doxnav/internal/analysis"
	"doxnav/internal/crawler"
	"doxnav/internal/storage"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	serverName    = "doxnav"
	serverVersion = "0.1.0"
)

// Server exposes the navigation catalogue over MCP.
type Server struct {
	mcpServer *mcp.Server
	store     storage.Store
	crawler   *crawler.Crawler
	lint      analysis.Options
}

func New(store storage.Store, cr *crawler.Crawler, lint analysis.Options) *Server {
	s := &Server{
		mcpServer: mcp.NewServer(&mcp.Implementation{Name: serverName, Version: serverVersion}, nil),
		store:     store,
		crawler:   cr,
		lint:      lint,
	}
	s.registerTools()
	s.registerResources()
	return s
}

// Run serves over stdin/stdout until ctx ends or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.serveWithTransport(ctx, &mcp.StdioTransport{})
}

func (s *Server) serveWithTransport(ctx context.Context, transport mcp.Transport) error {
	if s == nil || s.mcpServer == nil {
		return fmt.Errorf("MCP server is not configured")
	}
	err := s.mcpServer.Run(ctx, transport)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}
