// Package mcp exposes bridge entities as Model Context Protocol tools so an
// assistant can read sensor state and drive switches.
package mcp

import (
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"hubitatbridge/internal/events"
	"hubitatbridge/internal/hubitat"
	"hubitatbridge/internal/platform"
)

// Source is recorded as the origin of commands issued through MCP
const Source = "mcp"

// Server wraps the MCP server around the entity platform
type Server struct {
	mcpServer   *server.MCPServer
	platform    *platform.Platform
	controllers []*hubitat.Controller
	events      *events.Store
	logger      zerolog.Logger
}

// NewServer creates a new MCP server for entity control
func NewServer(p *platform.Platform, controllers []*hubitat.Controller, eventStore *events.Store, version string, logger zerolog.Logger) *Server {
	s := &Server{
		platform:    p,
		controllers: controllers,
		events:      eventStore,
		logger:      logger.With().Str("component", "mcp").Logger(),
	}

	s.mcpServer = server.NewMCPServer(
		"hubitat-bridge",
		version,
		server.WithToolCapabilities(true),
	)

	s.registerTools()

	return s
}

// ServeStdio serves MCP on stdin/stdout until the input is closed
func (s *Server) ServeStdio() error {
	s.logger.Info().Msg("Serving MCP on stdio")
	return server.ServeStdio(s.mcpServer)
}
