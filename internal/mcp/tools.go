package mcp

import "github.com/mark3labs/mcp-go/mcp"

func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool("get_health",
			mcp.WithDescription("Report whether each Hubitat gateway is connected and polling"),
		),
		s.handleGetHealth,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("list_entities",
			mcp.WithDescription("List motion sensors and switches with their current state"),
			mcp.WithString("domain",
				mcp.Description("Only return entities of this domain (binary_sensor or switch)"),
			),
			mcp.WithString("gateway",
				mcp.Description("Only return entities of this gateway"),
			),
		),
		s.handleListEntities,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("get_entity",
			mcp.WithDescription("Get the state and attributes of one entity"),
			mcp.WithString("id",
				mcp.Required(),
				mcp.Description("Entity ID, e.g. switch.hubitat_home_12"),
			),
		),
		s.handleGetEntity,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("turn_on",
			mcp.WithDescription("Turn on a switch (locks are locked)"),
			mcp.WithString("id",
				mcp.Required(),
				mcp.Description("Entity ID of a switch"),
			),
		),
		s.handleTurnOn,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("turn_off",
			mcp.WithDescription("Turn off a switch (locks are unlocked)"),
			mcp.WithString("id",
				mcp.Required(),
				mcp.Description("Entity ID of a switch"),
			),
		),
		s.handleTurnOff,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("recent_events",
			mcp.WithDescription("List recent bridge events, newest first"),
			mcp.WithNumber("limit",
				mcp.Description("Maximum number of events (default 20)"),
			),
		),
		s.handleRecentEvents,
	)
}
