package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"hubitatbridge/internal/events"
)

const defaultEventLimit = 20

func (s *Server) handleGetHealth(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	counts := make(map[string]int)
	for _, e := range s.platform.Entities() {
		counts[e.Gateway()]++
	}

	out := GetHealthOutput{Status: "unavailable", Gateways: []GatewayInfo{}}
	connected := 0
	for _, c := range s.controllers {
		if c.Connected() {
			connected++
		}
		out.Gateways = append(out.Gateways, GatewayInfo{
			Name:      c.Name(),
			Connected: c.Connected(),
			Polling:   string(c.Poller().State()),
			Entities:  counts[c.Name()],
		})
	}

	switch {
	case connected > 0 && connected == len(s.controllers):
		out.Status = "ok"
	case connected > 0:
		out.Status = "degraded"
	}

	return mcp.NewToolResultText(formatJSON(out)), nil
}

func (s *Server) handleListEntities(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	domain := optionalString(request, "domain")
	gateway := optionalString(request, "gateway")

	infos := []EntityInfo{}
	for _, e := range s.platform.Entities() {
		if domain != "" && string(e.Domain()) != domain {
			continue
		}
		if gateway != "" && e.Gateway() != gateway {
			continue
		}
		infos = append(infos, EntityToInfo(e))
	}

	out := ListEntitiesOutput{
		Entities: infos,
		Count:    len(infos),
	}
	return mcp.NewToolResultText(formatJSON(out)), nil
}

func (s *Server) handleGetEntity(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requiredString(request, "id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	e, err := s.platform.Entity(id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("entity not found: %s", id)), nil
	}

	return mcp.NewToolResultText(formatJSON(GetEntityOutput{Entity: EntityToInfo(e)})), nil
}

func (s *Server) handleTurnOn(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.command(request, true)
}

func (s *Server) handleTurnOff(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.command(request, false)
}

func (s *Server) command(request mcp.CallToolRequest, on bool) (*mcp.CallToolResult, error) {
	id, err := requiredString(request, "id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	action := "turn off"
	if on {
		action = "turn on"
		err = s.platform.TurnOn(id, Source)
	} else {
		err = s.platform.TurnOff(id, Source)
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to %s: %s", action, err)), nil
	}

	e, err := s.platform.Entity(id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("entity not found: %s", id)), nil
	}

	out := CommandOutput{
		EntityID: id,
		State:    e.State(),
		Message:  "Command queued; the hub is updated on the next poll",
	}
	return mcp.NewToolResultText(formatJSON(out)), nil
}

func (s *Server) handleRecentEvents(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := defaultEventLimit
	if v, ok := request.GetArguments()["limit"]; ok {
		if f, ok := v.(float64); ok && f > 0 {
			limit = int(f)
		}
	}

	list := []events.Event{}
	if s.events != nil {
		list = append(list, s.events.GetLast(limit)...)
	}

	return mcp.NewToolResultText(formatJSON(RecentEventsOutput{Events: list, Count: len(list)})), nil
}

// --- helpers ---

func requiredString(request mcp.CallToolRequest, key string) (string, error) {
	v, ok := request.GetArguments()[key]
	if !ok || v == nil {
		return "", fmt.Errorf("required parameter %q is missing", key)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("parameter %q must be a non-empty string", key)
	}
	return s, nil
}

func optionalString(request mcp.CallToolRequest, key string) string {
	s, _ := request.GetArguments()[key].(string)
	return s
}

func formatJSON(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf(`{"error":"failed to marshal response: %s"}`, err)
	}
	return string(b)
}
