package crawler

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/jobscout/kit"
)

// RegisterMCP registers all crawler tools on an MCP server.
func (s *Service) RegisterMCP(srv *mcp.Server) {
	s.registerCrawl(srv)
	s.registerListManifests(srv)
	s.registerGetManifest(srv)
	s.registerStats(srv)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func (s *Service) registerCrawl(srv *mcp.Server) {
	type req struct {
		Seeds []string `json:"seeds"`
	}

	tool := &mcp.Tool{
		Name:        "jobscout_crawl",
		Description: "Crawl career-page seed URLs: expand and paginate job listings, write capture artifacts, return the run report",
		InputSchema: inputSchema(map[string]any{
			"seeds": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "Seed URLs (career/jobs pages)",
			},
		}, []string{"seeds"}),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		report, err := s.Crawl(ctx, p.Seeds)
		if err != nil {
			return nil, err
		}
		// Return summaries, not full manifests: page entries carry file
		// paths the caller can follow.
		summaries := make([]*ManifestSummary, 0, len(report.Manifests))
		for _, m := range report.Manifests {
			summaries = append(summaries, &ManifestSummary{
				Seed: m.Seed, Domain: m.Domain, SeedBase: m.SeedBase,
				Mode: m.Mode, StopReason: m.StopReason,
				Pages: len(m.Pages), UniqueJobs: m.UniqueJobs,
				ErrorKind: m.ErrorKind, CreatedAt: m.CreatedAt,
			})
		}
		return map[string]any{
			"run_id":    report.RunID,
			"completed": report.Completed,
			"failed":    report.Failed,
			"elapsed_s": report.Elapsed,
			"manifests": summaries,
		}, nil
	}

	decode := func(r *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var p req
		if err := json.Unmarshal(r.Params.Arguments, &p); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &p}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

func (s *Service) registerListManifests(srv *mcp.Server) {
	type req struct {
		Domain string `json:"domain"`
	}

	tool := &mcp.Tool{
		Name:        "jobscout_list_manifests",
		Description: "List crawl manifests from the output tree, optionally filtered by domain",
		InputSchema: inputSchema(map[string]any{
			"domain": map[string]any{"type": "string", "description": "Filter by domain (optional)"},
		}, nil),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		return s.ListManifests(ctx, p.Domain)
	}

	decode := func(r *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var p req
		if err := json.Unmarshal(r.Params.Arguments, &p); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &p}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

func (s *Service) registerGetManifest(srv *mcp.Server) {
	type req struct {
		Domain   string `json:"domain"`
		SeedBase string `json:"seed_base"`
	}

	tool := &mcp.Tool{
		Name:        "jobscout_get_manifest",
		Description: "Get one seed's full crawl manifest including per-page artifact paths",
		InputSchema: inputSchema(map[string]any{
			"domain":    map[string]any{"type": "string", "description": "Domain of the seed"},
			"seed_base": map[string]any{"type": "string", "description": "Seed base name (slug + hash)"},
		}, []string{"domain", "seed_base"}),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		return s.GetManifest(ctx, p.Domain, p.SeedBase)
	}

	decode := func(r *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var p req
		if err := json.Unmarshal(r.Params.Arguments, &p); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &p}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

func (s *Service) registerStats(srv *mcp.Server) {
	type req struct{}

	tool := &mcp.Tool{
		Name:        "jobscout_stats",
		Description: "Aggregate crawl statistics across all manifests",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := func(ctx context.Context, _ any) (any, error) {
		return s.Stats(ctx)
	}

	decode := func(r *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var p req
		if len(r.Params.Arguments) > 0 {
			if err := json.Unmarshal(r.Params.Arguments, &p); err != nil {
				return nil, err
			}
		}
		return &kit.MCPDecodeResult{Request: &p}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}
