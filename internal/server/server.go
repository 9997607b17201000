// Package server registers the schemadump MCP tools.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/SedlarDavid/schemadump/internal/config"
	"github.com/SedlarDavid/schemadump/internal/migrate"
	"github.com/SedlarDavid/schemadump/pkg/schemadump"
)

const (
	ServerName    = "schemadump"
	ServerVersion = "1.0.0"
)

// New returns an MCP server with all tools registered.
func New(cfg *config.Config, dumper *schemadump.Dumper) *server.MCPServer {
	s := server.NewMCPServer(ServerName, ServerVersion,
		server.WithToolCapabilities(true),
		server.WithInstructions("Applies pending migrations to a configured target and writes its schema structure file. "+
			"Use list_targets to see target IDs; connection URLs are never returned."),
	)
	Register(s, cfg, dumper)
	return s
}

// Register adds the tools to s. cfg may be nil (only ping and an empty
// list_targets work without config). dumper may be nil for the zero Dumper.
func Register(s *server.MCPServer, cfg *config.Config, dumper *schemadump.Dumper) {
	if dumper == nil {
		dumper = &schemadump.Dumper{}
	}
	h := &handlers{cfg: cfg, dumper: dumper}

	s.AddTool(mcp.NewTool("ping",
		mcp.WithDescription("Simple health check. Returns pong."),
		mcp.WithReadOnlyHintAnnotation(true),
	), h.ping)

	s.AddTool(mcp.NewTool("list_targets",
		mcp.WithDescription("List configured dump targets: ID, engine, migration backend and paths. No credentials in response."),
		mcp.WithReadOnlyHintAnnotation(true),
	), h.listTargets)

	if cfg == nil {
		return
	}

	s.AddTool(mcp.NewTool("list_migrations",
		mcp.WithDescription("List the migration files found in a target's migrations directory, in the order they would be applied."),
		mcp.WithString("target_id", mcp.Required(), mcp.Description("Target ID from list_targets")),
		mcp.WithReadOnlyHintAnnotation(true),
	), h.listMigrations)

	s.AddTool(mcp.NewTool("dump_structure",
		mcp.WithDescription("Apply pending migrations to a target database, then write its schema structure file. "+
			"Returns the destination path and size."),
		mcp.WithString("target_id", mcp.Required(), mcp.Description("Target ID from list_targets")),
		mcp.WithDestructiveHintAnnotation(false),
	), h.dumpStructure)
}

type handlers struct {
	cfg    *config.Config
	dumper *schemadump.Dumper
	// locks serializes dumps per target; migrations against one database
	// must not interleave.
	locks sync.Map
}

// PingOutput is the structured result of the ping tool.
type PingOutput struct {
	Message string `json:"message"`
}

// ListTargetsOutput is the result of list_targets.
type ListTargetsOutput struct {
	Targets []config.TargetInfo `json:"targets"`
}

// MigrationInfo describes one discovered migration.
type MigrationInfo struct {
	Version     int64  `json:"version"`
	Description string `json:"description"`
	Path        string `json:"path"`
}

// ListMigrationsOutput is the result of list_migrations.
type ListMigrationsOutput struct {
	Migrations []MigrationInfo `json:"migrations"`
}

// DumpStructureOutput is the result of dump_structure.
type DumpStructureOutput struct {
	RunID             string  `json:"run_id"`
	Engine            string  `json:"engine"`
	Destination       string  `json:"destination"`
	Bytes             int64   `json:"bytes"`
	MigrationsApplied []int64 `json:"migrations_applied"`
}

func (h *handlers) ping(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(PingOutput{Message: "pong"})
}

func (h *handlers) listTargets(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	out := ListTargetsOutput{Targets: []config.TargetInfo{}}
	if h.cfg != nil {
		out.Targets = h.cfg.TargetInfos()
	}
	return jsonResult(out)
}

func (h *handlers) listMigrations(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	r, err := h.resolve(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	set, err := migrate.DiscoverDir(r.MigrationsDir())
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out := ListMigrationsOutput{Migrations: make([]MigrationInfo, 0, len(set))}
	for _, m := range set {
		out.Migrations = append(out.Migrations, MigrationInfo{Version: m.Version, Description: m.Description, Path: m.Path})
	}
	return jsonResult(out)
}

func (h *handlers) dumpStructure(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	r, err := h.resolve(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id := mcp.ParseString(req, "target_id", "")
	mu, _ := h.locks.LoadOrStore(id, &sync.Mutex{})
	mu.(*sync.Mutex).Lock()
	defer mu.(*sync.Mutex).Unlock()

	res, err := h.dumper.Dump(ctx, r)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out := DumpStructureOutput{
		RunID:             res.RunID,
		Engine:            string(res.Engine),
		Destination:       res.Destination,
		Bytes:             res.Bytes,
		MigrationsApplied: migrate.Set(res.Applied).Versions(),
	}
	return jsonResult(out)
}

// resolve builds the dump request for the target named in req.
func (h *handlers) resolve(req mcp.CallToolRequest) (schemadump.Request, error) {
	id := mcp.ParseString(req, "target_id", "")
	if id == "" {
		return schemadump.Request{}, fmt.Errorf("target_id is required")
	}
	t, ok := h.cfg.Target(id)
	if !ok {
		return schemadump.Request{}, fmt.Errorf("unknown target %q", id)
	}
	return schemadump.Config{
		Engine:        string(t.Engine),
		Backend:       t.Backend,
		URL:           t.URL,
		MigrationsDir: t.Migrations,
		Destination:   t.Destination,
	}.Resolve()
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(b)), nil
}
