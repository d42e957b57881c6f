package mcp

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/jllopis/ergon/pkg/memory"
	"github.com/jllopis/ergon/pkg/runtime"
)

// storeHolder is satisfied by agents that own a memory store, such as
// agent.Base.
type storeHolder interface {
	Store() *memory.Store
}

// agentStore resolves an agent's memory store through the pool.
func agentStore(pool *runtime.Pool, agentID string) (*memory.Store, error) {
	a, ok := pool.Get(agentID)
	if !ok {
		return nil, fmt.Errorf("unknown agent %q; list registered agents with agent_status", agentID)
	}
	holder, ok := a.(storeHolder)
	if !ok || holder.Store() == nil {
		return nil, fmt.Errorf("agent %q has no memory store attached", agentID)
	}
	return holder.Store(), nil
}

// intArg extracts an integer argument, falling back to defaultVal when the
// key is missing or not a number (JSON numbers decode as float64).
func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return int(v)
}

// maxSnippet bounds entry content in listings.
const maxSnippet = 240

// snippet renders entry content for a one-line listing: whitespace collapses
// to single spaces and long content is cut at maxSnippet runes.
func snippet(content string) string {
	flat := strings.Join(strings.Fields(content), " ")
	runes := []rune(flat)
	if len(runes) <= maxSnippet {
		return flat
	}
	return string(runes[:maxSnippet]) + "..."
}

// searchTool handles the memory_search tool.
type searchTool struct {
	pool *runtime.Pool
}

func (t *searchTool) Definition() mcp.Tool {
	return mcp.NewTool("memory_search",
		mcp.WithDescription("Semantic search over one agent's memory. Uses the agent's vector index when one is configured, falling back to substring matching over the local cache."),
		mcp.WithString("agent_id",
			mcp.Required(),
			mcp.Description("Agent whose memory to search; IDs come from agent_status."),
		),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Natural-language query."),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum results to return (default 5)."),
		),
	)
}

func (t *searchTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	agentID := strings.TrimSpace(req.GetString("agent_id", ""))
	if agentID == "" {
		return mcp.NewToolResultError("agent_id is required"), nil
	}
	query := strings.TrimSpace(req.GetString("query", ""))
	if query == "" {
		return mcp.NewToolResultError("query is required"), nil
	}
	limit := intArg(req, "limit", 5)

	store, err := agentStore(t.pool, agentID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	results, err := store.SemanticSearch(ctx, query, memory.WithLimit(limit))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}
	if len(results) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No memory of agent %q matches %q.", agentID, query)), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Memory search: %q (agent %s)\n\n", query, agentID)
	for i, res := range results {
		e := res.Entry
		fmt.Fprintf(&sb, "%d. [%s/%s] similarity %.2f, importance %.2f, %s\n",
			i+1, e.Type, e.ContextType, res.Similarity, e.Importance,
			e.CreatedAt.UTC().Format(time.RFC3339))
		fmt.Fprintf(&sb, "   %s\n", snippet(e.Content))
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// recentTool handles the memory_recent tool.
type recentTool struct {
	pool *runtime.Pool
}

func (t *recentTool) Definition() mcp.Tool {
	return mcp.NewTool("memory_recent",
		mcp.WithDescription("List an agent's most recent memory entries, newest first, optionally filtered by context type."),
		mcp.WithString("agent_id",
			mcp.Required(),
			mcp.Description("Agent whose memory to list; IDs come from agent_status."),
		),
		mcp.WithString("context_type",
			mcp.Description("Only entries with this context type, e.g. task_result or state_change."),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum entries to return (default 10)."),
		),
	)
}

func (t *recentTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	agentID := strings.TrimSpace(req.GetString("agent_id", ""))
	if agentID == "" {
		return mcp.NewToolResultError("agent_id is required"), nil
	}
	contextType := strings.TrimSpace(req.GetString("context_type", ""))
	limit := intArg(req, "limit", 10)

	store, err := agentStore(t.pool, agentID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	opts := []memory.QueryOption{memory.WithLimit(limit)}
	if contextType != "" {
		opts = append(opts, memory.WithContextType(contextType))
	}
	entries, err := store.Get(ctx, opts...)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("memory read failed: %v", err)), nil
	}
	if len(entries) == 0 {
		if contextType != "" {
			return mcp.NewToolResultText(fmt.Sprintf("Agent %q has no %q entries.", agentID, contextType)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Agent %q has no stored memory.", agentID)), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Recent memory: agent %s\n\n", agentID)
	for i, e := range entries {
		fmt.Fprintf(&sb, "%d. [%s/%s] importance %.2f, accessed %d, %s\n",
			i+1, e.Type, e.ContextType, e.Importance, e.AccessCount,
			e.CreatedAt.UTC().Format(time.RFC3339))
		fmt.Fprintf(&sb, "   %s\n", snippet(e.Content))
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// statsTool handles the memory_stats tool.
type statsTool struct {
	pool *runtime.Pool
}

func (t *statsTool) Definition() mcp.Tool {
	return mcp.NewTool("memory_stats",
		mcp.WithDescription("Break an agent's memory down by tier and context type, including the durable-store count when a backend is attached."),
		mcp.WithString("agent_id",
			mcp.Required(),
			mcp.Description("Agent whose memory to summarize; IDs come from agent_status."),
		),
	)
}

func (t *statsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	agentID := strings.TrimSpace(req.GetString("agent_id", ""))
	if agentID == "" {
		return mcp.NewToolResultError("agent_id is required"), nil
	}

	store, err := agentStore(t.pool, agentID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("stats failed: %v", err)), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Memory statistics: agent %s\n\n", agentID)
	fmt.Fprintf(&sb, "- **Total entries**: %d\n", stats.Total)
	if stats.DurableCount > 0 {
		fmt.Fprintf(&sb, "- **Durable entries**: %d\n", stats.DurableCount)
	}

	if stats.Total > 0 {
		sb.WriteString("\n### By tier\n\n")
		for _, mt := range memory.Types() {
			if n := stats.ByType[mt]; n > 0 {
				fmt.Fprintf(&sb, "- %s: %d\n", mt, n)
			}
		}

		contexts := make([]string, 0, len(stats.ByContext))
		for ct := range stats.ByContext {
			contexts = append(contexts, ct)
		}
		sort.Strings(contexts)
		sb.WriteString("\n### By context type\n\n")
		for _, ct := range contexts {
			fmt.Fprintf(&sb, "- %s: %d\n", ct, stats.ByContext[ct])
		}
	}
	return mcp.NewToolResultText(sb.String()), nil
}
