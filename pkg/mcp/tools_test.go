package mcp

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/jllopis/ergon/pkg/agent"
	"github.com/jllopis/ergon/pkg/core"
	"github.com/jllopis/ergon/pkg/memory"
	"github.com/jllopis/ergon/pkg/runtime"
)

func makeReq(args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if res == nil || len(res.Content) == 0 {
		t.Fatal("tool returned no content")
	}
	tc, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("unexpected content type %T", res.Content[0])
	}
	return tc.Text
}

func newInspectedAgent(t *testing.T, pool *runtime.Pool, name string, caps ...core.Capability) *agent.Base {
	t.Helper()
	a, err := agent.New(name, "worker",
		agent.WithCapabilities(caps...),
		agent.WithHandler(func(_ context.Context, task *core.Task) core.TaskResult {
			return core.NewSuccessResult(task.Type, nil)
		}),
	)
	if err != nil {
		t.Fatalf("agent.New: %v", err)
	}
	if err := pool.Register(a); err != nil {
		t.Fatalf("Register: %v", err)
	}
	return a
}

// seedMemories writes three entries in a known creation order, oldest first.
func seedMemories(t *testing.T, st *memory.Store) {
	t.Helper()
	ctx := context.Background()
	seeds := []struct {
		contextType string
		content     string
	}{
		{"task_result", "generated the billing report"},
		{"task_result", "missed the review deadline for sprint 12"},
		{"state_change", "idle -> busy"},
	}
	for _, s := range seeds {
		if _, err := st.Store(ctx, s.contextType, s.content); err != nil {
			t.Fatalf("Store(%s): %v", s.contextType, err)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestAgentStatusTool(t *testing.T) {
	pool := runtime.NewPool()
	tool := &statusTool{pool: pool}

	res, err := tool.Handle(context.Background(), makeReq(nil))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if got := resultText(t, res); !strings.Contains(got, "empty") {
		t.Errorf("empty pool report: got %q", got)
	}

	alpha := newInspectedAgent(t, pool, "alpha", core.CapabilityResearch)
	newInspectedAgent(t, pool, "beta")
	alpha.ExecuteTask(context.Background(), core.NewTask("probe", nil))

	res, err = tool.Handle(context.Background(), makeReq(nil))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	got := resultText(t, res)
	for _, want := range []string{"alpha", "beta", alpha.ID(), string(core.StateIdle), "research", "1 completed"} {
		if !strings.Contains(got, want) {
			t.Errorf("status output missing %q:\n%s", want, got)
		}
	}
}

func TestMemoryStatsTool(t *testing.T) {
	pool := runtime.NewPool()
	a := newInspectedAgent(t, pool, "alpha")
	seedMemories(t, a.Store())
	tool := &statsTool{pool: pool}

	res, err := tool.Handle(context.Background(), makeReq(map[string]any{"agent_id": a.ID()}))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if res.IsError {
		t.Fatalf("unexpected tool error: %s", resultText(t, res))
	}
	got := resultText(t, res)
	for _, want := range []string{"Total entries**: 3", "short_term: 3", "task_result: 2", "state_change: 1"} {
		if !strings.Contains(got, want) {
			t.Errorf("stats output missing %q:\n%s", want, got)
		}
	}
}

func TestMemoryStatsToolValidation(t *testing.T) {
	pool := runtime.NewPool()
	tool := &statsTool{pool: pool}

	res, err := tool.Handle(context.Background(), makeReq(nil))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if !res.IsError || !strings.Contains(resultText(t, res), "agent_id is required") {
		t.Errorf("missing agent_id should fail: %s", resultText(t, res))
	}

	res, err = tool.Handle(context.Background(), makeReq(map[string]any{"agent_id": "ghost"}))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if !res.IsError || !strings.Contains(resultText(t, res), "unknown agent") {
		t.Errorf("unknown agent should fail: %s", resultText(t, res))
	}
}

func TestMemoryRecentTool(t *testing.T) {
	pool := runtime.NewPool()
	a := newInspectedAgent(t, pool, "alpha")
	seedMemories(t, a.Store())
	tool := &recentTool{pool: pool}

	res, err := tool.Handle(context.Background(), makeReq(map[string]any{
		"agent_id": a.ID(),
		"limit":    float64(2),
	}))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	got := resultText(t, res)
	if strings.Contains(got, "billing report") {
		t.Errorf("limit 2 should drop the oldest entry:\n%s", got)
	}
	first := strings.Index(got, "idle -> busy")
	second := strings.Index(got, "review deadline")
	if first < 0 || second < 0 || first > second {
		t.Errorf("entries should list newest first:\n%s", got)
	}
}

func TestMemoryRecentToolContextFilter(t *testing.T) {
	pool := runtime.NewPool()
	a := newInspectedAgent(t, pool, "alpha")
	seedMemories(t, a.Store())
	tool := &recentTool{pool: pool}

	res, err := tool.Handle(context.Background(), makeReq(map[string]any{
		"agent_id":     a.ID(),
		"context_type": "state_change",
	}))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	got := resultText(t, res)
	if !strings.Contains(got, "idle -> busy") || strings.Contains(got, "task_result") {
		t.Errorf("filter should keep only state_change entries:\n%s", got)
	}

	res, err = tool.Handle(context.Background(), makeReq(map[string]any{
		"agent_id":     a.ID(),
		"context_type": "handoff",
	}))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if got := resultText(t, res); !strings.Contains(got, `no "handoff" entries`) {
		t.Errorf("empty filter result message: got %q", got)
	}
}

func TestMemorySearchTool(t *testing.T) {
	pool := runtime.NewPool()
	a := newInspectedAgent(t, pool, "alpha")
	seedMemories(t, a.Store())
	tool := &searchTool{pool: pool}

	res, err := tool.Handle(context.Background(), makeReq(map[string]any{
		"agent_id": a.ID(),
		"query":    "deadline",
	}))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	got := resultText(t, res)
	if !strings.Contains(got, "review deadline") {
		t.Errorf("search should surface the matching entry:\n%s", got)
	}
	if !strings.Contains(got, "similarity 0.50") {
		t.Errorf("cache fallback reports similarity 0.50:\n%s", got)
	}
	if strings.Contains(got, "billing report") {
		t.Errorf("non-matching entries should be absent:\n%s", got)
	}

	res, err = tool.Handle(context.Background(), makeReq(map[string]any{
		"agent_id": a.ID(),
		"query":    "quarterly forecast",
	}))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if got := resultText(t, res); !strings.Contains(got, "No memory") {
		t.Errorf("no-match message: got %q", got)
	}
}

func TestMemorySearchToolValidation(t *testing.T) {
	pool := runtime.NewPool()
	a := newInspectedAgent(t, pool, "alpha")
	tool := &searchTool{pool: pool}

	res, err := tool.Handle(context.Background(), makeReq(map[string]any{"agent_id": a.ID()}))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if !res.IsError || !strings.Contains(resultText(t, res), "query is required") {
		t.Errorf("missing query should fail: %s", resultText(t, res))
	}
}

// bareAgent implements core.Agent without a memory store.
type bareAgent struct {
	id string
}

func (a *bareAgent) ID() string                                   { return a.id }
func (a *bareAgent) Name() string                                 { return a.id }
func (a *bareAgent) Type() string                                 { return "bare" }
func (a *bareAgent) State() core.AgentState                       { return core.StateIdle }
func (a *bareAgent) Capabilities() []core.Capability              { return nil }
func (a *bareAgent) ReceiveMessage(context.Context, core.Message) {}
func (a *bareAgent) Shutdown(context.Context)                     {}

func (a *bareAgent) ExecuteTask(_ context.Context, task *core.Task) core.TaskResult {
	return core.NewSuccessResult(task.Type, nil)
}

func (a *bareAgent) StatusInfo() core.StatusInfo {
	return core.StatusInfo{ID: a.id, Name: a.id, Type: "bare", State: core.StateIdle}
}

func TestAgentStoreRequiresHolder(t *testing.T) {
	pool := runtime.NewPool()
	if err := pool.Register(&bareAgent{id: "bare-1"}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	_, err := agentStore(pool, "bare-1")
	if err == nil || !strings.Contains(err.Error(), "no memory store") {
		t.Errorf("storeless agent: got %v", err)
	}
}

func TestSnippetTruncation(t *testing.T) {
	long := strings.Repeat("word ", 100)
	got := snippet(long)
	if !strings.HasSuffix(got, "...") {
		t.Errorf("long content should be truncated, got %q", got)
	}
	if strings.Contains(got, "\n") {
		t.Error("snippet must be single-line")
	}

	multi := "line one\nline\ttwo"
	if got := snippet(multi); got != "line one line two" {
		t.Errorf("whitespace collapse: got %q", got)
	}
}
