package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/jllopis/ergon/pkg/runtime"
)

// statusTool handles the agent_status tool.
type statusTool struct {
	pool *runtime.Pool
}

func (t *statusTool) Definition() mcp.Tool {
	return mcp.NewTool("agent_status",
		mcp.WithDescription("Snapshot every agent registered in the pool: identity, state, capabilities, and task counters."),
	)
}

func (t *statusTool) Handle(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	infos := t.pool.List()
	if len(infos) == 0 {
		return mcp.NewToolResultText("The agent pool is empty."), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Agent pool: %d agent(s)\n\n", len(infos))
	for _, info := range infos {
		fmt.Fprintf(&sb, "### %s (%s)\n\n", info.Name, info.ID)
		fmt.Fprintf(&sb, "- **Type**: %s\n", info.Type)
		fmt.Fprintf(&sb, "- **State**: %s\n", info.State)
		if info.CurrentTaskID != "" {
			fmt.Fprintf(&sb, "- **Current task**: %s\n", info.CurrentTaskID)
		}
		if len(info.Capabilities) > 0 {
			caps := make([]string, 0, len(info.Capabilities))
			for _, c := range info.Capabilities {
				caps = append(caps, string(c))
			}
			fmt.Fprintf(&sb, "- **Capabilities**: %s\n", strings.Join(caps, ", "))
		}
		fmt.Fprintf(&sb, "- **Tasks**: %d completed, %d failed", info.TasksCompleted, info.TasksFailed)
		if info.TasksCompleted+info.TasksFailed > 0 {
			fmt.Fprintf(&sb, " (%.0f%% success)", info.SuccessRate*100)
		}
		sb.WriteString("\n")
		if info.AverageExecutionTime > 0 {
			fmt.Fprintf(&sb, "- **Average execution**: %s\n", info.AverageExecutionTime.Round(time.Millisecond))
		}
		sb.WriteString("\n")
	}
	return mcp.NewToolResultText(sb.String()), nil
}
