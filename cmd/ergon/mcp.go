// Copyright 2026 © The Ergon Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"flag"
	"log/slog"

	"github.com/jllopis/ergon/pkg/config"
	"github.com/jllopis/ergon/pkg/errors"
	"github.com/jllopis/ergon/pkg/mcp"
)

// runMCP exposes the agent pool over the Model Context Protocol on stdio.
// The transport owns stdout, so telemetry is forced off; logs go to stderr.
func runMCP(ctx context.Context, flags globalFlags, args []string) {
	cmd := flag.NewFlagSet("mcp", flag.ContinueOnError)
	if err := cmd.Parse(args); err != nil {
		fatal(err)
	}
	ensureNoArgs(cmd.Args())

	// Check the enable gate before constructing anything; a host that
	// forbids the inspection surface should not have its stores opened.
	cfg, err := config.LoadWithCLI(flags.ConfigArgs)
	if err != nil {
		fatal(NewConfigError(err, findConfigPath(flags.ConfigArgs)))
	}
	if !cfg.MCP.Enabled {
		ee := errors.New(errors.CodeConfiguration, "mcp server is disabled in configuration", nil).
			WithRecoverable(false)
		fatal(NewCLIError(ee, "set mcp.enabled: true, or pass --set mcp.enabled=true"))
	}

	parts, err := buildRuntime(ctx, flags, "", true)
	if err != nil {
		fatal(err)
	}
	defer parts.Close()

	server, err := mcp.New(parts.pool, mcp.WithLogger(parts.logger))
	if err != nil {
		fatal(err)
	}

	parts.logger.Info("cli.mcp_start",
		slog.String("agent", parts.cfg.Agent.Name),
		slog.String("memory_store", parts.cfg.Memory.Store),
	)
	if err := server.ServeStdio(); err != nil {
		fatal(err)
	}
}
