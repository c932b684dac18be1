// Package mcpserver provides the Model Context Protocol (MCP) server implementation.
//
// The mcpserver package implements an MCP-compliant server that exposes the
// execute_python_code tool backed by the WASI execution sandbox. It uses the
// mark3labs/mcp-go library to handle the protocol details.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/isdmx/wasibox/config"
	"github.com/isdmx/wasibox/sandbox"
)

// MCPServer represents the MCP server
type MCPServer struct {
	config    *config.Config
	logger    *zap.Logger
	executor  sandbox.Executor
	mcpServer *server.MCPServer
}

// New creates a new MCPServer
func New(cfg *config.Config, logger *zap.Logger, executor sandbox.Executor) (*MCPServer, error) {
	s := &MCPServer{
		config:   cfg,
		logger:   logger,
		executor: executor,
	}

	// Log configuration parameters on startup
	logger.Info("configuration loaded",
		zap.String("server.transport", s.config.Server.Transport),
		zap.Int("server.http_port", s.config.Server.HTTPPort),
		zap.Int("sandbox.max_timeout_ms", s.config.Sandbox.MaxTimeoutMs),
		zap.Int("sandbox.default_timeout_ms", s.config.Sandbox.DefaultTimeoutMs),
		zap.Int("sandbox.max_output_bytes", s.config.Sandbox.MaxOutputBytes),
		zap.Int("sandbox.cpu_time_limit_sec", s.config.Sandbox.CPUTimeLimitSec),
		zap.Int("sandbox.memory_limit_mb", s.config.Sandbox.MemoryLimitMB),
		zap.String("runtime.executable", s.config.Runtime.Executable),
		zap.String("runtime.module_path", s.config.Runtime.ModulePath),
		zap.Bool("runtime.isolated", s.config.Runtime.Isolated),
	)

	// Create the MCP server
	s.mcpServer = server.NewMCPServer("wasibox-executor", "A WASI-sandboxed Python execution server")

	// Register the execute_python_code tool
	s.registerExecutePythonCodeTool()

	return s, nil
}

// registerExecutePythonCodeTool registers the execute_python_code tool
func (s *MCPServer) registerExecutePythonCodeTool() {
	tool := mcp.Tool{
		Name:        "execute_python_code",
		Description: "Execute Python code inside an isolated WASI interpreter",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"code": map[string]any{
					"type":        "string",
					"description": "Python source to execute",
				},
				"stdin": map[string]any{
					"type":        "string",
					"description": "Text piped to the program's standard input (optional)",
				},
				"timeout_ms": map[string]any{
					"type":        "integer",
					"description": "Wall-clock budget in milliseconds (optional, clamped to the server ceiling)",
				},
			},
			Required: []string{"code"},
		},
	}

	s.mcpServer.AddTool(tool, s.handleExecutePythonCode)
}

// handleExecutePythonCode handles the execute_python_code tool
func (s *MCPServer) handleExecutePythonCode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.logger.Info("code execution requested")

	// Extract parameters
	code, err := request.RequireString("code")
	if err != nil {
		return nil, fmt.Errorf("code parameter is required: %w", err)
	}

	var stdin *string
	if stdinStr := request.GetString("stdin", ""); stdinStr != "" {
		stdin = &stdinStr
	}

	// The MCP surface clamps rather than rejects out-of-range budgets
	timeoutMs := request.GetInt("timeout_ms", s.config.Sandbox.DefaultTimeoutMs)
	if timeoutMs < 1 {
		timeoutMs = s.config.Sandbox.DefaultTimeoutMs
	}
	if timeoutMs > s.config.Sandbox.MaxTimeoutMs {
		timeoutMs = s.config.Sandbox.MaxTimeoutMs
	}

	s.logger.Info("executing code in sandbox",
		zap.Int("code_len", len(code)),
		zap.Int("timeout_ms", timeoutMs),
		zap.Bool("has_stdin", stdin != nil))

	// Execute the code
	result, err := s.executor.Execute(ctx, sandbox.ExecuteRequest{
		Code:      code,
		Stdin:     stdin,
		TimeoutMs: timeoutMs,
	})
	if err != nil {
		s.logger.Error("sandbox execution failed", zap.Error(err))
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				mcp.TextContent{
					Type: "text",
					Text: fmt.Sprintf("Execution failed: %v", err),
				},
			},
			IsError: true,
		}, nil
	}

	// Log execution result
	s.logger.Info("code execution completed",
		zap.Bool("timed_out", result.TimedOut),
		zap.Int64("duration_ms", result.DurationMs),
		zap.Int("stdout_len", len(result.Stdout)),
		zap.Int("stderr_len", len(result.Stderr)))

	resultJSON, err := json.Marshal(map[string]any{
		"stdout":      result.Stdout,
		"stderr":      result.Stderr,
		"exit_code":   result.ExitCode,
		"timed_out":   result.TimedOut,
		"duration_ms": result.DurationMs,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{
				Type: "text",
				Text: string(resultJSON),
			},
		},
	}, nil
}

// ServeStdio starts the server on stdio
func (s *MCPServer) ServeStdio() error {
	s.logger.Info("starting MCP server on stdio")
	return server.ServeStdio(s.mcpServer)
}

// ServeHTTP starts the server on HTTP
func (s *MCPServer) ServeHTTP() error {
	port := s.config.Server.HTTPPort
	s.logger.Info("starting MCP server on HTTP", zap.Int("port", port))

	httpServer := server.NewStreamableHTTPServer(s.mcpServer)
	return httpServer.Start(fmt.Sprintf(":%d", port))
}

// GetMCPServer returns the underlying MCP server for fx
func (s *MCPServer) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}
