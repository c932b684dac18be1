// Package mcpserver provides the Model Context Protocol (MCP) server implementation.
//
// The mcpserver package implements an MCP-compliant server that exposes the
// execute_python_code tool as an alternative surface over the same WASI
// execution sandbox the HTTP API uses. It relies on the mark3labs/mcp-go
// library for the protocol details and supports stdio and HTTP transports.
//
// Usage:
//
//	server, err := mcpserver.New(config, logger, executor)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = server.ServeStdio() // or server.ServeHTTP()
package mcpserver
