// Package main is the entry point for the wasibox execution server.
//
// The wasibox server executes untrusted Python snippets inside a WASI
// interpreter module (CPython compiled to WebAssembly, run through an
// external runtime CLI such as wasmtime) and reports captured output,
// exit status, and timing. It serves a JSON HTTP API or an MCP stdio
// transport depending on configuration.
//
// The application uses Uber's fx framework for dependency injection and
// lifecycle management, with zap for structured logging and viper for
// configuration.
package main

import (
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/isdmx/wasibox/config"
	"github.com/isdmx/wasibox/httpserver"
	"github.com/isdmx/wasibox/logger"
	"github.com/isdmx/wasibox/mcpserver"
	"github.com/isdmx/wasibox/sandbox"
)

func main() {
	app := fx.New(
		// Provide dependencies
		fx.Provide(
			// Config
			config.New,

			// Logger with configuration
			logger.NewFromConfig,

			// WASI sandbox executor
			sandbox.NewExecutor,

			// HTTP API server
			httpserver.New,

			// MCP Server
			mcpserver.New,
		),

		// Start the appropriate transport based on config
		fx.Invoke(
			func(cfg *config.Config, httpSrv *httpserver.Server, mcpSrv *mcpserver.MCPServer) {
				switch cfg.Server.Transport {
				case "http":
					go func() {
						if err := httpSrv.Start(); err != nil {
							panic(err)
						}
					}()
				case "stdio":
					go func() {
						if err := mcpSrv.ServeStdio(); err != nil {
							panic(err)
						}
					}()
				default:
					panic("unsupported transport: " + cfg.Server.Transport)
				}
			},
		),

		// Use the application logger for fx logs
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
	)

	// Start the application
	app.Run()
}
