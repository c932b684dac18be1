// Package main is the entry point for the wasibox execution server.
//
// The wasibox server executes untrusted Python snippets inside a WASI
// interpreter sandbox and returns captured output, exit status, and
// timing over a JSON HTTP API or an MCP stdio transport.
package main
