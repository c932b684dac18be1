// Package config provides application configuration management.
//
// The config package handles loading and validation of the application's
// configuration from YAML files and environment variables. It covers server
// settings, sandbox execution limits, and the WASI runtime invocation
// settings (runtime CLI, interpreter module path, extra arguments).
//
// Usage:
//
//	cfg, err := config.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Runtime module: %s\n", cfg.Runtime.ModulePath)
package config
