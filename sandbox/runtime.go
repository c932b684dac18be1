package sandbox

import (
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/google/shlex"
)

// guestPrefix is where the Python installation tree is mounted inside the
// WASI guest. It is the only host directory the child can see.
const guestPrefix = "/python"

const wasmMagic = "\x00asm"

// wasmBootstrapScript runs inside the interpreter before the user code.
// It wires the guest stdlib paths and decodes the user program from the
// PY_CODE_B64 environment variable, so the code never touches a temp file.
const wasmBootstrapScript = `import base64, os as _os, sys as _sys
_prefix = _os.environ.get('PYTHON_WASM_PREFIX')
if _prefix:
    _sys.prefix = _sys.exec_prefix = _prefix
_paths = _os.environ.get('PYTHON_WASM_STDLIB_PATHS')
if _paths:
    _entries = [p for p in _paths.split(':') if p]
    for _entry in reversed(_entries):
        if _entry not in _sys.path:
            _sys.path.insert(0, _entry)
_code = base64.b64decode(_os.environ['PY_CODE_B64']).decode('utf-8')
_globals = {'__name__': '__main__'}
exec(compile(_code, '<user_code>', 'exec'), _globals)`

// ResolvedRuntime describes a validated WASI runtime invocation target
type ResolvedRuntime struct {
	// RuntimePath is the absolute path of the runtime CLI binary.
	RuntimePath string
	// ModulePath is the absolute path of the python.wasm module.
	ModulePath string
	// ExtraArgs are configured additional runtime arguments.
	ExtraArgs []string
	// StdlibPaths are guest-side Python stdlib search paths.
	StdlibPaths []string
	// HostMapping is the host::guest --dir mapping for the Python tree.
	HostMapping string
}

// RuntimeResolver locates and validates the WASI runtime and module
type RuntimeResolver interface {
	Resolve() (*ResolvedRuntime, error)
}

// realRuntimeResolver resolves against the actual filesystem and PATH
type realRuntimeResolver struct {
	cfg *Config
}

func (r *realRuntimeResolver) Resolve() (*ResolvedRuntime, error) {
	runtimePath := locateRuntime(r.cfg.RuntimeExecutable)
	if runtimePath == "" {
		runtimePath = locateRuntime("wasmtime")
	}
	if runtimePath == "" {
		for _, candidate := range defaultRuntimeCandidates() {
			if isExecutableFile(candidate) {
				runtimePath = candidate
				break
			}
		}
	}
	if runtimePath == "" {
		return nil, fmt.Errorf("WASI runtime binary not found: set runtime.executable (or PYTHON_WASM_RUNTIME) to the CLI, e.g. wasmtime")
	}

	modulePath := r.cfg.RuntimeModulePath
	if modulePath == "" {
		return nil, fmt.Errorf("runtime.module_path (or PYTHON_WASM_PATH) must point to python.wasm")
	}
	info, err := os.Stat(modulePath)
	if err != nil {
		return nil, fmt.Errorf("WASI module not found at %s: %w", modulePath, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("runtime.module_path must point to a WebAssembly binary, but a directory was provided: %s", modulePath)
	}
	absModule, err := filepath.Abs(modulePath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve module path %s: %w", modulePath, err)
	}
	if magicErr := checkWasmMagic(absModule); magicErr != nil {
		return nil, magicErr
	}

	extraArgs, err := shlex.Split(r.cfg.RuntimeExtraArgs)
	if err != nil {
		return nil, fmt.Errorf("invalid runtime.extra_args: %w", err)
	}

	pythonRoot := filepath.Dir(absModule)
	return &ResolvedRuntime{
		RuntimePath: runtimePath,
		ModulePath:  absModule,
		ExtraArgs:   extraArgs,
		StdlibPaths: discoverStdlibPaths(pythonRoot, guestPrefix),
		HostMapping: pythonRoot + "::" + strings.TrimPrefix(guestPrefix, "/"),
	}, nil
}

// locateRuntime resolves an executable name or path to an absolute binary
// path, returning "" when nothing usable is found
func locateRuntime(executable string) string {
	if executable == "" {
		return ""
	}
	if filepath.IsAbs(executable) || strings.ContainsRune(executable, os.PathSeparator) {
		abs, err := filepath.Abs(executable)
		if err != nil || !isExecutableFile(abs) {
			return ""
		}
		return abs
	}
	path, err := exec.LookPath(executable)
	if err != nil {
		return ""
	}
	return path
}

func isExecutableFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular() && info.Mode().Perm()&0o111 != 0
}

// defaultRuntimeCandidates lists conventional wasmtime install locations
func defaultRuntimeCandidates() []string {
	candidates := []string{
		"/opt/homebrew/bin/wasmtime",
		"/usr/local/bin/wasmtime",
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates,
			filepath.Join(home, ".wasmtime", "bin", "wasmtime"),
			filepath.Join(home, ".cargo", "bin", "wasmtime"),
		)
	}
	return candidates
}

// checkWasmMagic verifies the file starts with the WebAssembly magic, so a
// misconfigured path (say, the runtime binary itself) fails fast
func checkWasmMagic(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("unable to read WASI module %s: %w", path, err)
	}
	defer file.Close()

	magic := make([]byte, len(wasmMagic))
	if _, err := io.ReadFull(file, magic); err != nil || string(magic) != wasmMagic {
		return fmt.Errorf("%s is not a valid WebAssembly module (missing \\0asm magic); check that it points at python.wasm, not the runtime binary", path)
	}
	return nil
}

var pythonVersionDir = regexp.MustCompile(`^python\d+(\.\d+)?$`)

// discoverStdlibPaths maps the Python stdlib tree next to the wasm module
// into guest paths. A missing tree yields no paths, not an error: a
// fully self-contained module needs none.
func discoverStdlibPaths(pythonRoot, guestPrefix string) []string {
	libRoot := filepath.Join(pythonRoot, "lib")
	entries, err := os.ReadDir(libRoot)
	if err != nil {
		return nil
	}

	versionDir := ""
	for _, entry := range entries {
		if entry.IsDir() && pythonVersionDir.MatchString(entry.Name()) {
			versionDir = entry.Name()
			break
		}
	}
	if versionDir == "" {
		return nil
	}

	guestBase := guestPrefix + "/lib/" + versionDir
	paths := []string{guestBase}
	for _, subdir := range []string{"lib-dynload", "site-packages"} {
		if info, statErr := os.Stat(filepath.Join(libRoot, versionDir, subdir)); statErr == nil && info.IsDir() {
			paths = append(paths, guestBase+"/"+subdir)
		}
	}

	zips, _ := filepath.Glob(filepath.Join(libRoot, "python*.zip"))
	sort.Strings(zips)
	for _, zip := range zips {
		paths = append(paths, guestPrefix+"/lib/"+filepath.Base(zip))
	}
	return paths
}

// envPair is one KEY=VALUE forwarded into the guest environment
type envPair struct {
	Key   string
	Value string
}

// hasDirMapping reports whether args already carry a --dir mapping onto
// the guest prefix, so configured extra args win over the generated one
func hasDirMapping(args []string, guestPrefix string) bool {
	targetSuffix := "::" + strings.TrimPrefix(guestPrefix, "/")
	for i, arg := range args {
		if arg == "--dir" {
			if i+1 < len(args) && strings.HasSuffix(args[i+1], targetSuffix) {
				return true
			}
		} else if strings.HasPrefix(arg, "--dir=") && strings.HasSuffix(arg[len("--dir="):], targetSuffix) {
			return true
		}
	}
	return false
}

// ensureEnvArg appends an --env KEY=VALUE unless the key is already set
func ensureEnvArg(args []string, key, value string) []string {
	prefix := key + "="
	for i, arg := range args {
		if arg == "--env" {
			if i+1 < len(args) && strings.HasPrefix(args[i+1], prefix) {
				return args
			}
		} else if strings.HasPrefix(arg, "--env=") && strings.HasPrefix(arg[len("--env="):], prefix) {
			return args
		}
	}
	return append(args, "--env", key+"="+value)
}

// buildInvocation assembles the runtime argv and process environment for
// one execution. The user code travels base64-encoded in PY_CODE_B64.
func buildInvocation(rt *ResolvedRuntime, code string, isolated bool) (args, env []string) {
	encoded := base64.StdEncoding.EncodeToString([]byte(code))
	stdlibPathStr := strings.Join(rt.StdlibPaths, ":")

	updates := []envPair{
		{"PYTHONUNBUFFERED", "1"},
		{"PY_CODE_B64", encoded},
		{"PYTHON_WASM_PREFIX", guestPrefix},
		{"PYTHON_WASM_STDLIB_PATHS", stdlibPathStr},
		{"PYTHONHOME", guestPrefix},
	}
	if stdlibPathStr != "" {
		updates = append(updates, envPair{"PYTHONPATH", stdlibPathStr})
	}

	runtimeArgs := append([]string{}, rt.ExtraArgs...)
	if !hasDirMapping(runtimeArgs, guestPrefix) {
		runtimeArgs = append(runtimeArgs, "--dir", rt.HostMapping)
	}
	for _, pair := range updates {
		runtimeArgs = ensureEnvArg(runtimeArgs, pair.Key, pair.Value)
	}

	args = append([]string{"run"}, runtimeArgs...)
	args = append(args, rt.ModulePath)
	if isolated {
		args = append(args, "-I")
	}
	args = append(args, "-c", wasmBootstrapScript)

	env = os.Environ()
	for _, pair := range updates {
		env = append(env, pair.Key+"="+pair.Value)
	}
	return args, env
}
