package executor

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	pnpAPIFile    = ".pnp.cjs"
	pnpLoaderFile = ".pnp.loader.mjs"
)

// WithPnP keeps Yarn Plug'n'Play resolution working in child processes. When
// workDir holds a .pnp.cjs runtime, it prepends "--require <.pnp.cjs>" and,
// if present, "--loader <.pnp.loader.mjs>" to args unless an equivalent
// flag is already there. Without a PnP runtime args is returned unchanged.
func WithPnP(workDir string, args []string) []string {
	api := filepath.Join(workDir, pnpAPIFile)
	if !isFile(api) {
		return args
	}

	var injected []string
	if !hasFlag(args, "--require", api) {
		injected = append(injected, "--require", api)
	}
	loader := filepath.Join(workDir, pnpLoaderFile)
	if isFile(loader) && !hasFlag(args, "--loader", loader) {
		injected = append(injected, "--loader", loader)
	}
	if len(injected) == 0 {
		return args
	}
	return append(injected, args...)
}

// hasFlag reports whether args carry flag with value, either as two
// arguments or in the "--flag=value" form.
func hasFlag(args []string, flag, value string) bool {
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == flag {
			if i+1 < len(args) && args[i+1] == value {
				return true
			}
			i++
			continue
		}
		if v, ok := strings.CutPrefix(arg, flag+"="); ok && v == value {
			return true
		}
	}
	return false
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
