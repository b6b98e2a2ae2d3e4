package transform

import (
	"os"
	"path/filepath"
	"strings"
)

// typedAliases maps plain-script extensions to their typed-source
// counterparts, in lookup order.
var typedAliases = []struct{ from, to string }{
	{".js", ".ts"},
	{".mjs", ".mts"},
	{".cjs", ".cts"},
	{".jsx", ".tsx"},
}

// ResolveTypedAlias maps a relative or absolute specifier with a
// plain-script extension onto a same-named typed source in resolveDir when
// only the typed file exists. It returns the absolute path of the typed
// file and true on a match.
func ResolveTypedAlias(specifier, resolveDir string) (string, bool) {
	if !isPathSpecifier(specifier) {
		return "", false
	}
	for _, alias := range typedAliases {
		if !strings.HasSuffix(specifier, alias.from) {
			continue
		}
		plain := specifier
		if !filepath.IsAbs(plain) {
			plain = filepath.Join(resolveDir, filepath.FromSlash(specifier))
		}
		if fileExists(plain) {
			return "", false
		}
		typed := strings.TrimSuffix(plain, alias.from) + alias.to
		if fileExists(typed) {
			return typed, true
		}
		return "", false
	}
	return "", false
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
