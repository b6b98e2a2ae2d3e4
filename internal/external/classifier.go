// Package external decides which import specifiers stay external (loaded
// natively at run time) and which are inlined into the generated artifact.
package external

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Decision is the outcome of classifying one import.
type Decision int

const (
	// Skip leaves the specifier to the bundler untouched (empty or virtual
	// specifiers).
	Skip Decision = iota
	// Inline bundles the resolved file into the artifact.
	Inline
	// External keeps the import and lets the runtime resolve it.
	External
)

// String returns the decision name.
func (d Decision) String() string {
	switch d {
	case Skip:
		return "skip"
	case Inline:
		return "inline"
	case External:
		return "external"
	default:
		return "unknown"
	}
}

// DefaultCacheSize bounds the number of memoised decisions.
const DefaultCacheSize = 1024

// ResolveFunc resolves a bare specifier from resolveDir to an absolute file
// path the way the native loader would.
type ResolveFunc func(specifier, resolveDir string) (string, error)

// Classifier classifies imports for a single bundle invocation.
type Classifier struct {
	entryDir           string
	projectNodeModules string
	resolve            ResolveFunc
	cache              *lru.Cache[string, Decision]
	logger             *log.Logger
}

// New returns a Classifier for the entry file at entryPath inside the
// project rooted at workDir. A nil resolve falls back to PackageDirResolve.
func New(entryPath, workDir string, resolve ResolveFunc, logger *log.Logger) *Classifier {
	if resolve == nil {
		resolve = PackageDirResolve
	}
	if logger == nil {
		logger = log.Default()
	}
	// lru.New only fails for a non-positive size.
	cache, _ := lru.New[string, Decision](DefaultCacheSize)
	return &Classifier{
		entryDir:           filepath.Dir(entryPath),
		projectNodeModules: filepath.Join(workDir, "node_modules"),
		resolve:            resolve,
		cache:              cache,
		logger:             logger,
	}
}

// Classify decides how the import of specifier from importer is handled.
// importer may be empty or virtual, in which case resolution starts from
// the entry directory.
func (c *Classifier) Classify(specifier, importer string) Decision {
	if specifier == "" || strings.HasPrefix(specifier, "\x00") {
		return Skip
	}
	if strings.HasPrefix(specifier, ".") || strings.HasPrefix(specifier, "/") ||
		strings.HasPrefix(specifier, "#") || filepath.IsAbs(specifier) {
		return Inline
	}
	if IsBuiltin(specifier) {
		return External
	}

	resolveDir := c.entryDir
	if importer != "" && !strings.HasPrefix(importer, "\x00") && filepath.IsAbs(importer) {
		resolveDir = filepath.Dir(importer)
	}

	key := specifier + "\x00" + resolveDir
	if d, ok := c.cache.Get(key); ok {
		return d
	}

	d := c.classifyResolved(specifier, resolveDir)
	c.cache.Add(key, d)
	c.logger.Debug("classified import", "specifier", specifier, "from", resolveDir, "decision", d)
	return d
}

func (c *Classifier) classifyResolved(specifier, resolveDir string) Decision {
	resolved, err := c.resolve(specifier, resolveDir)
	if err != nil || resolved == "" {
		return External
	}

	root := OwnerRoot(resolved)
	if root == "" {
		// Not owned by any dependency directory: a linked local package.
		return Inline
	}
	if isWithin(root, c.entryDir) {
		return External
	}
	if root == c.projectNodeModules {
		return External
	}
	if isWithin(c.entryDir, root) {
		return Inline
	}
	return External
}

// OwnerRoot returns the outermost node_modules directory on path, or the
// empty string when path has no node_modules segment.
func OwnerRoot(path string) string {
	parts := strings.Split(filepath.Clean(path), string(filepath.Separator))
	for i, part := range parts {
		if part == "node_modules" {
			return strings.Join(parts[:i+1], string(filepath.Separator))
		}
	}
	return ""
}

// isWithin reports whether path equals dir or lies below it.
func isWithin(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// PackageDirResolve locates the package directory for specifier by walking
// node_modules directories upward from resolveDir. It returns the package
// directory rather than its entry file, which is all ownership needs.
func PackageDirResolve(specifier, resolveDir string) (string, error) {
	name := packageName(specifier)
	for dir := resolveDir; ; {
		candidate := filepath.Join(dir, "node_modules", filepath.FromSlash(name))
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			if real, err := filepath.EvalSymlinks(candidate); err == nil {
				return real, nil
			}
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", os.ErrNotExist
		}
		dir = parent
	}
}

// packageName strips any subpath from a bare specifier, keeping the scope
// of scoped packages.
func packageName(specifier string) string {
	parts := strings.Split(specifier, "/")
	if strings.HasPrefix(specifier, "@") && len(parts) > 1 {
		return parts[0] + "/" + parts[1]
	}
	return parts[0]
}
