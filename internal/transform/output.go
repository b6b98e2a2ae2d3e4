package transform

import (
	"path/filepath"

	"github.com/shinji-kodama/unrun/internal/model"
)

// OutputOptions parameterize the output passes.
type OutputOptions struct {
	// EntryPath is the absolute path of the entry file.
	EntryPath string

	// Wrapper selects the CommonJS wrapper repair.
	Wrapper model.WrapperStrategy
}

// Output applies the output passes to a generated chunk in their fixed
// order.
func Output(code string, opts OutputOptions) string {
	code = BridgeRequire(code, opts.EntryPath)
	code = FixRequireResolve(code, filepath.Dir(opts.EntryPath))
	code = FixRequireTypeof(code)
	switch opts.Wrapper {
	case model.WrapperUnwrap:
		code = UnwrapWrappers(code)
	default:
		code = PromoteAsyncWrappers(code)
	}
	return CustomizeInspect(code)
}
