package envsetup

import (
	"context"
	"strings"
)

// PathVariable is the user-scope search path variable on Windows.
const PathVariable = "Path"

// Windows persists the debug pointer and PATH reference in the user
// environment. Both writes are skipped when the value is already correct.
type Windows struct {
	Store    Store
	DebugEnv string
}

// Configure implements Configurator.
func (w *Windows) Configure(ctx context.Context, target string) (Result, error) {
	res := Result{Target: target}

	current, err := w.Store.Get(ctx, w.DebugEnv)
	if err != nil {
		return res, err
	}
	if current != target {
		if err := w.Store.Set(ctx, w.DebugEnv, target); err != nil {
			return res, err
		}
		res.PointerUpdated = true
	}

	path, err := w.Store.Get(ctx, PathVariable)
	if err != nil {
		return res, err
	}
	if !referencesTarget(path, w.DebugEnv, target) {
		if err := w.Store.Set(ctx, PathVariable, appendPathEntry(path, "%"+w.DebugEnv+"%")); err != nil {
			return res, err
		}
		res.PathUpdated = true
	}
	return res, nil
}

// referencesTarget reports whether path already mentions the debug variable
// by name or the target directory literally. Windows compares both
// case-insensitively.
func referencesTarget(path, debugEnv, target string) bool {
	lower := strings.ToLower(path)
	if strings.Contains(lower, "%"+strings.ToLower(debugEnv)+"%") {
		return true
	}
	literal := strings.ToLower(strings.TrimRight(target, `\/`))
	return literal != "" && strings.Contains(lower, literal)
}

func appendPathEntry(path, entry string) string {
	trimmed := strings.TrimRight(path, ";")
	if trimmed == "" {
		return entry
	}
	return trimmed + ";" + entry
}
