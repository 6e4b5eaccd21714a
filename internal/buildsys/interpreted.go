package buildsys

import "path/filepath"

// ExecutionEnv is the environment an interpreted target runs under: no
// compile step, just a module search path that prepends the overlay's
// sub-packages (and a venv's site-packages, if present) ahead of the
// system interpreter's own path, per spec.md §4.6.
type ExecutionEnv struct {
	PythonPath []string
}

// prepareInterpreted builds the PYTHONPATH entries for a Python target:
// the workspace overlay's packages directory first (so an overlay
// version always shadows a system one), then any detected venv.
func prepareInterpreted(t Target, overlayPackagesDir string, venvSitePackages string) ExecutionEnv {
	path := []string{overlayPackagesDir}
	if venvSitePackages != "" {
		path = append(path, venvSitePackages)
	}
	path = append(path, filepath.Dir(t.SourcePath))
	return ExecutionEnv{PythonPath: path}
}
