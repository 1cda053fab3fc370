package selectors

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/mod/modfile"
	"golang.org/x/mod/module"
)

const (
	AllPackages   = "./..."
	recursiveTail = "/..."
)

// Resolve turns the configured selectors into package patterns relative to
// workDir. An empty list selects every package. Relative patterns must
// point at an existing directory inside workDir, import paths must belong to
// the module declared in workDir/go.mod.
func Resolve(workDir string, selectors []string) ([]string, error) {
	if len(selectors) == 0 {
		return []string{AllPackages}, nil
	}

	var modulePath string
	resolved := make([]string, 0, len(selectors))
	for _, sel := range selectors {
		sel = strings.TrimSpace(sel)
		if sel == "" {
			return nil, fmt.Errorf("empty test selector")
		}

		if isRelative(sel) {
			if err := checkDir(workDir, strings.TrimSuffix(sel, recursiveTail)); err != nil {
				return nil, fmt.Errorf("selector %q: %w", sel, err)
			}
			resolved = append(resolved, sel)
			continue
		}

		if modulePath == "" {
			var err error
			if modulePath, err = ModulePath(workDir); err != nil {
				return nil, fmt.Errorf("selector %q: %w", sel, err)
			}
		}
		rel, err := relativeTo(modulePath, sel)
		if err != nil {
			return nil, fmt.Errorf("selector %q: %w", sel, err)
		}
		if err := checkDir(workDir, strings.TrimSuffix(rel, recursiveTail)); err != nil {
			return nil, fmt.Errorf("selector %q: %w", sel, err)
		}
		resolved = append(resolved, rel)
	}
	return resolved, nil
}

// ModulePath reads the module path from workDir/go.mod
func ModulePath(workDir string) (string, error) {
	goModPath := filepath.Join(workDir, "go.mod")
	goModContent, err := os.ReadFile(goModPath)
	if err != nil {
		return "", fmt.Errorf("failed to read go.mod: %w", err)
	}

	modFile, err := modfile.Parse(goModPath, goModContent, nil)
	if err != nil {
		return "", fmt.Errorf("failed to parse go.mod: %w", err)
	}
	if modFile.Module == nil || modFile.Module.Mod.Path == "" {
		return "", fmt.Errorf("could not find module name in go.mod")
	}
	return modFile.Module.Mod.Path, nil
}

func isRelative(sel string) bool {
	return sel == "." || sel == ".." || strings.HasPrefix(sel, "./") || strings.HasPrefix(sel, "../")
}

// relativeTo translates an import path pattern of the module into a relative pattern
func relativeTo(modulePath, sel string) (string, error) {
	pkg := strings.TrimSuffix(sel, recursiveTail)
	recursive := pkg != sel

	if err := module.CheckImportPath(pkg); err != nil {
		return "", err
	}

	var rel string
	switch {
	case pkg == modulePath:
		rel = "."
	case strings.HasPrefix(pkg, modulePath+"/"):
		rel = "./" + strings.TrimPrefix(pkg, modulePath+"/")
	default:
		return "", fmt.Errorf("package %s is not in module %s", pkg, modulePath)
	}

	if recursive {
		if rel == "." {
			return AllPackages, nil
		}
		rel += recursiveTail
	}
	return rel, nil
}

func checkDir(workDir, rel string) error {
	dir := filepath.Join(workDir, filepath.FromSlash(rel))
	inside, err := filepath.Rel(workDir, dir)
	if err != nil || inside == ".." || strings.HasPrefix(inside, ".."+string(filepath.Separator)) {
		return fmt.Errorf("%s is outside of %s", rel, workDir)
	}

	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("no such package directory %s", dir)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}
	return nil
}
