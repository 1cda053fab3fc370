package testreport

import (
	"path/filepath"
)

// fileURL renders an absolute path as a file:// URL
func fileURL(path string) string {
	return "file://" + filepath.ToSlash(path)
}
