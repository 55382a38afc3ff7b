// Package utils provides path handling and atomic file helpers.
package utils

import (
	"path/filepath"
	"strings"
)

// CanonicalizePath converts a path to its canonical form by:
// 1. Converting to absolute path
// 2. Resolving symlinks
//
// If either step fails, it falls back to the best available form:
// - If symlink resolution fails, returns absolute path
// - If absolute path conversion fails, returns original path
//
// This function is used to ensure consistent path handling across the
// codebase, particularly for WARDEN_STATE_DIR environment variable
// processing.
func CanonicalizePath(path string) string {
	// Try to get absolute path
	absPath, err := filepath.Abs(path)
	if err != nil {
		// If we can't get absolute path, return original
		return path
	}

	// Try to resolve symlinks
	canonical, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		// If we can't resolve symlinks, return absolute path
		return absPath
	}

	return canonical
}

// RepoSlug converts a repo identifier like "acme/widgets" into a form safe
// for use in file names. Path separators and other unsafe characters are
// replaced with "__".
func RepoSlug(repo string) string {
	r := strings.NewReplacer("/", "__", "\\", "__", ":", "__", " ", "_")
	return r.Replace(repo)
}
