// Package selector walks a project tree and produces the candidate file list
// handed to the external formatter.
package selector

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/codetidy/crustfmt/internal/config"
)

// CollectFiles walks the configured root recursively and returns the canonical
// absolute paths of every regular file matching the configured extensions,
// with excluded paths removed. Order is traversal order and carries no
// semantic meaning. A non-existent root yields an empty list, not an error.
func CollectFiles(settings config.Settings) ([]string, error) {
	rootInformation, statError := os.Stat(settings.Root)
	if statError != nil {
		if os.IsNotExist(statError) {
			return nil, nil
		}
		return nil, fmt.Errorf("stat root %s: %w", settings.Root, statError)
	}
	if !rootInformation.IsDir() {
		return nil, fmt.Errorf("root %s is not a directory", settings.Root)
	}

	var selectedFiles []string
	walkFunction := func(currentPath string, directoryEntry fs.DirEntry, walkError error) error {
		if walkError != nil {
			return walkError
		}
		resolvedPath := canonicalPath(currentPath)
		if directoryEntry.IsDir() {
			if isPathUnderAny(resolvedPath, settings.ExcludedDirectories) {
				return filepath.SkipDir
			}
			return nil
		}
		if !directoryEntry.Type().IsRegular() {
			return nil
		}
		if !HasMatchingExtension(currentPath, settings.Extensions) {
			return nil
		}
		if IsPathExcluded(resolvedPath, settings) {
			return nil
		}
		selectedFiles = append(selectedFiles, resolvedPath)
		return nil
	}

	if walkError := filepath.WalkDir(settings.Root, walkFunction); walkError != nil {
		return nil, fmt.Errorf("walking %s: %w", settings.Root, walkError)
	}
	return selectedFiles, nil
}

// HasMatchingExtension reports whether the path carries one of the configured extensions.
func HasMatchingExtension(path string, extensions []string) bool {
	pathExtension := filepath.Ext(path)
	for _, extension := range extensions {
		if pathExtension == extension {
			return true
		}
	}
	return false
}

// IsPathExcluded reports whether the canonical absolute path is removed by the
// exclusion set: either it lies under an excluded directory or it exactly
// equals an excluded file path.
func IsPathExcluded(absolutePath string, settings config.Settings) bool {
	if isPathUnderAny(absolutePath, settings.ExcludedDirectories) {
		return true
	}
	for _, excludedFile := range settings.ExcludedFiles {
		if absolutePath == excludedFile {
			return true
		}
	}
	return false
}

// isPathUnderAny reports whether the candidate path equals or descends from
// any of the listed directories. Containment is separator-bounded, so an
// exclusion entry for "src" never captures a sibling named "srcfoo".
func isPathUnderAny(candidatePath string, directories []string) bool {
	for _, directoryPath := range directories {
		if candidatePath == directoryPath {
			return true
		}
		if strings.HasPrefix(candidatePath, directoryPath+string(os.PathSeparator)) {
			return true
		}
	}
	return false
}

// canonicalPath resolves symlinks for existing paths and cleans the rest.
func canonicalPath(path string) string {
	resolvedPath, resolveError := filepath.EvalSymlinks(path)
	if resolveError != nil {
		cleanedPath, absoluteError := filepath.Abs(path)
		if absoluteError != nil {
			return filepath.Clean(path)
		}
		return cleanedPath
	}
	return resolvedPath
}
