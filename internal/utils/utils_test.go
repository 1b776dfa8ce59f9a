package utils_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/codetidy/crustfmt/internal/utils"
)

// TestFindGitDirectoryLocatesRepositoryRoot verifies the upward search for the .git directory.
func TestFindGitDirectoryLocatesRepositoryRoot(testingHandle *testing.T) {
	repositoryRoot, resolveError := filepath.EvalSymlinks(testingHandle.TempDir())
	if resolveError != nil {
		testingHandle.Fatalf("failed to resolve temporary directory: %v", resolveError)
	}
	if makeDirError := os.MkdirAll(filepath.Join(repositoryRoot, utils.GitDirectoryName), 0o755); makeDirError != nil {
		testingHandle.Fatalf("failed to create git directory: %v", makeDirError)
	}
	nestedDirectory := filepath.Join(repositoryRoot, "src", "deep")
	if makeDirError := os.MkdirAll(nestedDirectory, 0o755); makeDirError != nil {
		testingHandle.Fatalf("failed to create nested directory: %v", makeDirError)
	}

	foundDirectory, findError := utils.FindGitDirectory(nestedDirectory)
	if findError != nil {
		testingHandle.Fatalf("FindGitDirectory failed: %v", findError)
	}
	if foundDirectory != repositoryRoot {
		testingHandle.Fatalf("unexpected repository root: got %q want %q", foundDirectory, repositoryRoot)
	}
}

// TestFindGitDirectoryMissingRepository verifies the error when no .git directory exists upward.
func TestFindGitDirectoryMissingRepository(testingHandle *testing.T) {
	isolatedDirectory := testingHandle.TempDir()
	if _, findError := utils.FindGitDirectory(isolatedDirectory); findError == nil {
		testingHandle.Skip("test environment itself sits inside a git repository")
	}
}

// TestNewApplicationLoggerBuilds verifies that the console logger configuration is valid.
func TestNewApplicationLoggerBuilds(testingHandle *testing.T) {
	loggerInstance, loggerError := utils.NewApplicationLogger()
	if loggerError != nil {
		testingHandle.Fatalf("NewApplicationLogger failed: %v", loggerError)
	}
	loggerInstance.Info("logger constructed")
	_ = loggerInstance.Sync()
}
