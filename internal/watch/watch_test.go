package watch

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/codetidy/crustfmt/internal/config"
	"github.com/codetidy/crustfmt/internal/runner"
)

// recordingStubScript mimics uncrustify and copies the manifest it receives.
const recordingStubScript = `#!/bin/sh
if [ "$1" = "--version" ]; then
  printf '%s\n' "Uncrustify-0.72.0_f"
  exit 0
fi
stub_dir=$(dirname "$0")
for last_argument; do :; done
if [ -f "$last_argument" ]; then
  cp "$last_argument" "$stub_dir/manifest_copy.txt"
fi
exit 0
`

// skipWithoutShell skips tests that rely on a POSIX shell for the stub executable.
func skipWithoutShell(testingHandle *testing.T) {
	testingHandle.Helper()
	if runtime.GOOS == "windows" {
		testingHandle.Skip("stub executable requires a POSIX shell")
	}
}

// containsPath reports whether the watch list contains the given path.
func containsPath(watchedPaths []string, targetPath string) bool {
	for _, watchedPath := range watchedPaths {
		if watchedPath == targetPath {
			return true
		}
	}
	return false
}

// TestAddDirectoryTreeSkipsExcludedDirectories verifies that excluded directories never join the watch set.
func TestAddDirectoryTreeSkipsExcludedDirectories(testingHandle *testing.T) {
	rootDirectory, resolveError := filepath.EvalSymlinks(testingHandle.TempDir())
	if resolveError != nil {
		testingHandle.Fatalf("failed to resolve temporary directory: %v", resolveError)
	}
	includedDirectory := filepath.Join(rootDirectory, "src")
	excludedDirectory := filepath.Join(rootDirectory, "build")
	for _, directoryPath := range []string{includedDirectory, excludedDirectory} {
		if makeDirError := os.MkdirAll(directoryPath, 0o755); makeDirError != nil {
			testingHandle.Fatalf("failed to create %s: %v", directoryPath, makeDirError)
		}
	}

	watcher, watcherError := fsnotify.NewWatcher()
	if watcherError != nil {
		testingHandle.Fatalf("failed to create watcher: %v", watcherError)
	}
	defer watcher.Close()

	settings := config.Settings{
		Root:                rootDirectory,
		Extensions:          []string{".cpp"},
		ExcludedDirectories: []string{excludedDirectory},
	}
	if addError := addDirectoryTree(watcher, rootDirectory, settings); addError != nil {
		testingHandle.Fatalf("addDirectoryTree failed: %v", addError)
	}

	watchedPaths := watcher.WatchList()
	if !containsPath(watchedPaths, rootDirectory) || !containsPath(watchedPaths, includedDirectory) {
		testingHandle.Fatalf("watch list %v missing expected directories", watchedPaths)
	}
	if containsPath(watchedPaths, excludedDirectory) {
		testingHandle.Fatalf("watch list %v contains excluded directory", watchedPaths)
	}
}

// TestRunStopsOnContextCancel verifies that the watcher exits cleanly on cancellation.
func TestRunStopsOnContextCancel(testingHandle *testing.T) {
	rootDirectory := testingHandle.TempDir()
	settings := config.Settings{Root: rootDirectory, Extensions: []string{".cpp"}}
	formatRunner := runner.New(settings, zap.NewNop(), rootDirectory)

	watchContext, cancelWatch := context.WithCancel(context.Background())
	runResult := make(chan error, 1)
	go func() {
		runResult <- Run(watchContext, settings, formatRunner, zap.NewNop())
	}()

	cancelWatch()
	select {
	case runError := <-runResult:
		if runError != nil {
			testingHandle.Fatalf("Run returned error on cancellation: %v", runError)
		}
	case <-time.After(5 * time.Second):
		testingHandle.Fatal("Run did not stop after cancellation")
	}
}

// TestRunReformatsChangedFile verifies that a write to a matching file triggers a rewrite invocation.
func TestRunReformatsChangedFile(testingHandle *testing.T) {
	skipWithoutShell(testingHandle)
	rootDirectory, resolveError := filepath.EvalSymlinks(testingHandle.TempDir())
	if resolveError != nil {
		testingHandle.Fatalf("failed to resolve temporary directory: %v", resolveError)
	}

	stubDirectory := testingHandle.TempDir()
	stubPath := filepath.Join(stubDirectory, "uncrustify")
	if writeError := os.WriteFile(stubPath, []byte(recordingStubScript), 0o755); writeError != nil {
		testingHandle.Fatalf("failed to write stub executable: %v", writeError)
	}

	settings := config.Settings{
		Root:                 rootDirectory,
		Extensions:           []string{".cpp"},
		UncrustifyBinary:     stubPath,
		UncrustifyConfigPath: filepath.Join(rootDirectory, "uncrustify.cfg"),
		ExpectedVersion:      "Uncrustify-0.72.0_f",
	}
	formatRunner := runner.New(settings, zap.NewNop(), testingHandle.TempDir())

	watchContext, cancelWatch := context.WithCancel(context.Background())
	defer cancelWatch()
	runResult := make(chan error, 1)
	go func() {
		runResult <- Run(watchContext, settings, formatRunner, zap.NewNop())
	}()

	// Give the watcher a moment to register the root before writing.
	time.Sleep(200 * time.Millisecond)

	changedFilePath := filepath.Join(rootDirectory, "main.cpp")
	if writeError := os.WriteFile(changedFilePath, []byte("int main(){return 0;}\n"), 0o644); writeError != nil {
		testingHandle.Fatalf("failed to write %s: %v", changedFilePath, writeError)
	}

	manifestCopyPath := filepath.Join(stubDirectory, "manifest_copy.txt")
	deadline := time.Now().Add(5 * time.Second)
	for {
		manifestCopy, readError := os.ReadFile(manifestCopyPath)
		if readError == nil && strings.Contains(string(manifestCopy), changedFilePath) {
			break
		}
		if time.Now().After(deadline) {
			testingHandle.Fatalf("stub was not invoked for %s", changedFilePath)
		}
		time.Sleep(50 * time.Millisecond)
	}

	cancelWatch()
	select {
	case <-runResult:
	case <-time.After(5 * time.Second):
		testingHandle.Fatal("Run did not stop after cancellation")
	}
}
