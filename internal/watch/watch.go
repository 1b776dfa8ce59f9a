// Package watch reformats source files as they change on disk.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/codetidy/crustfmt/internal/config"
	"github.com/codetidy/crustfmt/internal/runner"
	"github.com/codetidy/crustfmt/internal/selector"
)

const (
	watchingMessageFormat      = "Watching %s"
	watcherErrorFormat         = "watcher error: %v"
	reformatMessageFormat      = "Reformatting %s"
	formatFailureWarningFormat = "formatting %s failed: %v"
)

// Run watches the configured root and rewrites matching files as they change.
// It blocks until the context is cancelled. Formatting failures on individual
// files are warnings; the watcher keeps running.
func Run(executionContext context.Context, settings config.Settings, formatRunner *runner.Runner, logger *zap.Logger) error {
	watcher, watcherError := fsnotify.NewWatcher()
	if watcherError != nil {
		return fmt.Errorf("create watcher: %w", watcherError)
	}
	defer watcher.Close()

	if addError := addDirectoryTree(watcher, settings.Root, settings); addError != nil {
		return addError
	}

	logger.Info(fmt.Sprintf(watchingMessageFormat, settings.Root))
	for {
		select {
		case <-executionContext.Done():
			return nil
		case notifyError, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn(fmt.Sprintf(watcherErrorFormat, notifyError))
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			handleEvent(executionContext, watcher, event, settings, formatRunner, logger)
		}
	}
}

// handleEvent reacts to a single filesystem event: new directories join the
// watch set, and matching file writes trigger a single-file rewrite. Rewrites
// are restricted to changed files, which keeps the watcher from looping on the
// formatter's own writes.
func handleEvent(
	executionContext context.Context,
	watcher *fsnotify.Watcher,
	event fsnotify.Event,
	settings config.Settings,
	formatRunner *runner.Runner,
	logger *zap.Logger,
) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return
	}
	absolutePath, absoluteError := filepath.Abs(event.Name)
	if absoluteError != nil {
		return
	}
	pathInformation, statError := os.Stat(absolutePath)
	if statError != nil {
		return
	}
	if pathInformation.IsDir() {
		if event.Has(fsnotify.Create) {
			if addError := addDirectoryTree(watcher, absolutePath, settings); addError != nil {
				logger.Warn(fmt.Sprintf(watcherErrorFormat, addError))
			}
		}
		return
	}
	if !selector.HasMatchingExtension(absolutePath, settings.Extensions) {
		return
	}
	if selector.IsPathExcluded(absolutePath, settings) {
		return
	}

	logger.Info(fmt.Sprintf(reformatMessageFormat, absolutePath))
	formatError := formatRunner.Format(executionContext, []string{absolutePath}, false)
	if formatError != nil {
		var exitError *runner.ExitError
		if errors.As(formatError, &exitError) || !errors.Is(formatError, context.Canceled) {
			logger.Warn(fmt.Sprintf(formatFailureWarningFormat, absolutePath, formatError))
		}
	}
}

// addDirectoryTree registers root and every non-excluded descendant directory
// with the watcher.
func addDirectoryTree(watcher *fsnotify.Watcher, root string, settings config.Settings) error {
	walkFunction := func(currentPath string, directoryEntry fs.DirEntry, walkError error) error {
		if walkError != nil {
			return walkError
		}
		if !directoryEntry.IsDir() {
			return nil
		}
		absolutePath, absoluteError := filepath.Abs(currentPath)
		if absoluteError != nil {
			return absoluteError
		}
		if selector.IsPathExcluded(absolutePath, settings) {
			return filepath.SkipDir
		}
		return watcher.Add(absolutePath)
	}
	return filepath.WalkDir(root, walkFunction)
}
