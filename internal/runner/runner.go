// Package runner invokes the external uncrustify binary against a selection of files.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
	"go.uber.org/zap"

	"github.com/codetidy/crustfmt/internal/config"
)

const (
	// ManifestFileName is the transient file listing the paths handed to uncrustify.
	ManifestFileName = "uncrustify_temp.txt"
	// manifestLockFileName guards the manifest against concurrent crustfmt runs.
	manifestLockFileName = ".uncrustify_temp.lock"

	configurationFlag   = "-c"
	manifestFlag        = "-F"
	singleFileFlag      = "-f"
	quietFlag           = "-q"
	checkFlag           = "--check"
	replaceFlag         = "--replace"
	noBackupFlag        = "--no-backup"
	ifChangedFlag       = "--if-changed"
	versionFlag         = "--version"
	commandLineFormat   = "> %s %s"
	commandFailedFormat = "COMMAND FAILED (exit code: %d)"
	manifestLockFormat  = "lock manifest via %s: %w"
	launchFailedFormat  = "launch %s: %w"
	removeWarnFormat    = "failed to remove manifest %s: %v"
	unlockWarnFormat    = "failed to release manifest lock: %v"
)

// ExitError carries the exit code of a failed uncrustify invocation so the
// process can terminate with the same code.
type ExitError struct {
	Code int
}

// Error describes the failed invocation.
func (exitError *ExitError) Error() string {
	return fmt.Sprintf("uncrustify exited with code %d", exitError.Code)
}

// Runner executes uncrustify with structured argument lists. Output streams
// default to the standard streams and are replaceable for tests.
type Runner struct {
	settings         config.Settings
	logger           *zap.Logger
	workingDirectory string

	Stdout io.Writer
	Stderr io.Writer
}

// New constructs a Runner writing subprocess output to the standard streams.
func New(settings config.Settings, logger *zap.Logger, workingDirectory string) *Runner {
	return &Runner{
		settings:         settings,
		logger:           logger,
		workingDirectory: workingDirectory,
		Stdout:           os.Stdout,
		Stderr:           os.Stderr,
	}
}

// Format writes the candidate files to the manifest, invokes uncrustify
// against it, and removes the manifest when the invocation returns. Check mode
// asks the tool to report violations without touching files; rewrite mode
// edits in place, without backups, limited to files whose content changes.
// A non-zero tool exit surfaces as *ExitError carrying the same code.
func (formatRunner *Runner) Format(executionContext context.Context, files []string, checkOnly bool) error {
	manifestLock := flock.New(filepath.Join(formatRunner.workingDirectory, manifestLockFileName))
	if lockError := manifestLock.Lock(); lockError != nil {
		return fmt.Errorf(manifestLockFormat, manifestLock.Path(), lockError)
	}
	defer func() {
		if unlockError := manifestLock.Unlock(); unlockError != nil {
			formatRunner.logger.Warn(fmt.Sprintf(unlockWarnFormat, unlockError))
		}
	}()

	manifestPath := filepath.Join(formatRunner.workingDirectory, ManifestFileName)
	if writeError := writeManifest(manifestPath, files); writeError != nil {
		return writeError
	}
	defer func() {
		if removeError := os.Remove(manifestPath); removeError != nil && !os.IsNotExist(removeError) {
			formatRunner.logger.Warn(fmt.Sprintf(removeWarnFormat, manifestPath, removeError))
		}
	}()

	argumentList := BuildArguments(formatRunner.settings.UncrustifyConfigPath, checkOnly, manifestPath)
	formatRunner.logger.Info(fmt.Sprintf(commandLineFormat, formatRunner.settings.UncrustifyBinary, strings.Join(argumentList, " ")))

	// #nosec G204
	command := exec.CommandContext(executionContext, formatRunner.settings.UncrustifyBinary, argumentList...)
	command.Stdout = formatRunner.Stdout
	command.Stderr = formatRunner.Stderr
	runError := command.Run()
	if runError != nil {
		var processExitError *exec.ExitError
		if errors.As(runError, &processExitError) {
			exitCode := processExitError.ExitCode()
			formatRunner.logger.Error(fmt.Sprintf(commandFailedFormat, exitCode))
			return &ExitError{Code: exitCode}
		}
		return fmt.Errorf(launchFailedFormat, formatRunner.settings.UncrustifyBinary, runError)
	}
	return nil
}

// RenderFile runs uncrustify on a single file and returns the formatted
// content from the tool's standard output. The file on disk is not modified.
func (formatRunner *Runner) RenderFile(executionContext context.Context, filePath string) ([]byte, error) {
	// #nosec G204
	command := exec.CommandContext(executionContext, formatRunner.settings.UncrustifyBinary,
		quietFlag, configurationFlag, formatRunner.settings.UncrustifyConfigPath, singleFileFlag, filePath)
	outputBytes, commandError := command.Output()
	if commandError != nil {
		var processExitError *exec.ExitError
		if errors.As(commandError, &processExitError) {
			return nil, fmt.Errorf("format %s: %s", filePath, strings.TrimSpace(string(processExitError.Stderr)))
		}
		return nil, fmt.Errorf(launchFailedFormat, formatRunner.settings.UncrustifyBinary, commandError)
	}
	return outputBytes, nil
}

// BuildArguments assembles the uncrustify argument vector for one invocation.
// Arguments are passed as a structured list; no shell-string assembly occurs,
// so paths with spaces or metacharacters need no escaping.
func BuildArguments(uncrustifyConfigPath string, checkOnly bool, manifestPath string) []string {
	argumentList := []string{configurationFlag, uncrustifyConfigPath}
	if checkOnly {
		argumentList = append(argumentList, checkFlag)
	} else {
		argumentList = append(argumentList, replaceFlag, noBackupFlag, ifChangedFlag)
	}
	return append(argumentList, manifestFlag, manifestPath)
}

// writeManifest writes one path per line to the manifest file.
func writeManifest(manifestPath string, files []string) error {
	var manifestBuilder strings.Builder
	for _, filePath := range files {
		manifestBuilder.WriteString(filepath.ToSlash(filePath))
		manifestBuilder.WriteByte('\n')
	}
	if writeError := os.WriteFile(manifestPath, []byte(manifestBuilder.String()), 0o644); writeError != nil {
		return fmt.Errorf("write manifest %s: %w", manifestPath, writeError)
	}
	return nil
}
