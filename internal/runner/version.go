package runner

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

const versionMismatchFormat = "WARNING: You are using the wrong uncrustify version. Installed %q, expected %q"

// InstalledVersion queries the configured uncrustify binary for its version
// identifier, trimmed of surrounding whitespace. A launch failure, typically a
// missing binary, is returned as an error.
func (formatRunner *Runner) InstalledVersion(executionContext context.Context) (string, error) {
	// #nosec G204
	command := exec.CommandContext(executionContext, formatRunner.settings.UncrustifyBinary, versionFlag)
	outputBytes, commandError := command.Output()
	if commandError != nil {
		return "", fmt.Errorf("query %s version: %w", formatRunner.settings.UncrustifyBinary, commandError)
	}
	return strings.TrimSpace(string(outputBytes)), nil
}

// CheckVersion compares the installed version byte-for-byte against the
// expected identifier. A mismatch is a warning only; execution proceeds with
// whatever version is installed. Only a launch failure is fatal.
func (formatRunner *Runner) CheckVersion(executionContext context.Context) error {
	installedVersion, versionError := formatRunner.InstalledVersion(executionContext)
	if versionError != nil {
		return versionError
	}
	if installedVersion != formatRunner.settings.ExpectedVersion {
		formatRunner.logger.Warn(fmt.Sprintf(versionMismatchFormat, installedVersion, formatRunner.settings.ExpectedVersion))
	}
	return nil
}
