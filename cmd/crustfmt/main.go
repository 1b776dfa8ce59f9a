package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/codetidy/crustfmt/internal/cli"
	"github.com/codetidy/crustfmt/internal/runner"
	"github.com/codetidy/crustfmt/internal/utils"
)

// main is the entry point for the crustfmt command. When uncrustify reports a
// formatting failure the process exits with the tool's own exit code.
func main() {
	loggerInstance, loggerInitializationError := utils.NewApplicationLogger()
	if loggerInitializationError != nil {
		panic(fmt.Errorf(utils.LoggerInitializationFailedMessageFormat, loggerInitializationError))
	}
	defer loggerInstance.Sync()
	if applicationExecutionError := cli.Execute(loggerInstance); applicationExecutionError != nil {
		var toolExitError *runner.ExitError
		if errors.As(applicationExecutionError, &toolExitError) {
			_ = loggerInstance.Sync()
			os.Exit(toolExitError.Code)
		}
		loggerInstance.Fatal(utils.ApplicationExecutionFailedMessage + ": " + applicationExecutionError.Error())
	}
}
