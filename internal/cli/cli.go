// Package cli provides the command line interface.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/codetidy/crustfmt/internal/config"
	"github.com/codetidy/crustfmt/internal/diff"
	"github.com/codetidy/crustfmt/internal/runner"
	"github.com/codetidy/crustfmt/internal/selector"
	"github.com/codetidy/crustfmt/internal/utils"
	"github.com/codetidy/crustfmt/internal/watch"
)

const (
	checkFlagName            = "check"
	checkFlagShorthand       = "c"
	rootFlagName             = "root"
	configFlagName           = "config"
	uncrustifyConfigFlagName = "uncrustify-config"
	excludeFlagName          = "exclude"
	excludeFileFlagName      = "exclude-file"
	workersFlagName          = "workers"
	globalFlagName           = "global"
	forceFlagName            = "force"
	copyFlagName             = "copy"
	versionFlagName          = "version"
	versionTemplate          = "crustfmt version: %s\n"

	rootUse              = "crustfmt"
	rootShortDescription = "format C/C++ sources with uncrustify"
	rootLongDescription  = `crustfmt discovers C/C++ source files under a project root, filters them
through a configurable exclusion set, and invokes uncrustify against the
selection. Without flags it rewrites files in place; with --check it only
verifies formatting and fails when changes are needed.`
	rootUsageExample = `  # Rewrite every candidate file in place
  crustfmt

  # Verify formatting without modifying files (CI)
  crustfmt --check`

	filesUse              = "files"
	filesShortDescription = "print the candidate file list"
	filesLongDescription  = `Print the files that would be handed to uncrustify, one per line,
without invoking the tool.`

	diffUse              = "diff"
	diffShortDescription = "preview pending formatting changes"
	diffLongDescription  = `Render each candidate file through uncrustify and show a diff of the
changes a rewrite would apply. Files on disk are not modified.`

	watchUse              = "watch"
	watchShortDescription = "reformat files as they change"
	watchLongDescription  = `Watch the project root and rewrite matching files whenever they change.
Stops on interrupt.`

	initUse              = "init"
	initShortDescription = "write a default configuration file"
	initLongDescription  = `Write a default ` + utils.ConfigFileName + ` into the working directory,
or into the global configuration directory with --global.`

	checkFlagDescription            = "verify formatting instead of rewriting files"
	rootFlagDescription             = "directory the file walk begins from"
	configFlagDescription           = "configuration file path"
	uncrustifyConfigFlagDescription = "uncrustify rules file path"
	excludeFlagDescription          = "directory to exclude (repeatable)"
	excludeFileFlagDescription      = "file to exclude (repeatable)"
	workersFlagDescription          = "concurrent uncrustify invocations for diff"
	globalFlagDescription           = "write the global configuration file"
	forceFlagDescription            = "overwrite an existing configuration file"
	copyFlagDescription             = "copy the file list to the clipboard"
	versionFlagDescription          = "display application version"

	clipboardWriteErrorFormat = "copy file list to clipboard: %w"

	configurationWrittenFormat  = "Wrote configuration to %s\n"
	pendingChangesFormat        = "%d file(s) need formatting"
	workingDirectoryErrorFormat = "unable to determine working directory: %w"
)

// selectionOptions stores the flag values shared by commands that select files.
type selectionOptions struct {
	rootPath             string
	configPath           string
	uncrustifyConfigPath string
	excludedDirectories  []string
	excludedFiles        []string
}

// Execute runs the crustfmt application.
func Execute(logger *zap.Logger) error {
	rootCommand := createRootCommand(logger)
	return rootCommand.Execute()
}

// createRootCommand builds the root Cobra command and its subcommands.
func createRootCommand(logger *zap.Logger) *cobra.Command {
	var showVersion bool
	var selectionConfiguration selectionOptions
	var checkOnly bool

	rootCommand := &cobra.Command{
		Use:           rootUse,
		Short:         rootShortDescription,
		Long:          rootLongDescription,
		Example:       rootUsageExample,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			return runFormat(command.Context(), logger, selectionConfiguration, checkOnly)
		},
		PersistentPreRun: func(command *cobra.Command, arguments []string) {
			if showVersion {
				fmt.Printf(versionTemplate, utils.GetApplicationVersion())
				os.Exit(0)
			}
		},
	}
	rootCommand.PersistentFlags().BoolVar(&showVersion, versionFlagName, false, versionFlagDescription)
	addSelectionFlags(rootCommand, &selectionConfiguration)
	rootCommand.Flags().BoolVarP(&checkOnly, checkFlagName, checkFlagShorthand, false, checkFlagDescription)

	rootCommand.AddCommand(
		createFilesCommand(),
		createDiffCommand(logger),
		createWatchCommand(logger),
		createInitCommand(),
	)
	rootCommand.InitDefaultHelpCmd()
	rootCommand.InitDefaultCompletionCmd()
	return rootCommand
}

// addSelectionFlags registers the file-selection flags on the command.
func addSelectionFlags(command *cobra.Command, options *selectionOptions) {
	command.Flags().StringVar(&options.rootPath, rootFlagName, "", rootFlagDescription)
	command.Flags().StringVar(&options.configPath, configFlagName, "", configFlagDescription)
	command.Flags().StringVar(&options.uncrustifyConfigPath, uncrustifyConfigFlagName, "", uncrustifyConfigFlagDescription)
	command.Flags().StringArrayVar(&options.excludedDirectories, excludeFlagName, nil, excludeFlagDescription)
	command.Flags().StringArrayVar(&options.excludedFiles, excludeFileFlagName, nil, excludeFileFlagDescription)
}

// createFilesCommand returns the files subcommand.
func createFilesCommand() *cobra.Command {
	var selectionConfiguration selectionOptions
	var copyToClipboard bool

	filesCommand := &cobra.Command{
		Use:   filesUse,
		Short: filesShortDescription,
		Long:  filesLongDescription,
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			settings, _, settingsError := resolveSettings(selectionConfiguration)
			if settingsError != nil {
				return settingsError
			}
			candidateFiles, selectionError := selector.CollectFiles(settings)
			if selectionError != nil {
				return selectionError
			}
			var listingBuilder strings.Builder
			for _, filePath := range candidateFiles {
				listingBuilder.WriteString(filePath)
				listingBuilder.WriteByte('\n')
			}
			fmt.Fprint(command.OutOrStdout(), listingBuilder.String())
			if copyToClipboard {
				if clipboardError := clipboard.WriteAll(listingBuilder.String()); clipboardError != nil {
					return fmt.Errorf(clipboardWriteErrorFormat, clipboardError)
				}
			}
			return nil
		},
	}
	addSelectionFlags(filesCommand, &selectionConfiguration)
	filesCommand.Flags().BoolVar(&copyToClipboard, copyFlagName, false, copyFlagDescription)
	return filesCommand
}

// createDiffCommand returns the diff subcommand.
func createDiffCommand(logger *zap.Logger) *cobra.Command {
	var selectionConfiguration selectionOptions
	var workerCount int

	diffCommand := &cobra.Command{
		Use:   diffUse,
		Short: diffShortDescription,
		Long:  diffLongDescription,
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			settings, workingDirectory, settingsError := resolveSettings(selectionConfiguration)
			if settingsError != nil {
				return settingsError
			}
			candidateFiles, selectionError := selector.CollectFiles(settings)
			if selectionError != nil {
				return selectionError
			}
			formatRunner := runner.New(settings, logger, workingDirectory)
			if versionError := formatRunner.CheckVersion(command.Context()); versionError != nil {
				return versionError
			}
			changedCount, diffError := diff.Report(command.Context(), formatRunner, candidateFiles, command.OutOrStdout(), diff.Options{Workers: workerCount})
			if diffError != nil {
				return diffError
			}
			if changedCount > 0 {
				logger.Warn(fmt.Sprintf(pendingChangesFormat, changedCount))
				return &runner.ExitError{Code: 1}
			}
			return nil
		},
	}
	addSelectionFlags(diffCommand, &selectionConfiguration)
	diffCommand.Flags().IntVar(&workerCount, workersFlagName, 0, workersFlagDescription)
	return diffCommand
}

// createWatchCommand returns the watch subcommand.
func createWatchCommand(logger *zap.Logger) *cobra.Command {
	var selectionConfiguration selectionOptions

	watchCommand := &cobra.Command{
		Use:   watchUse,
		Short: watchShortDescription,
		Long:  watchLongDescription,
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			settings, workingDirectory, settingsError := resolveSettings(selectionConfiguration)
			if settingsError != nil {
				return settingsError
			}
			formatRunner := runner.New(settings, logger, workingDirectory)
			if versionError := formatRunner.CheckVersion(command.Context()); versionError != nil {
				return versionError
			}
			watchContext, stopSignals := signal.NotifyContext(command.Context(), os.Interrupt, syscall.SIGTERM)
			defer stopSignals()
			return watch.Run(watchContext, settings, formatRunner, logger)
		},
	}
	addSelectionFlags(watchCommand, &selectionConfiguration)
	return watchCommand
}

// createInitCommand returns the init subcommand.
func createInitCommand() *cobra.Command {
	var writeGlobal bool
	var forceOverwrite bool

	initCommand := &cobra.Command{
		Use:   initUse,
		Short: initShortDescription,
		Long:  initLongDescription,
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			target := config.InitTargetLocal
			if writeGlobal {
				target = config.InitTargetGlobal
			}
			writtenPath, initializeError := config.InitializeConfiguration(config.InitOptions{
				Target: target,
				Force:  forceOverwrite,
			})
			if initializeError != nil {
				return initializeError
			}
			fmt.Fprintf(command.OutOrStdout(), configurationWrittenFormat, writtenPath)
			return nil
		},
	}
	initCommand.Flags().BoolVar(&writeGlobal, globalFlagName, false, globalFlagDescription)
	initCommand.Flags().BoolVar(&forceOverwrite, forceFlagName, false, forceFlagDescription)
	return initCommand
}

// runFormat executes the selection, version check, and formatter invocation pipeline.
func runFormat(executionContext context.Context, logger *zap.Logger, selectionConfiguration selectionOptions, checkOnly bool) error {
	settings, workingDirectory, settingsError := resolveSettings(selectionConfiguration)
	if settingsError != nil {
		return settingsError
	}
	candidateFiles, selectionError := selector.CollectFiles(settings)
	if selectionError != nil {
		return selectionError
	}
	formatRunner := runner.New(settings, logger, workingDirectory)
	if versionError := formatRunner.CheckVersion(executionContext); versionError != nil {
		return versionError
	}
	return formatRunner.Format(executionContext, candidateFiles, checkOnly)
}

// resolveSettings loads the configuration files, overlays the flag values, and
// resolves the result into per-invocation settings.
func resolveSettings(selectionConfiguration selectionOptions) (config.Settings, string, error) {
	workingDirectory, workingDirectoryError := os.Getwd()
	if workingDirectoryError != nil {
		return config.Settings{}, "", fmt.Errorf(workingDirectoryErrorFormat, workingDirectoryError)
	}
	fileConfiguration, loadError := config.LoadFileConfiguration(config.LoadOptions{
		WorkingDirectory: workingDirectory,
		ExplicitFilePath: selectionConfiguration.configPath,
	})
	if loadError != nil {
		return config.Settings{}, "", loadError
	}
	if selectionConfiguration.rootPath != "" {
		fileConfiguration.Root = selectionConfiguration.rootPath
	}
	if selectionConfiguration.uncrustifyConfigPath != "" {
		fileConfiguration.Uncrustify.Config = selectionConfiguration.uncrustifyConfigPath
	}
	fileConfiguration.Exclude.Directories = append(fileConfiguration.Exclude.Directories, selectionConfiguration.excludedDirectories...)
	fileConfiguration.Exclude.Files = append(fileConfiguration.Exclude.Files, selectionConfiguration.excludedFiles...)

	settings, resolveError := fileConfiguration.Resolve(workingDirectory)
	if resolveError != nil {
		return config.Settings{}, "", resolveError
	}
	return settings, workingDirectory, nil
}
