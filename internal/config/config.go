// Package config loads crustfmt configuration from YAML files and resolves it
// into the settings consumed by the file selector and the formatter runner.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/codetidy/crustfmt/internal/utils"
)

// Default values applied when the configuration files leave a field unset.
const (
	// DefaultUncrustifyBinary is the executable resolved on PATH when no binary is configured.
	DefaultUncrustifyBinary = "uncrustify"
	// DefaultUncrustifyConfigName is the formatting rules file expected at the root.
	DefaultUncrustifyConfigName = "uncrustify.cfg"
	// DefaultExpectedVersion is the uncrustify release the tool is validated against.
	DefaultExpectedVersion = "Uncrustify-0.72.0_f"
	// defaultRoot selects the working directory when no root is configured.
	defaultRoot = "."
)

// defaultExtensions lists the source file extensions formatted by default.
var defaultExtensions = []string{".cpp", ".c", ".h"}

// defaultExcludedDirectories lists directory names skipped by default.
var defaultExcludedDirectories = []string{utils.GitDirectoryName, "build"}

// LoadOptions controls how configuration files are discovered.
type LoadOptions struct {
	WorkingDirectory string
	ExplicitFilePath string
}

// FileConfiguration mirrors the YAML configuration file layout.
type FileConfiguration struct {
	Root       string                  `mapstructure:"root"`
	Extensions []string                `mapstructure:"extensions"`
	Exclude    ExclusionConfiguration  `mapstructure:"exclude"`
	Uncrustify UncrustifyConfiguration `mapstructure:"uncrustify"`
}

// ExclusionConfiguration holds paths removed from the candidate file list.
type ExclusionConfiguration struct {
	Directories []string `mapstructure:"directories"`
	Files       []string `mapstructure:"files"`
}

// UncrustifyConfiguration describes the external formatting tool.
type UncrustifyConfiguration struct {
	Binary          string `mapstructure:"binary"`
	Config          string `mapstructure:"config"`
	ExpectedVersion string `mapstructure:"expected_version"`
}

// Settings is the fully resolved configuration handed to the selector and the
// runner. It is constructed once per invocation and passed explicitly; no
// process-wide configuration state exists.
type Settings struct {
	// Root is the absolute directory the tree walk begins from.
	Root string
	// Extensions are the file extensions selected for formatting, each with a leading dot.
	Extensions []string
	// ExcludedDirectories are absolute directory paths whose contents are never selected.
	ExcludedDirectories []string
	// ExcludedFiles are absolute file paths never selected.
	ExcludedFiles []string
	// UncrustifyBinary is the executable name or path of the external tool.
	UncrustifyBinary string
	// UncrustifyConfigPath is the absolute path of the formatting rules file.
	UncrustifyConfigPath string
	// ExpectedVersion is the version identifier the installed tool is compared against.
	ExpectedVersion string
}

// LoadFileConfiguration loads configuration from the global and local files,
// overlaying local values onto global ones. Missing files contribute nothing.
func LoadFileConfiguration(options LoadOptions) (FileConfiguration, error) {
	workingDirectory := options.WorkingDirectory
	if workingDirectory == "" {
		currentDirectory, workingDirectoryError := os.Getwd()
		if workingDirectoryError != nil {
			return FileConfiguration{}, fmt.Errorf("determine working directory: %w", workingDirectoryError)
		}
		workingDirectory = currentDirectory
	}

	var merged FileConfiguration

	if homeDirectory, homeError := os.UserHomeDir(); homeError == nil && homeDirectory != "" {
		globalPath := filepath.Join(homeDirectory, utils.GlobalConfigDirectoryName, utils.ConfigFileName)
		globalConfiguration, loadError := loadConfigurationFromPath(globalPath)
		if loadError != nil {
			return FileConfiguration{}, loadError
		}
		merged = merged.Merge(globalConfiguration)
	}

	localPath, resolveError := resolveLocalConfigPath(workingDirectory, options.ExplicitFilePath)
	if resolveError != nil {
		return FileConfiguration{}, resolveError
	}
	if localPath != "" {
		localConfiguration, loadError := loadConfigurationFromPath(localPath)
		if loadError != nil {
			return FileConfiguration{}, loadError
		}
		merged = merged.Merge(localConfiguration)
	}

	return merged, nil
}

func resolveLocalConfigPath(workingDirectory, explicitPath string) (string, error) {
	if explicitPath != "" {
		if filepath.IsAbs(explicitPath) {
			return explicitPath, nil
		}
		return filepath.Join(workingDirectory, explicitPath), nil
	}
	if workingDirectory == "" {
		return "", nil
	}
	return filepath.Join(workingDirectory, utils.ConfigFileName), nil
}

func loadConfigurationFromPath(path string) (FileConfiguration, error) {
	if path == "" {
		return FileConfiguration{}, nil
	}
	pathInformation, statError := os.Stat(path)
	if statError != nil {
		if os.IsNotExist(statError) {
			return FileConfiguration{}, nil
		}
		return FileConfiguration{}, fmt.Errorf("stat configuration %s: %w", path, statError)
	}
	if pathInformation.IsDir() {
		return FileConfiguration{}, fmt.Errorf("configuration path %s is a directory", path)
	}

	reader := viper.New()
	reader.SetConfigFile(path)
	if readError := reader.ReadInConfig(); readError != nil {
		return FileConfiguration{}, fmt.Errorf("read configuration from %s: %w", path, readError)
	}
	var configuration FileConfiguration
	if decodeError := reader.Unmarshal(&configuration); decodeError != nil {
		return FileConfiguration{}, fmt.Errorf("decode configuration from %s: %w", path, decodeError)
	}
	return configuration, nil
}

// Merge overlays override onto the receiver returning the combined configuration.
func (configuration FileConfiguration) Merge(override FileConfiguration) FileConfiguration {
	result := configuration
	if override.Root != "" {
		result.Root = override.Root
	}
	if len(override.Extensions) > 0 {
		result.Extensions = append([]string{}, override.Extensions...)
	}
	if len(override.Exclude.Directories) > 0 {
		result.Exclude.Directories = append([]string{}, override.Exclude.Directories...)
	}
	if len(override.Exclude.Files) > 0 {
		result.Exclude.Files = append([]string{}, override.Exclude.Files...)
	}
	if override.Uncrustify.Binary != "" {
		result.Uncrustify.Binary = override.Uncrustify.Binary
	}
	if override.Uncrustify.Config != "" {
		result.Uncrustify.Config = override.Uncrustify.Config
	}
	if override.Uncrustify.ExpectedVersion != "" {
		result.Uncrustify.ExpectedVersion = override.Uncrustify.ExpectedVersion
	}
	return result
}

// Resolve applies defaults and converts every configured path to canonical
// absolute form, anchored at workingDirectory for relative values.
func (configuration FileConfiguration) Resolve(workingDirectory string) (Settings, error) {
	if workingDirectory == "" {
		currentDirectory, workingDirectoryError := os.Getwd()
		if workingDirectoryError != nil {
			return Settings{}, fmt.Errorf("determine working directory: %w", workingDirectoryError)
		}
		workingDirectory = currentDirectory
	}

	rootValue := configuration.Root
	if rootValue == "" {
		rootValue = defaultRoot
	}
	rootPath := canonicalPath(anchorPath(rootValue, workingDirectory))

	extensions := configuration.Extensions
	if len(extensions) == 0 {
		extensions = defaultExtensions
	}
	normalizedExtensions := make([]string, 0, len(extensions))
	for _, extension := range extensions {
		trimmedExtension := strings.TrimSpace(extension)
		if trimmedExtension == "" {
			continue
		}
		if !strings.HasPrefix(trimmedExtension, ".") {
			trimmedExtension = "." + trimmedExtension
		}
		normalizedExtensions = append(normalizedExtensions, trimmedExtension)
	}

	excludedDirectories := configuration.Exclude.Directories
	if len(excludedDirectories) == 0 {
		excludedDirectories = defaultExcludedDirectories
	}
	resolvedDirectories := make([]string, 0, len(excludedDirectories)+1)
	for _, directory := range excludedDirectories {
		resolvedDirectories = append(resolvedDirectories, canonicalPath(anchorPath(directory, rootPath)))
	}
	// The Git directory stays excluded even when the configured list replaces the defaults.
	gitDirectoryPath := canonicalPath(filepath.Join(rootPath, utils.GitDirectoryName))
	if !containsString(resolvedDirectories, gitDirectoryPath) {
		resolvedDirectories = append(resolvedDirectories, gitDirectoryPath)
	}

	resolvedFiles := make([]string, 0, len(configuration.Exclude.Files))
	for _, excludedFile := range configuration.Exclude.Files {
		resolvedFiles = append(resolvedFiles, canonicalPath(anchorPath(excludedFile, rootPath)))
	}

	uncrustify := configuration.Uncrustify
	if uncrustify.Binary == "" {
		uncrustify.Binary = DefaultUncrustifyBinary
	}
	if uncrustify.Config == "" {
		uncrustify.Config = DefaultUncrustifyConfigName
	}
	if uncrustify.ExpectedVersion == "" {
		uncrustify.ExpectedVersion = DefaultExpectedVersion
	}

	return Settings{
		Root:                 rootPath,
		Extensions:           normalizedExtensions,
		ExcludedDirectories:  resolvedDirectories,
		ExcludedFiles:        resolvedFiles,
		UncrustifyBinary:     uncrustify.Binary,
		UncrustifyConfigPath: canonicalPath(anchorPath(uncrustify.Config, rootPath)),
		ExpectedVersion:      uncrustify.ExpectedVersion,
	}, nil
}

// containsString checks if a slice of strings contains a specific target string.
func containsString(stringSlice []string, targetString string) bool {
	for _, currentString := range stringSlice {
		if currentString == targetString {
			return true
		}
	}
	return false
}

// anchorPath joins a relative path onto base, leaving absolute paths untouched.
func anchorPath(path, base string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(base, path)
}

// canonicalPath resolves symlinks for existing paths and cleans the rest, so
// exclusion comparisons use the same form the selector produces for candidates.
func canonicalPath(path string) string {
	resolvedPath, resolveError := filepath.EvalSymlinks(path)
	if resolveError != nil {
		return filepath.Clean(path)
	}
	return resolvedPath
}
