package main

import (
	"github.com/spf13/cobra"

	"github.com/wirebind/rsyncwire/cmd"
	"github.com/wirebind/rsyncwire/pkg/config"
	"github.com/wirebind/rsyncwire/pkg/logging"
)

// Version is the tool's version string.
const Version = "0.1.0"

// configurationPath is the path to the tool's configuration file, set by the
// root command's persistent flag.
var configurationPath string

// loadConfiguration loads the tool's configuration file and validates it.
func loadConfiguration() (*config.Configuration, error) {
	configuration, err := config.Load(configurationPath)
	if err != nil {
		return nil, err
	}
	if err := configuration.EnsureValid(); err != nil {
		return nil, err
	}
	return configuration, nil
}

// newLogger creates the root logger for a command, honoring the configured
// level.
func newLogger(configuration *config.Configuration) *logging.Logger {
	if configuration.Log == "" {
		return logging.RootLogger
	}
	level, ok := logging.NameToLevel(configuration.Log)
	if !ok {
		cmd.Warning("unknown log level: " + configuration.Log)
		return logging.RootLogger
	}
	return logging.NewLogger(level)
}

var rootCommand = &cobra.Command{
	Use:   "rsyncwire",
	Short: "Inspect and exercise the rsync wire protocol",
}

var rootConfiguration struct {
	// help indicates whether or not help information should be shown for the
	// command.
	help bool
}

func init() {
	// Grab a handle for the command line flags.
	flags := rootCommand.Flags()

	// Disable alphabetical sorting of flags in help output.
	flags.SortFlags = false

	// Manually add a help flag to override the default message. Cobra will
	// still implement its logic automatically.
	flags.BoolVarP(&rootConfiguration.help, "help", "h", false, "Show help information")

	// Register the configuration file flag for all commands.
	rootCommand.PersistentFlags().StringVar(
		&configurationPath, "config", "rsyncwire.yaml",
		"Path to the configuration file",
	)

	// Register commands.
	rootCommand.AddCommand(
		probeCommand,
		decodeCommand,
		greetingCommand,
		versionCommand,
	)
}

func main() {
	if err := rootCommand.Execute(); err != nil {
		cmd.Fatal(err)
	}
}
