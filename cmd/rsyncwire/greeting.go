package main

import (
	"fmt"
	"strconv"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/wirebind/rsyncwire/cmd"
	"github.com/wirebind/rsyncwire/pkg/daemon"
	"github.com/wirebind/rsyncwire/pkg/protocol"
)

func greetingMain(command *cobra.Command, arguments []string) error {
	if len(arguments) != 1 {
		return errors.New("expected a greeting line or protocol version")
	}

	// In render mode the argument is a protocol version.
	if greetingConfiguration.render {
		value, err := strconv.ParseInt(arguments[0], 10, 32)
		if err != nil {
			return errors.Wrap(err, "invalid protocol version")
		}
		version, err := protocol.New(int32(value))
		if err != nil {
			return err
		}
		fmt.Printf("%q\n", daemon.FormatGreeting(version)+"\n")
		return nil
	}

	// Otherwise parse the argument as a greeting line and resolve the
	// advertisement the way a negotiation would.
	advertised, err := daemon.ParseGreeting(arguments[0])
	if err != nil {
		return err
	}
	version, err := protocol.FromAdvertisement(advertised)
	if err != nil {
		return err
	}
	fmt.Println("advertised:", advertised)
	fmt.Println("protocol:", version)

	// Success.
	return nil
}

var greetingCommand = &cobra.Command{
	Use:   "greeting (<line> | --render <version>)",
	Short: "Parse or render daemon greeting lines",
	Run:   cmd.Mainify(greetingMain),
}

var greetingConfiguration struct {
	// help indicates whether or not help information should be shown for the
	// command.
	help bool
	// render indicates that the argument is a protocol version to render
	// rather than a line to parse.
	render bool
}

func init() {
	// Grab a handle for the command line flags.
	flags := greetingCommand.Flags()

	// Disable alphabetical sorting of flags in help output.
	flags.SortFlags = false

	// Manually add a help flag to override the default message. Cobra will
	// still implement its logic automatically.
	flags.BoolVarP(&greetingConfiguration.help, "help", "h", false, "Show help information")

	// Register the render mode flag.
	flags.BoolVar(&greetingConfiguration.render, "render", false, "Render a greeting for a protocol version")
}
