package main

import (
	"fmt"
	"net"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/wirebind/rsyncwire/cmd"
	"github.com/wirebind/rsyncwire/pkg/checksum"
	"github.com/wirebind/rsyncwire/pkg/negotiate"
	"github.com/wirebind/rsyncwire/pkg/session"
)

func probeMain(command *cobra.Command, arguments []string) error {
	// Load configuration.
	configuration, err := loadConfiguration()
	if err != nil {
		return err
	}
	logger := newLogger(configuration).Sublogger("probe")

	// Determine the daemon address.
	address := configuration.Daemon.Address
	if len(arguments) == 1 {
		address = arguments[0]
	} else if len(arguments) > 1 {
		return errors.New("expected at most one daemon address")
	}
	versions, err := configuration.Versions()
	if err != nil {
		return err
	}

	// Dial the daemon.
	logger.Infof("dialing %s", address)
	connection, err := net.DialTimeout("tcp", address, probeConfiguration.timeout)
	if err != nil {
		return errors.Wrap(err, "unable to connect to daemon")
	}
	defer connection.Close()

	// Run the handshake.
	negotiator := negotiate.NewNegotiator(connection, negotiate.RoleClient, &negotiate.Options{
		Versions:     versions,
		Checksums:    configuration.Checksums,
		Compressions: configuration.Compressions,
	})
	result, err := negotiator.Negotiate()
	if err != nil {
		return errors.Wrap(err, "negotiation failed")
	}

	// Report the outcome. The session exists only to demonstrate that the
	// negotiated stream wires up cleanly; it is torn down with the
	// connection.
	probe := session.New(connection, result)
	logger.Debugf("session %s established", probe.ID())
	fmt.Println("prologue:", result.Prologue)
	fmt.Println("protocol:", result.Version)
	fmt.Println("flags:", result.Flags)
	if result.Checksum != "" {
		algorithm, err := checksum.Parse(result.Checksum)
		if err != nil {
			return errors.Wrap(err, "daemon negotiated an unusable checksum")
		}
		fmt.Printf("checksum: %s (%d-byte digests)\n", algorithm, algorithm.Size())
		fmt.Println("compression:", result.Compression)
	}
	fmt.Printf("seed: 0x%08X\n", uint32(result.Seed))

	// Success.
	return nil
}

var probeCommand = &cobra.Command{
	Use:   "probe [<address>]",
	Short: "Dial a daemon and negotiate a protocol version",
	Run:   cmd.Mainify(probeMain),
}

var probeConfiguration struct {
	// help indicates whether or not help information should be shown for the
	// command.
	help bool
	// timeout is the dial timeout.
	timeout time.Duration
}

func init() {
	// Grab a handle for the command line flags.
	flags := probeCommand.Flags()

	// Disable alphabetical sorting of flags in help output.
	flags.SortFlags = false

	// Manually add a help flag to override the default message. Cobra will
	// still implement its logic automatically.
	flags.BoolVarP(&probeConfiguration.help, "help", "h", false, "Show help information")

	// Register the dial timeout flag.
	flags.DurationVar(&probeConfiguration.timeout, "timeout", 10*time.Second, "Dial timeout")
}
