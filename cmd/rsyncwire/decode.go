package main

import (
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/wirebind/rsyncwire/cmd"
	"github.com/wirebind/rsyncwire/pkg/multiplex"
)

func decodeMain(command *cobra.Command, arguments []string) error {
	// Open the capture.
	if len(arguments) != 1 {
		return errors.New("expected a capture file path")
	}
	capture, err := os.Open(arguments[0])
	if err != nil {
		return errors.Wrap(err, "unable to open capture")
	}
	defer capture.Close()

	// Walk the frames, printing sideband text verbatim and summarizing data
	// frames.
	reader := multiplex.NewReader(capture)
	var frames int
	var dataBytes uint64
	for {
		code, payload, err := reader.ReadFrame()
		if err == io.EOF {
			break
		} else if err != nil {
			return errors.Wrapf(err, "capture corrupt after %d frames", frames)
		}
		frames++
		if code == multiplex.CodeData {
			dataBytes += uint64(len(payload))
			fmt.Printf("%5d  %-12s %d bytes\n", frames, code, len(payload))
		} else if code.Logging() {
			fmt.Printf("%5d  %-12s %q\n", frames, code, payload)
		} else {
			fmt.Printf("%5d  %-12s %d bytes\n", frames, code, len(payload))
		}
	}
	fmt.Printf("%d frames, %s of data\n", frames, humanize.Bytes(dataBytes))

	// Success.
	return nil
}

var decodeCommand = &cobra.Command{
	Use:   "decode <capture>",
	Short: "Pretty-print a captured multiplex stream",
	Run:   cmd.Mainify(decodeMain),
}

var decodeConfiguration struct {
	// help indicates whether or not help information should be shown for the
	// command.
	help bool
}

func init() {
	// Grab a handle for the command line flags.
	flags := decodeCommand.Flags()

	// Disable alphabetical sorting of flags in help output.
	flags.SortFlags = false

	// Manually add a help flag to override the default message. Cobra will
	// still implement its logic automatically.
	flags.BoolVarP(&decodeConfiguration.help, "help", "h", false, "Show help information")
}
