// Package daemon implements the ASCII control grammar spoken by rsync daemons
// before a session switches to binary framing: the "@RSYNCD:" greeting line
// and the handful of control responses built on the same prefix.
package daemon

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/wirebind/rsyncwire/pkg/protocol"
)

const (
	// GreetingPrefix is the prefix of every daemon greeting and control line,
	// including the separating space.
	GreetingPrefix = "@RSYNCD: "
	// MaxLineLength is the maximum accepted length for a daemon control line,
	// terminator included. Greetings are short, so this mostly bounds memory
	// against garbage streams.
	MaxLineLength = 128
)

// MalformedGreetingError indicates that a line does not match the daemon
// greeting grammar.
type MalformedGreetingError struct {
	// Line is the offending line, without its terminator.
	Line string
	// Reason describes the grammar violation.
	Reason string
}

// Error returns a formatted version of the malformed greeting error.
func (e *MalformedGreetingError) Error() string {
	return fmt.Sprintf("malformed daemon greeting %q: %s", e.Line, e.Reason)
}

// IsMalformedGreeting indicates whether or not an error is due to a greeting
// grammar violation.
func IsMalformedGreeting(err error) bool {
	_, ok := errors.Cause(err).(*MalformedGreetingError)
	return ok
}

// ParseGreeting parses a daemon greeting line of the form
// "@RSYNCD: <major>[.<minor>]". The line must not include its terminator.
// Both suffixed and unsuffixed version forms are accepted. Only the grammar
// is validated here; the returned advertisement is resolved against the
// supported range by protocol.FromAdvertisement, since peers from the future
// legitimately advertise versions this implementation has never heard of.
func ParseGreeting(line string) (int32, error) {
	if !strings.HasPrefix(line, GreetingPrefix) {
		return 0, &MalformedGreetingError{line, "missing @RSYNCD: prefix"}
	}
	version := strings.TrimPrefix(line, GreetingPrefix)
	if version == "" {
		return 0, &MalformedGreetingError{line, "missing version"}
	}

	// Split off any minor version. The minor is validated as numeric but
	// otherwise ignored, since wire semantics are keyed to the major version.
	major := version
	if index := strings.IndexByte(version, '.'); index >= 0 {
		major = version[:index]
		minor := version[index+1:]
		if _, err := strconv.ParseUint(minor, 10, 32); err != nil {
			return 0, &MalformedGreetingError{line, "non-numeric minor version"}
		}
	}
	value, err := strconv.ParseUint(major, 10, 31)
	if err != nil {
		return 0, &MalformedGreetingError{line, "non-numeric major version"}
	}
	return int32(value), nil
}

// FormatGreeting renders a daemon greeting line, without terminator, for use
// with WriteLine. Protocol 28 predates minor version advertisement and
// renders bare; later versions carry a ".0" minor, matching observed daemon
// output byte-for-byte.
func FormatGreeting(version protocol.Version) string {
	if version == protocol.Version28 {
		return fmt.Sprintf("%s%d", GreetingPrefix, version)
	}
	return fmt.Sprintf("%s%d.0", GreetingPrefix, version)
}

// ReadLine reads a newline-terminated control line from a stream, returning
// it without the terminator. It reads one byte at a time because the line
// precedes any framing: overreading would swallow bytes belonging to the
// binary stream that follows. Lines exceeding MaxLineLength are rejected.
func ReadLine(reader io.Reader) (string, error) {
	var line []byte
	var single [1]byte
	for {
		if _, err := io.ReadFull(reader, single[:]); err != nil {
			if err == io.EOF {
				return "", errors.Wrap(io.ErrUnexpectedEOF, "stream closed inside control line")
			}
			return "", errors.Wrap(err, "unable to read control line")
		}
		if single[0] == '\n' {
			return string(line), nil
		}
		line = append(line, single[0])
		if len(line) >= MaxLineLength {
			return "", errors.New("control line exceeds maximum length")
		}
	}
}

// WriteLine writes a control line to a stream. The line must not include a
// terminator; one is appended.
func WriteLine(writer io.Writer, line string) error {
	if _, err := io.WriteString(writer, line+"\n"); err != nil {
		return errors.Wrap(err, "unable to write control line")
	}
	return nil
}
