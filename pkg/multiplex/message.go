// Package multiplex implements the single-stream message multiplexing used
// by rsync sessions after negotiation: each frame is a 4-byte little-endian
// header packing a channel tag with a 24-bit payload length, followed by the
// payload. The data channel carries the bulk transfer stream; the remaining
// channels carry out-of-band diagnostics that must be surfaced in arrival
// order.
package multiplex

import (
	"fmt"
)

const (
	// TagBase is the offset added to a message code to form its wire tag.
	// Header tags below this value are not valid multiplexed frames.
	TagBase = 7
	// MaxPayloadLength is the maximum payload length encodable in a frame
	// header.
	MaxPayloadLength = 0xFFFFFF
)

// Code identifies a multiplexing channel.
type Code uint8

const (
	// CodeData carries the bulk data stream.
	CodeData Code = 0
	// CodeErrorXfer carries transfer error text.
	CodeErrorXfer Code = 1
	// CodeInfo carries informational text.
	CodeInfo Code = 2
	// CodeError carries fatal error text.
	CodeError Code = 3
	// CodeWarning carries warning text.
	CodeWarning Code = 4
	// CodeErrorSocket carries socket error text destined for the generator.
	CodeErrorSocket Code = 5
	// CodeLog carries log text destined for the daemon log.
	CodeLog Code = 6
	// CodeClient carries text destined for the client.
	CodeClient Code = 7
	// CodeErrorUTF8 carries transfer error text with UTF-8 conversion.
	CodeErrorUTF8 Code = 8
	// CodeRedo requests retransmission of a file by index.
	CodeRedo Code = 9
	// CodeStats carries transfer statistics.
	CodeStats Code = 10
	// CodeIOError forwards a generator I/O error flag.
	CodeIOError Code = 22
	// CodeIOTimeout exchanges I/O timeout configuration.
	CodeIOTimeout Code = 33
	// CodeNoop is a keepalive message.
	CodeNoop Code = 42
	// CodeErrorExit coordinates orderly shutdown with an exit code.
	CodeErrorExit Code = 86
	// CodeSuccess reports successful transfer of a file by index.
	CodeSuccess Code = 100
	// CodeDeleted reports deletion of a file by name.
	CodeDeleted Code = 101
	// CodeNoSend reports a file that will not be transferred, by index.
	CodeNoSend Code = 102
)

// codeNames maps codes to their display names.
var codeNames = map[Code]string{
	CodeData:        "data",
	CodeErrorXfer:   "error-xfer",
	CodeInfo:        "info",
	CodeError:       "error",
	CodeWarning:     "warning",
	CodeErrorSocket: "error-socket",
	CodeLog:         "log",
	CodeClient:      "client",
	CodeErrorUTF8:   "error-utf8",
	CodeRedo:        "redo",
	CodeStats:       "stats",
	CodeIOError:     "io-error",
	CodeIOTimeout:   "io-timeout",
	CodeNoop:        "noop",
	CodeErrorExit:   "error-exit",
	CodeSuccess:     "success",
	CodeDeleted:     "deleted",
	CodeNoSend:      "no-send",
}

// valid indicates whether or not the code is part of the protocol.
func (c Code) valid() bool {
	_, ok := codeNames[c]
	return ok
}

// Logging indicates whether or not the code carries diagnostic text (as
// opposed to data or control payloads).
func (c Code) Logging() bool {
	return c >= CodeErrorXfer && c <= CodeErrorUTF8
}

// String provides a human-readable representation of a code.
func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", uint8(c))
}
