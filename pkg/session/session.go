package session

import (
	"io"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/wirebind/rsyncwire/pkg/compat"
	"github.com/wirebind/rsyncwire/pkg/multiplex"
	"github.com/wirebind/rsyncwire/pkg/negotiate"
	"github.com/wirebind/rsyncwire/pkg/protocol"
)

// Phase identifies a session's position in the transfer conversation.
type Phase uint8

const (
	// PhaseNegotiation covers the handshake, before any multiplexed traffic.
	PhaseNegotiation Phase = iota
	// PhaseFileList covers file list exchange.
	PhaseFileList
	// PhaseTransfer covers delta transfer.
	PhaseTransfer
	// PhaseFinalize covers statistics exchange and goodbye.
	PhaseFinalize
)

// String returns a human-readable phase description.
func (p Phase) String() string {
	switch p {
	case PhaseNegotiation:
		return "negotiation"
	case PhaseFileList:
		return "file list"
	case PhaseTransfer:
		return "transfer"
	case PhaseFinalize:
		return "finalize"
	default:
		return "unknown phase"
	}
}

// Session owns the state of one negotiated connection: the agreed protocol
// parameters, the value and index codecs they select, and the multiplexed
// framing over the stream. A session serves exactly one connection and is
// not safe for concurrent use.
type Session struct {
	// id is the session's unique identifier, used in diagnostics.
	id string
	// result is the negotiated protocol state.
	result *negotiate.Result
	// codec is the protocol-era value codec.
	codec Codec
	// index is the stateful file-index codec.
	index *IndexCodec
	// reader demultiplexes inbound frames.
	reader *multiplex.Reader
	// writer multiplexes outbound frames.
	writer *multiplex.Writer
	// phase is the session's current phase.
	phase Phase
}

// New creates a session over a stream whose handshake already completed. The
// session reads through the negotiation result's reader so no handshake
// residue is lost, and writes to the stream directly.
func New(stream io.Writer, result *negotiate.Result) *Session {
	return &Session{
		id:     uuid.NewString(),
		result: result,
		codec:  CodecForVersion(result.Version),
		index:  NewIndexCodec(result.Version),
		reader: multiplex.NewReader(result.Reader),
		writer: multiplex.NewWriter(stream),
		phase:  PhaseNegotiation,
	}
}

// ID returns the session's unique identifier.
func (s *Session) ID() string {
	return s.id
}

// Version returns the negotiated protocol version.
func (s *Session) Version() protocol.Version {
	return s.result.Version
}

// Flags returns the negotiated compatibility flags.
func (s *Session) Flags() compat.Flags {
	return s.result.Flags
}

// Seed returns the negotiated checksum seed.
func (s *Session) Seed() int32 {
	return s.result.Seed
}

// Codec returns the protocol-era value codec.
func (s *Session) Codec() Codec {
	return s.codec
}

// Index returns the session's file-index codec.
func (s *Session) Index() *IndexCodec {
	return s.index
}

// Reader returns the session's frame reader.
func (s *Session) Reader() *multiplex.Reader {
	return s.reader
}

// Writer returns the session's frame writer.
func (s *Session) Writer() *multiplex.Writer {
	return s.writer
}

// Phase returns the session's current phase.
func (s *Session) Phase() Phase {
	return s.phase
}

// Advance moves the session to the next phase. Only the forward progression
// negotiation, file list, transfer, finalize is allowed; anything else
// indicates a sequencing bug in the caller.
func (s *Session) Advance(next Phase) error {
	if next != s.phase+1 || next > PhaseFinalize {
		return errors.Errorf("invalid phase transition from %s to %s", s.phase, next)
	}
	s.phase = next
	return nil
}
