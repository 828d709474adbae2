// Package negotiate establishes a session's protocol version and capability
// set over a freshly accepted byte stream. It classifies the peer's opening
// bytes, runs the matching handshake (legacy ASCII greetings or the binary
// exchange that replaced them at protocol 30), and yields the agreed version
// together with compatibility flags, negotiated algorithms, and the checksum
// seed.
package negotiate

import (
	"io"

	"github.com/pkg/errors"

	"github.com/wirebind/rsyncwire/pkg/compat"
	"github.com/wirebind/rsyncwire/pkg/daemon"
	"github.com/wirebind/rsyncwire/pkg/protocol"
	"github.com/wirebind/rsyncwire/pkg/sniff"
	"github.com/wirebind/rsyncwire/pkg/wire"
)

// Role indicates which side of the handshake a negotiator plays. The role
// determines the direction of the compatibility flag and checksum seed
// exchange; version advertisement is symmetric.
type Role uint8

const (
	// RoleClient is the dialing side. It receives compatibility flags and
	// the checksum seed.
	RoleClient Role = iota
	// RoleServer is the accepting side. It chooses and sends compatibility
	// flags and the checksum seed.
	RoleServer
)

// Phase identifies a negotiator's position in the handshake.
type Phase uint8

const (
	// PhaseAwaitingPrologue indicates that the peer's handshake style has
	// not been classified yet.
	PhaseAwaitingPrologue Phase = iota
	// PhaseLegacyHandshake indicates an ASCII greeting exchange in progress.
	PhaseLegacyHandshake
	// PhaseBinaryHandshake indicates a binary version exchange in progress.
	PhaseBinaryHandshake
	// PhaseNegotiated indicates terminal success.
	PhaseNegotiated
	// PhaseFailed indicates terminal failure. The stream can no longer be
	// trusted and must be closed by the caller.
	PhaseFailed
)

// String returns a human-readable phase description.
func (p Phase) String() string {
	switch p {
	case PhaseAwaitingPrologue:
		return "prologue detection"
	case PhaseLegacyHandshake:
		return "greeting exchange"
	case PhaseBinaryHandshake:
		return "version exchange"
	case PhaseNegotiated:
		return "negotiated"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown phase"
	}
}

// Options control a negotiator's advertised capabilities. A nil or zero
// value selects defaults suitable for a current peer.
type Options struct {
	// Versions are the protocol versions to advertise, strictly descending.
	// If empty, all supported versions are advertised.
	Versions []protocol.Version
	// Flags are the compatibility flags proposed by a server. Ignored for
	// clients.
	Flags compat.Flags
	// Seed is the checksum seed sent by a server. Ignored for clients.
	Seed int32
	// Checksums is the strong checksum preference list for algorithm
	// negotiation at protocol 31 and newer. If empty, all known algorithms
	// are offered.
	Checksums []string
	// Compressions is the compression preference list for algorithm
	// negotiation at protocol 31 and newer. If empty, all known algorithms
	// are offered.
	Compressions []string
}

// Result is the outcome of a successful negotiation, fixed for the lifetime
// of the session.
type Result struct {
	// Version is the agreed protocol version.
	Version protocol.Version
	// Flags are the session's compatibility flags. Zero below protocol 30.
	Flags compat.Flags
	// Seed is the checksum seed chosen by the server.
	Seed int32
	// Checksum is the negotiated strong checksum algorithm name. Empty below
	// protocol 31, where the version alone fixes the algorithm.
	Checksum string
	// Compression is the negotiated compression algorithm name. Empty below
	// protocol 31.
	Compression string
	// Prologue is the handshake style the peer opened with.
	Prologue sniff.Prologue
	// Reader replays any bytes consumed during prologue detection ahead of
	// the rest of the stream. All subsequent session reads must go through
	// it in place of the original stream.
	Reader io.Reader
}

// Negotiator drives a single handshake over a single stream. It is not safe
// for concurrent use and cannot be reused: a process serving many
// connections runs one negotiator per connection.
type Negotiator struct {
	// stream is the underlying connection.
	stream io.ReadWriter
	// role is the side of the handshake this negotiator plays.
	role Role
	// versions are the advertised protocol versions, strictly descending.
	versions []protocol.Version
	// flags are the compatibility flags proposed when acting as a server.
	flags compat.Flags
	// seed is the checksum seed sent when acting as a server.
	seed int32
	// checksums is the strong checksum preference list.
	checksums []string
	// compressions is the compression preference list.
	compressions []string
	// phase is the current handshake phase.
	phase Phase
}

// NewNegotiator creates a negotiator for a stream. A nil options value
// selects defaults.
func NewNegotiator(stream io.ReadWriter, role Role, options *Options) *Negotiator {
	if options == nil {
		options = &Options{}
	}
	versions := options.Versions
	if len(versions) == 0 {
		versions = protocol.Supported
	}
	checksums := options.Checksums
	if len(checksums) == 0 {
		checksums = compat.ChecksumNames
	}
	compressions := options.Compressions
	if len(compressions) == 0 {
		compressions = compat.CompressionNames
	}
	return &Negotiator{
		stream:       stream,
		role:         role,
		versions:     versions,
		flags:        options.Flags,
		seed:         options.Seed,
		checksums:    checksums,
		compressions: compressions,
	}
}

// Phase returns the negotiator's current phase.
func (n *Negotiator) Phase() Phase {
	return n.phase
}

// fail records terminal failure and returns the causal error.
func (n *Negotiator) fail(err error) (*Result, error) {
	n.phase = PhaseFailed
	return nil, err
}

// Negotiate runs the handshake to completion. It blocks on stream I/O and
// returns either a terminal result or a terminal error; there are no retries
// at this layer. After an error the stream's synchronization cannot be
// trusted and the connection must be closed.
func (n *Negotiator) Negotiate() (*Result, error) {
	if n.phase != PhaseAwaitingPrologue {
		return nil, errors.New("negotiator already driven to completion")
	}

	// Classify the peer's opening bytes without losing them.
	sniffer := sniff.NewSniffer(n.stream)
	prologue, err := sniffer.Sniff()
	if err != nil {
		if sniff.IsPrefixMismatch(err) {
			return n.fail(errors.Wrap(err, "unrecognized handshake prologue"))
		}
		return n.fail(truncated(err, PhaseAwaitingPrologue))
	}
	reader := sniffer.Reader()

	// Run the handshake matching the peer's style.
	var version protocol.Version
	switch prologue {
	case sniff.PrologueLegacyASCII:
		n.phase = PhaseLegacyHandshake
		version, err = n.legacyHandshake(reader)
	case sniff.PrologueBinary:
		n.phase = PhaseBinaryHandshake
		version, err = n.binaryHandshake(reader)
	default:
		panic("sniffer returned undecided prologue without error")
	}
	if err != nil {
		return n.fail(err)
	}
	result := &Result{Version: version, Prologue: prologue, Reader: reader}

	// Exchange compatibility flags at protocol 30 and newer. The server
	// chooses; the client adopts.
	if version.UsesBinaryNegotiation() {
		if n.role == RoleServer {
			if err := n.flags.Write(n.stream); err != nil {
				return n.fail(errors.Wrap(err, "unable to send compatibility flags"))
			}
			result.Flags = n.flags
		} else {
			flags, err := compat.ReadFlags(reader)
			if err != nil {
				return n.fail(truncated(errors.Wrap(err, "unable to receive compatibility flags"), n.phase))
			}
			result.Flags = flags
		}
	}

	// Negotiate checksum and compression algorithms at protocol 31 and
	// newer. Both sides send their preference list and the first local
	// preference the peer shares wins, so both sides reach the same answer.
	if version.UsesStringNegotiation() {
		result.Checksum, err = n.negotiateAlgorithm(reader, n.checksums)
		if err != nil {
			return n.fail(errors.Wrap(err, "unable to negotiate checksum algorithm"))
		}
		result.Compression, err = n.negotiateAlgorithm(reader, n.compressions)
		if err != nil {
			return n.fail(errors.Wrap(err, "unable to negotiate compression algorithm"))
		}
	}

	// Exchange the checksum seed. The server always chooses it.
	if n.role == RoleServer {
		if err := wire.WriteInt(n.stream, n.seed); err != nil {
			return n.fail(errors.Wrap(err, "unable to send checksum seed"))
		}
		result.Seed = n.seed
	} else {
		seed, err := wire.ReadInt(reader)
		if err != nil {
			return n.fail(truncated(errors.Wrap(err, "unable to receive checksum seed"), n.phase))
		}
		result.Seed = seed
	}

	// Success.
	n.phase = PhaseNegotiated
	return result, nil
}

// legacyHandshake exchanges ASCII greetings. Each side advertises its newest
// version and the agreed version is the highest one both advertised ranges
// contain, which for contiguous ranges is the lesser of the two
// advertisements.
func (n *Negotiator) legacyHandshake(reader io.Reader) (protocol.Version, error) {
	if err := daemon.WriteLine(n.stream, daemon.FormatGreeting(n.versions[0])); err != nil {
		return 0, errors.Wrap(err, "unable to send greeting")
	}
	line, err := daemon.ReadLine(reader)
	if err != nil {
		return 0, truncated(errors.Wrap(err, "unable to receive greeting"), PhaseLegacyHandshake)
	}
	advertised, err := daemon.ParseGreeting(line)
	if err != nil {
		return 0, err
	}
	theirs, err := protocol.FromAdvertisement(advertised)
	if err != nil {
		return 0, &UnsupportedVersionRangeError{advertised}
	}
	version, err := protocol.HighestMutual(n.versions, protocol.RangeThrough(theirs))
	if err != nil {
		return 0, &UnsupportedVersionRangeError{advertised}
	}
	return version, nil
}

// binaryHandshake exchanges 4-byte little-endian version advertisements.
func (n *Negotiator) binaryHandshake(reader io.Reader) (protocol.Version, error) {
	if err := wire.WriteInt(n.stream, int32(n.versions[0])); err != nil {
		return 0, errors.Wrap(err, "unable to send version")
	}
	advertised, err := wire.ReadInt(reader)
	if err != nil {
		return 0, truncated(errors.Wrap(err, "unable to receive version"), PhaseBinaryHandshake)
	}
	theirs, err := protocol.FromAdvertisement(advertised)
	if err != nil {
		return 0, &UnsupportedVersionRangeError{advertised}
	}
	version, err := protocol.HighestMutual(n.versions, protocol.RangeThrough(theirs))
	if err != nil {
		return 0, &UnsupportedVersionRangeError{advertised}
	}
	return version, nil
}

// negotiateAlgorithm sends the local preference list, reads the peer's, and
// selects the first local entry present in both.
func (n *Negotiator) negotiateAlgorithm(reader io.Reader, preferences []string) (string, error) {
	if err := compat.WriteCapabilityList(n.stream, preferences); err != nil {
		return "", err
	}
	theirs, err := wire.ReadVstring(reader)
	if err != nil {
		return "", truncated(errors.Wrap(err, "unable to receive capability list"), n.phase)
	}
	return compat.NegotiateString(preferences, theirs)
}
