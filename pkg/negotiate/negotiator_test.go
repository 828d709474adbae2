package negotiate

import (
	"bytes"
	"io"
	"testing"

	"github.com/wirebind/rsyncwire/pkg/compat"
	"github.com/wirebind/rsyncwire/pkg/daemon"
	"github.com/wirebind/rsyncwire/pkg/protocol"
	"github.com/wirebind/rsyncwire/pkg/sniff"
	"github.com/wirebind/rsyncwire/pkg/wire"
)

// scriptedStream is a test stream that replays a pre-recorded peer
// transcript and captures everything written to it.
type scriptedStream struct {
	// reader replays the peer's bytes.
	reader *bytes.Reader
	// writer captures our bytes.
	writer bytes.Buffer
}

func newScriptedStream(peer []byte) *scriptedStream {
	return &scriptedStream{reader: bytes.NewReader(peer)}
}

func (s *scriptedStream) Read(buffer []byte) (int, error) {
	return s.reader.Read(buffer)
}

func (s *scriptedStream) Write(buffer []byte) (int, error) {
	return s.writer.Write(buffer)
}

func TestNegotiateBinaryClient(t *testing.T) {
	// Record a server transcript: version, compatibility flags, checksum and
	// compression preference lists, seed, then the first session byte.
	script := &bytes.Buffer{}
	if err := wire.WriteInt(script, 32); err != nil {
		t.Fatal("unable to script version:", err)
	}
	serverFlags := compat.FlagIncRecurse | compat.FlagSafeFileList | compat.FlagChecksumSeedFix
	if err := serverFlags.Write(script); err != nil {
		t.Fatal("unable to script flags:", err)
	}
	if err := compat.WriteCapabilityList(script, compat.ChecksumNames); err != nil {
		t.Fatal("unable to script checksum list:", err)
	}
	if err := compat.WriteCapabilityList(script, compat.CompressionNames); err != nil {
		t.Fatal("unable to script compression list:", err)
	}
	if err := wire.WriteInt(script, 0x1234); err != nil {
		t.Fatal("unable to script seed:", err)
	}
	script.WriteString("payload")

	stream := newScriptedStream(script.Bytes())
	negotiator := NewNegotiator(stream, RoleClient, nil)
	result, err := negotiator.Negotiate()
	if err != nil {
		t.Fatal("negotiation failed:", err)
	}
	if negotiator.Phase() != PhaseNegotiated {
		t.Error("negotiator not in negotiated phase:", negotiator.Phase())
	}
	if result.Version != protocol.Version32 {
		t.Error("negotiated version does not match expected:", result.Version)
	}
	if result.Prologue != sniff.PrologueBinary {
		t.Error("prologue does not match expected:", result.Prologue)
	}
	if result.Flags != serverFlags {
		t.Error("flags do not match server's choice:", result.Flags)
	}
	if result.Checksum != "xxh128" {
		t.Error("checksum algorithm does not match expected:", result.Checksum)
	}
	if result.Compression != "zstd" {
		t.Error("compression algorithm does not match expected:", result.Compression)
	}
	if result.Seed != 0x1234 {
		t.Error("seed does not match server's choice:", result.Seed)
	}

	// The rest of the stream must flow through the result reader unharmed.
	remainder, err := io.ReadAll(result.Reader)
	if err != nil {
		t.Fatal("unable to read session payload:", err)
	}
	if string(remainder) != "payload" {
		t.Error("session payload does not match expected:", remainder)
	}

	// The client must have sent its own version and both preference lists.
	sent := bytes.NewReader(stream.writer.Bytes())
	version, err := wire.ReadInt(sent)
	if err != nil {
		t.Fatal("unable to read sent version:", err)
	}
	if version != 32 {
		t.Error("sent version does not match expected:", version)
	}
	for range []int{0, 1} {
		if _, err := wire.ReadVstring(sent); err != nil {
			t.Fatal("unable to read sent preference list:", err)
		}
	}
	if sent.Len() != 0 {
		t.Error("client sent unexpected trailing bytes:", sent.Len())
	}
}

func TestNegotiateLegacyClient(t *testing.T) {
	script := &bytes.Buffer{}
	script.WriteString("@RSYNCD: 31.0\n")
	if err := compat.Flags(0).Write(script); err != nil {
		t.Fatal("unable to script flags:", err)
	}
	if err := compat.WriteCapabilityList(script, []string{"md5", "md4"}); err != nil {
		t.Fatal("unable to script checksum list:", err)
	}
	if err := compat.WriteCapabilityList(script, []string{"zlib", "none"}); err != nil {
		t.Fatal("unable to script compression list:", err)
	}
	if err := wire.WriteInt(script, 7); err != nil {
		t.Fatal("unable to script seed:", err)
	}

	stream := newScriptedStream(script.Bytes())
	result, err := NewNegotiator(stream, RoleClient, nil).Negotiate()
	if err != nil {
		t.Fatal("negotiation failed:", err)
	}
	if result.Version != protocol.Version31 {
		t.Error("negotiated version does not match expected:", result.Version)
	}
	if result.Prologue != sniff.PrologueLegacyASCII {
		t.Error("prologue does not match expected:", result.Prologue)
	}
	if result.Checksum != "md5" {
		t.Error("checksum algorithm does not match expected:", result.Checksum)
	}
	if result.Compression != "zlib" {
		t.Error("compression algorithm does not match expected:", result.Compression)
	}
	if result.Seed != 7 {
		t.Error("seed does not match expected:", result.Seed)
	}

	// Verify the full sent transcript byte for byte: the greeting line with
	// a single terminator, then the two preference lists. A doubled
	// terminator after the greeting would reach the daemon as an empty
	// module request.
	expected := &bytes.Buffer{}
	expected.WriteString("@RSYNCD: 32.0\n")
	if err := compat.WriteCapabilityList(expected, compat.ChecksumNames); err != nil {
		t.Fatal("unable to render expected checksum list:", err)
	}
	if err := compat.WriteCapabilityList(expected, compat.CompressionNames); err != nil {
		t.Fatal("unable to render expected compression list:", err)
	}
	if !bytes.Equal(stream.writer.Bytes(), expected.Bytes()) {
		t.Errorf("client transcript does not match expected: got %q, want %q",
			stream.writer.Bytes(), expected.Bytes(),
		)
	}
}

func TestNegotiateLegacyFutureVersionClamped(t *testing.T) {
	// A daemon from the future greets with a version above our newest but
	// within the advertisement bound. It speaks everything we do, so the
	// session proceeds at our newest version.
	script := &bytes.Buffer{}
	script.WriteString("@RSYNCD: 33.0\n")
	if err := compat.Flags(0).Write(script); err != nil {
		t.Fatal("unable to script flags:", err)
	}
	if err := compat.WriteCapabilityList(script, []string{"md5"}); err != nil {
		t.Fatal("unable to script checksum list:", err)
	}
	if err := compat.WriteCapabilityList(script, []string{"zlib"}); err != nil {
		t.Fatal("unable to script compression list:", err)
	}
	if err := wire.WriteInt(script, 11); err != nil {
		t.Fatal("unable to script seed:", err)
	}

	result, err := NewNegotiator(newScriptedStream(script.Bytes()), RoleClient, nil).Negotiate()
	if err != nil {
		t.Fatal("negotiation failed:", err)
	}
	if result.Version != protocol.Newest {
		t.Error("negotiated version does not match expected:", result.Version)
	}
	if result.Seed != 11 {
		t.Error("seed does not match expected:", result.Seed)
	}
}

func TestNegotiateLegacyVersionBeyondBound(t *testing.T) {
	// Greeting versions beyond the advertisement bound are rejected as a
	// version range failure, not clamped.
	negotiator := NewNegotiator(newScriptedStream([]byte("@RSYNCD: 41.0\n")), RoleClient, nil)
	if _, err := negotiator.Negotiate(); !IsUnsupportedVersionRange(err) {
		t.Error("out-of-bound advertisement not detected:", err)
	}
	if negotiator.Phase() != PhaseFailed {
		t.Error("negotiator not in failed phase:", negotiator.Phase())
	}
}

func TestNegotiateLegacyOldPeer(t *testing.T) {
	// Protocol 28 has no flags, no algorithm negotiation, just the seed.
	script := &bytes.Buffer{}
	script.WriteString("@RSYNCD: 28\n")
	if err := wire.WriteInt(script, 99); err != nil {
		t.Fatal("unable to script seed:", err)
	}

	result, err := NewNegotiator(newScriptedStream(script.Bytes()), RoleClient, nil).Negotiate()
	if err != nil {
		t.Fatal("negotiation failed:", err)
	}
	if result.Version != protocol.Version28 {
		t.Error("negotiated version does not match expected:", result.Version)
	}
	if result.Flags != 0 {
		t.Error("flags unexpectedly non-zero:", result.Flags)
	}
	if result.Checksum != "" || result.Compression != "" {
		t.Error("algorithms unexpectedly negotiated below protocol 31")
	}
	if result.Seed != 99 {
		t.Error("seed does not match expected:", result.Seed)
	}
}

func TestNegotiateBinaryServer(t *testing.T) {
	script := &bytes.Buffer{}
	if err := wire.WriteInt(script, 30); err != nil {
		t.Fatal("unable to script version:", err)
	}

	stream := newScriptedStream(script.Bytes())
	options := &Options{
		Flags: compat.FlagIncRecurse | compat.FlagSafeFileList,
		Seed:  42,
	}
	result, err := NewNegotiator(stream, RoleServer, options).Negotiate()
	if err != nil {
		t.Fatal("negotiation failed:", err)
	}
	if result.Version != protocol.Version30 {
		t.Error("negotiated version does not match expected:", result.Version)
	}
	if result.Flags != options.Flags {
		t.Error("flags do not match options:", result.Flags)
	}
	if result.Seed != 42 {
		t.Error("seed does not match options:", result.Seed)
	}

	// The server transcript is version, flags, seed, with no algorithm lists
	// below protocol 31.
	sent := bytes.NewReader(stream.writer.Bytes())
	if version, err := wire.ReadInt(sent); err != nil || version != 32 {
		t.Error("sent version does not match expected:", version, err)
	}
	if flags, err := compat.ReadFlags(sent); err != nil || flags != options.Flags {
		t.Error("sent flags do not match options:", flags, err)
	}
	if seed, err := wire.ReadInt(sent); err != nil || seed != 42 {
		t.Error("sent seed does not match options:", seed, err)
	}
	if sent.Len() != 0 {
		t.Error("server sent unexpected trailing bytes:", sent.Len())
	}
}

func TestNegotiateFutureVersionClamped(t *testing.T) {
	// A peer from the future advertises a version above our newest. It can
	// also speak everything we can, so we agree on our newest.
	script := &bytes.Buffer{}
	if err := wire.WriteInt(script, 40); err != nil {
		t.Fatal("unable to script version:", err)
	}
	if err := wire.WriteInt(script, 0); err != nil {
		t.Fatal("unable to script seed:", err)
	}

	options := &Options{Versions: []protocol.Version{protocol.Version29, protocol.Version28}}
	result, err := NewNegotiator(newScriptedStream(script.Bytes()), RoleClient, options).Negotiate()
	if err != nil {
		t.Fatal("negotiation failed:", err)
	}
	if result.Version != protocol.Version29 {
		t.Error("negotiated version does not match expected:", result.Version)
	}
}

func TestNegotiateDisjointVersions(t *testing.T) {
	script := &bytes.Buffer{}
	if err := wire.WriteInt(script, 27); err != nil {
		t.Fatal("unable to script version:", err)
	}
	negotiator := NewNegotiator(newScriptedStream(script.Bytes()), RoleServer, nil)
	if _, err := negotiator.Negotiate(); !IsUnsupportedVersionRange(err) {
		t.Error("disjoint version ranges not detected:", err)
	}
	if negotiator.Phase() != PhaseFailed {
		t.Error("negotiator not in failed phase:", negotiator.Phase())
	}
}

func TestNegotiateDisjointLegacyVersions(t *testing.T) {
	options := &Options{Versions: []protocol.Version{
		protocol.Version32, protocol.Version31, protocol.Version30,
	}}
	stream := newScriptedStream([]byte("@RSYNCD: 29\n"))
	if _, err := NewNegotiator(stream, RoleServer, options).Negotiate(); !IsUnsupportedVersionRange(err) {
		t.Error("disjoint version ranges not detected:", err)
	}
}

func TestNegotiateMalformedGreeting(t *testing.T) {
	stream := newScriptedStream([]byte("@RSYNCD: banana\n"))
	negotiator := NewNegotiator(stream, RoleClient, nil)
	if _, err := negotiator.Negotiate(); !daemon.IsMalformedGreeting(err) {
		t.Error("malformed greeting not detected:", err)
	}
	if negotiator.Phase() != PhaseFailed {
		t.Error("negotiator not in failed phase:", negotiator.Phase())
	}
}

func TestNegotiateUnrecognizedPrologue(t *testing.T) {
	stream := newScriptedStream([]byte("@RSYNCX: 31\n"))
	if _, err := NewNegotiator(stream, RoleClient, nil).Negotiate(); !sniff.IsPrefixMismatch(err) {
		t.Error("prologue mismatch not detected:", err)
	}
}

func TestNegotiateTruncatedStreams(t *testing.T) {
	testCases := [][]byte{
		nil,
		{0x1F},
		{0x1F, 0x00},
		[]byte("@RSY"),
		[]byte("@RSYNCD: 31"),
	}
	for _, script := range testCases {
		negotiator := NewNegotiator(newScriptedStream(script), RoleClient, nil)
		if _, err := negotiator.Negotiate(); !IsTruncatedHandshake(err) {
			t.Errorf("truncation not detected for script %q: %v", script, err)
		}
		if negotiator.Phase() != PhaseFailed {
			t.Error("negotiator not in failed phase:", negotiator.Phase())
		}
	}
}

func TestNegotiateSingleUse(t *testing.T) {
	script := &bytes.Buffer{}
	if err := wire.WriteInt(script, 28); err != nil {
		t.Fatal("unable to script version:", err)
	}
	if err := wire.WriteInt(script, 0); err != nil {
		t.Fatal("unable to script seed:", err)
	}
	negotiator := NewNegotiator(newScriptedStream(script.Bytes()), RoleClient, nil)
	if _, err := negotiator.Negotiate(); err != nil {
		t.Fatal("negotiation failed:", err)
	}
	if _, err := negotiator.Negotiate(); err == nil {
		t.Error("negotiator accepted a second handshake")
	}
}
