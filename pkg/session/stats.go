package session

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"

	"github.com/wirebind/rsyncwire/pkg/protocol"
	"github.com/wirebind/rsyncwire/pkg/wire"
)

// TransferStats are the end-of-session transfer totals. They travel from the
// server's perspective: BytesRead counts what the server read. Protocol 30
// added the two file-list timing fields; earlier versions send only the
// first three.
type TransferStats struct {
	// BytesRead is the total number of bytes read from the stream.
	BytesRead int64
	// BytesWritten is the total number of bytes written to the stream.
	BytesWritten int64
	// TotalSize is the total size of the transferred files.
	TotalSize int64
	// FileListBuildTime is the time spent building the file list, in
	// milliseconds.
	FileListBuildTime int64
	// FileListTransferTime is the time spent sending the file list, in
	// milliseconds.
	FileListTransferTime int64
}

// Write writes the statistics for a negotiated protocol version. Every field
// travels as a variable-length integer with a 3-byte minimum.
func (s TransferStats) Write(writer io.Writer, version protocol.Version) error {
	fields := []int64{s.BytesRead, s.BytesWritten, s.TotalSize}
	if version.UsesVarintEncoding() {
		fields = append(fields, s.FileListBuildTime, s.FileListTransferTime)
	}
	for _, field := range fields {
		if err := wire.WriteVarlong(writer, field, 3); err != nil {
			return errors.Wrap(err, "unable to write transfer statistics")
		}
	}
	return nil
}

// ReadTransferStats reads statistics for a negotiated protocol version.
func ReadTransferStats(reader io.Reader, version protocol.Version) (TransferStats, error) {
	var stats TransferStats
	fields := []*int64{&stats.BytesRead, &stats.BytesWritten, &stats.TotalSize}
	if version.UsesVarintEncoding() {
		fields = append(fields, &stats.FileListBuildTime, &stats.FileListTransferTime)
	}
	for _, field := range fields {
		value, err := wire.ReadVarlong(reader, 3)
		if err != nil {
			return TransferStats{}, errors.Wrap(err, "unable to read transfer statistics")
		}
		*field = value
	}
	return stats, nil
}

// SwapPerspective converts server-perspective statistics into the client's
// view by exchanging the read and written totals.
func (s TransferStats) SwapPerspective() TransferStats {
	s.BytesRead, s.BytesWritten = s.BytesWritten, s.BytesRead
	return s
}

// String renders the statistics with humanized sizes.
func (s TransferStats) String() string {
	return fmt.Sprintf(
		"read %s, wrote %s, total size %s",
		humanize.Bytes(uint64(s.BytesRead)),
		humanize.Bytes(uint64(s.BytesWritten)),
		humanize.Bytes(uint64(s.TotalSize)),
	)
}

// DeleteStats are the per-kind deletion counts reported at the end of a
// session with deletion enabled. All five fields travel as variable-length
// integers.
type DeleteStats struct {
	// Files is the number of regular files deleted.
	Files int32
	// Dirs is the number of directories deleted.
	Dirs int32
	// Symlinks is the number of symbolic links deleted.
	Symlinks int32
	// Devices is the number of device nodes deleted.
	Devices int32
	// Specials is the number of other special files deleted.
	Specials int32
}

// Write writes the deletion statistics.
func (s DeleteStats) Write(writer io.Writer) error {
	for _, field := range []int32{s.Files, s.Dirs, s.Symlinks, s.Devices, s.Specials} {
		if err := wire.WriteVarint(writer, field); err != nil {
			return errors.Wrap(err, "unable to write deletion statistics")
		}
	}
	return nil
}

// ReadDeleteStats reads deletion statistics.
func ReadDeleteStats(reader io.Reader) (DeleteStats, error) {
	var stats DeleteStats
	fields := []*int32{&stats.Files, &stats.Dirs, &stats.Symlinks, &stats.Devices, &stats.Specials}
	for _, field := range fields {
		value, err := wire.ReadVarint(reader)
		if err != nil {
			return DeleteStats{}, errors.Wrap(err, "unable to read deletion statistics")
		}
		*field = value
	}
	return stats, nil
}

// Total returns the total number of deletions across all kinds.
func (s DeleteStats) Total() int64 {
	return int64(s.Files) + int64(s.Dirs) + int64(s.Symlinks) +
		int64(s.Devices) + int64(s.Specials)
}
