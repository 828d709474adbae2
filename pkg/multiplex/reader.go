package multiplex

import (
	"bufio"
	"io"

	"github.com/pkg/errors"
)

// Reader reads frames from an io.Reader. It is not safe for concurrent use:
// each session owns exactly one reader, matching the strictly ordered frame
// processing the protocol requires.
type Reader struct {
	// reader is a buffered version of the underlying stream.
	reader *bufio.Reader
	// buffer is a re-usable payload buffer. Its capacity is bounded by the
	// 24-bit frame length limit, so an adversarial header can't force an
	// unbounded allocation.
	buffer []byte
}

// NewReader creates a frame reader on top of a stream.
func NewReader(reader io.Reader) *Reader {
	return &Reader{reader: bufio.NewReader(reader)}
}

// bufferWithSize sizes the reader's internal payload buffer, retaining
// capacity between frames to avoid per-frame allocation.
func (r *Reader) bufferWithSize(size uint32) []byte {
	if uint32(cap(r.buffer)) >= size {
		return r.buffer[:size]
	}
	r.buffer = make([]byte, size)
	return r.buffer
}

// ReadFrame reads the next frame, blocking until its header and full payload
// are available. The returned payload is owned by the reader and valid only
// until the next call. A clean end of stream at a frame boundary returns
// io.EOF; an end of stream inside a frame is an error.
func (r *Reader) ReadFrame() (Code, []byte, error) {
	// Read and validate the header.
	h, err := readHeader(r.reader)
	if err != nil {
		if err == io.EOF {
			return 0, nil, io.EOF
		}
		return 0, nil, err
	}

	// Read the payload. The declared length bounds the allocation.
	payload := r.bufferWithSize(h.length)
	if _, err := io.ReadFull(r.reader, payload); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return 0, nil, errors.Wrap(io.ErrUnexpectedEOF, "stream ended inside frame payload")
		}
		return 0, nil, errors.Wrap(err, "unable to read frame payload")
	}

	// Success.
	return h.code, payload, nil
}

// MessageHandler receives out-of-band (non-data) frames. The payload is
// valid only for the duration of the call; handlers that retain it must copy.
type MessageHandler func(Code, []byte)

// DataReader adapts the data channel to io.Reader. Non-data frames
// encountered while reading are delivered to the handler immediately, in
// arrival order, before any data bytes from later frames are surfaced. This
// preserves the interleaving of diagnostics and data exactly as the peer
// produced it.
type DataReader struct {
	// reader is the underlying frame reader.
	reader *Reader
	// handler receives out-of-band frames. It may be nil, in which case
	// out-of-band frames are discarded.
	handler MessageHandler
	// pending is the unconsumed remainder of the current data frame.
	pending []byte
}

// NewDataReader creates a data channel reader with an out-of-band message
// handler.
func NewDataReader(reader *Reader, handler MessageHandler) *DataReader {
	return &DataReader{reader: reader, handler: handler}
}

// Read implements io.Reader.Read on the data channel.
func (d *DataReader) Read(buffer []byte) (int, error) {
	// Pull frames until data is available, dispatching any out-of-band
	// frames along the way.
	for len(d.pending) == 0 {
		code, payload, err := d.reader.ReadFrame()
		if err != nil {
			return 0, err
		}
		if code == CodeData {
			// Empty data frames are legal and simply yield no bytes.
			d.pending = payload
		} else if d.handler != nil {
			d.handler(code, payload)
		}
	}

	// Surface pending data.
	copied := copy(buffer, d.pending)
	d.pending = d.pending[copied:]
	return copied, nil
}
