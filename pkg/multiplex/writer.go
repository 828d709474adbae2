package multiplex

import (
	"bufio"
	"io"
	"sync"

	"github.com/pkg/errors"
)

// Writer multiplexes frames onto an io.Writer. Frames are written atomically
// with respect to interleaving: a mutex guarantees that no other frame's
// header or payload lands between a frame's header and its payload. Once a
// write fails, the writer latches the error and refuses further frames, since
// a partially written frame leaves the peer desynchronized.
type Writer struct {
	// lock restricts access to the writer's state.
	lock sync.Mutex
	// writer is a buffered version of the underlying stream. Buffering avoids
	// separate short writes for header and payload.
	writer *bufio.Writer
	// err is the first error encountered during a write.
	err error
}

// NewWriter creates a frame writer on top of a stream.
func NewWriter(writer io.Writer) *Writer {
	return &Writer{writer: bufio.NewWriter(writer)}
}

// WriteFrame writes a single frame. Payloads larger than MaxPayloadLength are
// rejected before any bytes reach the wire; this is not a latching error
// since the stream remains synchronized.
func (w *Writer) WriteFrame(code Code, payload []byte) error {
	if len(payload) > MaxPayloadLength {
		return errors.Errorf("payload length %d exceeds frame maximum", len(payload))
	}

	// Lock the writer and defer its release.
	w.lock.Lock()
	defer w.lock.Unlock()

	// Check if the writer is errored.
	if w.err != nil {
		return errors.Wrap(w.err, "previous write error encountered")
	}

	// Write the header.
	if err := (header{code, uint32(len(payload))}).write(w.writer); err != nil {
		w.err = err
		return err
	}

	// Write the payload.
	if _, err := w.writer.Write(payload); err != nil {
		w.err = errors.Wrap(err, "unable to write frame payload")
		return w.err
	}

	// Flush so the frame is visible to the peer as a unit.
	if err := w.writer.Flush(); err != nil {
		w.err = errors.Wrap(err, "unable to flush frame")
		return w.err
	}

	// Success.
	return nil
}

// WriteMessage writes diagnostic text on a non-data channel.
func (w *Writer) WriteMessage(code Code, message string) error {
	return w.WriteFrame(code, []byte(message))
}

// dataWriter adapts the data channel to io.Writer, splitting large buffers
// across multiple frames.
type dataWriter struct {
	// writer is the underlying frame writer.
	writer *Writer
}

// Write implements io.Writer.Write by framing the buffer on the data channel.
func (d *dataWriter) Write(buffer []byte) (int, error) {
	var written int
	for len(buffer) > 0 {
		chunk := buffer
		if len(chunk) > MaxPayloadLength {
			chunk = chunk[:MaxPayloadLength]
		}
		if err := d.writer.WriteFrame(CodeData, chunk); err != nil {
			return written, err
		}
		written += len(chunk)
		buffer = buffer[len(chunk):]
	}
	return written, nil
}

// DataWriter returns an io.Writer that frames its input on the data channel.
// Buffers larger than the frame maximum are split across frames.
func (w *Writer) DataWriter() io.Writer {
	return &dataWriter{w}
}
