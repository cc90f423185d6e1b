package stream

import (
	"bytes"
	"errors"
	"io"
	"sync"

	"golang.org/x/sys/unix"
)

// ErrClosed is returned by operations on a handle whose fd is closed.
var ErrClosed = errors.New("stream: handle closed")

// DefaultDelimiter is used when a handle is created with an empty delimiter.
var DefaultDelimiter = []byte("\n")

// Handle wraps one non-blocking file descriptor as a line-oriented duplex
// buffer. Inbound bytes accumulate until Flush slices out complete
// delimiter-terminated lines; outbound bytes queue until WriteBytes drains
// them. Neither direction ever blocks: a would-block condition reports zero
// bytes moved, not an error.
type Handle struct {
	mu     sync.Mutex
	fd     int
	delim  []byte
	in     []byte
	out    []byte
	closed bool
	err    error
}

// NewHandle wraps fd, which must already be in non-blocking mode. The
// handle takes ownership of the fd and closes it on Close or on the first
// real I/O error.
func NewHandle(fd int, delim []byte) *Handle {
	if len(delim) == 0 {
		delim = DefaultDelimiter
	}
	return &Handle{fd: fd, delim: delim}
}

// Fd returns the wrapped descriptor.
func (h *Handle) Fd() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.fd
}

// QueueWrite appends p to the outbound buffer without touching the fd.
func (h *Handle) QueueWrite(p []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrClosed
	}
	h.out = append(h.out, p...)
	return nil
}

// WriteBytes attempts to write up to max bytes from the front of the
// outbound buffer. It returns the number of bytes actually written; zero
// means either an empty buffer (no syscall is made) or a would-block
// condition. A real I/O failure closes the handle and is returned; the
// unwritten suffix stays queued in order.
func (h *Handle) WriteBytes(max int) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return 0, ErrClosed
	}
	if len(h.out) == 0 {
		return 0, nil
	}

	n := len(h.out)
	if max > 0 && n > max {
		n = max
	}
	written, err := unix.Write(h.fd, h.out[:n])
	if err != nil {
		if err == unix.EAGAIN || err == unix.EINTR {
			return 0, nil
		}
		h.failLocked(err)
		return 0, err
	}
	if written > 0 {
		h.out = h.out[written:]
	}
	return written, nil
}

// ReadBytes attempts to read up to max bytes, appending them to the
// inbound buffer. Zero with a nil error means no data was available.
// End of stream is reported as io.EOF; any other failure closes the
// handle and is returned.
func (h *Handle) ReadBytes(max int) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return 0, ErrClosed
	}
	if max <= 0 {
		return 0, nil
	}

	off := len(h.in)
	if cap(h.in)-off < max {
		grown := make([]byte, off, off+max)
		copy(grown, h.in)
		h.in = grown
	}
	n, err := unix.Read(h.fd, h.in[off:off+max])
	if err != nil {
		if err == unix.EAGAIN || err == unix.EINTR {
			return 0, nil
		}
		h.failLocked(err)
		return 0, err
	}
	if n == 0 {
		return 0, io.EOF
	}
	h.in = h.in[:off+n]
	return n, nil
}

// Flush extracts every complete delimiter-terminated line from the inbound
// buffer, in order, with the delimiter stripped. Bytes after the last
// delimiter stay buffered for a future flush. Multi-byte delimiters and
// several delimiters per read are handled.
func (h *Handle) Flush() [][]byte {
	h.mu.Lock()
	defer h.mu.Unlock()

	var lines [][]byte
	for {
		i := bytes.Index(h.in, h.delim)
		if i < 0 {
			break
		}
		line := make([]byte, i)
		copy(line, h.in[:i])
		lines = append(lines, line)
		rest := h.in[i+len(h.delim):]
		copy(h.in, rest)
		h.in = h.in[:len(rest)]
	}
	return lines
}

// Pending returns the number of queued outbound bytes.
func (h *Handle) Pending() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.out)
}

// Buffered returns the number of unconsumed inbound bytes.
func (h *Handle) Buffered() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.in)
}

// Close closes the fd. It is idempotent and keeps any buffered inbound
// data available to Flush.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closeLocked()
}

// Closed reports whether the handle has been closed.
func (h *Handle) Closed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

// Err returns the I/O error that closed the handle, if any.
func (h *Handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

func (h *Handle) failLocked(err error) {
	h.err = err
	_ = h.closeLocked()
}

func (h *Handle) closeLocked() error {
	if h.closed {
		return nil
	}
	h.closed = true
	h.out = nil
	return unix.Close(h.fd)
}
