package stream

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"golang.org/x/sys/unix"
)

// pipeHandles returns a read handle and the raw write fd of a fresh
// non-blocking pipe. Close the write fd to signal EOF to the handle.
func pipeHandles(t *testing.T, delim string) (*Handle, int) {
	t.Helper()
	var p [2]int
	if err := unix.Pipe(p[:]); err != nil {
		t.Fatalf("pipe: %v", err)
	}
	for _, fd := range p {
		if err := unix.SetNonblock(fd, true); err != nil {
			t.Fatalf("set nonblock: %v", err)
		}
	}
	h := NewHandle(p[0], []byte(delim))
	t.Cleanup(func() { h.Close() })
	return h, p[1]
}

func feed(t *testing.T, fd int, data string) {
	t.Helper()
	if _, err := unix.Write(fd, []byte(data)); err != nil {
		t.Fatalf("write to pipe: %v", err)
	}
}

func flushStrings(h *Handle) []string {
	var out []string
	for _, line := range h.Flush() {
		out = append(out, string(line))
	}
	return out
}

func TestFlushEmptyBuffer(t *testing.T) {
	h, w := pipeHandles(t, ":")
	defer unix.Close(w)

	if lines := h.Flush(); len(lines) != 0 {
		t.Errorf("Flush on empty buffer returned %d lines", len(lines))
	}
}

func TestFlushPartialLine(t *testing.T) {
	h, w := pipeHandles(t, ":")
	defer unix.Close(w)

	feed(t, w, "incomplete")
	if n, err := h.ReadBytes(64); err != nil || n != len("incomplete") {
		t.Fatalf("ReadBytes = (%d, %v)", n, err)
	}
	if lines := h.Flush(); len(lines) != 0 {
		t.Errorf("Flush returned %d lines for delimiter-free buffer", len(lines))
	}
	if h.Buffered() != len("incomplete") {
		t.Errorf("Buffered() = %d, want %d", h.Buffered(), len("incomplete"))
	}
}

func TestFlushCompleteAndTrailing(t *testing.T) {
	h, w := pipeHandles(t, ":")
	defer unix.Close(w)

	feed(t, w, "fnord:slack:qwerty")
	if _, err := h.ReadBytes(64); err != nil {
		t.Fatalf("ReadBytes: %v", err)
	}

	got := flushStrings(h)
	want := []string{"fnord", "slack"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("Flush = %v, want %v", got, want)
	}
	if h.Buffered() != len("qwerty") {
		t.Errorf("trailing partial = %d bytes, want %d", h.Buffered(), len("qwerty"))
	}

	// The partial completes on a later read.
	feed(t, w, ":")
	if _, err := h.ReadBytes(64); err != nil {
		t.Fatalf("ReadBytes: %v", err)
	}
	if got := flushStrings(h); len(got) != 1 || got[0] != "qwerty" {
		t.Errorf("second Flush = %v, want [qwerty]", got)
	}
}

func TestFlushMultiByteDelimiter(t *testing.T) {
	h, w := pipeHandles(t, "\r\n")
	defer unix.Close(w)

	feed(t, w, "one\r\ntwo\r\nthr")
	if _, err := h.ReadBytes(64); err != nil {
		t.Fatalf("ReadBytes: %v", err)
	}

	got := flushStrings(h)
	if len(got) != 2 || got[0] != "one" || got[1] != "two" {
		t.Errorf("Flush = %v, want [one two]", got)
	}
	if h.Buffered() != 3 {
		t.Errorf("Buffered() = %d, want 3", h.Buffered())
	}
}

func TestReadBytesChunkLimit(t *testing.T) {
	h, w := pipeHandles(t, "\n")
	defer unix.Close(w)

	feed(t, w, "abcdefgh")
	if n, err := h.ReadBytes(3); err != nil || n != 3 {
		t.Fatalf("ReadBytes(3) = (%d, %v), want (3, nil)", n, err)
	}
	if n, err := h.ReadBytes(64); err != nil || n != 5 {
		t.Fatalf("second ReadBytes = (%d, %v), want (5, nil)", n, err)
	}
}

func TestReadBytesWouldBlock(t *testing.T) {
	h, w := pipeHandles(t, "\n")
	defer unix.Close(w)

	if n, err := h.ReadBytes(64); err != nil || n != 0 {
		t.Errorf("ReadBytes on empty pipe = (%d, %v), want (0, nil)", n, err)
	}
}

func TestReadBytesEOF(t *testing.T) {
	h, w := pipeHandles(t, "\n")

	feed(t, w, "tail\n")
	unix.Close(w)

	if _, err := h.ReadBytes(64); err != nil {
		t.Fatalf("ReadBytes: %v", err)
	}
	if _, err := h.ReadBytes(64); !errors.Is(err, io.EOF) {
		t.Errorf("ReadBytes at EOF = %v, want io.EOF", err)
	}
	// Buffered lines survive EOF.
	if got := flushStrings(h); len(got) != 1 || got[0] != "tail" {
		t.Errorf("Flush after EOF = %v, want [tail]", got)
	}
}

func TestWriteBytesEmptyBuffer(t *testing.T) {
	var p [2]int
	if err := unix.Pipe(p[:]); err != nil {
		t.Fatalf("pipe: %v", err)
	}
	unix.SetNonblock(p[1], true)
	defer unix.Close(p[0])

	h := NewHandle(p[1], nil)
	defer h.Close()

	if n, err := h.WriteBytes(64); err != nil || n != 0 {
		t.Errorf("WriteBytes with no queued data = (%d, %v), want (0, nil)", n, err)
	}
}

func TestWriteBytesPartialDrain(t *testing.T) {
	var p [2]int
	if err := unix.Pipe(p[:]); err != nil {
		t.Fatalf("pipe: %v", err)
	}
	unix.SetNonblock(p[1], true)
	defer unix.Close(p[0])

	h := NewHandle(p[1], nil)
	defer h.Close()

	if err := h.QueueWrite([]byte("hello world")); err != nil {
		t.Fatalf("QueueWrite: %v", err)
	}

	if n, err := h.WriteBytes(5); err != nil || n != 5 {
		t.Fatalf("WriteBytes(5) = (%d, %v), want (5, nil)", n, err)
	}
	if h.Pending() != len(" world") {
		t.Errorf("Pending() = %d, want %d", h.Pending(), len(" world"))
	}
	if n, err := h.WriteBytes(64); err != nil || n != len(" world") {
		t.Fatalf("WriteBytes = (%d, %v)", n, err)
	}

	buf := make([]byte, 64)
	n, _ := unix.Read(p[0], buf)
	if !bytes.Equal(buf[:n], []byte("hello world")) {
		t.Errorf("pipe received %q, want %q", buf[:n], "hello world")
	}
}

func TestWriteBytesBrokenPipe(t *testing.T) {
	var p [2]int
	if err := unix.Pipe(p[:]); err != nil {
		t.Fatalf("pipe: %v", err)
	}
	unix.SetNonblock(p[1], true)
	unix.Close(p[0])

	h := NewHandle(p[1], nil)
	h.QueueWrite([]byte("doomed"))

	if _, err := h.WriteBytes(64); err == nil {
		t.Fatal("WriteBytes to broken pipe succeeded")
	}
	if !h.Closed() {
		t.Error("handle not closed after I/O failure")
	}
	if h.Err() == nil {
		t.Error("Err() is nil after I/O failure")
	}
}

func TestUseAfterClose(t *testing.T) {
	h, w := pipeHandles(t, "\n")
	defer unix.Close(w)

	if err := h.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := h.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}

	if _, err := h.ReadBytes(64); !errors.Is(err, ErrClosed) {
		t.Errorf("ReadBytes after close = %v, want ErrClosed", err)
	}
	if _, err := h.WriteBytes(64); !errors.Is(err, ErrClosed) {
		t.Errorf("WriteBytes after close = %v, want ErrClosed", err)
	}
	if err := h.QueueWrite([]byte("x")); !errors.Is(err, ErrClosed) {
		t.Errorf("QueueWrite after close = %v, want ErrClosed", err)
	}
}
