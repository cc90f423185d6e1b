package proc

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recvTimeout guards Recv with a deadline so a broken queue fails the
// test instead of hanging it.
func recvTimeout(t *testing.T, recv func() (Message, bool)) (Message, bool) {
	t.Helper()
	type result struct {
		m  Message
		ok bool
	}
	ch := make(chan result, 1)
	go func() {
		m, ok := recv()
		ch <- result{m, ok}
	}()
	select {
	case r := <-ch:
		return r.m, r.ok
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for message")
		return Message{}, false
	}
}

func joinTimeout(t *testing.T, c *Controller) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		c.Join()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for process exit")
	}
}

func TestEchoRoundTrip(t *testing.T) {
	c := New("cat", "cat", nil, WithLogger(testLogger()))
	if err := c.Launch(); err != nil {
		t.Fatalf("launch: %v", err)
	}
	defer func() {
		c.Terminate()
		joinTimeout(t, c)
	}()

	if err := c.Send("hello world"); err != nil {
		t.Fatalf("send: %v", err)
	}
	msg, ok := recvTimeout(t, c.Recv)
	if !ok {
		t.Fatal("expected a message, got end of stream")
	}
	if !msg.IsStdout() {
		t.Errorf("source = %q, want stdout", msg.Source)
	}
	if msg.Text != "hello world" {
		t.Errorf("text = %q, want %q", msg.Text, "hello world")
	}
	if msg.Member != "cat" {
		t.Errorf("member = %q, want %q", msg.Member, "cat")
	}
}

func TestLifecycleStates(t *testing.T) {
	c := New("cat", "cat", nil, WithLogger(testLogger()))
	if got := c.State(); got != StateReady {
		t.Fatalf("initial state = %s, want %s", got, StateReady)
	}
	if err := c.Launch(); err != nil {
		t.Fatalf("launch: %v", err)
	}
	if got := c.State(); got != StateRunning {
		t.Fatalf("state after launch = %s, want %s", got, StateRunning)
	}
	if c.Pid() == 0 {
		t.Error("expected nonzero pid while running")
	}
	if err := c.Launch(); !errors.Is(err, ErrNotReady) {
		t.Errorf("second launch error = %v, want ErrNotReady", err)
	}
	c.Terminate()
	joinTimeout(t, c)
	if got := c.State(); got != StateReady {
		t.Fatalf("state after join = %s, want %s", got, StateReady)
	}
	if c.Pid() != 0 {
		t.Error("expected zero pid after exit")
	}
	if _, ok := c.ExitCode(); !ok {
		t.Error("expected exit code after join")
	}
}

func TestNaturalExit(t *testing.T) {
	c := New("echo", "sh", []string{"-c", "echo done"}, WithLogger(testLogger()))
	if err := c.Launch(); err != nil {
		t.Fatalf("launch: %v", err)
	}
	joinTimeout(t, c)

	msg, ok := recvTimeout(t, c.Recv)
	if !ok || msg.Text != "done" || !msg.IsStdout() {
		t.Fatalf("got (%+v, %v), want stdout %q", msg, ok, "done")
	}
	if _, ok := recvTimeout(t, c.Recv); ok {
		t.Error("expected end of stream after output drained")
	}
	if code, ok := c.ExitCode(); !ok || code != 0 {
		t.Errorf("exit code = (%d, %v), want (0, true)", code, ok)
	}
}

func TestNonZeroExitCode(t *testing.T) {
	c := New("fail", "sh", []string{"-c", "exit 7"}, WithLogger(testLogger()))
	if err := c.Launch(); err != nil {
		t.Fatalf("launch: %v", err)
	}
	joinTimeout(t, c)
	if code, ok := c.ExitCode(); !ok || code != 7 {
		t.Errorf("exit code = (%d, %v), want (7, true)", code, ok)
	}
	st, _ := c.ExitStatus()
	if st.Signaled {
		t.Error("plain exit should not be marked signaled")
	}
}

func TestStderrTagging(t *testing.T) {
	c := New("errs", "sh", []string{"-c", "echo oops 1>&2"}, WithLogger(testLogger()))
	if err := c.Launch(); err != nil {
		t.Fatalf("launch: %v", err)
	}
	joinTimeout(t, c)

	msg, ok := recvTimeout(t, c.Recv)
	if !ok {
		t.Fatal("expected a message, got end of stream")
	}
	if !msg.IsStderr() || msg.Text != "oops" {
		t.Errorf("got %+v, want stderr %q", msg, "oops")
	}
}

func TestSpawnFailureStaysReady(t *testing.T) {
	c := New("bad", "/nonexistent/binary", nil, WithLogger(testLogger()))
	if err := c.Launch(); err == nil {
		t.Fatal("expected launch to fail")
	}
	if got := c.State(); got != StateReady {
		t.Errorf("state after failed launch = %s, want %s", got, StateReady)
	}
	if err := c.Launch(); errors.Is(err, ErrNotReady) {
		t.Error("controller should still be launchable after a spawn failure")
	}
}

func TestSendOutsideRunning(t *testing.T) {
	c := New("cat", "cat", nil, WithLogger(testLogger()))
	if err := c.Send("nope"); !errors.Is(err, ErrNoInput) {
		t.Errorf("send while ready = %v, want ErrNoInput", err)
	}
}

func TestTerminateOutsideRunning(t *testing.T) {
	c := New("cat", "cat", nil, WithLogger(testLogger()))
	c.Terminate() // must not panic or change state
	if got := c.State(); got != StateReady {
		t.Errorf("state = %s, want %s", got, StateReady)
	}
	c.Join() // nothing running, returns immediately
}

func TestRelaunch(t *testing.T) {
	c := New("echo", "sh", []string{"-c", "echo run"}, WithLogger(testLogger()))
	for i := 0; i < 2; i++ {
		if err := c.Launch(); err != nil {
			t.Fatalf("launch %d: %v", i, err)
		}
		joinTimeout(t, c)
		msg, ok := recvTimeout(t, c.Recv)
		if !ok || msg.Text != "run" {
			t.Fatalf("run %d: got (%+v, %v)", i, msg, ok)
		}
	}
}

func TestCustomDelimiter(t *testing.T) {
	c := New("csv", "sh", []string{"-c", `printf "a;b;c"`},
		WithLogger(testLogger()), WithEOL(";"))
	if err := c.Launch(); err != nil {
		t.Fatalf("launch: %v", err)
	}
	joinTimeout(t, c)

	var got []string
	for {
		msg, ok := recvTimeout(t, c.Recv)
		if !ok {
			break
		}
		got = append(got, msg.Text)
	}
	// "c" has no trailing delimiter and is discarded with the stream.
	want := []string{"a", "b"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSignaledExit(t *testing.T) {
	c := New("sleeper", "sleep", []string{"60"}, WithLogger(testLogger()))
	if err := c.Launch(); err != nil {
		t.Fatalf("launch: %v", err)
	}
	c.Terminate()
	joinTimeout(t, c)

	st, ok := c.ExitStatus()
	if !ok {
		t.Fatal("expected exit status after join")
	}
	if !st.Signaled {
		t.Error("expected a signaled exit")
	}
	if st.Code != 143 {
		t.Errorf("exit code = %d, want 143", st.Code)
	}
}

func TestRecvAfterExitDrainsThenEnds(t *testing.T) {
	c := New("burst", "sh", []string{"-c", "echo one; echo two"}, WithLogger(testLogger()))
	if err := c.Launch(); err != nil {
		t.Fatalf("launch: %v", err)
	}
	joinTimeout(t, c)

	var lines []string
	for {
		msg, ok := recvTimeout(t, c.Recv)
		if !ok {
			break
		}
		lines = append(lines, msg.Text)
	}
	if len(lines) != 2 || lines[0] != "one" || lines[1] != "two" {
		t.Errorf("lines = %v, want [one two]", lines)
	}
	// End of stream is sticky.
	if _, ok := recvTimeout(t, c.Recv); ok {
		t.Error("expected sticky end of stream")
	}
}
