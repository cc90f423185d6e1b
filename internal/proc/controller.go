package proc

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/smazurov/procmux/internal/events"
	"github.com/smazurov/procmux/internal/metrics"
	"github.com/smazurov/procmux/internal/queue"
	"github.com/smazurov/procmux/internal/reactor"
	"github.com/smazurov/procmux/internal/spawn"
	"github.com/smazurov/procmux/internal/stream"
)

// Usage errors. These indicate a caller bug and are never retried.
var (
	ErrNotReady = errors.New("proc: controller not ready")
	ErrNoInput  = errors.New("proc: stdin unavailable")
)

const (
	readChunk  = 4096
	writeChunk = 4096
)

var (
	defaultLoopOnce sync.Once
	defaultLoopVal  *reactor.Reactor
)

// defaultLoop lazily starts the process-wide reactor shared by
// controllers that were not given one explicitly.
func defaultLoop() *reactor.Reactor {
	defaultLoopOnce.Do(func() {
		r, err := reactor.New(slog.Default())
		if err != nil {
			panic(fmt.Sprintf("proc: cannot create reactor: %v", err))
		}
		if err := r.Start(); err != nil {
			panic(fmt.Sprintf("proc: cannot start reactor: %v", err))
		}
		defaultLoopVal = r
	})
	return defaultLoopVal
}

// Controller owns the lifecycle of one child process and multiplexes its
// standard streams into a message queue.
type Controller struct {
	name    string
	command string
	args    []string
	eol     []byte
	stopSig syscall.Signal

	loop    *reactor.Reactor
	spawner spawn.Spawner
	bus     *events.Bus
	logger  *slog.Logger

	mu        sync.Mutex
	state     State
	child     *spawn.Child
	in        *stream.Handle
	out       *stream.Handle
	errh      *stream.Handle
	q         *queue.Queue[Message]
	deliver   func(Message)      // group redirection; nil delivers to own queue
	onEnd     func(*Controller)  // group removal hook
	exited    chan struct{}      // closed once the current run's exit is handled
	status    spawn.Status
	hasStatus bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithEOL sets the line delimiter for all three streams and for Send.
// Defaults to "\n". Multi-byte delimiters are supported.
func WithEOL(eol string) Option {
	return func(c *Controller) { c.eol = []byte(eol) }
}

// WithReactor sets the readiness loop driving the controller's streams.
// Controllers sharing a reactor share one dispatch goroutine.
func WithReactor(r *reactor.Reactor) Option {
	return func(c *Controller) { c.loop = r }
}

// WithSpawner replaces the process-spawn primitive, mainly for tests.
func WithSpawner(s spawn.Spawner) Option {
	return func(c *Controller) { c.spawner = s }
}

// WithLogger sets the controller's logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithBus attaches an event bus; the controller publishes lifecycle and
// line events to it.
func WithBus(b *events.Bus) Option {
	return func(c *Controller) { c.bus = b }
}

// WithStopSignal sets the signal Terminate delivers. Defaults to SIGTERM.
func WithStopSignal(sig syscall.Signal) Option {
	return func(c *Controller) { c.stopSig = sig }
}

// New creates a controller in the ready state. Nothing is spawned until
// Launch.
func New(name, command string, args []string, opts ...Option) *Controller {
	c := &Controller{
		name:    name,
		command: command,
		args:    args,
		eol:     []byte("\n"),
		stopSig: syscall.SIGTERM,
		spawner: &spawn.PipeSpawner{},
		logger:  slog.Default(),
		state:   StateReady,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.loop == nil {
		c.loop = defaultLoop()
	}
	return c
}

// Name returns the controller's name.
func (c *Controller) Name() string { return c.name }

// Command returns the configured executable.
func (c *Controller) Command() string { return c.command }

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Pid returns the child's process ID, or 0 outside running/stopping.
func (c *Controller) Pid() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.child == nil {
		return 0
	}
	return c.child.Pid
}

// ExitStatus returns the status of the last completed run.
func (c *Controller) ExitStatus() (spawn.Status, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status, c.hasStatus
}

// ExitCode returns the exit code of the last completed run.
func (c *Controller) ExitCode() (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status.Code, c.hasStatus
}

// Launch spawns the child and wires its streams into the reactor. It
// fails with ErrNotReady outside the ready state; a spawn failure leaves
// the controller ready and returns the OS error.
func (c *Controller) Launch() error {
	c.mu.Lock()
	if c.state != StateReady {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("proc %q: launch while %s: %w", c.name, state, ErrNotReady)
	}

	child, err := c.spawner.Spawn(c.command, c.args)
	if err != nil {
		c.mu.Unlock()
		return fmt.Errorf("proc %q: spawn: %w", c.name, err)
	}

	c.child = child
	c.in = stream.NewHandle(child.Stdin, c.eol)
	c.out = stream.NewHandle(child.Stdout, c.eol)
	c.errh = stream.NewHandle(child.Stderr, c.eol)
	c.q = queue.New[Message]()
	c.status = spawn.Status{}
	c.hasStatus = false
	c.exited = make(chan struct{})
	c.state = StateRunning
	in, out, errh := c.in, c.out, c.errh
	c.mu.Unlock()

	r := c.loop
	r.OnReadable(out.Fd(), func() { c.drain(out, SourceStdout) })
	r.OnClosed(out.Fd(), func(err error) { c.streamEnd(out, SourceStdout, err) })
	r.OnReadable(errh.Fd(), func() { c.drain(errh, SourceStderr) })
	r.OnClosed(errh.Fd(), func(err error) { c.streamEnd(errh, SourceStderr, err) })
	r.OnWritable(in.Fd(), func() { c.pump() })
	r.OnClosed(in.Fd(), func(err error) { c.streamEnd(in, SourceError, err) })

	// Reap in the background and hand the result to the loop; Join only
	// waits for the transition this triggers.
	go func() {
		st := child.Wait()
		r.Submit(func() { c.handleExit(st) })
	}()

	c.logger.Info("Process started", "name", c.name, "pid", child.Pid, "command", c.command)
	metrics.ProcStarted(c.name)
	c.publishState(StateReady, StateRunning)
	if c.bus != nil {
		c.bus.Publish(events.ProcStartedEvent{
			Name:      c.name,
			Pid:       child.Pid,
			Command:   c.command,
			Timestamp: timestamp(),
		})
	}
	return nil
}

// Send queues text plus the line delimiter for the child's stdin and arms
// a write attempt. It never blocks.
func (c *Controller) Send(text string) error {
	c.mu.Lock()
	in := c.in
	state := c.state
	c.mu.Unlock()

	if state != StateRunning || in == nil || in.Closed() {
		return fmt.Errorf("proc %q: send: %w", c.name, ErrNoInput)
	}
	if err := in.QueueWrite(append([]byte(text), c.eol...)); err != nil {
		return fmt.Errorf("proc %q: send: %w", c.name, err)
	}
	c.loop.SetWritable(in.Fd(), true)
	return nil
}

// Recv blocks until the next message arrives, or returns ok == false once
// the current run's queue has been shut down and drained.
func (c *Controller) Recv() (Message, bool) {
	c.mu.Lock()
	q := c.q
	c.mu.Unlock()
	if q == nil {
		return Message{}, false
	}
	return q.Get()
}

// Terminate requests the child stop: it transitions to stopping, closes
// stdin and delivers the stop signal, then returns without waiting. It is
// a no-op outside the running state.
func (c *Controller) Terminate() {
	c.mu.Lock()
	if c.state != StateRunning {
		c.mu.Unlock()
		return
	}
	c.state = StateStopping
	child := c.child
	in := c.in
	c.in = nil
	c.mu.Unlock()

	c.logger.Info("Terminating process", "name", c.name, "pid", child.Pid, "signal", c.stopSig.String())
	if in != nil {
		c.loop.Remove(in.Fd())
		in.Close()
	}
	if err := child.Signal(c.stopSig); err != nil && !errors.Is(err, os.ErrProcessDone) {
		c.logger.Warn("Failed to signal process", "name", c.name, "error", err)
	}
	c.publishState(StateRunning, StateStopping)
}

// Kill delivers SIGKILL. It is the caller's escalation hatch when a
// graceful Terminate does not finish in time; the exit still flows
// through the normal reap path.
func (c *Controller) Kill() {
	c.mu.Lock()
	child := c.child
	c.mu.Unlock()
	if child != nil {
		_ = child.Kill()
	}
}

// Join blocks until the child of the current run has been reaped and the
// exit transition applied. It returns immediately if nothing is running.
// Safe to call concurrently with the reactor-triggered exit handling.
func (c *Controller) Join() {
	c.mu.Lock()
	exited := c.exited
	c.mu.Unlock()
	if exited == nil {
		return
	}
	<-exited
}

// drain reads whatever the stream has, flushing complete lines into the
// queue. Runs on the reactor loop.
func (c *Controller) drain(h *stream.Handle, src Source) {
	for {
		n, err := h.ReadBytes(readChunk)
		if err != nil {
			if errors.Is(err, stream.ErrClosed) {
				return
			}
			if errors.Is(err, io.EOF) {
				c.streamEnd(h, src, nil)
				return
			}
			c.streamEnd(h, src, err)
			return
		}
		if n == 0 {
			return
		}
		metrics.AddBytesRead(c.name, string(src), n)
		for _, line := range h.Flush() {
			c.post(Message{Source: src, Text: string(line)})
		}
		if n < readChunk {
			return
		}
	}
}

// pump drains queued stdin bytes while the pipe accepts them. Runs on the
// reactor loop.
func (c *Controller) pump() {
	c.mu.Lock()
	in := c.in
	c.mu.Unlock()
	if in == nil {
		return
	}
	n, err := in.WriteBytes(writeChunk)
	if err != nil {
		if errors.Is(err, stream.ErrClosed) {
			return
		}
		c.streamEnd(in, SourceError, err)
		return
	}
	if n > 0 {
		metrics.AddBytesWritten(c.name, n)
	}
	if in.Pending() == 0 {
		c.loop.SetWritable(in.Fd(), false)
	}
}

// streamEnd retires one stream: deregisters it, salvages any complete
// buffered lines, and escalates to Terminate. A non-nil err is a real I/O
// failure and is surfaced as an error-tagged message; nil is plain EOF.
// Read- and write-side failures use the same error tag.
func (c *Controller) streamEnd(h *stream.Handle, src Source, err error) {
	c.loop.Remove(h.Fd())
	for _, line := range h.Flush() {
		c.post(Message{Source: src, Text: string(line)})
	}
	h.Close()
	if err != nil {
		c.logger.Warn("Stream error", "name", c.name, "source", string(src), "error", err)
		c.post(Message{Source: SourceError, Text: err.Error()})
	}
	c.Terminate()
}

// handleExit applies the exit transition exactly once per run. Runs on
// the reactor loop.
func (c *Controller) handleExit(st spawn.Status) {
	c.mu.Lock()
	if c.exited == nil {
		c.mu.Unlock()
		return
	}
	select {
	case <-c.exited:
		c.mu.Unlock()
		return
	default:
	}
	old := c.state
	child := c.child
	in, out, errh := c.in, c.out, c.errh
	q := c.q
	exited := c.exited
	c.status = st
	c.hasStatus = true
	c.state = StateReady
	c.child = nil
	c.in, c.out, c.errh = nil, nil, nil
	end := c.onEnd
	c.mu.Unlock()

	for _, h := range []*stream.Handle{in, out, errh} {
		if h != nil {
			c.loop.Remove(h.Fd())
		}
	}
	// Salvage output written just before exit that the loop has not
	// picked up yet.
	c.finalDrain(out, SourceStdout)
	c.finalDrain(errh, SourceStderr)
	for _, h := range []*stream.Handle{in, out, errh} {
		if h != nil {
			h.Close()
		}
	}

	// Delivery stays wired through the salvage so late lines still reach
	// the group; drop it before the queue reports end-of-stream.
	c.uninstall()
	q.Shutdown()
	close(exited)

	c.logger.Info("Process exited", "name", c.name, "pid", child.Pid, "exit_code", st.Code)
	metrics.ProcExited(c.name, st.Code, st.Signaled)
	c.publishState(old, StateReady)
	if c.bus != nil {
		c.bus.Publish(events.ProcExitedEvent{
			Name:      c.name,
			Pid:       child.Pid,
			ExitCode:  st.Code,
			Signaled:  st.Signaled,
			Timestamp: timestamp(),
		})
	}
	if end != nil {
		end(c)
	}
}

// finalDrain empties a readable stream after the child has exited; at
// this point everything the child wrote is immediately available.
func (c *Controller) finalDrain(h *stream.Handle, src Source) {
	if h == nil {
		return
	}
	for {
		n, err := h.ReadBytes(readChunk)
		if err != nil || n == 0 {
			break
		}
		metrics.AddBytesRead(c.name, string(src), n)
	}
	for _, line := range h.Flush() {
		c.post(Message{Source: src, Text: string(line)})
	}
}

// post delivers one message to the group redirection if installed,
// otherwise to the controller's own queue.
func (c *Controller) post(m Message) {
	m.Member = c.name
	c.mu.Lock()
	deliver := c.deliver
	q := c.q
	c.mu.Unlock()

	metrics.AddLine(c.name, string(m.Source))
	if c.bus != nil {
		c.bus.Publish(events.ProcLineEvent{
			Name:      c.name,
			Source:    string(m.Source),
			Text:      m.Text,
			Timestamp: timestamp(),
		})
	}
	if deliver != nil {
		deliver(m)
		return
	}
	if q != nil {
		_ = q.Put(m)
	}
}

// install wires the controller into a group. Only a named, ready,
// not-yet-grouped controller may join.
func (c *Controller) install(deliver func(Message), onEnd func(*Controller)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.name == "" {
		return errors.New("proc: group member must be named")
	}
	if c.state != StateReady {
		return fmt.Errorf("proc %q: group member while %s: %w", c.name, c.state, ErrNotReady)
	}
	if c.deliver != nil {
		return fmt.Errorf("proc %q: delivery target already installed", c.name)
	}
	c.deliver = deliver
	c.onEnd = onEnd
	return nil
}

// uninstall removes any group wiring.
func (c *Controller) uninstall() {
	c.mu.Lock()
	c.deliver = nil
	c.onEnd = nil
	c.mu.Unlock()
}

func (c *Controller) publishState(old, new State) {
	c.logger.Debug("State transition", "name", c.name, "old", string(old), "new", string(new))
	if c.bus != nil {
		c.bus.Publish(events.ProcStateChangedEvent{
			Name:      c.name,
			Old:       string(old),
			New:       string(new),
			Timestamp: timestamp(),
		})
	}
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}
