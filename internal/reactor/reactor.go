package reactor

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// watcher holds the callbacks registered for one file descriptor.
type watcher struct {
	readable  func()
	writable  func()
	closed    func(error)
	wantWrite bool
}

// Reactor multiplexes readiness events for registered file descriptors and
// dispatches callbacks from a single loop goroutine.
type Reactor struct {
	logger *slog.Logger

	mu      sync.Mutex
	fds     map[int]*watcher
	pending []func()
	quit    bool
	started bool

	wakeR, wakeW int
	done         chan struct{}
}

// New creates a reactor. Call Start to begin dispatching.
func New(logger *slog.Logger) (*Reactor, error) {
	if logger == nil {
		logger = slog.Default()
	}

	// Self-pipe for waking the poll loop from other goroutines.
	var p [2]int
	if err := unix.Pipe(p[:]); err != nil {
		return nil, err
	}
	for _, fd := range p {
		if err := unix.SetNonblock(fd, true); err != nil {
			unix.Close(p[0])
			unix.Close(p[1])
			return nil, err
		}
	}

	return &Reactor{
		logger: logger,
		fds:    make(map[int]*watcher),
		wakeR:  p[0],
		wakeW:  p[1],
		done:   make(chan struct{}),
	}, nil
}

// Start launches the loop goroutine. Calling Start twice is an error.
func (r *Reactor) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return errors.New("reactor: already started")
	}
	r.started = true
	go r.run()
	return nil
}

// Stop shuts the loop down and blocks until it has exited. Registered fds
// are not closed; their owners remain responsible for them.
func (r *Reactor) Stop() {
	r.mu.Lock()
	if !r.started || r.quit {
		r.mu.Unlock()
		return
	}
	r.quit = true
	r.mu.Unlock()
	r.wake()
	<-r.done
}

// OnReadable registers a callback invoked when fd has data to read.
func (r *Reactor) OnReadable(fd int, cb func()) {
	r.mu.Lock()
	r.entry(fd).readable = cb
	r.mu.Unlock()
	r.wake()
}

// OnWritable registers a callback invoked when fd accepts writes. Write
// interest starts disarmed; arm it with SetWritable once there is output
// queued, and disarm it again when the queue drains, otherwise the loop
// spins on a permanently-writable pipe.
func (r *Reactor) OnWritable(fd int, cb func()) {
	r.mu.Lock()
	r.entry(fd).writable = cb
	r.mu.Unlock()
	r.wake()
}

// OnClosed registers a callback invoked once when fd reports hangup or
// error. A nil error means end of stream. The fd is deregistered before
// the callback runs.
func (r *Reactor) OnClosed(fd int, cb func(error)) {
	r.mu.Lock()
	r.entry(fd).closed = cb
	r.mu.Unlock()
	r.wake()
}

// SetWritable arms or disarms write-readiness interest for fd.
func (r *Reactor) SetWritable(fd int, want bool) {
	r.mu.Lock()
	if w, ok := r.fds[fd]; ok {
		w.wantWrite = want
	}
	r.mu.Unlock()
	r.wake()
}

// Remove deregisters all callbacks for fd.
func (r *Reactor) Remove(fd int) {
	r.mu.Lock()
	delete(r.fds, fd)
	r.mu.Unlock()
	r.wake()
}

// Submit schedules fn to run on the loop goroutine.
func (r *Reactor) Submit(fn func()) {
	r.mu.Lock()
	r.pending = append(r.pending, fn)
	r.mu.Unlock()
	r.wake()
}

// After runs fn on the loop goroutine after d. The returned timer can be
// stopped to cancel.
func (r *Reactor) After(d time.Duration, fn func()) *time.Timer {
	return time.AfterFunc(d, func() {
		r.Submit(fn)
	})
}

// entry returns the watcher for fd, creating it if needed. Caller holds mu.
func (r *Reactor) entry(fd int) *watcher {
	w, ok := r.fds[fd]
	if !ok {
		w = &watcher{}
		r.fds[fd] = w
	}
	return w
}

// wake nudges the poll loop. Safe from any goroutine.
func (r *Reactor) wake() {
	var b [1]byte
	// EAGAIN means a wakeup is already pending.
	_, _ = unix.Write(r.wakeW, b[:])
}

func (r *Reactor) run() {
	defer func() {
		unix.Close(r.wakeR)
		unix.Close(r.wakeW)
		close(r.done)
	}()

	for {
		r.mu.Lock()
		if r.quit {
			r.mu.Unlock()
			return
		}
		pfds := make([]unix.PollFd, 1, len(r.fds)+1)
		pfds[0] = unix.PollFd{Fd: int32(r.wakeR), Events: unix.POLLIN}
		order := make([]int, 0, len(r.fds))
		for fd, w := range r.fds {
			ev := int16(unix.POLLIN)
			if w.wantWrite {
				ev |= unix.POLLOUT
			}
			pfds = append(pfds, unix.PollFd{Fd: int32(fd), Events: ev})
			order = append(order, fd)
		}
		r.mu.Unlock()

		if _, err := unix.Poll(pfds, -1); err != nil {
			if err == unix.EINTR {
				continue
			}
			r.logger.Error("Poll failed, reactor exiting", "error", err)
			return
		}

		if pfds[0].Revents != 0 {
			r.drainWake()
		}
		r.runPending()

		for i, pfd := range pfds[1:] {
			fd := order[i]
			re := pfd.Revents
			if re == 0 {
				continue
			}
			r.mu.Lock()
			w := r.fds[fd]
			r.mu.Unlock()
			if w == nil {
				continue
			}

			if re&unix.POLLNVAL != 0 {
				// fd closed behind our back; drop it silently.
				r.Remove(fd)
				continue
			}
			if re&unix.POLLIN != 0 && w.readable != nil {
				w.readable()
			}
			if re&unix.POLLOUT != 0 && w.writable != nil {
				w.writable()
			}
			// Report hangup only once the readable side is drained;
			// POLLHUP can arrive alongside POLLIN while data remains.
			if re&(unix.POLLHUP|unix.POLLERR) != 0 && re&unix.POLLIN == 0 {
				r.Remove(fd)
				if w.closed != nil {
					var cause error
					if re&unix.POLLERR != 0 {
						cause = unix.EPIPE
					}
					w.closed(cause)
				}
			}
		}
	}
}

// drainWake empties the self-pipe.
func (r *Reactor) drainWake() {
	var buf [64]byte
	for {
		n, err := unix.Read(r.wakeR, buf[:])
		if n <= 0 || err != nil {
			return
		}
	}
}

// runPending executes submitted functions in FIFO order on the loop.
func (r *Reactor) runPending() {
	for {
		r.mu.Lock()
		if len(r.pending) == 0 {
			r.mu.Unlock()
			return
		}
		fn := r.pending[0]
		r.pending = r.pending[1:]
		r.mu.Unlock()
		fn()
	}
}
