// Package spawn creates child processes wired to three pipe endpoints and
// tracks their exit. The parent-side pipe ends are handed out as raw
// non-blocking file descriptors, ready to be wrapped by stream handles.
package spawn

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// Status describes how a child process ended.
type Status struct {
	Code     int
	Signaled bool
	Signal   syscall.Signal
	Err      error // set only for wait failures that carry no exit status
}

// Child is a spawned process plus the parent side of its three pipes.
// Stdin is write-only; Stdout and Stderr are read-only. All three are in
// non-blocking mode and are owned by whoever wraps them; Child never
// closes them.
type Child struct {
	Pid    int
	Stdin  int
	Stdout int
	Stderr int

	cmd    *exec.Cmd
	done   chan struct{}
	status Status
}

// Spawner creates child processes.
type Spawner interface {
	Spawn(command string, args []string) (*Child, error)
}

// PipeSpawner spawns children with os/exec, each in its own process group
// so signals do not leak to the parent's group.
type PipeSpawner struct {
	Dir string            // working directory, empty for inherited
	Env map[string]string // appended to the parent environment
}

// Spawn starts command with args. On success the child is running and its
// exit is collected in the background; observe it via Wait, Poll or Done.
func (s *PipeSpawner) Spawn(command string, args []string) (*Child, error) {
	if command == "" {
		return nil, errors.New("spawn: empty command")
	}

	var inP, outP, errP [2]int
	if err := unix.Pipe(inP[:]); err != nil {
		return nil, err
	}
	if err := unix.Pipe(outP[:]); err != nil {
		closeFds(inP[0], inP[1])
		return nil, err
	}
	if err := unix.Pipe(errP[:]); err != nil {
		closeFds(inP[0], inP[1], outP[0], outP[1])
		return nil, err
	}

	// Parent keeps inP[1], outP[0], errP[0]; the child gets the rest.
	parentFds := []int{inP[1], outP[0], errP[0]}
	childFds := []int{inP[0], outP[1], errP[1]}

	for _, fd := range parentFds {
		if err := unix.SetNonblock(fd, true); err != nil {
			closeFds(append(parentFds, childFds...)...)
			return nil, err
		}
	}

	cmd := exec.Command(command, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Dir = s.Dir
	if len(s.Env) > 0 {
		cmd.Env = os.Environ()
		for k, v := range s.Env {
			cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
		}
	}

	childIn := os.NewFile(uintptr(inP[0]), "stdin")
	childOut := os.NewFile(uintptr(outP[1]), "stdout")
	childErr := os.NewFile(uintptr(errP[1]), "stderr")
	cmd.Stdin = childIn
	cmd.Stdout = childOut
	cmd.Stderr = childErr

	err := cmd.Start()
	// The child holds its own copies now (or never will); drop ours.
	childIn.Close()
	childOut.Close()
	childErr.Close()
	if err != nil {
		closeFds(parentFds...)
		return nil, err
	}

	c := &Child{
		Pid:    cmd.Process.Pid,
		Stdin:  inP[1],
		Stdout: outP[0],
		Stderr: errP[0],
		cmd:    cmd,
		done:   make(chan struct{}),
	}

	go func() {
		c.status = statusFromError(cmd.Wait())
		close(c.done)
	}()

	return c, nil
}

// Signal delivers sig to the child. Errors from signalling an already
// exited process are returned as-is; callers usually ignore them.
func (c *Child) Signal(sig syscall.Signal) error {
	return c.cmd.Process.Signal(sig)
}

// Kill delivers SIGKILL.
func (c *Child) Kill() error {
	err := c.cmd.Process.Kill()
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}

// Wait blocks until the child has been reaped and returns its status.
func (c *Child) Wait() Status {
	<-c.done
	return c.status
}

// Poll reports the exit status without blocking; ok is false while the
// child is still running.
func (c *Child) Poll() (Status, bool) {
	select {
	case <-c.done:
		return c.status, true
	default:
		return Status{}, false
	}
}

// Done returns a channel closed once the child has been reaped.
func (c *Child) Done() <-chan struct{} {
	return c.done
}

// statusFromError decodes the result of exec.Cmd.Wait. Signal deaths map
// to the conventional 128+signal exit code.
func statusFromError(err error) Status {
	if err == nil {
		return Status{Code: 0}
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			return Status{
				Code:     128 + int(ws.Signal()),
				Signaled: true,
				Signal:   ws.Signal(),
			}
		}
		return Status{Code: exitErr.ExitCode()}
	}
	return Status{Code: 1, Err: err}
}

func closeFds(fds ...int) {
	for _, fd := range fds {
		unix.Close(fd)
	}
}
