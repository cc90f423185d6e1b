package proc

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/smazurov/procmux/internal/queue"
)

// Group merges the output of several controllers into one queue. Members
// join before they are launched; each delivered message carries the member
// name. Once every member has exited the merged queue is shut down and
// Recv reports end-of-stream after the remaining buffered messages.
type Group struct {
	logger *slog.Logger

	mu      sync.Mutex
	members map[string]*Controller
	q       *queue.Queue[Message]
	joined  bool // at least one member was ever added
	ended   bool
}

// NewGroup creates an empty group.
func NewGroup(logger *slog.Logger) *Group {
	if logger == nil {
		logger = slog.Default()
	}
	return &Group{
		logger:  logger,
		members: make(map[string]*Controller),
		q:       queue.New[Message](),
	}
}

// Add registers controllers with the group. All controllers must be named
// uniquely, in the ready state and not already grouped; on any failure no
// controller is added.
func (g *Group) Add(ctrls ...*Controller) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.ended {
		return errors.New("proc: group already ended")
	}

	seen := make(map[string]bool, len(ctrls))
	for _, c := range ctrls {
		name := c.Name()
		if seen[name] || g.members[name] != nil {
			return fmt.Errorf("proc: duplicate group member %q", name)
		}
		seen[name] = true
	}

	installed := make([]*Controller, 0, len(ctrls))
	for _, c := range ctrls {
		err := c.install(
			func(m Message) { _ = g.q.Put(m) },
			func(c *Controller) { g.Drop(c.Name()) },
		)
		if err != nil {
			for _, done := range installed {
				done.uninstall()
			}
			return err
		}
		installed = append(installed, c)
	}
	for _, c := range ctrls {
		g.members[c.Name()] = c
		g.joined = true
	}
	return nil
}

// Drop removes a member; when the last one goes the merged queue is shut
// down. Members drop themselves on exit.
func (g *Group) Drop(name string) {
	g.mu.Lock()
	c := g.members[name]
	delete(g.members, name)
	last := g.joined && len(g.members) == 0 && !g.ended
	if last {
		g.ended = true
	}
	g.mu.Unlock()

	if c != nil {
		c.uninstall()
	}
	if last {
		g.logger.Debug("All group members exited")
		g.q.Shutdown()
	}
}

// Launch starts every member. Members that fail to launch are reported
// jointly; the others keep running.
func (g *Group) Launch() error {
	var errs []error
	for _, c := range g.snapshot() {
		if err := c.Launch(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Send forwards text to the named member's stdin.
func (g *Group) Send(name, text string) error {
	g.mu.Lock()
	c := g.members[name]
	g.mu.Unlock()
	if c == nil {
		return fmt.Errorf("proc: no group member %q", name)
	}
	return c.Send(text)
}

// Recv blocks until the next message from any member arrives, or returns
// ok == false once all members have exited and the queue is drained.
func (g *Group) Recv() (Message, bool) {
	return g.q.Get()
}

// Terminate requests every running member stop.
func (g *Group) Terminate() {
	for _, c := range g.snapshot() {
		c.Terminate()
	}
}

// Join blocks until every member has been reaped.
func (g *Group) Join() {
	for _, c := range g.snapshot() {
		c.Join()
	}
}

// Members returns the names of the current members.
func (g *Group) Members() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	names := make([]string, 0, len(g.members))
	for name := range g.members {
		names = append(names, name)
	}
	return names
}

// Controller returns the named member, or nil.
func (g *Group) Controller(name string) *Controller {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.members[name]
}

func (g *Group) snapshot() []*Controller {
	g.mu.Lock()
	defer g.mu.Unlock()
	ctrls := make([]*Controller, 0, len(g.members))
	for _, c := range g.members {
		ctrls = append(ctrls, c)
	}
	return ctrls
}
