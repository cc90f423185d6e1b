package nats

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/smazurov/procmux/internal/events"
	"github.com/smazurov/procmux/internal/proc"
)

// Bridge republishes process events to NATS and dispatches control
// commands from NATS to the local process group.
type Bridge struct {
	url    string
	bus    *events.Bus
	group  *proc.Group
	logger *slog.Logger

	mu        sync.Mutex
	conn      *nats.Conn
	sub       *nats.Subscription
	unsubs    []func()
	connected bool
}

// NewBridge creates a bridge between the event bus, the process group
// and a NATS broker.
func NewBridge(url string, bus *events.Bus, group *proc.Group, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{
		url:    url,
		bus:    bus,
		group:  group,
		logger: logger.With("component", "nats-bridge"),
	}
}

// Start connects to the broker and wires both directions. A connection
// failure is returned but leaves the node functional; the caller may
// treat it as a degraded mode.
func (b *Bridge) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	conn, err := nats.Connect(b.url,
		nats.Name("procmux-bridge"),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			b.mu.Lock()
			b.connected = false
			b.mu.Unlock()
			if err != nil {
				b.logger.Warn("NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			b.mu.Lock()
			b.connected = true
			b.mu.Unlock()
			b.logger.Info("NATS reconnected")
			b.subscribeControl()
		}),
	)
	if err != nil {
		b.logger.Warn("Failed to connect to NATS, running in offline mode", "error", err)
		return err
	}
	b.conn = conn
	b.connected = true
	b.logger.Info("Connected to NATS", "url", b.url)

	b.subscribeControl()
	b.subscribeBusLocked()
	return nil
}

// subscribeControl listens for commands addressed to any local process.
func (b *Bridge) subscribeControl() {
	if b.conn == nil {
		return
	}
	sub, err := b.conn.Subscribe(SubjectControlPrefix+".>", b.handleControl)
	if err != nil {
		b.logger.Warn("Failed to subscribe to control subjects", "error", err)
		return
	}
	if b.sub != nil {
		_ = b.sub.Unsubscribe()
	}
	b.sub = sub
}

// subscribeBusLocked republishes local bus events onto NATS subjects.
func (b *Bridge) subscribeBusLocked() {
	b.unsubs = append(b.unsubs,
		b.bus.Subscribe(func(e events.ProcLineEvent) {
			b.publish(SubjectProcLines(e.Name), LineMessage{
				Proc:      e.Name,
				Source:    e.Source,
				Text:      e.Text,
				Timestamp: e.Timestamp,
			})
		}),
		b.bus.Subscribe(func(e events.ProcStateChangedEvent) {
			b.publish(SubjectProcState(e.Name), StateMessage{
				Proc:      e.Name,
				Old:       e.Old,
				New:       e.New,
				Timestamp: e.Timestamp,
			})
		}),
		b.bus.Subscribe(func(e events.ProcExitedEvent) {
			b.publish(SubjectProcExit(e.Name), ExitMessage{
				Proc:      e.Name,
				Pid:       e.Pid,
				ExitCode:  e.ExitCode,
				Signaled:  e.Signaled,
				Timestamp: e.Timestamp,
			})
		}),
	)
}

type marshaler interface {
	Marshal() ([]byte, error)
}

// publish is a no-op while disconnected.
func (b *Bridge) publish(subject string, m marshaler) {
	b.mu.Lock()
	conn := b.conn
	connected := b.connected
	b.mu.Unlock()
	if conn == nil || !connected {
		return
	}

	data, err := m.Marshal()
	if err != nil {
		b.logger.Warn("Failed to marshal message", "subject", subject, "error", err)
		return
	}
	if err := conn.Publish(subject, data); err != nil {
		b.logger.Warn("Failed to publish", "subject", subject, "error", err)
	}
}

// handleControl dispatches one inbound command. The target process is
// taken from the subject suffix; a proc field in the payload wins when
// both are present.
func (b *Bridge) handleControl(msg *nats.Msg) {
	ctrl, err := UnmarshalControl(msg.Data)
	if err != nil {
		b.logger.Warn("Failed to unmarshal control message", "subject", msg.Subject, "error", err)
		return
	}
	name := ctrl.Proc
	if name == "" {
		name = strings.TrimPrefix(msg.Subject, SubjectControlPrefix+".")
	}

	c := b.group.Controller(name)
	if c == nil {
		b.logger.Warn("Control command for unknown process", "proc", name, "action", ctrl.Action)
		return
	}
	b.logger.Info("Received control command", "proc", name, "action", ctrl.Action, "reason", ctrl.Reason)

	switch ctrl.Action {
	case ActionSend:
		if err := c.Send(ctrl.Input); err != nil {
			b.logger.Warn("Control send failed", "proc", name, "error", err)
		}
	case ActionLaunch:
		if err := c.Launch(); err != nil {
			b.logger.Warn("Control launch failed", "proc", name, "error", err)
		}
	case ActionTerminate:
		c.Terminate()
	default:
		b.logger.Warn("Unknown control action", "proc", name, "action", ctrl.Action)
	}
}

// IsConnected reports whether the broker connection is up.
func (b *Bridge) IsConnected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conn != nil && b.connected
}

// Stop detaches from the bus and closes the broker connection.
func (b *Bridge) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, unsub := range b.unsubs {
		unsub()
	}
	b.unsubs = nil
	if b.sub != nil {
		_ = b.sub.Unsubscribe()
		b.sub = nil
	}
	if b.conn != nil {
		b.conn.Close()
		b.conn = nil
	}
	b.connected = false
	b.logger.Info("NATS bridge stopped")
}
