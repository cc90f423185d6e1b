package events

// Event type constants for kelindar/event.
const (
	TypeProcStarted uint32 = iota + 1
	TypeProcExited
	TypeProcStateChanged
	TypeProcLine
	TypeProcsReloaded
	TypeLogEntry
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// ProcStartedEvent is published when a child process has been spawned.
type ProcStartedEvent struct {
	Name      string `json:"name" example:"worker" doc:"Process name"`
	Pid       int    `json:"pid" example:"4242" doc:"OS process ID"`
	Command   string `json:"command" example:"cat" doc:"Executable"`
	Timestamp string `json:"timestamp" example:"2026-08-25T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for ProcStartedEvent.
func (e ProcStartedEvent) Type() uint32 { return TypeProcStarted }

// ProcExitedEvent is published when a child process has been reaped.
type ProcExitedEvent struct {
	Name      string `json:"name" example:"worker" doc:"Process name"`
	Pid       int    `json:"pid" example:"4242" doc:"OS process ID"`
	ExitCode  int    `json:"exit_code" example:"0" doc:"Exit code (128+signal for signal deaths)"`
	Signaled  bool   `json:"signaled" example:"false" doc:"Whether the process died to a signal"`
	Timestamp string `json:"timestamp" example:"2026-08-25T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for ProcExitedEvent.
func (e ProcExitedEvent) Type() uint32 { return TypeProcExited }

// ProcStateChangedEvent is published on every controller state transition.
type ProcStateChangedEvent struct {
	Name      string `json:"name" example:"worker" doc:"Process name"`
	Old       string `json:"old" example:"ready" doc:"Previous state"`
	New       string `json:"new" example:"running" doc:"New state"`
	Timestamp string `json:"timestamp" example:"2026-08-25T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for ProcStateChangedEvent.
func (e ProcStateChangedEvent) Type() uint32 { return TypeProcStateChanged }

// ProcLineEvent carries one line of child process output.
type ProcLineEvent struct {
	Name      string `json:"name" example:"worker" doc:"Process name"`
	Source    string `json:"source" example:"stdout" doc:"Originating stream: stdout, stderr or error"`
	Text      string `json:"text" doc:"Line content, delimiter stripped"`
	Timestamp string `json:"timestamp" example:"2026-08-25T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for ProcLineEvent.
func (e ProcLineEvent) Type() uint32 { return TypeProcLine }

// ProcsReloadedEvent is published when the process definition file changes
// on disk and has been reapplied.
type ProcsReloadedEvent struct {
	Path      string `json:"path" example:"procs.toml" doc:"Definition file path"`
	Count     int    `json:"count" example:"3" doc:"Number of defined processes"`
	Timestamp string `json:"timestamp" example:"2026-08-25T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for ProcsReloadedEvent.
func (e ProcsReloadedEvent) Type() uint32 { return TypeProcsReloaded }

// LogEntryEvent mirrors one internal log record for SSE streaming.
type LogEntryEvent struct {
	Seq        uint64         `json:"seq" example:"42" doc:"Monotonic sequence number for deduplication"`
	Timestamp  string         `json:"timestamp" example:"2026-08-25T10:30:00.123Z" doc:"Log timestamp"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"proc" doc:"Source module"`
	Message    string         `json:"message" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured log attributes"`
}

// Type returns the event type identifier for LogEntryEvent.
func (e LogEntryEvent) Type() uint32 { return TypeLogEntry }
