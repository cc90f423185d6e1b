package proc

// Source identifies which stream a message came from.
type Source string

// Message sources.
const (
	SourceStdout Source = "stdout" // child standard output
	SourceStderr Source = "stderr" // child standard error
	SourceError  Source = "error"  // stream I/O failure, Text holds the OS error
)

// Message is one line received from a managed process, tagged with its
// originating stream and, when routed through a Group, the member name.
// Messages are immutable once enqueued.
type Message struct {
	Source Source
	Member string
	Text   string
}

// IsStdout reports whether the message came from the child's stdout.
func (m Message) IsStdout() bool { return m.Source == SourceStdout }

// IsStderr reports whether the message came from the child's stderr.
func (m Message) IsStderr() bool { return m.Source == SourceStderr }

// IsError reports whether the message carries a stream I/O error.
func (m Message) IsError() bool { return m.Source == SourceError }

// String returns the message text.
func (m Message) String() string { return m.Text }
