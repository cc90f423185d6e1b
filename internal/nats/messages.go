package nats

import (
	"encoding/json"
	"fmt"
)

// Subject prefixes for NATS topics.
const (
	SubjectProcPrefix    = "procmux.proc"
	SubjectControlPrefix = "procmux.control"
)

// SubjectProcLines returns the subject carrying a process's output lines.
func SubjectProcLines(name string) string {
	return fmt.Sprintf("%s.%s.lines", SubjectProcPrefix, name)
}

// SubjectProcState returns the subject carrying state transitions.
func SubjectProcState(name string) string {
	return fmt.Sprintf("%s.%s.state", SubjectProcPrefix, name)
}

// SubjectProcExit returns the subject carrying exit notifications.
func SubjectProcExit(name string) string {
	return fmt.Sprintf("%s.%s.exit", SubjectProcPrefix, name)
}

// SubjectControl returns the subject a process accepts commands on.
func SubjectControl(name string) string {
	return fmt.Sprintf("%s.%s", SubjectControlPrefix, name)
}

// LineMessage is one line of process output sent over NATS.
type LineMessage struct {
	Proc      string `json:"proc"`
	Source    string `json:"source"` // stdout, stderr, error
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

// Marshal serializes the message to JSON.
func (m LineMessage) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

// StateMessage is a process state transition sent over NATS.
type StateMessage struct {
	Proc      string `json:"proc"`
	Old       string `json:"old"`
	New       string `json:"new"`
	Timestamp string `json:"timestamp"`
}

// Marshal serializes the message to JSON.
func (m StateMessage) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

// ExitMessage is a process exit notification sent over NATS.
type ExitMessage struct {
	Proc      string `json:"proc"`
	Pid       int    `json:"pid"`
	ExitCode  int    `json:"exit_code"`
	Signaled  bool   `json:"signaled"`
	Timestamp string `json:"timestamp"`
}

// Marshal serializes the message to JSON.
func (m ExitMessage) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

// Control actions accepted on the control subject.
const (
	ActionSend      = "send"
	ActionLaunch    = "launch"
	ActionTerminate = "terminate"
)

// ControlMessage is a command sent to a managed process.
type ControlMessage struct {
	Action    string `json:"action"` // send, launch, terminate
	Proc      string `json:"proc"`
	Input     string `json:"input,omitempty"` // stdin line for send
	Reason    string `json:"reason,omitempty"`
	Timestamp string `json:"timestamp"`
}

// Marshal serializes the message to JSON.
func (m ControlMessage) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

// UnmarshalControl deserializes a ControlMessage from JSON.
func UnmarshalControl(data []byte) (ControlMessage, error) {
	var m ControlMessage
	err := json.Unmarshal(data, &m)
	return m, err
}
