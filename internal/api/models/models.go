// Package models defines the request and response bodies of the HTTP API.
package models

// HealthData reports service liveness.
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
}

// HealthResponse wraps HealthData.
type HealthResponse struct {
	Body HealthData
}

// VersionData carries build metadata.
type VersionData struct {
	Version   string `json:"version" example:"1.2.0" doc:"Application version"`
	GitCommit string `json:"git_commit" example:"abc1234" doc:"Git commit hash"`
	BuildDate string `json:"build_date" example:"2026-08-25" doc:"Build timestamp"`
	BuildID   string `json:"build_id" example:"42" doc:"Build identifier"`
	GoVersion string `json:"go_version" example:"go1.24.11" doc:"Go toolchain version"`
	Compiler  string `json:"compiler" example:"gc" doc:"Go compiler"`
	Platform  string `json:"platform" example:"linux/amd64" doc:"Target platform"`
}

// VersionResponse wraps VersionData.
type VersionResponse struct {
	Body VersionData
}

// ProcInfo describes one managed process.
type ProcInfo struct {
	Name     string `json:"name" example:"worker" doc:"Process name"`
	Command  string `json:"command" example:"cat" doc:"Executable"`
	State    string `json:"state" example:"running" doc:"Lifecycle state: ready, running or stopping"`
	Pid      int    `json:"pid,omitempty" example:"4242" doc:"OS process ID, 0 when not running"`
	ExitCode *int   `json:"exit_code,omitempty" example:"0" doc:"Exit code of the last completed run"`
}

// ProcListData lists all managed processes.
type ProcListData struct {
	Procs []ProcInfo `json:"procs" doc:"Managed processes"`
	Count int        `json:"count" example:"3" doc:"Number of processes"`
}

// ProcListResponse wraps ProcListData.
type ProcListResponse struct {
	Body ProcListData
}

// ProcResponse wraps a single ProcInfo.
type ProcResponse struct {
	Body ProcInfo
}

// InputData is one line destined for a process's stdin.
type InputData struct {
	Text string `json:"text" example:"reload" doc:"Line to write, delimiter appended automatically"`
}

// InputRequest wraps InputData.
type InputRequest struct {
	Name string `path:"name" example:"worker" doc:"Process name"`
	Body InputData
}

// ActionData acknowledges a lifecycle action.
type ActionData struct {
	Name    string `json:"name" example:"worker" doc:"Process name"`
	State   string `json:"state" example:"stopping" doc:"State after the action"`
	Message string `json:"message" example:"termination requested" doc:"Human readable result"`
}

// ActionResponse wraps ActionData.
type ActionResponse struct {
	Body ActionData
}

// LogEntryData is one historical log record.
type LogEntryData struct {
	Seq        uint64         `json:"seq" example:"42" doc:"Monotonic sequence number"`
	Timestamp  string         `json:"timestamp" example:"2026-08-25T10:30:00.123Z" doc:"Log timestamp"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"proc" doc:"Source module"`
	Message    string         `json:"message" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured attributes"`
}

// LogsData is the buffered log history.
type LogsData struct {
	Entries []LogEntryData `json:"entries" doc:"Log entries in chronological order"`
	Count   int            `json:"count" example:"100" doc:"Number of entries"`
}

// LogsResponse wraps LogsData.
type LogsResponse struct {
	Body LogsData
}
