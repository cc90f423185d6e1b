package proc

// State represents the lifecycle state of a Controller.
type State string

// Controller states. The only legal cycle is
// ready -> running -> stopping -> ready.
const (
	StateReady    State = "ready"    // no child process; launchable
	StateRunning  State = "running"  // child spawned, streams live
	StateStopping State = "stopping" // termination requested, awaiting reap
)
