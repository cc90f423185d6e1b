package nats

import "testing"

func TestSubjects(t *testing.T) {
	if got := SubjectProcLines("worker"); got != "procmux.proc.worker.lines" {
		t.Errorf("lines subject = %q", got)
	}
	if got := SubjectProcState("worker"); got != "procmux.proc.worker.state" {
		t.Errorf("state subject = %q", got)
	}
	if got := SubjectProcExit("worker"); got != "procmux.proc.worker.exit" {
		t.Errorf("exit subject = %q", got)
	}
	if got := SubjectControl("worker"); got != "procmux.control.worker" {
		t.Errorf("control subject = %q", got)
	}
}

func TestUnmarshalControl(t *testing.T) {
	data := []byte(`{"action":"send","proc":"worker","input":"reload","timestamp":"2026-08-25T10:30:00Z"}`)
	ctrl, err := UnmarshalControl(data)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ctrl.Action != ActionSend || ctrl.Proc != "worker" || ctrl.Input != "reload" {
		t.Errorf("got %+v", ctrl)
	}

	if _, err := UnmarshalControl([]byte("{")); err == nil {
		t.Error("expected error for truncated payload")
	}
}
