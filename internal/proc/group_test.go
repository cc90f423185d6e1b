package proc

import (
	"testing"
	"time"
)

func TestGroupMergesTaggedOutput(t *testing.T) {
	g := NewGroup(testLogger())
	a := New("alpha", "sh", []string{"-c", "echo from-alpha"}, WithLogger(testLogger()))
	b := New("beta", "sh", []string{"-c", "echo from-beta"}, WithLogger(testLogger()))
	if err := g.Add(a, b); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := g.Launch(); err != nil {
		t.Fatalf("launch: %v", err)
	}

	byMember := make(map[string]string)
	for {
		msg, ok := recvTimeout(t, g.Recv)
		if !ok {
			break
		}
		byMember[msg.Member] = msg.Text
	}
	g.Join()

	if byMember["alpha"] != "from-alpha" {
		t.Errorf("alpha = %q, want %q", byMember["alpha"], "from-alpha")
	}
	if byMember["beta"] != "from-beta" {
		t.Errorf("beta = %q, want %q", byMember["beta"], "from-beta")
	}
}

func TestGroupEndOfStreamWhenAllExit(t *testing.T) {
	g := NewGroup(testLogger())
	c := New("solo", "sh", []string{"-c", "true"}, WithLogger(testLogger()))
	if err := g.Add(c); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := g.Launch(); err != nil {
		t.Fatalf("launch: %v", err)
	}
	if _, ok := recvTimeout(t, g.Recv); ok {
		t.Error("expected end of stream once the only member exited")
	}
	if len(g.Members()) != 0 {
		t.Errorf("members = %v, want empty", g.Members())
	}
}

func TestGroupSendRoutesByName(t *testing.T) {
	g := NewGroup(testLogger())
	c := New("cat", "cat", nil, WithLogger(testLogger()))
	if err := g.Add(c); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := g.Launch(); err != nil {
		t.Fatalf("launch: %v", err)
	}
	defer func() {
		g.Terminate()
		g.Join()
	}()

	if err := g.Send("nope", "x"); err == nil {
		t.Error("expected error sending to unknown member")
	}
	if err := g.Send("cat", "ping"); err != nil {
		t.Fatalf("send: %v", err)
	}
	msg, ok := recvTimeout(t, g.Recv)
	if !ok || msg.Member != "cat" || msg.Text != "ping" {
		t.Errorf("got (%+v, %v), want cat/ping", msg, ok)
	}
}

func TestGroupRejectsDuplicateNames(t *testing.T) {
	g := NewGroup(testLogger())
	a := New("same", "cat", nil, WithLogger(testLogger()))
	b := New("same", "cat", nil, WithLogger(testLogger()))
	if err := g.Add(a, b); err == nil {
		t.Fatal("expected duplicate name rejection")
	}
	if len(g.Members()) != 0 {
		t.Error("failed add must not leave partial membership")
	}
	// Neither controller should be left wired to the group.
	if err := g.Add(a); err != nil {
		t.Errorf("re-add after rollback: %v", err)
	}
}

func TestGroupRejectsRunningMember(t *testing.T) {
	g := NewGroup(testLogger())
	c := New("live", "cat", nil, WithLogger(testLogger()))
	if err := c.Launch(); err != nil {
		t.Fatalf("launch: %v", err)
	}
	defer func() {
		c.Terminate()
		joinTimeout(t, c)
	}()

	if err := g.Add(c); err == nil {
		t.Fatal("expected rejection of a running controller")
	}
}

func TestGroupRejectsDoubleMembership(t *testing.T) {
	g1 := NewGroup(testLogger())
	g2 := NewGroup(testLogger())
	c := New("shared", "cat", nil, WithLogger(testLogger()))
	if err := g1.Add(c); err != nil {
		t.Fatalf("first add: %v", err)
	}
	if err := g2.Add(c); err == nil {
		t.Fatal("expected rejection of an already grouped controller")
	}
}

func TestGroupTerminateAll(t *testing.T) {
	g := NewGroup(testLogger())
	a := New("s1", "sleep", []string{"60"}, WithLogger(testLogger()))
	b := New("s2", "sleep", []string{"60"}, WithLogger(testLogger()))
	if err := g.Add(a, b); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := g.Launch(); err != nil {
		t.Fatalf("launch: %v", err)
	}

	g.Terminate()
	done := make(chan struct{})
	go func() {
		g.Join()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for group to stop")
	}
	if _, ok := recvTimeout(t, g.Recv); ok {
		t.Error("expected end of stream after all members stopped")
	}
}
