package bridge

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestBridge_ResolveInput(t *testing.T) {
	b := New(0)
	key := ResponseKey{AgentID: "agent-1", SessionID: "sess-1"}

	done := make(chan Response, 1)
	go func() {
		resp, err := b.AwaitInput(context.Background(), key)
		if err != nil {
			t.Errorf("AwaitInput: %v", err)
		}
		done <- resp
	}()

	// Wait for the resolver to be registered before resolving.
	waitFor(t, func() bool { return b.HasPendingInput(key) })

	if err := b.ResolveInput(key, "use the staging database"); err != nil {
		t.Fatalf("ResolveInput: %v", err)
	}

	resp := <-done
	if resp.Aborted {
		t.Error("expected non-aborted response")
	}
	if resp.Text != "use the staging database" {
		t.Errorf("expected submitted text, got %q", resp.Text)
	}
}

func TestBridge_ResolveInput_AtMostOnce(t *testing.T) {
	b := New(0)
	key := ResponseKey{AgentID: "agent-1", SessionID: "sess-1"}

	go b.AwaitInput(context.Background(), key)
	waitFor(t, func() bool { return b.HasPendingInput(key) })

	if err := b.ResolveInput(key, "first"); err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	if err := b.ResolveInput(key, "second"); !errors.Is(err, ErrNoPendingRequest) {
		t.Errorf("second resolve: expected ErrNoPendingRequest, got %v", err)
	}
}

func TestBridge_ResolveInput_NoPending(t *testing.T) {
	b := New(0)
	err := b.ResolveInput(ResponseKey{AgentID: "ghost", SessionID: "s"}, "hello")
	if !errors.Is(err, ErrNoPendingRequest) {
		t.Errorf("expected ErrNoPendingRequest, got %v", err)
	}
}

func TestBridge_DuplicateInputWait(t *testing.T) {
	b := New(0)
	key := ResponseKey{AgentID: "agent-1", SessionID: "sess-1"}

	go b.AwaitInput(context.Background(), key)
	waitFor(t, func() bool { return b.HasPendingInput(key) })

	if _, err := b.AwaitInput(context.Background(), key); !errors.Is(err, ErrRequestPending) {
		t.Errorf("expected ErrRequestPending, got %v", err)
	}
}

func TestBridge_PermissionDecision(t *testing.T) {
	b := New(time.Minute)
	key := PermissionKey{AgentID: "agent-1", PermissionID: "perm-1"}

	done := make(chan Decision, 1)
	go func() {
		d, err := b.AwaitPermission(context.Background(), key)
		if err != nil {
			t.Errorf("AwaitPermission: %v", err)
		}
		done <- d
	}()

	waitFor(t, func() bool { return b.HasPendingPermission(key) })

	if err := b.ResolvePermission(key, DecisionAlways); err != nil {
		t.Fatalf("ResolvePermission: %v", err)
	}
	if d := <-done; d != DecisionAlways {
		t.Errorf("expected always, got %q", d)
	}

	// The active pointer must be cleared by resolution.
	if _, ok := b.ActivePermission(); ok {
		t.Error("expected no active permission after resolution")
	}
}

func TestBridge_PermissionTimeout_RejectsExactlyOnce(t *testing.T) {
	b := New(20 * time.Millisecond)
	key := PermissionKey{AgentID: "agent-1", PermissionID: "perm-1"}

	d, err := b.AwaitPermission(context.Background(), key)
	if err != nil {
		t.Fatalf("AwaitPermission: %v", err)
	}
	if d != DecisionReject {
		t.Errorf("expected timeout to resolve reject, got %q", d)
	}

	// A decision arriving after the timeout fired has no effect.
	if err := b.ResolvePermission(key, DecisionOnce); !errors.Is(err, ErrNoPendingRequest) {
		t.Errorf("late decision: expected ErrNoPendingRequest, got %v", err)
	}
}

func TestBridge_PermissionDecision_BeatsTimer(t *testing.T) {
	b := New(time.Hour)
	key := PermissionKey{AgentID: "agent-1", PermissionID: "perm-1"}

	done := make(chan Decision, 1)
	go func() {
		d, _ := b.AwaitPermission(context.Background(), key)
		done <- d
	}()
	waitFor(t, func() bool { return b.HasPendingPermission(key) })

	if err := b.ResolvePermission(key, DecisionOnce); err != nil {
		t.Fatalf("ResolvePermission: %v", err)
	}
	if d := <-done; d != DecisionOnce {
		t.Errorf("expected once, got %q", d)
	}
	if b.HasPendingPermission(key) {
		t.Error("expected entry removed after decision")
	}
}

func TestBridge_ActivePermission_MostRecentWins(t *testing.T) {
	b := New(time.Minute)
	p1 := PermissionKey{AgentID: "agent-a", PermissionID: "p1"}
	p2 := PermissionKey{AgentID: "agent-b", PermissionID: "p2"}

	resA := make(chan Decision, 1)
	go func() {
		d, _ := b.AwaitPermission(context.Background(), p1)
		resA <- d
	}()
	waitFor(t, func() bool { return b.HasPendingPermission(p1) })

	resB := make(chan Decision, 1)
	go func() {
		d, _ := b.AwaitPermission(context.Background(), p2)
		resB <- d
	}()
	waitFor(t, func() bool { return b.HasPendingPermission(p2) })

	// A chat "allow" resolves the most recent permission: p2, not p1.
	active, ok := b.ActivePermission()
	if !ok {
		t.Fatal("expected an active permission")
	}
	if active != p2 {
		t.Fatalf("expected active permission p2, got %v", active)
	}

	if err := b.ResolvePermission(active, DecisionOnce); err != nil {
		t.Fatalf("ResolvePermission: %v", err)
	}
	if d := <-resB; d != DecisionOnce {
		t.Errorf("expected p2 resolved once, got %q", d)
	}

	// p1 is still resolvable via its dedicated control.
	if !b.HasPendingPermission(p1) {
		t.Fatal("expected p1 still pending")
	}
	if err := b.ResolvePermission(p1, DecisionReject); err != nil {
		t.Fatalf("resolve p1: %v", err)
	}
	if d := <-resA; d != DecisionReject {
		t.Errorf("expected p1 resolved reject, got %q", d)
	}
}

func TestBridge_EndSession_Cleanup(t *testing.T) {
	b := New(time.Minute)
	respKey := ResponseKey{AgentID: "agent-1", SessionID: "sess-1"}
	permKey := PermissionKey{AgentID: "agent-1", PermissionID: "perm-1"}
	otherPerm := PermissionKey{AgentID: "agent-2", PermissionID: "perm-2"}

	respCh := make(chan Response, 1)
	go func() {
		r, _ := b.AwaitInput(context.Background(), respKey)
		respCh <- r
	}()
	permCh := make(chan Decision, 1)
	go func() {
		d, _ := b.AwaitPermission(context.Background(), permKey)
		permCh <- d
	}()
	go b.AwaitPermission(context.Background(), otherPerm)

	waitFor(t, func() bool {
		return b.HasPendingInput(respKey) && b.HasPendingPermission(permKey) && b.HasPendingPermission(otherPerm)
	})

	b.EndSession("agent-1", "sess-1")

	if r := <-respCh; !r.Aborted {
		t.Error("expected input wait resolved with abort")
	}
	if d := <-permCh; d != DecisionReject {
		t.Errorf("expected agent-1 permission rejected, got %q", d)
	}
	// Another agent's permission is untouched.
	if !b.HasPendingPermission(otherPerm) {
		t.Error("expected agent-2 permission to survive agent-1 session end")
	}
}

func TestBridge_EndSession_NoPending(t *testing.T) {
	b := New(0)
	// Ending a session with nothing outstanding must not panic or block.
	b.EndSession("agent-1", "sess-1")
}

func TestClassifyDecision(t *testing.T) {
	tests := []struct {
		text    string
		want    Decision
		matched bool
	}{
		{"allow", DecisionOnce, true},
		{"yes", DecisionOnce, true},
		{"approve", DecisionOnce, true},
		{"ok", DecisionOnce, true},
		{"y", DecisionOnce, true},
		{"always", DecisionAlways, true},
		{"always allow", DecisionAlways, true},
		{"deny", DecisionReject, true},
		{"no", DecisionReject, true},
		{"reject", DecisionReject, true},
		{"n", DecisionReject, true},
		{"ALLOW", DecisionOnce, true},
		{"  Yes  ", DecisionOnce, true},
		{"Always Allow", DecisionAlways, true},
		{"maybe", "", false},
		{"please allow it", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, ok := ClassifyDecision(tt.text)
			if ok != tt.matched {
				t.Fatalf("ClassifyDecision(%q) matched = %v, want %v", tt.text, ok, tt.matched)
			}
			if ok && got != tt.want {
				t.Errorf("ClassifyDecision(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

// waitFor polls cond until it holds or the test times out.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition never became true")
}
