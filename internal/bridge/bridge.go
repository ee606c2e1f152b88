// Package bridge pairs asynchronous human responses with in-flight agent
// requests. A coding agent that suspends on a free-text reply or an
// allow/deny decision parks a deferred result here; chat replies, dedicated
// UI actions, or the permission timeout resolve it exactly once.
package bridge

import (
	"context"
	"errors"
	"sync"
	"time"
)

// DefaultPermissionTimeout bounds how long a permission request may wait
// for a human decision. An unattended, potentially destructive action is
// never auto-approved, only auto-denied.
const DefaultPermissionTimeout = 5 * time.Minute

// ErrNoPendingRequest is returned when resolving a key with no waiting
// request: either none was ever registered, or it was already resolved.
var ErrNoPendingRequest = errors.New("no pending request")

// ErrRequestPending is returned when a session registers a second request
// of the same kind before the first resolved. A session holds at most one
// outstanding input request and one outstanding permission request.
var ErrRequestPending = errors.New("request already pending")

// ResponseKey identifies one awaiting human-input request.
type ResponseKey struct {
	// AgentID is the coding agent that suspended.
	AgentID string
	// SessionID is the agent-local session identifier.
	SessionID string
}

// String renders the composite key for logs.
func (k ResponseKey) String() string {
	return k.AgentID + ":" + k.SessionID
}

// PermissionKey identifies one awaiting permission request.
type PermissionKey struct {
	// AgentID is the coding agent requesting permission.
	AgentID string
	// PermissionID is the agent-local request identifier.
	PermissionID string
}

// String renders the composite key for logs.
func (k PermissionKey) String() string {
	return k.AgentID + ":" + k.PermissionID
}

// Decision is the human's answer to a permission request.
type Decision string

const (
	// DecisionOnce allows the action this time only.
	DecisionOnce Decision = "once"
	// DecisionAlways allows the action for the rest of the session.
	DecisionAlways Decision = "always"
	// DecisionReject denies the action. Also the timeout fallback.
	DecisionReject Decision = "reject"
)

// Response is the outcome of a human-input wait.
type Response struct {
	// Text is the submitted reply.
	Text string
	// Aborted is true when the wait was resolved by session end rather
	// than a human reply. Text is empty in that case.
	Aborted bool
}

type pendingResponse struct {
	ch chan Response
}

type pendingPermission struct {
	ch    chan Decision
	timer *time.Timer
}

// Bridge owns the deferred-result tables. One Bridge lives for the
// orchestrator's lifetime; its state is never persisted, so an agent that
// was awaiting input at crash time is simply never resumed (the boot sweep
// marks it done).
type Bridge struct {
	mu          sync.Mutex
	responses   map[ResponseKey]*pendingResponse
	permissions map[PermissionKey]*pendingPermission
	// active points at the most recently registered unresolved permission,
	// for the chat-shortcut path. Single-operator simplification: only one
	// permission is reachable via chat at a time.
	active  *PermissionKey
	timeout time.Duration
}

// New creates a Bridge. A non-positive timeout falls back to
// DefaultPermissionTimeout.
func New(timeout time.Duration) *Bridge {
	if timeout <= 0 {
		timeout = DefaultPermissionTimeout
	}
	return &Bridge{
		responses:   make(map[ResponseKey]*pendingResponse),
		permissions: make(map[PermissionKey]*pendingPermission),
		timeout:     timeout,
	}
}

// AwaitInput registers a human-input wait for the key and blocks until a
// reply arrives, the session ends, or ctx is cancelled. No timeout applies:
// a human-input wait may legitimately last indefinitely.
func (b *Bridge) AwaitInput(ctx context.Context, key ResponseKey) (Response, error) {
	b.mu.Lock()
	if _, exists := b.responses[key]; exists {
		b.mu.Unlock()
		return Response{}, ErrRequestPending
	}
	pending := &pendingResponse{ch: make(chan Response, 1)}
	b.responses[key] = pending
	b.mu.Unlock()

	select {
	case resp := <-pending.ch:
		return resp, nil
	case <-ctx.Done():
		b.mu.Lock()
		delete(b.responses, key)
		b.mu.Unlock()
		return Response{}, ctx.Err()
	}
}

// ResolveInput fulfills the input wait for key with the submitted text.
// Resolution is at-most-once: a second call for the same key returns
// ErrNoPendingRequest rather than being silently dropped or double-applied.
func (b *Bridge) ResolveInput(key ResponseKey, text string) error {
	return b.fulfillResponse(key, Response{Text: text})
}

// fulfillResponse removes the entry before sending, so concurrent resolvers
// race on the map lookup, and exactly one wins.
func (b *Bridge) fulfillResponse(key ResponseKey, resp Response) error {
	b.mu.Lock()
	pending, exists := b.responses[key]
	if !exists {
		b.mu.Unlock()
		return ErrNoPendingRequest
	}
	delete(b.responses, key)
	b.mu.Unlock()

	pending.ch <- resp
	return nil
}

// AwaitPermission registers a permission wait for the key and blocks until
// a decision arrives or the timeout fires. The timeout resolves to
// DecisionReject: fail closed, never fail open.
func (b *Bridge) AwaitPermission(ctx context.Context, key PermissionKey) (Decision, error) {
	b.mu.Lock()
	if _, exists := b.permissions[key]; exists {
		b.mu.Unlock()
		return "", ErrRequestPending
	}
	pending := &pendingPermission{ch: make(chan Decision, 1)}
	pending.timer = time.AfterFunc(b.timeout, func() {
		// Losing the race against a human decision is fine: the entry is
		// already gone and ResolvePermission reports no pending request.
		b.ResolvePermission(key, DecisionReject)
	})
	b.permissions[key] = pending
	k := key
	b.active = &k
	b.mu.Unlock()

	select {
	case decision := <-pending.ch:
		return decision, nil
	case <-ctx.Done():
		b.mu.Lock()
		if _, exists := b.permissions[key]; exists {
			delete(b.permissions, key)
			pending.timer.Stop()
			b.clearActiveLocked(key)
		}
		b.mu.Unlock()
		return "", ctx.Err()
	}
}

// ResolvePermission fulfills the permission wait for key. Whether the
// resolver is a human decision or the timeout, the timer is stopped and the
// active-permission pointer cleared so nothing stale fires later.
func (b *Bridge) ResolvePermission(key PermissionKey, decision Decision) error {
	b.mu.Lock()
	pending, exists := b.permissions[key]
	if !exists {
		b.mu.Unlock()
		return ErrNoPendingRequest
	}
	delete(b.permissions, key)
	pending.timer.Stop()
	b.clearActiveLocked(key)
	b.mu.Unlock()

	pending.ch <- decision
	return nil
}

// ActivePermission returns the most recently registered unresolved
// permission, if any. This backs the chat-shortcut path.
func (b *Bridge) ActivePermission() (PermissionKey, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.active == nil {
		return PermissionKey{}, false
	}
	return *b.active, true
}

// HasPendingInput reports whether an input wait exists for the key.
func (b *Bridge) HasPendingInput(key ResponseKey) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, exists := b.responses[key]
	return exists
}

// HasPendingPermission reports whether a permission wait exists for the key.
func (b *Bridge) HasPendingPermission(key PermissionKey) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, exists := b.permissions[key]
	return exists
}

// EndSession resolves everything the session still owns: its input wait
// (with an abort response) and every permission whose key belongs to the
// agent (with reject). No deferred result outlives its session.
func (b *Bridge) EndSession(agentID, sessionID string) {
	b.fulfillResponse(ResponseKey{AgentID: agentID, SessionID: sessionID}, Response{Aborted: true})

	b.mu.Lock()
	var keys []PermissionKey
	for k := range b.permissions {
		if k.AgentID == agentID {
			keys = append(keys, k)
		}
	}
	b.mu.Unlock()

	for _, k := range keys {
		b.ResolvePermission(k, DecisionReject)
	}
}

// clearActiveLocked drops the active pointer if it references key.
// Caller must hold b.mu.
func (b *Bridge) clearActiveLocked(key PermissionKey) {
	if b.active != nil && *b.active == key {
		b.active = nil
	}
}
