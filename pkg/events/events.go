// Package events carries the notifications an execution publishes to the UI.
package events

import (
	"sync"

	"github.com/loykin/reqpipe/pkg/env"
	"github.com/loykin/reqpipe/pkg/request"
)

// Event type names as seen by stream consumers.
const (
	TypeEnvironmentUpdated = "script-environment-update"
	TypeRequestSent        = "http-request-sent"
)

// EnvironmentUpdated is published after a script ran, with the resulting variables.
type EnvironmentUpdated struct {
	Environment  env.Vars `json:"environment"`
	CollectionID string   `json:"collectionUid"`
}

// RequestSent is published once the request is final, right before dispatch.
type RequestSent struct {
	Request      request.Snapshot `json:"requestSent"`
	CollectionID string           `json:"collectionUid"`
	ItemID       string           `json:"itemUid"`
	TokenID      string           `json:"cancelTokenUid"`
}

// Notifier receives execution events. Implementations must not block for long:
// they are called on the execution goroutine.
type Notifier interface {
	EnvironmentUpdated(EnvironmentUpdated)
	RequestSent(RequestSent)
}

// Nop discards every event.
type Nop struct{}

func (Nop) EnvironmentUpdated(EnvironmentUpdated) {}
func (Nop) RequestSent(RequestSent)               {}

// Multi fans events out to several notifiers in order.
type Multi []Notifier

func (m Multi) EnvironmentUpdated(e EnvironmentUpdated) {
	for _, n := range m {
		n.EnvironmentUpdated(e)
	}
}

func (m Multi) RequestSent(e RequestSent) {
	for _, n := range m {
		n.RequestSent(e)
	}
}

// Event is the envelope written to streams.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Recorder keeps every event in order. Used by tests and the send command.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) EnvironmentUpdated(e EnvironmentUpdated) {
	r.add(Event{Type: TypeEnvironmentUpdated, Payload: e})
}

func (r *Recorder) RequestSent(e RequestSent) {
	r.add(Event{Type: TypeRequestSent, Payload: e})
}

func (r *Recorder) add(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Types returns the recorded event types in order.
func (r *Recorder) Types() []string {
	var out []string
	for _, e := range r.Events() {
		out = append(out, e.Type)
	}
	return out
}
