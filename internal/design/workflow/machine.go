// Package workflow defines the drawing review state machine.
//
// Every status change goes through Machine.Fire, which only accepts the
// (status, event) pairs listed in the transition table.
package workflow

import (
	"fmt"

	"github.com/gigfactory/designhub/internal/design/entity"
)

// Event is an actor action on a drawing.
type Event string

const (
	EventSubmit                Event = "submit"
	EventExpertApprove         Event = "expert_approve"
	EventExpertRequestRevision Event = "expert_request_revision"
	EventSendToClient          Event = "send_to_client"
	EventClientApprove         Event = "client_approve"
	EventClientRequestRevision Event = "client_request_revision"
	EventClientReject          Event = "client_reject"
	EventUploadRevision        Event = "upload_revision"
)

type transitionKey struct {
	from  entity.DrawingStatus
	event Event
}

var baseTransitions = map[transitionKey]entity.DrawingStatus{
	{entity.DrawingStatusDraft, EventSubmit}: entity.DrawingStatusSentToExpert,

	{entity.DrawingStatusSentToExpert, EventExpertApprove}:         entity.DrawingStatusApprovedByExpert,
	{entity.DrawingStatusSentToExpert, EventExpertRequestRevision}: entity.DrawingStatusRevisionRequiredByExpert,

	{entity.DrawingStatusApprovedByExpert, EventSendToClient}: entity.DrawingStatusSentToClient,

	{entity.DrawingStatusSentToClient, EventClientApprove}:         entity.DrawingStatusApprovedByClient,
	{entity.DrawingStatusSentToClient, EventClientRequestRevision}: entity.DrawingStatusRevisionRequiredByClient,
	{entity.DrawingStatusSentToClient, EventClientReject}:          entity.DrawingStatusRejectedByClient,

	{entity.DrawingStatusRevisionRequiredByExpert, EventUploadRevision}: entity.DrawingStatusSentToExpert,
	{entity.DrawingStatusRevisionRequiredByClient, EventUploadRevision}: entity.DrawingStatusSentToExpert,
}

// TransitionError is returned when an event is not allowed from the current status.
type TransitionError struct {
	From     entity.DrawingStatus
	Event    Event
	Required []entity.DrawingStatus
}

func (e *TransitionError) Error() string {
	if len(e.Required) == 0 {
		return fmt.Sprintf("%s is not allowed from %q", e.Event, e.From.Label())
	}
	labels := make([]string, len(e.Required))
	for i, s := range e.Required {
		labels[i] = fmt.Sprintf("%q", s.Label())
	}
	return fmt.Sprintf("%s is not allowed from %q; drawing must be %s", e.Event, e.From.Label(), joinOr(labels))
}

// Machine is an immutable transition table.
type Machine struct {
	transitions map[transitionKey]entity.DrawingStatus
}

// Option configures a Machine.
type Option func(map[transitionKey]entity.DrawingStatus)

// WithReuploadAfterClientReject lets the designer upload a new version after the
// client rejected the drawing, the same way as after a revision request.
func WithReuploadAfterClientReject(enabled bool) Option {
	return func(t map[transitionKey]entity.DrawingStatus) {
		if enabled {
			t[transitionKey{entity.DrawingStatusRejectedByClient, EventUploadRevision}] = entity.DrawingStatusSentToExpert
		}
	}
}

// NewMachine builds the review state machine.
func NewMachine(opts ...Option) *Machine {
	t := make(map[transitionKey]entity.DrawingStatus, len(baseTransitions)+1)
	for k, v := range baseTransitions {
		t[k] = v
	}
	for _, opt := range opts {
		opt(t)
	}
	return &Machine{transitions: t}
}

// Fire returns the status reached by applying ev to from.
func (m *Machine) Fire(from entity.DrawingStatus, ev Event) (entity.DrawingStatus, error) {
	if to, ok := m.transitions[transitionKey{from, ev}]; ok {
		return to, nil
	}
	return "", &TransitionError{From: from, Event: ev, Required: m.SourcesOf(ev)}
}

// Can reports whether ev is allowed from status.
func (m *Machine) Can(from entity.DrawingStatus, ev Event) bool {
	_, ok := m.transitions[transitionKey{from, ev}]
	return ok
}

// SourcesOf lists the statuses from which ev is allowed, in lifecycle order.
func (m *Machine) SourcesOf(ev Event) []entity.DrawingStatus {
	var out []entity.DrawingStatus
	for _, s := range lifecycle {
		if m.Can(s, ev) {
			out = append(out, s)
		}
	}
	return out
}

// Terminal reports whether no event is allowed from status.
func (m *Machine) Terminal(status entity.DrawingStatus) bool {
	for k := range m.transitions {
		if k.from == status {
			return false
		}
	}
	return true
}

var lifecycle = []entity.DrawingStatus{
	entity.DrawingStatusDraft,
	entity.DrawingStatusSentToExpert,
	entity.DrawingStatusApprovedByExpert,
	entity.DrawingStatusRevisionRequiredByExpert,
	entity.DrawingStatusSentToClient,
	entity.DrawingStatusApprovedByClient,
	entity.DrawingStatusRevisionRequiredByClient,
	entity.DrawingStatusRejectedByClient,
}

func joinOr(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	}
	out := ""
	for i, it := range items {
		switch {
		case i == 0:
			out = it
		case i == len(items)-1:
			out += " or " + it
		default:
			out += ", " + it
		}
	}
	return out
}
