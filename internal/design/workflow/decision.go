package workflow

import (
	"fmt"
	"strings"

	"github.com/gigfactory/designhub/internal/design/entity"
)

// Outcome is a parsed reviewer decision.
type Outcome struct {
	Event            Event
	Decision         string // stored on the drawing: entity.Decision*
	SubmissionStatus entity.SubmissionStatus
}

var expertDecisions = map[string]Outcome{
	"approve":          {Event: EventExpertApprove, Decision: entity.DecisionApproved},
	"request_revision": {Event: EventExpertRequestRevision, Decision: entity.DecisionRevisionRequired},
}

var clientDecisions = map[string]Outcome{
	"approve":          {Event: EventClientApprove, Decision: entity.DecisionApproved, SubmissionStatus: entity.SubmissionApproved},
	"request_revision": {Event: EventClientRequestRevision, Decision: entity.DecisionRevisionRequired, SubmissionStatus: entity.SubmissionRevisionRequired},
	"reject":           {Event: EventClientReject, Decision: entity.DecisionRejected, SubmissionStatus: entity.SubmissionRejected},
}

// aliases accepted from older clients
var decisionAliases = map[string]string{
	"approved":          "approve",
	"revision_required": "request_revision",
	"revision":          "request_revision",
	"rejected":          "reject",
}

// DecisionError reports a decision outside the allowed set.
type DecisionError struct {
	Value   string
	Allowed []string
}

func (e *DecisionError) Error() string {
	return fmt.Sprintf("invalid decision %q, expected one of: %s", e.Value, strings.Join(e.Allowed, ", "))
}

// ParseExpertDecision accepts approve or request_revision.
func ParseExpertDecision(s string) (Outcome, error) {
	if o, ok := expertDecisions[normalize(s)]; ok {
		return o, nil
	}
	return Outcome{}, &DecisionError{Value: s, Allowed: []string{"approve", "request_revision"}}
}

// ParseClientDecision accepts approve, request_revision or reject.
func ParseClientDecision(s string) (Outcome, error) {
	if o, ok := clientDecisions[normalize(s)]; ok {
		return o, nil
	}
	return Outcome{}, &DecisionError{Value: s, Allowed: []string{"approve", "request_revision", "reject"}}
}

func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, "-", "_")
	if a, ok := decisionAliases[s]; ok {
		return a
	}
	return s
}
