package workflow

import (
	"errors"
	"testing"

	"github.com/gigfactory/designhub/internal/design/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMachineHappyPath(t *testing.T) {
	m := NewMachine()

	steps := []struct {
		ev   Event
		want entity.DrawingStatus
	}{
		{EventSubmit, entity.DrawingStatusSentToExpert},
		{EventExpertRequestRevision, entity.DrawingStatusRevisionRequiredByExpert},
		{EventUploadRevision, entity.DrawingStatusSentToExpert},
		{EventExpertApprove, entity.DrawingStatusApprovedByExpert},
		{EventSendToClient, entity.DrawingStatusSentToClient},
		{EventClientRequestRevision, entity.DrawingStatusRevisionRequiredByClient},
		{EventUploadRevision, entity.DrawingStatusSentToExpert},
		{EventExpertApprove, entity.DrawingStatusApprovedByExpert},
		{EventSendToClient, entity.DrawingStatusSentToClient},
		{EventClientApprove, entity.DrawingStatusApprovedByClient},
	}

	status := entity.DrawingStatusDraft
	for _, s := range steps {
		next, err := m.Fire(status, s.ev)
		require.NoError(t, err, "%s from %s", s.ev, status)
		assert.Equal(t, s.want, next)
		status = next
	}
	assert.True(t, m.Terminal(status))
}

func TestMachineRejectsUnknownTransitions(t *testing.T) {
	m := NewMachine()
	allStatuses := []entity.DrawingStatus{
		entity.DrawingStatusDraft,
		entity.DrawingStatusSentToExpert,
		entity.DrawingStatusApprovedByExpert,
		entity.DrawingStatusRevisionRequiredByExpert,
		entity.DrawingStatusSentToClient,
		entity.DrawingStatusApprovedByClient,
		entity.DrawingStatusRevisionRequiredByClient,
		entity.DrawingStatusRejectedByClient,
	}

	uploadable := map[entity.DrawingStatus]bool{
		entity.DrawingStatusRevisionRequiredByExpert: true,
		entity.DrawingStatusRevisionRequiredByClient: true,
	}
	for _, s := range allStatuses {
		_, err := m.Fire(s, EventUploadRevision)
		if uploadable[s] {
			assert.NoError(t, err, s)
			continue
		}
		var te *TransitionError
		require.True(t, errors.As(err, &te), s)
		assert.Equal(t, s, te.From)
	}

	for _, s := range allStatuses {
		if s == entity.DrawingStatusApprovedByExpert {
			continue
		}
		assert.False(t, m.Can(s, EventSendToClient), s)
	}
}

func TestMachineErrorNamesRequiredState(t *testing.T) {
	m := NewMachine()
	_, err := m.Fire(entity.DrawingStatusSentToExpert, EventSendToClient)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"Approved by Expert"`)

	_, err = m.Fire(entity.DrawingStatusSentToClient, EventUploadRevision)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"Revision Required by Expert" or "Revision Required by Client"`)
}

func TestMachineReuploadAfterClientReject(t *testing.T) {
	strict := NewMachine()
	assert.False(t, strict.Can(entity.DrawingStatusRejectedByClient, EventUploadRevision))
	assert.True(t, strict.Terminal(entity.DrawingStatusRejectedByClient))

	lenient := NewMachine(WithReuploadAfterClientReject(true))
	next, err := lenient.Fire(entity.DrawingStatusRejectedByClient, EventUploadRevision)
	require.NoError(t, err)
	assert.Equal(t, entity.DrawingStatusSentToExpert, next)

	// options do not leak into the shared table
	assert.False(t, NewMachine().Can(entity.DrawingStatusRejectedByClient, EventUploadRevision))
}

func TestParseDecisions(t *testing.T) {
	o, err := ParseExpertDecision("Approve")
	require.NoError(t, err)
	assert.Equal(t, EventExpertApprove, o.Event)

	o, err = ParseExpertDecision("revision required")
	require.NoError(t, err)
	assert.Equal(t, entity.DecisionRevisionRequired, o.Decision)

	_, err = ParseExpertDecision("reject")
	var de *DecisionError
	require.True(t, errors.As(err, &de))

	o, err = ParseClientDecision("rejected")
	require.NoError(t, err)
	assert.Equal(t, EventClientReject, o.Event)
	assert.Equal(t, entity.SubmissionRejected, o.SubmissionStatus)

	_, err = ParseClientDecision("")
	assert.Error(t, err)
}
