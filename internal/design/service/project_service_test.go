package service

import (
	"context"
	"testing"

	"github.com/gigfactory/designhub/internal/config"
	"github.com/gigfactory/designhub/internal/design/entity"
	"github.com/gigfactory/designhub/internal/design/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeliverableFollowsItsTasks(t *testing.T) {
	f := newFixture(t, config.WorkflowConfig{})
	ctx := context.Background()
	testutil.SeedProject(t, f.db, "p1")

	dl, err := f.svc.Project.CreateDeliverable(ctx, CreateDeliverableInput{ProjectID: "p1", Name: "Tender set", Number: "D-01", CreatedBy: "admin-001"})
	require.NoError(t, err)

	a, err := f.svc.Project.CreateTask(ctx, CreateTaskInput{ProjectID: "p1", DeliverableID: dl.ID, Name: "Plans", CreatedBy: "admin-001"})
	require.NoError(t, err)
	assert.Equal(t, "medium", a.Priority)
	b, err := f.svc.Project.CreateTask(ctx, CreateTaskInput{ProjectID: "p1", DeliverableID: dl.ID, Name: "Sections", Priority: "high", CreatedBy: "admin-001"})
	require.NoError(t, err)

	_, change, err := f.svc.Project.UpdateTaskStatus(ctx, a.ID, entity.TaskStatusCompleted)
	require.NoError(t, err)
	require.NotNil(t, change)
	assert.Nil(t, change.Deliverable)

	task, change, err := f.svc.Project.UpdateTaskStatus(ctx, b.ID, entity.TaskStatusCompleted)
	require.NoError(t, err)
	assert.NotNil(t, task.CompletedAt)
	require.NotNil(t, change.Deliverable)
	assert.Equal(t, entity.DeliverableStatusCompleted, change.Deliverable.To)

	// same status again is a no-op
	_, change, err = f.svc.Project.UpdateTaskStatus(ctx, b.ID, entity.TaskStatusCompleted)
	require.NoError(t, err)
	assert.Nil(t, change)

	// a new task reopens the deliverable
	_, err = f.svc.Project.CreateTask(ctx, CreateTaskInput{ProjectID: "p1", DeliverableID: dl.ID, Name: "Details", CreatedBy: "admin-001"})
	require.NoError(t, err)
	got, err := f.svc.Project.GetDeliverable(ctx, dl.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.DeliverableStatusInProgress, got.Status)
	assert.Nil(t, got.CompletedAt)
	assert.Len(t, got.Tasks, 3)
}

func TestRecomputeIsIdempotent(t *testing.T) {
	f := newFixture(t, config.WorkflowConfig{})
	ctx := context.Background()
	testutil.SeedProject(t, f.db, "p1")
	testutil.SeedDeliverable(t, f.db, "dl1", "p1")
	testutil.SeedDeliverable(t, f.db, "empty", "p1")
	dl := "dl1"
	testutil.SeedTask(t, f.db, "t1", "p1", &dl, entity.TaskStatusCompleted)
	testutil.SeedTask(t, f.db, "t2", "p1", &dl, entity.TaskStatusCompleted)

	got, err := f.svc.Project.RecomputeDeliverableStatus(ctx, "dl1")
	require.NoError(t, err)
	assert.Equal(t, entity.DeliverableStatusCompleted, got.Status)
	first := *got.CompletedAt

	got, err = f.svc.Project.RecomputeDeliverableStatus(ctx, "dl1")
	require.NoError(t, err)
	assert.Equal(t, entity.DeliverableStatusCompleted, got.Status)
	assert.True(t, first.Equal(*got.CompletedAt))

	// no tasks: left alone
	got, err = f.svc.Project.RecomputeDeliverableStatus(ctx, "empty")
	require.NoError(t, err)
	assert.Equal(t, entity.DeliverableStatusInProgress, got.Status)

	_, err = f.svc.Project.RecomputeDeliverableStatus(ctx, "missing")
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)

	events, err := f.svc.Project.repos.Outbox.ListByAggregate(ctx, "dl1")
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestReconcilerRunOnce(t *testing.T) {
	f := newFixture(t, config.WorkflowConfig{})
	ctx := context.Background()
	testutil.SeedProject(t, f.db, "p1")
	testutil.SeedDeliverable(t, f.db, "dl1", "p1")
	dl := "dl1"
	testutil.SeedTask(t, f.db, "t1", "p1", &dl, entity.TaskStatusCompleted)

	changed, err := f.svc.Reconciler.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, changed)

	changed, err = f.svc.Reconciler.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, changed)
}

func TestReconcilerDisabled(t *testing.T) {
	svc := NewServices(nil, nil, nil, nil, nil, config.WorkflowConfig{})
	assert.NoError(t, svc.Reconciler.Run(context.Background()))
}

func TestTaskValidation(t *testing.T) {
	svc := NewServices(nil, nil, nil, nil, nil, config.WorkflowConfig{})
	ctx := context.Background()
	var ve *ValidationError

	_, _, err := svc.Project.UpdateTaskStatus(ctx, "t1", "done")
	require.ErrorAs(t, err, &ve)

	_, err = svc.Project.CreateTask(ctx, CreateTaskInput{ProjectID: "p1", Name: "x", Priority: "urgent", CreatedBy: "u"})
	require.ErrorAs(t, err, &ve)

	_, err = svc.Project.CreateProject(ctx, CreateProjectInput{CreatedBy: "u"})
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "missing required fields: name", ve.Msg)
}

func TestCreateTaskRejectsForeignDeliverable(t *testing.T) {
	f := newFixture(t, config.WorkflowConfig{})
	testutil.SeedProject(t, f.db, "p1")
	testutil.SeedProject(t, f.db, "p2")
	testutil.SeedDeliverable(t, f.db, "dl2", "p2")

	_, err := f.svc.Project.CreateTask(context.Background(), CreateTaskInput{ProjectID: "p1", DeliverableID: "dl2", Name: "x", CreatedBy: "u"})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
}

func TestAssignedListings(t *testing.T) {
	f := newFixture(t, config.WorkflowConfig{})
	ctx := context.Background()

	p1, err := f.svc.Project.CreateProject(ctx, CreateProjectInput{Name: "Clinic", ClientID: "client-001", CreatedBy: "admin-001"})
	require.NoError(t, err)
	p2, err := f.svc.Project.CreateProject(ctx, CreateProjectInput{Name: "School", CreatedBy: "admin-001"})
	require.NoError(t, err)

	all, err := f.svc.Project.ListProjects(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
	mine, err := f.svc.Project.ListProjects(ctx, "client-001")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, p1.ID, mine[0].ID)

	task, err := f.svc.Project.CreateTask(ctx, CreateTaskInput{ProjectID: p1.ID, Name: "Plans", AssigneeID: "designer-001", CreatedBy: "admin-001"})
	require.NoError(t, err)
	_, err = f.svc.Project.CreateTask(ctx, CreateTaskInput{ProjectID: p1.ID, Name: "Survey", AssigneeID: "expert-001", CreatedBy: "admin-001"})
	require.NoError(t, err)
	_, _, err = f.svc.Project.UpdateTaskStatus(ctx, task.ID, entity.TaskStatusInProgress)
	require.NoError(t, err)

	tasks, err := f.svc.Project.ListAssignedTasks(ctx, "designer-001", "")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, task.ID, tasks[0].ID)
	tasks, err = f.svc.Project.ListAssignedTasks(ctx, "designer-001", entity.TaskStatusPending)
	require.NoError(t, err)
	assert.Empty(t, tasks)

	_, err = f.svc.Project.AddTeamMember(ctx, AddTeamMemberInput{ProjectID: p2.ID, UserID: "designer-001", AddedBy: "admin-001"})
	require.NoError(t, err)
	_, err = f.svc.Project.AddTeamMember(ctx, AddTeamMemberInput{ProjectID: p2.ID, UserID: "designer-001", AddedBy: "admin-001"})
	var se *InvalidStateError
	assert.ErrorAs(t, err, &se)

	projects, err := f.svc.Project.ListAssignedProjects(ctx, "designer-001")
	require.NoError(t, err)
	assert.Len(t, projects, 2)

	team, err := f.svc.Project.ListTeam(ctx, p2.ID)
	require.NoError(t, err)
	require.Len(t, team, 1)
	assert.Equal(t, entity.TeamStatusInternal, team[0].Status)

	_, err = f.svc.Project.ListTeam(ctx, "missing")
	var nf *NotFoundError
	assert.ErrorAs(t, err, &nf)
}
