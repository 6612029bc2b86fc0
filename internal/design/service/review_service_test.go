package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/gigfactory/designhub/internal/config"
	"github.com/gigfactory/designhub/internal/design/entity"
	"github.com/gigfactory/designhub/internal/design/repository"
	"github.com/gigfactory/designhub/internal/design/testutil"
	"github.com/gigfactory/designhub/internal/shared/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	designer = "designer-001"
	expert   = "expert-001"
	client   = "client-001"
)

type fixture struct {
	db    *gorm.DB
	svc   *Services
	store *storage.LocalStore
}

func newFixture(t *testing.T, cfg config.WorkflowConfig) *fixture {
	t.Helper()
	db := testutil.SetupTestDB(t)
	store := storage.NewLocalStore(t.TempDir())
	return &fixture{db: db, svc: NewServices(db, nil, store, nil, zap.NewNop(), cfg), store: store}
}

func (f *fixture) createDrawing(t *testing.T, projectID, taskID string) *entity.Drawing {
	t.Helper()
	d, err := f.svc.Review.CreateDrawing(context.Background(), CreateDrawingInput{
		ProjectID:  projectID,
		Name:       "Ground floor plan",
		Discipline: "architectural",
		SentBy:     designer,
		SentTo:     expert,
		TaskID:     taskID,
		Files:      testutil.Files("plan-v1.pdf"),
		Comment:    "first issue",
	})
	require.NoError(t, err)
	return d
}

func (f *fixture) review(t *testing.T, drawingID string, steps ...string) {
	t.Helper()
	ctx := context.Background()
	for _, step := range steps {
		var err error
		switch step {
		case "expert_approve":
			_, err = f.svc.Review.ExpertReview(ctx, ReviewInput{DrawingID: drawingID, ReviewerID: expert, Decision: "approve"})
		case "expert_revise":
			_, err = f.svc.Review.ExpertReview(ctx, ReviewInput{DrawingID: drawingID, ReviewerID: expert, Decision: "request_revision", Comment: "fix grid lines"})
		case "submit":
			_, err = f.svc.Review.SubmitToClient(ctx, SubmitToClientInput{DrawingID: drawingID, SubmittedBy: expert, SubmittedTo: client})
		case "client_approve", "client_reject", "client_revise":
			decision := map[string]string{"client_approve": "approve", "client_reject": "reject", "client_revise": "request_revision"}[step]
			_, err = f.svc.Review.ClientReview(ctx, ReviewInput{DrawingID: drawingID, ReviewerID: client, Decision: decision})
		case "upload":
			_, err = f.svc.Review.UploadRevision(ctx, UploadRevisionInput{DrawingID: drawingID, UploadedBy: designer, Files: testutil.Files("plan-next.pdf")})
		default:
			t.Fatalf("unknown step %q", step)
		}
		require.NoError(t, err, "step %s", step)
	}
}

func (f *fixture) status(t *testing.T, drawingID string) entity.DrawingStatus {
	t.Helper()
	d, err := f.svc.Review.GetDrawing(context.Background(), drawingID)
	require.NoError(t, err)
	return d.Status
}

func TestReviewScenario(t *testing.T) {
	f := newFixture(t, config.WorkflowConfig{})
	ctx := context.Background()
	testutil.SeedProject(t, f.db, "p1")
	testutil.SeedDeliverable(t, f.db, "dl1", "p1")
	dl := "dl1"
	testutil.SeedTask(t, f.db, "t1", "p1", &dl, entity.TaskStatusPending)

	d := f.createDrawing(t, "p1", "t1")
	assert.Equal(t, entity.DrawingStatusSentToExpert, d.Status)
	assert.Equal(t, expert, d.SentTo)

	task, err := f.svc.Project.repos.Task.FindByID(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, entity.TaskStatusInProgress, task.Status)

	f.review(t, d.ID, "expert_revise")
	assert.Equal(t, entity.DrawingStatusRevisionRequiredByExpert, f.status(t, d.ID))

	v2, err := f.svc.Review.UploadRevision(ctx, UploadRevisionInput{
		DrawingID: d.ID, UploadedBy: designer, Files: testutil.Files("plan-v2.pdf"), Comment: "grid fixed",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, v2.VersionNumber)

	got, err := f.svc.Review.GetDrawing(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.DrawingStatusSentToExpert, got.Status)
	assert.Nil(t, got.ExpertDecision)
	require.NotNil(t, got.LatestVersionID)
	assert.Equal(t, v2.ID, *got.LatestVersionID)
	require.NotNil(t, got.PreviousVersionID)

	f.review(t, d.ID, "expert_approve", "submit")
	assert.Equal(t, entity.DrawingStatusSentToClient, f.status(t, d.ID))

	res, err := f.svc.Review.ClientReview(ctx, ReviewInput{DrawingID: d.ID, ReviewerID: client, Decision: "approve", Comment: "looks good"})
	require.NoError(t, err)
	assert.Equal(t, entity.DrawingStatusApprovedByClient, res.Drawing.Status)
	assert.Equal(t, entity.SubmissionApproved, res.Submission.Status)
	require.NotNil(t, res.Task)
	assert.Equal(t, entity.TaskStatusCompleted, res.Task.To)
	require.NotNil(t, res.Task.Deliverable)
	assert.Equal(t, entity.DeliverableStatusCompleted, res.Task.Deliverable.To)

	deliverable, err := f.svc.Project.GetDeliverable(ctx, "dl1")
	require.NoError(t, err)
	assert.Equal(t, entity.DeliverableStatusCompleted, deliverable.Status)
	assert.NotNil(t, deliverable.CompletedAt)

	history, err := f.svc.Review.GetHistory(ctx, d.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, 1, history[0].VersionNumber)
	assert.Equal(t, 2, history[1].VersionNumber)
	assert.False(t, history[0].IsLatest)
	assert.True(t, history[1].IsLatest)

	// v1: designer issue + expert revision request; v2: designer note + client approval
	require.Len(t, history[0].Comments, 2)
	assert.Equal(t, entity.RoleDesigner, history[0].Comments[0].Role)
	assert.Equal(t, entity.RoleExpert, history[0].Comments[1].Role)
	require.Len(t, history[1].Comments, 2)
	assert.Equal(t, "grid fixed", history[1].Comments[0].Body)
	assert.Equal(t, entity.RoleClient, history[1].Comments[1].Role)

	events, err := f.svc.Review.repos.Outbox.ListByAggregate(ctx, d.ID)
	require.NoError(t, err)
	var types []string
	for _, e := range events {
		types = append(types, e.EventType)
	}
	assert.Equal(t, []string{
		EventDrawingCreated,
		EventDrawingExpertReviewed,
		EventDrawingRevisionUploaded,
		EventDrawingExpertReviewed,
		EventDrawingSubmittedToClient,
		EventDrawingClientReviewed,
	}, types)
}

func TestCreateDrawingValidation(t *testing.T) {
	svc := NewServices(nil, nil, nil, nil, zap.NewNop(), config.WorkflowConfig{})
	ctx := context.Background()

	_, err := svc.Review.CreateDrawing(ctx, CreateDrawingInput{ProjectID: "p1", Files: testutil.Files("a.pdf")})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "missing required fields: discipline, name, sent_by, sent_to", ve.Msg)

	_, err = svc.Review.CreateDrawing(ctx, CreateDrawingInput{
		ProjectID: "p1", Name: "n", Discipline: "d", SentBy: designer, SentTo: expert,
	})
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "at least one file is required", ve.Msg)

	// only objects written by the upload endpoint can be attached
	_, err = svc.Review.CreateDrawing(ctx, CreateDrawingInput{
		ProjectID: "p1", Name: "n", Discipline: "d", SentBy: designer, SentTo: expert,
		Files: []entity.FileRef{{Path: "rfis/other-project/spec.pdf", Name: "spec.pdf"}},
	})
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "files[0].path must reference an uploaded file", ve.Msg)

	_, err = svc.Review.UploadRevision(ctx, UploadRevisionInput{
		DrawingID: "x", UploadedBy: designer,
		Files: []entity.FileRef{{Path: "drawings/../rfis/x.pdf"}},
	})
	require.ErrorAs(t, err, &ve)

	_, err = svc.Review.ExpertReview(ctx, ReviewInput{DrawingID: "x", ReviewerID: expert, Decision: "maybe"})
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Msg, "maybe")

	_, err = svc.Review.ClientReview(ctx, ReviewInput{DrawingID: "x", ReviewerID: client, Decision: ""})
	require.ErrorAs(t, err, &ve)
}

func TestCreateDrawingRollsBackOnMissingTask(t *testing.T) {
	f := newFixture(t, config.WorkflowConfig{})
	testutil.SeedProject(t, f.db, "p1")

	_, err := f.svc.Review.CreateDrawing(context.Background(), CreateDrawingInput{
		ProjectID: "p1", Name: "n", Discipline: "civil", SentBy: designer, SentTo: expert,
		TaskID: "missing", Files: testutil.Files("a.pdf"),
	})
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "task", nf.Resource)

	var drawings, versions int64
	f.db.Model(&entity.Drawing{}).Count(&drawings)
	f.db.Model(&entity.DrawingVersion{}).Count(&versions)
	assert.Zero(t, drawings)
	assert.Zero(t, versions)

	_, err = f.svc.Review.CreateDrawing(context.Background(), CreateDrawingInput{
		ProjectID: "nope", Name: "n", Discipline: "civil", SentBy: designer, SentTo: expert, Files: testutil.Files("a.pdf"),
	})
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "project", nf.Resource)
}

func TestSubmitRequiresExpertApproval(t *testing.T) {
	f := newFixture(t, config.WorkflowConfig{})
	testutil.SeedProject(t, f.db, "p1")
	d := f.createDrawing(t, "p1", "")

	_, err := f.svc.Review.SubmitToClient(context.Background(), SubmitToClientInput{DrawingID: d.ID, SubmittedBy: expert, SubmittedTo: client})
	var se *InvalidStateError
	require.ErrorAs(t, err, &se)
	assert.Contains(t, se.Msg, "Approved by Expert")
	assert.Equal(t, entity.DrawingStatusSentToExpert, se.Current)

	subs, err := f.svc.Review.ListSubmissions(context.Background(), d.ID)
	require.NoError(t, err)
	assert.Empty(t, subs)
	assert.Equal(t, entity.DrawingStatusSentToExpert, f.status(t, d.ID))
}

func TestInvalidTransitionsLeaveStateUntouched(t *testing.T) {
	f := newFixture(t, config.WorkflowConfig{})
	ctx := context.Background()
	testutil.SeedProject(t, f.db, "p1")
	d := f.createDrawing(t, "p1", "")

	var se *InvalidStateError

	// no revision was requested
	_, err := f.svc.Review.UploadRevision(ctx, UploadRevisionInput{DrawingID: d.ID, UploadedBy: designer, Files: testutil.Files("x.pdf")})
	require.ErrorAs(t, err, &se)

	// nothing submitted to the client yet
	_, err = f.svc.Review.ClientReview(ctx, ReviewInput{DrawingID: d.ID, ReviewerID: client, Decision: "approve"})
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)

	f.review(t, d.ID, "expert_approve")
	_, err = f.svc.Review.ExpertReview(ctx, ReviewInput{DrawingID: d.ID, ReviewerID: expert, Decision: "approve"})
	require.ErrorAs(t, err, &se)

	history, err := f.svc.Review.GetHistory(ctx, d.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
	assert.Equal(t, entity.DrawingStatusApprovedByExpert, f.status(t, d.ID))
}

func TestClientRevisionLoop(t *testing.T) {
	f := newFixture(t, config.WorkflowConfig{})
	testutil.SeedProject(t, f.db, "p1")
	d := f.createDrawing(t, "p1", "")

	f.review(t, d.ID, "expert_approve", "submit", "client_revise")
	got, err := f.svc.Review.GetDrawing(context.Background(), d.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.DrawingStatusRevisionRequiredByClient, got.Status)
	assert.Equal(t, designer, got.SentTo)

	f.review(t, d.ID, "upload", "expert_approve", "submit", "client_approve")
	assert.Equal(t, entity.DrawingStatusApprovedByClient, f.status(t, d.ID))

	subs, err := f.svc.Review.ListSubmissions(context.Background(), d.ID)
	require.NoError(t, err)
	require.Len(t, subs, 2)
	for _, s := range subs {
		assert.NotEqual(t, entity.SubmissionPending, s.Status)
		assert.NotNil(t, s.ReviewedAt)
	}
}

func TestRejectedByClientReupload(t *testing.T) {
	t.Run("strict", func(t *testing.T) {
		f := newFixture(t, config.WorkflowConfig{})
		testutil.SeedProject(t, f.db, "p1")
		d := f.createDrawing(t, "p1", "")
		f.review(t, d.ID, "expert_approve", "submit", "client_reject")

		_, err := f.svc.Review.UploadRevision(context.Background(), UploadRevisionInput{DrawingID: d.ID, UploadedBy: designer, Files: testutil.Files("x.pdf")})
		var se *InvalidStateError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, entity.DrawingStatusRejectedByClient, f.status(t, d.ID))
	})

	t.Run("allowed", func(t *testing.T) {
		f := newFixture(t, config.WorkflowConfig{ReuploadAfterClientReject: true})
		testutil.SeedProject(t, f.db, "p1")
		d := f.createDrawing(t, "p1", "")
		f.review(t, d.ID, "expert_approve", "submit", "client_reject", "upload")
		assert.Equal(t, entity.DrawingStatusSentToExpert, f.status(t, d.ID))
	})
}

func TestApprovedByClientIsTerminal(t *testing.T) {
	f := newFixture(t, config.WorkflowConfig{})
	ctx := context.Background()
	testutil.SeedProject(t, f.db, "p1")
	d := f.createDrawing(t, "p1", "")
	f.review(t, d.ID, "expert_approve", "submit", "client_approve")

	var se *InvalidStateError
	_, err := f.svc.Review.ClientReview(ctx, ReviewInput{DrawingID: d.ID, ReviewerID: client, Decision: "reject"})
	require.ErrorAs(t, err, &se)
	_, err = f.svc.Review.UploadRevision(ctx, UploadRevisionInput{DrawingID: d.ID, UploadedBy: designer, Files: testutil.Files("x.pdf")})
	require.ErrorAs(t, err, &se)
	_, err = f.svc.Review.SubmitToClient(ctx, SubmitToClientInput{DrawingID: d.ID, SubmittedBy: expert, SubmittedTo: client})
	require.ErrorAs(t, err, &se)
}

func TestClientReviewBySubmission(t *testing.T) {
	f := newFixture(t, config.WorkflowConfig{})
	ctx := context.Background()
	testutil.SeedProject(t, f.db, "p1")
	d := f.createDrawing(t, "p1", "")
	f.review(t, d.ID, "expert_approve")

	sub, err := f.svc.Review.SubmitToClient(ctx, SubmitToClientInput{DrawingID: d.ID, SubmittedBy: expert, SubmittedTo: client})
	require.NoError(t, err)
	assert.Equal(t, entity.SubmissionPending, sub.Status)
	assert.Equal(t, *d.LatestVersionID, sub.VersionID)

	res, err := f.svc.Review.ClientReviewBySubmission(ctx, sub.ID, ReviewInput{ReviewerID: client, Decision: "revision_required"})
	require.NoError(t, err)
	assert.Equal(t, entity.SubmissionRevisionRequired, res.Submission.Status)

	_, err = f.svc.Review.ClientReviewBySubmission(ctx, sub.ID, ReviewInput{ReviewerID: client, Decision: "approve"})
	var se *InvalidStateError
	require.ErrorAs(t, err, &se)

	_, err = f.svc.Review.ClientReviewBySubmission(ctx, "missing", ReviewInput{ReviewerID: client, Decision: "approve"})
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestConcurrentRevisionUploadsKeepOneLatest(t *testing.T) {
	f := newFixture(t, config.WorkflowConfig{})
	ctx := context.Background()
	testutil.SeedProject(t, f.db, "p1")
	d := f.createDrawing(t, "p1", "")
	f.review(t, d.ID, "expert_revise")

	const n = 4
	var (
		wg   sync.WaitGroup
		errs = make([]error, n)
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Review.UploadRevision(ctx, UploadRevisionInput{DrawingID: d.ID, UploadedBy: designer, Files: testutil.Files("race.pdf")})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		var se *InvalidStateError
		assert.True(t, errors.As(err, &se), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, succeeded)

	var latest int64
	f.db.Model(&entity.DrawingVersion{}).Where("drawing_id = ? AND is_latest", d.ID).Count(&latest)
	assert.Equal(t, int64(1), latest)

	history, err := f.svc.Review.GetHistory(ctx, d.ID)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestMissingLinkedTaskIsSkipped(t *testing.T) {
	f := newFixture(t, config.WorkflowConfig{})
	testutil.SeedProject(t, f.db, "p1")
	testutil.SeedTask(t, f.db, "t1", "p1", nil, entity.TaskStatusPending)
	d := f.createDrawing(t, "p1", "t1")

	require.NoError(t, f.db.Where("id = ?", "t1").Delete(&entity.Task{}).Error)

	f.review(t, d.ID, "expert_approve", "submit")
	res, err := f.svc.Review.ClientReview(context.Background(), ReviewInput{DrawingID: d.ID, ReviewerID: client, Decision: "approve"})
	require.NoError(t, err)
	assert.Nil(t, res.Task)
	assert.Equal(t, entity.DrawingStatusApprovedByClient, res.Drawing.Status)
}

func TestHistoryOfUnknownDrawing(t *testing.T) {
	f := newFixture(t, config.WorkflowConfig{})
	_, err := f.svc.Review.GetHistory(context.Background(), "nope")
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "drawing nope not found", nf.Error())
}

func TestRecipientListings(t *testing.T) {
	f := newFixture(t, config.WorkflowConfig{})
	ctx := context.Background()
	testutil.SeedProject(t, f.db, "p1")
	a := f.createDrawing(t, "p1", "")
	b := f.createDrawing(t, "p1", "")
	f.review(t, b.ID, "expert_revise")

	received, err := f.svc.Review.ListDrawings(ctx, repository.DrawingFilter{SentTo: expert})
	require.NoError(t, err)
	require.Len(t, received, 1)
	assert.Equal(t, a.ID, received[0].ID)

	back, err := f.svc.Review.ListDrawings(ctx, repository.DrawingFilter{SentTo: designer})
	require.NoError(t, err)
	require.Len(t, back, 1)
	assert.Equal(t, b.ID, back[0].ID)
	require.NotNil(t, back[0].LatestVersion)
	assert.Equal(t, 1, back[0].LatestVersion.VersionNumber)
}

func TestOpenArtifact(t *testing.T) {
	f := newFixture(t, config.WorkflowConfig{})
	ctx := context.Background()
	testutil.SeedProject(t, f.db, "p1")

	files := testutil.Files("sheet.pdf")
	require.NoError(t, f.store.Put(ctx, files[0].Path, strings.NewReader("%PDF-1.4"), 8, "application/pdf"))

	d, err := f.svc.Review.CreateDrawing(ctx, CreateDrawingInput{
		ProjectID: "p1", Name: "n", Discipline: "civil", SentBy: designer, SentTo: expert, Files: files,
	})
	require.NoError(t, err)

	ref, rc, err := f.svc.Review.OpenArtifact(ctx, d.ID, *d.LatestVersionID, 0)
	require.NoError(t, err)
	defer rc.Close()
	body, _ := io.ReadAll(rc)
	assert.Equal(t, "%PDF-1.4", string(body))
	assert.Equal(t, "sheet.pdf", ref.Name)

	_, _, err = f.svc.Review.OpenArtifact(ctx, d.ID, *d.LatestVersionID, 3)
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
}
