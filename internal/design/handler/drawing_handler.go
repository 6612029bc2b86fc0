package handler

import (
	"io"
	"mime"
	"strconv"

	"github.com/gigfactory/designhub/internal/design/entity"
	"github.com/gigfactory/designhub/internal/design/repository"
	"github.com/gigfactory/designhub/internal/design/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// DrawingHandler exposes the drawing review workflow.
type DrawingHandler struct {
	review *service.ReviewService
	export *service.ExportService
	logger *zap.Logger
}

func NewDrawingHandler(review *service.ReviewService, export *service.ExportService, logger *zap.Logger) *DrawingHandler {
	return &DrawingHandler{review: review, export: export, logger: logger}
}

type CreateDrawingRequest struct {
	ProjectID  string           `json:"project_id" binding:"required"`
	Name       string           `json:"name" binding:"required"`
	Discipline string           `json:"discipline" binding:"required"`
	SentBy     string           `json:"sent_by"`
	SentTo     string           `json:"sent_to" binding:"required"`
	TaskID     string           `json:"task_id"`
	Files      []entity.FileRef `json:"files" binding:"required,min=1,dive"`
	Comment    string           `json:"comment"`
}

// Create POST /drawings
func (h *DrawingHandler) Create(c *gin.Context) {
	var req CreateDrawingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}
	sentBy, ok := actor(c, req.SentBy)
	if !ok {
		return
	}
	d, err := h.review.CreateDrawing(c.Request.Context(), service.CreateDrawingInput{
		ProjectID:  req.ProjectID,
		Name:       req.Name,
		Discipline: req.Discipline,
		SentBy:     sentBy,
		SentTo:     req.SentTo,
		TaskID:     req.TaskID,
		Files:      req.Files,
		Comment:    req.Comment,
	})
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}
	Created(c, d)
}

// Get GET /drawings/:id
func (h *DrawingHandler) Get(c *gin.Context) {
	d, err := h.review.GetDrawing(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}
	Success(c, d)
}

type UploadRevisionRequest struct {
	UploadedBy string           `json:"uploaded_by"`
	Files      []entity.FileRef `json:"files" binding:"required,min=1,dive"`
	Comment    string           `json:"comment"`
}

// UploadRevision POST /drawings/:id/revisions
func (h *DrawingHandler) UploadRevision(c *gin.Context) {
	var req UploadRevisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}
	uploader, ok := actor(c, req.UploadedBy)
	if !ok {
		return
	}
	v, err := h.review.UploadRevision(c.Request.Context(), service.UploadRevisionInput{
		DrawingID:  c.Param("id"),
		UploadedBy: uploader,
		Files:      req.Files,
		Comment:    req.Comment,
	})
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}
	Created(c, v)
}

type ReviewRequest struct {
	ReviewerID string `json:"reviewer_id"`
	Decision   string `json:"decision" binding:"required"`
	Comment    string `json:"comment"`
}

// ExpertReview POST /drawings/:id/expert-review
func (h *DrawingHandler) ExpertReview(c *gin.Context) {
	var req ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}
	reviewer, ok := actor(c, req.ReviewerID)
	if !ok {
		return
	}
	d, err := h.review.ExpertReview(c.Request.Context(), service.ReviewInput{
		DrawingID:  c.Param("id"),
		ReviewerID: reviewer,
		Decision:   req.Decision,
		Comment:    req.Comment,
	})
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}
	Success(c, d)
}

type SubmitRequest struct {
	SubmittedBy string `json:"submitted_by"`
	SubmittedTo string `json:"submitted_to" binding:"required"`
	Comment     string `json:"comment"`
}

// Submit POST /drawings/:id/submit
func (h *DrawingHandler) Submit(c *gin.Context) {
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}
	submitter, ok := actor(c, req.SubmittedBy)
	if !ok {
		return
	}
	sub, err := h.review.SubmitToClient(c.Request.Context(), service.SubmitToClientInput{
		DrawingID:   c.Param("id"),
		SubmittedBy: submitter,
		SubmittedTo: req.SubmittedTo,
		Comment:     req.Comment,
	})
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}
	Created(c, sub)
}

// ClientReview POST /drawings/:id/client-review
func (h *DrawingHandler) ClientReview(c *gin.Context) {
	var req ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}
	reviewer, ok := actor(c, req.ReviewerID)
	if !ok {
		return
	}
	res, err := h.review.ClientReview(c.Request.Context(), service.ReviewInput{
		DrawingID:  c.Param("id"),
		ReviewerID: reviewer,
		Decision:   req.Decision,
		Comment:    req.Comment,
	})
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}
	Success(c, res)
}

// ReviewSubmission POST /submissions/:id/review
func (h *DrawingHandler) ReviewSubmission(c *gin.Context) {
	var req ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}
	reviewer, ok := actor(c, req.ReviewerID)
	if !ok {
		return
	}
	res, err := h.review.ClientReviewBySubmission(c.Request.Context(), c.Param("id"), service.ReviewInput{
		ReviewerID: reviewer,
		Decision:   req.Decision,
		Comment:    req.Comment,
	})
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}
	Success(c, res)
}

// ListSubmissions GET /drawings/:id/submissions
func (h *DrawingHandler) ListSubmissions(c *gin.Context) {
	items, err := h.review.ListSubmissions(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}
	Success(c, ListResponse{Items: items, Total: len(items)})
}

// History GET /drawings/:id/history
func (h *DrawingHandler) History(c *gin.Context) {
	versions, err := h.review.GetHistory(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}
	Success(c, ListResponse{Items: versions, Total: len(versions)})
}

// ListByProject GET /projects/:id/drawings?status=&discipline=
func (h *DrawingHandler) ListByProject(c *gin.Context) {
	h.list(c, repository.DrawingFilter{
		ProjectID:  c.Param("id"),
		Status:     c.Query("status"),
		Discipline: c.Query("discipline"),
	})
}

// Received GET /users/:userId/drawings/received
func (h *DrawingHandler) Received(c *gin.Context) {
	h.list(c, repository.DrawingFilter{SentTo: c.Param("userId"), Status: c.Query("status")})
}

// Sent GET /users/:userId/drawings/sent
func (h *DrawingHandler) Sent(c *gin.Context) {
	h.list(c, repository.DrawingFilter{SentBy: c.Param("userId"), Status: c.Query("status")})
}

func (h *DrawingHandler) list(c *gin.Context, f repository.DrawingFilter) {
	if f.Status != "" && !entity.DrawingStatus(f.Status).Valid() {
		BadRequest(c, "unknown status "+strconv.Quote(f.Status))
		return
	}
	items, err := h.review.ListDrawings(c.Request.Context(), f)
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}
	Success(c, ListResponse{Items: items, Total: len(items)})
}

// DownloadFile GET /drawings/:id/versions/:versionId/files/:index
func (h *DrawingHandler) DownloadFile(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		BadRequest(c, "index must be a number")
		return
	}
	ref, rc, err := h.review.OpenArtifact(c.Request.Context(), c.Param("id"), c.Param("versionId"), index)
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}
	defer rc.Close()

	contentType := ref.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Type", contentType)
	c.Header("Content-Disposition", attachment(ref.Name))
	c.Status(200)
	if _, err := io.Copy(c.Writer, rc); err != nil {
		h.logger.Warn("artifact stream interrupted", zap.String("path", ref.Path), zap.Error(err))
	}
}

// Export GET /projects/:id/drawings/export
func (h *DrawingHandler) Export(c *gin.Context) {
	f, filename, err := h.export.ExportProjectDrawings(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}
	defer f.Close()

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", attachment(filename))
	c.Header("Content-Transfer-Encoding", "binary")
	if err := f.Write(c.Writer); err != nil {
		h.logger.Error("write drawing register", zap.String("project_id", c.Param("id")), zap.Error(err))
	}
}

// attachment builds a Content-Disposition value with the file name quoted or
// RFC 2231 encoded as needed.
func attachment(filename string) string {
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": filename}); v != "" {
		return v
	}
	return "attachment"
}
