package handler

import (
	"github.com/gigfactory/designhub/internal/design/entity"
	"github.com/gigfactory/designhub/internal/design/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type RFIHandler struct {
	svc    *service.RFIService
	logger *zap.Logger
}

func NewRFIHandler(svc *service.RFIService, logger *zap.Logger) *RFIHandler {
	return &RFIHandler{svc: svc, logger: logger}
}

type CreateRFIRequest struct {
	ProjectID string           `json:"project_id" binding:"required"`
	Title     string           `json:"title" binding:"required"`
	Details   string           `json:"details"`
	Priority  string           `json:"priority"`
	SentTo    string           `json:"sent_to" binding:"required"`
	Documents []entity.FileRef `json:"documents" binding:"dive"`
}

// Create POST /rfis
func (h *RFIHandler) Create(c *gin.Context) {
	var req CreateRFIRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}
	rfi, err := h.svc.Create(c.Request.Context(), service.CreateRFIInput{
		ProjectID: req.ProjectID,
		Title:     req.Title,
		Details:   req.Details,
		Priority:  req.Priority,
		Documents: req.Documents,
		CreatedBy: GetUserID(c),
		SentTo:    req.SentTo,
	})
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}
	Created(c, rfi)
}

// ListByProject GET /projects/:id/rfis?status=
func (h *RFIHandler) ListByProject(c *gin.Context) {
	items, err := h.svc.ListByProject(c.Request.Context(), c.Param("id"), c.Query("status"))
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}
	Success(c, ListResponse{Items: items, Total: len(items)})
}

// ListForUser GET /users/:userId/rfis
func (h *RFIHandler) ListForUser(c *gin.Context) {
	items, err := h.svc.ListSentTo(c.Request.Context(), c.Param("userId"))
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}
	Success(c, ListResponse{Items: items, Total: len(items)})
}

type ResolveRFIRequest struct {
	Resolution string           `json:"resolution" binding:"required"`
	Documents  []entity.FileRef `json:"documents" binding:"dive"`
}

// Resolve PUT /rfis/:id/resolve
func (h *RFIHandler) Resolve(c *gin.Context) {
	var req ResolveRFIRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}
	rfi, err := h.svc.Resolve(c.Request.Context(), service.ResolveRFIInput{
		RFIID:      c.Param("id"),
		ResolvedBy: GetUserID(c),
		Resolution: req.Resolution,
		Documents:  req.Documents,
	})
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}
	Success(c, rfi)
}
