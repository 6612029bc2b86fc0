package handler

import (
	"github.com/gigfactory/designhub/internal/design/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ProjectHandler serves projects, tasks and deliverables.
type ProjectHandler struct {
	svc    *service.ProjectService
	logger *zap.Logger
}

func NewProjectHandler(svc *service.ProjectService, logger *zap.Logger) *ProjectHandler {
	return &ProjectHandler{svc: svc, logger: logger}
}

type CreateProjectRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	ClientID    string `json:"client_id"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
}

// Create POST /projects
func (h *ProjectHandler) Create(c *gin.Context) {
	var req CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}
	start, err := parseDate(req.StartDate)
	if err != nil {
		BadRequest(c, "invalid start_date")
		return
	}
	end, err := parseDate(req.EndDate)
	if err != nil {
		BadRequest(c, "invalid end_date")
		return
	}
	p, err := h.svc.CreateProject(c.Request.Context(), service.CreateProjectInput{
		Name:        req.Name,
		Description: req.Description,
		ClientID:    req.ClientID,
		StartDate:   start,
		EndDate:     end,
		CreatedBy:   GetUserID(c),
	})
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}
	Created(c, p)
}

// Get GET /projects/:id
func (h *ProjectHandler) Get(c *gin.Context) {
	p, err := h.svc.GetProject(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}
	Success(c, p)
}

// List GET /projects, optionally ?client_id=
func (h *ProjectHandler) List(c *gin.Context) {
	h.respondProjects(c, c.Query("client_id"))
}

// ListForClient GET /clients/:clientId/projects
func (h *ProjectHandler) ListForClient(c *gin.Context) {
	h.respondProjects(c, c.Param("clientId"))
}

func (h *ProjectHandler) respondProjects(c *gin.Context, clientID string) {
	items, err := h.svc.ListProjects(c.Request.Context(), clientID)
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}
	Success(c, ListResponse{Items: items, Total: len(items)})
}

// ListAssigned GET /users/:userId/projects
func (h *ProjectHandler) ListAssigned(c *gin.Context) {
	items, err := h.svc.ListAssignedProjects(c.Request.Context(), c.Param("userId"))
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}
	Success(c, ListResponse{Items: items, Total: len(items)})
}

type AddTeamMemberRequest struct {
	UserID      string `json:"user_id" binding:"required"`
	Email       string `json:"email"`
	Designation string `json:"designation"`
	Status      string `json:"status"`
}

// AddTeamMember POST /projects/:id/team
func (h *ProjectHandler) AddTeamMember(c *gin.Context) {
	var req AddTeamMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}
	m, err := h.svc.AddTeamMember(c.Request.Context(), service.AddTeamMemberInput{
		ProjectID:   c.Param("id"),
		UserID:      req.UserID,
		Email:       req.Email,
		Designation: req.Designation,
		Status:      req.Status,
		AddedBy:     GetUserID(c),
	})
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}
	Created(c, m)
}

// ListTeam GET /projects/:id/team
func (h *ProjectHandler) ListTeam(c *gin.Context) {
	items, err := h.svc.ListTeam(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}
	Success(c, ListResponse{Items: items, Total: len(items)})
}

type CreateTaskRequest struct {
	DeliverableID string `json:"deliverable_id"`
	Name          string `json:"name" binding:"required"`
	Priority      string `json:"priority"`
	AssigneeID    string `json:"assignee_id"`
	DueDate       string `json:"due_date"`
}

// CreateTask POST /projects/:id/tasks
func (h *ProjectHandler) CreateTask(c *gin.Context) {
	var req CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}
	due, err := parseDate(req.DueDate)
	if err != nil {
		BadRequest(c, "invalid due_date")
		return
	}
	task, err := h.svc.CreateTask(c.Request.Context(), service.CreateTaskInput{
		ProjectID:     c.Param("id"),
		DeliverableID: req.DeliverableID,
		Name:          req.Name,
		Priority:      req.Priority,
		AssigneeID:    req.AssigneeID,
		DueDate:       due,
		CreatedBy:     GetUserID(c),
	})
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}
	Created(c, task)
}

// ListTasks GET /projects/:id/tasks
func (h *ProjectHandler) ListTasks(c *gin.Context) {
	tasks, err := h.svc.ListTasks(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}
	Success(c, ListResponse{Items: tasks, Total: len(tasks)})
}

// ListAssignedTasks GET /users/:userId/tasks, optionally ?status=
func (h *ProjectHandler) ListAssignedTasks(c *gin.Context) {
	tasks, err := h.svc.ListAssignedTasks(c.Request.Context(), c.Param("userId"), c.Query("status"))
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}
	Success(c, ListResponse{Items: tasks, Total: len(tasks)})
}

type UpdateTaskStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// UpdateTaskStatus PUT /tasks/:id/status
func (h *ProjectHandler) UpdateTaskStatus(c *gin.Context) {
	var req UpdateTaskStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}
	task, change, err := h.svc.UpdateTaskStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}
	Success(c, gin.H{"task": task, "change": change})
}

type CreateDeliverableRequest struct {
	Name    string `json:"name" binding:"required"`
	Number  string `json:"number"`
	DueDate string `json:"due_date"`
}

// CreateDeliverable POST /projects/:id/deliverables
func (h *ProjectHandler) CreateDeliverable(c *gin.Context) {
	var req CreateDeliverableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}
	due, err := parseDate(req.DueDate)
	if err != nil {
		BadRequest(c, "invalid due_date")
		return
	}
	d, err := h.svc.CreateDeliverable(c.Request.Context(), service.CreateDeliverableInput{
		ProjectID: c.Param("id"),
		Name:      req.Name,
		Number:    req.Number,
		DueDate:   due,
		CreatedBy: GetUserID(c),
	})
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}
	Created(c, d)
}

// ListDeliverables GET /projects/:id/deliverables
func (h *ProjectHandler) ListDeliverables(c *gin.Context) {
	items, err := h.svc.ListDeliverables(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}
	Success(c, ListResponse{Items: items, Total: len(items)})
}

// RecomputeDeliverable POST /deliverables/:id/recompute
func (h *ProjectHandler) RecomputeDeliverable(c *gin.Context) {
	d, err := h.svc.RecomputeDeliverableStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}
	Success(c, d)
}
