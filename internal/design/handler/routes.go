package handler

import (
	"github.com/gigfactory/designhub/internal/design/entity"
	"github.com/gigfactory/designhub/internal/middleware"
	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts the API on a group that already runs JWTAuth.
func RegisterRoutes(api *gin.RouterGroup, h *Handlers) {
	authors := middleware.RequireRole(entity.RoleDesigner, entity.RoleExpert)
	experts := middleware.RequireRole(entity.RoleExpert)
	clients := middleware.RequireRole(entity.RoleClient)

	api.POST("/uploads", authors, h.Upload.Upload)
	api.GET("/events", h.SSE.Stream)

	projects := api.Group("/projects")
	{
		projects.POST("", h.Project.Create)
		projects.GET("", h.Project.List)
		projects.GET("/:id", h.Project.Get)
		projects.GET("/:id/drawings", h.Drawing.ListByProject)
		projects.GET("/:id/drawings/export", h.Drawing.Export)
		projects.POST("/:id/tasks", h.Project.CreateTask)
		projects.GET("/:id/tasks", h.Project.ListTasks)
		projects.POST("/:id/deliverables", h.Project.CreateDeliverable)
		projects.GET("/:id/deliverables", h.Project.ListDeliverables)
		projects.GET("/:id/rfis", h.RFI.ListByProject)
		projects.POST("/:id/team", h.Project.AddTeamMember)
		projects.GET("/:id/team", h.Project.ListTeam)
	}

	api.GET("/clients/:clientId/projects", h.Project.ListForClient)
	api.PUT("/tasks/:id/status", h.Project.UpdateTaskStatus)
	api.POST("/deliverables/:id/recompute", h.Project.RecomputeDeliverable)

	drawings := api.Group("/drawings")
	{
		drawings.POST("", authors, h.Drawing.Create)
		drawings.GET("/:id", h.Drawing.Get)
		drawings.POST("/:id/revisions", authors, h.Drawing.UploadRevision)
		drawings.POST("/:id/expert-review", experts, h.Drawing.ExpertReview)
		drawings.POST("/:id/submit", experts, h.Drawing.Submit)
		drawings.POST("/:id/client-review", clients, h.Drawing.ClientReview)
		drawings.GET("/:id/submissions", h.Drawing.ListSubmissions)
		drawings.GET("/:id/history", h.Drawing.History)
		drawings.GET("/:id/versions/:versionId/files/:index", h.Drawing.DownloadFile)
	}
	api.POST("/submissions/:id/review", clients, h.Drawing.ReviewSubmission)

	users := api.Group("/users/:userId")
	{
		users.GET("/drawings/received", h.Drawing.Received)
		users.GET("/drawings/sent", h.Drawing.Sent)
		users.GET("/rfis", h.RFI.ListForUser)
		users.GET("/tasks", h.Project.ListAssignedTasks)
		users.GET("/projects", h.Project.ListAssigned)
	}

	rfis := api.Group("/rfis")
	{
		rfis.POST("", h.RFI.Create)
		rfis.PUT("/:id/resolve", h.RFI.Resolve)
	}
}
