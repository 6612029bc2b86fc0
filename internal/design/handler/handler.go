package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gigfactory/designhub/internal/config"
	"github.com/gigfactory/designhub/internal/design/service"
	"github.com/gigfactory/designhub/internal/design/sse"
	"github.com/gigfactory/designhub/internal/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handlers groups the HTTP handlers.
type Handlers struct {
	Drawing *DrawingHandler
	Project *ProjectHandler
	RFI     *RFIHandler
	Upload  *UploadHandler
	SSE     *SSEHandler
}

func NewHandlers(svc *service.Services, hub *sse.Hub, upload config.UploadConfig, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		Drawing: NewDrawingHandler(svc.Review, svc.Export, logger),
		Project: NewProjectHandler(svc.Project, logger),
		RFI:     NewRFIHandler(svc.RFI, logger),
		Upload:  NewUploadHandler(svc.Artifact, upload.MaxFileCount, logger),
		SSE:     NewSSEHandler(hub),
	}
}

// Response is the envelope of every JSON response.
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ListResponse wraps collections.
type ListResponse struct {
	Items interface{} `json:"items"`
	Total int         `json:"total"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Code: 0, Message: "success", Data: data})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{Code: 0, Message: "success", Data: data})
}

// Error writes code with HTTP status code/100.
func Error(c *gin.Context, code int, message string) {
	statusCode := code / 100
	if statusCode < 100 || statusCode > 599 {
		statusCode = http.StatusInternalServerError
	}
	c.JSON(statusCode, Response{Code: code, Message: message})
}

func BadRequest(c *gin.Context, message string) {
	Error(c, 40000, message)
}

func NotFound(c *gin.Context, message string) {
	Error(c, 40400, message)
}

func Forbidden(c *gin.Context, message string) {
	Error(c, 40300, message)
}

func Conflict(c *gin.Context, message string) {
	Error(c, 40900, message)
}

func InternalError(c *gin.Context) {
	Error(c, 50000, "internal server error")
}

// RespondError maps service errors onto the envelope. Persistence details are
// logged, never returned.
func RespondError(c *gin.Context, logger *zap.Logger, err error) {
	var (
		ve *service.ValidationError
		se *service.InvalidStateError
		nf *service.NotFoundError
	)
	switch {
	case errors.As(err, &ve):
		BadRequest(c, ve.Msg)
	case errors.As(err, &se):
		Conflict(c, se.Msg)
	case errors.As(err, &nf):
		NotFound(c, nf.Error())
	default:
		logger.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.String("request_id", c.GetString("request_id")),
			zap.Error(err),
		)
		InternalError(c)
	}
}

// GetUserID returns the authenticated user id.
func GetUserID(c *gin.Context) string {
	userID, _ := c.Get("user_id")
	if id, ok := userID.(string); ok {
		return id
	}
	return ""
}

// actor resolves who performs the request. A body id naming another user is
// honoured only for admins; anyone else gets 403 and ok is false.
func actor(c *gin.Context, explicit string) (string, bool) {
	self := GetUserID(c)
	id := strings.TrimSpace(explicit)
	if id == "" || id == self {
		return self, true
	}
	roles, _ := c.Get("roles")
	if have, ok := roles.([]string); ok && middleware.HasAnyRole(have, middleware.AdminRole) {
		return id, true
	}
	Forbidden(c, "cannot act on behalf of another user")
	return "", false
}

// parseDate accepts YYYY-MM-DD or RFC 3339. Empty yields nil.
func parseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
