package handler

import (
	"strconv"

	"github.com/gigfactory/designhub/internal/design/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const defaultMaxUploadFiles = 10

// UploadHandler stores artifacts before they are attached to a drawing.
type UploadHandler struct {
	svc      *service.ArtifactService
	maxFiles int
	logger   *zap.Logger
}

func NewUploadHandler(svc *service.ArtifactService, maxFiles int, logger *zap.Logger) *UploadHandler {
	if maxFiles <= 0 {
		maxFiles = defaultMaxUploadFiles
	}
	return &UploadHandler{svc: svc, maxFiles: maxFiles, logger: logger}
}

// Upload POST /uploads
func (h *UploadHandler) Upload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		BadRequest(c, "cannot parse upload: "+err.Error())
		return
	}

	files := form.File["files"]
	if len(files) == 0 {
		files = form.File["file"]
	}
	if len(files) == 0 {
		BadRequest(c, "no files uploaded")
		return
	}
	if len(files) > h.maxFiles {
		BadRequest(c, "at most "+strconv.Itoa(h.maxFiles)+" files per upload")
		return
	}

	refs, err := h.svc.Save(c.Request.Context(), files)
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}
	Created(c, ListResponse{Items: refs, Total: len(refs)})
}
