package service

import (
	"time"

	"github.com/gigfactory/designhub/internal/config"
	"github.com/gigfactory/designhub/internal/design/repository"
	"github.com/gigfactory/designhub/internal/design/sse"
	"github.com/gigfactory/designhub/internal/design/workflow"
	"github.com/gigfactory/designhub/internal/shared/storage"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Services groups the domain services.
type Services struct {
	Project    *ProjectService
	Review     *ReviewService
	RFI        *RFIService
	Export     *ExportService
	Artifact   *ArtifactService
	Reconciler *DeliverableReconciler
}

// NewServices wires every service. rdb, store and hub may be nil.
func NewServices(db *gorm.DB, rdb *redis.Client, store storage.Store, hub *sse.Hub, logger *zap.Logger, cfg config.WorkflowConfig) *Services {
	if logger == nil {
		logger = zap.NewNop()
	}
	if hub == nil {
		hub = sse.NewHub(logger)
	}

	repos := repository.NewRepositories(db)
	prop := &propagator{logger: logger.Named("propagation"), now: time.Now}
	machine := workflow.NewMachine(workflow.WithReuploadAfterClientReject(cfg.ReuploadAfterClientReject))
	cache := newHistoryCache(rdb, cfg.HistoryCacheTTL, logger)

	project := NewProjectService(db, repos, prop, hub, logger)
	review := NewReviewService(db, repos, machine, prop, cache, hub, store, logger)

	return &Services{
		Project:    project,
		Review:     review,
		RFI:        NewRFIService(db, repos, logger),
		Export:     NewExportService(repos),
		Artifact:   NewArtifactService(store),
		Reconciler: NewDeliverableReconciler(project, rdb, cfg.ReconcileInterval, logger),
	}
}
