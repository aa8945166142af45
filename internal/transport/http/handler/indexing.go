package handler

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"semql-indexer/internal/cache"
	"semql-indexer/internal/model"
	"semql-indexer/internal/platform/logger"
	"semql-indexer/internal/platform/rabbitmq"
	"semql-indexer/internal/repository"
	"semql-indexer/internal/transport/http/response"
)

type IndexingHandler struct {
	publisher *rabbitmq.DeploymentPublisher
	repo      *repository.DeploymentRepository
	status    *cache.StatusCache
	log       *logger.Logger
}

type PrepareSemanticsRequest struct {
	MDL json.RawMessage `json:"mdl" binding:"required"`
}

type PrepareSemanticsResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func NewIndexingHandler(
	publisher *rabbitmq.DeploymentPublisher,
	repo *repository.DeploymentRepository,
	status *cache.StatusCache,
	log *logger.Logger,
) *IndexingHandler {
	return &IndexingHandler{
		publisher: publisher,
		repo:      repo,
		status:    status,
		log:       log.With("handler", "indexing"),
	}
}

// PrepareSemantics accepts an MDL document and queues an indexing run for it.
// The run itself happens on the index worker; callers poll the status
// endpoint with the returned id.
func (h *IndexingHandler) PrepareSemantics(c *gin.Context) {
	var req PrepareSemanticsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	mdlHash := sha256.Sum256(req.MDL)
	deployment := &model.Deployment{
		ID:      uuid.NewString(),
		MDLHash: hex.EncodeToString(mdlHash[:]),
		Status:  model.DeploymentStatusIndexing,
	}
	if err := h.repo.Create(deployment); err != nil {
		h.log.Error("create deployment failed", "error", err)
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "create deployment failed")
		return
	}

	if err := h.status.Set(c.Request.Context(), cache.DeploymentStatus{
		ID:     deployment.ID,
		Status: model.DeploymentStatusIndexing,
	}); err != nil {
		h.log.Warn("set deployment status cache failed", "deployment_id", deployment.ID, "error", err)
	}

	job := model.DeploymentJob{ID: deployment.ID, MDL: string(req.MDL)}
	if err := h.publisher.Publish(c.Request.Context(), job); err != nil {
		h.log.Error("publish deployment job failed", "deployment_id", deployment.ID, "error", err)
		if repoErr := h.repo.MarkFailed(deployment.ID, "queue deployment job failed"); repoErr != nil {
			h.log.Error("record failed deployment failed", "error", repoErr)
		}
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "queue deployment failed")
		return
	}

	response.OK(c, PrepareSemanticsResponse{
		ID:     deployment.ID,
		Status: model.DeploymentStatusIndexing,
	})
}

// GetStatus reports deployment progress, preferring the cache and falling
// back to the deployment table when the cache entry has expired.
func (h *IndexingHandler) GetStatus(c *gin.Context) {
	deploymentID := c.Param("id")
	if deploymentID == "" {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid deployment id")
		return
	}

	status, found, err := h.status.Get(c.Request.Context(), deploymentID)
	if err != nil {
		h.log.Warn("read deployment status cache failed", "deployment_id", deploymentID, "error", err)
	}
	if found {
		response.OK(c, status)
		return
	}

	deployment, err := h.repo.GetByID(deploymentID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "get deployment failed")
		return
	}
	if deployment == nil {
		response.Error(c, http.StatusNotFound, response.CodeDeploymentNotFound, "deployment not found")
		return
	}
	response.OK(c, cache.DeploymentStatus{
		ID:            deployment.ID,
		Status:        deployment.Status,
		Error:         deployment.Error,
		DDLDocuments:  deployment.DDLDocuments,
		ViewDocuments: deployment.ViewDocuments,
	})
}

func (h *IndexingHandler) ListDeployments(c *gin.Context) {
	limit := 20
	if s := c.Query("limit"); s != "" {
		if parsed, err := strconv.Atoi(s); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	deployments, err := h.repo.ListRecent(limit)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list deployments failed")
		return
	}
	response.OK(c, deployments)
}
