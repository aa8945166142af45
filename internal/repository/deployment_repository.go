package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"semql-indexer/internal/model"
)

type DeploymentRepository struct {
	db *gorm.DB
}

func NewDeploymentRepository(db *gorm.DB) *DeploymentRepository {
	return &DeploymentRepository{db: db}
}

func (r *DeploymentRepository) Create(deployment *model.Deployment) error {
	if err := r.db.Create(deployment).Error; err != nil {
		return fmt.Errorf("create deployment failed: %w", err)
	}
	return nil
}

// GetByID returns nil, nil when no deployment with that id exists.
func (r *DeploymentRepository) GetByID(id string) (*model.Deployment, error) {
	var deployment model.Deployment
	err := r.db.Where("id = ?", id).First(&deployment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get deployment failed: %w", err)
	}
	return &deployment, nil
}

// MarkFinished records a successful run and its per-stream document counts.
func (r *DeploymentRepository) MarkFinished(id string, ddlDocuments, viewDocuments int) error {
	updates := map[string]interface{}{
		"status":         model.DeploymentStatusFinished,
		"error":          "",
		"ddl_documents":  ddlDocuments,
		"view_documents": viewDocuments,
	}
	if err := r.db.Model(&model.Deployment{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return fmt.Errorf("mark deployment finished failed: %w", err)
	}
	return nil
}

func (r *DeploymentRepository) MarkFailed(id, cause string) error {
	updates := map[string]interface{}{
		"status": model.DeploymentStatusFailed,
		"error":  cause,
	}
	if err := r.db.Model(&model.Deployment{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return fmt.Errorf("mark deployment failed failed: %w", err)
	}
	return nil
}

func (r *DeploymentRepository) ListRecent(limit int) ([]model.Deployment, error) {
	if limit <= 0 {
		limit = 20
	}
	var deployments []model.Deployment
	if err := r.db.Order("created_at DESC").Limit(limit).Find(&deployments).Error; err != nil {
		return nil, fmt.Errorf("list deployments failed: %w", err)
	}
	return deployments, nil
}
