package model

import "time"

const (
	DeploymentStatusIndexing = "indexing"
	DeploymentStatusFinished = "finished"
	DeploymentStatusFailed   = "failed"
)

// Deployment records one indexing run of a semantic model.
type Deployment struct {
	ID            string    `gorm:"primaryKey;size:36" json:"id"`
	MDLHash       string    `gorm:"size:64;index" json:"mdl_hash"`
	Status        string    `gorm:"size:16;not null;index" json:"status"`
	Error         string    `gorm:"type:text" json:"error,omitempty"`
	DDLDocuments  int       `json:"ddl_documents"`
	ViewDocuments int       `json:"view_documents"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// DeploymentJob is the queue payload that asks the index worker to run a
// deployment.
type DeploymentJob struct {
	ID  string `json:"id"`
	MDL string `json:"mdl"`
}
