package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"
)

// DeploymentStatus is the fast-path view of a deployment's progress, kept in
// redis so that status polling does not hit the database.
type DeploymentStatus struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	Error         string `json:"error,omitempty"`
	DDLDocuments  int    `json:"ddl_documents"`
	ViewDocuments int    `json:"view_documents"`
}

type StatusCache struct {
	client *redisv9.Client
	ttl    time.Duration
}

func NewStatusCache(client *redisv9.Client, ttl time.Duration) *StatusCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &StatusCache{client: client, ttl: ttl}
}

func (c *StatusCache) Set(ctx context.Context, status DeploymentStatus) error {
	payload, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("marshal deployment status failed: %w", err)
	}
	if err := c.client.Set(ctx, c.key(status.ID), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set deployment status failed: %w", err)
	}
	return nil
}

func (c *StatusCache) Get(ctx context.Context, deploymentID string) (*DeploymentStatus, bool, error) {
	raw, err := c.client.Get(ctx, c.key(deploymentID)).Result()
	if err == redisv9.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get deployment status failed: %w", err)
	}
	var status DeploymentStatus
	if err := json.Unmarshal([]byte(raw), &status); err != nil {
		return nil, false, fmt.Errorf("unmarshal deployment status failed: %w", err)
	}
	return &status, true, nil
}

func (c *StatusCache) key(deploymentID string) string {
	return fmt.Sprintf("semql:deployment:%s", deploymentID)
}
