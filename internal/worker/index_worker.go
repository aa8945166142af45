package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"semql-indexer/internal/app"
	"semql-indexer/internal/cache"
	"semql-indexer/internal/model"
	"semql-indexer/internal/platform/logger"
	"semql-indexer/internal/repository"
)

// IndexWorker consumes deployment jobs and runs the indexing pipeline for
// each one, recording the outcome in the deployment table and status cache.
// Consuming with a single goroutine also serializes runs against the shared
// document stores.
type IndexWorker struct {
	conn      *amqp.Connection
	indexing  *app.IndexingService
	repo      *repository.DeploymentRepository
	status    *cache.StatusCache
	queueName string
	log       *logger.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewIndexWorker(
	conn *amqp.Connection,
	indexing *app.IndexingService,
	repo *repository.DeploymentRepository,
	status *cache.StatusCache,
	queueName string,
	log *logger.Logger,
) *IndexWorker {
	return &IndexWorker{
		conn:      conn,
		indexing:  indexing,
		repo:      repo,
		status:    status,
		queueName: queueName,
		log:       log.With("worker", "index"),
	}
}

func (w *IndexWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	ch, err := w.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open worker channel failed: %w", err)
	}

	_, err = ch.QueueDeclare(
		w.queueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("declare worker queue failed: %w", err)
	}

	// One unacked job at a time: a run owns both stores exclusively.
	if err := ch.Qos(1, 0, false); err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("set worker qos failed: %w", err)
	}

	deliveries, err := ch.Consume(
		w.queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()

		for {
			select {
			case <-workerCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}

				var job model.DeploymentJob
				if err := json.Unmarshal(d.Body, &job); err != nil {
					w.log.Error("decode deployment job failed", "error", err)
					_ = d.Nack(false, false)
					continue
				}

				w.handle(workerCtx, job)
				// A failed run is recorded, not redelivered: retrying the
				// same MDL would fail the same way, and the caller retries
				// by submitting a new deployment.
				_ = d.Ack(false)
			}
		}
	}()

	return nil
}

func (w *IndexWorker) handle(ctx context.Context, job model.DeploymentJob) {
	log := w.log.With("deployment_id", job.ID)

	result, err := w.indexing.Run(ctx, []byte(job.MDL))
	if err != nil {
		log.Error("indexing run failed", "error", err)
		if repoErr := w.repo.MarkFailed(job.ID, err.Error()); repoErr != nil {
			log.Error("record failed deployment failed", "error", repoErr)
		}
		w.setStatus(ctx, cache.DeploymentStatus{
			ID:     job.ID,
			Status: model.DeploymentStatusFailed,
			Error:  err.Error(),
		})
		return
	}

	if repoErr := w.repo.MarkFinished(job.ID, result.DDLDocuments, result.ViewDocuments); repoErr != nil {
		log.Error("record finished deployment failed", "error", repoErr)
	}
	w.setStatus(ctx, cache.DeploymentStatus{
		ID:            job.ID,
		Status:        model.DeploymentStatusFinished,
		DDLDocuments:  result.DDLDocuments,
		ViewDocuments: result.ViewDocuments,
	})
	log.Info("deployment indexed",
		"ddl_documents", result.DDLDocuments,
		"view_documents", result.ViewDocuments,
	)
}

func (w *IndexWorker) setStatus(ctx context.Context, status cache.DeploymentStatus) {
	if err := w.status.Set(ctx, status); err != nil {
		w.log.Error("update deployment status cache failed", "deployment_id", status.ID, "error", err)
	}
}

func (w *IndexWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
