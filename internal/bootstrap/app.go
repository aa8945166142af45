package bootstrap

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"semql-indexer/internal/ai"
	"semql-indexer/internal/app"
	"semql-indexer/internal/cache"
	"semql-indexer/internal/config"
	"semql-indexer/internal/model"
	"semql-indexer/internal/platform/logger"
	mysqlClient "semql-indexer/internal/platform/mysql"
	rabbitmqClient "semql-indexer/internal/platform/rabbitmq"
	redisClient "semql-indexer/internal/platform/redis"
	"semql-indexer/internal/repository"
	"semql-indexer/internal/store"
	"semql-indexer/internal/worker"
)

// App wires every collaborator explicitly; there are no package-level
// singletons, and the caller owns all lifecycles through Close.
type App struct {
	Config      *config.Config
	Logger      *logger.Logger
	MySQL       *gorm.DB
	Redis       *redis.Client
	MQConn      *amqp.Connection
	DDLStore    store.Store
	ViewStore   store.Store
	StatusCache *cache.StatusCache
	Indexing    *app.IndexingService
	IndexWorker *worker.IndexWorker

	StartedAt time.Time
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}

	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("build logger failed: %w", err)
	}

	mysqlDB, err := mysqlClient.New(ctx, cfg.MySQLDSN())
	if err != nil {
		return nil, err
	}
	if err := mysqlDB.AutoMigrate(&model.Deployment{}); err != nil {
		return nil, fmt.Errorf("auto migrate tables failed: %w", err)
	}

	redisCli, err := redisClient.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, err
	}

	mqConn, err := rabbitmqClient.New(ctx, cfg.RabbitMQ.URL)
	if err != nil {
		return nil, err
	}

	ddlStore, err := store.NewQdrant(ctx, log, store.QdrantConfig{
		URL:        cfg.Qdrant.URL,
		Collection: cfg.Qdrant.DDLCollection,
		VectorDim:  cfg.Qdrant.VectorDim,
	})
	if err != nil {
		return nil, err
	}
	viewStore, err := store.NewQdrant(ctx, log, store.QdrantConfig{
		URL:        cfg.Qdrant.URL,
		Collection: cfg.Qdrant.ViewCollection,
		VectorDim:  cfg.Qdrant.VectorDim,
	})
	if err != nil {
		return nil, err
	}

	embedder := ai.NewEmbedder(ai.EmbeddingConfig{
		BaseURL:   cfg.Embedder.BaseURL,
		APIKey:    cfg.Embedder.APIKey,
		Model:     cfg.Embedder.Model,
		BatchSize: cfg.Embedder.BatchSize,
	})
	indexing := app.NewIndexingService(embedder, ddlStore, viewStore, log)

	deploymentRepo := repository.NewDeploymentRepository(mysqlDB)
	statusCache := cache.NewStatusCache(redisCli, time.Duration(cfg.Redis.StatusTTLSeconds)*time.Second)
	indexWorker := worker.NewIndexWorker(mqConn, indexing, deploymentRepo, statusCache, cfg.RabbitMQ.IndexQueue, log)
	if err := indexWorker.Start(ctx); err != nil {
		return nil, fmt.Errorf("start index worker failed: %w", err)
	}

	return &App{
		Config:      cfg,
		Logger:      log,
		MySQL:       mysqlDB,
		Redis:       redisCli,
		MQConn:      mqConn,
		DDLStore:    ddlStore,
		ViewStore:   viewStore,
		StatusCache: statusCache,
		Indexing:    indexing,
		IndexWorker: indexWorker,
		StartedAt:   time.Now(),
	}, nil
}

func (a *App) Close() error {
	var closeErr error
	if a.IndexWorker != nil {
		a.IndexWorker.Close()
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MySQL != nil {
		sqlDB, err := a.MySQL.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				closeErr = err
			}
		}
	}
	if a.Logger != nil {
		a.Logger.Sync()
	}
	return closeErr
}
