package http

import (
	"github.com/gin-gonic/gin"

	"semql-indexer/internal/bootstrap"
	"semql-indexer/internal/platform/rabbitmq"
	"semql-indexer/internal/repository"
	"semql-indexer/internal/transport/http/handler"
	"semql-indexer/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	healthHandler := handler.NewHealthHandler(app)
	router.GET("/healthz", healthHandler.Check)

	deploymentRepo := repository.NewDeploymentRepository(app.MySQL)
	publisher := rabbitmq.NewDeploymentPublisher(app.MQConn, app.Config.RabbitMQ.IndexQueue)
	indexingHandler := handler.NewIndexingHandler(publisher, deploymentRepo, app.StatusCache, app.Logger)

	v1 := router.Group("/api/v1")
	v1.Use(middleware.AuthJWT(app.Config.Auth.JWTSecret))
	v1.POST("/semantics-preparations", indexingHandler.PrepareSemantics)
	v1.GET("/semantics-preparations/:id/status", indexingHandler.GetStatus)
	v1.GET("/deployments", indexingHandler.ListDeployments)

	return router
}
