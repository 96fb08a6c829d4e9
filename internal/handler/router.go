package handler

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-adp-console/api/swagger"
	"github.com/noah-isme/sma-adp-console/internal/middleware"
	"github.com/noah-isme/sma-adp-console/internal/service"
	"github.com/noah-isme/sma-adp-console/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-adp-console/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-adp-console/pkg/middleware/requestid"
)

// APIPrefix is the versioned route group; export URLs are built under it.
const APIPrefix = "/api/v1"

// RouterConfig gathers the handlers and middleware inputs for the console API.
// Docs mounts the Swagger UI under /docs.
type RouterConfig struct {
	View           *ViewHandler
	Events         *EventHandler
	Downloads      *DownloadHandler
	Metrics        *MetricsHandler
	MetricsService *service.MetricsService
	AllowedOrigins []string
	Docs           bool
	Logger         *zap.Logger
}

// NewRouter builds the gin engine serving the console API.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(cfg.Logger))
	r.Use(corsmiddleware.New(cfg.AllowedOrigins))
	r.Use(middleware.Metrics(cfg.MetricsService))

	if cfg.Metrics != nil {
		r.GET("/health", cfg.Metrics.Health)
		r.GET("/metrics", cfg.Metrics.Prometheus)
	}

	if cfg.Docs {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(APIPrefix)
	if cfg.View != nil {
		api.GET("/view", cfg.View.Get)
	}
	if cfg.Events != nil {
		api.GET("/events", cfg.Events.List)
		api.POST("/events/:name", cfg.Events.Dispatch)
	}
	if cfg.Downloads != nil {
		api.GET("/downloads/:token", cfg.Downloads.Download)
	}
	return r
}
