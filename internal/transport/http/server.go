package http

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"carequery/internal/analytics"
	appsvc "carequery/internal/app"
	"carequery/internal/bootstrap"
	"carequery/internal/cache"
	rabbitmqClient "carequery/internal/platform/rabbitmq"
	"carequery/internal/ratelimit"
	"carequery/internal/repository"
	"carequery/internal/transport/http/handler"
	"carequery/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	// The dashboard is served from another origin in every deployment.
	router.Use(cors.Default())

	requestRepo := repository.NewRequestLogRepository(app.MySQL)
	responseRepo := repository.NewResponseLogRepository(app.MySQL)
	sessionRepo := repository.NewSessionRecordRepository(app.MySQL)
	publisher := rabbitmqClient.NewExchangeLogPublisher(app.MQConn, app.Config.RabbitMQ.ExchangeLogQueue)

	var executor appsvc.QueryExecutor
	if app.Agent != nil {
		executor = app.Agent
	}
	exchangeService := appsvc.NewExchangeService(
		app.Sessions,
		executor,
		publisher,
		time.Duration(app.Config.Agent.TimeoutSeconds)*time.Second,
		app.Config.Session.MaxContextTurns,
	)

	aggregator := analytics.NewAggregator(app.MySQL, requestRepo, responseRepo, sessionRepo, app.Archive)
	responseCache := cache.NewResponseCache(app.Redis, time.Duration(app.Config.Redis.CacheTTLMinutes)*time.Minute)
	limiter := ratelimit.NewLimiter(app.Redis, app.Config.RateLimit.RequestsPerMinute)

	healthHandler := handler.NewHealthHandler(
		app.Config.App.Name,
		app.Config.App.Env,
		app.Config.App.Version,
		app.MySQL,
		app.Redis,
		app.MQConn,
		app.Agent != nil,
		app.StartedAt,
	)
	chatHandler := handler.NewChatHandler(exchangeService)
	sessionHandler := handler.NewSessionHandler(exchangeService, sessionRepo)
	analyticsHandler := handler.NewAnalyticsHandler(aggregator)
	cacheHandler := handler.NewCacheHandler(responseCache)
	rateLimitHandler := handler.NewRateLimitHandler(limiter)

	router.GET("/", healthHandler.Root)
	router.GET("/health", healthHandler.Check)

	chatGroup := router.Group("/")
	if app.Config.RateLimit.Enabled {
		chatGroup.Use(middleware.RateLimit(limiter))
	}
	chatGroup.POST("/chat", chatHandler.Chat)

	router.POST("/reset_session", sessionHandler.Reset)
	router.POST("/end_session", sessionHandler.End)
	router.GET("/sessions", sessionHandler.List)
	router.GET("/sessions/:id", sessionHandler.Get)

	router.GET("/analytics", analyticsHandler.Overview)
	router.GET("/storage/stats", analyticsHandler.Storage)
	router.POST("/storage/cleanup", analyticsHandler.Cleanup)

	router.GET("/cache/:key", cacheHandler.Get)
	router.POST("/cache/:key", cacheHandler.Set)
	router.GET("/rate-limit/:ip", rateLimitHandler.Status)

	return router
}
