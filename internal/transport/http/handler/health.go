package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type HealthHandler struct {
	appName    string
	appEnv     string
	version    string
	db         *gorm.DB
	redis      *redis.Client
	mqConn     *amqp.Connection
	agentReady bool
	startedAt  time.Time
}

type dependencyStatus struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

func NewHealthHandler(
	appName, appEnv, version string,
	db *gorm.DB,
	redisCli *redis.Client,
	mqConn *amqp.Connection,
	agentReady bool,
	startedAt time.Time,
) *HealthHandler {
	return &HealthHandler{
		appName:    appName,
		appEnv:     appEnv,
		version:    version,
		db:         db,
		redis:      redisCli,
		mqConn:     mqConn,
		agentReady: agentReady,
		startedAt:  startedAt,
	}
}

// Root is the banner endpoint the client pings before opening the widget.
func (h *HealthHandler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message":   h.appName + " API is running",
		"version":   h.version,
		"status":    "healthy",
		"timestamp": time.Now(),
	})
}

// Check reports agent readiness and dependency health. A missing agent is
// degraded, not down: the endpoint always answers 200 so the client can
// show the state instead of a connection error.
func (h *HealthHandler) Check(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	dbStatus := h.checkMySQL(ctx)
	redisStatus := h.checkRedis(ctx)
	mqStatus := h.checkRabbitMQ()

	status := "healthy"
	if !h.agentReady || !dbStatus.OK {
		status = "degraded"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":             status,
		"timestamp":          time.Now(),
		"agent_ready":        h.agentReady,
		"database_connected": dbStatus.OK,
		"app":                h.appName,
		"env":                h.appEnv,
		"uptime_sec":         int(time.Since(h.startedAt).Seconds()),
		"dependencies": gin.H{
			"mysql":    dbStatus,
			"redis":    redisStatus,
			"rabbitmq": mqStatus,
		},
	})
}

func (h *HealthHandler) checkMySQL(ctx context.Context) dependencyStatus {
	if h.db == nil {
		return dependencyStatus{OK: false, Message: "not configured"}
	}
	sqlDB, err := h.db.DB()
	if err != nil {
		return dependencyStatus{OK: false, Message: err.Error()}
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return dependencyStatus{OK: false, Message: err.Error()}
	}
	return dependencyStatus{OK: true}
}

func (h *HealthHandler) checkRedis(ctx context.Context) dependencyStatus {
	if h.redis == nil {
		return dependencyStatus{OK: false, Message: "not configured"}
	}
	if err := h.redis.Ping(ctx).Err(); err != nil {
		return dependencyStatus{OK: false, Message: err.Error()}
	}
	return dependencyStatus{OK: true}
}

func (h *HealthHandler) checkRabbitMQ() dependencyStatus {
	if h.mqConn == nil || h.mqConn.IsClosed() {
		return dependencyStatus{OK: false, Message: "connection closed"}
	}
	return dependencyStatus{OK: true}
}
