package bootstrap

import (
	"context"
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"carequery/internal/agent"
	"carequery/internal/archive"
	"carequery/internal/config"
	"carequery/internal/model"
	mysqlClient "carequery/internal/platform/mysql"
	rabbitmqClient "carequery/internal/platform/rabbitmq"
	redisClient "carequery/internal/platform/redis"
	"carequery/internal/repository"
	"carequery/internal/session"
	"carequery/internal/worker"
)

const sweepInterval = time.Minute

type App struct {
	Config    *config.Config
	MySQL     *gorm.DB
	Redis     *redis.Client
	MQConn    *amqp.Connection
	Archive   *archive.Archive
	Sessions  *session.Store
	Agent     *agent.Client
	LogWorker *worker.ExchangeLogWorker

	StartedAt time.Time
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}

	mysqlDB, err := mysqlClient.New(ctx, cfg.MySQLDSN())
	if err != nil {
		return nil, err
	}
	if err := mysqlDB.AutoMigrate(
		&model.RequestLog{},
		&model.ResponseLog{},
		&model.SessionRecord{},
	); err != nil {
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

	arch, err := archive.New(cfg.Storage.ArchiveDir)
	if err != nil {
		return nil, err
	}

	requestRepo := repository.NewRequestLogRepository(mysqlDB)
	responseRepo := repository.NewResponseLogRepository(mysqlDB)
	sessionRepo := repository.NewSessionRecordRepository(mysqlDB)
	logWorker := worker.NewExchangeLogWorker(
		mqConn,
		requestRepo,
		responseRepo,
		sessionRepo,
		arch,
		cfg.RabbitMQ.ExchangeLogQueue,
	)
	if err := logWorker.Start(ctx); err != nil {
		return nil, fmt.Errorf("start exchange log worker failed: %w", err)
	}

	sessions := session.NewStore(time.Duration(cfg.Session.IdleTTLMinutes) * time.Minute)
	sessions.StartSweeper(sweepInterval)

	// The agent is the one dependency the server can live without: without
	// it /chat answers 503 and /health flags the degradation.
	var agentClient *agent.Client
	if cfg.AgentConfigured() {
		agentClient = agent.NewClient(agent.Config{
			BaseURL: cfg.Agent.BaseURL,
			APIKey:  cfg.Agent.APIKey,
			Model:   cfg.Agent.Model,
			Timeout: time.Duration(cfg.Agent.TimeoutSeconds) * time.Second,
		})
	} else {
		log.Printf("agent base URL or API key not configured, starting in degraded mode")
	}

	return &App{
		Config:    cfg,
		MySQL:     mysqlDB,
		Redis:     redisCli,
		MQConn:    mqConn,
		Archive:   arch,
		Sessions:  sessions,
		Agent:     agentClient,
		LogWorker: logWorker,
		StartedAt: time.Now(),
	}, nil
}

func (a *App) Close() error {
	var closeErr error
	if a.Sessions != nil {
		a.Sessions.Close()
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.LogWorker != nil {
		a.LogWorker.Close()
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
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
	return closeErr
}
