package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/chetanraj-2002/real-coder-jam/internal/execclient"
	httpHandler "github.com/chetanraj-2002/real-coder-jam/internal/handler/http"
	wsHandler "github.com/chetanraj-2002/real-coder-jam/internal/handler/websocket"
	"github.com/chetanraj-2002/real-coder-jam/internal/hub"
	"github.com/chetanraj-2002/real-coder-jam/internal/infra/lockstore"
	"github.com/chetanraj-2002/real-coder-jam/internal/middleware"
	"github.com/chetanraj-2002/real-coder-jam/internal/tasks"
	"github.com/chetanraj-2002/real-coder-jam/internal/worker"
)

// Config is the process configuration, loaded from the environment.
type Config struct {
	ServerPort            string
	AppEnv                string
	LogLevel              string
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	KeyPrefix             string
	JWTSecret             string
	AllowedOrigins        []string
	AllowedOriginPatterns []string
	ExecAPIURL            string
	LockTTL               time.Duration
	LockSweepCron         string
}

// LoadConfig reads configuration from a .env file (if present) and the
// environment, applying defaults.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load() // environment-only operation is fine

	cfg := &Config{
		ServerPort:    os.Getenv("PORT"),
		AppEnv:        os.Getenv("APP_ENV"),
		LogLevel:      os.Getenv("LOG_LEVEL"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		KeyPrefix:     os.Getenv("REDIS_KEY_PREFIX"),
		JWTSecret:     os.Getenv("JWT_SECRET"),
		ExecAPIURL:    os.Getenv("EXEC_API_URL"),
		LockSweepCron: os.Getenv("LOCK_SWEEP_CRON"),
	}
	cfg.RedisDB, _ = strconv.Atoi(os.Getenv("REDIS_DB"))

	if cfg.ServerPort == "" {
		cfg.ServerPort = "3001"
	}
	if cfg.AppEnv == "" {
		cfg.AppEnv = "development"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.RedisAddr == "" {
		cfg.RedisAddr = "127.0.0.1:6379"
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "relay:"
	}
	if cfg.LockSweepCron == "" {
		cfg.LockSweepCron = "@every 10m"
	}

	cfg.AllowedOrigins = splitList(os.Getenv("ALLOWED_ORIGINS"))
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{
			"http://localhost:5173",
			"http://localhost:3000",
		}
	}
	cfg.AllowedOriginPatterns = splitList(os.Getenv("ALLOWED_ORIGIN_PATTERNS"))

	ttlMinutes, _ := strconv.Atoi(os.Getenv("LOCK_TTL_MINUTES"))
	if ttlMinutes <= 0 {
		ttlMinutes = 10
	}
	cfg.LockTTL = time.Duration(ttlMinutes) * time.Minute

	if _, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
		logrus.Warnf("Invalid LOG_LEVEL '%s', using default 'info'", cfg.LogLevel)
		cfg.LogLevel = "info"
	}
	return cfg, nil
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// App wires together every component of the relay process.
type App struct {
	Config      *Config
	Log         *logrus.Logger
	RedisClient *redis.Client
	Hub         *hub.Hub
	HTTPServer  *http.Server

	workerServer *worker.Server
	scheduler    *asynq.Scheduler
}

// NewApp creates and initializes all components.
func NewApp() (*App, error) {
	cfg, err := LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return nil, err
	}

	log := logrus.New()
	if cfg.AppEnv == "production" {
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, ForceColors: true})
	}
	logLevel, _ := logrus.ParseLevel(cfg.LogLevel)
	log.SetLevel(logLevel)
	log.SetOutput(os.Stdout)
	log.Info("Configuration loaded")

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		PoolSize: 20,
	})
	if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	log.Info("Redis connected")

	lockStore := lockstore.NewRedisLockStore(redisClient, cfg.KeyPrefix, cfg.LockTTL, log)

	h := hub.New(hub.Options{
		LockStore: lockStore,
		Logger:    log,
	})

	originPolicy, err := middleware.NewOriginPolicy(cfg.AllowedOrigins, cfg.AllowedOriginPatterns)
	if err != nil {
		return nil, fmt.Errorf("failed to build origin policy: %w", err)
	}

	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.CORS(originPolicy))
	engine.Use(middleware.Identity(cfg.JWTSecret))

	healthHandler := httpHandler.NewHealthHandler(h.Registry())
	executeHandler := httpHandler.NewExecuteHandler(execclient.NewClient(cfg.ExecAPIURL))
	upgradeHandler := wsHandler.NewHandler(h, originPolicy)

	engine.GET("/", healthHandler.Status)
	engine.POST("/execute", executeHandler.Run)
	engine.GET("/ws", upgradeHandler.HandleConnection)

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
	sweeper := worker.NewLockSweepHandler(lockStore, h)
	workerServer := worker.NewServer(redisOpt, sweeper, log)

	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{})
	sweepTask, err := tasks.NewLockSweepTask(int(cfg.LockTTL / time.Minute))
	if err != nil {
		return nil, fmt.Errorf("failed to build sweep task: %w", err)
	}
	if _, err := scheduler.Register(cfg.LockSweepCron, sweepTask); err != nil {
		return nil, fmt.Errorf("failed to register sweep schedule: %w", err)
	}

	return &App{
		Config:      cfg,
		Log:         log,
		RedisClient: redisClient,
		Hub:         h,
		HTTPServer: &http.Server{
			Addr:    ":" + cfg.ServerPort,
			Handler: engine,
		},
		workerServer: workerServer,
		scheduler:    scheduler,
	}, nil
}

// Start launches the router, reaper, worker, scheduler and HTTP server.
func (a *App) Start() {
	go a.Hub.Run()
	go a.Hub.RunReaper()
	go a.workerServer.Start()
	if err := a.scheduler.Start(); err != nil {
		a.Log.Fatalf("Failed to start scheduler: %v", err)
	}
	go func() {
		a.Log.Infof("Relay listening on port %s", a.Config.ServerPort)
		if err := a.HTTPServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.Log.Fatalf("HTTP server error: %v", err)
		}
	}()
}

// Shutdown stops accepting new connections, closes the listener, then
// stops the background components. There is no state to flush: the
// relay holds nothing durable.
func (a *App) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.HTTPServer.Shutdown(ctx); err != nil {
		a.Log.WithError(err).Warn("HTTP server shutdown error")
	}
	a.scheduler.Shutdown()
	a.workerServer.Shutdown()
	a.Hub.Shutdown()
	if err := a.RedisClient.Close(); err != nil {
		a.Log.WithError(err).Warn("Redis close error")
	}
	a.Log.Info("Shutdown complete")
}
