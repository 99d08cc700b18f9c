package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/terminal-bench/ballotbox/internal/broadcast"
	"github.com/terminal-bench/ballotbox/internal/config"
	"github.com/terminal-bench/ballotbox/internal/election"
	"github.com/terminal-bench/ballotbox/internal/handlers"
	"github.com/terminal-bench/ballotbox/internal/ledger"
	"github.com/terminal-bench/ballotbox/internal/logging"
	"github.com/terminal-bench/ballotbox/internal/middleware"
	"github.com/terminal-bench/ballotbox/pkg/circuit"
	"github.com/terminal-bench/ballotbox/pkg/messaging"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := logging.New(cfg.Debug)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	store, err := openLedger(cfg, logger)
	if err != nil {
		logger.Fatal("failed to open ledger", zap.Error(err))
	}
	defer store.Close()

	var (
		sinks []broadcast.Sink
		cache handlers.SnapshotCache
		bus   *messaging.Client
	)

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal("invalid REDIS_URL", zap.Error(err))
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()

		redisSink := broadcast.NewRedisSink(rdb, broadcast.DefaultStandingsKey)
		sinks = append(sinks, redisSink)
		cache = redisSink
		logger.Info("standings cache enabled", zap.String("addr", opts.Addr))
	}

	if cfg.NATSURL != "" {
		bus, err = messaging.NewClient(messaging.Config{
			URL:           cfg.NATSURL,
			Name:          "ballotbox",
			MaxReconnects: -1,
		})
		if err != nil {
			logger.Fatal("failed to connect to NATS", zap.Error(err))
		}
		defer bus.Close()

		sinks = append(sinks, broadcast.NewBusSink(bus, broadcast.SubjectStandings))
		logger.Info("event bus enabled", zap.String("url", cfg.NATSURL))
	}

	hub := broadcast.NewHub(store, broadcast.Config{
		QueueSize: cfg.BroadcastQueue,
		Sinks:     sinks,
		Logger:    logger.Named("broadcast"),
		Breaker: circuit.Config{
			MaxFailures: 5,
			Timeout:     30 * time.Second,
			HalfOpenMax: 1,
			OnStateChange: func(name string, from, to circuit.State) {
				logger.Warn("sink breaker changed state",
					zap.String("sink", name),
					zap.Stringer("from", from),
					zap.Stringer("to", to))
			},
		},
	})
	defer hub.Close()

	opts := []election.Option{
		election.WithLogger(logger.Named("election")),
		election.WithMaxAttempts(cfg.NewsMaxAttempts),
		election.WithRand(election.NewRand(time.Now().UnixNano())),
	}
	if bus != nil {
		opts = append(opts, election.WithPublisher(bus))
	}
	svc := election.NewService(store, hub, opts...)

	// The cache starts empty; seed it so readers do not fall back to the ledger.
	hub.Refresh(context.Background())

	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS)
	stopCleanup := make(chan struct{})
	limiter.StartCleanup(10*time.Minute, stopCleanup)
	defer close(stopCleanup)

	h := handlers.NewElectionHandler(svc, store, cache, hub, cfg.WSWriteTimeout, logger.Named("http"))
	router := setupRouter(cfg, h, limiter, healthHandler(hub, store, bus))

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("listening", zap.String("addr", srv.Addr), zap.String("ledger", cfg.LedgerDriver))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}
}

func openLedger(cfg *config.Config, logger *zap.Logger) (ledger.Store, error) {
	if cfg.LedgerDriver == config.DriverMemory {
		logger.Warn("using the in-memory ledger; data is lost on exit")
		return ledger.NewMemory(), nil
	}

	pg, err := ledger.NewPostgres(cfg)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := pg.Migrate(ctx); err != nil {
		pg.Close()
		return nil, err
	}
	return pg, nil
}

// healthHandler reports observer count, sink breaker states and, when present, the
// database pool and NATS connection. Status is "degraded" while any sink breaker is
// not closed or NATS is disconnected.
func healthHandler(hub *broadcast.Hub, store ledger.Store, bus *messaging.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := "ok"
		sinks := hub.SinkStates()
		for _, state := range sinks {
			if state != circuit.StateClosed.String() {
				status = "degraded"
			}
		}

		body := gin.H{"observers": hub.Subscribers(), "sinks": sinks}
		if pg, ok := store.(*ledger.Postgres); ok {
			stats := pg.PoolStats()
			body["db"] = gin.H{
				"open":       stats.OpenConnections,
				"in_use":     stats.InUse,
				"idle":       stats.Idle,
				"wait_count": stats.WaitCount,
			}
		}
		if bus != nil {
			if !bus.IsConnected() {
				status = "degraded"
			}
			body["nats"] = gin.H{"connected": bus.IsConnected(), "reconnects": bus.Reconnects()}
		}
		body["status"] = status
		c.JSON(http.StatusOK, body)
	}
}

func setupRouter(cfg *config.Config, h *handlers.ElectionHandler, limiter *middleware.RateLimiter, health gin.HandlerFunc) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.Debug {
		router.Use(gin.Logger())
	}

	router.GET("/health", health)

	api := router.Group("/api/v1")
	{
		api.GET("/candidates", h.Candidates)
		api.GET("/candidates/history", h.StandingsHistory)
		api.GET("/ws/candidates", h.Subscribe)

		voter := api.Group("")
		voter.Use(middleware.Auth(cfg.JWTSecret))
		voter.GET("/news", h.NewsFeed)
		voter.POST("/votes", limiter.Middleware(), h.CastVote)
		voter.POST("/news", limiter.Middleware(), h.GenerateNews)

		api.POST("/simulation", middleware.AdminOnly(cfg.AdminToken), h.RunSimulation)
	}

	return router
}
