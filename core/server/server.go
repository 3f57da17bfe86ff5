package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/richd0tcom/sensorgate/core/consumer"
	"github.com/richd0tcom/sensorgate/internal/broker"
	"github.com/richd0tcom/sensorgate/internal/cache"
	"github.com/richd0tcom/sensorgate/internal/geo"
	"github.com/richd0tcom/sensorgate/internal/worker"
)

type Server struct {
	config     *ServerConfig
	dispatcher *worker.Dispatcher
	catalog    *geo.Catalog
	metrics    *Metrics
	router     *gin.Engine
	logger     *slog.Logger
}

func NewServer(options ...ConfigOption) (*Server, error) {
	config := &ServerConfig{
		Logger:         slog.Default(),
		Port:           "8080",
		IngestTimeout:  30 * time.Second,
		CatalogRefresh: time.Minute,
		connectTimeout: 10 * time.Second,
	}

	for _, option := range options {
		if err := option(config); err != nil {
			return nil, closeOnError(config, err)
		}
	}

	if config.MessageQueue == nil {
		return nil, closeOnError(config, errors.New("server: no message queue configured"))
	}
	if config.SensorStore == nil {
		return nil, closeOnError(config, errors.New("server: no sensor store configured"))
	}

	if config.RedisAddr != "" {
		ctx, cancel := context.WithTimeout(context.Background(), config.connectTimeout)
		rdb, err := cache.NewRedisClient(ctx, config.RedisAddr)
		cancel()
		if err != nil {
			return nil, closeOnError(config, fmt.Errorf("sensor cache: %w", err))
		}
		config.SensorStore = cache.NewSensorCache(config.SensorStore, rdb, config.SensorCacheTTL, config.Logger)
	}

	logger := config.Logger.With("component", "server")
	server := &Server{
		config:     config,
		dispatcher: worker.NewDispatcher(config.MessageQueue, config.Logger),
		catalog:    geo.NewCatalog(config.SensorStore, config.Logger),
		metrics:    NewMetrics(),
		router:     newRouter(logger),
		logger:     logger,
	}

	server.setupRoutes()
	return server, nil
}

func newRouter(logger *slog.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))
	return router
}

// requestLogger logs each request at debug level, and at warn for 5xx.
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		level := slog.LevelDebug
		if c.Writer.Status() >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		logger.Log(c.Request.Context(), level, "request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{})))

	s.router.POST("/ingest", s.handleIngest)
	s.router.GET("/sensors", s.handleListSensors)
	s.router.GET("/sensors/nearby", s.handleNearbySensors)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// startBackground runs the catalog refresh and, for the in-process queue,
// a consumer that drains it. Both stop when ctx is done.
func (s *Server) startBackground(ctx context.Context) {
	go s.catalog.StartAutoRefresh(ctx, s.config.CatalogRefresh)

	if queue, ok := s.config.MessageQueue.(*broker.ChannelQueue); ok {
		local := consumer.NewLogConsumer("local", s.config.Logger)
		go func() {
			if err := queue.Consume(ctx, local.Process); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Error("local consumer stopped", "error", err)
			}
		}()
	}
}

func (s *Server) Start(ctx context.Context) error {
	s.startBackground(ctx)

	server := &http.Server{
		Addr:              ":" + s.config.Port,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("http shutdown", "error", err)
		}
	}()

	s.logger.Info("server starting", "port", s.config.Port)
	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

func (s *Server) Close() error {
	return closeResources(s.config)
}

func closeResources(config *ServerConfig) error {
	var errs []error
	if config.MessageQueue != nil {
		if err := config.MessageQueue.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close message queue: %w", err))
		}
	}
	if config.SensorStore != nil {
		if err := config.SensorStore.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close sensor store: %w", err))
		}
	}
	return errors.Join(errs...)
}

// closeOnError releases whatever the options opened before err.
func closeOnError(config *ServerConfig, err error) error {
	if cerr := closeResources(config); cerr != nil {
		config.Logger.Warn("cleanup after failed setup", "error", cerr)
	}
	return err
}
