package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/GriffinCanCode/qcflow/internal/api/middleware"
	"github.com/GriffinCanCode/qcflow/internal/filter"
	apihttp "github.com/GriffinCanCode/qcflow/internal/http"
	"github.com/GriffinCanCode/qcflow/internal/infrastructure/config"
	"github.com/GriffinCanCode/qcflow/internal/infrastructure/logging"
	"github.com/GriffinCanCode/qcflow/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/qcflow/internal/ingest"
	"github.com/GriffinCanCode/qcflow/internal/pipeline"
	"github.com/GriffinCanCode/qcflow/internal/qc"
	"github.com/GriffinCanCode/qcflow/internal/sink"
	"github.com/GriffinCanCode/qcflow/internal/ws"
)

const shutdownTimeout = 10 * time.Second

// Server wires the pipeline, its sinks and the status API.
type Server struct {
	config   *config.Config
	logger   *logging.Logger
	registry *prometheus.Registry
	metrics  *monitoring.Metrics

	ingestor *ingest.Ingestor
	runner   *pipeline.Runner
	store    *sink.Store
	hub      *ws.Hub
	sinks    sink.Sink

	router *gin.Engine
	http   *http.Server
	addr   chan net.Addr

	closeOnce sync.Once
}

// Option overrides a dependency built from configuration.
type Option func(*options)

type options struct {
	source ingest.Source
	logger *logging.Logger
}

// WithSource reads records from src instead of SOURCE_PATTERN.
func WithSource(src ingest.Source) Option {
	return func(o *options) { o.source = src }
}

// WithLogger replaces the logger built from LOG_LEVEL.
func WithLogger(logger *logging.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config, opts ...Option) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger
	if logger == nil {
		var err error
		logger, err = logging.New(logging.Config{Level: cfg.Logging.Level, Development: cfg.Logging.Development})
		if err != nil {
			return nil, err
		}
	}

	logger.Info("Initializing qcflow",
		zap.String("addr", cfg.Server.Host+":"+cfg.Server.Port),
		zap.Strings("checks", cfg.QC.Checks),
		zap.Int("workers", cfg.Pipeline.Workers),
	)

	// Metrics live on a private registry so that tests and embedded
	// servers never collide on the default one.
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := monitoring.NewMetrics(registry)

	ingestor, err := buildIngestor(cfg, o.source, logger, metrics)
	if err != nil {
		return nil, err
	}

	params := qc.DefaultParams()
	params.OutageThreshold = cfg.QC.OutageThreshold
	params.SpikeHighPass = cfg.QC.SpikeHighPass
	params.SpikeCorner = cfg.QC.SpikeCorner
	params.GapTolerance = cfg.QC.GapTolerance
	stage, err := qc.DefaultRegistry().BuildStage(cfg.QC.Checks, params, qc.WithCreator(cfg.Pipeline.Creator))
	if err != nil {
		return nil, fmt.Errorf("build QC stage: %w", err)
	}

	store := sink.NewStore()
	hub := ws.NewHub(ws.DefaultBuffer, logger.Component("ws"), metrics)
	sinks, err := buildSinks(cfg.Sinks, store, hub, logger, metrics)
	if err != nil {
		return nil, err
	}

	runner, err := pipeline.New(pipeline.Config{
		Workers:        cfg.Pipeline.Workers,
		RawCapacity:    cfg.Pipeline.RawCapacity,
		ResultCapacity: cfg.Pipeline.ResultCapacity,
		IncludeInvalid: cfg.Pipeline.IncludeInvalid,
	}, pipeline.Deps{
		Ingestor: ingestor,
		Filter:   buildFilter(cfg.Filter),
		Stage:    stage,
		Sink:     sinks,
		Logger:   logger.Component("pipeline"),
		Metrics:  metrics,
	})
	if err != nil {
		_ = sinks.Close()
		return nil, err
	}

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(logger.Component("http")))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	handlers := apihttp.NewHandlers(store, runner, ingestor, cfg.QC.Checks, metrics, registry)
	handlers.Register(router)
	router.GET("/stream", hub.HandleConnection)

	logger.Info("Server initialized", zap.String("run", runner.RunID().String()))

	return &Server{
		config:   cfg,
		logger:   logger,
		registry: registry,
		metrics:  metrics,
		ingestor: ingestor,
		runner:   runner,
		store:    store,
		hub:      hub,
		sinks:    sinks,
		router:   router,
		http: &http.Server{
			Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		addr: make(chan net.Addr, 1),
	}, nil
}

func buildIngestor(cfg *config.Config, src ingest.Source, logger *logging.Logger, metrics *monitoring.Metrics) (*ingest.Ingestor, error) {
	if src == nil {
		if cfg.Source.Pattern == "" {
			return nil, errors.New("SOURCE_PATTERN is required")
		}
		files, err := ingest.NewFileSource(cfg.Source.Pattern, logger.Component("source"))
		if err != nil {
			return nil, err
		}
		logger.Info("Source opened",
			zap.String("pattern", cfg.Source.Pattern),
			zap.Int("files", len(files.Files())))
		src = files
	}

	selector, err := ingest.NewSelector(ingest.SelectorConfig{
		Mask:  cfg.Source.Mask,
		Allow: cfg.Source.Allow,
		Begin: cfg.Source.Begin,
		End:   cfg.Source.End,
	})
	if err != nil {
		return nil, err
	}

	opts := []ingest.Option{
		ingest.WithSelector(selector),
		ingest.WithLogger(logger.Component("ingest")),
		ingest.WithMetrics(metrics),
	}
	if cfg.Source.Rate > 0 {
		opts = append(opts, ingest.WithRate(cfg.Source.Rate, cfg.Source.Burst))
	}
	return ingest.New(src, opts...), nil
}

// buildSinks returns the store, the results file and the live stream as
// required sinks. NATS and the webhook are optional: a failure there is
// logged and never stops the pipeline.
func buildSinks(cfg config.SinkConfig, store *sink.Store, hub *ws.Hub, logger *logging.Logger, metrics *monitoring.Metrics) (sink.Multi, error) {
	sinks := sink.Multi{
		sink.Observe("store", store, metrics),
		sink.Observe("stream", sink.NewBroadcast(hub), metrics),
	}

	if cfg.ResultsFile != "" {
		file, err := sink.NewFile(cfg.ResultsFile)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, sink.Observe("file", file, metrics))
		logger.Info("Writing results", zap.String("path", cfg.ResultsFile))
	}

	if cfg.NATSURL != "" {
		nc, err := sink.DialNATS(cfg.NATSURL, cfg.NATSSubject, logger.Component("nats"))
		if err != nil {
			logger.Warn("NATS sink disabled", zap.Error(err))
		} else {
			sinks = append(sinks, sink.BestEffort("nats", sink.Observe("nats", nc, metrics), logger.Logger))
			logger.Info("Publishing results to NATS",
				zap.String("url", cfg.NATSURL),
				zap.String("subject", cfg.NATSSubject+".<check>"))
		}
	}

	if cfg.WebhookURL != "" {
		hook := sink.NewWebhook(sink.DefaultWebhookConfig(cfg.WebhookURL), logger.Component("webhook"))
		sinks = append(sinks, sink.BestEffort("webhook", sink.Observe("webhook", hook, metrics), logger.Logger))
		logger.Info("Posting results to webhook", zap.String("url", cfg.WebhookURL))
	}
	return sinks, nil
}

func buildFilter(cfg config.FilterConfig) filter.Filter {
	switch cfg.Name {
	case "highpass":
		return filter.NewHighPass(cfg.Factor)
	case "decimate":
		return filter.NewDecimate(int(cfg.Factor), cfg.BlockSize)
	case "gain":
		return filter.NewGain(cfg.Factor)
	}
	return nil
}

// Handler returns the status API router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Store returns the latest committed results.
func (s *Server) Store() *sink.Store {
	return s.store
}

// Addr returns the listening address once the HTTP server is up.
func (s *Server) Addr() <-chan net.Addr {
	return s.addr
}

// Run runs the pipeline and the HTTP server until ctx is cancelled, the
// pipeline fails, or, with EXIT_ON_DONE, the pipeline drains. Resources
// are released before Run returns.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := s.runner.Run(gctx); err != nil {
			return fmt.Errorf("pipeline: %w", err)
		}
		if s.config.Server.ExitOnDone {
			s.logger.Info("Pipeline drained, exiting")
			cancel()
		} else {
			s.logger.Info("Pipeline drained, status API stays up")
		}
		return nil
	})

	g.Go(func() error {
		ln, err := net.Listen("tcp", s.http.Addr)
		if err != nil {
			return fmt.Errorf("listen on %s: %w", s.http.Addr, err)
		}
		s.addr <- ln.Addr()
		s.logger.Info("Starting HTTP server", zap.Stringer("addr", ln.Addr()))
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		s.hub.Close()
		shutdownCtx, done := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer done()
		return s.http.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	return errors.Join(err, s.Close())
}

// Close releases sinks and flushes the logger. It is safe to call more
// than once.
func (s *Server) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.logger.Info("Shutting down server...")
		// the runner already closed the sinks if Run completed; Close is
		// idempotent on every sink
		if cerr := s.sinks.Close(); cerr != nil {
			err = fmt.Errorf("close sinks: %w", cerr)
			s.logger.Error("Failed to close sinks", zap.Error(cerr))
		}
		s.logger.Flush()
	})
	return err
}
