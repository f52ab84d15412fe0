package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/listinglab/clover/config"
	"github.com/listinglab/clover/internal/handlers"
	actorrolerepo "github.com/listinglab/clover/internal/repositories/actorrole"
	detectionlogrepo "github.com/listinglab/clover/internal/repositories/detectionlog"
	duplicategrouprepo "github.com/listinglab/clover/internal/repositories/duplicategroup"
	falsepositiverepo "github.com/listinglab/clover/internal/repositories/falsepositive"
	imagehashrepo "github.com/listinglab/clover/internal/repositories/imagehash"
	listingrepo "github.com/listinglab/clover/internal/repositories/listing"
	"github.com/listinglab/clover/pkg/auth"
	"github.com/listinglab/clover/pkg/database"
	"github.com/listinglab/clover/pkg/detection"
	"github.com/listinglab/clover/pkg/embedding"
	"github.com/listinglab/clover/pkg/events"
	"github.com/listinglab/clover/pkg/health"
	"github.com/listinglab/clover/pkg/httpclient"
	"github.com/listinglab/clover/pkg/imagehash"
	"github.com/listinglab/clover/pkg/kafka"
	"github.com/listinglab/clover/pkg/lexical"
	"github.com/listinglab/clover/pkg/logging"
	"github.com/listinglab/clover/pkg/middleware"
	"github.com/listinglab/clover/pkg/redis"
	"github.com/listinglab/clover/pkg/startup"
	"github.com/listinglab/clover/pkg/tracing"
	"github.com/listinglab/clover/pkg/tracing/exporters"
)

func main() {
	// missing .env is fine in deployed environments
	_ = godotenv.Load()

	var cfg config.Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		log.Fatalf("failed to read configuration: %v", err)
	}

	logger, err := logging.NewLogger(cfg.LogLevel, cfg.PrettyLogs)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.WithError(err).Error("Service exited with error")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger ectologger.Logger) error {
	if cfg.TracingEnabled {
		shutdown, err := initTracing(ctx, cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize tracing: %w", err)
		}
		defer shutdown(context.Background())
	}

	var (
		db          database.DB
		sqlDB       *sqlx.DB
		redisClient *redis.Client
		producer    *kafka.Producer
		checker     *health.Checker
		server      *echo.Echo
	)

	coordinator := startup.New(logger, cfg.StartupMaxAttempts)

	coordinator.AddDependency(&dependency{
		name: "database",
		start: func(ctx context.Context) error {
			conn, err := database.Connect(ctx, database.ConnectConfig{
				Driver:          cfg.DatabaseDriver,
				Host:            cfg.DatabaseHost,
				Port:            cfg.DatabasePort,
				UserName:        cfg.DatabaseUserName,
				Password:        cfg.DatabasePassword,
				Name:            cfg.DatabaseName,
				SSLMode:         cfg.DatabaseSSLMode,
				MaxOpenConns:    cfg.DatabaseMaxOpenConns,
				MaxIdleConns:    cfg.DatabaseMaxIdleConns,
				ConnMaxLifetime: cfg.DatabaseConnMaxLifetime,
			}, logger)
			if err != nil {
				return err
			}

			migrations := database.NewMigrationService(logger, &database.MigrationConfig{
				MigrationFolderPath: cfg.DatabaseMigrationFolderPath,
				Version:             uint(cfg.DatabaseMigrationVersion),
				Force:               cfg.DatabaseMigrationForce,
				AutoRollback:        cfg.DatabaseMigrationAutoRollback,
			})
			if err := migrations.Migrate(cfg.DatabaseName, conn); err != nil {
				return err
			}

			sqlDB = conn
			db = database.NewDatabaseInstance(conn, logger)
			return nil
		},
		stop: func(context.Context) error { return sqlDB.Close() },
	})

	coordinator.AddDependency(&dependency{
		name: "redis",
		start: func(context.Context) error {
			client, err := redis.NewClient(redis.Config{
				Host:     cfg.RedisHost,
				Port:     cfg.RedisPort,
				Password: cfg.RedisPassword,
				DB:       cfg.RedisDB,
			}, logger)
			if err != nil {
				return err
			}
			redisClient = client
			return nil
		},
		stop: func(context.Context) error { return redisClient.Close() },
	})

	if cfg.KafkaEnabled {
		coordinator.AddDependency(&dependency{
			name: "kafka",
			start: func(context.Context) error {
				producer = kafka.NewProducer(kafka.ProducerConfig{
					Brokers:      cfg.KafkaBrokers,
					Topic:        cfg.KafkaOutputTopic,
					BatchSize:    cfg.KafkaBatchSize,
					BatchTimeout: time.Duration(cfg.KafkaBatchTimeout) * time.Millisecond,
					RequiredAcks: cfg.KafkaRequiredAcks,
					Compression:  cfg.KafkaCompression,
				}, logger)
				return nil
			},
			stop: func(context.Context) error { return producer.Close() },
		})
	}

	coordinator.AddDependency(&dependency{
		name:      "server",
		dependsOn: []string{"database", "redis"},
		start: func(context.Context) error {
			var err error
			server, checker, err = buildServer(cfg, logger, db, sqlDB, redisClient, producer)
			if err != nil {
				return err
			}
			go func() {
				addr := fmt.Sprintf(":%d", cfg.Port)
				if err := server.Start(addr); err != nil && err != http.ErrServerClosed {
					logger.WithError(err).Error("HTTP server stopped unexpectedly")
				}
			}()
			checker.SetReady(true)
			return nil
		},
		stop: func(ctx context.Context) error {
			checker.SetReady(false)
			return server.Shutdown(ctx)
		},
	})

	if err := coordinator.Start(ctx); err != nil {
		return err
	}

	logger.WithFields(map[string]any{
		"app":  cfg.AppName,
		"port": cfg.Port,
	}).Info("Service started")

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return coordinator.Stop(shutdownCtx)
}

// buildServer wires repositories, scorers, the detector and the HTTP surface.
func buildServer(
	cfg config.Config,
	logger ectologger.Logger,
	db database.DB,
	sqlDB *sqlx.DB,
	redisClient *redis.Client,
	producer *kafka.Producer,
) (*echo.Echo, *health.Checker, error) {
	listings := listingrepo.NewRepository(db, logger)
	imageHashes := imagehashrepo.NewRepository(db, logger)
	groups := duplicategrouprepo.NewRepository(db, logger)
	falsePositives := falsepositiverepo.NewRepository(db, logger)
	detectionLog := detectionlogrepo.NewRepository(db, logger)
	actorRoles := actorrolerepo.NewRepository(db, logger)

	var emitter events.Emitter = events.Nop{}
	if producer != nil {
		emitter = events.NewKafkaEmitter(producer, logger)
	}

	embedder := embedding.NewOpenAIEmbedder(cfg.EmbeddingAPIKey, cfg.EmbeddingModel, cfg.EmbeddingBaseURL, cfg.EmbeddingRequestTimeout)
	embeddings := embedding.NewService(embedder, listings, logger)

	fetcher := httpclient.NewClient(httpclient.Config{
		Timeout:         cfg.ImageFetchTimeout,
		MaxResponseSize: cfg.ImageMaxBytes,
	}, logger)
	images := imagehash.NewService(fetcher, imagehash.NewStdDecoder(), imageHashes, cfg.ImageHashCacheTTL, logger)

	detector := detection.NewDetector(detection.Deps{
		Listings:       listings,
		FalsePositives: falsePositives,
		Groups:         groups,
		DetectionLog:   detectionLog,
		Embeddings:     embeddings,
		Images:         images,
		Authorizer:     auth.NewRoleAuthorizer(actorRoles, logger),
		Locker:         detection.NewRedisLocker(redis.NewLocker(redisClient, "clover:")),
		Emitter:        emitter,
		Logger:         logger,
	}, detection.Options{
		Profile: detection.WeightProfile{
			LexicalWeight:      cfg.LexicalWeight,
			SemanticWeight:     cfg.SemanticWeight,
			VisualWeight:       cfg.VisualWeight,
			OverallThreshold:   cfg.OverallThreshold,
			DuplicateThreshold: cfg.DuplicateThreshold,
			PotentialThreshold: cfg.PotentialThreshold,
			CandidatePoolSize:  cfg.CandidatePoolSize,
		},
		FieldWeights: lexical.DefaultFieldWeights(),
		Concurrency:  cfg.ExternalCallLimit,
		LockTTL:      cfg.FullScanLockTTL,
	})

	e := echo.New()
	e.HideBanner = true
	e.Server.WriteTimeout = time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second
	e.Server.ReadTimeout = time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second
	e.Server.IdleTimeout = time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second
	e.Server.MaxHeaderBytes = cfg.MaxHeaderBytes

	e.HTTPErrorHandler = middleware.Error(logger)
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: cfg.AllowMethods,
	}))
	e.Use(otelecho.Middleware(cfg.AppName))
	e.Use(middleware.Context())
	e.Use(middleware.Logger(logger))

	checker := health.NewChecker(sqlDB, redisClient.Redis(), version)
	checker.RegisterRoutes(e)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api/v1")
	if cfg.AuthEnabled {
		authn, err := middleware.Authentication(logger, cfg.AuthIssuerURL, cfg.AuthClientID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize authentication middleware: %w", err)
		}
		api.Use(authn)
	}

	handlers.NewDetectionHandler(detector, detectionLog, logger).RegisterRoutes(api)
	handlers.NewGroupHandler(groups, falsePositives, detectionLog, emitter, logger).RegisterRoutes(api)

	return e, checker, nil
}

// version is set at build time
var version = "dev"

func initTracing(ctx context.Context, cfg config.Config) (func(context.Context) error, error) {
	exporter, err := exporters.NewOTLPExporter(ctx, exporters.OTLPConfig{
		Endpoint: cfg.TracingOTLPEndpoint,
		Protocol: cfg.TracingOTLPProtocol,
		Insecure: true,
		Timeout:  10 * time.Second,
	})
	if err != nil {
		return nil, err
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.AppName),
			semconv.ServiceVersion(version),
		)),
	)
	tracing.SetTracer(provider.Tracer(cfg.AppName))

	return provider.Shutdown, nil
}

// dependency adapts closures to the startup.Dependency interface.
type dependency struct {
	name      string
	dependsOn []string
	start     func(ctx context.Context) error
	stop      func(ctx context.Context) error
}

func (d *dependency) GetName() string                 { return d.name }
func (d *dependency) DependsOn() []string             { return d.dependsOn }
func (d *dependency) Start(ctx context.Context) error { return d.start(ctx) }
func (d *dependency) Stop(ctx context.Context) error {
	if d.stop == nil {
		return nil
	}
	return d.stop(ctx)
}

