package main

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	"github.com/ahmedbally/astudio-task/internal/handlers"
	defcache "github.com/ahmedbally/astudio-task/internal/infrastructure/cache"
	"github.com/ahmedbally/astudio-task/internal/infrastructure/config"
	"github.com/ahmedbally/astudio-task/internal/infrastructure/database"
	"github.com/ahmedbally/astudio-task/internal/infrastructure/logger"
	"github.com/ahmedbally/astudio-task/internal/infrastructure/metrics"
	"github.com/ahmedbally/astudio-task/internal/repositories"
	"github.com/ahmedbally/astudio-task/internal/repositories/dynamodb"
	"github.com/ahmedbally/astudio-task/internal/repositories/sqlstore"
	"github.com/ahmedbally/astudio-task/internal/services"
	"github.com/ahmedbally/astudio-task/internal/services/eav"
	"github.com/ahmedbally/astudio-task/pkg/cache"
	"github.com/ahmedbally/astudio-task/pkg/cache/memorycache"
)

const (
	defaultEnv = "dev"

	shutdownTimeout = 30 * time.Second
	metricsInterval = 10 * time.Second
)

func main() {
	// Get environment from ENV variable or use default
	env := os.Getenv("ENV")
	if env == "" {
		env = defaultEnv
	}

	if err := config.InitConfig(env); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize config: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Initialize(cfg.Log.JSON, cfg.Log.Level); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg); err != nil {
		logger.Logger.Fatalw("server failed", logger.FieldError, err)
	}
}

func run(cfg *config.Config) error {
	log := logger.ComponentLogger("server")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to database and apply pending migrations
	conn, err := database.Open(&cfg.Database)
	if err != nil {
		return errors.Wrap(err, "failed to connect to database")
	}
	defer conn.Close()

	if err := conn.RunMigrations(); err != nil {
		return err
	}
	log.Infow("database ready", logger.FieldDriver, conn.Driver())

	dialect, err := sqlstore.ParseDialect(conn.Driver())
	if err != nil {
		return err
	}
	db := conn.SQL()

	// Initialize repositories
	definitionRepo := sqlstore.NewDefinitionRepository(db, dialect)
	projectRepo := sqlstore.NewProjectRepository(db, dialect)
	valueRepo, err := newValueRepository(ctx, cfg, db, dialect)
	if err != nil {
		return err
	}

	// Attribute registry, cached unless disabled
	collector := metrics.NewCollector()
	var registryCache cache.Cache[*eav.DefinitionSet]
	if cfg.Cache.Enabled {
		mc, err := memorycache.New(&memorycache.Config[*eav.DefinitionSet]{
			MaxSizeBytes:  cfg.Cache.MaxMemoryBytes,
			DefaultTTL:    eav.DefaultRegistryTTL,
			EnableMetrics: cfg.Cache.Metrics,
			SizeOf:        (*eav.DefinitionSet).SizeBytes,
		})
		if err != nil {
			return errors.Wrap(err, "failed to create registry cache")
		}
		defer mc.Close()
		collector.SetCache(mc)
		registryCache = mc
	}

	opts := []eav.RegistryOption{eav.WithLoadObserver(collector.RecordRegistryLoad)}
	if ttl := cfg.Cache.TTL(); ttl > 0 {
		opts = append(opts, eav.WithTTL(ttl))
	}
	registry := eav.NewRegistry(definitionRepo, registryCache, opts...)

	// Cross-process invalidation needs PostgreSQL LISTEN/NOTIFY
	var notify services.ChangeNotifier
	if conn.Driver() == config.DriverPostgres {
		listener := defcache.NewDefinitionListener(cfg.Database.ConnectionString(), registry)
		if err := listener.Start(ctx); err != nil {
			return errors.Wrap(err, "failed to start definition listener")
		}
		defer listener.Stop()

		notify = func(ctx context.Context, attribute string) error {
			return defcache.NotifyDefinitionsChanged(ctx, db, attribute)
		}
	}

	// Initialize services
	definitionService := services.NewDefinitionService(definitionRepo, registry, notify)
	projectService := services.NewProjectService(projectRepo, eav.Deps{Registry: registry, Values: valueRepo})

	// Create gRPC server
	exporter := metrics.NewPrometheusExporter(collector, nil)
	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(
		handlers.LoggingInterceptor(logger.ComponentLogger("grpc")),
		metrics.UnaryServerInterceptor(collector, exporter),
	))
	handlers.RegisterAttributeServiceServer(grpcServer, handlers.NewAttributeHandler(definitionService, projectService))

	// Register reflection service (for grpcurl, etc.)
	reflection.Register(grpcServer)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrap(err, "failed to listen")
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.MetricsPort),
		Handler:           metricsMux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErrors := make(chan error, 2)
	go func() {
		log.Infow("gRPC server listening", logger.FieldAddress, addr)
		if err := grpcServer.Serve(lis); err != nil {
			serverErrors <- errors.Wrap(err, "gRPC server error")
		}
	}()
	go func() {
		log.Infow("metrics server listening", logger.FieldAddress, metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- errors.Wrap(err, "metrics server error")
		}
	}()
	go updateGauges(ctx, exporter)

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return err
	case sig := <-sigChan:
		log.Infow("initiating graceful shutdown", "signal", sig.String())
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	stopped := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
		log.Infow("gRPC server stopped gracefully")
	case <-shutdownCtx.Done():
		log.Warnw("shutdown timeout exceeded, forcing stop")
		grpcServer.Stop()
	}

	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Warnw("metrics server shutdown failed", logger.FieldError, err)
	}

	log.Infow("shutdown complete")
	return nil
}

// newValueRepository returns the SQL value store, mirrored to DynamoDB when
// enabled. Filtering always reads the SQL table.
func newValueRepository(ctx context.Context, cfg *config.Config, db *sql.DB, dialect sqlstore.Dialect) (repositories.AttributeValueRepository, error) {
	values := sqlstore.NewAttributeValueRepository(db, dialect)
	if !cfg.DynamoDB.Enabled {
		return values, nil
	}

	client, err := dynamodb.NewClient(ctx, &cfg.DynamoDB)
	if err != nil {
		return nil, err
	}
	logger.ComponentLogger("server").Infow("mirroring attribute values to DynamoDB", "table", cfg.DynamoDB.Table)
	return repositories.NewMirroredValueRepository(values, dynamodb.NewAttributeValueRepository(client, cfg.DynamoDB.Table)), nil
}

func updateGauges(ctx context.Context, exporter *metrics.PrometheusExporter) {
	ticker := time.NewTicker(metricsInterval)
	defer ticker.Stop()
	for {
		exporter.Update()
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
