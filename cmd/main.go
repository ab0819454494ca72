package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/davidbz/runrelay/internal/backend/echo"
	"github.com/davidbz/runrelay/internal/backend/runpod"
	"github.com/davidbz/runrelay/internal/catalog"
	"github.com/davidbz/runrelay/internal/config"
	"github.com/davidbz/runrelay/internal/domain"
	"github.com/davidbz/runrelay/internal/http"
	"github.com/davidbz/runrelay/internal/http/middleware"
	ledgerredis "github.com/davidbz/runrelay/internal/ledger/redis"
	"github.com/davidbz/runrelay/internal/observability"
	"github.com/davidbz/runrelay/internal/prompt"
)

const shutdownTimeout = 15 * time.Second

// ErrUnknownBackend indicates a catalog entry names a backend this binary lacks.
var ErrUnknownBackend = errors.New("unknown backend")

func main() {
	container := buildContainer()

	err := container.Invoke(run)
	if err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}
}

func run(server *http.Server, logger *zap.Logger, redisClient *goredis.Client) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Warn("failed to close redis client", zap.Error(err))
		}
	}

	_ = logger.Sync()
	return nil
}

func buildContainer() *dig.Container {
	container := dig.New()

	// Configuration
	if err := container.Provide(config.Load); err != nil {
		log.Fatalf("Failed to provide config: %v", err)
	}
	if err := container.Provide(config.ParseDependenciesConfig); err != nil {
		log.Fatalf("Failed to provide config dependencies: %v", err)
	}

	// Observability
	if err := container.Provide(observability.InitLogger); err != nil {
		log.Fatalf("Failed to provide logger: %v", err)
	}
	if err := container.Provide(observability.NewEventBus, dig.As(new(domain.EventPublisher))); err != nil {
		log.Fatalf("Failed to provide event bus: %v", err)
	}

	// Prompt formatting
	if err := container.Provide(prompt.NewFormatter); err != nil {
		log.Fatalf("Failed to provide formatter: %v", err)
	}
	if err := container.Provide(func(f *prompt.Formatter) domain.PromptFormatter {
		return f
	}); err != nil {
		log.Fatalf("Failed to provide prompt formatter: %v", err)
	}

	// Job backends
	if err := container.Provide(echo.NewClient); err != nil {
		log.Fatalf("Failed to provide echo backend: %v", err)
	}
	if err := container.Provide(newClientFactory); err != nil {
		log.Fatalf("Failed to provide client factory: %v", err)
	}

	// Model catalog
	if err := container.Provide(func(cfg *catalog.Config) (*catalog.Catalog, error) {
		return catalog.Load(cfg.File)
	}); err != nil {
		log.Fatalf("Failed to provide catalog: %v", err)
	}
	if err := container.Provide(func(
		_ *zap.Logger,
		cat *catalog.Catalog,
		formatter *prompt.Formatter,
		clients catalog.ClientFactory,
	) (domain.ModelRegistry, error) {
		return catalog.Build(context.Background(), cat, formatter, clients)
	}); err != nil {
		log.Fatalf("Failed to provide model registry: %v", err)
	}

	// Job ledger
	if err := container.Provide(func(cfg *ledgerredis.Config) *goredis.Client {
		if !cfg.Enabled() {
			return nil
		}
		return ledgerredis.NewClient(cfg)
	}); err != nil {
		log.Fatalf("Failed to provide redis client: %v", err)
	}
	if err := container.Provide(newJobRecorder); err != nil {
		log.Fatalf("Failed to provide job ledger: %v", err)
	}

	// Domain Services
	if err := container.Provide(domain.NewTimerWaiter, dig.As(new(domain.Waiter))); err != nil {
		log.Fatalf("Failed to provide waiter: %v", err)
	}
	if err := container.Provide(domain.NewOrchestrator); err != nil {
		log.Fatalf("Failed to provide orchestrator: %v", err)
	}

	// HTTP Layer
	if err := container.Provide(middleware.BuildMiddlewareChain); err != nil {
		log.Fatalf("Failed to provide middleware chain: %v", err)
	}
	if err := container.Provide(http.NewHandler); err != nil {
		log.Fatalf("Failed to provide HTTP handler: %v", err)
	}
	if err := container.Provide(http.NewServer); err != nil {
		log.Fatalf("Failed to provide HTTP server: %v", err)
	}

	return container
}

// newClientFactory builds job clients for catalog entries. RunPod clients
// share one configuration and differ by endpoint; every echo entry shares the
// same in-memory backend.
func newClientFactory(cfg *runpod.Config, echoClient *echo.Client) catalog.ClientFactory {
	return func(backend, endpointID string) (domain.JobClient, error) {
		switch backend {
		case catalog.BackendRunPod:
			return runpod.NewClient(*cfg, endpointID), nil
		case catalog.BackendEcho:
			return echoClient, nil
		default:
			return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, backend)
		}
	}
}

func newJobRecorder(cfg *ledgerredis.Config, client *goredis.Client, logger *zap.Logger) domain.JobRecorder {
	if client == nil {
		logger.Info("REDIS_ADDR is empty, keeping the job ledger in memory")
		return domain.NewInMemoryJobLedger()
	}

	logger.Info("job ledger backed by redis", zap.String("addr", cfg.Addr))
	return ledgerredis.NewJobLedger(client, cfg.LedgerTTL)
}
