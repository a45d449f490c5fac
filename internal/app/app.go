package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kirinyoku/algotix/internal/algorand"
	"github.com/kirinyoku/algotix/internal/config"
	"github.com/kirinyoku/algotix/internal/ledger"
	redisx "github.com/kirinyoku/algotix/internal/redis"
	redisrepo "github.com/kirinyoku/algotix/internal/repository/redis"
	"github.com/kirinyoku/algotix/internal/service"
	"github.com/kirinyoku/algotix/internal/service/query"
	"github.com/kirinyoku/algotix/internal/wallet"
	httpgin "github.com/kirinyoku/algotix/internal/transport/http/gin"
)

type App struct {
	cfg        *config.Config
	logger     *slog.Logger
	httpServer *http.Server
}

func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	// Initialize dependencies
	algodClient, err := algorand.NewAlgod(context.Background(), algorand.Config{
		AlgodURL:     cfg.Algorand.AlgodURL,
		AlgodToken:   cfg.Algorand.AlgodToken,
		IndexerURL:   cfg.Algorand.IndexerURL,
		IndexerToken: cfg.Algorand.IndexerToken,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize algod: %w", err)
	}

	indexerClient, err := algorand.NewIndexer(algorand.Config{
		IndexerURL:   cfg.Algorand.IndexerURL,
		IndexerToken: cfg.Algorand.IndexerToken,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize indexer: %w", err)
	}

	rdb, err := redisx.New(context.Background(), redisx.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize redis: %w", err)
	}

	// Initialize the signing session. Without a mnemonic the service runs
	// read-only; every write endpoint reports the missing signer.
	session := wallet.NewSession(cfg.Wallet.SignTimeout)
	if cfg.Wallet.Mnemonic != "" {
		signer, err := wallet.NewLocalSigner(cfg.Wallet.Mnemonic)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize signer: %w", err)
		}
		session.Connect(signer)
		logger.Info("signing account connected", "address", signer.Address())
	} else {
		logger.Warn("no mnemonic configured, running read-only")
	}

	// Initialize ledger adapters and transport-side stores
	node := ledger.NewAlgodNode(algodClient)
	search := ledger.NewIndexerSearch(indexerClient)
	limiter := redisrepo.NewFixedWindowLimiter(rdb, redisx.RateLimitPrefix, 10, 1*time.Minute)
	idempotencyStore := redisrepo.NewIdempotencyStore(rdb, 2*time.Hour)

	// Initialize services
	services := service.NewServices(node, search, session, service.Config{
		Query: query.Config{SearchWindow: cfg.Query.SearchWindow},
	}, logger)

	// Initialize Gin router
	router := httpgin.NewRouter(services, session, idempotencyStore, limiter, logger)

	return &App{
		cfg:    cfg,
		logger: logger,
		httpServer: &http.Server{
			Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			Handler: router,
		},
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	g, gCtx := errgroup.WithContext(ctx)

	// Start HTTP server
	g.Go(func() error {
		a.logger.Info("HTTP server listening", "host", a.cfg.Server.Host, "port", a.cfg.Server.Port)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
		return nil
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gCtx.Done()
		a.logger.Info("shutting down HTTP server")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return a.httpServer.Shutdown(ctx)
	})

	return g.Wait()
}
