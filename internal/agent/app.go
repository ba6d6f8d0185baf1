// Package agent initializes and runs the edge agent: the encrypted local
// queue, the background sync worker and the loopback HTTP API. It owns
// graceful shutdown for all three.
package agent

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/edgemed/edgemed/internal/agent/api"
	"github.com/edgemed/edgemed/internal/agent/config"
	"github.com/edgemed/edgemed/internal/agent/extract"
	"github.com/edgemed/edgemed/internal/agent/queue"
	repo "github.com/edgemed/edgemed/internal/agent/repositories/queue"
	agentsync "github.com/edgemed/edgemed/internal/agent/sync"
	"github.com/edgemed/edgemed/internal/cryptox"
	"github.com/edgemed/edgemed/internal/logging"
	"github.com/edgemed/edgemed/internal/models"
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	queue   *queue.Manager
	worker  *agentsync.Worker
	handler *api.Handler
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := logging.NewDefault()

	if !cfg.Mode.Valid() {
		return nil, fmt.Errorf("unknown mode %q", cfg.Mode)
	}

	db, err := queue.InitDatabase(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("queue db init error: %w", err)
	}

	aead, err := loadAEAD(cfg)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("keyset init error: %w", err)
	}

	q := queue.NewManager(repo.NewSQLiteRepository(db), aead, cfg.DeviceID)

	client := agentsync.NewHTTPClient(cfg.CloudAPIURL, cfg.AuthToken)
	worker := agentsync.NewWorker(q, client, logger, agentsync.Options{
		DeviceID:    cfg.DeviceID,
		Mode:        cfg.Mode,
		BatchSize:   cfg.SyncBatchSize,
		MinInterval: cfg.SyncInterval,
		MaxInterval: cfg.MaxSyncInterval,
	})

	extractor := extract.New()
	handler := api.NewHandler(q, worker, extractor, logger, api.Options{
		Mode:          cfg.Mode,
		StoreRawNotes: cfg.StoreRawNotes,
		ModelInfo:     models.ModelInfo{Name: extract.Name, Version: extract.Version, Runtime: "local"},
	})

	return &App{
		config:  cfg,
		logger:  logger,
		db:      db,
		queue:   q,
		worker:  worker,
		handler: handler,
	}, nil
}

// loadAEAD builds the queue cipher from the keyset file, deriving the key
// from a passphrase when one is configured or requested interactively.
func loadAEAD(cfg *config.Config) (*cryptox.AEAD, error) {
	passphrase := cfg.KeysetPassphrase
	if passphrase == "" && cfg.PromptPassphrase {
		fmt.Fprint(os.Stderr, "Keyset passphrase: ")
		b, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return nil, fmt.Errorf("passphrase read error: %w", err)
		}
		passphrase = string(b)
	}

	var (
		key []byte
		err error
	)
	if passphrase != "" {
		key, err = cryptox.LoadOrCreateKeysetWithPassphrase(cfg.KeysetPath, []byte(passphrase))
	} else {
		key, err = cryptox.LoadOrCreateKeyset(cfg.KeysetPath)
	}
	if err != nil {
		return nil, err
	}
	return cryptox.New(key)
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "starting agent",
		"mode", app.config.Mode, "device_id", app.config.DeviceID, "addr", app.config.LocalAPIAddr)

	app.initSignalHandler(cancelFunc)

	server := &http.Server{
		Addr:              app.config.LocalAPIAddr,
		Handler:           app.handler.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.worker.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.logger.Error(ctx, "local api error", "error", err)
			cancelFunc()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		app.logger.Error(ctx, "local api shutdown error", "error", err)
	}

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "queue db close error", "error", err)
	}
	app.logger.Info(ctx, "agent stopped")
}
