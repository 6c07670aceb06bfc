// cmd/veripass-server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"veripass/internal/accounts"
	"veripass/internal/api"
	"veripass/internal/common/auth"
	"veripass/internal/common/camunda"
	"veripass/internal/common/config"
	"veripass/internal/common/database"
	"veripass/internal/common/logger"
	"veripass/internal/common/observability"
	"veripass/internal/mail"
	"veripass/internal/notification"
	"veripass/internal/registration"
	pgstore "veripass/internal/store/postgres"
	"veripass/internal/workflow"

	dsn "veripass/internal/workers/application/dispatch-status-notification"
	peq "veripass/internal/workers/communication/process-email-queue"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("starting veripass server",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- PostgreSQL ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()

	st := pgstore.New(pg)
	if cfg.Database.Postgres.AutoMigrate {
		if err := st.Migrate(ctx); err != nil {
			zapLog.Fatal("schema migration failed", zap.Error(err))
		}
		zapLog.Info("schema migrated")
	}

	// --- Redis ---
	var rdb *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rdb, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return rdb.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rdb.Close()

	// --- Transports ---
	sender, err := mail.NewSender(ctx, cfg, log)
	if err != nil {
		zapLog.Fatal("email sender init failed", zap.Error(err))
	}
	sms, err := mail.NewSMSSender(ctx, cfg)
	if err != nil {
		zapLog.Fatal("sms sender init failed", zap.Error(err))
	}

	// --- Zeebe ---
	var zc *camunda.Client
	if cfg.Camunda.Enabled {
		err = retryWithBackoff(func() error {
			var err error
			zc, err = camunda.NewClient(cfg.Camunda)
			return err
		}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
		if err != nil {
			zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
		}
		defer zc.Close()
	}

	// --- Services ---
	queueCfg := cfg.Notifications.Queue
	dispatcher := notification.NewDispatcher(st, sender, sms, notification.DispatcherConfig{
		SiteURL:     cfg.App.SiteURL,
		MaxAttempts: queueCfg.MaxAttempts,
	}, log)
	processor := notification.NewProcessor(st, sender, notification.ProcessorConfig{
		BatchSize:    queueCfg.BatchSize,
		RetryBackoff: queueCfg.RetryBackoff(),
		StaleAfter:   queueCfg.StaleAfter(),
	}, obs, log)
	wf := workflow.NewService(st, dispatcher, obs, log)
	if zc != nil && cfg.Camunda.PublishStatusEvents {
		wf.WithEvents(camunda.NewStatusPublisher(zc, config.GetDuration(cfg.Camunda.MessageTTL)))
	}
	wizard := registration.NewWizard(
		registration.NewRedisDraftStore(rdb.Client, cfg.Registration.DraftTTL()), wf, log)

	readyChecks := map[string]api.ReadyCheck{
		"postgres": pg.Ping,
		"redis":    rdb.Ping,
	}
	if zc != nil {
		readyChecks["zeebe"] = zc.HealthCheck
	}

	handler := api.NewHandler(api.Deps{
		Tokens:      auth.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.Issuer),
		Accounts:    accounts.NewService(st, log),
		Wizard:      wizard,
		Workflow:    wf,
		Inbox:       notification.NewInbox(st),
		Broadcaster: notification.NewBroadcaster(st, queueCfg.MaxAttempts, log),
		Queue:       processor,
		ReadyChecks: readyChecks,
	}, log)

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      handler.Routes(),
		ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		zapLog.Info("http server listening", zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
		defer cancel()
		zapLog.Info("shutting down http server")
		return srv.Shutdown(shutdownCtx)
	})

	if interval := queueCfg.SweepInterval(); interval > 0 {
		sweeper := notification.NewSweeper(processor, interval, queueCfg.BatchSize, log)
		g.Go(func() error {
			return sweeper.Run(gctx)
		})
	}

	if zc != nil {
		workers := startWorkers(cfg, zc, st, dispatcher, processor, obs, log, zapLog)
		g.Go(func() error {
			<-gctx.Done()
			for _, w := range workers {
				w.Close()
				w.AwaitClose()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		zapLog.Error("server stopped with error", zap.Error(err))
		os.Exit(1)
	}
	zapLog.Info("server stopped")
}

func startWorkers(
	cfg *config.Config,
	zc *camunda.Client,
	st *pgstore.Store,
	dispatcher *notification.Dispatcher,
	processor *notification.Processor,
	obs *observability.Observability,
	log logger.Logger,
	zapLog *zap.Logger,
) []worker.JobWorker {
	var workers []worker.JobWorker

	queueHandler, err := peq.NewHandler(peq.ConfigFromApp(cfg), processor, obs, log)
	if err != nil {
		zapLog.Fatal("process-email-queue handler", zap.Error(err))
	}
	if w := camunda.StartWorker(zc.GetClient(), peq.TaskType, config.GetWorkerConfig(cfg, peq.WorkerName), queueHandler.Handle, zapLog); w != nil {
		workers = append(workers, w)
	}

	dispatchHandler, err := dsn.NewHandler(dsn.ConfigFromApp(cfg), st, dispatcher, obs, log)
	if err != nil {
		zapLog.Fatal("dispatch-status-notification handler", zap.Error(err))
	}
	if w := camunda.StartWorker(zc.GetClient(), dsn.TaskType, config.GetWorkerConfig(cfg, dsn.WorkerName), dispatchHandler.Handle, zapLog); w != nil {
		workers = append(workers, w)
	}

	return workers
}
