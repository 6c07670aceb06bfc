// cmd/tools/queue-sweep/main.go
//
// queue-sweep processes the email queue once. It is meant for cron when the
// in-process sweeper and the Zeebe worker are both disabled.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"veripass/internal/common/config"
	"veripass/internal/common/database"
	"veripass/internal/common/logger"
	"veripass/internal/mail"
	"veripass/internal/notification"
	pgstore "veripass/internal/store/postgres"
)

func main() {
	limit := flag.Int("limit", 0, "Maximum jobs to claim (0 uses notifications.queue.batch_size)")
	reclaim := flag.Bool("reclaim-stale", true, "Return abandoned sending jobs to pending first")
	configPath := flag.String("config", "", "Path to a config file (default: configs/config.yaml lookup)")
	timeout := flag.Duration("timeout", 5*time.Minute, "Overall deadline for the run")
	flag.Parse()

	if err := run(*configPath, *limit, *reclaim, *timeout); err != nil {
		fmt.Fprintf(os.Stderr, "queue-sweep: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, limit int, reclaim bool, timeout time.Duration) error {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFromFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.NewStructured(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	pg, err := database.NewPostgres(cfg.Database.Postgres)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pg.Close()
	if err := pg.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}

	sender, err := mail.NewSender(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("email sender: %w", err)
	}

	q := cfg.Notifications.Queue
	processor := notification.NewProcessor(pgstore.New(pg), sender, notification.ProcessorConfig{
		BatchSize:    q.BatchSize,
		RetryBackoff: q.RetryBackoff(),
		StaleAfter:   q.StaleAfter(),
	}, nil, log)

	var reclaimed int64
	if reclaim {
		if reclaimed, err = processor.ReclaimStale(ctx); err != nil {
			return fmt.Errorf("reclaim stale: %w", err)
		}
	}

	res, err := processor.ProcessEmailQueue(ctx, limit)
	if err != nil {
		return fmt.Errorf("process email queue: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		notification.Result
		Reclaimed int64 `json:"reclaimed"`
	}{res, reclaimed})
}
