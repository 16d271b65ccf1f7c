package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"finledger/internal/amqp"
	"finledger/internal/backend"
	"finledger/internal/cache"
	"finledger/internal/cli"
	"finledger/internal/config"
	"finledger/internal/core"
	"finledger/internal/kafka"
	"finledger/internal/log"
	"finledger/internal/notify"
	"finledger/internal/sheets"
	gsheet "finledger/internal/sheets/google"
	"finledger/internal/storage"
	"finledger/internal/worker"

	"golang.org/x/sync/errgroup"
)

// workerStore serves owner lookups from a cache and everything else from
// the store.
type workerStore struct {
	storage.Store
	users *cache.Users
}

func (s workerStore) UserByID(ctx context.Context, id string) (core.User, error) {
	return s.users.UserByID(ctx, id)
}

func main() {
	cfg, logger := cli.MustLoad(log.ComponentWorker)
	if err := run(cfg, logger); err != nil {
		logger.Error("finledger-worker stopped with error", log.FieldError, err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *log.Logger) error {
	ctx, stop := cli.SignalContext(logger)
	defer stop()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	result, err := backend.NewFactory(logger.WithComponent(log.ComponentBackend).Logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		return err
	}
	defer result.Cleanup()

	var mailer worker.Notifier
	if cfg.SMTPEnabled() {
		mailer = notify.NewMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom)
		logger.Info("Email notifications enabled", "smtp_host", cfg.SMTPHost)
	} else {
		logger.Info("Email notifications disabled, no SMTP_HOST provided")
	}

	var exporter sheets.ExpenseExporter
	if cfg.SheetsEnabled() {
		client, err := gsheet.New(ctx, gsheet.Config{
			SpreadsheetID:      cfg.GoogleSpreadsheetID,
			SheetName:          cfg.GoogleSheetName,
			ServiceAccountFile: cfg.GoogleServiceAccountFile,
			ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
		})
		if err != nil {
			return fmt.Errorf("init google sheets: %w", err)
		}
		exporter = client
		logger.Info("Google Sheets export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		logger.Info("Google Sheets export disabled, no GOOGLE_SPREADSHEET_ID provided")
	}

	src, closer, err := newSource(cfg)
	if err != nil {
		return err
	}
	defer closer.Close()

	users := cache.NewUsers(result.Store, 1024, 10*time.Minute)
	w := worker.NewEventWorker(workerStore{Store: result.Store, users: users}, mailer, exporter, cfg.WorkerMaxRetries)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer stop()
		return w.Run(gctx, src)
	})
	g.Go(func() error {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if n := users.CleanExpired(); n > 0 {
					logger.Debug("Expired cached users", "count", n)
				}
			}
		}
	})
	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("Worker shutdown complete")
	return nil
}

func newSource(cfg *config.Config) (worker.Source, io.Closer, error) {
	switch cfg.EventsBackend {
	case "amqp":
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			return nil, nil, fmt.Errorf("init amqp: %w", err)
		}
		return client, client, nil
	case "kafka":
		consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic)
		return consumer, consumer, nil
	default:
		return nil, nil, fmt.Errorf("EVENTS_BACKEND must be amqp or kafka for the worker, got %q", cfg.EventsBackend)
	}
}
