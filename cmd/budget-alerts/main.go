package main

import (
	"context"
	"flag"
	"io"
	"os"
	"time"

	"finledger/internal/amqp"
	"finledger/internal/backend"
	"finledger/internal/cli"
	"finledger/internal/config"
	"finledger/internal/kafka"
	"finledger/internal/ledger"
	"finledger/internal/log"
	"finledger/internal/services"

	"github.com/robfig/cron/v3"
)

func main() {
	once := flag.Bool("once", false, "run a single budget check and exit")
	flag.Parse()

	cfg, logger := cli.MustLoad(log.ComponentAlerts)
	if err := run(cfg, logger, *once); err != nil {
		logger.Error("budget-alerts stopped with error", log.FieldError, err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *log.Logger, once bool) error {
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
	store := result.Store

	events, closer, err := newPublisher(cfg)
	if err != nil {
		return err
	}
	defer closer.Close()

	alerts := services.NewAlertService(store, ledger.NewBudgetEngine(store, store), events, cfg.BudgetAlertThreshold)
	check := func() {
		runCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
		defer cancel()
		sent, err := alerts.CheckBudgets(runCtx)
		if err != nil {
			logger.Error("Budget check failed", log.FieldError, err)
			return
		}
		logger.Info("Budget check finished", "alerts_sent", sent)
	}

	if once {
		check()
		return nil
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(cfg.BudgetAlertSchedule, check); err != nil {
		return err
	}
	c.Start()
	logger.Info("Budget alerts scheduled",
		"schedule", cfg.BudgetAlertSchedule,
		"threshold", cfg.BudgetAlertThreshold)

	<-ctx.Done()
	<-c.Stop().Done()
	logger.Info("Budget alerts stopped")
	return nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// newPublisher picks the bus alerts go out on. With events disabled the
// checks still run and are logged.
func newPublisher(cfg *config.Config) (services.EventPublisher, io.Closer, error) {
	switch cfg.EventsBackend {
	case "amqp":
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			return nil, nil, err
		}
		return client, client, nil
	case "kafka":
		p := kafka.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		return p, p, nil
	default:
		return services.NopPublisher{}, nopCloser{}, nil
	}
}
