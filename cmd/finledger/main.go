package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"time"

	"finledger/internal/amqp"
	"finledger/internal/auth"
	"finledger/internal/backend"
	"finledger/internal/cli"
	"finledger/internal/config"
	apphttp "finledger/internal/http"
	"finledger/internal/kafka"
	"finledger/internal/ledger"
	"finledger/internal/log"
	"finledger/internal/services"
	"finledger/internal/storage"
)

func main() {
	cfg, logger := cli.MustLoad(log.ComponentApp)
	if err := run(cfg, logger); err != nil {
		logger.Error("finledger stopped with error", log.FieldError, err)
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
	store := result.Store

	attachments, err := storage.NewAttachmentStore(cfg.UploadDir, cfg.MaxUploadBytes)
	if err != nil {
		return err
	}

	events, closeEvents, err := newPublisher(cfg, logger)
	if err != nil {
		return err
	}
	defer closeEvents.Close()

	budgets := ledger.NewBudgetEngine(store, store)
	savings := ledger.NewSavingsEngine(store)
	bills := ledger.NewSplitBillEngine(store)
	tokens := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTTTL)

	svc := apphttp.Services{
		Auth:      services.NewAuthService(auth.NewPasswordAuthenticator(store), tokens, store, events),
		Expenses:  services.NewExpenseService(store, attachments, events),
		Goals:     services.NewGoalService(store, savings, events),
		Bills:     services.NewBillService(store, bills, events),
		Budgets:   budgets,
		Dashboard: ledger.NewDashboard(store, budgets, savings, bills),
	}

	srv := apphttp.NewServer(apphttp.Config{
		Addr:           ":" + cfg.Port,
		HTTP2Cleartext: cfg.HTTP2Cleartext,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
		MaxUploadBytes: cfg.MaxUploadBytes,
	}, svc, tokens, store, logger)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting finledger server",
			"port", cfg.Port,
			"backend", cfg.DataBackend,
			"events", cfg.EventsBackend,
			"h2c", cfg.HTTP2Cleartext)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("Server stopped gracefully")
	return nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// newPublisher picks the event bus. Without one the services publish into
// the void.
func newPublisher(cfg *config.Config, logger *log.Logger) (services.EventPublisher, io.Closer, error) {
	switch cfg.EventsBackend {
	case "amqp":
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Publishing ledger events to AMQP", "exchange", cfg.AMQPExchange)
		return client, client, nil
	case "kafka":
		publisher := kafka.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		logger.Info("Publishing ledger events to Kafka", "topic", cfg.KafkaTopic)
		return publisher, publisher, nil
	default:
		logger.Info("Ledger events disabled")
		return services.NopPublisher{}, nopCloser{}, nil
	}
}
