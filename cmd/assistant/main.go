package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"invoice-assistant/internal/analyzer"
	"invoice-assistant/internal/backend"
	"invoice-assistant/internal/common/auth"
	"invoice-assistant/internal/common/config"
	commonerrors "invoice-assistant/internal/common/errors"
	"invoice-assistant/internal/common/database"
	"invoice-assistant/internal/common/logger"
	"invoice-assistant/internal/common/observability"
	"invoice-assistant/internal/executor"
	"invoice-assistant/internal/gate"
	"invoice-assistant/internal/notify"
	"invoice-assistant/internal/orchestrator"
	"invoice-assistant/internal/session"
	"invoice-assistant/internal/task"
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

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting invoice assistant...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New(cfg.App.Name, log)
	defer obs.Shutdown()

	tracing, err := observability.NewTracing(cfg.App.Name, cfg.Observability.JaegerEndpoint)
	if err != nil {
		zapLog.Fatal("tracing init failed", zap.Error(err))
	}

	ctx := context.Background()

	// --- Init PostgreSQL with retry ---
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
		zapLog.Fatal("postgres failed after retries",
			zap.Error(commonerrors.NewDatabaseConnectionFailedError(err)))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
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
		zapLog.Fatal("redis failed after retries",
			zap.Error(commonerrors.NewDatabaseConnectionFailedError(err)))
	}
	defer rdb.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init Elasticsearch (optional) ---
	var index *backend.CustomerIndex
	if cfg.Database.Elasticsearch.Enabled() {
		var esClient *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return esClient.Ping()
		}, 5, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			// The SQL search path covers customers; the index is an optimization.
			zapLog.Warn("elasticsearch unavailable, customer search stays on sql", zap.Error(err))
		} else {
			index = backend.NewCustomerIndex(esClient.Client, cfg.Database.Elasticsearch.Index, log)
			zapLog.Info("Elasticsearch connected successfully")
		}
	}

	// --- Repositories ---
	customers := backend.NewCustomers(pg.DB)
	items := backend.NewItems(pg.DB)
	invoices := backend.NewInvoices(pg.DB)
	expenses := backend.NewExpenses(pg.DB)
	profiles := backend.NewProfiles(pg.DB)
	reports := backend.NewReports(pg.DB)

	// --- Notifications ---
	var notifier notify.Notifier = notify.NoopNotifier{}
	if cfg.Notifications.Email.Enabled || cfg.Notifications.SMS.Enabled {
		awsNotifier, err := notify.NewAWSNotifier(ctx, cfg.Notifications, log)
		if err != nil {
			zapLog.Fatal("notifier init failed", zap.Error(err))
		}
		notifier = awsNotifier
	}

	// --- Identity ---
	var verifier auth.Verifier = auth.StaticVerifier{}
	if cfg.Identity.Enabled {
		verifier = auth.NewIntrospectionVerifier(cfg.Identity)
	}

	// --- Core pipeline ---
	exec := executor.New(customers, items, invoices, expenses, profiles, reports,
		index, notifier, cfg.Assistant, log)

	llm := analyzer.NewLLMAnalyzer(cfg.GenAI, cfg.Assistant.HistoryWindow, log)
	rules := analyzer.NewRuleAnalyzer()
	analysis := analyzer.NewService(llm, rules, log)

	machine := task.NewMachine(exec, exec, exec, log)

	store := session.NewStore(rdb.Client, profiles, reports,
		time.Duration(cfg.Assistant.SessionTTL)*time.Second, cfg.Assistant.RecentEntityCap, log)

	orch := orchestrator.New(store, analysis, machine, exec,
		gate.Policy{Threshold: cfg.Assistant.ConfirmationThreshold},
		cfg.Assistant.HistoryWindow, obs, tracing, log)

	// --- HTTP surface ---
	mux := http.NewServeMux()
	server := newChatServer(orch, verifier, log)
	server.register(mux)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := pg.Ping(r.Context()); err != nil {
			http.Error(w, "postgres unavailable", http.StatusServiceUnavailable)
			return
		}
		if err := rdb.Ping(r.Context()); err != nil {
			http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	httpServer := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	go func() {
		zapLog.Info("HTTP server listening", zap.String("address", cfg.Server.Address))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Fatal("http server failed", zap.Error(err))
		}
	}()

	// --- Graceful shutdown ---
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	zapLog.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("http shutdown failed", zap.Error(err))
	}
	if err := tracing.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("tracing shutdown failed", zap.Error(err))
	}
	zapLog.Info("Shutdown complete")
}
