package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"golang.org/x/sync/errgroup"

	apihttp "fleet-settlement/internal/api/http"
	"fleet-settlement/internal/audit"
	"fleet-settlement/internal/auth"
	"fleet-settlement/internal/config"
	"fleet-settlement/internal/eventing"
	eventingmemory "fleet-settlement/internal/eventing/infrastructure/memory"
	eventingrepo "fleet-settlement/internal/eventing/infrastructure/postgres"
	eventinghttp "fleet-settlement/internal/eventing/interfaces/http"
	expenseapp "fleet-settlement/internal/expense/application"
	expense "fleet-settlement/internal/expense/domain"
	expensememory "fleet-settlement/internal/expense/infrastructure/memory"
	expenserepo "fleet-settlement/internal/expense/infrastructure/postgres"
	expensehttp "fleet-settlement/internal/expense/interfaces/http"
	ledgerapp "fleet-settlement/internal/ledger/application"
	ledger "fleet-settlement/internal/ledger/domain"
	ledgermemory "fleet-settlement/internal/ledger/infrastructure/memory"
	ledgerrepo "fleet-settlement/internal/ledger/infrastructure/postgres"
	ledgerhttp "fleet-settlement/internal/ledger/interfaces/http"
	"fleet-settlement/internal/observability/metrics"
	"fleet-settlement/internal/reporting"
	reportinghttp "fleet-settlement/internal/reporting/interfaces/http"
	settlementapp "fleet-settlement/internal/settlement/application"
	settlement "fleet-settlement/internal/settlement/domain"
	settlementmemory "fleet-settlement/internal/settlement/infrastructure/memory"
	settlementrepo "fleet-settlement/internal/settlement/infrastructure/postgres"
	settlementinterfaces "fleet-settlement/internal/settlement/interfaces"
	settlementhttp "fleet-settlement/internal/settlement/interfaces/http"
	settlementnotify "fleet-settlement/internal/settlement/notify"
	"fleet-settlement/internal/storage"
	memtx "fleet-settlement/internal/storage/memory"
	pgstore "fleet-settlement/internal/storage/postgres"
)

func main() {
	logger := log.New(os.Stdout, "", log.LstdFlags)
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Fatalf("dotenv error: %v", err)
	}
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("config error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("storage error: %v", err)
	}
	if st.db != nil {
		defer st.db.Close()
	}
	metrics.Init(st.db, logger)

	bus := eventing.NewInMemoryBus()
	registry := eventing.NewRegistry()
	registry.Register(settlementapp.Events()...)
	registry.Register(ledgerapp.EarningIngested{})
	dispatcher := eventing.NewDispatcher(bus, st.outbox, registry, st.dlq)
	publisher := eventing.NewPublisher(st.outbox, cfg.DefaultCompanyID)

	ledgerService, err := ledgerapp.NewService(st.earnings, publisher, systemClock{},
		ledgerapp.WithTransactor(st.tx),
		ledgerapp.WithDefaultBTW(cfg.BTWPercentage()),
		ledgerapp.WithLogger(logger),
	)
	if err != nil {
		logger.Fatalf("ledger service error: %v", err)
	}
	settlementPublisher := settlementinterfaces.NewLoggingPublisher(logger, settlementinterfaces.NewOutboxPublisher(publisher))
	engine, err := settlementapp.NewEngine(st.settlements, ledgerService, st.tx, settlementPublisher, systemClock{}, logger)
	if err != nil {
		logger.Fatalf("settlement engine error: %v", err)
	}
	expenseService, err := expenseapp.NewService(st.expenses, st.cars, systemClock{}, logger)
	if err != nil {
		logger.Fatalf("expense service error: %v", err)
	}
	reports, err := reporting.NewService(engine, expenseService, cfg.Currency)
	if err != nil {
		logger.Fatalf("reporting service error: %v", err)
	}

	eventing.Subscribe(bus, eventing.EventTypeOf[ledgerapp.EarningIngested](), "ledger.log", func(ctx context.Context, event any) error {
		evt, ok := event.(ledgerapp.EarningIngested)
		if !ok {
			return eventing.ErrInvalidEventType
		}
		logger.Printf("earning ingested: id=%s contract=%s platform=%s date=%s", evt.EarningID, evt.ContractID, evt.Platform, evt.IncomeDate.Format("2006-01-02"))
		return nil
	}, st.processed)
	if cfg.AlertWebhookURL != "" {
		alerts, err := settlementnotify.NewSubscriber(settlementnotify.NewWebhookNotifier(cfg.AlertWebhookURL), logger)
		if err != nil {
			logger.Fatalf("settlement alerts error: %v", err)
		}
		alerts.Register(bus, st.processed)
	}

	ingestLimiter := apihttp.NewRateLimiter(cfg.Ingest.RateLimit, cfg.Ingest.Burst)
	ledgerHandler, err := ledgerhttp.NewHandler(ledgerService, st.audit, ingestLimiter)
	if err != nil {
		logger.Fatalf("ledger handler error: %v", err)
	}
	settlementHandler, err := settlementhttp.NewHandler(engine, reports, st.audit, logger)
	if err != nil {
		logger.Fatalf("settlement handler error: %v", err)
	}
	expenseHandler, err := expensehttp.NewHandler(expenseService, reports, st.audit, logger)
	if err != nil {
		logger.Fatalf("expense handler error: %v", err)
	}
	dashboardHandler, err := reportinghttp.NewHandler(reports)
	if err != nil {
		logger.Fatalf("dashboard handler error: %v", err)
	}
	deadLetterHandler, err := eventinghttp.NewHandler(st.dlq)
	if err != nil {
		logger.Fatalf("dead letter handler error: %v", err)
	}

	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.Handler())
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if st.db != nil {
			if err := st.db.PingContext(r.Context()); err != nil {
				http.Error(w, "db unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	api := router.PathPrefix("/api/v1").Subrouter()
	webhooks := router.PathPrefix("/webhooks").Subrouter()
	webhooks.Use(auth.NewWebhookAuthMiddleware(cfg.WebhookSecrets(), cfg.Ingest.WebhookMaxSkew).Wrap)
	ledgerHandler.Register(api, webhooks)
	settlementHandler.Register(api)
	expenseHandler.Register(api)
	dashboardHandler.Register(api)
	deadLetterHandler.Register(api)

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, []string{"/webhooks/"})
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), policy)
	var handler http.Handler = authMiddleware.Wrap(router)
	if len(cfg.CORSOrigins) > 0 {
		handler = cors.New(cors.Options{
			AllowedOrigins: cfg.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
			ExposedHeaders: []string{"Content-Disposition", "Retry-After"},
		}).Handler(handler)
	}
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           loggingMiddleware(handler, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Printf("http listening on %s storage=%s", cfg.HTTPAddr, cfg.Storage)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		runDispatcher(ctx, dispatcher, cfg.Outbox, logger)
		return nil
	})
	if cfg.Schedule.Enabled {
		scheduler, err := newScheduler(engine, ledgerService, cfg, logger)
		if err != nil {
			logger.Fatalf("settlement scheduler error: %v", err)
		}
		g.Go(func() error {
			scheduler.Start(ctx)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logger.Fatalf("server error: %v", err)
	}
	logger.Printf("shutdown complete")
}

// outboxStore is written by publishers and drained by the dispatcher.
type outboxStore interface {
	eventing.OutboxWriter
	eventing.OutboxStore
}

type deadLetterStore interface {
	eventing.DLQStore
	eventinghttp.DeadLetterLister
}

type stores struct {
	db          *sql.DB
	tx          storage.Transactor
	earnings    ledger.Repository
	settlements settlement.Repository
	expenses    expense.Repository
	cars        expense.CarDirectory
	outbox      outboxStore
	processed   eventing.ProcessedStore
	dlq         deadLetterStore
	audit       audit.Logger
}

func openStores(ctx context.Context, cfg config.Config, logger *log.Logger) (stores, error) {
	if cfg.Storage == config.StorageMemory {
		logger.Printf("storage: in-memory; data is lost on restart")
		return stores{
			tx:          memtx.NewTransactor(),
			earnings:    ledgermemory.NewEarningRepository(),
			settlements: settlementmemory.NewSettlementRepository(),
			expenses:    expensememory.NewExpenseRepository(),
			cars:        expensememory.NewCarDirectory(cfg.Cars),
			outbox:      eventingmemory.NewOutboxStore(),
			processed:   eventingmemory.NewProcessedStore(),
			dlq:         eventingmemory.NewDLQStore(),
			audit:       audit.NewMemoryLog(),
		}, nil
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return stores{}, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return stores{}, err
	}
	return stores{
		db:          db,
		tx:          pgstore.NewTransactor(db),
		earnings:    ledgerrepo.NewEarningRepository(db),
		settlements: settlementrepo.NewSettlementRepository(db),
		expenses:    expenserepo.NewExpenseRepository(db),
		cars:        expenserepo.NewCarDirectory(db),
		outbox:      eventingrepo.NewOutboxStore(db),
		processed:   eventingrepo.NewProcessedStore(db),
		dlq:         eventingrepo.NewDLQStore(db),
		audit:       audit.NewRepository(db),
	}, nil
}

func runDispatcher(ctx context.Context, dispatcher *eventing.Dispatcher, cfg config.OutboxConfig, logger *log.Logger) {
	ticker := time.NewTicker(cfg.DispatchInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			result, err := dispatcher.Dispatch(ctx, cfg.BatchSize)
			if err != nil && ctx.Err() == nil {
				logger.Printf("outbox dispatch error: %v", err)
			}
			if result.Failed > 0 {
				logger.Printf("outbox dispatch: sent=%d failed=%d dlq=%d", result.Sent, result.Failed, result.DLQ)
			}
		}
	}
}

func newScheduler(engine *settlementapp.Engine, contracts settlementapp.ContractSource, cfg config.Config, logger *log.Logger) (*settlementapp.Scheduler, error) {
	weekday, err := settlementapp.ParseWeekday(cfg.Schedule.Weekday)
	if err != nil {
		return nil, err
	}
	return settlementapp.NewScheduler(engine, contracts, settlementapp.SchedulerConfig{
		Weekday:  weekday,
		WeeklyAt: cfg.Schedule.WeeklyAt,
		Rents:    cfg.Rents(),
	}, logger)
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
