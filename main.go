package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"time"

	adminapp "telegateway/internal/admin/application"
	adminhttp "telegateway/internal/admin/interfaces/http"
	apihttp "telegateway/internal/api/http"
	"telegateway/internal/audit"
	"telegateway/internal/auth"
	billingapp "telegateway/internal/billing/application"
	billingrepo "telegateway/internal/billing/infrastructure/postgres"
	billinghttp "telegateway/internal/billing/interfaces/http"
	delinquencyapp "telegateway/internal/delinquency/application"
	intakeapp "telegateway/internal/intake/application"
	"telegateway/internal/intake/gateway"
	intakehttp "telegateway/internal/intake/interfaces/http"
	ledgerapp "telegateway/internal/ledger/application"
	ledgerrepo "telegateway/internal/ledger/infrastructure/postgres"
	"telegateway/internal/notify"
	"telegateway/internal/observability/metrics"
	"telegateway/internal/scheduler"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("db open error: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatalf("db ping error: %v", err)
	}

	metrics.Init(db, logger)
	auditRepo := audit.NewRepository(db)

	delinquencyCfg, err := delinquencyapp.LoadConfig()
	if err != nil {
		logger.Fatalf("delinquency config error: %v", err)
	}
	var notifier notify.Notifier
	if delinquencyCfg.WebhookURL != "" {
		notifier = notify.NewWebhookNotifier(delinquencyCfg.WebhookURL, delinquencyCfg.NotifyTimeout)
	} else {
		notifier = notify.NewLogNotifier(logger)
	}

	balanceRepo := ledgerrepo.NewBalanceRepository(db)
	transactionRepo := ledgerrepo.NewTransactionRepository(db)
	feeRepo := billingrepo.NewFeeRepository(db)
	invoiceRepo := billingrepo.NewInvoiceRepository(db)

	ledgerService, err := ledgerapp.NewService(balanceRepo, transactionRepo, invoiceRepo, ledgerapp.SystemClock{}, logger)
	if err != nil {
		logger.Fatalf("ledger service error: %v", err)
	}

	feeRecorder, err := billingapp.NewFeeRecorder(feeRepo, billingapp.SystemClock{})
	if err != nil {
		logger.Fatalf("fee recorder error: %v", err)
	}
	location, err := time.LoadLocation(cfg.PlatformTZ)
	if err != nil {
		logger.Fatalf("platform timezone error: %v", err)
	}
	consolidationJob, err := billingapp.NewConsolidationJob(feeRepo, invoiceRepo, notifier, location, billingapp.SystemClock{}, logger)
	if err != nil {
		logger.Fatalf("consolidation job error: %v", err)
	}
	overdueJob, err := billingapp.NewOverdueJob(invoiceRepo, ledgerService, billingapp.SystemClock{}, logger)
	if err != nil {
		logger.Fatalf("overdue job error: %v", err)
	}
	sweeper, err := delinquencyapp.NewSweeper(ledgerService, notifier, delinquencyCfg, delinquencyapp.SystemClock{}, logger)
	if err != nil {
		logger.Fatalf("sweeper error: %v", err)
	}

	statementService, err := billingapp.NewStatementService(balanceRepo, transactionRepo, invoiceRepo)
	if err != nil {
		logger.Fatalf("statement service error: %v", err)
	}

	gatewayClient, err := gateway.NewClient(cfg.GatewayBaseURL, cfg.GatewayAPIKey)
	if err != nil {
		logger.Fatalf("gateway client error: %v", err)
	}
	topUpService, err := intakeapp.NewTopUpService(gatewayClient, ledgerService)
	if err != nil {
		logger.Fatalf("topup service error: %v", err)
	}
	webhookService, err := intakeapp.NewWebhookService(ledgerService, logger)
	if err != nil {
		logger.Fatalf("webhook service error: %v", err)
	}

	adminService, err := adminapp.NewService(ledgerService, auditRepo, logger)
	if err != nil {
		logger.Fatalf("admin service error: %v", err)
	}

	webhookHandler, err := intakehttp.NewWebhookHandler(webhookService, cfg.GatewayWebhookToken, logger)
	if err != nil {
		logger.Fatalf("webhook handler error: %v", err)
	}
	topUpHandler, err := intakehttp.NewTopUpHandler(topUpService)
	if err != nil {
		logger.Fatalf("topup handler error: %v", err)
	}
	adminBalanceHandler, err := adminhttp.NewBalanceHandler(adminService)
	if err != nil {
		logger.Fatalf("admin handler error: %v", err)
	}
	merchantsHandler, err := adminhttp.NewMerchantsHandler(ledgerService, auditRepo)
	if err != nil {
		logger.Fatalf("merchants handler error: %v", err)
	}
	feeHandler, err := billinghttp.NewFeeHandler(feeRecorder)
	if err != nil {
		logger.Fatalf("fee handler error: %v", err)
	}

	jobsHandler := apihttp.NewJobsHandler(
		func(r *http.Request) (any, error) { return consolidationJob.Run(r.Context()) },
		func(r *http.Request) (any, error) { return overdueJob.Run(r.Context()) },
		func(r *http.Request) (any, error) { return sweeper.Run(r.Context()) },
	)

	jobChain := []scheduler.Job{
		{Name: "consolidate_fees", Run: func(ctx context.Context) error {
			_, err := consolidationJob.Run(ctx)
			return err
		}},
		{Name: "collect_overdue", Run: func(ctx context.Context) error {
			_, err := overdueJob.Run(ctx)
			return err
		}},
		{Name: "check_delinquents", Run: func(ctx context.Context) error {
			_, err := sweeper.Run(ctx)
			return err
		}},
	}
	jobScheduler := scheduler.NewScheduler(jobChain, delinquencyCfg.DailyAt, logger)
	go jobScheduler.Start(context.Background())

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, []string{"/webhooks/"})
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), policy)

	mux := http.NewServeMux()
	mux.Handle("/webhooks/gateway/balance", webhookHandler)
	mux.Handle("/api/v1/topups", topUpHandler)
	mux.Handle("/api/v1/fees", feeHandler)
	mux.Handle("/api/v1/balance", apihttp.NewBalanceHandler(ledgerService))
	mux.Handle("/api/v1/transactions", apihttp.NewTransactionsHandler(ledgerService))
	mux.Handle("/api/v1/invoices", apihttp.NewInvoicesHandler(invoiceRepo))
	mux.Handle("/api/v1/statements/", apihttp.NewStatementExportHandler(statementService))
	mux.Handle("/api/v1/admin/balance", adminBalanceHandler)
	mux.Handle("/api/v1/admin/merchants", merchantsHandler)
	mux.Handle("/api/v1/jobs/", jobsHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(authMiddleware.Wrap(mux), logger)}
	logger.Printf("http listening on %s", cfg.HTTPAddr)
	logger.Fatal(server.ListenAndServe())
}

type config struct {
	DatabaseURL         string
	HTTPAddr            string
	PlatformTZ          string
	GatewayBaseURL      string
	GatewayAPIKey       string
	GatewayWebhookToken string
	JWTSecret           string
}

func loadConfig() config {
	cfg := config{
		DatabaseURL:         getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:            getenvDefault("HTTP_ADDR", ":8080"),
		PlatformTZ:          getenvDefault("PLATFORM_TZ", "America/Sao_Paulo"),
		GatewayBaseURL:      getenvDefault("GATEWAY_BASE_URL", ""),
		GatewayAPIKey:       getenvDefault("GATEWAY_API_KEY", ""),
		GatewayWebhookToken: getenvDefault("GATEWAY_WEBHOOK_TOKEN", ""),
		JWTSecret:           getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL or PG_DSN is required")
	}
	if cfg.GatewayBaseURL == "" {
		log.Fatal("GATEWAY_BASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		log.Fatal("AUTH_JWT_SECRET is required")
	}
	return cfg
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
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
