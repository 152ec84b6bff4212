// cmd/server/main.go
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"subvault/internal/auth"
	authhttp "subvault/internal/auth/transport/http"
	"subvault/internal/config"
	"subvault/internal/event"
	"subvault/internal/ledger"
	"subvault/internal/ledger/memory"
	ledgerrepository "subvault/internal/ledger/repository"
	ledgerhttp "subvault/internal/ledger/transport/http"
	"subvault/internal/logger"
	"subvault/internal/metrics"
	"subvault/internal/notify"
	notifyrepository "subvault/internal/notify/repository"
	notifyhttp "subvault/internal/notify/transport/http"
	subscriptionservice "subvault/internal/subscription/service"
	subscriptionhttp "subvault/internal/subscription/transport/http"
	"subvault/pkg/db"
	"subvault/pkg/jwt"
	"subvault/pkg/middleware"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(log)
	log.Info("subvault starting", "ledger", cfg.LedgerBackend, "program_id", cfg.ProgramID, "devnet", cfg.Devnet)

	metrics.InitMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, contacts, database, err := openStorage(ctx, cfg)
	if err != nil {
		log.Error("storage init failed", "error", err)
		os.Exit(1)
	}
	if database != nil {
		defer database.Close()
	}

	// --- services ---
	bus := event.NewMemoryBus()
	subService := subscriptionservice.NewService(store, subscriptionservice.Config{
		ProgramID:     cfg.ProgramID,
		Mint:          cfg.TokenMint,
		ValidatorVote: cfg.ValidatorVote,
		FeeAmount:     cfg.FeeAmount,
	}, bus, log)

	cipher, err := notify.NewCipher(cfg.EncryptionSecret)
	if err != nil {
		log.Error("contact cipher init failed", "error", err)
		os.Exit(1)
	}
	var mailer notify.Mailer = notify.NewLogMailer(log)
	if cfg.MailerEnabled() {
		mailer, err = notify.NewPostmarkMailer(notify.PostmarkConfig{
			ServerToken:  cfg.PostmarkServerToken,
			AccountToken: cfg.PostmarkAccountToken,
			From:         cfg.MailFrom,
			ReplyTo:      cfg.MailReplyTo,
		})
		if err != nil {
			log.Error("mailer init failed", "error", err)
			os.Exit(1)
		}
	}
	notifier := notify.NewService(contacts, cipher, mailer, cfg.ExplorerURL, log)
	notifier.Subscribe(bus)

	scheduler, err := notify.NewScheduler(cfg.LowBalanceSchedule, notify.NewLowBalanceJob(subService, notifier, log))
	if err != nil {
		log.Error("scheduler init failed", "error", err)
		os.Exit(1)
	}
	scheduler.Start()

	tokens := jwt.NewManager(cfg.JWTSecret, cfg.JWTTTL)
	authService := auth.NewService(tokens, auth.DefaultChallengeTTL, log)

	authHandler := authhttp.NewHandler(authService)
	subHandler := subscriptionhttp.NewHandler(subService)
	ledgerHandler := ledgerhttp.NewHandler(store, cfg.Devnet)
	notifyHandler := notifyhttp.NewHandler(notifier)

	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, log)
	limiter.StartCleanup(10*time.Minute, ctx.Done())

	// --- router ---
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.Metrics("/health", "/metrics"))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})
	r.Group(func(mr chi.Router) {
		mr.Use(middleware.BasicAuth(cfg.MetricsUser, cfg.MetricsPasswordHash))
		mr.Handle("/metrics", promhttp.Handler())
	})

	r.Group(func(ar chi.Router) {
		ar.Use(limiter.Middleware)
		ar.Use(middleware.ValidateRequest)

		ar.Post("/auth/challenge", authHandler.Challenge)
		ar.Post("/auth/verify", authHandler.Verify)

		subHandler.PublicRoutes(ar)
		ledgerHandler.PublicRoutes(ar)

		// wallet-authenticated routes
		ar.Group(func(pr chi.Router) {
			pr.Use(middleware.JWTAuth(tokens))
			subHandler.WalletRoutes(pr)
			ledgerHandler.WalletRoutes(pr)
			notifyHandler.Routes(pr)
		})
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		log.Info("shutdown signal received, starting graceful shutdown")
		shutdown(server, scheduler, log)
	}()

	log.Info("server running", "addr", cfg.HTTPAddr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("server failed", "error", err)
		os.Exit(1)
	}
}

// openStorage picks the ledger and contact stores for the configured backend.
func openStorage(ctx context.Context, cfg *config.Config) (ledger.Store, notify.ContactRepository, *sql.DB, error) {
	if cfg.LedgerBackend == config.BackendMemory {
		return memory.NewStore(), notifyrepository.NewMemoryContactRepository(), nil, nil
	}
	database, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, nil, err
	}
	store := ledgerrepository.NewPostgresStore(database)
	if err := store.EnsureSchema(ctx); err != nil {
		database.Close()
		return nil, nil, nil, err
	}
	contacts := notifyrepository.NewPostgresContactRepository(database)
	if err := contacts.EnsureSchema(ctx); err != nil {
		database.Close()
		return nil, nil, nil, err
	}
	return store, contacts, database, nil
}

func shutdown(server *http.Server, scheduler *notify.Scheduler, log *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("server shutdown failed", "error", err)
	}
	scheduler.Stop(ctx)
	log.Info("server stopped")
}
