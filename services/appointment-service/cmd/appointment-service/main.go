package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/md-rashed-zaman/homelube/libs/auth"
	"github.com/md-rashed-zaman/homelube/libs/config"
	"github.com/md-rashed-zaman/homelube/libs/db"
	"github.com/md-rashed-zaman/homelube/libs/grpcx"
	"github.com/md-rashed-zaman/homelube/libs/httpx"
	"github.com/md-rashed-zaman/homelube/libs/kafkax"
	otelx "github.com/md-rashed-zaman/homelube/libs/otel"
	"github.com/md-rashed-zaman/homelube/libs/runtime"
	"github.com/md-rashed-zaman/homelube/services/appointment-service/internal/calendar"
	"github.com/md-rashed-zaman/homelube/services/appointment-service/internal/handlers"
	"github.com/md-rashed-zaman/homelube/services/appointment-service/internal/inbox"
	"github.com/md-rashed-zaman/homelube/services/appointment-service/internal/lifecycle"
	"github.com/md-rashed-zaman/homelube/services/appointment-service/internal/metrics"
	"github.com/md-rashed-zaman/homelube/services/appointment-service/internal/outbox"
	"github.com/md-rashed-zaman/homelube/services/appointment-service/internal/reminder"
	"github.com/md-rashed-zaman/homelube/services/appointment-service/internal/storage"
	"github.com/md-rashed-zaman/homelube/services/appointment-service/internal/templates"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	if err := config.LoadDotenv(); err != nil {
		panic(err)
	}
	service := config.String("SERVICE_NAME", "appointment-service")
	port, err := config.Port("PORT", "5000")
	if err != nil {
		panic(err)
	}
	grpcPort, err := config.Port("GRPC_PORT", "9090")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.ShutdownContext(context.Background(), logger)
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.LoadConfig(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	var (
		store      lifecycle.Store
		inboxStore lifecycle.Inbox
		checks     []runtime.ReadyCheck
	)
	switch driver := strings.ToLower(config.String("STORE_DRIVER", "postgres")); driver {
	case "memory":
		logger.Warn("using in-memory store; data is lost on restart")
		store = storage.NewMemoryStore()
		inboxStore = inbox.NewMemory()
	case "postgres":
		dbURL, err := config.RequiredString("DATABASE_URL")
		if err != nil {
			panic(err)
		}
		if config.Bool("RUN_MIGRATIONS", true) {
			if err := storage.RunMigrations(dbURL); err != nil {
				logger.Error("migrations failed", "err", err)
				panic(err)
			}
		}
		pool, err := db.Open(ctx, dbURL)
		if err != nil {
			logger.Error("db connection failed", "err", err)
			panic(err)
		}
		defer pool.Close()

		outboxRepo := outbox.NewRepository()
		pgStore := storage.NewPostgresStore(pool, outboxRepo)
		store = pgStore
		inboxStore = inbox.NewRepository(pool)
		checks = append(checks, runtime.ReadyCheck{Name: "db", Check: pgStore.ReadyCheck()})

		brokers := config.String("KAFKA_BROKERS", "")
		publisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
			Brokers:   brokers,
			PollEvery: config.Duration("OUTBOX_POLL_INTERVAL", 2*time.Second),
			BatchSize: 50,
		})
		if publisher.Enabled() {
			go publisher.Run(ctx)
			checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
		} else {
			logger.Warn("KAFKA_BROKERS not set; lifecycle events stay in the outbox")
		}
	default:
		logger.Error("unknown STORE_DRIVER", "driver", driver)
		panic("STORE_DRIVER must be postgres or memory")
	}

	renderer, err := templates.New(templates.Config{
		CompanyName:   config.String("COMPANY_NAME", "HomeLube"),
		SupportPhone:  config.String("SUPPORT_PHONE", config.String("VONAGE_PHONE_NUMBER", "")),
		FrontendURL:   config.String("FRONTEND_URL", "http://localhost:3000"),
		PublicBaseURL: config.String("PUBLIC_BASE_URL", "http://localhost:"+port),
	})
	if err != nil {
		panic(err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.NewCollector(registry)

	svc := lifecycle.New(lifecycle.Deps{
		Store:     store,
		Inbox:     inboxStore,
		Email:     newEmailSender(logger),
		SMS:       newSmsSender(logger),
		Invites:   calendar.NewBuilder(renderer),
		Templates: renderer,
		Metrics:   recorder,
		Logger:    logger,
	})

	limiters := newRateLimiters(logger)
	if limiters.ready != nil {
		checks = append(checks, *limiters.ready)
	}

	var verifier auth.Verifier
	verifier.Secret = config.String("JWT_SECRET", "")
	if jwksURL := config.String("JWKS_URL", ""); jwksURL != "" {
		verifier.JWKS = auth.NewJWKSClient(jwksURL, time.Duration(config.Int("JWKS_CACHE_SECONDS", 300))*time.Second)
	}
	if !verifier.Enabled() {
		logger.Warn("JWT_SECRET and JWKS_URL not set; operator endpoints will reject every request")
	}
	webhookSecret := config.String("WEBHOOK_SECRET", "")
	if webhookSecret == "" {
		logger.Warn("WEBHOOK_SECRET not set; webhook signatures are not verified")
	}

	bodyLimit := int64(config.Int("REQUEST_BODY_LIMIT_BYTES", 1<<20))
	api := handlers.NewRouter(handlers.RouterDeps{
		Service:        svc,
		Logger:         logger,
		Verifier:       verifier,
		WebhookSecret:  webhookSecret,
		BookingLimiter: limiters.booking,
		WebhookLimiter: limiters.webhook,
		MaxBodyBytes:   bodyLimit,
	})

	mux := runtime.NewBaseMuxWithReady(checks...)
	mux.Handle("/metrics", metrics.Handler(registry))
	mux.Handle("/api/", api)

	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: config.List("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type", "Authorization", auth.SignatureHeader, "X-Request-ID"},
			MaxAge:         10 * time.Minute,
		}),
		httpx.WithRecover(logger),
		httpx.WithBodyLimit(bodyLimit),
		httpx.WithTimeout(time.Duration(config.Int("REQUEST_TIMEOUT_SECONDS", 30))*time.Second),
	)
	handler = otelhttp.NewHandler(handler, "appointment")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	health := grpcx.NewHealthServer(logger, 10*time.Second, checks...)
	go func() {
		if err := health.Serve(ctx, ":"+grpcPort); err != nil {
			logger.Error("grpc health server error", "err", err)
		}
	}()

	job, err := reminder.NewJob(svc, logger, reminder.Config{
		Spec: config.String("REMINDER_CRON", "*/15 * * * *"),
		Lead: config.Duration("REMINDER_LEAD_TIME", 24*time.Hour),
	})
	if err != nil {
		panic(err)
	}
	go func() {
		if err := job.Run(ctx); err != nil {
			logger.Error("reminder job error", "err", err)
		}
	}()

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
