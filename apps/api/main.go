package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	companieshandler "github.com/harmony-hq/harmony/domains/companies/be/handler"
	companiesprov "github.com/harmony-hq/harmony/domains/companies/be/provisioning"
	companiesrepo "github.com/harmony-hq/harmony/domains/companies/be/repo"
	companiesservice "github.com/harmony-hq/harmony/domains/companies/be/service"
	customershandler "github.com/harmony-hq/harmony/domains/customers/be/handler"
	customersrepo "github.com/harmony-hq/harmony/domains/customers/be/repo"
	customersservice "github.com/harmony-hq/harmony/domains/customers/be/service"
	logshandler "github.com/harmony-hq/harmony/domains/logs/be/handler"
	logsrepo "github.com/harmony-hq/harmony/domains/logs/be/repo"
	logsservice "github.com/harmony-hq/harmony/domains/logs/be/service"
	schedulinghandler "github.com/harmony-hq/harmony/domains/scheduling/be/handler"
	schedulingservice "github.com/harmony-hq/harmony/domains/scheduling/be/service"
	shiftsrepo "github.com/harmony-hq/harmony/domains/shifts/be/repo"
	shiftsservice "github.com/harmony-hq/harmony/domains/shifts/be/service"
	stallsrepo "github.com/harmony-hq/harmony/domains/stalls/be/repo"
	stallsservice "github.com/harmony-hq/harmony/domains/stalls/be/service"
	usershandler "github.com/harmony-hq/harmony/domains/users/be/handler"
	usersrepo "github.com/harmony-hq/harmony/domains/users/be/repo"
	usersservice "github.com/harmony-hq/harmony/domains/users/be/service"
	workershandler "github.com/harmony-hq/harmony/domains/workers/be/handler"
	workersrepo "github.com/harmony-hq/harmony/domains/workers/be/repo"
	workersservice "github.com/harmony-hq/harmony/domains/workers/be/service"

	"github.com/harmony-hq/harmony/contracts"
	"github.com/harmony-hq/harmony/platform/go/auditstamp"
	platformauth "github.com/harmony-hq/harmony/platform/go/auth"
	platformlogging "github.com/harmony-hq/harmony/platform/go/logging"
	"github.com/harmony-hq/harmony/platform/go/metrics"
	platformmiddleware "github.com/harmony-hq/harmony/platform/go/middleware"
	"github.com/harmony-hq/harmony/platform/go/notify"
	"github.com/harmony-hq/harmony/platform/go/persistence"
	tenantmiddleware "github.com/harmony-hq/harmony/platform/go/tenant/middleware"
	"github.com/harmony-hq/harmony/platform/go/validation"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

type config struct {
	Port                string        `env:"PORT" envDefault:"3000"`
	ShutdownTimeout     time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	RequestTimeout      time.Duration `env:"REQUEST_TIMEOUT" envDefault:"15s"`
	LogLevel            string        `env:"LOG_LEVEL" envDefault:"info"`
	LogSampleInitial    int           `env:"LOG_SAMPLE_INITIAL" envDefault:"100"`
	LogSampleThereafter int           `env:"LOG_SAMPLE_THEREAFTER" envDefault:"100"`
	DatabaseURL         string        `env:"DATABASE_URL,required"`
	DBMaxConns          int32         `env:"DB_MAX_CONNS" envDefault:"20"`
	DBConnectWait       time.Duration `env:"DB_CONNECT_WAIT" envDefault:"30s"`
	RootSchema          string        `env:"ROOT_SCHEMA" envDefault:"harmony"`
	AuthProvider        string        `env:"AUTH_PROVIDER" envDefault:"jwt"` // jwt | dev
	JWTSecret           string        `env:"JWT_SECRET"`
	TokenTTL            time.Duration `env:"TOKEN_TTL" envDefault:"336h"`
	TenantCacheTTL      time.Duration `env:"TENANT_CACHE_TTL" envDefault:"1m"`
	KafkaBrokers        []string      `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic          string        `env:"KAFKA_TOPIC" envDefault:"harmony.events"`
	MetricsEnabled      bool          `env:"METRICS_ENABLED" envDefault:"true"`
	Timezone            string        `env:"TIMEZONE" envDefault:"America/Bogota"`
	CORSOrigins         []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
}

func main() {
	ctx := context.Background()

	// A missing .env is fine; the environment wins either way.
	_ = godotenv.Load()

	var cfg config
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := platformlogging.NewLogger(platformlogging.Config{
		Component:        "api-server",
		Version:          version,
		Level:            cfg.LogLevel,
		SampleInitial:    cfg.LogSampleInitial,
		SampleThereafter: cfg.LogSampleThereafter,
	})
	if err != nil {
		log.Fatalf("init zap logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	clock, err := auditstamp.New(cfg.Timezone)
	if err != nil {
		logger.Fatal("load timezone", zap.String("timezone", cfg.Timezone), zap.Error(err))
	}

	pool, err := persistence.NewPool(ctx, persistence.PoolConfig{
		ConnString:      cfg.DatabaseURL,
		ApplicationName: "harmony-api",
		TimeZone:        cfg.Timezone,
		MaxConns:        cfg.DBMaxConns,
		ConnectWait:     cfg.DBConnectWait,
	})
	if err != nil {
		logger.Fatal("init postgres pool", zap.Error(err))
	}
	defer persistence.ClosePool(pool)

	companyDB := persistence.NewCompanyDB(persistence.CompanyDBConfig{
		Pool:       pool,
		RootSchema: cfg.RootSchema,
	})
	validate := validation.New()
	documents := persistence.MustNewDocumentValidator()
	tokens := buildTokenManager(cfg, logger)

	var appMetrics *metrics.Metrics
	if cfg.MetricsEnabled {
		appMetrics = metrics.New("harmony-api")
	}

	hub := notify.NewHub(logger.Named("hub"), notify.HubConfig{AllowedOrigins: cfg.CORSOrigins})
	notifier := notify.Fanout{hub}
	var kafka *notify.KafkaPublisher
	if len(cfg.KafkaBrokers) > 0 {
		kafka = notify.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger.Named("kafka"))
		notifier = append(notifier, kafka)
		logger.Info("kafka notifications enabled", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
	}

	companyRepo := companiesrepo.NewPostgresRepository(companyDB)
	companyService := companiesservice.New(
		companyRepo,
		companiesprov.NewDBProvisioner(pool),
		clock,
		validate,
		documents,
		cfg.RootSchema,
	)
	companyHTTPHandler := companieshandler.New(companyService, notifier, logger)

	userStore, err := persistence.NewUserStore(companyDB)
	if err != nil {
		logger.Fatal("init user store", zap.Error(err))
	}
	userService := usersservice.New(usersservice.Config{
		Repo:      usersrepo.NewPostgresRepository(userStore),
		Tokens:    tokens,
		Clock:     clock,
		Validator: validate,
	})
	userHTTPHandler := usershandler.New(userService, notifier, logger)

	logService := logsservice.New(logsrepo.NewPostgresRepository(companyDB), clock)
	logHTTPHandler := logshandler.New(logService, validate, logger)

	stallService := stallsservice.New(stallsrepo.NewPostgresRepository(companyDB), clock, validate, documents)
	shiftService := shiftsservice.New(shiftsrepo.NewPostgresRepository(companyDB), clock, documents)
	coordinator := schedulingservice.New(schedulingservice.Config{
		Stalls:   stallService,
		Shifts:   shiftService,
		Log:      logService,
		Notifier: notifier,
		Metrics:  appMetrics,
		Clock:    clock,
		Logger:   logger.Named("scheduling"),
	})
	schedulingHTTPHandler := schedulinghandler.New(coordinator, validate, logger)

	customerService := customersservice.New(customersservice.Config{
		Repo:      customersrepo.NewPostgresRepository(companyDB),
		Fields:    companyService,
		Log:       logService,
		Notifier:  notifier,
		Clock:     clock,
		Validator: validate,
		Logger:    logger.Named("customers"),
	})
	customerHTTPHandler := customershandler.New(customerService, logger)

	workerService := workersservice.New(workersservice.Config{
		Repo:      workersrepo.NewPostgresRepository(companyDB),
		Fields:    companyService,
		Log:       logService,
		Notifier:  notifier,
		Clock:     clock,
		Validator: validate,
		Logger:    logger.Named("workers"),
	})
	workerHTTPHandler := workershandler.New(workerService, logger)

	schedulingSpec, err := platformmiddleware.LoadContract(ctx, contracts.Scheduling)
	if err != nil {
		logger.Fatal("load scheduling contract", zap.Error(err))
	}
	logSecuritySchemes(logger, "scheduling", schedulingSpec)

	authMiddleware := buildAuthMiddleware(cfg, tokens, logger)

	rootRouter := chi.NewRouter()

	rootRouter.Use(
		chimw.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
	)
	rootRouter.Use(platformlogging.RequestLogger(logger))
	if appMetrics != nil {
		rootRouter.Use(appMetrics.Middleware)
	}
	rootRouter.Use(platformmiddleware.DefaultCORS(cfg.CORSOrigins))

	if appMetrics != nil {
		rootRouter.Method(http.MethodGet, "/metrics", appMetrics.Handler())
	}

	rootRouter.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	rootRouter.Get("/readyz", readinessHandler(pool, logger))

	// ---- Swagger UI + OpenAPI JSON (public) ----
	registerDocsRoutes(rootRouter, map[string]*openapi3.T{"scheduling": schedulingSpec}, logger)

	// The socket outlives REQUEST_TIMEOUT, so it stays outside the API router.
	rootRouter.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Use(platformmiddleware.RequestTrace)
		r.Get("/ws", hub.ServeWS)
	})

	apiRouter := chi.NewRouter()
	apiRouter.Use(chimw.Timeout(cfg.RequestTimeout))
	apiRouter.Use(authMiddleware)
	apiRouter.Use(platformmiddleware.RequestTrace)
	apiRouter.Use(tenantmiddleware.WithCompanySpace(companyService, tenantmiddleware.Config{
		CacheTTL: cfg.TenantCacheTTL,
		Logger:   logger,
	}))

	userHTTPHandler.PublicRoutes(apiRouter)

	apiRouter.Group(func(r chi.Router) {
		r.Use(platformmiddleware.ContractValidator(schedulingSpec))
		schedulingHTTPHandler.Routes(r)
	})

	companyHTTPHandler.Routes(apiRouter)
	userHTTPHandler.Routes(apiRouter)
	customerHTTPHandler.Routes(apiRouter)
	workerHTTPHandler.Routes(apiRouter)
	logHTTPHandler.Routes(apiRouter)

	rootRouter.Mount("/api/v1", apiRouter)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      rootRouter,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  2 * time.Minute,
	}

	go func() {
		logger.Info("starting api server", zap.String("port", cfg.Port))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server listen failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}

	// Pending audit entries and notifications drain before the sinks close.
	coordinator.Close()
	customerService.Close()
	workerService.Close()
	hub.Close()
	if kafka != nil {
		kafka.Close()
	}
	logger.Info("api server stopped")
}

func readinessHandler(pool *pgxpool.Pool, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := pool.Ping(ctx); err != nil {
			platformlogging.FromRequest(r, logger).Warn("readiness check failed", zap.Error(err))
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

func logSecuritySchemes(logger *zap.Logger, name string, spec *openapi3.T) {
	names := make([]string, 0, len(spec.Components.SecuritySchemes))
	for scheme := range spec.Components.SecuritySchemes {
		names = append(names, scheme)
	}
	logger.Info("loaded security schemes", zap.String("contract", name), zap.Strings("names", names))
}

// buildTokenManager signs login tokens. The dev provider tolerates a missing secret.
func buildTokenManager(cfg config, logger *zap.Logger) *platformauth.TokenManager {
	secret := cfg.JWTSecret
	if secret == "" {
		if cfg.AuthProvider != "dev" {
			logger.Fatal("JWT_SECRET is required when AUTH_PROVIDER=jwt")
		}
		logger.Warn("JWT_SECRET not set; using an insecure development secret")
		secret = "harmony-dev-secret"
	}
	return platformauth.NewTokenManager(secret, cfg.TokenTTL)
}
