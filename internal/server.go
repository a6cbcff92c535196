package internal

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redis_rate/v9"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"

	"github.com/2beens/gymtracker/internal/auth"
	"github.com/2beens/gymtracker/internal/config"
	"github.com/2beens/gymtracker/internal/db"
	"github.com/2beens/gymtracker/internal/middleware"
	"github.com/2beens/gymtracker/internal/progress"
	"github.com/2beens/gymtracker/internal/remote"
	"github.com/2beens/gymtracker/internal/securestore"
	"github.com/2beens/gymtracker/internal/telemetry/metrics"
	"github.com/2beens/gymtracker/internal/telemetry/tracing"
	"github.com/2beens/gymtracker/internal/workout"
	"github.com/2beens/gymtracker/pkg"
)

type Server struct {
	httpServer        *http.Server
	metricsHttpServer *http.Server
	versionInfo       string

	config      *config.Config
	dbPool      *pgxpool.Pool
	redisClient *redis.Client
	store       *securestore.Store
	closeStore  func() error

	loginChecker    auth.Checker
	authService     *auth.Service
	progressService *progress.Service
	orchestrator    *workout.Orchestrator

	// metrics
	metricsManager *metrics.Manager
	promRegistry   *prometheus.Registry
	otelShutdown   func()
}

type NewServerParams struct {
	Config                  *config.Config
	VersionInfo             string
	RedisPassword           string
	PostgresPassword        string
	HoneycombTracingEnabled bool
}

func NewServer(
	ctx context.Context,
	params NewServerParams,
) (*Server, error) {
	cfg := params.Config

	rdb := redis.NewClient(&redis.Options{
		Addr:     net.JoinHostPort(cfg.RedisHost, cfg.RedisPort),
		Password: params.RedisPassword,
		DB:       0, // use default DB
	})

	rdbStatus := rdb.Ping(ctx)
	if err := rdbStatus.Err(); err != nil {
		log.Errorf("--> failed to ping redis: %s", err)
	} else {
		log.Debugf("redis ping: %s", rdbStatus.Val())
	}

	var dbPool *pgxpool.Pool
	var pgxpoolCollector prometheus.Collector
	if cfg.RemoteSyncEnabled {
		var err error
		dbPool, err = db.NewDBPool(ctx, db.NewDBPoolParams{
			DBHost:         cfg.PostgresHost,
			DBPort:         cfg.PostgresPort,
			DBName:         cfg.PostgresDBName,
			DBUser:         cfg.PostgresUser,
			DBPassword:     params.PostgresPassword,
			TracingEnabled: params.HoneycombTracingEnabled,
		})
		if err != nil {
			return nil, fmt.Errorf("new db pool: %w", err)
		}
		if err := dbPool.Ping(ctx); err != nil {
			log.Warnf("failed to ping db: %s", err)
		}
		pgxpoolCollector = db.NewPoolCollector(dbPool, cfg.PostgresDBName)
	} else {
		log.Warnln("remote sync disabled, running in local only mode")
	}

	promRegistry := metrics.SetupPrometheus(pgxpoolCollector)
	metricsManager := metrics.NewManager("backend", "gymtracker", promRegistry)
	metricsManager.GaugeLifeSignal.Set(0)

	// use honeycomb distro to setup OpenTelemetry SDK
	otelShutdown, err := tracing.HoneycombSetup(params.HoneycombTracingEnabled, "gymtracker-backend", rdb)
	if err != nil {
		return nil, err
	}

	storeParams := cfg.StoreOpenParams()
	storeParams.RedisClient = rdb
	store, closeStore, err := securestore.Open(ctx, storeParams, metricsManager)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	authService := auth.NewAuthService(auth.NewServiceParams{
		Store:          store,
		Guard:          auth.NewAttemptGuard(store),
		RedisClient:    rdb,
		TTL:            cfg.SessionTTL.Duration,
		HashCost:       cfg.PasswordHashCost,
		MetricsManager: metricsManager,
	})
	go func() {
		ticker := time.NewTicker(time.Hour * 8)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				authService.ScanAndClean(ctx)
			}
		}
	}()

	var progressService *progress.Service
	if dbPool != nil {
		psqlClient := remote.NewPsqlClient(dbPool)
		if err := psqlClient.Migrate(ctx); err != nil {
			log.Errorf("remote schema migration failed: %s", err)
		}
		progressService = progress.NewService(store, psqlClient, metricsManager)
	} else {
		progressService = progress.NewService(store, nil, metricsManager)
	}

	return &Server{
		config:      cfg,
		versionInfo: params.VersionInfo,
		dbPool:      dbPool,
		redisClient: rdb,
		store:       store,
		closeStore:  closeStore,

		loginChecker:    auth.NewLoginChecker(cfg.SessionTTL.Duration, rdb),
		authService:     authService,
		progressService: progressService,
		orchestrator:    workout.NewOrchestrator(progressService),

		// telemetry
		metricsManager: metricsManager,
		promRegistry:   promRegistry,
		otelShutdown:   otelShutdown,
	}, nil
}

func (s *Server) routerSetup() *mux.Router {
	r := mux.NewRouter()
	r.Use(otelmux.Middleware("main-router"))

	r.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		pkg.WriteTextResponseOK(w, "gymtracker")
	}).Methods("GET", "OPTIONS").Name("root")
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		pkg.WriteJSONOK(w, map[string]any{
			"version":       s.versionInfo,
			"remoteEnabled": s.progressService.RemoteEnabled(),
		})
	}).Methods("GET", "OPTIONS").Name("health")

	authHandler := auth.NewHandler(s.authService)
	authRouter := r.PathPrefix("/a").Subrouter()
	authRouter.HandleFunc("/signup", authHandler.HandleSignup).Methods("POST", "OPTIONS").Name("signup")
	authRouter.HandleFunc("/login", authHandler.HandleLogin).Methods("POST", "OPTIONS").Name("login")
	authRouter.HandleFunc("/logout", authHandler.HandleLogout).Methods("GET", "OPTIONS").Name("logout")
	authRouter.Use(middleware.RateLimit(
		redis_rate.NewLimiter(s.redisClient),
		"auth",
		s.config.LoginRateLimitAllowedPerMin,
		s.metricsManager,
	))

	progressHandler := progress.NewHandler(s.progressService)
	r.HandleFunc("/progression", progressHandler.HandleGetProgression).Methods("GET", "OPTIONS").Name("get-progression")
	r.HandleFunc("/progression", progressHandler.HandleUpdateProgression).Methods("PUT", "OPTIONS").Name("update-progression")
	r.HandleFunc("/progression/day/{day}", progressHandler.HandleCompleteDay).Methods("POST", "OPTIONS").Name("complete-day")
	r.HandleFunc("/history", progressHandler.HandleGetHistory).Methods("GET", "OPTIONS").Name("get-history")
	r.HandleFunc("/history", progressHandler.HandleSaveSession).Methods("POST", "OPTIONS").Name("save-session")
	r.HandleFunc("/weight", progressHandler.HandleGetWeightTracking).Methods("GET", "OPTIONS").Name("get-weight")
	r.HandleFunc("/weight/goal", progressHandler.HandleSetWeightGoal).Methods("POST", "OPTIONS").Name("weight-goal")
	r.HandleFunc("/weight/checkin", progressHandler.HandleAddCheckIn).Methods("POST", "OPTIONS").Name("weight-checkin")
	r.HandleFunc("/weight/checkin/needed", progressHandler.HandleCheckInNeeded).Methods("GET", "OPTIONS").Name("weight-checkin-needed")
	r.HandleFunc("/sync", progressHandler.HandleSync).Methods("POST", "OPTIONS").Name("sync")
	r.HandleFunc("/sync/import", progressHandler.HandleImportFromBackend).Methods("POST", "OPTIONS").Name("sync-import")

	workoutHandler := workout.NewHandler(s.orchestrator)
	r.HandleFunc("/workout", workoutHandler.HandleActive).Methods("GET", "OPTIONS").Name("active-workout")
	r.HandleFunc("/workout/start", workoutHandler.HandleStart).Methods("POST", "OPTIONS").Name("start-workout")
	r.HandleFunc("/workout/finish", workoutHandler.HandleFinish).Methods("POST", "OPTIONS").Name("finish-workout")
	r.HandleFunc("/workout/cancel", workoutHandler.HandleCancel).Methods("POST", "OPTIONS").Name("cancel-workout")
	r.HandleFunc("/workout/exercise/{idx}", workoutHandler.HandleUpdateExercise).Methods("PUT", "OPTIONS").Name("update-exercise")
	r.HandleFunc("/workout/exercise/{idx}", workoutHandler.HandleRemoveExercise).Methods("DELETE", "OPTIONS").Name("remove-exercise")
	r.HandleFunc("/workout/exercise/{idx}/toggle", workoutHandler.HandleToggleExercise).Methods("POST", "OPTIONS").Name("toggle-exercise")

	dataHandler := securestore.NewHandler(s.store)
	r.HandleFunc("/data/export", dataHandler.HandleExport).Methods("GET", "OPTIONS").Name("export")
	r.HandleFunc("/data/import", dataHandler.HandleImport).Methods("POST", "OPTIONS").Name("import")
	r.HandleFunc("/data/backup", dataHandler.HandleFullBackup).Methods("GET", "OPTIONS").Name("full-backup")
	r.HandleFunc("/data/stats", dataHandler.HandleStats).Methods("GET", "OPTIONS").Name("store-stats")

	// all the rest - unhandled paths
	r.HandleFunc("/{unknown}", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}).Methods("GET", "POST", "PUT", "OPTIONS").Name("unknown")

	authMiddleware := middleware.NewAuthMiddlewareHandler(s.loginChecker)

	r.Use(middleware.PanicRecovery(s.metricsManager))
	r.Use(middleware.LogRequest())
	r.Use(middleware.RequestMetrics(s.metricsManager))
	r.Use(middleware.Cors(s.config.CorsAllowedOrigins...))
	r.Use(authMiddleware.AuthCheck())
	r.Use(middleware.DrainAndCloseRequest())

	return r
}

func (s *Server) Serve(host string, port int) {
	router := s.routerSetup()

	ipAndPort := net.JoinHostPort(host, strconv.Itoa(port))
	s.httpServer = &http.Server{
		Handler:      router,
		Addr:         ipAndPort,
		WriteTimeout: time.Minute,
		ReadTimeout:  time.Minute,
		ConnState:    s.connStateMetrics,
	}

	metricsRouter := mux.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.InstrumentMetricHandler(
		s.promRegistry,
		promhttp.HandlerFor(s.promRegistry, promhttp.HandlerOpts{}),
	))
	metricsAddr := net.JoinHostPort(s.config.PrometheusMetricsHost, s.config.PrometheusMetricsPort)
	s.metricsHttpServer = &http.Server{
		Addr:    metricsAddr,
		Handler: metricsRouter,
	}

	go func() {
		log.Infof(" > server listening on: [%s]", ipAndPort)
		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("main service, listen and serve: %s", err)
		}
	}()

	go func() {
		log.Debugf(" > metrics listening on: [%s]", metricsAddr)
		err := s.metricsHttpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("metrics service, listen and serve: %s", err)
		}
	}()

	s.metricsManager.GaugeLifeSignal.Set(1)
}

func (s *Server) GracefulShutdown() {
	log.Debug("graceful shutdown initiated ...")

	s.metricsManager.GaugeLifeSignal.Set(0)

	maxWaitDuration := time.Second * 15
	ctx, timeoutCancel := context.WithTimeout(context.Background(), maxWaitDuration)
	defer timeoutCancel()

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			log.Error(" >>> failed to gracefully shutdown http server")
		}
		log.Warnln("server shut down")
	}

	if s.metricsHttpServer != nil {
		if err := s.metricsHttpServer.Shutdown(ctx); err != nil {
			log.Error(" >>> failed to gracefully shutdown metrics http server")
		}
		log.Warnln("metrics server shut down")
	}

	s.otelShutdown()
	log.Trace("otel shut down ...")

	if err := s.closeStore(); err != nil {
		log.Errorf("failed to close store backend: %s", err)
	}

	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			log.Errorf("failed to close redis client conn: %s", err)
		}
	}

	if s.dbPool != nil {
		log.Debugln("closing db pool ...")
		s.dbPool.Close() // blocking operation
		log.Debugln("db pool closed")
	}

	if ok := sentry.Flush(5 * time.Second); ok {
		log.Debugf("sentry flush ok: %t", ok)
	}
}

func (s *Server) connStateMetrics(_ net.Conn, state http.ConnState) {
	switch state {
	case http.StateNew:
		s.metricsManager.GaugeRequests.Add(1)
	case http.StateClosed:
		s.metricsManager.GaugeRequests.Add(-1)
	default:
		// do nothing
	}
}
