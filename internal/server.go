package internal

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/IBM/pgxpoolprometheus"
	"github.com/getsentry/sentry-go"
	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redis_rate/v9"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/2beens/fittrack/internal/auth"
	"github.com/2beens/fittrack/internal/config"
	"github.com/2beens/fittrack/internal/db"
	"github.com/2beens/fittrack/internal/events"
	"github.com/2beens/fittrack/internal/jobs"
	"github.com/2beens/fittrack/internal/mailer"
	"github.com/2beens/fittrack/internal/middleware"
	"github.com/2beens/fittrack/internal/progress"
	"github.com/2beens/fittrack/internal/telemetry/metrics"
	"github.com/2beens/fittrack/internal/telemetry/tracing"
	"github.com/2beens/fittrack/internal/users"
	"github.com/2beens/fittrack/internal/workouts"
	"github.com/2beens/fittrack/pkg"
)

type Server struct {
	httpServer        *http.Server
	metricsHttpServer *http.Server

	config     *config.Config
	dbPool     *pgxpool.Pool
	sessionTTL time.Duration

	redisClient  *redis.Client
	loginChecker auth.Checker
	authService  *auth.Service

	mailer    mailer.Mailer
	publisher events.Publisher

	usersRepo  *users.Repo
	tokensRepo *users.TokensRepo

	scheduler  *jobs.Scheduler
	cancelJobs context.CancelFunc

	// metrics
	metricsManager *metrics.Manager
	promRegistry   *prometheus.Registry
	otelShutdown   func()
}

type NewServerParams struct {
	Config                  *config.Config
	JWTSecret               string
	DBPassword              string
	RedisPassword           string
	SMTPPassword            string
	HoneycombTracingEnabled bool
}

func NewServer(
	ctx context.Context,
	params NewServerParams,
) (*Server, error) {
	if params.JWTSecret == "" {
		return nil, errors.New("jwt secret not set")
	}

	sessionTTL, err := params.Config.SessionTTLDuration()
	if err != nil {
		return nil, err
	}

	dbPool, err := db.NewDBPool(ctx, db.NewDBPoolParams{
		DBHost:         params.Config.PostgresHost,
		DBPort:         params.Config.PostgresPort,
		DBName:         params.Config.PostgresDBName,
		DBUser:         params.Config.PostgresUser,
		DBPassword:     params.DBPassword,
		TracingEnabled: params.HoneycombTracingEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("new db pool: %w", err)
	}

	if err := dbPool.Ping(ctx); err != nil {
		log.Warnf("failed to ping db: %s", err)
	}

	if params.Config.PostgresMigrate {
		applied, err := db.Migrate(ctx, dbPool)
		if err != nil {
			return nil, fmt.Errorf("migrate db: %w", err)
		}
		log.Infof("db migrations applied: %d", applied)
	}

	pgxpoolCollector := pgxpoolprometheus.NewCollector(
		dbPool,
		map[string]string{"db_name": params.Config.PostgresDBName},
	)
	promRegistry := metrics.SetupPrometheus(pgxpoolCollector)
	metricsManager := metrics.NewManager("fittrack", "backend", promRegistry)
	metricsManager.GaugeLifeSignal.Set(0)

	rdb := redis.NewClient(&redis.Options{
		Addr:     net.JoinHostPort(params.Config.RedisHost, params.Config.RedisPort),
		Password: params.RedisPassword,
		DB:       0, // use default DB
	})

	rdbStatus := rdb.Ping(ctx)
	if err := rdbStatus.Err(); err != nil {
		log.Errorf("--> failed to ping redis: %s", err)
	} else {
		log.Debugf("redis ping: %s", rdbStatus.Val())
	}

	// use honeycomb distro to setup OpenTelemetry SDK
	otelShutdown, err := tracing.HoneycombSetup(params.HoneycombTracingEnabled, "fittrack-backend", rdb)
	if err != nil {
		return nil, err
	}

	tokenConfig := newTokenConfig(params.Config, params.JWTSecret)

	return &Server{
		config:     params.Config,
		dbPool:     dbPool,
		sessionTTL: sessionTTL,

		redisClient:  rdb,
		authService:  auth.NewAuthService(sessionTTL, tokenConfig, rdb),
		loginChecker: auth.NewLoginChecker(tokenConfig, rdb),

		mailer:    newMailer(params.Config, params.SMTPPassword, metricsManager),
		publisher: newPublisher(params.Config, metricsManager),

		usersRepo:  users.NewRepo(dbPool),
		tokensRepo: users.NewTokensRepo(dbPool),

		// telemetry
		metricsManager: metricsManager,
		promRegistry:   promRegistry,
		otelShutdown:   otelShutdown,
	}, nil
}

func newTokenConfig(cfg *config.Config, jwtSecret string) auth.TokenConfig {
	return auth.TokenConfig{
		Secret: jwtSecret,
		Issuer: cfg.JWTIssuer,
	}
}

// newMailer sends over SMTP when a host is configured, otherwise emails are only logged.
func newMailer(cfg *config.Config, smtpPassword string, metricsManager *metrics.Manager) mailer.Mailer {
	var m mailer.Mailer = mailer.LogMailer{}
	if cfg.SMTPHost != "" {
		m = mailer.NewSMTPMailer(mailer.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			User:     cfg.SMTPUser,
			Password: smtpPassword,
			From:     cfg.EmailFrom,
		})
	} else {
		log.Warnln("smtp host not set, emails will only be logged")
	}
	return mailer.NewInstrumentedMailer(m, metricsManager)
}

func newPublisher(cfg *config.Config, metricsManager *metrics.Manager) events.Publisher {
	if len(cfg.KafkaBrokers) == 0 {
		log.Warnln("kafka brokers not set, domain events will be dropped")
		return events.NopPublisher{}
	}
	return events.NewKafkaPublisher(cfg.KafkaBrokers, map[string]string{
		events.TypeWorkoutCompleted: cfg.KafkaWorkoutsTopic,
	}, metricsManager)
}

func (s *Server) routerSetup() (*mux.Router, error) {
	r := mux.NewRouter()
	r.Use(otelmux.Middleware("fittrack-router"))

	r.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		pkg.WriteTextResponseOK(w, "I'm OK, thanks ;)")
	}).Methods("GET", "OPTIONS").Name("root")

	usersService := users.NewService(
		s.usersRepo,
		s.tokensRepo,
		s.authService,
		s.mailer,
		users.ServiceConfig{
			FrontendURL: s.config.FrontendURL,
			AppName:     s.config.AppName,
		},
		s.metricsManager,
	)
	usersHandler := users.NewHandler(usersService, users.CookieConfig{
		Secure: s.config.SecureCookies,
		TTL:    s.sessionTTL,
	})
	usersHandler.SetupRoutes(
		r.PathPrefix("/api/users").Subrouter(),
		redis_rate.NewLimiter(s.redisClient),
		s.metricsManager,
		s.config.AuthRateLimitAllowedPerMin,
	)

	workoutsRouter := r.PathPrefix("/api/workouts").Subrouter()
	progressHandler := progress.NewHandler(
		progress.NewAggregator(progress.NewRepo(s.dbPool), s.metricsManager),
		s.usersRepo,
	)
	progressHandler.SetupRoutes(workoutsRouter)

	workoutsHandler := workouts.NewHandler(
		workouts.NewService(
			workouts.NewRepo(s.dbPool),
			s.usersRepo,
			s.publisher,
			s.metricsManager,
		),
	)
	workoutsHandler.SetupRoutes(workoutsRouter)

	authMiddleware := middleware.NewAuthMiddlewareHandler(s.loginChecker)

	r.Use(middleware.PanicRecovery(s.metricsManager))
	r.Use(middleware.LogRequest())
	r.Use(middleware.RequestMetrics(s.metricsManager))
	r.Use(middleware.Cors(s.config.AllowedOrigins))
	r.Use(authMiddleware.AuthCheck())
	r.Use(middleware.DrainAndCloseRequest())

	return r, nil
}

func (s *Server) setupScheduler() (*jobs.Scheduler, error) {
	resetHour, resetMinute, err := s.config.DailyResetClock()
	if err != nil {
		return nil, err
	}
	reminderInterval, err := s.config.ReminderIntervalDuration()
	if err != nil {
		return nil, err
	}

	scheduler := jobs.NewScheduler(s.metricsManager)
	scheduler.Add(
		jobs.NewDailyResetJob(s.usersRepo, s.tokensRepo),
		jobs.DailyAt{Hour: resetHour, Minute: resetMinute},
	)
	scheduler.Add(
		jobs.NewRemindersJob(s.usersRepo, s.mailer, s.config.AppName),
		jobs.Every(reminderInterval),
	)
	scheduler.Add(
		jobs.NewSessionsCleanupJob(s.authService),
		jobs.Every(jobs.SessionsCleanupInterval),
	)
	return scheduler, nil
}

func (s *Server) Serve(ctx context.Context, host string, port int) {
	router, err := s.routerSetup()
	if err != nil {
		log.Fatalf("failed to setup router: %s", err)
	}

	ipAndPort := net.JoinHostPort(host, strconv.Itoa(port))
	s.httpServer = &http.Server{
		Handler:      router,
		Addr:         ipAndPort,
		WriteTimeout: time.Minute,
		ReadTimeout:  time.Minute,
		ConnState:    s.connStateMetrics,
	}

	metricsRouter := mux.NewRouter()
	metricsRouter.Handle("/metrics", otelhttp.NewHandler(
		promhttp.HandlerFor(s.promRegistry, promhttp.HandlerOpts{}),
		"metrics",
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

	if s.config.JobsEnabled {
		scheduler, err := s.setupScheduler()
		if err != nil {
			log.Fatalf("failed to setup jobs scheduler: %s", err)
		}
		jobsCtx, cancel := context.WithCancel(ctx)
		s.scheduler = scheduler
		s.cancelJobs = cancel
		scheduler.Start(jobsCtx)
	} else {
		log.Warnln("scheduled jobs disabled")
	}

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

	if s.scheduler != nil {
		s.cancelJobs()
		s.scheduler.Wait()
		log.Debugln("jobs scheduler stopped")
	}

	if err := s.publisher.Close(); err != nil {
		log.Errorf("failed to close events publisher: %s", err)
	}

	s.otelShutdown()
	log.Trace("otel shut down ...")

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

	if s.metricsHttpServer != nil {
		if err := s.metricsHttpServer.Shutdown(ctx); err != nil {
			log.Error(" >>> failed to gracefully shutdown metrics http server")
		}
		log.Warnln("metrics server shut down")
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
