package apiapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/minio/minio-go/v7"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/prymskiwen/crewvar-sub001/internal/config"
	s3infra "github.com/prymskiwen/crewvar-sub001/internal/infra/s3"
	"github.com/prymskiwen/crewvar-sub001/internal/jobs/cleanup"
	pgrepo "github.com/prymskiwen/crewvar-sub001/internal/repo/postgres"
	redrepo "github.com/prymskiwen/crewvar-sub001/internal/repo/redis"
	authsvc "github.com/prymskiwen/crewvar-sub001/internal/services/auth"
	blockssvc "github.com/prymskiwen/crewvar-sub001/internal/services/blocks"
	modsvc "github.com/prymskiwen/crewvar-sub001/internal/services/moderation"
	notifysvc "github.com/prymskiwen/crewvar-sub001/internal/services/notify"
	presencesvc "github.com/prymskiwen/crewvar-sub001/internal/services/presence"
	privacysvc "github.com/prymskiwen/crewvar-sub001/internal/services/privacy"
	ratesvc "github.com/prymskiwen/crewvar-sub001/internal/services/rate"
	requestssvc "github.com/prymskiwen/crewvar-sub001/internal/services/requests"
	"github.com/prymskiwen/crewvar-sub001/internal/transport/ws"
)

type App struct {
	cfg        config.Config
	logger     *zap.Logger
	server     *http.Server
	postgres   *pgxpool.Pool
	redis      *goredis.Client
	s3         *minio.Client
	presence   *presencesvc.Tracker
	cleanup    *cleanup.Job
	httpRouter http.Handler
}

func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		return nil, fmt.Errorf("logger is nil")
	}

	r := chi.NewRouter()
	ApplyMiddlewares(r, log)

	var pool *pgxpool.Pool
	if p, err := pgrepo.NewPool(ctx, cfg.Postgres.DSN); err != nil {
		log.Warn("postgres init failed, continuing in degraded mode", zap.Error(err))
	} else {
		pool = p
	}

	// Sessions, rate limits and presence all live in redis; without it
	// the API cannot authenticate anyone, so this one is fatal.
	redisClient, err := redrepo.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, fmt.Errorf("redis init: %w", err)
	}

	var s3Client *minio.Client
	if c, err := s3infra.NewClient(s3infra.Config{
		Endpoint:  cfg.S3.Endpoint,
		AccessKey: cfg.S3.AccessKey,
		SecretKey: cfg.S3.SecretKey,
		UseSSL:    cfg.S3.UseSSL,
	}); err != nil {
		log.Warn("s3 init failed, continuing in degraded mode", zap.Error(err))
	} else {
		s3Client = c
	}

	runner := pgrepo.Runner{Pool: pool}
	privacyRepo := pgrepo.NewPrivacyRepo(pool)
	blockRepo := pgrepo.NewBlockRepo(pool)
	connectionRepo := pgrepo.NewConnectionRepo(pool)
	requestRepo := pgrepo.NewRequestRepo(pool)
	cooldownRepo := pgrepo.NewCooldownRepo(pool)
	reportRepo := pgrepo.NewReportRepo(pool)
	actionRepo := pgrepo.NewActionRepo(pool)
	activityRepo := pgrepo.NewActivityRepo(pool)

	sessionRepo := redrepo.NewSessionRepo(redisClient)
	rateRepo := redrepo.NewRateRepo(redisClient)
	windowRepo := redrepo.NewWindowRepo(redisClient)
	presenceRepo := redrepo.NewPresenceRepo(redisClient)

	jwtManager := authsvc.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTAccessTTL)
	authService := authsvc.NewService(jwtManager, sessionRepo, cfg.Auth.RefreshTTL)

	privacyService := privacysvc.NewService(privacysvc.Dependencies{
		Settings:  privacyRepo,
		Blocks:    blockRepo,
		Cooldowns: cooldownRepo,
	})

	rateLimiter := ratesvc.NewLimiter(rateRepo, cfg.Requests.MaxPerMinute, cfg.Requests.MaxPer10Sec)
	dispatcher := notifysvc.NewDispatcher(redisClient, log, cfg.Notify.Channel)
	evidenceStorage := modsvc.NewEvidenceStorage(s3Client, cfg.S3.Bucket)

	moderationService := modsvc.NewService(modsvc.Dependencies{
		Runner:     runner,
		Reports:    reportRepo,
		Actions:    actionRepo,
		Activities: activityRepo,
		Settings:   privacyRepo,
		Window:     windowRepo,
		Evidence:   evidenceStorage,
		Logger:     log,
	}, modsvc.Config{
		DetectionThreshold: cfg.Detection.RapidRequestThreshold,
		DetectionWindow:    cfg.Detection.RapidRequestWindow,
		TempBanDuration:    cfg.Detection.TempBanDuration,
		EvidenceURLTTL:     cfg.Detection.EvidenceURLTTL,
	})

	requestsService := requestssvc.NewService(requestssvc.Dependencies{
		Runner:      runner,
		Requests:    requestRepo,
		Connections: connectionRepo,
		Cooldowns:   cooldownRepo,
		Privacy:     privacyService,
		RateLimiter: rateLimiter,
		Notifier:    dispatcher,
		Recorder:    moderationService,
		Logger:      log,
	}, requestssvc.Config{
		CooldownHours: cfg.Requests.CooldownHours,
		ListLimit:     cfg.Requests.ListLimit,
	})

	blocksService := blockssvc.NewService(blockssvc.Dependencies{
		Runner:      runner,
		Blocks:      blockRepo,
		Connections: connectionRepo,
		Requests:    requestRepo,
		Logger:      log,
	}, blockssvc.Config{})

	presenceTracker := presencesvc.NewTracker(presenceRepo, log, presencesvc.Config{
		StatusTTL: cfg.Presence.StatusTTL,
		TypingTTL: cfg.Presence.TypingTTL,
	})
	presenceHub := ws.NewPresenceHub(presenceTracker, log)

	cleanupJob := cleanup.New(cooldownRepo, activityRepo, moderationService, cfg.Cleanup.ActivityRetention, log)

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      r,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	RegisterRoutes(r, Dependencies{
		AuthService:       authService,
		PrivacyService:    privacyService,
		RequestsService:   requestsService,
		BlocksService:     blocksService,
		ModerationService: moderationService,
		PresenceTracker:   presenceTracker,
		PresenceHub:       presenceHub,
		Logger:            log,
		Config:            cfg,
	})

	return &App{
		cfg:        cfg,
		logger:     log,
		server:     server,
		postgres:   pool,
		redis:      redisClient,
		s3:         s3Client,
		presence:   presenceTracker,
		cleanup:    cleanupJob,
		httpRouter: r,
	}, nil
}

// RunCleanup blocks running the housekeeping sweep until the context is
// cancelled. Callers start it alongside Run.
func (a *App) RunCleanup(ctx context.Context) {
	a.cleanup.RunEvery(ctx, a.cfg.Cleanup.Interval)
}

func (a *App) Run() error {
	a.logger.Info("api server started", zap.String("addr", a.cfg.HTTP.Addr))
	err := a.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error

	if err := a.server.Shutdown(ctx); err != nil {
		shutdownErr = err
	}
	if a.presence != nil {
		a.presence.Close()
	}
	if a.postgres != nil {
		a.postgres.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil && shutdownErr == nil {
			shutdownErr = err
		}
	}

	return shutdownErr
}

func (a *App) Handler() http.Handler {
	return a.httpRouter
}
