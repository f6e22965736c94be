package container

import (
	"context"
	"fmt"
	"time"

	specdoc "github.com/USSTM/asset-backend/api"
	"github.com/USSTM/asset-backend/internal/api"
	"github.com/USSTM/asset-backend/internal/auth"
	"github.com/USSTM/asset-backend/internal/aws"
	"github.com/USSTM/asset-backend/internal/config"
	"github.com/USSTM/asset-backend/internal/database"
	"github.com/USSTM/asset-backend/internal/lifecycle"
	"github.com/USSTM/asset-backend/internal/logging"
	"github.com/USSTM/asset-backend/internal/notifications"
	"github.com/USSTM/asset-backend/internal/queue"
	"github.com/USSTM/asset-backend/internal/ratelimit"
	"github.com/USSTM/asset-backend/internal/rbac"
	"github.com/USSTM/asset-backend/internal/tracing"
	"github.com/redis/go-redis/v9"
)

const limiterSweepInterval = time.Minute

type Container struct {
	Config        *config.Config
	Database      *database.Database
	Queue         *queue.TaskQueue
	RedisClient   *redis.Client
	JWTService    *auth.JWTService
	AuthService   *auth.AuthService
	Authenticator *auth.Authenticator
	Resolver      *rbac.Resolver
	Tracker       *lifecycle.Tracker
	S3Service     *aws.S3Service
	EmailService  *aws.SESService
	Dispatcher    *notifications.NotificationDispatcher
	Reminders     *notifications.Reminders
	Limiter       ratelimit.Limiter
	LoginLimiter  ratelimit.Limiter
	Server        *api.Server
	Worker        *queue.Worker
	Scheduler     *queue.Scheduler

	shutdownTracing tracing.ShutdownFunc
	stopSweepers    context.CancelFunc
}

// New wires every service from cfg. On error the partially built container
// is cleaned up before returning.
func New(ctx context.Context, cfg *config.Config) (_ *Container, err error) {
	c := &Container{Config: cfg}
	defer func() {
		if err != nil {
			c.Cleanup()
		}
	}()

	if c.shutdownTracing, err = tracing.Init(ctx, &cfg.Tracing); err != nil {
		return nil, fmt.Errorf("tracing: %w", err)
	}

	if c.Database, err = database.New(&cfg.Database); err != nil {
		return nil, err
	}
	logging.Info("Connected to database",
		"host", cfg.Database.Host,
		"port", cfg.Database.Port)

	if err = c.Database.Migrate(ctx); err != nil {
		return nil, err
	}

	if c.Queue, err = queue.NewQueue(&cfg.Redis); err != nil {
		return nil, err
	}

	// asynq keeps its own pool; this client backs refresh tokens, rate
	// limits and the readiness probe.
	c.RedisClient = redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	queries := c.Database.Queries()

	if c.JWTService, err = auth.NewJWTService([]byte(cfg.JWT.SigningKey), cfg.JWT.Issuer, cfg.JWT.Expiry); err != nil {
		return nil, err
	}
	c.AuthService = auth.NewAuthService(c.RedisClient, c.JWTService, queries, cfg.Auth)
	c.Authenticator = auth.NewAuthenticator(c.JWTService, queries)
	c.Resolver = rbac.NewResolver(queries)
	c.Tracker = lifecycle.NewTracker(c.Database.Pool())

	if err = c.initAWS(ctx); err != nil {
		return nil, err
	}

	tmpl, err := notifications.LoadTemplates(cfg.Server.TemplatesDir)
	if err != nil {
		return nil, err
	}
	c.Dispatcher = notifications.NewNotificationDispatcher(
		notifications.NewNotificationService(c.Database.Pool(), queries),
		c.Queue,
		tmpl,
		notifications.NewEmailLookupFunc(queries),
	)
	c.Reminders = notifications.NewReminders(queries, c.Dispatcher)

	if err = c.initLimiters(); err != nil {
		return nil, err
	}

	spec, err := specdoc.GetSwagger()
	if err != nil {
		return nil, fmt.Errorf("load openapi spec: %w", err)
	}

	c.Server = api.NewServer(api.Deps{
		DB:            c.Database,
		Redis:         c.RedisClient,
		Tracker:       c.Tracker,
		Resolver:      c.Resolver,
		Authenticator: c.Authenticator,
		AuthService:   c.AuthService,
		Notifier:      c.Dispatcher,
		Storage:       c.S3Service,
		Spec:          spec,
		Limiter:       c.Limiter,
		LoginLimiter:  c.LoginLimiter,
		Config:        cfg,
	})

	c.Worker = queue.NewWorker(&cfg.Redis, c.EmailService, c.Reminders)
	if c.Scheduler, err = queue.NewScheduler(&cfg.Redis, &cfg.Borrow); err != nil {
		return nil, err
	}

	return c, nil
}

func (c *Container) initAWS(ctx context.Context) error {
	cfg := c.Config.AWS
	awsCfg, err := aws.LoadAWSConfig(ctx, cfg)
	if err != nil {
		return err
	}

	c.S3Service = aws.NewS3ServiceFromConfig(awsCfg, cfg.EndpointURL, cfg.Bucket)
	c.EmailService = aws.NewSESServiceFromConfig(awsCfg, cfg.EndpointURL, cfg.FromEmail)

	// localstack only; production buckets and identities are provisioned outside the app
	if cfg.EndpointURL != "" {
		if err := c.S3Service.EnsureBucket(ctx); err != nil {
			logging.Warn("S3 bucket creation attempted", "bucket", cfg.Bucket, "error", err)
		}
		if err := c.EmailService.VerifySender(ctx); err != nil {
			logging.Warn("Failed to verify email identity", "sender", cfg.FromEmail, "error", err)
		}
	}
	return nil
}

func (c *Container) initLimiters() error {
	rl := c.Config.RateLimit

	var err error
	if c.Limiter, err = ratelimit.New(rl, c.RedisClient, "rl:api", rl.Requests, rl.Window); err != nil {
		return err
	}
	if c.LoginLimiter, err = ratelimit.New(rl, c.RedisClient, "rl:login", rl.LoginRequests, rl.LoginWindow); err != nil {
		return err
	}

	var sweepCtx context.Context
	sweepCtx, c.stopSweepers = context.WithCancel(context.Background())
	for _, l := range []ratelimit.Limiter{c.Limiter, c.LoginLimiter} {
		if m, ok := l.(*ratelimit.MemoryLimiter); ok {
			go m.Run(sweepCtx, limiterSweepInterval)
		}
	}
	return nil
}

func (c *Container) Cleanup() {
	if c.stopSweepers != nil {
		c.stopSweepers()
	}
	if c.Scheduler != nil {
		c.Scheduler.Close()
		logging.Info("Scheduler closed")
	}
	if c.Worker != nil {
		c.Worker.Close()
		logging.Info("Worker closed")
	}
	if c.Queue != nil {
		c.Queue.Close()
		logging.Info("Queue client closed")
	}
	if c.RedisClient != nil {
		c.RedisClient.Close()
		logging.Info("Redis client closed")
	}
	if c.Database != nil {
		c.Database.Close()
		logging.Info("Database connection closed")
	}
	if c.shutdownTracing != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.shutdownTracing(ctx); err != nil {
			logging.Warn("Tracer shutdown failed", "error", err)
		}
	}
}
