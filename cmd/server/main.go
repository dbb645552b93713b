package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"usersapi/internal/audit"
	auditkafka "usersapi/internal/audit/store/kafka"
	auditpostgres "usersapi/internal/audit/store/postgres"
	"usersapi/internal/auth/cookie"
	"usersapi/internal/auth/handler"
	"usersapi/internal/auth/service"
	userstore "usersapi/internal/auth/store/user"
	jwttoken "usersapi/internal/jwt_token"
	"usersapi/internal/notify"
	"usersapi/internal/notify/relay"
	"usersapi/internal/platform/config"
	"usersapi/internal/platform/database"
	"usersapi/internal/platform/health"
	"usersapi/internal/platform/kafka/producer"
	"usersapi/internal/platform/logger"
	"usersapi/internal/platform/metrics"
	"usersapi/internal/platform/redis"
	httptransport "usersapi/internal/transport/http"
	"usersapi/pkg/platform/middleware/auth"
)

const (
	shutdownTimeout   = 10 * time.Second
	poolStatsInterval = 15 * time.Second
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		logger.NewFallback().Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

// infra holds the optional backing services. Any field may be nil.
type infra struct {
	db       *database.Pool
	redis    *redis.Client
	producer *producer.Producer
}

func (i *infra) close(ctx context.Context, log *slog.Logger) {
	if i.producer != nil {
		if err := i.producer.Close(ctx); err != nil {
			log.Warn("kafka producer close failed", "error", err)
		}
	}
	if i.redis != nil {
		if err := i.redis.Close(); err != nil {
			log.Warn("redis close failed", "error", err)
		}
	}
	if err := i.db.Close(); err != nil {
		log.Warn("database close failed", "error", err)
	}
}

func openInfra(ctx context.Context, cfg config.Server, m *metrics.Metrics, log *slog.Logger) (*infra, error) {
	i := &infra{}
	var err error

	if i.db, err = database.New(ctx, cfg.Database); err != nil {
		return nil, err
	}
	if i.redis, err = redis.New(ctx, cfg.Redis, m); err != nil {
		i.close(ctx, log)
		return nil, err
	}
	if brokers := cfg.Kafka.BrokerList(); len(brokers) > 0 {
		if i.producer, err = producer.New(producer.Config{Brokers: brokers, DeliveryTimeout: 10 * time.Second}, log); err != nil {
			i.close(ctx, log)
			return nil, err
		}
	}
	log.Info("backing services",
		"postgres", i.db != nil,
		"redis", i.redis != nil,
		"kafka", i.producer != nil,
	)
	return i, nil
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	log.Info("initializing users api", "addr", cfg.Addr, "environment", cfg.Environment)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	tokens, err := jwttoken.NewJWTService(jwttoken.Config{
		AccessKey:  cfg.Auth.SigningKey,
		RefreshKey: cfg.Auth.RefreshKey(),
		Issuer:     cfg.Auth.Issuer,
		AccessTTL:  cfg.Auth.AccessTokenTTL,
		RefreshTTL: cfg.Auth.RefreshTokenTTL,
	})
	if err != nil {
		return fmt.Errorf("token issuer: %w", err)
	}

	backing, err := openInfra(ctx, cfg, m, log)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		backing.close(closeCtx, log)
	}()

	hub := notify.NewHub(notify.Config{
		SubscriberBuffer: cfg.Hub.SubscriberBuffer,
		MailboxSize:      cfg.Hub.MailboxSize,
	}, notify.WithLogger(log), notify.WithMetrics(m))

	var notifier audit.Notifier = hub
	var fanout *relay.Relay
	if backing.redis != nil {
		fanout = relay.New(backing.redis.Client, cfg.Hub.RelayChannel, hub, cfg.Hub.MailboxSize, log)
		notifier = fanout
	}

	auditLog, err := audit.OpenLogFile(cfg.Audit.LogPath)
	if err != nil {
		return fmt.Errorf("audit log: %w", err)
	}
	defer func() {
		if err := auditLog.Close(); err != nil {
			log.Warn("audit log close failed", "error", err)
		}
	}()

	auditOpts := []audit.Option{
		audit.WithSink("file", auditLog),
		audit.WithNotifier(notifier),
		audit.WithFallbackLogger(log),
		audit.WithMetrics(m),
	}
	var users service.UserStore = userstore.NewInMemoryUserStore()
	if backing.db != nil {
		users = userstore.NewPostgres(backing.db.DB())
		auditOpts = append(auditOpts, audit.WithSink("postgres", auditpostgres.New(backing.db.DB())))
	}
	if backing.producer != nil {
		auditOpts = append(auditOpts, audit.WithSink("kafka", auditkafka.NewSink(backing.producer, cfg.Kafka.AuditTopic, log)))
	}
	channel := audit.NewChannel(auditOpts...)

	svc := service.New(users,
		service.WithLogger(log),
		service.WithMetrics(m),
		service.WithAuditRecorder(channel),
	)

	checks := health.New(cfg.Environment, hub.Count)
	checks.RegisterCheck("audit", channel.Health)
	if backing.db != nil {
		checks.RegisterCheck("postgres", backing.db.Health)
	}
	if backing.redis != nil {
		checks.RegisterCheck("redis", backing.redis.Health)
	}
	if backing.producer != nil {
		checks.RegisterCheck("kafka", backing.producer.Health)
	}

	router := httptransport.NewRouter(httptransport.Deps{
		Logger:        log,
		Metrics:       m,
		Gatherer:      reg,
		Health:        checks,
		Users:         handler.New(svc, cookie.NewIssuer(tokens, cfg.Auth.SecureCookies, m), tokens, log),
		Guard:         auth.RequireAuth(tokens, m, log),
		Notifications: notify.NewWebSocketHandler(hub, log),
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return hub.Run(gctx) })
	if fanout != nil {
		g.Go(func() error { return fanout.Run(gctx) })
	}
	if backing.redis != nil {
		g.Go(func() error { return backing.redis.RunPoolStats(gctx, poolStatsInterval) })
	}
	g.Go(func() error {
		log.Info("starting http server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server gracefully")
		hub.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}
