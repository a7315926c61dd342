package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"kyc-core/internal/audit"
	"kyc-core/internal/auth"
	"kyc-core/internal/auth/formtoken"
	"kyc-core/internal/coreuser"
	"kyc-core/internal/kyc/handler"
	"kyc-core/internal/kyc/service"
	"kyc-core/internal/kyc/store"
	"kyc-core/internal/notify"
	"kyc-core/internal/objstore"
	"kyc-core/internal/platform/config"
	"kyc-core/internal/platform/httpserver"
	"kyc-core/internal/platform/logger"
	"kyc-core/internal/platform/metrics"
	platformredis "kyc-core/internal/platform/redis"
	"kyc-core/internal/scheduler"
)

// main wires the dependencies and keeps the server lifecycle small. All
// business logic lives in the internal service packages.
func main() {
	log := logger.New()
	if err := run(log); err != nil {
		log.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stores, cleanup, err := buildStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	sessions, err := buildSessions(ctx, cfg, log)
	if err != nil {
		return err
	}

	core := buildCoreUser(cfg, log)
	authSvc := auth.NewService(sessions, core, adminAccounts(cfg.Auth.Admins),
		auth.WithLogger(log))
	forms := formtoken.New([]byte(cfg.Auth.FormTokenSecret), cfg.Auth.FormTokenTTL)

	opts := []service.Option{
		service.WithLogger(log),
		service.WithMetrics(metrics.New()),
		service.WithNotifier(buildNotifier(cfg, log)),
	}
	if uploader, err := buildUploader(cfg); err != nil {
		return err
	} else if uploader != nil {
		opts = append(opts, service.WithUploader(uploader))
	}
	if publisher, closePublisher, err := buildPublisher(cfg, log); err != nil {
		return err
	} else if publisher != nil {
		defer closePublisher()
		opts = append(opts, service.WithPublisher(publisher))
	}

	svc := service.New(stores, authSvc, forms, core, opts...)

	sched := scheduler.New(log)
	sched.Every(ctx, cfg.SweepInterval, "expiration-sweep", svc.SweepExpired)
	defer sched.Wait()

	router := chi.NewRouter()
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler.New(svc, log, cfg.Server.RequestTimeout).Register(router)

	srv := httpserver.New(cfg.Server.Addr, router)
	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// buildStores selects postgres when a URL is configured, in-memory otherwise.
func buildStores(ctx context.Context, cfg config.Config, log *slog.Logger) (service.Stores, func(), error) {
	if cfg.Postgres.URL == "" {
		log.Warn("no postgres configured, using in-memory stores")
		return service.Stores{
			Cases:       store.NewMemoryCases(),
			Documents:   store.NewMemoryDocuments(),
			Logs:        store.NewMemoryLogs(),
			AdminChecks: store.NewMemoryAdminChecks(),
			Recents:     store.NewMemoryRecents(),
		}, func() {}, nil
	}

	pool, err := pgxpool.New(ctx, cfg.Postgres.URL)
	if err != nil {
		return service.Stores{}, nil, err
	}
	if err := store.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return service.Stores{}, nil, err
	}
	return service.Stores{
		Cases:       store.NewPostgresCases(pool),
		Documents:   store.NewPostgresDocuments(pool),
		Logs:        store.NewPostgresLogs(pool),
		AdminChecks: store.NewPostgresAdminChecks(pool),
		Recents:     store.NewPostgresRecents(pool),
	}, pool.Close, nil
}

// buildSessions keeps admin sessions in redis when available so tokens
// survive restarts; the in-memory store sweeps its own expiry.
func buildSessions(ctx context.Context, cfg config.Config, log *slog.Logger) (auth.SessionStore, error) {
	client, err := platformredis.New(cfg.Redis)
	if err != nil {
		return nil, err
	}
	if client != nil {
		return auth.NewRedisSessions(client.Client, cfg.Auth.SessionTTL), nil
	}
	log.Warn("no redis configured, admin sessions are in-memory")
	sessions := auth.NewMemorySessions(cfg.Auth.SessionTTL)
	sessions.StartCleanup(ctx, cfg.Auth.SessionTTL)
	return sessions, nil
}

func buildCoreUser(cfg config.Config, log *slog.Logger) interface {
	auth.UserAuth
	service.SummaryService
} {
	if cfg.CoreUser.BaseURL == "" {
		log.Warn("no core user endpoint configured, using deterministic mock")
		return coreuser.Mock{}
	}
	return coreuser.NewClient(coreuser.Config{
		BaseURL: cfg.CoreUser.BaseURL,
		Timeout: cfg.CoreUser.Timeout,
	})
}

func buildNotifier(cfg config.Config, log *slog.Logger) notify.Notifier {
	if cfg.SMTP.Host == "" {
		log.Warn("no smtp configured, lifecycle emails are dropped")
		return notify.Noop{}
	}
	return notify.NewSMTP(notify.Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
		FromName: cfg.SMTP.FromName,
	}, log)
}

func buildUploader(cfg config.Config) (objstore.Uploader, error) {
	if cfg.ObjectStorage.Endpoint == "" {
		return nil, nil
	}
	return objstore.NewMinio(objstore.Config{
		Endpoint:      cfg.ObjectStorage.Endpoint,
		AccessKey:     cfg.ObjectStorage.AccessKey,
		SecretKey:     cfg.ObjectStorage.SecretKey,
		Bucket:        cfg.ObjectStorage.Bucket,
		UseSSL:        cfg.ObjectStorage.UseSSL,
		PublicBaseURL: cfg.ObjectStorage.PublicBaseURL,
	})
}

func buildPublisher(cfg config.Config, log *slog.Logger) (audit.Publisher, func(), error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, nil, nil
	}
	publisher, err := audit.NewKafka(cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
	if err != nil {
		return nil, nil, err
	}
	return publisher, publisher.Close, nil
}

func adminAccounts(in []config.AdminConfig) []auth.AdminAccount {
	out := make([]auth.AdminAccount, len(in))
	for i, a := range in {
		out[i] = auth.AdminAccount{
			Email:        a.Email,
			PasswordHash: a.PasswordHash,
			Level:        auth.AccessLevel(a.Level),
			IsActive:     true,
		}
	}
	return out
}
