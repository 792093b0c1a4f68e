package main

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"banking-portal/internal/audit"
	"banking-portal/internal/auth"
	"banking-portal/internal/backend"
	"banking-portal/internal/config"
	"banking-portal/internal/guard"
	"banking-portal/internal/httpapi"
	"banking-portal/internal/outbound"
	"banking-portal/internal/session"
	"banking-portal/pkg/logger"
	"banking-portal/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

const sweepInterval = time.Minute

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Error("dotenv load failed", "err", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	var rdb *redis.Client
	if cfg.Session.Store == config.StoreRedis {
		rdb, err = utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
		if err != nil {
			log.Error("redis init failed", "err", err)
			os.Exit(1)
		}
		defer rdb.Close()
	}

	var db *sql.DB
	if cfg.Audit.Store == config.StorePostgres {
		db, err = utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
		if err != nil {
			log.Error("postgres init failed", "err", err)
			os.Exit(1)
		}
		defer db.Close()
	}

	auditSvc, err := buildAudit(rootCtx, db, rdb, log)
	if err != nil {
		log.Error("audit init failed", "err", err)
		os.Exit(1)
	}

	routes := guard.DefaultRoutes()
	if cfg.App.RoutesFile != "" {
		routes, err = guard.LoadRoutes(cfg.App.RoutesFile)
		if err != nil {
			log.Error("route table load failed", "err", err, "file", cfg.App.RoutesFile)
			os.Exit(1)
		}
	}

	var verifier *auth.Manager
	if cfg.Auth.JWTSecret != "" {
		verifier, err = auth.NewManager(cfg.Auth)
		if err != nil {
			log.Error("auth init failed", "err", err)
			os.Exit(1)
		}
	} else {
		log.Warn("JWT_SECRET not set; proxied calls rely on backend signature checks")
	}

	client, err := backend.New(cfg.Backend.BaseURL, cfg.Backend.Timeout, outbound.NewTransport(nil, log), log)
	if err != nil {
		log.Error("backend client init failed", "err", err)
		os.Exit(1)
	}

	registry := newRegistry(cfg, rdb, auditSvc, log)
	defer registry.Close()
	go sweepSessions(rootCtx, registry, log)

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, httpapi.Handlers{
		Sessions: registry,
		Guard:    guard.New(routes, log),
		Audit:    auditSvc,
		Backend:  client,
		Proxy:    client.Proxy(apiPrefix),
		Verifier: verifier,
	}, httpapi.RouteOptions{
		Cookie:         httpapi.CookieOptions{Secure: cfg.IsProduction(), MaxAge: int(cfg.Session.Timeout / time.Second)},
		LoginPerMinute: cfg.RateLimit.LoginPerMinute,
		LoginBurst:     cfg.RateLimit.Burst,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("gateway listening", "addr", srv.Addr, "env", cfg.App.Env, "backend", cfg.Backend.BaseURL,
			"session_store", cfg.Session.Store, "audit_store", cfg.Audit.Store)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
}

func buildAudit(ctx context.Context, db *sql.DB, rdb *redis.Client, log *slog.Logger) (*audit.Service, error) {
	var repo audit.Repository = audit.NewMemoryRepo()
	if db != nil {
		pg := audit.NewPostgresRepo(db)
		if err := pg.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		repo = pg
	}

	var attempts audit.AttemptStore = audit.NewMemoryAttempts()
	if rdb != nil {
		attempts = audit.NewRedisAttempts(rdb)
	}
	return audit.NewService(repo, attempts, log), nil
}

func newRegistry(cfg config.Config, rdb *redis.Client, auditSvc *audit.Service, log *slog.Logger) *session.Registry {
	var stores session.StoreFactory = session.NewMemoryStores()
	if rdb != nil {
		stores = session.NewRedisStores(rdb)
	}

	reg := session.NewRegistry(stores, session.Options{
		Logger:  log,
		Timeout: cfg.Session.Timeout,
		Warning: cfg.Session.Warning,
	})
	reg.EventsFor = func(clientID string) session.Events {
		return session.EventFuncs{
			OnWarning: func(rec session.Record, remaining time.Duration) {
				log.Info("session expiring soon", "client_id", clientID, "remaining", session.FormatRemaining(remaining))
			},
			OnExpired: func(rec session.Record) {
				actor := audit.Actor{}
				if rec.UserID != nil {
					actor.UserID = *rec.UserID
				}
				if rec.Username != nil {
					actor.Username = *rec.Username
				}
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := auditSvc.RecordSessionTimeout(ctx, actor); err != nil {
					log.Warn("audit append failed", "err", err, "client_id", clientID)
				}
			},
		}
	}
	return reg
}

func sweepSessions(ctx context.Context, reg *session.Registry, log *slog.Logger) {
	t := time.NewTicker(sweepInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := reg.Sweep(); n > 0 {
				log.Debug("idle sessions swept", "count", n, "live", reg.Len())
			}
		}
	}
}
