package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"okeanchat/internal/authz"
	"okeanchat/internal/config"
	"okeanchat/internal/httpx"
	"okeanchat/internal/hub"
	"okeanchat/internal/observability/logging"
	"okeanchat/internal/observability/metrics"
	"okeanchat/internal/service"
	"okeanchat/internal/store"
	transport "okeanchat/internal/transport/http"
	"okeanchat/internal/transport/ws"
	"okeanchat/pkg/db"
)

func main() {
	cfg := config.Load()

	logger := logging.NewLogger(logging.Config{
		ServiceName: "chat",
		Environment: cfg.Environment,
		Level:       cfg.LogLevel,
	})
	slog.SetDefault(logger)
	metrics.MustRegister("chat")

	logger.Info("starting service")

	if err := run(cfg); err != nil {
		logger.Error("service stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gdb, err := db.OpenGorm(db.Config{
		Driver: cfg.DatabaseDriver,
		DSN:    cfg.DatabaseURL,
		LogSQL: cfg.LogSQL,
	})
	if err != nil {
		return err
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	st := store.New(gdb)
	if err := st.AutoMigrate(ctx); err != nil {
		return err
	}

	validator, closeValidator, err := newValidator(cfg)
	if err != nil {
		return err
	}
	defer closeValidator()

	reg := hub.NewRegistry()
	disp := hub.NewDispatcher(reg, st.Groups())
	presence := hub.NewPresence(disp, st.Users(), st.Friends())
	if n, err := presence.ResetAll(ctx); err != nil {
		slog.Warn("reset stale presence failed", "error", err)
	} else if n > 0 {
		slog.Info("reset stale presence", "users", n)
	}

	gate := service.NewGate(st.Friends(), st.Groups())
	notes := service.NewNotifications(st, disp)
	chat := service.NewChat(st, gate, disp, notes)

	wsHandler := ws.NewHandler(presence, chat, ws.Options{
		PingInterval:    cfg.WSPingInterval,
		PongTimeout:     cfg.WSPongTimeout,
		WriteTimeout:    cfg.WSWriteTimeout,
		SendBuffer:      cfg.WSSendBuffer,
		MaxMessageBytes: cfg.WSMaxMessageLen,
	}, httpx.OriginChecker(cfg.CORSOrigins))

	router := transport.NewRouter(transport.Deps{
		Chat:            chat,
		Friends:         service.NewFriends(st, notes, presence),
		Groups:          service.NewGroups(st, gate, notes, presence),
		Notifications:   notes,
		Presence:        presence,
		Users:           st.Users(),
		Validator:       validator,
		WS:              wsHandler,
		CORSOrigins:     cfg.CORSOrigins,
		RateLimitPerMin: cfg.RateLimitPerMin,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("chat service listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down", "timeout", cfg.ShutdownTimeout)
		// hijacked websocket connections are not tracked by Shutdown; their
		// users are reset to Offline by ResetAll on the next start
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// newValidator prefers the shared HS256 secret and falls back to JWKS.
func newValidator(cfg config.Config) (authz.Validator, func(), error) {
	if cfg.JWTSecret != "" {
		slog.Info("using HS256 shared-secret token validation")
		return authz.NewHMACValidator(cfg.JWTSecret, cfg.Issuer), func() {}, nil
	}
	if cfg.JWKSURL == "" {
		return nil, nil, errors.New("CHAT_JWT_SECRET or CHAT_JWKS_URL must be set")
	}
	slog.Info("using JWKS token validation", "jwks_url", cfg.JWKSURL)
	v, err := authz.NewJWKSValidator(cfg.JWKSURL, cfg.Issuer)
	if err != nil {
		return nil, nil, err
	}
	return v, v.Close, nil
}
