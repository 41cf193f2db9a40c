package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/cwrk-planet/chat-gateway/config"
	"github.com/cwrk-planet/chat-gateway/internal/bus"
	"github.com/cwrk-planet/chat-gateway/internal/gateway"
	"github.com/cwrk-planet/chat-gateway/internal/metrics"
	"github.com/cwrk-planet/chat-gateway/internal/pg"
	"github.com/cwrk-planet/chat-gateway/internal/registry"
	pgrepo "github.com/cwrk-planet/chat-gateway/internal/repository/postgres"
	httpserver "github.com/cwrk-planet/chat-gateway/internal/server/http"
	"github.com/cwrk-planet/chat-gateway/internal/service"
	"github.com/cwrk-planet/chat-gateway/internal/session"
	grpcx "github.com/cwrk-planet/chat-gateway/internal/transport/grpc"
	httpx "github.com/cwrk-planet/chat-gateway/internal/transport/http"
	"github.com/cwrk-planet/chat-gateway/internal/transport/ws"
	"github.com/cwrk-planet/chat-gateway/pkg/logger"
)

func main() {
	// --- config ---
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("load .env: %v", err)
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	lc := cfg.Logging.ToLoggerConfig()
	lc.InstanceID = logger.EnsureInstanceID("")
	logger.Init(lc)
	slog.Info("starting chat-gateway",
		slog.String("env", string(lc.Env)),
		slog.String("version", lc.Version),
		slog.String("bus", cfg.Bus.Driver))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- postgres ---
	if cfg.Postgres.Migrate {
		if err := pg.RunMigrations(cfg.Postgres.DSN); err != nil {
			log.Fatalf("migrations: %v", err)
		}
	}
	pool, err := pg.NewPool(ctx, cfg.Postgres.ToPGConfig())
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	// --- repos ---
	sessionRepo := pgrepo.NewSessionRepo(pool)
	userRepo := pgrepo.NewUserRepo(pool)
	roomRepo := pgrepo.NewRoomRepo(pool)
	messageRepo := pgrepo.NewMessageRepo(pool)

	// --- metrics ---
	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(promReg)

	// --- services ---
	validator := session.NewValidator(sessionRepo, userRepo, time.Now, logger.L())
	authSvc := service.NewAuthService(userRepo, sessionRepo, cfg.Session.TTL, cfg.Security.Password.ToPolicy(), time.Now)
	roomSvc := service.NewRoomService(roomRepo, time.Now)
	chatSvc := service.NewChatService(roomRepo, messageRepo)

	// --- fan-out bus ---
	var fanout bus.Bus
	switch cfg.Bus.Driver {
	case config.BusRedis:
		fanout, err = bus.NewRedis(bus.RedisConfig{
			URL:           cfg.Redis.URL,
			ChannelPrefix: cfg.Bus.ChannelPrefix,
			InstanceID:    lc.InstanceID,
		}, logger.L())
		if err != nil {
			log.Fatalf("redis bus: %v", err)
		}
	default:
		fanout = bus.NewMemory(cfg.Bus.Buffer)
	}

	// --- gateway ---
	gw := gateway.New(gateway.Deps{
		Auth:     validator,
		Rooms:    roomRepo,
		Store:    messageRepo,
		Bus:      fanout,
		Registry: registry.New(),
		Metrics:  collector,
		Logger:   logger.L().With(slog.String("component", "gateway")),
	}, cfg.Gateway.ToOptions(lc.InstanceID))

	wsServer := ws.NewServer(gw, ws.Config{
		CookieName:     cfg.Session.CookieName,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		PingEvery:      cfg.Gateway.PingEvery,
		WriteWait:      cfg.Gateway.WriteWait,
		ReadLimit:      cfg.Gateway.ReadLimit,
		SendBuffer:     cfg.Gateway.SendBuffer,
	}, logger.L())

	// --- HTTP ---
	router := httpx.NewRouter(httpx.Deps{
		Auth:     authSvc,
		Rooms:    roomSvc,
		Chat:     chatSvc,
		Sessions: validator,
		Cookie: httpx.CookieConfig{
			Name:   cfg.Session.CookieName,
			Domain: cfg.Session.Domain,
			Secure: cfg.Session.SecureCookie,
			TTL:    authSvc.SessionTTL(),
		},
		WS:             wsServer,
		Metrics:        metrics.Handler(promReg),
		AllowedOrigins: cfg.CORS.AllowedOrigins,
	})
	httpSrv := httpserver.New(httpserver.Config{
		Addr:            cfg.HTTP.Addr,
		ReadTimeout:     cfg.HTTP.ReadTimeout,
		WriteTimeout:    cfg.HTTP.WriteTimeout,
		IdleTimeout:     cfg.HTTP.IdleTimeout,
		ShutdownTimeout: cfg.HTTP.ShutdownTimeout,
	}, router)

	// --- run ---
	errCh := make(chan error, 4)

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	gwDone := make(chan struct{})
	go func() {
		defer close(gwDone)
		if err := gw.Run(runCtx); err != nil {
			errCh <- err
		}
	}()

	go session.NewReaper(sessionRepo, cfg.Session.ReapInterval, collector, logger.L()).Run(runCtx)

	var grpcSrv *grpcx.Server
	if cfg.GRPC.Addr != "" {
		grpcSrv = grpcx.NewServer(cfg.GRPC.Addr, logger.L())
		go func() {
			if err := grpcSrv.Run(runCtx); err != nil {
				errCh <- err
			}
		}()
	}

	httpDone := make(chan struct{})
	go func() {
		defer close(httpDone)
		slog.Info("http listen", slog.String("addr", cfg.HTTP.Addr))
		if err := httpSrv.Run(runCtx); err != nil {
			errCh <- err
		}
	}()

	// --- graceful shutdown ---
	select {
	case <-ctx.Done():
		slog.Info("shutdown signal")
	case err := <-errCh:
		slog.Error("server error", slog.Any("err", err))
	}

	if grpcSrv != nil {
		grpcSrv.SetNotServing()
	}

	shCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	// departures are published while the bus is still up
	gw.Shutdown(shCtx)
	cancelRun()
	<-httpDone

	if err := fanout.Close(); err != nil {
		slog.Warn("bus close failed", slog.Any("err", err))
	}
	select {
	case <-gwDone:
	case <-shCtx.Done():
	}
	slog.Info("stopped")
}
