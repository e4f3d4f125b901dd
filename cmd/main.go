package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aditya9522/mindporium/config"
	"github.com/aditya9522/mindporium/internal/postgres"
	"github.com/aditya9522/mindporium/internal/security"
	"github.com/aditya9522/mindporium/internal/service"
	httpx "github.com/aditya9522/mindporium/internal/transport/http"
	httpmw "github.com/aditya9522/mindporium/internal/transport/http/middleware"
	"github.com/aditya9522/mindporium/internal/transport/ws"
	"github.com/aditya9522/mindporium/pkg/logger"
)

func main() {
	// --- config ---
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger.Init(logger.Config{
		Env:       logger.Env(cfg.Logging.Env),
		Service:   cfg.Logging.Service,
		Version:   cfg.Logging.Version,
		Backend:   logger.Backend(cfg.Logging.Backend),
		AddSource: cfg.Logging.AddSource,
		Debug:     cfg.Logging.Debug,
	})
	slog.Info("starting classroom-relay",
		"env", cfg.Logging.Env, "version", cfg.Logging.Version)

	// --- postgres ---
	ctx := context.Background()
	db, err := postgres.New(ctx, cfg.Postgres.DSN, cfg.Postgres.MaxConns, cfg.Postgres.MinConns)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer db.Close()

	// --- attendance ---
	attendanceRepo := postgres.NewAttendanceRepository(db.Pool)
	attendanceSvc := service.NewAttendanceService(attendanceRepo)

	// --- identity ---
	var verifier *security.TokenParser
	if cfg.Auth.TokenSecret != "" {
		verifier = security.NewTokenParser(cfg.Auth.TokenSecret)
	} else {
		slog.Warn("auth.tokenSecret is empty, token verification disabled")
	}

	// --- realtime relay ---
	registry := ws.NewRegistry()
	router := ws.NewRouter(registry)
	wsServer := ws.NewServer(registry, router, attendanceSvc, wsVerifier(verifier),
		cfg.WS.PingInterval, cfg.WS.WriteTimeout)

	// --- HTTP ---
	handler := httpx.NewHandler(attendanceSvc, ws.Monitor{Registry: registry, Router: router})
	httpSrv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      httpx.NewRouter(handler, httpVerifier(verifier), wsServer),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http listen", "addr", cfg.HTTP.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// --- graceful shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal", "sig", sig)
	case err := <-errCh:
		slog.Error("server error", "err", err)
	}

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// сначала дренируем живые сессии (закрытие attendance, user_left),
	// потом гасим HTTP
	if err := wsServer.Shutdown(ctxShutdown); err != nil {
		slog.Warn("ws drain incomplete", "err", err)
	}
	_ = httpSrv.Shutdown(ctxShutdown)
	slog.Info("stopped")
}

// типизированный nil не должен попасть в интерфейс
func wsVerifier(p *security.TokenParser) ws.TokenVerifier {
	if p == nil {
		return nil
	}
	return p
}

func httpVerifier(p *security.TokenParser) httpmw.TokenVerifier {
	if p == nil {
		return nil
	}
	return p
}
