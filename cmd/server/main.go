package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"chatroom/internal/chat"
	"chatroom/internal/config"
	apphttp "chatroom/internal/http"
	"chatroom/internal/repository"
	"chatroom/internal/repository/file"
	"chatroom/internal/repository/sqlite"
	"chatroom/internal/service"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	level, _ := cfg.LogLevel()
	logger.SetLevel(level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	credentials, closeStore, err := buildStore(cfg)
	if err != nil {
		logger.Fatalf("setup credential store: %v", err)
	}
	defer closeStore()

	if err := credentials.Init(ctx); err != nil {
		logger.Fatalf("init credential store: %v", err)
	}

	userService := service.NewUserService(credentials)

	server := chat.NewServer(chat.Config{
		Banner:      cfg.Server.Banner,
		MaxSessions: cfg.Server.MaxSessions,
		IdleTimeout: cfg.Server.IdleTimeout,
		MaxPayload:  cfg.Server.MaxPayload,
		Logger:      logger,
	}, userService)

	fmt.Print(cfg.Server.Banner)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.ListenAndServe(gctx, cfg.Server.Addr)
	})
	if cfg.Status.Addr != "" {
		g.Go(func() error {
			return apphttp.Serve(gctx, cfg.Status.Addr, apphttp.NewRouter(server), logger)
		})
	}

	<-gctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("chat shutdown: %v", err)
	}

	if err := g.Wait(); err != nil {
		logger.Errorf("server: %v", err)
		closeStore()
		os.Exit(1)
	}
	logger.Info("bye")
}

func buildStore(cfg config.Config) (repository.CredentialRepository, func(), error) {
	switch cfg.Store.Driver {
	case config.DriverSQLite:
		db, err := sqlite.Open(cfg.Store.Path)
		if err != nil {
			return nil, nil, err
		}
		return sqlite.NewCredentialRepository(db), func() { db.Close() }, nil
	default:
		return file.NewCredentialRepository(cfg.Store.Path), func() {}, nil
	}
}
