// Package main запускает Telegram-бота проката электротранспорта.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/akushch/rentbot/internal/config"
	"github.com/akushch/rentbot/internal/dialog"
	"github.com/akushch/rentbot/internal/handler"
	"github.com/akushch/rentbot/internal/rent"
	"github.com/akushch/rentbot/internal/repository"
	"github.com/akushch/rentbot/internal/session"
	"github.com/akushch/rentbot/internal/telegram"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	if cfg.TelegramToken == "" {
		sugar.Fatalw("telegram token is required")
	}

	var repo rent.Repository
	if cfg.DatabaseURI != "" {
		pg, err := repository.NewPostgresRepository(cfg.DatabaseURI)
		if err != nil {
			sugar.Fatalw("database initialization error", "error", err.Error())
		}
		repo = pg
	} else {
		sugar.Infow("DATABASE_URI is empty, using in-memory storage")
		repo = repository.NewMemoryRepository(repository.SeedFleet())
	}
	defer repo.Close()

	svc := rent.NewService(repo)

	sessions := session.NewStore()
	dlg := dialog.New(svc, sessions, cfg.AdminIDs, logger)

	bot, err := telegram.New(cfg.TelegramToken, dlg, logger)
	if err != nil {
		sugar.Fatalw("telegram initialization error", "error", err.Error())
	}

	h := handler.NewHandler(svc, logger)

	server := &http.Server{
		Addr:    cfg.RunAddress,
		Handler: h.SetupRouter(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Фоновая очистка брошенных сессий
	sessions.StartCleanup(ctx, cfg.SessionTTL)

	// Опрос Telegram
	g.Go(func() error {
		sugar.Infow("starting telegram polling", "admins", len(cfg.AdminIDs))
		return bot.Run(ctx)
	})

	// Сервисный HTTP API
	g.Go(func() error {
		sugar.Infow("starting ops server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
