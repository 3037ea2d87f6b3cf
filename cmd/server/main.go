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

	applog "telegram-voice-transcriber/internal/log"
	"telegram-voice-transcriber/internal/pkg/config"
	"telegram-voice-transcriber/internal/ports"
	"telegram-voice-transcriber/internal/server"
	"telegram-voice-transcriber/internal/telegram"
	"telegram-voice-transcriber/internal/usecase"
)

func main() {
	if err := run(); err != nil {
		slog.Error("application run failed", "error", err)
		os.Exit(1)
	}
}

// runner строит сквозной сценарий под конфигурацию конкретного запроса,
// переиспользуя общий клиент Telegram.
type runner struct {
	source  ports.MessageSource
	fetcher ports.MediaFetcher
	log     *slog.Logger
}

func (r *runner) Run(ctx context.Context, cfg *config.Config) (*usecase.Result, error) {
	return usecase.NewRunService(cfg, r.source, r.fetcher, r.log).Run(ctx)
}

// run инкапсулирует всю логику инициализации и запуска приложения.
func run() error {
	configPath := config.DefaultConfigFile
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	// 1. Загрузка конфигурации
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		// Логгер еще не инициализирован, выводим в stderr
		_, _ = fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Инициализация логгера с маскированием секретов
	var level slog.Level
	switch cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Logging.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	logger := applog.NewMaskedLogger(handler, cfg.Telegram.APIHash, cfg.Telegram.PhoneNumber)
	slog.SetDefault(logger)

	// 3. Валидация конфигурации (после инициализации логгера)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	// 4. Запуск фонового клиента Telegram
	appCtx, appCancel := context.WithCancel(context.Background())
	defer appCancel()

	client := telegram.NewClient(telegram.Config{
		APIID:       cfg.Telegram.APIID,
		APIHash:     cfg.Telegram.APIHash,
		PhoneNumber: cfg.Telegram.PhoneNumber,
		SessionPath: cfg.Telegram.SessionFile,
	}, telegram.WithLogger(logger))

	client.Start(appCtx)

	readyCtx, readyCancel := context.WithTimeout(appCtx, time.Minute)
	defer readyCancel()
	if err := client.WaitReady(readyCtx); err != nil {
		return fmt.Errorf("telegram client did not become ready: %w", err)
	}

	collector := telegram.NewCollector(client, telegram.WithCollectorLogger(logger))
	processor := &runner{
		source:  collector,
		fetcher: telegram.NewFetcher(client.Raw()),
		log:     logger,
	}

	// 5. Создание HTTP-сервера
	srv := server.New(appCtx, cfg, processor, collector, client, logger)

	// 6. Запуск сервера и graceful shutdown
	serverDone := make(chan struct{})
	go func() {
		defer close(serverDone)
		logger.Info("Starting server", "addr", srv.HTTPServer.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Signal received, shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.Server.ShutdownTimeoutSeconds)*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	<-serverDone
	logger.Info("HTTP server stopped")

	// Останавливаем фоновый цикл клиента Telegram
	appCancel()
	return nil
}
