package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mattn/go-runewidth"

	applog "telegram-voice-transcriber/internal/log"
	"telegram-voice-transcriber/internal/pkg/config"
	"telegram-voice-transcriber/internal/telegram"
	"telegram-voice-transcriber/internal/usecase"
)

func main() {
	if err := run(); err != nil {
		slog.Error("application run failed", "error", err)
		os.Exit(1)
	}
}

// cliFlags — переопределения конфигурации из командной строки.
// Применяются только явно переданные флаги.
type cliFlags struct {
	configPath  string
	chat        string
	year        int
	count       int
	dryRun      bool
	sinceDate   string
	untilDate   string
	listDialogs bool
}

// run инкапсулирует всю логику инициализации и запуска приложения.
func run() error {
	flags := parseFlags()

	// 1. Загрузка конфигурации и применение флагов
	cfg, err := config.LoadConfig(flags.configPath)
	if err != nil {
		// Логгер еще не инициализирован, выводим в stderr
		_, _ = fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	applyFlags(cfg, flags)

	// 2. Инициализация логгера с маскированием секретов
	logger := newLogger(cfg)
	slog.SetDefault(logger)

	// 3. Валидация конфигурации (после инициализации логгера)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	appCtx, appCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer appCancel()

	// 4. Запуск клиента Telegram
	client := telegram.NewClient(telegram.Config{
		APIID:       cfg.Telegram.APIID,
		APIHash:     cfg.Telegram.APIHash,
		PhoneNumber: cfg.Telegram.PhoneNumber,
		SessionPath: cfg.Telegram.SessionFile,
	}, telegram.WithLogger(logger))

	client.Start(appCtx)
	if err := client.WaitReady(appCtx); err != nil {
		return fmt.Errorf("telegram client did not become ready: %w", err)
	}

	collector := telegram.NewCollector(client, telegram.WithCollectorLogger(logger))

	if flags.listDialogs {
		return printDialogs(appCtx, collector)
	}

	// 5. Сквозной прогон: сбор, фильтрация, транскрипция, экспорт
	svc := usecase.NewRunService(cfg, collector, telegram.NewFetcher(client.Raw()), logger)
	result, err := svc.Run(appCtx)
	if err != nil {
		return err
	}

	printResult(os.Stdout, result)
	return nil
}

func parseFlags() cliFlags {
	var flags cliFlags
	flag.StringVar(&flags.configPath, "config", config.DefaultConfigFile, "path to YAML config file")
	flag.StringVar(&flags.chat, "chat", "", "chat identifier (title, @username or t.me link)")
	flag.IntVar(&flags.year, "year", 0, "calendar year to process")
	flag.IntVar(&flags.count, "count", 0, "process only the last N matching messages")
	flag.BoolVar(&flags.dryRun, "dry-run", false, "preview without downloads, transcription or writes")
	flag.StringVar(&flags.sinceDate, "since-date", "", "window start, YYYY-MM-DD (requires -until-date)")
	flag.StringVar(&flags.untilDate, "until-date", "", "window end, exclusive, YYYY-MM-DD (requires -since-date)")
	flag.BoolVar(&flags.listDialogs, "list-dialogs", false, "list recent dialogs and exit")
	flag.Parse()
	return flags
}

// applyFlags переносит в конфигурацию только те флаги, которые
// пользователь передал явно.
func applyFlags(cfg *config.Config, flags cliFlags) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "chat":
			cfg.Chat.Identifier = flags.chat
		case "year":
			cfg.Chat.Year = flags.year
		case "count":
			cfg.Processing.Count = flags.count
		case "dry-run":
			cfg.Processing.DryRun = flags.dryRun
		case "since-date":
			cfg.Chat.SinceDate = flags.sinceDate
		case "until-date":
			cfg.Chat.UntilDate = flags.untilDate
		}
	})
}

func newLogger(cfg *config.Config) *slog.Logger {
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
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	return applog.NewMaskedLogger(handler, cfg.Telegram.APIHash, cfg.Telegram.PhoneNumber)
}

func printDialogs(ctx context.Context, collector *telegram.Collector) error {
	dialogs, err := collector.ListDialogs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list dialogs: %w", err)
	}

	rows := [][]string{{"ID", "KIND", "TITLE"}}
	for _, d := range dialogs {
		rows = append(rows, []string{fmt.Sprintf("%d", d.ID), d.Kind, d.Title})
	}
	fmt.Print(renderTable(rows))
	return nil
}

func printResult(out *os.File, result *usecase.Result) {
	if result.DryRun != nil {
		stats := result.DryRun
		fmt.Fprintf(out, "Dry-run preview for %q, year %d\n", stats.ChatTitle, stats.Year)
		fmt.Fprintf(out, "Messages to process: %d\n\n", stats.TotalMessages)

		rows := [][]string{{"TYPE", "COUNT"}}
		for _, t := range stats.TypeCounts.Types() {
			rows = append(rows, []string{string(t), fmt.Sprintf("%d", stats.TypeCounts.Get(t))})
		}
		fmt.Fprint(out, renderTable(rows))

		if len(stats.ExampleMessages) > 0 {
			fmt.Fprintln(out, "\nExamples:")
			for _, example := range stats.ExampleMessages {
				fmt.Fprintf(out, "  %s\n", example.RenderExample())
			}
		}
		return
	}

	summary := result.Summary
	fmt.Fprintf(out, "Processed messages: %d\n", summary.ProcessedMessages)
	if summary.ProcessedMessages > 0 {
		rows := [][]string{{"TYPE", "COUNT"}}
		for _, t := range summary.TypeCounts.Types() {
			rows = append(rows, []string{string(t), fmt.Sprintf("%d", summary.TypeCounts.Get(t))})
		}
		fmt.Fprint(out, renderTable(rows))
	}
	if summary.OutputPath != "" {
		fmt.Fprintf(out, "Transcript written to %s\n", summary.OutputPath)
	} else {
		fmt.Fprintln(out, "Nothing new to write")
	}
}

// renderTable выравнивает колонки по дисплейной ширине, а не по числу
// байт: названия чатов бывают с кириллицей и CJK-символами.
func renderTable(rows [][]string) string {
	if len(rows) == 0 {
		return ""
	}

	widths := make([]int, len(rows[0]))
	for _, row := range rows {
		for i, cell := range row {
			if w := runewidth.StringWidth(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}

	var b strings.Builder
	for _, row := range rows {
		for i, cell := range row {
			b.WriteString(cell)
			if i < len(row)-1 {
				b.WriteString(strings.Repeat(" ", widths[i]-runewidth.StringWidth(cell)+2))
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}
