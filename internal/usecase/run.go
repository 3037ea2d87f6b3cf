package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"telegram-voice-transcriber/internal/adapters/download"
	"telegram-voice-transcriber/internal/adapters/exporter"
	"telegram-voice-transcriber/internal/adapters/transcribe"
	"telegram-voice-transcriber/internal/adapters/writer"
	"telegram-voice-transcriber/internal/core/dryrun"
	"telegram-voice-transcriber/internal/core/filter"
	"telegram-voice-transcriber/internal/core/state"
	"telegram-voice-transcriber/internal/domain"
	"telegram-voice-transcriber/internal/pkg/config"
	"telegram-voice-transcriber/internal/ports"
)

// RunService инкапсулирует сценарий одного прогона: сбор сообщений,
// сборка конвейера из конфигурации и запуск.
type RunService struct {
	cfg     *config.Config
	source  ports.MessageSource
	fetcher ports.MediaFetcher
	log     *slog.Logger
}

// NewRunService создает новый экземпляр RunService.
func NewRunService(cfg *config.Config, source ports.MessageSource, fetcher ports.MediaFetcher, log *slog.Logger) *RunService {
	if log == nil {
		log = slog.Default()
	}
	return &RunService{
		cfg:     cfg,
		source:  source,
		fetcher: fetcher,
		log:     log,
	}
}

// Run выполняет один прогон от сбора до готового документа.
func (s *RunService) Run(ctx context.Context) (*Result, error) {
	since, until, year, err := s.cfg.Chat.Window()
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "Collecting chat history",
		"chat", s.cfg.Chat.Identifier,
		"since", since.Format("2006-01-02"),
		"until", until.Format("2006-01-02"),
	)

	collection, err := s.source.Collect(ctx, s.cfg.Chat.Identifier, ports.CollectOptions{
		Since: since,
		Until: until,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to collect chat history: %w", err)
	}

	messages := collection.Messages
	s.log.InfoContext(ctx, "Collected messages",
		"chat_title", collection.ChatTitle,
		"count", len(messages),
	)

	// Отладочный режим: только последние N собранных сообщений.
	if n := s.cfg.Processing.Count; n > 0 && len(messages) > n {
		messages = messages[len(messages)-n:]
		s.log.InfoContext(ctx, "Limiting run to most recent messages", "count", n)
	}

	// В режиме диапазона дат год каталогов берётся из нижней границы.
	pathYear := since.Year()
	if year != nil {
		pathYear = *year
	}
	paths := s.cfg.ComputePaths(collection.ChatTitle, pathYear)

	processingState := state.New(paths.StateFile)

	types := make([]domain.MessageType, 0, len(s.cfg.Chat.Types))
	for _, name := range s.cfg.Chat.Types {
		t, err := domain.ParseMessageType(name)
		if err != nil {
			return nil, fmt.Errorf("failed to parse configured message type: %w", err)
		}
		types = append(types, t)
	}

	senderIDs := determineSenderIDs(messages, collection.SelfUserID, s.cfg.Chat.IncludeSelf)
	filterConfig := filter.NewConfig(senderIDs, types, year, s.cfg.Chat.IncludeSelf)

	transcriber, err := s.buildTranscriber(messages, filterConfig, processingState, collection.SelfUserID)
	if err != nil {
		return nil, err
	}

	location := s.cfg.Location()
	pipeline := NewPipeline(
		PipelineOptions{
			DryRun:     s.cfg.Processing.DryRun,
			OutputPath: paths.OutputFile,
		},
		PipelineDeps{
			FilterConfig: filterConfig,
			Exporter:     exporter.NewMarkdownExporter(collection.ChatTitle, pathYear, s.cfg.Chat.IncludeMessageIDs, location),
			Report:       dryrun.NewReport(collection.ChatTitle, pathYear),
			Downloader:   download.NewMediaCache(s.fetcher, paths.CacheDir, download.WithLogger(s.log)),
			Transcriber:  transcriber,
			Writer:       writer.NewFileWriter(),
			State:        processingState,
			SelfUserID:   collection.SelfUserID,
			Logger:       s.log,
		},
	)

	result, err := pipeline.Run(ctx, messages)
	if err != nil {
		return nil, err
	}

	if s.cfg.Processing.ExportFormat == "xlsx" && len(result.Entries) > 0 {
		xlsxPath := strings.TrimSuffix(paths.OutputFile, ".md") + ".xlsx"
		xlsx := exporter.NewXLSXExporter(collection.ChatTitle, location)
		if err := xlsx.Export(result.Entries, xlsxPath); err != nil {
			return nil, fmt.Errorf("failed to export workbook: %w", err)
		}
		s.log.InfoContext(ctx, "Workbook written", "path", xlsxPath)
	}

	return result, nil
}

// buildTranscriber выбирает бэкенд распознавания. Модель не поднимается,
// когда ни одно необработанное сообщение её не требует (в частности, в dry-run).
func (s *RunService) buildTranscriber(
	messages []domain.MessageEnvelope,
	filterConfig filter.Config,
	processingState *state.ProcessingState,
	selfUserID int64,
) (ports.Transcriber, error) {
	if s.cfg.Processing.DryRun || !requiresTranscription(messages, filterConfig, processingState, selfUserID) {
		s.log.Info("No transcription needed, skipping speech backend")
		return transcribe.New(transcribe.NoopBackend{}, transcribe.WithLogger(s.log)), nil
	}

	if s.cfg.Transcription.APIKey == "" {
		return nil, fmt.Errorf("transcription.api_key не может быть пустым при наличии медиа для распознавания")
	}

	backend := transcribe.NewWhisperBackend(s.cfg.Transcription.APIKey, transcribe.Options{
		Language:  s.cfg.Transcription.Language,
		BeamSize:  s.cfg.Transcription.BeamSize,
		BestOf:    s.cfg.Transcription.BestOf,
		VADFilter: true,
	})
	return transcribe.New(backend, transcribe.WithLogger(s.log)), nil
}

// requiresTranscription сообщает, останется ли после фильтра и состояния
// хоть одно медиа-сообщение для распознавания.
func requiresTranscription(
	messages []domain.MessageEnvelope,
	filterConfig filter.Config,
	processingState *state.ProcessingState,
	selfUserID int64,
) bool {
	for i := range messages {
		message := &messages[i]
		if !message.Type.IsTranscribable() {
			continue
		}
		if processingState.HasProcessed(message.ID) {
			continue
		}
		if filter.ShouldInclude(message, filterConfig, selfUserID) {
			return true
		}
	}
	return false
}

// determineSenderIDs выводит список допустимых отправителей из собранных
// сообщений: все встреченные отправители, без собственного аккаунта при
// include_self=false. Пустой список при include_self=true означает
// отсутствие ограничений.
func determineSenderIDs(messages []domain.MessageEnvelope, selfUserID int64, includeSelf bool) []int64 {
	seen := make(map[int64]struct{})
	ids := make([]int64, 0)

	for i := range messages {
		id := messages[i].SenderID
		if !includeSelf && id == selfUserID {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	if len(ids) == 0 && includeSelf {
		return nil
	}
	return ids
}
