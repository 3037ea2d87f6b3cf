// Package usecase содержит оркестрацию обработки чата: конвейер и
// сквозной сценарий запуска.
package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"telegram-voice-transcriber/internal/core/dryrun"
	"telegram-voice-transcriber/internal/core/filter"
	"telegram-voice-transcriber/internal/core/state"
	"telegram-voice-transcriber/internal/domain"
	"telegram-voice-transcriber/internal/ports"
)

const (
	// PlaceholderFailed подставляется вместо текста при сбое
	// скачивания или транскрипции.
	PlaceholderFailed = "[transcription failed]"
	// PlaceholderEmpty подставляется при успешной, но пустой транскрипции.
	PlaceholderEmpty = "[empty transcription]"
)

// PipelineOptions — режим и цель конвейера.
type PipelineOptions struct {
	DryRun     bool
	OutputPath string
}

// Pipeline — последовательный оркестратор обработки сообщений.
// Сообщения обрабатываются строго по одному, в хронологическом порядке:
// запись «обработано» происходит только после успеха побочных эффектов,
// что и даёт гарантию «не более одного раза».
type Pipeline struct {
	options      PipelineOptions
	filterConfig filter.Config
	exporter     ports.Exporter
	report       *dryrun.Report
	downloader   ports.Downloader
	transcriber  ports.Transcriber
	writer       ports.Writer
	state        *state.ProcessingState
	selfUserID   int64
	log          *slog.Logger
}

// PipelineDeps — зависимости конвейера.
type PipelineDeps struct {
	FilterConfig filter.Config
	Exporter     ports.Exporter
	Report       *dryrun.Report
	Downloader   ports.Downloader
	Transcriber  ports.Transcriber
	Writer       ports.Writer
	State        *state.ProcessingState
	SelfUserID   int64
	Logger       *slog.Logger
}

// NewPipeline создает конвейер.
func NewPipeline(options PipelineOptions, deps PipelineDeps) *Pipeline {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	return &Pipeline{
		options:      options,
		filterConfig: deps.FilterConfig,
		exporter:     deps.Exporter,
		report:       deps.Report,
		downloader:   deps.Downloader,
		transcriber:  deps.Transcriber,
		writer:       deps.Writer,
		state:        deps.State,
		selfUserID:   deps.SelfUserID,
		log:          log,
	}
}

// Result — итог одного прогона: заполнено ровно одно из полей,
// в зависимости от режима.
type Result struct {
	DryRun  *domain.DryRunStats
	Summary *domain.ProcessingSummary
	// Entries — записи, попавшие в документ (только полный режим).
	// Нужны вторичным экспортёрам и серверному фронтенду.
	Entries []domain.TranscriptEntry
}

// Run прогоняет кандидатов через конвейер. Сообщения должны быть
// отсортированы по возрастанию даты (это гарантирует источник).
func (p *Pipeline) Run(ctx context.Context, messages []domain.MessageEnvelope) (*Result, error) {
	if p.options.DryRun {
		return p.runDry(ctx, messages)
	}
	return p.runFull(ctx, messages)
}

// runDry только классифицирует и считает: ни загрузок, ни транскрипций,
// ни изменений состояния.
func (p *Pipeline) runDry(ctx context.Context, messages []domain.MessageEnvelope) (*Result, error) {
	for i := range messages {
		message := &messages[i]

		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if p.state.HasProcessed(message.ID) {
			continue
		}
		if !filter.ShouldInclude(message, p.filterConfig, p.selfUserID) {
			continue
		}

		p.log.InfoContext(ctx, "Processing message (dry-run)",
			"date", message.Date.Format("2006-01-02 15:04"),
			"type", message.Type,
			"message_id", message.ID,
		)

		p.report.Add(domain.MessageSummary{
			MessageID:     message.ID,
			Timestamp:     message.Date,
			SenderDisplay: message.SenderDisplay,
			Type:          message.Type,
		})
	}

	// Flush вызывается безусловно в обоих режимах; для dry-run это no-op,
	// так как состояние не менялось.
	if err := p.state.Flush(); err != nil {
		return nil, fmt.Errorf("failed to flush state: %w", err)
	}

	return &Result{DryRun: p.report.Finalize()}, nil
}

func (p *Pipeline) runFull(ctx context.Context, messages []domain.MessageEnvelope) (*Result, error) {
	var entries []domain.TranscriptEntry
	counts := domain.NewTypeCounts()

	for i := range messages {
		message := &messages[i]

		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if p.state.HasProcessed(message.ID) {
			continue
		}
		if !filter.ShouldInclude(message, p.filterConfig, p.selfUserID) {
			continue
		}

		p.log.InfoContext(ctx, "Processing message",
			"date", message.Date.Format("2006-01-02 15:04"),
			"type", message.Type,
			"message_id", message.ID,
		)

		entry := p.processMessage(ctx, message)
		if entry == nil {
			continue
		}

		entries = append(entries, *entry)
		p.state.RecordProcessed(message.ID)
		counts.Inc(entry.Type)
	}

	outputPath := ""
	if len(entries) > 0 {
		document := p.exporter.Render(entries)
		if err := p.writer.Write(p.options.OutputPath, document); err != nil {
			return nil, fmt.Errorf("failed to write transcript: %w", err)
		}
		outputPath = p.options.OutputPath
	}

	// Потеря возможности фиксировать прогресс обесценивает идемпотентность,
	// поэтому ошибка Flush фатальна для прогона.
	if err := p.state.Flush(); err != nil {
		return nil, fmt.Errorf("failed to flush state: %w", err)
	}

	return &Result{
		Summary: &domain.ProcessingSummary{
			ProcessedMessages: len(entries),
			TypeCounts:        counts,
			OutputPath:        outputPath,
		},
		Entries: entries,
	}, nil
}

// processMessage превращает сообщение в запись транскрипта.
// nil означает «пропустить без следа» (пустой текст, неподдерживаемый тип).
// Сбой скачивания или транскрипции одного сообщения не прерывает прогон:
// вместо текста подставляется плейсхолдер.
func (p *Pipeline) processMessage(ctx context.Context, message *domain.MessageEnvelope) *domain.TranscriptEntry {
	var content string

	switch {
	case message.Type == domain.TypeText:
		if message.Text == "" {
			return nil
		}
		content = message.Text

	case message.Type.IsTranscribable():
		content = p.transcribeMedia(ctx, message)

	default:
		return nil
	}

	return &domain.TranscriptEntry{
		MessageID:     message.ID,
		Timestamp:     message.Date,
		SenderDisplay: message.SenderDisplay,
		Type:          message.Type,
		Content:       content,
	}
}

func (p *Pipeline) transcribeMedia(ctx context.Context, message *domain.MessageEnvelope) string {
	audioPath, err := p.downloader.Download(ctx, message)
	if err != nil {
		p.log.WarnContext(ctx, "Transcription failed", "message_id", message.ID, "error", err)
		return PlaceholderFailed
	}

	transcription, err := p.transcriber.Transcribe(ctx, audioPath)
	if err != nil {
		p.log.WarnContext(ctx, "Transcription failed", "message_id", message.ID, "error", err)
		return PlaceholderFailed
	}

	if transcription == "" {
		// Успешная, но пустая транскрипция — отдельный случай,
		// его не следует путать со сбоем.
		return PlaceholderEmpty
	}

	return transcription
}
