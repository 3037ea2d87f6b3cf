package transcribe

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"

	"telegram-voice-transcriber/internal/ports"
)

// whisperAPI — подмножество клиента OpenAI, которое мы используем.
// Выделено в интерфейс ради моков в тестах.
type whisperAPI interface {
	CreateTranscription(ctx context.Context, request openai.AudioRequest) (openai.AudioResponse, error)
}

// WhisperBackend реализует ports.SpeechBackend через Whisper API.
// Параметры поиска декодера (beam size, best-of) и VAD-фильтр применяются
// на стороне сервиса и в запросе не передаются.
type WhisperBackend struct {
	client  whisperAPI
	options Options
}

// NewWhisperBackend создает бэкенд с указанным API-ключом.
func NewWhisperBackend(apiKey string, options Options) *WhisperBackend {
	return &WhisperBackend{
		client:  openai.NewClient(apiKey),
		options: options,
	}
}

// Transcribe отправляет файл в Whisper API и возвращает сегменты.
// Prompt намеренно пуст: каждый файл распознаётся без условия
// на предыдущий текст.
func (b *WhisperBackend) Transcribe(ctx context.Context, audioPath string) ([]ports.Segment, error) {
	resp, err := b.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    openai.Whisper1,
		FilePath: audioPath,
		Language: b.options.Language,
		Format:   openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		return nil, fmt.Errorf("whisper request failed: %w", err)
	}

	segments := make([]ports.Segment, 0, len(resp.Segments))
	for _, segment := range resp.Segments {
		segments = append(segments, ports.Segment{Text: segment.Text})
	}

	// Старые модели могут вернуть только плоский текст без сегментов.
	if len(segments) == 0 && resp.Text != "" {
		segments = append(segments, ports.Segment{Text: resp.Text})
	}

	return segments, nil
}

// NoopBackend — заглушка на случай, когда транскрибировать нечего
// (dry-run или все медиа уже обработаны): настоящий бэкенд не создаётся.
type NoopBackend struct{}

// Transcribe всегда возвращает пустой результат.
func (NoopBackend) Transcribe(_ context.Context, _ string) ([]ports.Segment, error) {
	return nil, nil
}
