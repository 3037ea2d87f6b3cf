// Package transcribe нормализует вывод модели распознавания речи
// в одну плоскую строку текста.
package transcribe

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"telegram-voice-transcriber/internal/ports"
)

// Options — параметры распознавания, передаваемые бэкенду.
type Options struct {
	// Language — целевой язык (ISO 639-1).
	Language string
	// BeamSize и BestOf — параметры поиска декодера; бэкенды, не
	// поддерживающие их, игнорируют значения.
	BeamSize int
	BestOf   int
	// VADFilter включает фильтрацию по детектору голосовой активности.
	VADFilter bool
}

// DefaultOptions — параметры по умолчанию, совпадающие с настройками модели.
// Каждый сегмент распознаётся независимо (без условия на предыдущий текст),
// чтобы галлюцинация одного сегмента не тянулась через весь файл.
func DefaultOptions(language string) Options {
	return Options{
		Language:  language,
		BeamSize:  5,
		BestOf:    5,
		VADFilter: true,
	}
}

// Transcriber реализует ports.Transcriber поверх внешнего ports.SpeechBackend.
type Transcriber struct {
	backend ports.SpeechBackend
	log     *slog.Logger
}

// Option — функциональная опция для настройки Transcriber.
type Option func(*Transcriber)

// WithLogger устанавливает логгер.
func WithLogger(l *slog.Logger) Option {
	return func(t *Transcriber) {
		if l != nil {
			t.log = l
		}
	}
}

// New создает Transcriber над заданным бэкендом.
func New(backend ports.SpeechBackend, opts ...Option) *Transcriber {
	t := &Transcriber{
		backend: backend,
		log:     slog.Default(),
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Transcribe запускает бэкенд и склеивает непустые сегменты одиночными
// пробелами. Ошибки бэкенда пробрасываются вызывающему — восстановлением
// занимается конвейер.
func (t *Transcriber) Transcribe(ctx context.Context, audioPath string) (string, error) {
	segments, err := t.backend.Transcribe(ctx, audioPath)
	if err != nil {
		t.log.ErrorContext(ctx, "Speech backend failed", "path", audioPath, "error", err)
		return "", fmt.Errorf("speech backend failed for %s: %w", audioPath, err)
	}

	parts := make([]string, 0, len(segments))
	for _, segment := range segments {
		text := strings.TrimSpace(segment.Text)
		if text != "" {
			parts = append(parts, text)
		}
	}

	return strings.Join(parts, " "), nil
}
