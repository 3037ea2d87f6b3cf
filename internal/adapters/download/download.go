// Package download кладёт медиа сообщений в детерминированный дисковый кэш.
// Путь зависит только от UTC-даты и ID сообщения, поэтому повторная загрузка
// того же сообщения попадает в кэш без обращения к сети.
package download

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"telegram-voice-transcriber/internal/domain"
	"telegram-voice-transcriber/internal/ports"
)

// ErrNoMedia возвращается для сообщений без ссылки на исходный медиа-объект.
// Текстовые сообщения не должны попадать в загрузчик.
var ErrNoMedia = errors.New("message carries no media reference")

// MediaCache реализует ports.Downloader поверх внешнего ports.MediaFetcher.
type MediaCache struct {
	fetcher ports.MediaFetcher
	baseDir string
	log     *slog.Logger
}

// Option — функциональная опция для настройки MediaCache.
type Option func(*MediaCache)

// WithLogger устанавливает логгер.
func WithLogger(l *slog.Logger) Option {
	return func(c *MediaCache) {
		if l != nil {
			c.log = l
		}
	}
}

// NewMediaCache создает кэш с корнем baseDir.
func NewMediaCache(fetcher ports.MediaFetcher, baseDir string, opts ...Option) *MediaCache {
	c := &MediaCache{
		fetcher: fetcher,
		baseDir: baseDir,
		log:     slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Download возвращает путь к медиа-файлу сообщения, скачивая его при
// отсутствии в кэше. Скачивание идёт во временный соседний файл с последующим
// атомарным rename: прерванная загрузка не оставляет частичный файл
// по каноническому пути.
func (c *MediaCache) Download(ctx context.Context, message *domain.MessageEnvelope) (string, error) {
	if message.Media == nil {
		return "", fmt.Errorf("message %d: %w", message.ID, ErrNoMedia)
	}

	timestamp := message.Date.UTC()
	targetDir := filepath.Join(c.baseDir, fmt.Sprintf("%d", timestamp.Year()), fmt.Sprintf("%02d", int(timestamp.Month())))
	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create cache directory: %w", err)
	}

	targetPath := filepath.Join(targetDir, fmt.Sprintf("%d%s", message.ID, inferExtension(message)))

	if _, err := os.Stat(targetPath); err == nil {
		c.log.DebugContext(ctx, "Media cache hit", "message_id", message.ID, "path", targetPath)
		return targetPath, nil
	}

	tmpPath := targetPath + ".tmp"
	if err := c.fetcher.Fetch(ctx, message.Media, tmpPath); err != nil {
		// Неудачная загрузка не должна засорять кэш.
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("failed to fetch media for message %d: %w", message.ID, err)
	}

	if err := os.Rename(tmpPath, targetPath); err != nil {
		return "", fmt.Errorf("failed to move media into cache: %w", err)
	}

	c.log.InfoContext(ctx, "Media downloaded", "message_id", message.ID, "path", targetPath)
	return targetPath, nil
}

// inferExtension выбирает расширение по фиксированному приоритету:
// явное расширение → расширение имени файла документа → MIME-тип →
// значение по умолчанию для типа сообщения → .bin.
func inferExtension(message *domain.MessageEnvelope) string {
	ref := message.Media

	if ref.FileExt != "" {
		return normalizeExt(ref.FileExt)
	}

	if ref.FileName != "" {
		if ext := filepath.Ext(ref.FileName); ext != "" && ext != "." {
			return ext
		}
	}

	switch ref.MimeType {
	case "audio/ogg":
		return ".ogg"
	case "audio/mpeg":
		return ".mp3"
	case "video/mp4":
		return ".mp4"
	}

	switch message.Type {
	case domain.TypeVoice:
		return ".ogg"
	case domain.TypeAudio:
		return ".mp3"
	case domain.TypeVideoNote:
		return ".mp4"
	}

	return ".bin"
}

func normalizeExt(ext string) string {
	if strings.HasPrefix(ext, ".") {
		return ext
	}
	return "." + ext
}
