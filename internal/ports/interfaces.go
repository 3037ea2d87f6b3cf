// Package ports определяет интерфейсы между ядром конвейера и внешними
// коллабораторами. Ядро реализуется против интерфейсов, а не конкретных клиентов.
package ports

import (
	"context"
	"time"

	"telegram-voice-transcriber/internal/domain"
)

// CollectOptions задаёт границы сбора сообщений.
type CollectOptions struct {
	// Since — нижняя граница (включительно), UTC.
	Since time.Time
	// Until — верхняя граница (исключительно), UTC.
	Until time.Time
}

// MessageSource определяет источник сообщений чата.
// Реализация обязана дедуплицировать сообщения по ID и отсортировать их
// по возрастанию даты.
type MessageSource interface {
	Collect(ctx context.Context, chatIdentifier string, opts CollectOptions) (*domain.CollectionResult, error)
}

// MediaFetcher скачивает медиа по непрозрачной ссылке в указанный путь.
type MediaFetcher interface {
	Fetch(ctx context.Context, ref *domain.MediaRef, destPath string) error
}

// Downloader загружает медиа сообщения в детерминированный кэш и возвращает путь.
type Downloader interface {
	Download(ctx context.Context, message *domain.MessageEnvelope) (string, error)
}

// Segment — один временной сегмент результата распознавания речи.
type Segment struct {
	Text string
}

// SpeechBackend — внешняя модель распознавания речи.
// Может вернуть ошибку; обработкой сбоев занимается вызывающая сторона.
type SpeechBackend interface {
	Transcribe(ctx context.Context, audioPath string) ([]Segment, error)
}

// Transcriber превращает аудиофайл в одну плоскую строку текста.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// Exporter рендерит итоговый документ из записей транскрипта.
type Exporter interface {
	Render(entries []domain.TranscriptEntry) string
}

// Writer записывает готовый документ на диск.
type Writer interface {
	Write(targetPath string, content string) error
}
