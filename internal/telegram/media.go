package telegram

import (
	"context"
	"fmt"

	"github.com/gotd/td/telegram/downloader"
	"github.com/gotd/td/tg"

	"telegram-voice-transcriber/internal/domain"
)

// Fetcher скачивает документы через MTProto и реализует ports.MediaFetcher.
type Fetcher struct {
	api downloader.Client
}

// NewFetcher создает загрузчик поверх низкоуровневого API-клиента.
func NewFetcher(api downloader.Client) *Fetcher {
	return &Fetcher{api: api}
}

// Fetch скачивает документ по ссылке в указанный путь. Атомарность
// обеспечивает вызывающая сторона: destPath — временный файл кэша.
func (f *Fetcher) Fetch(ctx context.Context, ref *domain.MediaRef, destPath string) error {
	location := &tg.InputDocumentFileLocation{
		ID:            ref.DocumentID,
		AccessHash:    ref.AccessHash,
		FileReference: ref.FileReference,
	}

	if _, err := downloader.NewDownloader().Download(f.api, location).ToPath(ctx, destPath); err != nil {
		return fmt.Errorf("failed to download document %d: %w", ref.DocumentID, err)
	}

	return nil
}
