package download

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telegram-voice-transcriber/internal/domain"
)

// mockFetcher — мок-реализация ports.MediaFetcher на функциональном поле.
type mockFetcher struct {
	calls     int
	fetchFunc func(ctx context.Context, ref *domain.MediaRef, destPath string) error
}

func (m *mockFetcher) Fetch(ctx context.Context, ref *domain.MediaRef, destPath string) error {
	m.calls++
	if m.fetchFunc != nil {
		return m.fetchFunc(ctx, ref, destPath)
	}
	return os.WriteFile(destPath, []byte("media"), 0o644)
}

func voiceEnvelope(id int, media *domain.MediaRef) *domain.MessageEnvelope {
	return &domain.MessageEnvelope{
		ID:    id,
		Date:  time.Date(2025, 3, 14, 9, 26, 0, 0, time.UTC),
		Type:  domain.TypeVoice,
		Media: media,
	}
}

func TestMediaCacheDownload(t *testing.T) {
	ctx := context.Background()

	t.Run("Сообщение без медиа — ошибка входных данных", func(t *testing.T) {
		cache := NewMediaCache(&mockFetcher{}, t.TempDir())
		_, err := cache.Download(ctx, voiceEnvelope(1, nil))
		assert.ErrorIs(t, err, ErrNoMedia)
	})

	t.Run("Детерминированный путь: год/месяц/id.расширение", func(t *testing.T) {
		base := t.TempDir()
		cache := NewMediaCache(&mockFetcher{}, base)

		path, err := cache.Download(ctx, voiceEnvelope(42, &domain.MediaRef{}))
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(base, "2025", "03", "42.ogg"), path)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "media", string(data))
	})

	t.Run("Повторная загрузка — попадание в кэш без вызова fetcher", func(t *testing.T) {
		fetcher := &mockFetcher{}
		cache := NewMediaCache(fetcher, t.TempDir())
		msg := voiceEnvelope(42, &domain.MediaRef{})

		first, err := cache.Download(ctx, msg)
		require.NoError(t, err)
		second, err := cache.Download(ctx, msg)
		require.NoError(t, err)

		assert.Equal(t, first, second)
		assert.Equal(t, 1, fetcher.calls, "второй вызов не должен обращаться к сети")
	})

	t.Run("Ошибка fetcher не оставляет частичных файлов", func(t *testing.T) {
		fetcher := &mockFetcher{
			fetchFunc: func(_ context.Context, _ *domain.MediaRef, destPath string) error {
				_ = os.WriteFile(destPath, []byte("partial"), 0o644)
				return assert.AnError
			},
		}
		base := t.TempDir()
		cache := NewMediaCache(fetcher, base)

		_, err := cache.Download(ctx, voiceEnvelope(7, &domain.MediaRef{}))
		require.Error(t, err)

		entries, err := os.ReadDir(filepath.Join(base, "2025", "03"))
		require.NoError(t, err)
		assert.Empty(t, entries, "ни канонического, ни временного файла быть не должно")
	})
}

func TestInferExtension(t *testing.T) {
	cases := []struct {
		name     string
		envelope *domain.MessageEnvelope
		want     string
	}{
		{
			name:     "Явное расширение файла имеет высший приоритет",
			envelope: voiceEnvelope(1, &domain.MediaRef{FileExt: ".oga", FileName: "a.mp3", MimeType: "audio/mpeg"}),
			want:     ".oga",
		},
		{
			name:     "Явное расширение нормализуется до точки",
			envelope: voiceEnvelope(1, &domain.MediaRef{FileExt: "oga"}),
			want:     ".oga",
		},
		{
			name:     "Расширение имени документа — второй приоритет",
			envelope: voiceEnvelope(1, &domain.MediaRef{FileName: "note.m4a", MimeType: "audio/ogg"}),
			want:     ".m4a",
		},
		{
			name:     "MIME audio/ogg",
			envelope: voiceEnvelope(1, &domain.MediaRef{MimeType: "audio/ogg"}),
			want:     ".ogg",
		},
		{
			name:     "MIME audio/mpeg",
			envelope: voiceEnvelope(1, &domain.MediaRef{MimeType: "audio/mpeg"}),
			want:     ".mp3",
		},
		{
			name:     "MIME video/mp4",
			envelope: voiceEnvelope(1, &domain.MediaRef{MimeType: "video/mp4"}),
			want:     ".mp4",
		},
		{
			name:     "Дефолт по типу voice",
			envelope: voiceEnvelope(1, &domain.MediaRef{}),
			want:     ".ogg",
		},
		{
			name: "Дефолт по типу audio",
			envelope: &domain.MessageEnvelope{
				Type: domain.TypeAudio, Media: &domain.MediaRef{}, Date: time.Now().UTC(),
			},
			want: ".mp3",
		},
		{
			name: "Дефолт по типу video_note",
			envelope: &domain.MessageEnvelope{
				Type: domain.TypeVideoNote, Media: &domain.MediaRef{}, Date: time.Now().UTC(),
			},
			want: ".mp4",
		},
		{
			name: "Фолбэк .bin",
			envelope: &domain.MessageEnvelope{
				Type: domain.TypeOther, Media: &domain.MediaRef{MimeType: "application/octet-stream"}, Date: time.Now().UTC(),
			},
			want: ".bin",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, inferExtension(tc.envelope))
		})
	}
}
