package usecase

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telegram-voice-transcriber/internal/adapters/exporter"
	"telegram-voice-transcriber/internal/adapters/writer"
	"telegram-voice-transcriber/internal/core/dryrun"
	"telegram-voice-transcriber/internal/core/filter"
	"telegram-voice-transcriber/internal/core/state"
	"telegram-voice-transcriber/internal/domain"
)

// Моки коллабораторов на функциональных полях.

type mockDownloader struct {
	calls        int
	downloadFunc func(ctx context.Context, message *domain.MessageEnvelope) (string, error)
}

func (m *mockDownloader) Download(ctx context.Context, message *domain.MessageEnvelope) (string, error) {
	m.calls++
	if m.downloadFunc != nil {
		return m.downloadFunc(ctx, message)
	}
	return "/cache/audio.ogg", nil
}

type mockTranscriber struct {
	calls          int
	transcribeFunc func(ctx context.Context, audioPath string) (string, error)
}

func (m *mockTranscriber) Transcribe(ctx context.Context, audioPath string) (string, error) {
	m.calls++
	if m.transcribeFunc != nil {
		return m.transcribeFunc(ctx, audioPath)
	}
	return "hallo welt", nil
}

type mockWriter struct {
	calls   int
	target  string
	content string
	err     error
}

func (m *mockWriter) Write(targetPath string, content string) error {
	m.calls++
	m.target = targetPath
	m.content = content
	return m.err
}

func textMessage(id int, text string) domain.MessageEnvelope {
	return domain.MessageEnvelope{
		ID:            id,
		SenderID:      100,
		SenderDisplay: "Anna",
		Date:          time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC).Add(time.Duration(id) * time.Minute),
		Type:          domain.TypeText,
		Text:          text,
	}
}

func voiceMsg(id int) domain.MessageEnvelope {
	return domain.MessageEnvelope{
		ID:            id,
		SenderID:      100,
		SenderDisplay: "Anna",
		Date:          time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC).Add(time.Duration(id) * time.Minute),
		Type:          domain.TypeVoice,
		Media:         &domain.MediaRef{DocumentID: int64(id)},
	}
}

func allTypesConfig() filter.Config {
	return filter.NewConfig(nil, []domain.MessageType{
		domain.TypeText, domain.TypeVoice, domain.TypeAudio, domain.TypeVideoNote,
	}, nil, false)
}

type pipelineFixture struct {
	pipeline    *Pipeline
	state       *state.ProcessingState
	downloader  *mockDownloader
	transcriber *mockTranscriber
	writer      *mockWriter
	outputPath  string
}

func newFixture(t *testing.T, dryRun bool) *pipelineFixture {
	t.Helper()

	dir := t.TempDir()
	st := state.New(filepath.Join(dir, "state.json"))
	downloader := &mockDownloader{}
	transcriber := &mockTranscriber{}
	w := &mockWriter{}
	outputPath := filepath.Join(dir, "out.md")

	p := NewPipeline(
		PipelineOptions{DryRun: dryRun, OutputPath: outputPath},
		PipelineDeps{
			FilterConfig: allTypesConfig(),
			Exporter:     exporter.NewMarkdownExporter("Test Chat", 2025, true, time.UTC),
			Report:       dryrun.NewReport("Test Chat", 2025),
			Downloader:   downloader,
			Transcriber:  transcriber,
			Writer:       w,
			State:        st,
			SelfUserID:   999,
		},
	)

	return &pipelineFixture{
		pipeline:    p,
		state:       st,
		downloader:  downloader,
		transcriber: transcriber,
		writer:      w,
		outputPath:  outputPath,
	}
}

func TestPipelineFullRun(t *testing.T) {
	ctx := context.Background()

	t.Run("Текст и голос дают записи, состояние фиксируется", func(t *testing.T) {
		f := newFixture(t, false)
		messages := []domain.MessageEnvelope{textMessage(1, "hi"), voiceMsg(2)}

		result, err := f.pipeline.Run(ctx, messages)
		require.NoError(t, err)
		require.NotNil(t, result.Summary)

		assert.Equal(t, 2, result.Summary.ProcessedMessages)
		assert.Equal(t, 1, result.Summary.TypeCounts.Get(domain.TypeText))
		assert.Equal(t, 1, result.Summary.TypeCounts.Get(domain.TypeVoice))
		assert.Equal(t, f.outputPath, result.Summary.OutputPath)

		assert.True(t, f.state.HasProcessed(1))
		assert.True(t, f.state.HasProcessed(2))

		assert.Equal(t, 1, f.writer.calls)
		assert.Contains(t, f.writer.content, "hallo welt (voice)")
	})

	t.Run("Пустой текст пропускается без следа", func(t *testing.T) {
		f := newFixture(t, false)

		result, err := f.pipeline.Run(ctx, []domain.MessageEnvelope{textMessage(1, "")})
		require.NoError(t, err)

		assert.Zero(t, result.Summary.ProcessedMessages)
		assert.False(t, f.state.HasProcessed(1), "пропущенное сообщение не фиксируется")
		assert.Zero(t, f.writer.calls, "без записей файл не пишется")
		assert.Empty(t, result.Summary.OutputPath)
	})

	t.Run("Сбой транскрипции одного сообщения не прерывает прогон", func(t *testing.T) {
		f := newFixture(t, false)
		f.transcriber.transcribeFunc = func(_ context.Context, audioPath string) (string, error) {
			if audioPath == "/cache/2.ogg" {
				return "", errors.New("model exploded")
			}
			return "ok", nil
		}
		f.downloader.downloadFunc = func(_ context.Context, m *domain.MessageEnvelope) (string, error) {
			return "/cache/" + map[int]string{2: "2.ogg", 3: "3.ogg"}[m.ID], nil
		}

		result, err := f.pipeline.Run(ctx, []domain.MessageEnvelope{voiceMsg(2), voiceMsg(3)})
		require.NoError(t, err)

		// Сбойное сообщение получает плейсхолдер, остаётся записью
		// и фиксируется как обработанное: повторных попыток не будет.
		assert.Equal(t, 2, result.Summary.ProcessedMessages)
		assert.Contains(t, f.writer.content, PlaceholderFailed)
		assert.Contains(t, f.writer.content, "ok")
		assert.True(t, f.state.HasProcessed(2))
		assert.True(t, f.state.HasProcessed(3))
	})

	t.Run("Сбой скачивания — тот же плейсхолдер", func(t *testing.T) {
		f := newFixture(t, false)
		f.downloader.downloadFunc = func(_ context.Context, _ *domain.MessageEnvelope) (string, error) {
			return "", errors.New("network down")
		}

		result, err := f.pipeline.Run(ctx, []domain.MessageEnvelope{voiceMsg(1)})
		require.NoError(t, err)

		assert.Equal(t, 1, result.Summary.ProcessedMessages)
		assert.Contains(t, f.writer.content, PlaceholderFailed)
		assert.Zero(t, f.transcriber.calls, "после сбоя скачивания транскрипция не вызывается")
	})

	t.Run("Пустая успешная транскрипция отличается от сбоя", func(t *testing.T) {
		f := newFixture(t, false)
		f.transcriber.transcribeFunc = func(_ context.Context, _ string) (string, error) {
			return "", nil
		}

		_, err := f.pipeline.Run(ctx, []domain.MessageEnvelope{voiceMsg(1)})
		require.NoError(t, err)

		assert.Contains(t, f.writer.content, PlaceholderEmpty)
		assert.NotContains(t, f.writer.content, PlaceholderFailed)
	})

	t.Run("Уже обработанные сообщения пропускаются", func(t *testing.T) {
		f := newFixture(t, false)
		f.state.RecordProcessed(1)

		result, err := f.pipeline.Run(ctx, []domain.MessageEnvelope{voiceMsg(1)})
		require.NoError(t, err)

		assert.Zero(t, result.Summary.ProcessedMessages)
		assert.Zero(t, f.downloader.calls, "повторного скачивания быть не должно")
	})

	t.Run("Отфильтрованные сообщения не обрабатываются", func(t *testing.T) {
		f := newFixture(t, false)
		self := voiceMsg(1)
		self.SenderID = 999 // собственное сообщение при include_self=false

		result, err := f.pipeline.Run(ctx, []domain.MessageEnvelope{self})
		require.NoError(t, err)
		assert.Zero(t, result.Summary.ProcessedMessages)
		assert.Zero(t, f.downloader.calls)
	})

	t.Run("Тип other игнорируется", func(t *testing.T) {
		f := newFixture(t, false)
		other := textMessage(1, "x")
		other.Type = domain.TypeOther

		cfg := filter.NewConfig(nil, []domain.MessageType{domain.TypeOther}, nil, false)
		f.pipeline.filterConfig = cfg

		result, err := f.pipeline.Run(ctx, []domain.MessageEnvelope{other})
		require.NoError(t, err)
		assert.Zero(t, result.Summary.ProcessedMessages)
	})

	t.Run("Ошибка записи документа фатальна", func(t *testing.T) {
		f := newFixture(t, false)
		f.writer.err = errors.New("disk full")

		_, err := f.pipeline.Run(ctx, []domain.MessageEnvelope{textMessage(1, "hi")})
		assert.Error(t, err)
	})

	t.Run("Отмена контекста прерывает прогон", func(t *testing.T) {
		f := newFixture(t, false)
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		_, err := f.pipeline.Run(cancelled, []domain.MessageEnvelope{textMessage(1, "hi")})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestPipelineDryRun(t *testing.T) {
	ctx := context.Background()

	t.Run("Dry-run не имеет побочных эффектов", func(t *testing.T) {
		f := newFixture(t, true)
		messages := []domain.MessageEnvelope{textMessage(1, "hi"), voiceMsg(2), voiceMsg(3)}

		result, err := f.pipeline.Run(ctx, messages)
		require.NoError(t, err)
		require.NotNil(t, result.DryRun)
		assert.Nil(t, result.Summary)

		assert.Equal(t, 3, result.DryRun.TotalMessages)
		assert.Equal(t, 2, result.DryRun.TypeCounts.Get(domain.TypeVoice))
		assert.Len(t, result.DryRun.ExampleMessages, 3)

		assert.Zero(t, f.downloader.calls)
		assert.Zero(t, f.transcriber.calls)
		assert.Zero(t, f.writer.calls)
		for _, m := range messages {
			assert.False(t, f.state.HasProcessed(m.ID))
		}
	})

	t.Run("Dry-run не создаёт файл состояния", func(t *testing.T) {
		dir := t.TempDir()
		statePath := filepath.Join(dir, "state.json")
		st := state.New(statePath)

		p := NewPipeline(
			PipelineOptions{DryRun: true, OutputPath: filepath.Join(dir, "out.md")},
			PipelineDeps{
				FilterConfig: allTypesConfig(),
				Exporter:     exporter.NewMarkdownExporter("C", 2025, false, time.UTC),
				Report:       dryrun.NewReport("C", 2025),
				Downloader:   &mockDownloader{},
				Transcriber:  &mockTranscriber{},
				Writer:       &mockWriter{},
				State:        st,
				SelfUserID:   999,
			},
		)

		_, err := p.Run(ctx, []domain.MessageEnvelope{voiceMsg(1)})
		require.NoError(t, err)

		_, statErr := os.Stat(statePath)
		assert.True(t, os.IsNotExist(statErr))
	})
}

// Идемпотентность между прогонами: второй прогон над теми же сообщениями
// не даёт ни записей, ни скачиваний.
func TestPipelineIdempotencyAcrossRuns(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	statePath := filepath.Join(dir, "state.json")
	messages := []domain.MessageEnvelope{textMessage(1, "hi"), voiceMsg(2)}

	run := func() (*Result, *mockDownloader, *mockWriter) {
		st := state.New(statePath)
		downloader := &mockDownloader{}
		w := &mockWriter{}
		p := NewPipeline(
			PipelineOptions{DryRun: false, OutputPath: filepath.Join(dir, "out.md")},
			PipelineDeps{
				FilterConfig: allTypesConfig(),
				Exporter:     exporter.NewMarkdownExporter("C", 2025, false, time.UTC),
				Report:       dryrun.NewReport("C", 2025),
				Downloader:   downloader,
				Transcriber:  &mockTranscriber{},
				Writer:       w,
				State:        st,
				SelfUserID:   999,
			},
		)
		result, err := p.Run(ctx, messages)
		require.NoError(t, err)
		return result, downloader, w
	}

	first, firstDownloader, _ := run()
	assert.Equal(t, 2, first.Summary.ProcessedMessages)
	assert.Equal(t, 1, firstDownloader.calls)

	second, secondDownloader, secondWriter := run()
	assert.Zero(t, second.Summary.ProcessedMessages)
	assert.Zero(t, secondDownloader.calls, "повторный прогон не скачивает заново")
	assert.Zero(t, secondWriter.calls)
	assert.Empty(t, second.Summary.OutputPath)
}

// Настоящий writer: документ действительно появляется на диске.
func TestPipelineWritesDocument(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	outputPath := filepath.Join(dir, "output", "chat-2025.md")

	p := NewPipeline(
		PipelineOptions{DryRun: false, OutputPath: outputPath},
		PipelineDeps{
			FilterConfig: allTypesConfig(),
			Exporter:     exporter.NewMarkdownExporter("Test Chat", 2025, false, time.UTC),
			Report:       dryrun.NewReport("Test Chat", 2025),
			Downloader:   &mockDownloader{},
			Transcriber:  &mockTranscriber{},
			Writer:       writer.NewFileWriter(),
			State:        state.New(filepath.Join(dir, "state.json")),
			SelfUserID:   999,
		},
	)

	result, err := p.Run(ctx, []domain.MessageEnvelope{textMessage(1, "guten Morgen")})
	require.NoError(t, err)
	assert.Equal(t, outputPath, result.Summary.OutputPath)

	data, err := os.ReadFile(outputPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# Transcript – Test Chat (2025)")
	assert.Contains(t, string(data), "guten Morgen")
}
