package dryrun

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"telegram-voice-transcriber/internal/domain"
)

func summary(id int, t domain.MessageType) domain.MessageSummary {
	return domain.MessageSummary{
		MessageID:     id,
		Timestamp:     time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC).Add(time.Duration(id) * time.Minute),
		SenderDisplay: "Anna",
		Type:          t,
	}
}

func TestReport(t *testing.T) {
	t.Run("Счётчики по типам и общий итог", func(t *testing.T) {
		r := NewReport("Test Chat", 2025)
		r.Add(summary(1, domain.TypeVoice))
		r.Add(summary(2, domain.TypeVoice))
		r.Add(summary(3, domain.TypeText))

		stats := r.Finalize()
		assert.Equal(t, "Test Chat", stats.ChatTitle)
		assert.Equal(t, 2025, stats.Year)
		assert.Equal(t, 3, stats.TotalMessages)
		assert.Equal(t, 2, stats.TypeCounts.Get(domain.TypeVoice))
		assert.Equal(t, 1, stats.TypeCounts.Get(domain.TypeText))
		assert.Equal(t, []domain.MessageType{domain.TypeVoice, domain.TypeText}, stats.TypeCounts.Types())
	})

	t.Run("Выборка примеров ограничена размером", func(t *testing.T) {
		r := NewReport("Test Chat", 2025, WithSampleSize(2))
		for id := 1; id <= 5; id++ {
			r.Add(summary(id, domain.TypeVoice))
		}

		stats := r.Finalize()
		assert.Equal(t, 5, stats.TotalMessages)
		assert.Len(t, stats.ExampleMessages, 2)
		assert.Equal(t, 1, stats.ExampleMessages[0].MessageID)
		assert.Equal(t, 2, stats.ExampleMessages[1].MessageID)
	})

	t.Run("Finalize можно вызывать многократно без сброса", func(t *testing.T) {
		r := NewReport("Test Chat", 2025)
		r.Add(summary(1, domain.TypeVoice))

		first := r.Finalize()
		second := r.Finalize()
		assert.Equal(t, first.TotalMessages, second.TotalMessages)

		r.Add(summary(2, domain.TypeText))
		third := r.Finalize()
		assert.Equal(t, 2, third.TotalMessages)
	})

	t.Run("Пустой отчёт", func(t *testing.T) {
		stats := NewReport("Empty", 2024).Finalize()
		assert.Zero(t, stats.TotalMessages)
		assert.Empty(t, stats.ExampleMessages)
		assert.Empty(t, stats.TypeCounts.Types())
	})
}
