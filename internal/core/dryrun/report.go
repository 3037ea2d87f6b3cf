// Package dryrun накапливает статистику предпросмотра без побочных эффектов.
package dryrun

import "telegram-voice-transcriber/internal/domain"

// DefaultSampleSize — сколько первых сообщений сохраняется как примеры.
const DefaultSampleSize = 5

// Report — аккумулятор dry-run прогона: счётчики по типам и ограниченная
// выборка примеров.
type Report struct {
	chatTitle  string
	year       int
	sampleSize int

	total    int
	counts   *domain.TypeCounts
	examples []domain.MessageSummary
}

// Option — функциональная опция для настройки Report.
type Option func(*Report)

// WithSampleSize задаёт размер выборки примеров.
func WithSampleSize(n int) Option {
	return func(r *Report) {
		if n >= 0 {
			r.sampleSize = n
		}
	}
}

// NewReport создает пустой аккумулятор для указанного чата и года.
func NewReport(chatTitle string, year int, opts ...Option) *Report {
	r := &Report{
		chatTitle:  chatTitle,
		year:       year,
		sampleSize: DefaultSampleSize,
		counts:     domain.NewTypeCounts(),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Add учитывает одно сообщение: суммарный счётчик, счётчик типа и,
// пока выборка не заполнена, пример.
func (r *Report) Add(summary domain.MessageSummary) {
	r.total++
	r.counts.Inc(summary.Type)
	if len(r.examples) < r.sampleSize {
		r.examples = append(r.examples, summary)
	}
}

// Finalize снимает текущий снимок. Состояние не сбрасывается,
// метод можно вызывать многократно.
func (r *Report) Finalize() *domain.DryRunStats {
	examples := make([]domain.MessageSummary, len(r.examples))
	copy(examples, r.examples)

	return &domain.DryRunStats{
		ChatTitle:       r.chatTitle,
		Year:            r.year,
		TotalMessages:   r.total,
		TypeCounts:      r.counts,
		ExampleMessages: examples,
	}
}
