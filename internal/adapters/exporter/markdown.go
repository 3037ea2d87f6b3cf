// Package exporter рендерит записи транскрипта в итоговые документы.
package exporter

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"telegram-voice-transcriber/internal/domain"
)

// MarkdownExporter группирует записи по локальным календарным дням
// и выводит упорядоченный Markdown-документ.
type MarkdownExporter struct {
	chatTitle         string
	year              int
	includeMessageIDs bool
	location          *time.Location
}

// NewMarkdownExporter создает экспортёр для чата и года.
// location задаёт зону, в которой считаются календарные дни.
func NewMarkdownExporter(chatTitle string, year int, includeMessageIDs bool, location *time.Location) *MarkdownExporter {
	if location == nil {
		location = time.UTC
	}
	return &MarkdownExporter{
		chatTitle:         chatTitle,
		year:              year,
		includeMessageIDs: includeMessageIDs,
		location:          location,
	}
}

// Render сортирует записи по времени (стабильно: равные метки сохраняют
// исходный относительный порядок), локализует их и группирует по датам.
func (e *MarkdownExporter) Render(entries []domain.TranscriptEntry) string {
	sorted := make([]domain.TranscriptEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	grouped := make(map[string][]domain.TranscriptEntry)
	var dates []string
	for _, entry := range sorted {
		localized := entry
		localized.Timestamp = entry.Timestamp.In(e.location)
		dateKey := localized.Timestamp.Format("2006-01-02")
		if _, seen := grouped[dateKey]; !seen {
			dates = append(dates, dateKey)
		}
		grouped[dateKey] = append(grouped[dateKey], localized)
	}
	sort.Strings(dates)

	var b strings.Builder
	fmt.Fprintf(&b, "# Transcript – %s (%d)", e.chatTitle, e.year)

	for _, dateKey := range dates {
		b.WriteString("\n\n## ")
		b.WriteString(dateKey)
		for _, entry := range grouped[dateKey] {
			b.WriteString("\n")
			b.WriteString(e.renderLine(entry))
		}
	}

	b.WriteString("\n")
	return b.String()
}

func (e *MarkdownExporter) renderLine(entry domain.TranscriptEntry) string {
	line := fmt.Sprintf("%s – %s: %s",
		entry.Timestamp.Format("15:04"),
		entry.SenderDisplay,
		strings.TrimSpace(entry.Content),
	)
	line += typeSuffix(entry.Type)
	if e.includeMessageIDs {
		line += fmt.Sprintf(" [#ID: %d]", entry.MessageID)
	}
	return line
}

// typeSuffix помечает всё, кроме обычного текста.
func typeSuffix(t domain.MessageType) string {
	if t == domain.TypeText {
		return ""
	}
	return fmt.Sprintf(" (%s)", t)
}
