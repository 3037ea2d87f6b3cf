// Package domain содержит внутренние модели данных, не зависящие от Telegram API.
package domain

import (
	"fmt"
	"time"
)

// MessageType — закрытое перечисление типов сообщений.
type MessageType string

const (
	TypeText      MessageType = "text"
	TypeVoice     MessageType = "voice"
	TypeAudio     MessageType = "audio"
	TypeVideoNote MessageType = "video_note"
	TypeOther     MessageType = "other"
)

// ParseMessageType преобразует строку в MessageType.
// Неизвестное значение — ошибка конфигурации, а не TypeOther.
func ParseMessageType(value string) (MessageType, error) {
	switch MessageType(value) {
	case TypeText, TypeVoice, TypeAudio, TypeVideoNote, TypeOther:
		return MessageType(value), nil
	default:
		return "", fmt.Errorf("неизвестный тип сообщения: %q", value)
	}
}

// IsTranscribable сообщает, требует ли тип скачивания и транскрипции.
func (t MessageType) IsTranscribable() bool {
	return t == TypeVoice || t == TypeAudio || t == TypeVideoNote
}

// MediaRef — непрозрачная ссылка на исходный медиа-объект сообщения.
// Нужна только загрузчику; остальные компоненты её не читают.
type MediaRef struct {
	DocumentID    int64
	AccessHash    int64
	FileReference []byte
	// FileExt — явное расширение файла, если источник его сообщил (с точкой).
	FileExt string
	// FileName — имя файла документа из атрибутов, если есть.
	FileName string
	MimeType string
	Size     int64
}

// MessageEnvelope — нормализованное представление одного сообщения источника.
// Создаётся коллектором при сборе и далее неизменяемо.
type MessageEnvelope struct {
	ID            int
	SenderID      int64
	SenderDisplay string
	// Date всегда нормализована к UTC.
	Date  time.Time
	Type  MessageType
	Text  string
	Media *MediaRef
}

// TranscriptEntry — одна строка, попадающая в итоговый документ.
type TranscriptEntry struct {
	MessageID     int
	Timestamp     time.Time
	SenderDisplay string
	Type          MessageType
	Content       string
}

// MessageSummary — облегчённый аналог TranscriptEntry для dry-run предпросмотра.
type MessageSummary struct {
	MessageID     int
	Timestamp     time.Time
	SenderDisplay string
	Type          MessageType
}

// RenderExample возвращает строку-пример для вывода в отчёте dry-run.
func (s MessageSummary) RenderExample() string {
	return fmt.Sprintf("%s – %s (%s)", s.Timestamp.Format("2006-01-02 15:04"), s.SenderDisplay, s.Type)
}

// TypeCounts — счётчики по типам сообщений с сохранением порядка первого появления.
// Обычная map не годится: порядок обхода в Go недетерминирован.
type TypeCounts struct {
	order  []MessageType
	counts map[MessageType]int
}

// NewTypeCounts создает пустой набор счётчиков.
func NewTypeCounts() *TypeCounts {
	return &TypeCounts{counts: make(map[MessageType]int)}
}

// Inc увеличивает счётчик типа на единицу.
func (c *TypeCounts) Inc(t MessageType) {
	if _, seen := c.counts[t]; !seen {
		c.order = append(c.order, t)
	}
	c.counts[t]++
}

// Get возвращает счётчик для типа.
func (c *TypeCounts) Get(t MessageType) int {
	return c.counts[t]
}

// Types возвращает типы в порядке первого появления.
func (c *TypeCounts) Types() []MessageType {
	out := make([]MessageType, len(c.order))
	copy(out, c.order)
	return out
}

// Total возвращает сумму всех счётчиков.
func (c *TypeCounts) Total() int {
	total := 0
	for _, n := range c.counts {
		total += n
	}
	return total
}

// DryRunStats — итог dry-run прогона: счётчики и ограниченный список примеров.
type DryRunStats struct {
	ChatTitle       string
	Year            int
	TotalMessages   int
	TypeCounts      *TypeCounts
	ExampleMessages []MessageSummary
}

// ProcessingSummary — итог полного прогона.
type ProcessingSummary struct {
	ProcessedMessages int
	TypeCounts        *TypeCounts
	// OutputPath пуст, если не было ни одной новой записи.
	OutputPath string
}

// CollectionResult — результат сбора сообщений из источника.
type CollectionResult struct {
	ChatTitle  string
	SelfUserID int64
	// Messages отсортированы по возрастанию даты и дедуплицированы по ID.
	Messages []MessageEnvelope
}
