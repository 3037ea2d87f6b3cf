// Package state хранит долговечное множество уже обработанных сообщений.
// Формат на диске — человекочитаемый JSON, чтобы состояние можно было
// инспектировать без инструментов.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultMaxHistory — предел хранимых ID; старейшие вытесняются первыми.
const DefaultMaxHistory = 2000

// persistedState — структура файла состояния.
// processed_ids упорядочены от старых к новым, длина ≤ max_history.
type persistedState struct {
	ProcessedIDs []int `json:"processed_ids"`
}

// ProcessingState — ограниченное по размеру, упорядоченное по вставке множество
// обработанных ID. Индекс-множество и упорядоченная последовательность всегда
// синхронны. Не потокобезопасно: конвейер строго последователен.
type ProcessingState struct {
	statePath  string
	maxHistory int

	orderedIDs []int
	idIndex    map[int]struct{}
	dirty      bool
}

// Option — функциональная опция для настройки ProcessingState.
type Option func(*ProcessingState)

// WithMaxHistory задаёт предел хранимых ID.
func WithMaxHistory(n int) Option {
	return func(s *ProcessingState) {
		if n > 0 {
			s.maxHistory = n
		}
	}
}

// New загружает состояние из statePath. Отсутствующий или повреждённый файл
// молча трактуется как пустое состояние — это никогда не ошибка.
func New(statePath string, opts ...Option) *ProcessingState {
	s := &ProcessingState{
		statePath:  statePath,
		maxHistory: DefaultMaxHistory,
		idIndex:    make(map[int]struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.load()
	return s
}

func (s *ProcessingState) load() {
	data, err := os.ReadFile(s.statePath)
	if err != nil {
		return
	}

	var persisted persistedState
	if err := json.Unmarshal(data, &persisted); err != nil {
		return
	}

	ids := persisted.ProcessedIDs
	// При загрузке сохраняются только последние maxHistory записей,
	// порядок от старых к новым.
	if len(ids) > s.maxHistory {
		ids = ids[len(ids)-s.maxHistory:]
	}

	for _, id := range ids {
		if _, dup := s.idIndex[id]; dup {
			continue
		}
		s.orderedIDs = append(s.orderedIDs, id)
		s.idIndex[id] = struct{}{}
	}
}

// HasProcessed проверяет членство за O(1).
func (s *ProcessingState) HasProcessed(messageID int) bool {
	_, ok := s.idIndex[messageID]
	return ok
}

// RecordProcessed добавляет ID в память. Повторное добавление — no-op.
// Запись на диск происходит только в Flush.
func (s *ProcessingState) RecordProcessed(messageID int) {
	if _, ok := s.idIndex[messageID]; ok {
		return
	}

	s.orderedIDs = append(s.orderedIDs, messageID)
	s.idIndex[messageID] = struct{}{}
	s.dirty = true
	s.trim()
}

func (s *ProcessingState) trim() {
	excess := len(s.orderedIDs) - s.maxHistory
	if excess <= 0 {
		return
	}

	for _, oldest := range s.orderedIDs[:excess] {
		delete(s.idIndex, oldest)
	}
	s.orderedIDs = s.orderedIDs[excess:]
}

// Len возвращает число хранимых ID.
func (s *ProcessingState) Len() int {
	return len(s.orderedIDs)
}

// Flush атомарно сохраняет состояние: запись во временный файл рядом с целевым
// и rename поверх него. Прерывание посреди записи не повреждает предыдущий
// корректный файл. Без изменений — no-op.
func (s *ProcessingState) Flush() error {
	if !s.dirty {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(s.statePath), 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	ids := s.orderedIDs
	if len(ids) > s.maxHistory {
		ids = ids[len(ids)-s.maxHistory:]
	}
	if ids == nil {
		ids = []int{}
	}

	payload, err := json.MarshalIndent(persistedState{ProcessedIDs: ids}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	tmpPath := s.statePath + ".tmp"
	if err := os.WriteFile(tmpPath, payload, 0o644); err != nil {
		return fmt.Errorf("failed to write temp state file: %w", err)
	}

	if err := os.Rename(tmpPath, s.statePath); err != nil {
		return fmt.Errorf("failed to replace state file: %w", err)
	}

	s.dirty = false
	return nil
}
