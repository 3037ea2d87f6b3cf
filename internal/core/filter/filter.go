// Package filter реализует чистый предикат отбора сообщений
// по типу, году, отправителю и флагу собственных сообщений.
package filter

import (
	"time"

	"telegram-voice-transcriber/internal/domain"
)

// Config — неизменяемые критерии фильтрации.
type Config struct {
	// AllowedSenderIDs: nil — без ограничения по отправителям.
	AllowedSenderIDs map[int64]struct{}
	AllowedTypes     map[domain.MessageType]struct{}
	// Year: nil — фильтр по году выключен (режим явного диапазона дат).
	Year *int
	// IncludeSelf управляет собственными сообщениями и только ими.
	IncludeSelf bool
}

// NewConfig собирает Config из срезов, допуская nil для отсутствующих ограничений.
func NewConfig(senderIDs []int64, types []domain.MessageType, year *int, includeSelf bool) Config {
	cfg := Config{Year: year, IncludeSelf: includeSelf}

	if senderIDs != nil {
		cfg.AllowedSenderIDs = make(map[int64]struct{}, len(senderIDs))
		for _, id := range senderIDs {
			cfg.AllowedSenderIDs[id] = struct{}{}
		}
	}

	cfg.AllowedTypes = make(map[domain.MessageType]struct{}, len(types))
	for _, t := range types {
		cfg.AllowedTypes[t] = struct{}{}
	}

	return cfg
}

// ShouldInclude проверяет, проходит ли сообщение настроенные фильтры.
// Порядок проверок фиксирован: тип → год → собственные сообщения → отправитель.
func ShouldInclude(message *domain.MessageEnvelope, cfg Config, selfUserID int64) bool {
	if _, ok := cfg.AllowedTypes[message.Type]; !ok {
		return false
	}

	if cfg.Year != nil && !withinYear(message.Date, *cfg.Year) {
		return false
	}

	// Собственные сообщения управляются исключительно флагом IncludeSelf
	// и не подпадают под allow-list отправителей.
	if message.SenderID == selfUserID {
		return cfg.IncludeSelf
	}

	if cfg.AllowedSenderIDs == nil {
		return true
	}

	_, allowed := cfg.AllowedSenderIDs[message.SenderID]
	return allowed
}

func withinYear(timestamp time.Time, year int) bool {
	return timestamp.UTC().Year() == year
}
