// Package log содержит обработчик slog, маскирующий секреты приложения
// (api_hash и номера телефонов) в выводе логов.
package log

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
)

const maskedValue = "***masked***"

// маскируем международные номера телефонов вида +4366412345678
var phoneNumberRegex = regexp.MustCompile(`\+\d{7,15}`)

// SecretMaskerHandler - обертка для slog.Handler, которая маскирует секреты в логах
type SecretMaskerHandler struct {
	handler slog.Handler
	secrets []string
}

// NewSecretMaskerHandler создает новый обработчик с маскировкой переданных
// секретов. Пустые секреты игнорируются.
func NewSecretMaskerHandler(handler slog.Handler, secrets ...string) *SecretMaskerHandler {
	kept := make([]string, 0, len(secrets))
	for _, s := range secrets {
		if s != "" {
			kept = append(kept, s)
		}
	}
	return &SecretMaskerHandler{
		handler: handler,
		secrets: kept,
	}
}

// mask заменяет известные секреты и номера телефонов на маску
func (h *SecretMaskerHandler) mask(text string) string {
	for _, secret := range h.secrets {
		text = strings.ReplaceAll(text, secret, maskedValue)
	}
	return phoneNumberRegex.ReplaceAllString(text, "+***")
}

// Enabled реализует интерфейс slog.Handler
func (h *SecretMaskerHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle реализует интерфейс slog.Handler
func (h *SecretMaskerHandler) Handle(ctx context.Context, record slog.Record) error {
	// Работаем с изолированной копией записи: оригинал slog может
	// переиспользовать. Clone() обнуляет атрибуты, добавляем их заново.
	r := record.Clone()

	r.Message = h.mask(r.Message)

	record.Attrs(func(a slog.Attr) bool {
		r.AddAttrs(slog.Attr{
			Key:   a.Key,
			Value: h.maskAttributeValue(a.Value),
		})
		return true
	})

	return h.handler.Handle(ctx, r)
}

// WithAttrs реализует интерфейс slog.Handler
func (h *SecretMaskerHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	maskedAttrs := make([]slog.Attr, len(attrs))
	for i, attr := range attrs {
		maskedAttrs[i] = slog.Attr{
			Key:   attr.Key,
			Value: h.maskAttributeValue(attr.Value),
		}
	}
	return &SecretMaskerHandler{
		handler: h.handler.WithAttrs(maskedAttrs),
		secrets: h.secrets,
	}
}

// WithGroup реализует интерфейс slog.Handler
func (h *SecretMaskerHandler) WithGroup(name string) slog.Handler {
	return &SecretMaskerHandler{
		handler: h.handler.WithGroup(name),
		secrets: h.secrets,
	}
}

// maskAttributeValue рекурсивно маскирует значения атрибутов
func (h *SecretMaskerHandler) maskAttributeValue(value slog.Value) slog.Value {
	switch value.Kind() {
	case slog.KindString:
		return slog.StringValue(h.mask(value.String()))
	case slog.KindAny:
		// Ошибки часто несут секреты в тексте (URL запроса, параметры),
		// поэтому приводим их к строке и маскируем.
		if err, ok := value.Any().(error); ok {
			return slog.StringValue(h.mask(err.Error()))
		}
		return value
	case slog.KindGroup:
		group := value.Group()
		maskedGroup := make([]slog.Attr, len(group))
		for i, attr := range group {
			maskedGroup[i] = slog.Attr{
				Key:   attr.Key,
				Value: h.maskAttributeValue(attr.Value),
			}
		}
		return slog.GroupValue(maskedGroup...)
	default:
		// Для других типов возвращаем оригинальное значение
		return value
	}
}

// NewMaskedLogger создает новый экземпляр slog.Logger с маскировкой секретов
func NewMaskedLogger(handler slog.Handler, secrets ...string) *slog.Logger {
	return slog.New(NewSecretMaskerHandler(handler, secrets...))
}
