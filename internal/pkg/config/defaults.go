package config

import "time"

// Default values for configuration.
const (
	DefaultConfigFile = "config.yml"

	// Server defaults
	DefaultServerHost      = "0.0.0.0"
	DefaultServerPort      = 8080
	DefaultShutdownTimeout = 15 * time.Second

	// Telegram defaults
	DefaultSessionFile = "tg.session"

	// Chat defaults
	DefaultTimezone = "Europe/Vienna"

	// Transcription defaults
	DefaultLanguage = "de"
	DefaultBeamSize = 5
	DefaultBestOf   = 5

	// Processing defaults
	DefaultDataDir      = "data"
	DefaultExportFormat = "markdown"

	// Logging defaults
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

const dateLayout = "2006-01-02"

// DefaultMessageTypes — типы сообщений, обрабатываемые по умолчанию.
var DefaultMessageTypes = []string{"text", "voice", "audio", "video_note"}

// knownMessageTypes — допустимые значения chat.types.
var knownMessageTypes = map[string]bool{
	"text":       true,
	"voice":      true,
	"audio":      true,
	"video_note": true,
	"other":      true,
}
