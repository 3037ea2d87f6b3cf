// Package config предоставляет управление конфигурацией приложения
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// Server содержит конфигурацию HTTP-сервера
type Server struct {
	Host                   string `json:"host" yaml:"host"`
	Port                   int    `json:"port" yaml:"port"`
	ShutdownTimeoutSeconds int    `json:"shutdown_timeout_seconds" yaml:"shutdown_timeout_seconds"`
}

// Telegram содержит конфигурацию Telegram API (MTProto, пользовательский аккаунт)
type Telegram struct {
	APIID       int    `json:"api_id" yaml:"api_id"`
	APIHash     string `json:"api_hash" yaml:"api_hash"`
	PhoneNumber string `json:"phone_number" yaml:"phone_number"`
	SessionFile string `json:"session_file" yaml:"session_file"`
}

// Chat задаёт целевой чат и правила отбора сообщений
type Chat struct {
	// Identifier — @username, t.me-ссылка или заголовок диалога.
	Identifier string `json:"identifier" yaml:"identifier"`
	// Year — календарный год выборки (UTC). Игнорируется, если задан
	// явный диапазон дат.
	Year int `json:"year" yaml:"year"`
	// SinceDate/UntilDate — явный диапазон в формате YYYY-MM-DD (UTC,
	// верхняя граница исключается). Задаются только вместе.
	SinceDate string `json:"since_date" yaml:"since_date"`
	UntilDate string `json:"until_date" yaml:"until_date"`
	// Types — типы сообщений, попадающие в транскрипт.
	Types []string `json:"types" yaml:"types"`
	// IncludeSelf — включать ли собственные сообщения аккаунта.
	IncludeSelf bool `json:"include_self" yaml:"include_self"`
	// IncludeMessageIDs — добавлять ли идентификаторы сообщений в документ.
	IncludeMessageIDs bool `json:"include_message_ids" yaml:"include_message_ids"`
	// Timezone — зона для группировки по календарным дням (IANA-имя).
	Timezone string `json:"timezone" yaml:"timezone"`
}

// Transcription содержит конфигурацию распознавания речи
type Transcription struct {
	APIKey   string `json:"api_key" yaml:"api_key"`
	Language string `json:"language" yaml:"language"`
	BeamSize int    `json:"beam_size" yaml:"beam_size"`
	BestOf   int    `json:"best_of" yaml:"best_of"`
}

// Processing содержит конфигурацию обработки
type Processing struct {
	// DataDir — корень рабочих данных (кэш, выходные файлы, состояние).
	DataDir string `json:"data_dir" yaml:"data_dir"`
	// Count — обработать только последние N собранных сообщений. 0 — без ограничений.
	Count int `json:"count" yaml:"count"`
	// DryRun — только предпросмотр, без скачивания и транскрипции.
	DryRun bool `json:"dry_run" yaml:"dry_run"`
	// ExportFormat — markdown (только транскрипт) или xlsx (дополнительно
	// книга Excel рядом с транскриптом).
	ExportFormat string `json:"export_format" yaml:"export_format"`
}

// Logging содержит конфигурацию логирования
type Logging struct {
	Level  string `json:"level" yaml:"level"`   // debug, info, warn, error
	Format string `json:"format" yaml:"format"` // json, text
}

// Config содержит конфигурацию приложения
type Config struct {
	Server        Server        `json:"server" yaml:"server"`
	Telegram      Telegram      `json:"telegram" yaml:"telegram"`
	Chat          Chat          `json:"chat" yaml:"chat"`
	Transcription Transcription `json:"transcription" yaml:"transcription"`
	Processing    Processing    `json:"processing" yaml:"processing"`
	Logging       Logging       `json:"logging" yaml:"logging"`
}

// Paths — вычисленная раскладка рабочих каталогов одного прогона
type Paths struct {
	BaseDir    string
	CacheDir   string
	OutputDir  string
	StateDir   string
	OutputFile string
	StateFile  string
}

// LoadConfig загружает конфигурацию приложения из config.yml, .env файла
// или переменных окружения
func LoadConfig(path string) (*Config, error) {
	// Загрузка переменных окружения из .env файла, если он существует
	if err := godotenv.Load(); err != nil {
		// Отсутствие .env — штатная ситуация
	}

	if path == "" {
		path = DefaultConfigFile
	}

	cfg, err := loadFromYAML(path)
	if err != nil {
		// Если YAML недоступен, собираем конфигурацию из переменных окружения
		cfg = &Config{}
	}

	cfg.overlayEnv()
	cfg.applyDefaults()

	return cfg, nil
}

// loadFromYAML загружает конфигурацию из YAML-файла
func loadFromYAML(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("не удалось прочитать файл конфигурации %s: %w", filename, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("не удалось разобрать YAML конфигурацию: %w", err)
	}

	return &cfg, nil
}

// overlayEnv накладывает секреты и базовые параметры из переменных окружения
// поверх значений из файла. Переменная окружения имеет приоритет.
func (c *Config) overlayEnv() {
	if v := os.Getenv("API_ID"); v != "" {
		if id, err := strconv.Atoi(v); err == nil {
			c.Telegram.APIID = id
		}
	}
	if v := os.Getenv("API_HASH"); v != "" {
		c.Telegram.APIHash = v
	}
	if v := os.Getenv("PHONE_NUMBER"); v != "" {
		c.Telegram.PhoneNumber = v
	}
	if v := os.Getenv("SESSION_FILE"); v != "" {
		c.Telegram.SessionFile = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.Transcription.APIKey = v
	}
}

// applyDefaults заполняет незаданные поля значениями по умолчанию
func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = DefaultServerHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultServerPort
	}
	if c.Server.ShutdownTimeoutSeconds == 0 {
		c.Server.ShutdownTimeoutSeconds = int(DefaultShutdownTimeout / time.Second)
	}
	if c.Telegram.SessionFile == "" {
		c.Telegram.SessionFile = DefaultSessionFile
	}
	if len(c.Chat.Types) == 0 {
		c.Chat.Types = append([]string(nil), DefaultMessageTypes...)
	}
	if c.Chat.Timezone == "" {
		c.Chat.Timezone = DefaultTimezone
	}
	if c.Transcription.Language == "" {
		c.Transcription.Language = DefaultLanguage
	}
	if c.Transcription.BeamSize == 0 {
		c.Transcription.BeamSize = DefaultBeamSize
	}
	if c.Transcription.BestOf == 0 {
		c.Transcription.BestOf = DefaultBestOf
	}
	if c.Processing.DataDir == "" {
		c.Processing.DataDir = DefaultDataDir
	}
	if c.Processing.ExportFormat == "" {
		c.Processing.ExportFormat = DefaultExportFormat
	}
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
}

// Address возвращает адрес сервера в формате "host:port"
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Location возвращает часовой пояс для группировки по дням.
// Вызывается после успешной валидации.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Chat.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Window возвращает границы окна сбора: [since, until), UTC, и год фильтра.
// В режиме явного диапазона дат год отключается (nil).
func (c Chat) Window() (since, until time.Time, year *int, err error) {
	hasSince := c.SinceDate != ""
	hasUntil := c.UntilDate != ""

	if hasSince != hasUntil {
		return time.Time{}, time.Time{}, nil,
			fmt.Errorf("chat.since_date и chat.until_date задаются только вместе")
	}

	if hasSince {
		since, err = time.ParseInLocation(dateLayout, c.SinceDate, time.UTC)
		if err != nil {
			return time.Time{}, time.Time{}, nil, fmt.Errorf("недопустимая chat.since_date: %w", err)
		}
		until, err = time.ParseInLocation(dateLayout, c.UntilDate, time.UTC)
		if err != nil {
			return time.Time{}, time.Time{}, nil, fmt.Errorf("недопустимая chat.until_date: %w", err)
		}
		if !since.Before(until) {
			return time.Time{}, time.Time{}, nil,
				fmt.Errorf("chat.since_date должна быть раньше chat.until_date")
		}
		return since, until, nil, nil
	}

	if c.Year <= 0 {
		return time.Time{}, time.Time{}, nil,
			fmt.Errorf("должен быть задан chat.year или диапазон chat.since_date/chat.until_date")
	}

	y := c.Year
	since = time.Date(y, time.January, 1, 0, 0, 0, 0, time.UTC)
	until = time.Date(y+1, time.January, 1, 0, 0, 0, 0, time.UTC)
	return since, until, &y, nil
}

// ComputePaths вычисляет раскладку каталогов прогона:
// <data>/<slug>/<year>/{cache,output,state}.
func (c *Config) ComputePaths(chatTitle string, year int) Paths {
	slug := Slugify(chatTitle)
	base := filepath.Join(c.Processing.DataDir, slug, strconv.Itoa(year))

	return Paths{
		BaseDir:    base,
		CacheDir:   filepath.Join(base, "cache"),
		OutputDir:  filepath.Join(base, "output"),
		StateDir:   filepath.Join(base, "state"),
		OutputFile: filepath.Join(base, "output", fmt.Sprintf("%s-%d.md", slug, year)),
		StateFile:  filepath.Join(base, "state", "state.json"),
	}
}

// Slugify приводит заголовок чата к безопасному имени каталога:
// строчные латинские буквы и цифры, остальное схлопывается в дефисы.
func Slugify(title string) string {
	var b strings.Builder
	lastDash := true // подавляем ведущий дефис

	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}

	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		return "chat"
	}
	return slug
}

// Validate проверяет, являются ли значения конфигурации допустимыми
func (c *Config) Validate() error {
	// Валидация Telegram API
	if c.Telegram.APIID <= 0 {
		return fmt.Errorf("telegram.api_id должно быть положительным целым числом")
	}
	if c.Telegram.APIHash == "" {
		return fmt.Errorf("telegram.api_hash не может быть пустым")
	}
	if c.Telegram.PhoneNumber == "" {
		return fmt.Errorf("telegram.phone_number не может быть пустым")
	}

	// Валидация чата и окна сбора
	if c.Chat.Identifier == "" {
		return fmt.Errorf("chat.identifier не может быть пустым")
	}
	if _, _, _, err := c.Chat.Window(); err != nil {
		return err
	}
	if len(c.Chat.Types) == 0 {
		return fmt.Errorf("chat.types не может быть пустым")
	}
	for _, t := range c.Chat.Types {
		if !knownMessageTypes[t] {
			return fmt.Errorf("недопустимый тип сообщения в chat.types: %q", t)
		}
	}
	if _, err := time.LoadLocation(c.Chat.Timezone); err != nil {
		return fmt.Errorf("недопустимая chat.timezone: %w", err)
	}

	// Валидация транскрипции
	if c.Transcription.BeamSize <= 0 {
		return fmt.Errorf("transcription.beam_size должно быть положительным")
	}
	if c.Transcription.BestOf <= 0 {
		return fmt.Errorf("transcription.best_of должно быть положительным")
	}

	// Валидация обработки
	if c.Processing.Count < 0 {
		return fmt.Errorf("processing.count должно быть неотрицательным (0 для отсутствия ограничений)")
	}
	switch c.Processing.ExportFormat {
	case "markdown", "xlsx":
		// all good
	default:
		return fmt.Errorf("processing.export_format должен быть одним из: markdown, xlsx")
	}

	// Валидация сервера
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port должен быть действительным номером порта (1-65535)")
	}
	if c.Server.ShutdownTimeoutSeconds <= 0 {
		return fmt.Errorf("server.shutdown_timeout_seconds должно быть положительным")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		// all good
	default:
		return fmt.Errorf("logging.level должен быть одним из: debug, info, warn, error")
	}

	switch c.Logging.Format {
	case "json", "text":
		// all good
	default:
		return fmt.Errorf("logging.format должен быть одним из: json, text")
	}

	return nil
}
