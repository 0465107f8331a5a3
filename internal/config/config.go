package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"tradejournal/internal/models"
)

// Config содержит всю конфигурацию приложения
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Security SecurityConfig
	Journal  JournalConfig
	Logging  LoggingConfig
}

// ServerConfig - настройки HTTP сервера
type ServerConfig struct {
	Port         int
	Host         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	RateLimitRPS float64 // запросов в секунду на пользователя, 0 = без лимита
	RateBurst    float64
}

// DatabaseConfig - настройки подключения к БД
type DatabaseConfig struct {
	Driver         string
	Host           string
	Port           int
	Name           string
	User           string
	Password       string
	SSLMode        string
	MaxOpenConns   int
	ConnectRetries int
}

// SecurityConfig - настройки безопасности
type SecurityConfig struct {
	// APITokenHash - bcrypt хеш bearer токена API.
	// Пустой = аутентификация отключена (только development).
	APITokenHash  string
	DefaultUserID string // пользователь, если X-User-ID не передан
	Environment   string

	// AllowedOrigins - CORS и WebSocket origins (ALLOWED_ORIGINS, через запятую)
	AllowedOrigins []string

	// Basic auth для /metrics. Пустые = без защиты.
	MetricsUsername string
	MetricsPassword string
}

// JournalConfig - параметры журнала и расчетов
type JournalConfig struct {
	Timezone                string
	Location                *time.Location
	EnforceSettlementWindow bool // расчет только пт-вс
	SettlementLegExemption  bool // не брать комиссию и с переоткрытых лотов
	InstrumentsFile         string
	Defaults                models.TradingSettings
}

// LoggingConfig - настройки логирования
type LoggingConfig struct {
	Level       string
	Format      string
	Output      string
	Development bool
	MaxSizeMB   int
	MaxBackups  int
	MaxAgeDays  int
}

// Load загружает конфигурацию из переменных окружения
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnvAsInt("SERVER_PORT", 8080),
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:  getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			RateLimitRPS: getEnvAsFloat("RATE_LIMIT_RPS", 20),
			RateBurst:    getEnvAsFloat("RATE_LIMIT_BURST", 40),
		},
		Database: DatabaseConfig{
			Driver:         getEnv("DB_DRIVER", "postgres"),
			Host:           getEnv("DB_HOST", "localhost"),
			Port:           getEnvAsInt("DB_PORT", 5432),
			Name:           getEnv("DB_NAME", "tradejournal"),
			User:           getEnv("DB_USER", "user"),
			Password:       getEnv("DB_PASSWORD", "password"),
			SSLMode:        getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns:   getEnvAsInt("DB_MAX_OPEN_CONNS", 10),
			ConnectRetries: getEnvAsInt("DB_CONNECT_RETRIES", 5),
		},
		Security: SecurityConfig{
			APITokenHash:    getEnv("API_TOKEN_HASH", ""),
			DefaultUserID:   getEnv("DEFAULT_USER_ID", "default"),
			Environment:     getEnv("ENV", "development"),
			AllowedOrigins:  getEnvAsList("ALLOWED_ORIGINS"),
			MetricsUsername: getEnv("METRICS_USERNAME", ""),
			MetricsPassword: getEnv("METRICS_PASSWORD", ""),
		},
		Journal: JournalConfig{
			Timezone:                getEnv("JOURNAL_TIMEZONE", "Asia/Kolkata"),
			EnforceSettlementWindow: getEnvAsBool("SETTLEMENT_ENFORCE_WINDOW", true),
			SettlementLegExemption:  getEnvAsBool("SETTLEMENT_LEG_EXEMPTION", false),
			InstrumentsFile:         getEnv("INSTRUMENTS_FILE", ""),
		},
		Logging: LoggingConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Format:      getEnv("LOG_FORMAT", "json"),
			Output:      getEnv("LOG_OUTPUT", "stdout"),
			Development: getEnvAsBool("LOG_DEVELOPMENT", false),
			MaxSizeMB:   getEnvAsInt("LOG_MAX_SIZE_MB", 100),
			MaxBackups:  getEnvAsInt("LOG_MAX_BACKUPS", 5),
			MaxAgeDays:  getEnvAsInt("LOG_MAX_AGE_DAYS", 30),
		},
	}

	loc, err := time.LoadLocation(cfg.Journal.Timezone)
	if err != nil {
		return nil, fmt.Errorf("JOURNAL_TIMEZONE %q: %w", cfg.Journal.Timezone, err)
	}
	cfg.Journal.Location = loc

	defaults, err := loadInstrumentDefaults(cfg.Journal.InstrumentsFile)
	if err != nil {
		return nil, err
	}
	cfg.Journal.Defaults = defaults

	// Валидация параметров безопасности
	if err := cfg.validateSecurity(); err != nil {
		return nil, err
	}

	// Валидация числовых диапазонов
	if err := cfg.validateRanges(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateSecurity проверяет параметры безопасности
func (c *Config) validateSecurity() error {
	if c.Security.Environment == "production" && c.Security.APITokenHash == "" {
		return fmt.Errorf("API_TOKEN_HASH is required in production")
	}

	if c.Security.APITokenHash != "" && !strings.HasPrefix(c.Security.APITokenHash, "$2") {
		return fmt.Errorf("API_TOKEN_HASH must be a bcrypt hash")
	}

	if c.Security.DefaultUserID == "" {
		return fmt.Errorf("DEFAULT_USER_ID cannot be empty")
	}

	return nil
}

// validateRanges проверяет числовые диапазоны параметров
func (c *Config) validateRanges() error {
	// Валидация портов
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("DB_PORT must be between 1 and 65535, got %d", c.Database.Port)
	}

	if c.Database.ConnectRetries < 1 || c.Database.ConnectRetries > 20 {
		return fmt.Errorf("DB_CONNECT_RETRIES must be between 1 and 20, got %d", c.Database.ConnectRetries)
	}

	if c.Server.RateLimitRPS < 0 {
		return fmt.Errorf("RATE_LIMIT_RPS cannot be negative, got %v", c.Server.RateLimitRPS)
	}

	if err := c.Journal.Defaults.Gold.Validate(); err != nil {
		return fmt.Errorf("gold defaults: %w", err)
	}
	if err := c.Journal.Defaults.Silver.Validate(); err != nil {
		return fmt.Errorf("silver defaults: %w", err)
	}

	return nil
}

// AuthEnabled - включена ли проверка bearer токена
func (s SecurityConfig) AuthEnabled() bool {
	return s.APITokenHash != ""
}

// DSN возвращает строку подключения к базе данных
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// DSNWithoutPassword возвращает строку подключения без пароля (для логирования)
func (d DatabaseConfig) DSNWithoutPassword() string {
	return fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Name, d.SSLMode)
}

// ============================================================
// Параметры инструментов по умолчанию
// ============================================================

// instrumentsFile - формат INSTRUMENTS_FILE
//
//	instruments:
//	  gold:
//	    lot_size: 100
//	    commission_per_lot: 300
//	  silver:
//	    lot_size: 5
//	    commission_per_lot: "250.50"
type instrumentsFile struct {
	Instruments map[string]struct {
		LotSize          int    `yaml:"lot_size"`
		CommissionPerLot string `yaml:"commission_per_lot"`
	} `yaml:"instruments"`
}

// loadInstrumentDefaults собирает настройки по умолчанию:
// встроенные значения, затем YAML файл, затем переменные окружения.
func loadInstrumentDefaults(path string) (models.TradingSettings, error) {
	settings := models.DefaultTradingSettings()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return settings, fmt.Errorf("read instruments file: %w", err)
		}
		if err := applyInstrumentsYAML(&settings, data); err != nil {
			return settings, fmt.Errorf("instruments file %s: %w", path, err)
		}
	}

	for _, inst := range models.Instruments {
		s := settings.For(inst)
		prefix := strings.ToUpper(string(inst))
		s.LotSize = getEnvAsInt(prefix+"_LOT_SIZE", s.LotSize)
		if v := os.Getenv(prefix + "_COMMISSION_PER_LOT"); v != "" {
			c, err := decimal.NewFromString(v)
			if err != nil {
				return settings, fmt.Errorf("%s_COMMISSION_PER_LOT: %w", prefix, err)
			}
			s.CommissionPerLot = c
		}
		settings.Set(inst, s)
	}

	return settings, nil
}

func applyInstrumentsYAML(settings *models.TradingSettings, data []byte) error {
	var file instrumentsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return err
	}

	for name, raw := range file.Instruments {
		inst := models.Instrument(strings.ToLower(name))
		if !inst.Valid() {
			return fmt.Errorf("unknown instrument %q", name)
		}
		s := settings.For(inst)
		if raw.LotSize != 0 {
			s.LotSize = raw.LotSize
		}
		if raw.CommissionPerLot != "" {
			c, err := decimal.NewFromString(raw.CommissionPerLot)
			if err != nil {
				return fmt.Errorf("%s commission_per_lot: %w", name, err)
			}
			s.CommissionPerLot = c
		}
		settings.Set(inst, s)
	}
	return nil
}

// Вспомогательные функции для чтения переменных окружения

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsList читает список через запятую, пустые элементы отбрасываются
func getEnvAsList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
