// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes settings for the HTTP
// server, logging, storage, chat transport, calendar credentials, the reminder
// scheduler, rate limiting, and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // DEFAULT_TIMEZONE must resolve on hosts without zoneinfo
)

// Chat transports understood by CHAT_TRANSPORT.
const (
	TransportWhatsApp = "whatsapp"
	TransportTelegram = "telegram"
)

// Database drivers understood by DB_DRIVER.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// MaxSchedulerInterval is the widest tick period the reminder window can
// tolerate without skipping meetings that land between two ticks.
const MaxSchedulerInterval = 60 * time.Second

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS and the
// bearer token guarding the admin API.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
	AdminToken string // ADMIN_API_TOKEN; empty leaves the admin API open
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// DBConfig selects and locates the backing database.
type DBConfig struct {
	Driver string // DB_DRIVER: sqlite|postgres
	Path   string // DB_PATH (sqlite file)
	URL    string // DATABASE_URL (postgres DSN)
}

// WhatsAppConfig holds WhatsApp Cloud API credentials.
type WhatsAppConfig struct {
	APIURL        string // WHATSAPP_API_URL
	PhoneNumberID string // WHATSAPP_PHONE_NUMBER_ID
	APIToken      string // WHATSAPP_API_TOKEN
	VerifyToken   string // WHATSAPP_VERIFY_TOKEN
}

// TelegramConfig holds Telegram Bot API credentials.
type TelegramConfig struct {
	BotToken      string // TELEGRAM_BOT_TOKEN
	WebhookSecret string // TELEGRAM_WEBHOOK_SECRET
}

// ChatConfig configures the chat transport.
type ChatConfig struct {
	Transport   string        // CHAT_TRANSPORT
	SendTimeout time.Duration // CHAT_SEND_TIMEOUT
	Mentions    []string      // BOT_MENTIONS, e.g. "@bot,@reminder"
	WhatsApp    WhatsAppConfig
	Telegram    TelegramConfig
}

// GoogleConfig holds OAuth client credentials for Google Calendar.
type GoogleConfig struct {
	ClientID     string // GOOGLE_CLIENT_ID
	ClientSecret string // GOOGLE_CLIENT_SECRET
	RedirectURI  string // GOOGLE_REDIRECT_URI
	RefreshToken string // GOOGLE_REFRESH_TOKEN (optional)
}

// Enabled reports whether enough credentials exist to talk to Google.
func (g GoogleConfig) Enabled() bool {
	return g.ClientID != "" && g.ClientSecret != ""
}

// SchedulerConfig tunes the reminder engine.
type SchedulerConfig struct {
	Timezone        string        // DEFAULT_TIMEZONE
	ReminderMinutes []int         // DEFAULT_REMINDER_MINUTES
	Interval        time.Duration // SCHEDULER_INTERVAL
	DedupTTL        time.Duration // INBOUND_DEDUP_TTL
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging
	LogLevel    string // debug|info|warn|error|fatal|panic
	LogPretty   bool   // pretty console logs in dev
	APIBasePath string // base path for API routes

	DB        DBConfig
	Chat      ChatConfig
	Google    GoogleConfig
	Scheduler SchedulerConfig

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		LogLevel:    strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:   getbool("LOG_PRETTY", false),
		APIBasePath: normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		DB: DBConfig{
			Driver: strings.ToLower(getenv("DB_DRIVER", DriverSQLite)),
			Path:   getenv("DB_PATH", "reminders.db"),
			URL:    getenv("DATABASE_URL", ""),
		},

		Chat: ChatConfig{
			Transport:   strings.ToLower(getenv("CHAT_TRANSPORT", TransportWhatsApp)),
			SendTimeout: getdur("CHAT_SEND_TIMEOUT", 15*time.Second),
			Mentions:    splitCSV(getenv("BOT_MENTIONS", "@bot")),
			WhatsApp: WhatsAppConfig{
				APIURL:        strings.TrimRight(getenv("WHATSAPP_API_URL", "https://graph.facebook.com/v18.0"), "/"),
				PhoneNumberID: getenv("WHATSAPP_PHONE_NUMBER_ID", ""),
				APIToken:      getenv("WHATSAPP_API_TOKEN", ""),
				VerifyToken:   getenv("WHATSAPP_VERIFY_TOKEN", ""),
			},
			Telegram: TelegramConfig{
				BotToken:      getenv("TELEGRAM_BOT_TOKEN", ""),
				WebhookSecret: getenv("TELEGRAM_WEBHOOK_SECRET", ""),
			},
		},

		Google: GoogleConfig{
			ClientID:     getenv("GOOGLE_CLIENT_ID", ""),
			ClientSecret: getenv("GOOGLE_CLIENT_SECRET", ""),
			RedirectURI:  getenv("GOOGLE_REDIRECT_URI", "http://localhost:8080/auth/google/callback"),
			RefreshToken: getenv("GOOGLE_REFRESH_TOKEN", ""),
		},

		Scheduler: SchedulerConfig{
			Timezone: getenv("DEFAULT_TIMEZONE", "Asia/Jakarta"),
			Interval: getdur("SCHEDULER_INTERVAL", 60*time.Second),
			DedupTTL: getdur("INBOUND_DEDUP_TTL", 24*time.Hour),
		},

		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
			AdminToken: strings.TrimSpace(getenv("ADMIN_API_TOKEN", "")),
		},

		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-meeting-bot"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	minutes, err := splitInts(getenv("DEFAULT_REMINDER_MINUTES", "30"))
	if err != nil {
		return cfg, errors.New("DEFAULT_REMINDER_MINUTES must be a comma-separated list of integers")
	}
	cfg.Scheduler.ReminderMinutes = minutes

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}
	if cfg.DB.Driver == "postgresql" {
		cfg.DB.Driver = DriverPostgres
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	switch cfg.DB.Driver {
	case DriverSQLite:
		if strings.TrimSpace(cfg.DB.Path) == "" {
			return cfg, errors.New("DB_PATH must not be empty")
		}
	case DriverPostgres:
		if strings.TrimSpace(cfg.DB.URL) == "" {
			return cfg, errors.New("DATABASE_URL is required when DB_DRIVER=postgres")
		}
	default:
		return cfg, errors.New("DB_DRIVER must be one of: sqlite, postgres")
	}
	switch cfg.Chat.Transport {
	case TransportWhatsApp, TransportTelegram:
	default:
		return cfg, errors.New("CHAT_TRANSPORT must be one of: whatsapp, telegram")
	}
	if cfg.Chat.SendTimeout <= 0 {
		return cfg, errors.New("CHAT_SEND_TIMEOUT must be > 0")
	}
	if _, err := time.LoadLocation(cfg.Scheduler.Timezone); err != nil {
		return cfg, errors.New("DEFAULT_TIMEZONE must be a valid IANA time zone")
	}
	if len(cfg.Scheduler.ReminderMinutes) == 0 {
		return cfg, errors.New("DEFAULT_REMINDER_MINUTES must contain at least one value")
	}
	for _, m := range cfg.Scheduler.ReminderMinutes {
		if m <= 0 {
			return cfg, errors.New("DEFAULT_REMINDER_MINUTES values must be > 0")
		}
	}
	if cfg.Scheduler.Interval <= 0 || cfg.Scheduler.Interval > MaxSchedulerInterval {
		return cfg, errors.New("SCHEDULER_INTERVAL must be in (0s, 60s]")
	}
	if cfg.Scheduler.DedupTTL <= 0 {
		return cfg, errors.New("INBOUND_DEDUP_TTL must be > 0")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// splitInts parses a CSV of integers; an empty input yields nil.
func splitInts(s string) ([]int, error) {
	parts := splitCSV(s)
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
