package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

const (
	SessionStoreMemory = "memory"
	SessionStoreRedis  = "redis"
)

type Config struct {
	Env  string
	Port int

	Session SessionConfig
	Redis   RedisConfig
	ERP     ERPConfig
	CORS    CORSConfig
	Log     LogConfig
	Metrics MetricsConfig
}

// SessionConfig controls where CAPTCHA session tickets live and for how long.
type SessionConfig struct {
	Store    string
	TTL      time.Duration
	Capacity int
}

type RedisConfig struct {
	Host      string
	Port      int
	Password  string
	DB        int
	KeyPrefix string
}

// ERPConfig describes the upstream portal and the markup markers used to scrape it.
type ERPConfig struct {
	BaseURL             string
	LoginPath           string
	TimetablePath       string
	UserAgent           string
	Timeout             time.Duration
	CloudflareBypass    bool
	LoginMarker         string
	CaptchaMarker       string
	CSRFMetaName        string
	DefaultAcademicYear string
	DefaultSemester     string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

type MetricsConfig struct {
	Enabled bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")

	capacity := v.GetInt("SESSION_CAPACITY")
	if capacity <= 0 {
		capacity = 4096
	}
	cfg.Session = SessionConfig{
		Store:    strings.ToLower(strings.TrimSpace(v.GetString("SESSION_STORE"))),
		TTL:      parseDuration(v.GetString("SESSION_TTL"), 10*time.Minute),
		Capacity: capacity,
	}
	if cfg.Session.Store != SessionStoreRedis {
		cfg.Session.Store = SessionStoreMemory
	}

	cfg.Redis = RedisConfig{
		Host:      v.GetString("REDIS_HOST"),
		Port:      v.GetInt("REDIS_PORT"),
		Password:  v.GetString("REDIS_PASSWORD"),
		DB:        v.GetInt("REDIS_DB"),
		KeyPrefix: v.GetString("REDIS_KEY_PREFIX"),
	}

	cfg.ERP = ERPConfig{
		BaseURL:             strings.TrimRight(v.GetString("ERP_BASE_URL"), "/"),
		LoginPath:           v.GetString("ERP_LOGIN_PATH"),
		TimetablePath:       v.GetString("ERP_TIMETABLE_PATH"),
		UserAgent:           v.GetString("ERP_USER_AGENT"),
		Timeout:             parseDuration(v.GetString("ERP_TIMEOUT"), 30*time.Second),
		CloudflareBypass:    v.GetBool("ERP_CLOUDFLARE_BYPASS"),
		LoginMarker:         v.GetString("ERP_LOGIN_MARKER"),
		CaptchaMarker:       v.GetString("ERP_CAPTCHA_MARKER"),
		CSRFMetaName:        v.GetString("ERP_CSRF_META"),
		DefaultAcademicYear: v.GetString("DEFAULT_ACADEMIC_YEAR"),
		DefaultSemester:     v.GetString("DEFAULT_SEMESTER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Metrics = MetricsConfig{Enabled: v.GetBool("ENABLE_METRICS")}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8000)

	v.SetDefault("SESSION_STORE", SessionStoreMemory)
	v.SetDefault("SESSION_TTL", "10m")
	v.SetDefault("SESSION_CAPACITY", 4096)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_KEY_PREFIX", "timetable:ticket:")

	v.SetDefault("ERP_BASE_URL", "https://newerp.kluniversity.in")
	v.SetDefault("ERP_LOGIN_PATH", "/index.php?r=site%2Flogin")
	v.SetDefault("ERP_TIMETABLE_PATH", "/index.php")
	v.SetDefault("ERP_USER_AGENT", "Mozilla/5.0")
	v.SetDefault("ERP_TIMEOUT", "30s")
	v.SetDefault("ERP_CLOUDFLARE_BYPASS", false)
	v.SetDefault("ERP_LOGIN_MARKER", "Logout")
	v.SetDefault("ERP_CAPTCHA_MARKER", "r=site%2Fcaptcha")
	v.SetDefault("ERP_CSRF_META", "csrf-token")
	v.SetDefault("DEFAULT_ACADEMIC_YEAR", "19")
	v.SetDefault("DEFAULT_SEMESTER", "1")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ENABLE_METRICS", true)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
