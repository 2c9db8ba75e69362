package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// PathEnv names the optional YAML config file.
const PathEnv = "CAFE_CONFIG"

// Log is shared by both processes.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Database selects the GORM dialector.
type Database struct {
	Driver   string `yaml:"driver"`
	DSN      string `yaml:"dsn"`
	LogLevel string `yaml:"logLevel"`
}

// Redis backs the optional list cache. An empty Addr disables it.
type Redis struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	TTL      time.Duration `yaml:"ttl"`
}

// API configures the Record Store API process.
type API struct {
	Port           string   `yaml:"port"`
	GinMode        string   `yaml:"ginMode"`
	APIKey         string   `yaml:"apiKey"`
	APIKeyHash     string   `yaml:"apiKeyHash"`
	AllowedOrigins []string `yaml:"allowedOrigins"`
	Database       Database `yaml:"database"`
	Redis          Redis    `yaml:"redis"`
	Log            Log      `yaml:"log"`
}

// Web configures the Presentation Server process.
type Web struct {
	Port       string        `yaml:"port"`
	GinMode    string        `yaml:"ginMode"`
	APIBaseURL string        `yaml:"apiBaseURL"`
	APIKey     string        `yaml:"apiKey"`
	SecretKey  string        `yaml:"secretKey"`
	APITimeout time.Duration `yaml:"apiTimeout"`
	Log        Log           `yaml:"log"`
}

type file struct {
	API API `yaml:"api"`
	Web Web `yaml:"web"`
}

// LoadAPI reads .env, the optional YAML file and the environment, in that order.
func LoadAPI() (API, error) {
	f, err := readFile()
	if err != nil {
		return API{}, err
	}
	cfg := f.API

	override(&cfg.Port, "API_PORT")
	override(&cfg.GinMode, "GIN_MODE")
	override(&cfg.APIKey, "API_KEY")
	override(&cfg.APIKeyHash, "API_KEY_HASH")
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		cfg.AllowedOrigins = splitCSV(v)
	}
	override(&cfg.Database.Driver, "DB_DRIVER")
	override(&cfg.Database.DSN, "DATABASE_DSN")
	override(&cfg.Database.LogLevel, "DB_LOG_LEVEL")
	override(&cfg.Redis.Addr, "REDIS_ADDR")
	override(&cfg.Redis.Password, "REDIS_PASSWORD")
	if err := overrideDuration(&cfg.Redis.TTL, "CACHE_TTL"); err != nil {
		return API{}, err
	}
	override(&cfg.Log.Level, "LOG_LEVEL")
	override(&cfg.Log.Format, "LOG_FORMAT")

	fallback(&cfg.Port, "5000")
	fallback(&cfg.GinMode, "debug")
	fallback(&cfg.APIKey, "TopSecretAPIKey")
	fallback(&cfg.Database.Driver, "sqlite")
	fallback(&cfg.Database.DSN, "cafes.db")
	fallback(&cfg.Database.LogLevel, "warn")
	fallback(&cfg.Log.Level, "info")
	fallback(&cfg.Log.Format, "json")
	if cfg.Redis.TTL <= 0 {
		cfg.Redis.TTL = 30 * time.Second
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"http://localhost:5001", "http://127.0.0.1:5001"}
	}

	switch cfg.Database.Driver {
	case "sqlite", "postgres":
	default:
		return API{}, fmt.Errorf("unsupported DB_DRIVER %q", cfg.Database.Driver)
	}
	return cfg, nil
}

// LoadWeb reads .env, the optional YAML file and the environment, in that order.
func LoadWeb() (Web, error) {
	f, err := readFile()
	if err != nil {
		return Web{}, err
	}
	cfg := f.Web

	override(&cfg.Port, "WEB_PORT")
	override(&cfg.GinMode, "GIN_MODE")
	override(&cfg.APIBaseURL, "API_BASE_URL")
	override(&cfg.APIKey, "API_KEY")
	override(&cfg.SecretKey, "SECRET_KEY")
	if err := overrideDuration(&cfg.APITimeout, "API_TIMEOUT"); err != nil {
		return Web{}, err
	}
	override(&cfg.Log.Level, "LOG_LEVEL")
	override(&cfg.Log.Format, "LOG_FORMAT")

	fallback(&cfg.Port, "5001")
	fallback(&cfg.GinMode, "debug")
	fallback(&cfg.APIBaseURL, "http://127.0.0.1:5000")
	fallback(&cfg.APIKey, "TopSecretAPIKey")
	fallback(&cfg.Log.Level, "info")
	fallback(&cfg.Log.Format, "json")
	if cfg.APITimeout <= 0 {
		cfg.APITimeout = 10 * time.Second
	}
	cfg.APIBaseURL = strings.TrimRight(cfg.APIBaseURL, "/")
	if cfg.SecretKey == "" {
		return Web{}, errors.New("SECRET_KEY is required")
	}
	return cfg, nil
}

func readFile() (file, error) {
	var f file
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return f, fmt.Errorf("load .env: %w", err)
	}
	path := os.Getenv(PathEnv)
	if path == "" {
		return f, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return f, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &f); err != nil {
		return f, fmt.Errorf("parse config: %w", err)
	}
	return f, nil
}

func override(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func overrideDuration(dst *time.Duration, key string) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*dst = d
	return nil
}

func fallback(dst *string, def string) {
	if *dst == "" {
		*dst = def
	}
}

func splitCSV(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
