package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Backend  BackendConfig
	Photos   PhotosConfig
	Web      WebConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Log      LogConfig
	Messages *Messages
}

type BackendConfig struct {
	URL    string
	Token  string
	SiteID string
	Domain string // public admin domain for generating photo links (e.g., https://admin.example.com)
}

// PhotoURL returns an OSC 8 hyperlink for terminal emulators (iTerm2, etc.)
// Displays the photo ID but makes it clickable to open the photo in the admin UI
// Returns empty string if Domain is not set
func (c *BackendConfig) PhotoURL(siteID, photoID string) string {
	if c.Domain == "" {
		return ""
	}
	url := c.Domain + "/sites/" + siteID + "/photos?photo=" + photoID
	// OSC 8 hyperlink format: \e]8;;URL\e\\TEXT\e]8;;\e\\
	return "\x1b]8;;" + url + "\x1b\\" + photoID + "\x1b]8;;\x1b\\"
}

type PhotosConfig struct {
	PageSize    int // defaults to 120
	Concurrency int // parallel requests per batch move/delete, defaults to 5
}

type WebConfig struct {
	Host          string
	Port          int
	SessionSecret string
	PreviewDir    string // staging previews and spooled uploads, defaults to the OS temp dir

	// AllowedOrigins are the browser origins of the admin front-end that may
	// call the API with credentials. Loopback origins are always accepted.
	AllowedOrigins []string
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL (optional, enables persistent web sessions)
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

type RedisConfig struct {
	URL string        // redis://host:6379/0 (optional, enables reference data caching)
	TTL time.Duration // defaults to 5m
}

type LogConfig struct {
	Env    string // "production" switches zap to the production preset
	Level  string
	Format string // "json" or "console"
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envDuration reads an environment variable as a time.Duration ("30s", "5m").
func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return defaultVal
}

// envList reads a comma-separated environment variable, dropping blanks.
func envList(key string) []string {
	var out []string
	for item := range strings.SplitSeq(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func envString(key, defaultVal string) string {
	if s := strings.TrimSpace(os.Getenv(key)); s != "" {
		return s
	}
	return defaultVal
}

func Load() *Config {
	messages, err := LoadMessages()
	if err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded messages.yaml: " + err.Error())
	}

	return &Config{
		Backend: BackendConfig{
			URL:    strings.TrimRight(os.Getenv("SITE_API_URL"), "/"),
			Token:  os.Getenv("SITE_API_TOKEN"),
			SiteID: os.Getenv("SITE_ID"),
			Domain: os.Getenv("SITE_ADMIN_DOMAIN"),
		},
		Photos: PhotosConfig{
			PageSize:    envInt("PHOTOS_PAGE_SIZE", 120),
			Concurrency: envInt("PHOTOS_BATCH_CONCURRENCY", 5),
		},
		Web: WebConfig{
			Host:          envString("WEB_HOST", "0.0.0.0"),
			Port:          envInt("WEB_PORT", 8080),
			SessionSecret: os.Getenv("WEB_SESSION_SECRET"),
			PreviewDir:    os.Getenv("WEB_PREVIEW_DIR"),

			AllowedOrigins: envList("WEB_ALLOWED_ORIGINS"),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
			TTL: envDuration("REDIS_REFERENCE_TTL", 5*time.Minute),
		},
		Log: LogConfig{
			Env:    envString("APP_ENV", "development"),
			Level:  envString("LOG_LEVEL", "info"),
			Format: envString("LOG_FORMAT", "console"),
		},
		Messages: messages,
	}
}
