package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	GeminiAPIKey  string
	TelegramToken string

	LogLevel string
	Debug    bool

	PreferIPv4 bool

	AssetsDir string
	OutputDir string

	WebAddr        string
	MaxUploadBytes int64
	AllowedOrigins []string

	ListPerMinute   int
	ImagesPerMinute int
	GeneratePerHour int

	TempMaxAge time.Duration

	MediaGroupDebounce time.Duration
	MaxConcurrent      int
	RequestTimeout     time.Duration
	HTTPTimeout        time.Duration
	GeminiBaseURL      string
	GeminiAPIVersion   string
}

// Load reads configuration from the environment. GEMINI_API_KEY is the only
// hard requirement; the Telegram token is validated by the bot entrypoint
// because the web server and CLI run without it.
func Load() (Config, error) {
	cfg := Config{
		LogLevel:           strings.ToLower(strings.TrimSpace(getEnv("LOG_LEVEL", "info"))),
		Debug:              getEnvBool("DEBUG", false),
		PreferIPv4:         getEnvBool("PREFER_IPV4", true),
		AssetsDir:          strings.TrimSpace(getEnv("ASSETS_DIR", ".")),
		OutputDir:          strings.TrimSpace(getEnv("OUTPUT_DIR", "output")),
		WebAddr:            strings.TrimSpace(getEnv("WEB_ADDR", ":8080")),
		MaxUploadBytes:     int64(getEnvInt("MAX_UPLOAD_MB", 10)) << 20,
		AllowedOrigins:     splitCSV(getEnv("ALLOWED_ORIGINS", "https://rauw.nl,https://www.rauw.nl,http://localhost:3000")),
		ListPerMinute:      getEnvInt("RATE_LIST_PER_MINUTE", 30),
		ImagesPerMinute:    getEnvInt("RATE_IMAGES_PER_MINUTE", 60),
		GeneratePerHour:    getEnvInt("RATE_GENERATE_PER_HOUR", 5),
		TempMaxAge:         time.Duration(getEnvInt("TEMP_MAX_AGE_MINUTES", 60)) * time.Minute,
		MediaGroupDebounce: time.Duration(getEnvInt("MEDIA_GROUP_DEBOUNCE_MS", 1200)) * time.Millisecond,
		MaxConcurrent:      getEnvInt("MAX_CONCURRENT", 4),
		RequestTimeout:     time.Duration(getEnvInt("REQUEST_TIMEOUT_SECONDS", 240)) * time.Second,
		HTTPTimeout:        time.Duration(getEnvInt("HTTP_TIMEOUT_SECONDS", 180)) * time.Second,
		GeminiBaseURL:      strings.TrimSpace(getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com")),
		GeminiAPIVersion:   strings.TrimSpace(getEnv("GEMINI_API_VERSION", "v1beta")),
	}

	cfg.GeminiAPIKey = strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
	cfg.TelegramToken = strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN"))

	if cfg.GeminiAPIKey == "" {
		return Config{}, errors.New("GEMINI_API_KEY is required")
	}

	if cfg.MaxUploadBytes < 1<<20 {
		cfg.MaxUploadBytes = 1 << 20
	}
	if cfg.ListPerMinute < 1 {
		cfg.ListPerMinute = 1
	}
	if cfg.ImagesPerMinute < 1 {
		cfg.ImagesPerMinute = 1
	}
	if cfg.GeneratePerHour < 1 {
		cfg.GeneratePerHour = 1
	}
	if cfg.TempMaxAge <= 0 {
		cfg.TempMaxAge = time.Hour
	}
	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = 1
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 240 * time.Second
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 180 * time.Second
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitCSV(value string) []string {
	var out []string
	for _, p := range strings.Split(value, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
