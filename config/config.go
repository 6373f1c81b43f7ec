package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds CLI and relay configuration
type Config struct {
	// Live API
	GeminiAPIKey       string
	Model              string
	Host               string // empty means the public endpoint
	Path               string // empty means the v1alpha bidi path
	Voice              string
	ResponseModalities []string
	Temperature        *float32
	SystemPrompt       string

	// Relay server
	Port           int
	RedisURL       string
	RedisPassword  string
	MaxSessions    int
	SessionTimeout time.Duration
	AllowedOrigins []string
	MaxBufferSize  int // Maximum audio buffer size in bytes per session

	// CLI
	ScreenInterval time.Duration // 0 disables screen capture
	LogLevel       string
}

// DefaultModel is the Live model used when GEMINI_MODEL is unset
const DefaultModel = "models/gemini-2.0-flash-exp"

// LoadConfig loads configuration from environment variables with defaults
func LoadConfig() (*Config, error) {
	// Load .env file if it exists (doesn't error if missing)
	_ = godotenv.Load()

	config := &Config{
		Model:              DefaultModel,
		Voice:              "Kore",
		ResponseModalities: []string{"AUDIO"},
		Port:               8080,
		RedisURL:           "localhost:6379",
		MaxSessions:        100,
		SessionTimeout:     30 * time.Minute,
		AllowedOrigins:     []string{"*"},
		MaxBufferSize:      5 * 1024 * 1024, // 5MB default
		ScreenInterval:     time.Second,
		LogLevel:           "info",
	}

	// Required: GEMINI_API_KEY, GOOGLE_API_KEY accepted as a fallback
	config.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	if config.GeminiAPIKey == "" {
		config.GeminiAPIKey = os.Getenv("GOOGLE_API_KEY")
	}
	if config.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable is required")
	}

	if model := os.Getenv("GEMINI_MODEL"); model != "" {
		if !strings.HasPrefix(model, "models/") {
			model = "models/" + model
		}
		config.Model = model
	}

	config.Host = os.Getenv("GEMINI_HOST")
	config.Path = os.Getenv("GEMINI_PATH")
	config.SystemPrompt = os.Getenv("SYSTEM_PROMPT")

	if voice := os.Getenv("GEMINI_VOICE"); voice != "" {
		config.Voice = voice
	}

	// Optional: RESPONSE_MODALITIES (comma-separated, e.g. "TEXT" or "AUDIO")
	if modalities := os.Getenv("RESPONSE_MODALITIES"); modalities != "" {
		config.ResponseModalities = nil
		for _, m := range strings.Split(modalities, ",") {
			m = strings.ToUpper(strings.TrimSpace(m))
			switch m {
			case "":
				continue
			case "TEXT", "AUDIO", "IMAGE":
				config.ResponseModalities = append(config.ResponseModalities, m)
			default:
				return nil, fmt.Errorf("invalid RESPONSE_MODALITIES entry %q", m)
			}
		}
	}

	if temperature := os.Getenv("TEMPERATURE"); temperature != "" {
		t, err := strconv.ParseFloat(temperature, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid TEMPERATURE: %w", err)
		}
		t32 := float32(t)
		config.Temperature = &t32
	}

	// Optional: PORT
	if port := os.Getenv("PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT: %w", err)
		}
		config.Port = p
	}

	// Optional: REDIS_URL
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		config.RedisURL = redisURL
	}

	// Optional: REDIS_PASSWORD
	if redisPassword := os.Getenv("REDIS_PASSWORD"); redisPassword != "" {
		config.RedisPassword = redisPassword
	}

	// Optional: MAX_SESSIONS
	if maxSessions := os.Getenv("MAX_SESSIONS"); maxSessions != "" {
		m, err := strconv.Atoi(maxSessions)
		if err != nil {
			return nil, fmt.Errorf("invalid MAX_SESSIONS: %w", err)
		}
		config.MaxSessions = m
	}

	// Optional: SESSION_TIMEOUT (in minutes)
	if timeout := os.Getenv("SESSION_TIMEOUT"); timeout != "" {
		t, err := strconv.Atoi(timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid SESSION_TIMEOUT: %w", err)
		}
		config.SessionTimeout = time.Duration(t) * time.Minute
	}

	// Optional: ALLOWED_ORIGINS (comma-separated)
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		config.AllowedOrigins = strings.Split(origins, ",")
	}

	// Optional: MAX_BUFFER_SIZE (in bytes)
	if bufferSize := os.Getenv("MAX_BUFFER_SIZE"); bufferSize != "" {
		b, err := strconv.Atoi(bufferSize)
		if err != nil {
			return nil, fmt.Errorf("invalid MAX_BUFFER_SIZE: %w", err)
		}
		config.MaxBufferSize = b
	}

	// Optional: SCREEN_INTERVAL (in milliseconds, 0 disables)
	if interval := os.Getenv("SCREEN_INTERVAL"); interval != "" {
		ms, err := strconv.Atoi(interval)
		if err != nil || ms < 0 {
			return nil, fmt.Errorf("invalid SCREEN_INTERVAL: %q", interval)
		}
		config.ScreenInterval = time.Duration(ms) * time.Millisecond
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		config.LogLevel = level
	}

	return config, nil
}
