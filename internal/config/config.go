package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/ironsheep/overlay-eye/internal/apperrors"
	"github.com/ironsheep/overlay-eye/internal/geometry"
)

// Config is built once at startup and passed read-only to every component.
type Config struct {
	// Vision LLM (llama.cpp compatible chat-completions server)
	LLMURL       string
	LLMModel     string
	LLMTimeout   time.Duration
	LLMMaxTokens int

	// Object detector
	DetectorEnabled     bool
	DetectorPreferONNX  bool
	DetectorModel       string
	DetectorONNXPath    string
	DetectorNamesPath   string
	DetectorPipelineURL string
	DetectorMinScore    float64
	DetectorTimeout     time.Duration
	HFToken             string

	// OCR
	OCRLanguage string
	OCRUpscale  float64
	OCRMaxChars int

	// Validation
	MinSidePx      int
	MaxBoxFrac     float64
	MaxBoxAreaFrac float64

	// Diagnostics
	LogPath      string
	LogSessionID string
	LogRunID     string
	SkipResetLog bool
	LogLevel     string

	// Overlay surfaces
	OverlayTimeout time.Duration
	HTTPAddr       string
}

// Policy returns the validation policy described by the config.
func (c *Config) Policy() geometry.Policy {
	p := geometry.DefaultPolicy()
	p.MinSidePx = c.MinSidePx
	p.MaxSideFraction = c.MaxBoxFrac
	p.MaxAreaFraction = c.MaxBoxAreaFrac
	return p
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	// A missing .env is normal; only a malformed one is worth reporting.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, apperrors.NewConfigInvalid("failed to read .env", err)
	}
	return LoadFromEnv()
}

// LoadFromEnv builds a Config from environment variables with defaults.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		LLMURL:       getEnvOrDefault("LLAMA_API_URL", "http://127.0.0.1:8080/v1/chat/completions"),
		LLMModel:     getEnvOrDefault("LLAMA_MODEL", "llava-v1.6-mistral-7b.Q4_K_M.gguf"),
		LLMTimeout:   parseDurationOrDefault("LLM_TIMEOUT", 60*time.Second),
		LLMMaxTokens: parseIntOrDefault("LLM_MAX_TOKENS", 300),

		DetectorEnabled:     getEnvOrDefault("USE_OWLVIT", "1") != "0",
		DetectorPreferONNX:  getEnvOrDefault("USE_OWLVIT_ONNX", "1") != "0",
		DetectorModel:       getEnvOrDefault("OWLVIT_MODEL", "google/owlvit-base-patch32"),
		DetectorONNXPath:    os.Getenv("OWLVIT_ONNX_PATH"),
		DetectorNamesPath:   os.Getenv("OWLVIT_NAMES_PATH"),
		DetectorPipelineURL: os.Getenv("OWLVIT_PIPELINE_URL"),
		DetectorMinScore:    parseFloatOrDefault("OWLVIT_MIN_SCORE", 0.2),
		DetectorTimeout:     parseDurationOrDefault("DETECTOR_TIMEOUT", 30*time.Second),
		HFToken:             firstNonEmpty(os.Getenv("HF_TOKEN"), os.Getenv("HUGGINGFACE_TOKEN")),

		OCRLanguage: getEnvOrDefault("OCR_LANGUAGE", "eng"),
		OCRUpscale:  parseFloatOrDefault("OCR_UPSCALE", 1.0),
		OCRMaxChars: parseIntOrDefault("OCR_MAX_CHARS", 600),

		MinSidePx:      parseIntOrDefault("MIN_SIDE_PX", 4),
		MaxBoxFrac:     parseFloatOrDefault("MAX_BOX_FRAC", 0.33),
		MaxBoxAreaFrac: parseFloatOrDefault("MAX_BOX_AREA_FRAC", 0.35),

		LogPath:      getEnvOrDefault("LOG_PATH", "debug_agent.log"),
		LogSessionID: getEnvOrDefault("LOG_SESSION_ID", "debug-session"),
		LogRunID:     getEnvOrDefault("LOG_RUN_ID", strconv.FormatInt(time.Now().UnixMilli(), 10)),
		SkipResetLog: os.Getenv("SKIP_RESET_LOG") == "1",
		LogLevel:     strings.ToLower(getEnvOrDefault("OVERLAY_EYE_LOG_LEVEL", "info")),

		OverlayTimeout: parseDurationOrDefault("OVERLAY_TIMEOUT", 8*time.Second),
		HTTPAddr:       getEnvOrDefault("HTTP_ADDR", "127.0.0.1:8765"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges that would otherwise fail silently at runtime.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.LLMURL) == "" {
		return apperrors.NewConfigInvalid("LLAMA_API_URL must not be empty", nil)
	}
	if c.LLMTimeout <= 0 || c.DetectorTimeout <= 0 || c.OverlayTimeout <= 0 {
		return apperrors.NewConfigInvalid(fmt.Sprintf("timeouts must be > 0 (got llm=%s, detector=%s, overlay=%s)",
			c.LLMTimeout, c.DetectorTimeout, c.OverlayTimeout), nil)
	}
	if c.LLMMaxTokens <= 0 {
		return apperrors.NewConfigInvalid(fmt.Sprintf("LLM_MAX_TOKENS must be > 0 (got %d)", c.LLMMaxTokens), nil)
	}
	if c.DetectorMinScore <= 0 || c.DetectorMinScore > 1 {
		return apperrors.NewConfigInvalid(fmt.Sprintf("OWLVIT_MIN_SCORE must be in (0,1] (got %v)", c.DetectorMinScore), nil)
	}
	if c.MaxBoxFrac <= 0 || c.MaxBoxFrac > 1 || c.MaxBoxAreaFrac <= 0 || c.MaxBoxAreaFrac > 1 {
		return apperrors.NewConfigInvalid(fmt.Sprintf("box fractions must be in (0,1] (got side=%v, area=%v)",
			c.MaxBoxFrac, c.MaxBoxAreaFrac), nil)
	}
	if c.MinSidePx < 0 {
		return apperrors.NewConfigInvalid(fmt.Sprintf("MIN_SIDE_PX must be >= 0 (got %d)", c.MinSidePx), nil)
	}
	if c.OCRUpscale < 1 {
		return apperrors.NewConfigInvalid(fmt.Sprintf("OCR_UPSCALE must be >= 1 (got %v)", c.OCRUpscale), nil)
	}
	if c.OCRMaxChars < 0 {
		return apperrors.NewConfigInvalid(fmt.Sprintf("OCR_MAX_CHARS must be >= 0 (got %d)", c.OCRMaxChars), nil)
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(strings.TrimSpace(value)); err == nil {
			return duration
		}
	}
	return defaultValue
}

func parseIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func parseFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
