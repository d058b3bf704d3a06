package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Load reads the .env file specified by EVOKED_ENV (or .env by default),
// then loads the corresponding .secret file if it exists.
// All config is flat env vars read via os.Getenv after loading.
func Load() error {
	envFile := os.Getenv("EVOKED_ENV")
	if envFile == "" {
		envFile = ".env"
	}

	// Load main env file (ignore error if file doesn't exist)
	_ = godotenv.Load(envFile)

	// Load secret sidecar if it exists
	_ = godotenv.Load(envFile + ".secret")

	return nil
}

func ServerPort() int {
	port, err := strconv.Atoi(os.Getenv("SERVER_PORT"))
	if err != nil {
		return 8080
	}
	return port
}

func ServerAddr() string {
	return fmt.Sprintf(":%d", ServerPort())
}

func DatabaseURL() string {
	return os.Getenv("DATABASE_URL")
}

func OpenAIAPIKey() string {
	return os.Getenv("OPENAI_API_KEY")
}

func AnthropicAPIKey() string {
	return os.Getenv("ANTHROPIC_API_KEY")
}

// ClassifierProvider returns the configured AI classifier provider.
// Empty means the AI-assisted classification step is disabled and the
// engine runs purely on heuristics.
// Valid values: openai, anthropic, mock
func ClassifierProvider() string {
	return os.Getenv("CLASSIFIER_PROVIDER")
}

// ClassifierAPIKey returns the API key for the configured classifier.
func ClassifierAPIKey() string {
	switch ClassifierProvider() {
	case "anthropic":
		return AnthropicAPIKey()
	case "mock":
		return ""
	default:
		return OpenAIAPIKey()
	}
}

// ClassifierTimeout bounds the AI classification call before falling back
// to heuristics. Defaults to 10s.
func ClassifierTimeout() time.Duration {
	secs, err := strconv.Atoi(os.Getenv("CLASSIFIER_TIMEOUT_SECONDS"))
	if err != nil || secs <= 0 {
		return 10 * time.Second
	}
	return time.Duration(secs) * time.Second
}

// ArtifactThreshold returns the peak-to-peak artifact rejection threshold
// in signal units. Defaults to 200.
func ArtifactThreshold() float64 {
	v, err := strconv.ParseFloat(os.Getenv("ARTIFACT_THRESHOLD"), 64)
	if err != nil || v <= 0 {
		return 200
	}
	return v
}

// EpochWorkers returns the per-group epoching worker pool size.
// Defaults to 4.
func EpochWorkers() int {
	n, err := strconv.Atoi(os.Getenv("EPOCH_WORKERS"))
	if err != nil || n <= 0 {
		return 4
	}
	return n
}

// RateLimitRPS returns requests per second limit.
// Defaults to 100 if not set.
func RateLimitRPS() float64 {
	rps, err := strconv.ParseFloat(os.Getenv("RATE_LIMIT_RPS"), 64)
	if err != nil || rps <= 0 {
		return 100
	}
	return rps
}

// RateLimitBurst returns the burst size for rate limiting.
// Defaults to 20 if not set.
func RateLimitBurst() int {
	burst, err := strconv.Atoi(os.Getenv("RATE_LIMIT_BURST"))
	if err != nil || burst <= 0 {
		return 20
	}
	return burst
}

// LogLevel returns the log level (debug, info, warn, error).
// Defaults to "info" if not set.
func LogLevel() string {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		return "info"
	}
	return level
}
