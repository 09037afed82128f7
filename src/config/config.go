package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// DefaultSystemPrompt is the persona used when OPENAI_SYSTEM_PROMPT is not set
const DefaultSystemPrompt = `You are an enthusiastic and friendly AI assistant who enjoys engaging in conversations on any topic that interests users and providing accurate information. You have a playful sense of humor, particularly enjoying puns and light-hearted pranks delivered with subtlety. Maintain an upbeat and optimistic tone throughout interactions, while incorporating appropriate humor when the moment is right.`

// defaultLogEventTypes is the diagnostic allow-list of realtime event types
// that get logged without being acted on
var defaultLogEventTypes = []string{
	"error",
	"response.content.done",
	"rate_limits.updated",
	"response.done",
	"input_audio_buffer.committed",
	"input_audio_buffer.speech_stopped",
	"input_audio_buffer.speech_started",
	"session.created",
	"session.updated",
}

// Settings holds all runtime configuration for the bridge service
type Settings struct {
	OpenAIAPIKey      string
	OpenAIModel       string  // e.g., "gpt-realtime"
	OpenAIVoice       string  // e.g., "alloy"
	SystemPrompt      string  // behavioral instructions for the agent
	OpenAITemperature float64 // sampling temperature
	LogEventTypes     []string
	ShowTimingMath    bool   // verbose logging of barge-in timestamp arithmetic
	TwilioIntroVoice  string // voice used by the call-setup TwiML announcement
	Host              string
	Port              int
}

// Load reads settings from the environment, loading a .env file first if one
// is present. It fails if OPENAI_API_KEY is missing.
func Load() (*Settings, error) {
	// Missing .env is fine; real deployments set the environment directly
	_ = godotenv.Load()

	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY must be set in the environment or .env")
	}

	s := &Settings{
		OpenAIAPIKey:      apiKey,
		OpenAIModel:       getEnv("OPENAI_REALTIME_MODEL", "gpt-realtime"),
		OpenAIVoice:       getEnv("OPENAI_RESPONSE_VOICE", "alloy"),
		SystemPrompt:      getEnv("OPENAI_SYSTEM_PROMPT", DefaultSystemPrompt),
		OpenAITemperature: 0.8,
		LogEventTypes:     defaultLogEventTypes,
		TwilioIntroVoice:  getEnv("TWILIO_INTRO_VOICE", "Google.en-US-Chirp3-HD-Aoede"),
		Host:              getEnv("HOST", "0.0.0.0"),
		Port:              8000,
	}

	if raw := os.Getenv("OPENAI_TEMPERATURE"); raw != "" {
		temp, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid OPENAI_TEMPERATURE %q: %w", raw, err)
		}
		s.OpenAITemperature = temp
	}

	if raw := os.Getenv("OPENAI_LOG_EVENT_TYPES"); raw != "" {
		s.LogEventTypes = splitList(raw)
	}

	s.ShowTimingMath = parseBool(os.Getenv("OPENAI_SHOW_TIMING_MATH"))

	if raw := os.Getenv("PORT"); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT %q: %w", raw, err)
		}
		s.Port = port
	}

	return s, nil
}

// Addr returns the host:port the HTTP server should listen on
func (s *Settings) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func parseBool(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
