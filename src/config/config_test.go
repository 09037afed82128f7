package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRequiresAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OPENAI_API_KEY")
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	for _, key := range []string{
		"OPENAI_REALTIME_MODEL", "OPENAI_RESPONSE_VOICE", "OPENAI_SYSTEM_PROMPT",
		"OPENAI_TEMPERATURE", "OPENAI_LOG_EVENT_TYPES", "OPENAI_SHOW_TIMING_MATH",
		"TWILIO_INTRO_VOICE", "HOST", "PORT",
	} {
		t.Setenv(key, "")
	}

	s, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "gpt-realtime", s.OpenAIModel)
	assert.Equal(t, "alloy", s.OpenAIVoice)
	assert.Equal(t, DefaultSystemPrompt, s.SystemPrompt)
	assert.Equal(t, 0.8, s.OpenAITemperature)
	assert.False(t, s.ShowTimingMath)
	assert.Equal(t, "Google.en-US-Chirp3-HD-Aoede", s.TwilioIntroVoice)
	assert.Equal(t, "0.0.0.0:8000", s.Addr())
	assert.Contains(t, s.LogEventTypes, "input_audio_buffer.speech_started")
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("OPENAI_REALTIME_MODEL", "gpt-realtime-mini")
	t.Setenv("OPENAI_RESPONSE_VOICE", "verse")
	t.Setenv("OPENAI_TEMPERATURE", "0.5")
	t.Setenv("OPENAI_SHOW_TIMING_MATH", "true")
	t.Setenv("OPENAI_LOG_EVENT_TYPES", "error, session.created ,")
	t.Setenv("PORT", "9100")

	s, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "gpt-realtime-mini", s.OpenAIModel)
	assert.Equal(t, "verse", s.OpenAIVoice)
	assert.Equal(t, 0.5, s.OpenAITemperature)
	assert.True(t, s.ShowTimingMath)
	assert.Equal(t, []string{"error", "session.created"}, s.LogEventTypes)
	assert.Equal(t, 9100, s.Port)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")

	t.Setenv("OPENAI_TEMPERATURE", "warm")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("OPENAI_TEMPERATURE", "")
	t.Setenv("PORT", "eight-thousand")
	_, err = Load()
	assert.Error(t, err)
}

func TestParseBool(t *testing.T) {
	for _, truthy := range []string{"1", "true", "YES", "On"} {
		assert.True(t, parseBool(truthy), truthy)
	}
	for _, falsy := range []string{"", "0", "false", "off", "maybe"} {
		assert.False(t, parseBool(falsy), falsy)
	}
}
