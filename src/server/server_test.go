package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/square-key-labs/callbridge-ai/src/config"
)

func testSettings() *config.Settings {
	return &config.Settings{
		OpenAIAPIKey:      "sk-test",
		OpenAIModel:       "gpt-realtime",
		OpenAIVoice:       "alloy",
		SystemPrompt:      "test",
		OpenAITemperature: 0.8,
		TwilioIntroVoice:  "Google.en-US-Chirp3-HD-Aoede",
		Host:              "127.0.0.1",
		Port:              0,
	}
}

func TestHealthEndpoint(t *testing.T) {
	ts := httptest.NewServer(New(testSettings()).Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "Twilio Media Stream Server is running!", body["message"])
}

func TestUnknownPathReturns404(t *testing.T) {
	ts := httptest.NewServer(New(testSettings()).Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/nope")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestIncomingCallTwiML(t *testing.T) {
	ts := httptest.NewServer(New(testSettings()).Handler())
	defer ts.Close()

	for _, method := range []string{http.MethodGet, http.MethodPost} {
		req, err := http.NewRequest(method, ts.URL+"/incoming-call", nil)
		require.NoError(t, err)

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		require.NoError(t, err)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "application/xml", resp.Header.Get("Content-Type"))

		twiml := string(body)
		assert.Contains(t, twiml, "<Response>")
		assert.Contains(t, twiml, `voice="Google.en-US-Chirp3-HD-Aoede"`)
		// The stream URL must point back at this host, always over wss
		assert.Contains(t, twiml, "wss://")
		assert.Contains(t, twiml, "/media-stream")
	}
}

func TestStreamURLForcesSecureScheme(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "http://example.com/incoming-call", nil)
	assert.Equal(t, "wss://example.com/media-stream", streamURL(req))
}
