// Package openai provides a minimal client for the OpenAI Realtime API over
// WebSocket, covering the handful of client events and server events a
// telephony bridge needs.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"github.com/gorilla/websocket"
)

// DefaultURL is the production realtime endpoint
const DefaultURL = "wss://api.openai.com/v1/realtime"

// Server event types the bridge acts on; everything else is at most logged
const (
	TypeAudioDelta    = "response.output_audio.delta"
	TypeSpeechStarted = "input_audio_buffer.speech_started"
)

// ErrConnClosed is returned when sending on a connection that has been closed
var ErrConnClosed = errors.New("realtime connection closed")

// Config holds connection parameters for the realtime API
type Config struct {
	APIKey      string
	Model       string  // e.g., "gpt-realtime"
	Temperature float64 // sampling temperature, passed as a query parameter
	URL         string  // endpoint override; defaults to DefaultURL
}

// Realtime is a live connection to the realtime API. Writes are serialized
// with a mutex because two goroutines share the write side: the caller-to-AI
// relay (audio appends) and the barge-in path (truncate).
type Realtime struct {
	conn      *websocket.Conn
	writeMu   sync.Mutex
	stateMu   sync.Mutex
	open      bool
	closeOnce sync.Once
}

// Dial connects and authenticates to the realtime API. It makes a single
// attempt; a per-call bridge has nothing useful to do with a retry.
func Dial(ctx context.Context, cfg Config) (*Realtime, error) {
	endpoint := cfg.URL
	if endpoint == "" {
		endpoint = DefaultURL
	}

	params := url.Values{}
	params.Set("model", cfg.Model)
	params.Set("temperature", strconv.FormatFloat(cfg.Temperature, 'g', -1, 64))

	header := http.Header{}
	header.Set("Authorization", "Bearer "+cfg.APIKey)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, endpoint+"?"+params.Encode(), header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("realtime dial failed (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("realtime dial failed: %w", err)
	}

	return &Realtime{conn: conn, open: true}, nil
}

// Open reports whether the connection is still usable
func (c *Realtime) Open() bool {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.open
}

func (c *Realtime) markClosed() {
	c.stateMu.Lock()
	c.open = false
	c.stateMu.Unlock()
}

// Close shuts the connection down. Safe to call more than once; already
// closed connections are not an error.
func (c *Realtime) Close() error {
	c.markClosed()
	c.closeOnce.Do(func() {
		_ = c.conn.Close()
	})
	return nil
}

func (c *Realtime) send(v interface{}) error {
	if !c.Open() {
		return ErrConnClosed
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(v)
}

// ServerEvent is one decoded event from the realtime API. Raw preserves the
// full payload for diagnostic logging.
type ServerEvent struct {
	Type   string `json:"type"`
	Delta  string `json:"delta,omitempty"`
	ItemID string `json:"item_id,omitempty"`

	Raw json.RawMessage `json:"-"`
}

// ReadEvent blocks for the next server event. A read error marks the
// connection closed; the caller decides whether the error was a normal
// termination.
func (c *Realtime) ReadEvent() (*ServerEvent, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		c.markClosed()
		return nil, err
	}

	var ev ServerEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("failed to unmarshal realtime event: %w", err)
	}
	ev.Raw = data
	return &ev, nil
}

// Client event payloads. Field layout mirrors the wire format exactly.

type sessionUpdateEvent struct {
	Type    string         `json:"type"`
	Session sessionPayload `json:"session"`
}

type sessionPayload struct {
	Type             string       `json:"type"`
	Model            string       `json:"model"`
	OutputModalities []string     `json:"output_modalities"`
	Audio            audioPayload `json:"audio"`
	Instructions     string       `json:"instructions"`
}

type audioPayload struct {
	Input  audioInput  `json:"input"`
	Output audioOutput `json:"output"`
}

type audioInput struct {
	Format        audioFormat   `json:"format"`
	TurnDetection turnDetection `json:"turn_detection"`
}

type audioOutput struct {
	Format audioFormat `json:"format"`
	Voice  string      `json:"voice"`
}

type audioFormat struct {
	Type string `json:"type"`
}

type turnDetection struct {
	Type string `json:"type"`
}

type itemCreateEvent struct {
	Type string      `json:"type"`
	Item itemPayload `json:"item"`
}

type itemPayload struct {
	Type    string        `json:"type"`
	Role    string        `json:"role"`
	Content []itemContent `json:"content"`
}

type itemContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type responseCreateEvent struct {
	Type string `json:"type"`
}

type audioAppendEvent struct {
	Type  string `json:"type"`
	Audio string `json:"audio"`
}

type itemTruncateEvent struct {
	Type         string `json:"type"`
	ItemID       string `json:"item_id"`
	ContentIndex int    `json:"content_index"`
	AudioEndMs   int64  `json:"audio_end_ms"`
}

// UpdateSession configures the session: mulaw audio both ways, server-side
// voice activity detection, the agent's voice and instructions.
func (c *Realtime) UpdateSession(model, voice, instructions string) error {
	return c.send(sessionUpdateEvent{
		Type: "session.update",
		Session: sessionPayload{
			Type:             "realtime",
			Model:            model,
			OutputModalities: []string{"audio"},
			Audio: audioPayload{
				Input: audioInput{
					Format:        audioFormat{Type: "audio/pcmu"},
					TurnDetection: turnDetection{Type: "server_vad"},
				},
				Output: audioOutput{
					Format: audioFormat{Type: "audio/pcmu"},
					Voice:  voice,
				},
			},
			Instructions: instructions,
		},
	})
}

// SeedConversation injects a synthetic first user turn and requests a
// response, so the agent speaks first without waiting for caller input
func (c *Realtime) SeedConversation(text string) error {
	err := c.send(itemCreateEvent{
		Type: "conversation.item.create",
		Item: itemPayload{
			Type: "message",
			Role: "user",
			Content: []itemContent{
				{Type: "input_text", Text: text},
			},
		},
	})
	if err != nil {
		return err
	}
	return c.send(responseCreateEvent{Type: "response.create"})
}

// AppendAudio forwards one chunk of base64 caller audio to the input buffer
func (c *Realtime) AppendAudio(payload string) error {
	return c.send(audioAppendEvent{
		Type:  "input_audio_buffer.append",
		Audio: payload,
	})
}

// TruncateItem tells the realtime API to discard generated audio past
// audioEndMs for the given item, so it stops producing content the caller
// has already interrupted
func (c *Realtime) TruncateItem(itemID string, audioEndMs int64) error {
	return c.send(itemTruncateEvent{
		Type:         "conversation.item.truncate",
		ItemID:       itemID,
		ContentIndex: 0,
		AudioEndMs:   audioEndMs,
	})
}
