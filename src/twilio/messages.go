// Package twilio implements the Twilio Media Streams WebSocket protocol:
// the JSON frames exchanged over a media-stream connection plus the TwiML
// needed to route an incoming call into one.
package twilio

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Inbound event names sent by Twilio over a media stream
const (
	EventStart     = "start"
	EventMedia     = "media"
	EventMark      = "mark"
	EventStop      = "stop"
	EventConnected = "connected"
)

// Outbound event names the bridge produces
const (
	EventClear = "clear"
)

// MarkResponsePart is the acknowledgment marker name sent after each audio
// chunk so Twilio can confirm playback progress
const MarkResponsePart = "responsePart"

// Message is a single Media Streams frame in either direction
type Message struct {
	Event     string                 `json:"event"`
	StreamSid string                 `json:"streamSid,omitempty"`
	Media     *Media                 `json:"media,omitempty"`
	Start     *Start                 `json:"start,omitempty"`
	Mark      *Mark                  `json:"mark,omitempty"`
	Stop      map[string]interface{} `json:"stop,omitempty"`
}

// Media carries one chunk of base64-encoded mulaw audio
type Media struct {
	Track     string `json:"track,omitempty"`
	Chunk     string `json:"chunk,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   string `json:"payload"` // base64-encoded mulaw audio
}

// TimestampMs parses the media timestamp, which Twilio sends as a decimal
// string of milliseconds since stream start
func (m *Media) TimestampMs() (int64, error) {
	ts, err := strconv.ParseInt(m.Timestamp, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid media timestamp %q: %w", m.Timestamp, err)
	}
	return ts, nil
}

// Start carries the stream identifiers delivered when a stream begins
type Start struct {
	StreamSid        string                 `json:"streamSid"`
	CallSid          string                 `json:"callSid"`
	AccountSid       string                 `json:"accountSid"`
	Tracks           []string               `json:"tracks"`
	MediaFormat      map[string]interface{} `json:"mediaFormat"`
	CustomParameters map[string]string      `json:"customParameters,omitempty"`
}

// Mark names an acknowledgment marker
type Mark struct {
	Name string `json:"name"`
}

// ParseMessage decodes one inbound media-stream frame
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal Twilio message: %w", err)
	}
	return &msg, nil
}

// NewMediaMessage builds an outbound media frame carrying base64 mulaw audio
func NewMediaMessage(streamSid, payload string) *Message {
	return &Message{
		Event:     EventMedia,
		StreamSid: streamSid,
		Media:     &Media{Payload: payload},
	}
}

// NewMarkMessage builds an outbound acknowledgment marker frame
func NewMarkMessage(streamSid, name string) *Message {
	return &Message{
		Event:     EventMark,
		StreamSid: streamSid,
		Mark:      &Mark{Name: name},
	}
}

// NewClearMessage builds the frame that discards any audio Twilio has
// buffered but not yet played
func NewClearMessage(streamSid string) *Message {
	return &Message{
		Event:     EventClear,
		StreamSid: streamSid,
	}
}
