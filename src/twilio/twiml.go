package twilio

import (
	"encoding/xml"
	"fmt"
)

// TwiML voice response structures, limited to the verbs the call-setup
// responder needs: Say, Pause, and Connect/Stream.

type voiceResponse struct {
	XMLName xml.Name   `xml:"Response"`
	Say     *sayVerb   `xml:"Say,omitempty"`
	Pause   *pauseVerb `xml:"Pause,omitempty"`
	Connect *connectVerb
}

type sayVerb struct {
	Voice string `xml:"voice,attr,omitempty"`
	Text  string `xml:",chardata"`
}

type pauseVerb struct {
	Length int `xml:"length,attr"`
}

type connectVerb struct {
	XMLName xml.Name `xml:"Connect"`
	Stream  streamNoun
}

type streamNoun struct {
	XMLName xml.Name `xml:"Stream"`
	URL     string   `xml:"url,attr"`
}

// ConnectStreamTwiML renders the TwiML that greets the caller and then opens
// a media stream to streamURL
func ConnectStreamTwiML(greeting, voice, streamURL string) (string, error) {
	resp := voiceResponse{
		Say:     &sayVerb{Voice: voice, Text: greeting},
		Pause:   &pauseVerb{Length: 1},
		Connect: &connectVerb{Stream: streamNoun{URL: streamURL}},
	}

	body, err := xml.Marshal(resp)
	if err != nil {
		return "", fmt.Errorf("failed to marshal TwiML: %w", err)
	}
	return xml.Header + string(body), nil
}
