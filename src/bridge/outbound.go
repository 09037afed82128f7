package bridge

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/square-key-labs/callbridge-ai/src/openai"
	"github.com/square-key-labs/callbridge-ai/src/twilio"
)

// relayRealtime reads events from the realtime API and re-frames agent audio
// for the caller socket. The realtime connection closing is a normal end of
// call, not an error.
func (b *Bridge) relayRealtime(ctx context.Context) error {
	for {
		ev, err := b.realtime.ReadEvent()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if isDisconnect(err) {
				b.log.Info("OpenAI realtime connection closed")
				return nil
			}
			return fmt.Errorf("error relaying OpenAI events to Twilio: %w", err)
		}

		if err := b.handleRealtimeEvent(ev); err != nil {
			return err
		}
	}
}

// handleRealtimeEvent processes one server event: diagnostic logging for
// allow-listed types, audio deltas, and the speech-started barge-in trigger.
// Everything else is ignored.
func (b *Bridge) handleRealtimeEvent(ev *openai.ServerEvent) error {
	if _, ok := b.logEvents[ev.Type]; ok {
		b.log.Debug("Received event %s: %s", ev.Type, ev.Raw)
	}

	if ev.Type == openai.TypeAudioDelta && ev.Delta != "" {
		if err := b.handleAudioDelta(ev); err != nil {
			return err
		}
	}

	if ev.Type == openai.TypeSpeechStarted && b.sess.CurrentUtterance() != "" {
		b.log.Info("Speech started detected; interrupting response %s", b.sess.CurrentUtterance())
		return b.handleBargeIn()
	}

	return nil
}

// handleAudioDelta re-frames one chunk of agent audio for Twilio and records
// utterance timing. Deltas arriving before the stream has started are
// dropped: no outbound frame may be produced without a stream SID.
func (b *Bridge) handleAudioDelta(ev *openai.ServerEvent) error {
	streamSID := b.sess.StreamSID()
	if streamSID == "" {
		return nil
	}

	decoded, err := base64.StdEncoding.DecodeString(ev.Delta)
	if err != nil {
		// A single glitched frame should not end the call
		b.log.Error("Failed to decode OpenAI audio delta: %v", err)
		return nil
	}
	payload := base64.StdEncoding.EncodeToString(decoded)

	if err := b.caller.WriteJSON(twilio.NewMediaMessage(streamSID, payload)); err != nil {
		return fmt.Errorf("failed to send media frame: %w", err)
	}

	if started, startMs := b.sess.TrackUtterance(ev.ItemID); started && b.cfg.ShowTimingMath {
		b.log.Debug("Setting start timestamp for new response: %dms", startMs)
	}

	return b.sendMark(streamSID)
}

// sendMark sends an acknowledgment marker after an audio chunk and records
// it as pending until Twilio confirms playback
func (b *Bridge) sendMark(streamSID string) error {
	if err := b.caller.WriteJSON(twilio.NewMarkMessage(streamSID, twilio.MarkResponsePart)); err != nil {
		return fmt.Errorf("failed to send mark frame: %w", err)
	}
	b.sess.PushMark(twilio.MarkResponsePart)
	return nil
}
