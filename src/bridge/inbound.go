package bridge

import (
	"context"
	"fmt"

	"github.com/square-key-labs/callbridge-ai/src/twilio"
)

// relayCaller reads media-stream frames from the caller socket and forwards
// audio to the realtime API. A caller disconnect is the signal that ends the
// call, so it also closes the realtime connection.
func (b *Bridge) relayCaller(ctx context.Context) error {
	for {
		_, data, err := b.caller.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				// Cancelled; the closing of the sockets woke this read up
				return nil
			}
			if isDisconnect(err) {
				b.log.Info("Twilio WebSocket disconnected by client")
				if b.realtime.Open() {
					_ = b.realtime.Close()
				}
				return nil
			}
			return fmt.Errorf("error reading Twilio media stream: %w", err)
		}

		if err := b.handleCallerMessage(data); err != nil {
			return err
		}
	}
}

// handleCallerMessage processes one inbound media-stream frame. Unknown
// event kinds are ignored; malformed frames are fatal, since a corrupted
// stream cannot be resumed mid-call.
func (b *Bridge) handleCallerMessage(data []byte) error {
	msg, err := twilio.ParseMessage(data)
	if err != nil {
		return err
	}

	switch msg.Event {
	case twilio.EventMedia:
		if !b.realtime.Open() {
			// Nowhere to forward and nowhere to buffer; drop the frame
			return nil
		}
		if msg.Media == nil {
			return fmt.Errorf("media event missing media data")
		}
		ts, err := msg.Media.TimestampMs()
		if err != nil {
			return err
		}
		b.sess.ObserveMediaTimestamp(ts)
		return b.realtime.AppendAudio(msg.Media.Payload)

	case twilio.EventStart:
		if msg.Start == nil {
			return fmt.Errorf("start event missing start data")
		}
		b.sess.StartStream(msg.Start.StreamSid)
		b.log.Info("Incoming stream started %s", msg.Start.StreamSid)

	case twilio.EventMark:
		b.sess.PopMark()
	}

	return nil
}
