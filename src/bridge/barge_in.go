package bridge

import (
	"fmt"

	"github.com/square-key-labs/callbridge-ai/src/twilio"
)

// handleBargeIn interrupts the agent mid-utterance: it truncates the
// in-flight response on the realtime side at the caller's elapsed playback
// position, clears Twilio's buffered audio, and resets the playback state.
// A no-op when there is no unconfirmed audio or no recorded utterance start.
func (b *Bridge) handleBargeIn() error {
	cut, ok := b.sess.BargeInSnapshot()
	if !ok {
		return nil
	}

	elapsed := cut.ElapsedMs
	if b.cfg.ShowTimingMath {
		b.log.Debug("Calculating elapsed time for truncation: %d - %d = %dms",
			cut.LatestMediaMs, cut.UtteranceStartMs, elapsed)
	}
	if elapsed < 0 {
		// Stale timestamps after a stream restart can produce a negative
		// window; never send that upstream
		b.log.Warn("Negative elapsed time %dms for item %s, clamping to 0", elapsed, cut.ItemID)
		elapsed = 0
	}

	if cut.ItemID != "" {
		if b.cfg.ShowTimingMath {
			b.log.Debug("Truncating item %s at %dms", cut.ItemID, elapsed)
		}
		if err := b.realtime.TruncateItem(cut.ItemID, elapsed); err != nil {
			return fmt.Errorf("failed to send truncate: %w", err)
		}
	}

	if cut.StreamSID != "" {
		if err := b.caller.WriteJSON(twilio.NewClearMessage(cut.StreamSID)); err != nil {
			return fmt.Errorf("failed to send clear frame: %w", err)
		}
	}

	b.sess.ResetPlayback()
	return nil
}
