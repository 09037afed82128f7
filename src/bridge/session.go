package bridge

import "sync"

// Session holds the mutable per-call state shared by the two relay
// goroutines. A single mutex guards every field. In steady state the caller
// relay is the only writer of streamSID and latestMediaMs, and the realtime
// relay is the only writer of the utterance fields and the mark queue; the
// lock is what makes the cross-relay reads safe.
type Session struct {
	mu sync.Mutex

	streamSID     string
	latestMediaMs int64

	utteranceID       string
	utteranceStartMs  int64
	utteranceStartSet bool

	pendingMarks []string
}

// NewSession creates an empty session for a new caller connection
func NewSession() *Session {
	return &Session{}
}

// StartStream records a new stream identifier and resets the timing and
// utterance state. A single connection may carry multiple logical streams
// in sequence.
func (s *Session) StartStream(streamSID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streamSID = streamSID
	s.latestMediaMs = 0
	s.utteranceID = ""
	s.utteranceStartMs = 0
	s.utteranceStartSet = false
}

// StreamSID returns the current stream identifier, or "" before the first
// start event
func (s *Session) StreamSID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streamSID
}

// ObserveMediaTimestamp records the timestamp of the latest inbound media
// frame
func (s *Session) ObserveMediaTimestamp(ms int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latestMediaMs = ms
}

// LatestMediaTimestamp returns the last observed inbound media timestamp
func (s *Session) LatestMediaTimestamp() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latestMediaMs
}

// CurrentUtterance returns the item ID of the agent response currently
// playing back, or "" when idle
func (s *Session) CurrentUtterance() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.utteranceID
}

// UtteranceStart returns the media timestamp recorded when the current
// utterance began, and whether one is recorded
func (s *Session) UtteranceStart() (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.utteranceStartMs, s.utteranceStartSet
}

// TrackUtterance notes which agent response is playing. When itemID differs
// from the current utterance it becomes the new one and the current media
// timestamp is captured as its start, for elapsed-time accounting during a
// barge-in. Returns whether a new utterance started and its start timestamp.
func (s *Session) TrackUtterance(itemID string) (bool, int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if itemID == "" || itemID == s.utteranceID {
		return false, 0
	}
	s.utteranceID = itemID
	s.utteranceStartMs = s.latestMediaMs
	s.utteranceStartSet = true
	return true, s.utteranceStartMs
}

// PushMark appends an acknowledgment marker name that has been sent to the
// caller but not yet confirmed
func (s *Session) PushMark(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingMarks = append(s.pendingMarks, name)
}

// PopMark confirms the oldest pending marker. Popping an empty queue is a
// no-op; mark confirmations are assumed to arrive in send order.
func (s *Session) PopMark() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pendingMarks) == 0 {
		return "", false
	}
	name := s.pendingMarks[0]
	s.pendingMarks = s.pendingMarks[1:]
	return name, true
}

// PendingMarks returns the number of unconfirmed acknowledgment markers
func (s *Session) PendingMarks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pendingMarks)
}

// BargeInCut is a consistent snapshot of the values a barge-in needs
type BargeInCut struct {
	ItemID           string
	StreamSID        string
	LatestMediaMs    int64
	UtteranceStartMs int64
	ElapsedMs        int64
}

// BargeInSnapshot captures the state needed to truncate the in-flight
// utterance. It reports false when there is nothing to interrupt: no
// unconfirmed audio or no recorded utterance start.
func (s *Session) BargeInSnapshot() (BargeInCut, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pendingMarks) == 0 || !s.utteranceStartSet {
		return BargeInCut{}, false
	}
	return BargeInCut{
		ItemID:           s.utteranceID,
		StreamSID:        s.streamSID,
		LatestMediaMs:    s.latestMediaMs,
		UtteranceStartMs: s.utteranceStartMs,
		ElapsedMs:        s.latestMediaMs - s.utteranceStartMs,
	}, true
}

// ResetPlayback clears the mark queue and utterance tracking after a
// barge-in has been processed
func (s *Session) ResetPlayback() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingMarks = s.pendingMarks[:0]
	s.utteranceID = ""
	s.utteranceStartMs = 0
	s.utteranceStartSet = false
}
