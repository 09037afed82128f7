// Package bridge relays a live phone call between a Twilio Media Streams
// WebSocket and the OpenAI Realtime API. It owns both connections for the
// duration of one call, translates between the two wire protocols, and
// tracks playback position so the agent can be interrupted mid-utterance.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/square-key-labs/callbridge-ai/src/config"
	"github.com/square-key-labs/callbridge-ai/src/logger"
	"github.com/square-key-labs/callbridge-ai/src/openai"
)

var (
	// ErrUpstreamConnect means the realtime API connection could not be
	// established during Start. The call is surfaced to the caller as a
	// dropped connection; there is no retry.
	ErrUpstreamConnect = errors.New("failed to connect to OpenAI Realtime API")

	// ErrNotInitialized means Run was called before a successful Start
	ErrNotInitialized = errors.New("bridge not started: realtime connection missing")
)

// greetingSeed is the synthetic first user turn that makes the agent speak
// first instead of waiting for caller input
const greetingSeed = "Deliver the short introduction described in your system " +
	"instructions, then wait for the caller's response."

// CallerConn is the subset of the Twilio-side websocket connection the
// bridge uses. *websocket.Conn satisfies it.
type CallerConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteJSON(v interface{}) error
	Close() error
}

// RealtimeConn is the speech-service connection as the bridge sees it.
// *openai.Realtime satisfies it.
type RealtimeConn interface {
	UpdateSession(model, voice, instructions string) error
	SeedConversation(text string) error
	AppendAudio(payload string) error
	TruncateItem(itemID string, audioEndMs int64) error
	ReadEvent() (*openai.ServerEvent, error)
	Open() bool
	Close() error
}

// Bridge connects one caller websocket with one realtime API connection and
// runs the two relay loops between them
type Bridge struct {
	cfg  *config.Settings
	log  *logger.Logger
	sess *Session

	caller   CallerConn
	realtime RealtimeConn

	logEvents map[string]struct{}

	// dial is swappable in tests
	dial func(ctx context.Context, cfg openai.Config) (RealtimeConn, error)

	shutdownOnce sync.Once
}

// New creates a bridge for an already-accepted caller connection
func New(caller CallerConn, cfg *config.Settings, log *logger.Logger) *Bridge {
	logEvents := make(map[string]struct{}, len(cfg.LogEventTypes))
	for _, t := range cfg.LogEventTypes {
		logEvents[t] = struct{}{}
	}

	return &Bridge{
		cfg:       cfg,
		log:       log,
		sess:      NewSession(),
		caller:    caller,
		logEvents: logEvents,
		dial: func(ctx context.Context, cfg openai.Config) (RealtimeConn, error) {
			return openai.Dial(ctx, cfg)
		},
	}
}

// Start opens the realtime API connection and performs session
// initialization: audio format, turn detection, persona, and the seed turn
// that makes the agent deliver its opening line
func (b *Bridge) Start(ctx context.Context) error {
	conn, err := b.dial(ctx, openai.Config{
		APIKey:      b.cfg.OpenAIAPIKey,
		Model:       b.cfg.OpenAIModel,
		Temperature: b.cfg.OpenAITemperature,
	})
	if err != nil {
		b.log.Error("Failed to connect to OpenAI Realtime API: %v", err)
		return fmt.Errorf("%w: %v", ErrUpstreamConnect, err)
	}
	b.realtime = conn
	b.log.Info("Connected to OpenAI Realtime API")

	if err := b.initializeSession(); err != nil {
		_ = b.realtime.Close()
		b.realtime = nil
		return fmt.Errorf("%w: session initialization: %v", ErrUpstreamConnect, err)
	}
	return nil
}

func (b *Bridge) initializeSession() error {
	b.log.Debug("Sending session update (model=%s voice=%s)", b.cfg.OpenAIModel, b.cfg.OpenAIVoice)
	if err := b.realtime.UpdateSession(b.cfg.OpenAIModel, b.cfg.OpenAIVoice, b.cfg.SystemPrompt); err != nil {
		return err
	}
	return b.realtime.SeedConversation(greetingSeed)
}

// Run starts both relays and blocks until the call is over. Either relay
// finishing, for any reason, cancels the other; a relay parked in a blocking
// read is unblocked by closing its socket.
func (b *Bridge) Run(ctx context.Context) error {
	if b.realtime == nil {
		return ErrNotInitialized
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var g errgroup.Group
	g.Go(func() error {
		defer cancel()
		return b.relayCaller(ctx)
	})
	g.Go(func() error {
		defer cancel()
		return b.relayRealtime(ctx)
	})

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		<-ctx.Done()
		b.closeConns()
	}()

	err := g.Wait()
	<-closed
	return err
}

// Shutdown tears both connections down. Idempotent, safe on every exit path,
// and never reports an error; already-closed connections are expected here.
func (b *Bridge) Shutdown() {
	b.shutdownOnce.Do(func() {
		b.closeConns()
		b.log.Debug("Bridge shut down")
	})
}

func (b *Bridge) closeConns() {
	if b.realtime != nil {
		_ = b.realtime.Close()
	}
	_ = b.caller.Close()
}

// isDisconnect reports whether a read error means the peer (or our own
// shutdown) closed the socket, which ends the call normally
func isDisconnect(err error) bool {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		return true
	}
	return errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed)
}
