// Package server exposes the HTTP surface of the bridge service: a health
// endpoint, the TwiML call-setup responder, and the media-stream WebSocket
// endpoint that hands each call to a bridge.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/square-key-labs/callbridge-ai/src/bridge"
	"github.com/square-key-labs/callbridge-ai/src/config"
	"github.com/square-key-labs/callbridge-ai/src/logger"
	"github.com/square-key-labs/callbridge-ai/src/twilio"
)

// introGreeting is spoken by Twilio before the media stream opens
const introGreeting = "Please wait while we connect your call to the A. I. " +
	"voice assistant, powered by Twilio and the Open A I Realtime API"

// Server serves the call-setup and media-stream endpoints
type Server struct {
	cfg        *config.Settings
	log        *logger.Logger
	upgrader   websocket.Upgrader
	httpServer *http.Server
}

// New creates a server for the given settings
func New(cfg *config.Settings) *Server {
	return &Server{
		cfg: cfg,
		log: logger.WithPrefix("server"),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Twilio connects from its own infrastructure
			},
		},
	}
}

// Handler returns the route table. Split out from Start so tests can drive
// it through httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/incoming-call", s.handleIncomingCall)
	mux.HandleFunc("/media-stream", s.handleMediaStream)
	return mux
}

// Start runs the HTTP server until ctx is cancelled
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:    s.cfg.Addr(),
		Handler: s.Handler(),
	}

	go func() {
		<-ctx.Done()
		if err := s.httpServer.Shutdown(context.Background()); err != nil {
			s.log.Error("HTTP server shutdown error: %v", err)
		}
	}()

	s.log.Info("Twilio media stream server listening on %s", s.cfg.Addr())
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("HTTP server error: %w", err)
	}
	return nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"message": "Twilio Media Stream Server is running!",
	})
}

// handleIncomingCall returns TwiML instructing Twilio to open a media stream
// back to this server
func (s *Server) handleIncomingCall(w http.ResponseWriter, r *http.Request) {
	twiml, err := twilio.ConnectStreamTwiML(introGreeting, s.cfg.TwilioIntroVoice, streamURL(r))
	if err != nil {
		s.log.Error("Failed to build TwiML: %v", err)
		http.Error(w, "failed to build TwiML", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/xml")
	_, _ = io.WriteString(w, twiml)
}

// streamURL derives the public wss:// URL that Twilio should stream media
// to. Always secure, even when the inbound request arrived via plain http
// during local testing.
func streamURL(r *http.Request) string {
	return fmt.Sprintf("wss://%s/media-stream", r.Host)
}

// handleMediaStream upgrades the connection and runs a bridge for the
// lifetime of the call
func (s *Server) handleMediaStream(w http.ResponseWriter, r *http.Request) {
	// Echo the first caller-negotiated subprotocol token back verbatim
	var respHeader http.Header
	if proto := r.Header.Get("Sec-WebSocket-Protocol"); proto != "" {
		token := strings.TrimSpace(strings.SplitN(proto, ",", 2)[0])
		respHeader = http.Header{"Sec-WebSocket-Protocol": []string{token}}
	}

	conn, err := s.upgrader.Upgrade(w, r, respHeader)
	if err != nil {
		s.log.Error("WebSocket upgrade error: %v", err)
		return
	}

	callID := uuid.NewString()[:8]
	callLog := logger.WithPrefix("call-" + callID)
	callLog.Info("Media stream connection from %s", r.RemoteAddr)

	br := bridge.New(conn, s.cfg, callLog)
	defer br.Shutdown()

	if err := br.Start(r.Context()); err != nil {
		callLog.Error("Bridge start failed: %v", err)
		return
	}
	if err := br.Run(r.Context()); err != nil {
		callLog.Error("Bridge terminated: %v", err)
	}
}
