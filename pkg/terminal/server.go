package terminal

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/folioterm/folioterm/pkg/auth"
	"github.com/folioterm/folioterm/pkg/command"
	"github.com/folioterm/folioterm/pkg/configuration"
	"github.com/folioterm/folioterm/pkg/logger"
	"github.com/folioterm/folioterm/pkg/media"
	"github.com/folioterm/folioterm/pkg/resources"
	"github.com/folioterm/folioterm/pkg/session"
	"github.com/folioterm/folioterm/pkg/shared"
	"github.com/folioterm/folioterm/pkg/typewriter"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Configuration accessors; see the [Network] and [Terminal] sections in
// settings.cfg.

func getWriteWait() time.Duration {
	return configuration.GetDuration("Network", "write_wait_timeout", 10*time.Second)
}

func getPongWait() time.Duration {
	return configuration.GetDuration("Network", "pong_timeout", 90*time.Second)
}

func getPingPeriod() time.Duration {
	return (getPongWait() * 9) / 10
}

func getMaxMessageSize() int64 {
	return int64(configuration.GetInt("Network", "max_message_size_kb", 16) * 1024)
}

func getMaxChannelBuffer() int {
	return configuration.GetInt("Network", "max_channel_buffer", 1000)
}

func getMaxInputLength() int {
	return configuration.GetInt("Terminal", "max_input_length", 512)
}

func getTypeInterval() time.Duration {
	ms := configuration.GetInt("Terminal", "type_interval_ms", 18)
	return time.Duration(ms) * time.Millisecond
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The terminal is same-origin; the frontend and the websocket are served
	// by this process.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server accepts terminal websocket connections and assembles a session per
// connection.
type Server struct {
	source   session.CommandSource
	verifier command.CredentialVerifier
	limiter  *resources.SessionLimiter
}

// NewServer wires the command source and the credential verifier shared by
// all terminal sessions. Everything else is built per connection.
func NewServer(source session.CommandSource, verifier command.CredentialVerifier) *Server {
	return &Server{
		source:   source,
		verifier: verifier,
		limiter:  resources.NewSessionLimiter(),
	}
}

// clientIP resolves the caller's address, honoring a reverse proxy's
// X-Forwarded-For header.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if idx := strings.Index(fwd, ","); idx >= 0 {
			fwd = fwd[:idx]
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// resumeIdentity restores authentication from a token presented at connect
// time — Bearer header, session cookie, or query parameter, in that order.
// A missing or invalid token leaves the session anonymous.
func resumeIdentity(id *clientIdentity, r *http.Request) {
	token, err := auth.ExtractTokenFromRequest(r)
	if err != nil {
		return
	}
	id.Resume(token)
}

// staticCommands are available even when the database is unreachable.
func staticCommands() []*command.Command {
	return []*command.Command{
		{
			Name:        "home",
			Description: "back to the landing page",
			Actions:     []command.Action{{Kind: command.ActionNavigate, Href: "/"}},
			Role:        command.RoleUser,
			ShowInHelp:  true,
			Enabled:     true,
		},
	}
}

// HandleWebSocket upgrades the connection and runs a terminal session on it
// until the client goes away.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := uuid.NewString()
	ip := clientIP(r)
	if err := s.limiter.Register(sessionID, ip); err != nil {
		logger.WebSocketWarn("rejecting connection from %s: %v", ip, err)
		http.Error(w, "too many sessions", http.StatusTooManyRequests)
		return
	}
	defer s.limiter.Unregister(sessionID)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.WebSocketError("upgrade failed: %v", err)
		return
	}

	client := &Client{
		sessionID: sessionID,
		conn:      conn,
		send:      make(chan shared.Message, getMaxChannelBuffer()),
		inputs:    make(chan string, 16),
		media:     media.NewRegistry(),
		done:      make(chan struct{}),
		touch:     func() { s.limiter.Touch(sessionID) },
	}
	client.identity = &clientIdentity{client: client}

	buffer := typewriter.New(client.enqueue)
	buffer.SetMaxLines(configuration.GetInt("Terminal", "max_output_lines", 2000))

	promptSymbol := configuration.GetString("Terminal", "prompt_symbol", "guest@folio:~$ ")
	client.controller = session.NewController(
		buffer,
		client.media,
		&clientEffects{client: client},
		client.identity,
		s.verifier,
		session.Config{
			TypeInterval:   getTypeInterval(),
			PromptSymbol:   promptSymbol,
			PostLoginRoute: configuration.GetString("Terminal", "post_login_route", "/blog"),
			MaxHistory:     configuration.GetInt("Terminal", "max_history_lines", 200),
			StaticCommands: staticCommands(),
		},
	)

	// A token presented at connect time restores a logged-in session.
	resumeIdentity(client.identity, r)

	logger.WebSocketInfo("terminal session %s connected from %s", sessionID, r.RemoteAddr)
	client.sendHandshake(promptSymbol)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go client.writePump()
	go client.inputWorker(ctx)

	// Load the command list before greeting so help is accurate immediately.
	client.controller.LoadCommands(ctx, s.source)
	client.controller.Greet(configuration.GetString("Terminal", "welcome_text",
		"folioterm - type 'help' to list commands"))

	client.readPump(ctx)
	logger.WebSocketInfo("terminal session %s disconnected", sessionID)
}
