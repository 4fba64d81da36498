// Package terminal bridges browser terminals to per-connection session
// controllers over a websocket. One Client per connection; each carries its
// own output buffer, media registry, and command interpreter so terminals
// never share state.
package terminal

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/folioterm/folioterm/pkg/auth"
	"github.com/folioterm/folioterm/pkg/logger"
	"github.com/folioterm/folioterm/pkg/media"
	"github.com/folioterm/folioterm/pkg/session"
	"github.com/folioterm/folioterm/pkg/shared"

	"github.com/gorilla/websocket"
)

// Client is one connected browser terminal.
type Client struct {
	sessionID  string
	conn       *websocket.Conn
	send       chan shared.Message
	inputs     chan string
	controller *session.Controller
	media      *media.Registry
	identity   *clientIdentity
	touch      func() // refreshes the session's slot in the limiter

	closeOnce sync.Once
	done      chan struct{}
}

// enqueue pushes a frame to the client, dropping it if the send buffer is
// full. A stalled client must not block the typewriter.
func (c *Client) enqueue(msg shared.Message) {
	select {
	case c.send <- msg:
	default:
		logger.WebSocketWarn("send buffer full for session %s, dropping frame type %d", c.sessionID, msg.Type)
	}
}

// sendHandshake pushes the frames the frontend needs before any output: the
// session ID handover and the prompt configuration for the input line.
func (c *Client) sendHandshake(promptSymbol string) {
	c.enqueue(shared.Message{Type: shared.MessageTypeSession, SessionID: c.sessionID})
	enabled := true
	c.enqueue(shared.Message{
		Type:         shared.MessageTypePrompt,
		PromptSymbol: promptSymbol,
		InputEnabled: &enabled,
	})
}

// close tears the connection down once.
func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// readPump consumes frames from the browser until the connection dies.
func (c *Client) readPump(ctx context.Context) {
	defer c.close()

	c.conn.SetReadLimit(getMaxMessageSize())
	c.conn.SetReadDeadline(time.Now().Add(getPongWait()))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(getPongWait()))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.WebSocketWarn("session %s read error: %v", c.sessionID, err)
			}
			return
		}

		var msg shared.ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			logger.WebSocketWarn("session %s sent malformed frame: %v", c.sessionID, err)
			continue
		}
		c.handleClientMessage(ctx, msg)
	}
}

// handleClientMessage routes one frontend frame.
func (c *Client) handleClientMessage(ctx context.Context, msg shared.ClientMessage) {
	if c.touch != nil {
		c.touch()
	}
	switch msg.Type {
	case "input":
		if len(msg.Content) > getMaxInputLength() {
			c.enqueue(shared.TextMessage("input too long."))
			return
		}
		// Clears must interrupt a command that is mid-typewrite, so they
		// run on the read pump instead of queueing behind the worker.
		trimmed := strings.ToLower(strings.TrimSpace(msg.Content))
		if trimmed == "clear" || trimmed == "cls" {
			c.controller.Submit(ctx, msg.Content)
			return
		}
		select {
		case c.inputs <- msg.Content:
		default:
			c.enqueue(shared.TextMessage("busy, input dropped."))
		}
	case "register-media":
		if msg.MediaKey != "" {
			c.media.Register(msg.MediaKey, &remoteMedia{key: msg.MediaKey, client: c})
		}
	case "unregister-media":
		if msg.MediaKey != "" {
			c.media.Unregister(msg.MediaKey)
		}
	case "history-prev":
		c.enqueue(shared.Message{Type: shared.MessageTypeInputLine, Content: c.controller.HistoryPrev()})
	case "history-next":
		c.enqueue(shared.Message{Type: shared.MessageTypeInputLine, Content: c.controller.HistoryNext()})
	default:
		logger.WebSocketDebug("session %s sent unknown frame type %q", c.sessionID, msg.Type)
	}
}

// inputWorker feeds submitted lines to the controller one at a time. The
// controller serializes submissions itself; the worker keeps the read pump
// responsive while a command is typing.
func (c *Client) inputWorker(ctx context.Context) {
	for {
		select {
		case <-c.done:
			return
		case line := <-c.inputs:
			c.controller.Submit(ctx, line)
			// Mask the input line while the login sub-session collects a
			// password.
			masked := c.controller.LoginActive()
			c.enqueue(shared.Message{Type: shared.MessageTypeInputCtl, MaskInput: masked})
		}
	}
}

// writePump pushes queued frames and keepalive pings to the browser.
func (c *Client) writePump() {
	ticker := time.NewTicker(getPingPeriod())
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(getWriteWait()))
			if err := c.conn.WriteJSON(msg); err != nil {
				logger.WebSocketWarn("session %s write error: %v", c.sessionID, err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(getWriteWait()))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// remoteMedia represents a frontend media widget in the exclusivity
// registry. Each call becomes a protocol frame; the widget applies it.
type remoteMedia struct {
	key    string
	client *Client
}

func (m *remoteMedia) Pause() error {
	m.client.enqueue(shared.Message{Type: shared.MessageTypeMediaPause, MediaKey: m.key})
	return nil
}

func (m *remoteMedia) SetRate(rate float64) error {
	m.client.enqueue(shared.Message{
		Type:     shared.MessageTypeMediaRate,
		MediaKey: m.key,
		Content:  strconv.FormatFloat(rate, 'f', -1, 64),
	})
	return nil
}

func (m *remoteMedia) NotifyStopped(reason string) {
	m.client.enqueue(shared.Message{Type: shared.MessageTypeMediaNotice, MediaKey: m.key, Content: reason})
}

// clientEffects turns interpreter side effects into protocol frames.
// Liveness gating happens in the session controller before these are called.
type clientEffects struct {
	client *Client
}

func (e *clientEffects) Navigate(href string) {
	e.client.enqueue(shared.Message{Type: shared.MessageTypeNavigate, Content: href})
}

func (e *clientEffects) OpenURL(url string, newTab bool) {
	e.client.enqueue(shared.Message{Type: shared.MessageTypeOpenURL, Content: url, NewTab: newTab})
}

func (e *clientEffects) PlayAudio(src string) {
	e.client.enqueue(shared.Message{Type: shared.MessageTypePlayAudio, Content: src, MediaKey: session.MediaKeyAudio})
}

func (e *clientEffects) ShowVideo(src string) {
	e.client.enqueue(shared.Message{Type: shared.MessageTypeShowVideo, Content: src, MediaKey: session.MediaKeyVideo})
}

func (e *clientEffects) ShowGallery(images []string) {
	e.client.enqueue(shared.Message{Type: shared.MessageTypeShowGallery, Images: images})
}

// clientIdentity tracks the connection's authentication state. The token from
// a successful login is validated locally to pick up the admin flag, then
// forwarded to the frontend for persistence.
type clientIdentity struct {
	mu       sync.RWMutex
	username string
	isAdmin  bool
	authed   bool
	client   *Client
}

func (id *clientIdentity) IsAuthed() bool {
	id.mu.RLock()
	defer id.mu.RUnlock()
	return id.authed
}

func (id *clientIdentity) IsAdmin() bool {
	id.mu.RLock()
	defer id.mu.RUnlock()
	return id.authed && id.isAdmin
}

func (id *clientIdentity) StoreToken(token string) {
	claims, err := auth.ValidateUserToken(token)
	if err != nil {
		logger.AuthWarn("rejecting self-issued token: %v", err)
		return
	}

	id.mu.Lock()
	id.username = claims.Username
	id.isAdmin = claims.IsAdmin
	id.authed = true
	id.mu.Unlock()

	id.client.enqueue(shared.Message{Type: shared.MessageTypeAuthToken, Content: token})
}

// Resume restores authentication state from a token presented at connection
// time (page reload with a persisted token).
func (id *clientIdentity) Resume(token string) {
	claims, err := auth.ValidateUserToken(token)
	if err != nil {
		logger.AuthWarn("resume token rejected: %v", err)
		return
	}
	id.mu.Lock()
	id.username = claims.Username
	id.isAdmin = claims.IsAdmin
	id.authed = true
	id.mu.Unlock()
	logger.AuthInfo("session resumed for %s", claims.Username)
}
