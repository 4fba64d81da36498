// Package session implements the per-terminal orchestration layer: input
// history, reserved screen-clear keywords, liveness stamping, and the wiring
// of interpreter actions to concrete transport effects and the media
// exclusivity registry.
package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/folioterm/folioterm/pkg/command"
	"github.com/folioterm/folioterm/pkg/logger"
	"github.com/folioterm/folioterm/pkg/media"
	"github.com/folioterm/folioterm/pkg/typewriter"
)

// Well-known media registry keys for the terminal's own playback widgets.
// Frontend widgets register under these keys when they mount.
const (
	MediaKeyAudio = "audio"
	MediaKeyVideo = "video"
)

// Effects is the transport-facing side of the controller: each call becomes
// a protocol frame for the frontend.
type Effects interface {
	Navigate(href string)
	OpenURL(url string, newTab bool)
	PlayAudio(src string)
	ShowVideo(src string)
	ShowGallery(images []string)
}

// Identity tracks the caller's authentication state and receives the token
// issued by a successful login.
type Identity interface {
	IsAuthed() bool
	IsAdmin() bool
	StoreToken(token string)
}

// CommandSource supplies the dynamic command list, fetched once at session
// start (and on demand for reloads).
type CommandSource interface {
	LoadCommands(ctx context.Context) ([]*command.Command, error)
}

// Config carries the controller's tunables.
type Config struct {
	// TypeInterval paces typewritten output. Zero means instant.
	TypeInterval time.Duration
	// PromptSymbol prefixes the echoed input line.
	PromptSymbol string
	// PostLoginRoute is handed to the interpreter.
	PostLoginRoute string
	// MaxHistory bounds the recall history. Zero means 200.
	MaxHistory int
	// Clock drives pacing and the rate-limit window. Nil means system clock.
	Clock typewriter.Clock
	// StaticCommands are registered ahead of (and survive reloads of) the
	// dynamically loaded list.
	StaticCommands []*command.Command
}

// Controller ties one terminal session together. Submissions are serialized:
// a second Submit queues behind the one in flight so epoch stamps never
// interleave.
type Controller struct {
	buffer   *typewriter.Buffer
	registry *command.Registry
	interp   *command.Interpreter
	media    *media.Registry
	effects  Effects
	identity Identity

	typeInterval time.Duration
	promptSymbol string
	statics      []*command.Command

	submitMu sync.Mutex

	histMu     sync.Mutex
	history    []string
	cursor     int
	maxHistory int
}

// NewController builds a fully wired controller for one terminal session.
// Every collaborator is per-session; nothing is shared between terminals.
func NewController(buffer *typewriter.Buffer, mediaReg *media.Registry, effects Effects, identity Identity, verifier command.CredentialVerifier, cfg Config) *Controller {
	maxHistory := cfg.MaxHistory
	if maxHistory <= 0 {
		maxHistory = 200
	}

	c := &Controller{
		buffer:       buffer,
		registry:     command.NewRegistry(),
		media:        mediaReg,
		effects:      effects,
		identity:     identity,
		typeInterval: cfg.TypeInterval,
		promptSymbol: cfg.PromptSymbol,
		statics:      cfg.StaticCommands,
		maxHistory:   maxHistory,
	}

	c.interp = command.NewInterpreter(c.registry, buffer, c.callbacks(), verifier, command.Config{
		TypeInterval:   cfg.TypeInterval,
		PostLoginRoute: cfg.PostLoginRoute,
		Clock:          cfg.Clock,
	})

	for _, cmd := range c.statics {
		c.registry.Register(cmd)
	}
	return c
}

// callbacks builds the six side-effect hooks for the interpreter. Navigation
// and URL opening are gated on liveness; audio and video additionally claim
// exclusivity in the media registry before the widget starts.
func (c *Controller) callbacks() command.Callbacks {
	return command.Callbacks{
		IsAuthed: func() bool { return c.identity != nil && c.identity.IsAuthed() },
		IsAdmin:  func() bool { return c.identity != nil && c.identity.IsAdmin() },
		Navigate: func(href string) {
			if !c.buffer.IsActive() || c.effects == nil {
				return
			}
			c.effects.Navigate(href)
		},
		OpenURL: func(url string, newTab bool) {
			if !c.buffer.IsActive() || c.effects == nil {
				return
			}
			c.effects.OpenURL(url, newTab)
		},
		PlayAudio: func(src string) {
			if !c.buffer.IsActive() || c.effects == nil {
				return
			}
			c.media.PlayExclusive(MediaKeyAudio)
			c.effects.PlayAudio(src)
		},
		ShowVideo: func(src string) {
			if !c.buffer.IsActive() || c.effects == nil {
				return
			}
			c.media.PlayExclusive(MediaKeyVideo)
			c.effects.ShowVideo(src)
		},
		ShowGallery: func(images []string) {
			if !c.buffer.IsActive() || c.effects == nil {
				return
			}
			c.effects.ShowGallery(images)
		},
		StoreToken: func(token string) {
			if c.identity != nil {
				c.identity.StoreToken(token)
			}
		},
	}
}

// Submit processes one submitted input line end to end.
func (c *Controller) Submit(ctx context.Context, line string) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return
	}

	// Screen-clear keywords are intercepted before the interpreter ever sees
	// the input: stop all media, wipe the buffer, done. Deliberately outside
	// the submission queue so a clear can interrupt a command that is still
	// typing; the epoch bump makes the interrupted command's remaining output
	// and side effects dead.
	lower := strings.ToLower(trimmed)
	if lower == "clear" || lower == "cls" {
		logger.Debug(logger.AreaSession, "screen clear requested")
		c.media.StopAll()
		c.buffer.Clear()
		return
	}

	c.submitMu.Lock()
	defer c.submitMu.Unlock()

	c.appendHistory(trimmed)

	// Echo the input, then stamp the liveness baseline for this command run.
	c.buffer.TypeWrite(c.promptSymbol+trimmed, 0, true)
	c.buffer.BeginCommandSession()

	// Listing fallback: only when no registered command claims "help", so a
	// data-supplied help command keeps precedence.
	if lower == "help" && !c.interp.LoginActive() {
		if _, ok := c.registry.Resolve("help"); !ok {
			c.printHelp()
			return
		}
	}

	c.interp.Execute(ctx, trimmed)
}

// printHelp types the listing of visible commands.
func (c *Controller) printHelp() {
	visible := c.registry.ListVisible()
	if len(visible) == 0 {
		c.buffer.TypeWrite("no commands available.", c.typeInterval, true)
		return
	}
	for _, cmd := range visible {
		line := cmd.Name
		if cmd.Description != "" {
			line = fmt.Sprintf("%-12s %s", cmd.Name, cmd.Description)
		}
		if !c.buffer.TypeWrite(line, c.typeInterval, true) {
			return
		}
	}
}

// Greet types the session welcome text under a fresh command session.
func (c *Controller) Greet(text string) {
	if text == "" {
		return
	}
	c.submitMu.Lock()
	defer c.submitMu.Unlock()
	c.buffer.BeginCommandSession()
	c.buffer.TypeWrite(text, c.typeInterval, true)
}

// LoadCommands fetches the dynamic command list and rebuilds the registry
// (statics first, then the fetched set). A failed or empty fetch never
// clobbers a previously built non-trivial registry; with nothing to fall
// back on, the failure is reported to the user.
func (c *Controller) LoadCommands(ctx context.Context, source CommandSource) {
	commands, err := source.LoadCommands(ctx)
	if err != nil || len(commands) == 0 {
		if c.registry.Len() > len(c.statics) {
			logger.Warn(logger.AreaSession, "command reload failed, keeping previous registry: %v", err)
			return
		}
		logger.Error(logger.AreaSession, "command load failed: %v", err)
		c.buffer.BeginCommandSession()
		c.buffer.TypeWrite("failed to load commands.", c.typeInterval, true)
		return
	}

	merged := make([]*command.Command, 0, len(c.statics)+len(commands))
	merged = append(merged, c.statics...)
	merged = append(merged, commands...)
	c.registry.ReplaceAll(merged)
	logger.Info(logger.AreaSession, "loaded %d commands (%d static)", len(commands), len(c.statics))
}

// appendHistory records a submitted line and resets the recall cursor.
func (c *Controller) appendHistory(line string) {
	c.histMu.Lock()
	defer c.histMu.Unlock()
	c.history = append(c.history, line)
	if len(c.history) > c.maxHistory {
		c.history = c.history[len(c.history)-c.maxHistory:]
	}
	c.cursor = len(c.history)
}

// HistoryPrev steps the recall cursor back and returns that entry. Returns
// the oldest entry repeatedly once the cursor hits the top.
func (c *Controller) HistoryPrev() string {
	c.histMu.Lock()
	defer c.histMu.Unlock()
	if len(c.history) == 0 {
		return ""
	}
	if c.cursor > 0 {
		c.cursor--
	}
	return c.history[c.cursor]
}

// HistoryNext steps the recall cursor forward. Past the newest entry it
// returns an empty string (a cleared input line).
func (c *Controller) HistoryNext() string {
	c.histMu.Lock()
	defer c.histMu.Unlock()
	if c.cursor < len(c.history) {
		c.cursor++
	}
	if c.cursor == len(c.history) {
		return ""
	}
	return c.history[c.cursor]
}

// History returns a snapshot of the submitted-line history.
func (c *Controller) History() []string {
	c.histMu.Lock()
	defer c.histMu.Unlock()
	snapshot := make([]string, len(c.history))
	copy(snapshot, c.history)
	return snapshot
}

// Registry exposes the command registry, mainly for tests and the transport
// layer's status endpoints.
func (c *Controller) Registry() *command.Registry {
	return c.registry
}

// Buffer exposes the output buffer.
func (c *Controller) Buffer() *typewriter.Buffer {
	return c.buffer
}

// Media exposes the session's media registry.
func (c *Controller) Media() *media.Registry {
	return c.media
}

// LoginActive reports whether the interpreter's login sub-session is
// consuming input, so the transport can mask the input line.
func (c *Controller) LoginActive() bool {
	return c.interp.LoginActive()
}
