package command

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/folioterm/folioterm/pkg/logger"
	"github.com/folioterm/folioterm/pkg/typewriter"
)

// loginTrigger starts the interactive login sub-session. It is checked before
// registry lookup, so a registered command of the same name can never run.
const loginTrigger = "blog"

// loginCancelKeywords abort the login sub-session. Matched exactly as
// entered, case-sensitive.
var loginCancelKeywords = map[string]bool{
	"quit": true,
	":q":   true,
	"stop": true,
}

// rateWindow is the fixed (not sliding) rate-limit window.
const rateWindow = time.Minute

// Output is the channel the interpreter reports through. Satisfied by
// *typewriter.Buffer.
type Output interface {
	Print(text string)
	TypeWrite(text string, interval time.Duration, newlineAfter bool) bool
	IsActive() bool
}

// ErrInvalidCredentials is returned by a CredentialVerifier when the
// username/password pair is rejected.
var ErrInvalidCredentials = errors.New("invalid credentials")

// CredentialVerifier checks a username/password pair against an external
// authority and returns a session token on success.
type CredentialVerifier interface {
	Verify(ctx context.Context, username, password string) (token string, err error)
}

// Callbacks are the side-effect hooks the interpreter dispatches actions
// through. The interpreter itself performs no navigation, media, or storage
// access. IsAuthed and IsAdmin must be non-nil; effect hooks may be nil, in
// which case the action is skipped (gallery falls back to a printed listing).
type Callbacks struct {
	IsAuthed    func() bool
	IsAdmin     func() bool
	Navigate    func(href string)
	OpenURL     func(url string, newTab bool)
	PlayAudio   func(src string)
	ShowVideo   func(src string)
	ShowGallery func(images []string)
	StoreToken  func(token string)
}

// Config carries the interpreter's tunables.
type Config struct {
	// TypeInterval paces typewritten output. Zero means instant.
	TypeInterval time.Duration
	// PostLoginRoute is navigated to after a successful login.
	PostLoginRoute string
	// Clock drives the rate-limit window. Nil means the system clock.
	Clock typewriter.Clock
}

type loginStep int

const (
	loginInactive loginStep = iota
	loginAwaitingUsername // initial step, also accepts "username password"
	loginAwaitingPassword
)

// loginSession is the transient multi-step login state machine. While active
// it consumes every input line except the cancel keywords.
type loginSession struct {
	step     loginStep
	username string
}

type rateBucket struct {
	windowStart time.Time
	count       int
}

// Interpreter resolves input lines against a registry and executes them.
// One interpreter per terminal session; Execute serializes itself, so a
// second submission queues behind the first.
type Interpreter struct {
	registry *Registry
	out      Output
	cb       Callbacks
	verifier CredentialVerifier

	typeInterval   time.Duration
	postLoginRoute string
	clock          typewriter.Clock

	execMu  sync.Mutex // held for the duration of one Execute
	buckets map[string]*rateBucket
	login   loginSession
}

// NewInterpreter wires an interpreter to its registry, output channel, and
// side-effect callbacks.
func NewInterpreter(registry *Registry, out Output, cb Callbacks, verifier CredentialVerifier, cfg Config) *Interpreter {
	clock := cfg.Clock
	if clock == nil {
		clock = typewriter.SystemClock()
	}
	route := cfg.PostLoginRoute
	if route == "" {
		route = "/blog"
	}
	interp := &Interpreter{
		registry:       registry,
		out:            out,
		cb:             cb,
		verifier:       verifier,
		typeInterval:   cfg.TypeInterval,
		postLoginRoute: route,
		clock:          clock,
		buckets:        make(map[string]*rateBucket),
	}
	return interp
}

// LoginActive reports whether the login sub-session is consuming input.
func (i *Interpreter) LoginActive() bool {
	i.execMu.Lock()
	defer i.execMu.Unlock()
	return i.login.step != loginInactive
}

// Execute interprets one input line. Policy rejections (unknown, disabled,
// unauthenticated, unauthorized, rate-limited) are reported on the output
// channel and never returned as errors.
func (i *Interpreter) Execute(ctx context.Context, raw string) {
	i.execMu.Lock()
	defer i.execMu.Unlock()

	input := strings.TrimSpace(raw)
	if input == "" {
		return
	}

	// An active login sub-session consumes everything.
	if i.login.step != loginInactive {
		i.handleLoginInput(ctx, input)
		return
	}

	// Reserved trigger, ahead of registry lookup. A command literally named
	// "blog" is shadowed here on purpose; see ReservedKeywords.
	if strings.EqualFold(input, loginTrigger) {
		i.beginLogin()
		return
	}

	cmd, ok := i.registry.Resolve(input)
	if !ok {
		i.say(fmt.Sprintf("command not found: %s", input))
		return
	}
	if !cmd.Enabled {
		i.say(fmt.Sprintf("%s is currently disabled.", cmd.Name))
		return
	}
	if cmd.RequiresAuth && !i.isAuthed() {
		i.say("You must log in to use this command. Type 'blog' to log in.")
		return
	}
	if cmd.Role == RoleAdmin && !i.isAdmin() {
		i.say("This command requires admin privileges.")
		return
	}
	if !i.allow(cmd) {
		i.say(fmt.Sprintf("Rate limit exceeded for %s. Try again in a minute.", cmd.Name))
		return
	}

	logger.Debug(logger.AreaInterpreter, "executing %s (%d actions)", cmd.Name, len(cmd.Actions))
	for idx, action := range cmd.Actions {
		i.runAction(cmd.Name, idx, action)
	}
}

// runAction dispatches one action, locally guarded so a misbehaving callback
// cannot abort the remaining actions of the same command.
func (i *Interpreter) runAction(cmdName string, idx int, action Action) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error(logger.AreaInterpreter, "action %d of %s panicked: %v", idx, cmdName, rec)
			i.say(fmt.Sprintf("error while executing %s.", cmdName))
		}
	}()

	switch action.Kind {
	case ActionPrint:
		i.say(action.Text)
	case ActionNavigate:
		if i.cb.Navigate != nil {
			i.cb.Navigate(action.Href)
		}
	case ActionOpenURL:
		if i.cb.OpenURL != nil {
			i.cb.OpenURL(action.URL, action.NewTab)
		}
	case ActionAudio:
		if i.cb.PlayAudio != nil {
			i.cb.PlayAudio(action.Src)
		}
	case ActionVideo:
		if i.cb.ShowVideo != nil {
			i.cb.ShowVideo(action.Src)
		}
	case ActionGallery:
		if i.cb.ShowGallery != nil {
			i.cb.ShowGallery(action.Images)
		} else {
			for n, img := range action.Images {
				i.say(fmt.Sprintf("[%d] %s", n+1, img))
			}
		}
	default:
		logger.Warn(logger.AreaInterpreter, "command %s carries unknown action %q", cmdName, action.Kind)
		i.say(fmt.Sprintf("error while executing %s.", cmdName))
	}
}

// beginLogin opens the login sub-session and prompts for credentials.
func (i *Interpreter) beginLogin() {
	i.login = loginSession{step: loginAwaitingUsername}
	i.say("Blog login. Enter your username, or 'username password' on one line.")
	i.say("Type ':q' to cancel.")
}

// handleLoginInput advances the login state machine by one input line.
func (i *Interpreter) handleLoginInput(ctx context.Context, input string) {
	if loginCancelKeywords[input] {
		i.login = loginSession{}
		i.say("Login cancelled.")
		return
	}

	switch i.login.step {
	case loginAwaitingUsername:
		// A single line containing a space is a one-shot credential entry.
		if idx := strings.Index(input, " "); idx >= 0 {
			i.submitCredentials(ctx, input[:idx], input[idx+1:])
			return
		}
		i.login.username = input
		i.login.step = loginAwaitingPassword
		i.say("Password:")
	case loginAwaitingPassword:
		i.submitCredentials(ctx, i.login.username, input)
	default:
		i.login = loginSession{}
	}
}

// submitCredentials hands the collected pair to the verifier and reports the
// outcome. The sub-session is destroyed on both paths. The verify call is a
// network round trip; if the screen was cleared while it was in flight the
// result is discarded by the liveness check.
func (i *Interpreter) submitCredentials(ctx context.Context, username, password string) {
	i.login = loginSession{}

	if i.verifier == nil {
		i.say("Login is not available.")
		return
	}

	token, err := i.verifier.Verify(ctx, username, password)
	if !i.out.IsActive() {
		return
	}
	if err != nil {
		if !errors.Is(err, ErrInvalidCredentials) {
			logger.AuthError("credential verification failed for %s: %v", username, err)
		}
		i.say("Invalid credentials.")
		return
	}

	logger.AuthInfo("login succeeded for %s", username)
	if i.cb.StoreToken != nil {
		i.cb.StoreToken(token)
	}
	i.say(fmt.Sprintf("Welcome back, %s.", username))
	if i.cb.Navigate != nil {
		i.cb.Navigate(i.postLoginRoute)
	}
}

// allow applies the per-command fixed-window rate limit. The bucket is
// created lazily and resets once the window has elapsed, restarting the
// counter at 1 for the triggering call.
func (i *Interpreter) allow(cmd *Command) bool {
	if cmd.RateLimitPerMin <= 0 {
		return true
	}
	now := i.clock.Now()
	bucket := i.buckets[cmd.Name]
	if bucket == nil || now.Sub(bucket.windowStart) >= rateWindow {
		i.buckets[cmd.Name] = &rateBucket{windowStart: now, count: 1}
		return true
	}
	if bucket.count >= cmd.RateLimitPerMin {
		return false
	}
	bucket.count++
	return true
}

func (i *Interpreter) isAuthed() bool {
	return i.cb.IsAuthed != nil && i.cb.IsAuthed()
}

func (i *Interpreter) isAdmin() bool {
	return i.cb.IsAdmin != nil && i.cb.IsAdmin()
}

// say writes user-facing feedback through the typewriter, keeping ordering
// with surrounding typed output. Dropped outright when the command run is no
// longer live: a cleared command's later messages must not land on the wiped
// screen. The input echo bypasses this on purpose — it runs before the
// liveness baseline is stamped.
func (i *Interpreter) say(text string) {
	if !i.out.IsActive() {
		return
	}
	i.out.TypeWrite(text, i.typeInterval, true)
}
