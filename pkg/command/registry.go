// Package command implements the terminal's command registry and the
// interpreter that resolves input lines, applies auth/role/rate-limit policy,
// and executes declarative action lists through injected callbacks.
package command

import (
	"strings"
	"sync"

	"github.com/folioterm/folioterm/pkg/logger"
)

// Role gates command execution on the caller's privilege.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Command is the unit of interpretable behavior: a named, alias-resolvable,
// policy-gated, ordered list of actions.
type Command struct {
	Name            string
	Aliases         []string
	Description     string
	Actions         []Action
	RequiresAuth    bool
	Role            Role
	ShowInHelp      bool
	Enabled         bool
	RateLimitPerMin int // 0 means unlimited
}

// ReservedKeywords are input words intercepted before registry lookup: clear
// and cls by the session controller, blog by the interpreter's login trigger.
// A registered command with one of these names is shadowed; registration
// warns but is not rejected, matching the historical behavior.
var ReservedKeywords = map[string]bool{
	"clear": true,
	"cls":   true,
	"blog":  true,
}

// Registry holds the known commands. The lookup table carries one entry per
// name and per alias, all pointing at the same *Command; List returns each
// distinct command once.
type Registry struct {
	mu      sync.RWMutex
	lookup  map[string]*Command
	ordered []*Command
}

// NewRegistry returns an empty registry. Construct one per terminal session;
// registries are never shared between sessions.
func NewRegistry() *Registry {
	return &Registry{lookup: make(map[string]*Command)}
}

// Register normalizes and inserts a command: the name and every alias are
// lower-cased and become lookup keys for the same value. A later registration
// under an existing key replaces that key only.
func (r *Registry) Register(cmd *Command) {
	if cmd == nil || strings.TrimSpace(cmd.Name) == "" {
		return
	}
	cmd.Name = strings.ToLower(strings.TrimSpace(cmd.Name))
	if cmd.Role == "" {
		cmd.Role = RoleUser
	}
	for i, alias := range cmd.Aliases {
		cmd.Aliases[i] = strings.ToLower(strings.TrimSpace(alias))
	}

	if ReservedKeywords[cmd.Name] {
		logger.Warn(logger.AreaInterpreter,
			"command %q collides with a reserved keyword and will be shadowed", cmd.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.lookup[cmd.Name] = cmd
	for _, alias := range cmd.Aliases {
		if alias != "" {
			r.lookup[alias] = cmd
		}
	}
	r.ordered = append(r.ordered, cmd)
}

// Resolve finds a command by name or alias, case-insensitive.
func (r *Registry) Resolve(name string) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.lookup[strings.ToLower(name)]
	return cmd, ok
}

// List returns the distinct commands in registration order, deduplicated
// across aliases.
func (r *Registry) List() []*Command {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[*Command]bool, len(r.ordered))
	var commands []*Command
	for _, cmd := range r.ordered {
		if seen[cmd] {
			continue
		}
		seen[cmd] = true
		commands = append(commands, cmd)
	}
	return commands
}

// ListVisible returns the distinct, enabled commands flagged for the help
// listing.
func (r *Registry) ListVisible() []*Command {
	var visible []*Command
	for _, cmd := range r.List() {
		if cmd.ShowInHelp && cmd.Enabled {
			visible = append(visible, cmd)
		}
	}
	return visible
}

// Len reports the number of distinct registered commands.
func (r *Registry) Len() int {
	return len(r.List())
}

// ReplaceAll swaps the registry contents for a freshly loaded command set.
func (r *Registry) ReplaceAll(commands []*Command) {
	r.mu.Lock()
	r.lookup = make(map[string]*Command)
	r.ordered = nil
	r.mu.Unlock()

	for _, cmd := range commands {
		r.Register(cmd)
	}
}
