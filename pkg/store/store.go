// Package store persists the dynamic command list and the user accounts in a
// SQLite database. The terminal core consumes the command list as plain data;
// everything database-shaped stays behind this package.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/folioterm/folioterm/pkg/command"
	"github.com/folioterm/folioterm/pkg/logger"

	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"
)

// InitDB opens the SQLite database and verifies it is reachable.
func InitDB(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// CreateTables ensures all required tables exist.
func CreateTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS commands (
			name TEXT PRIMARY KEY,
			aliases TEXT DEFAULT '',
			description TEXT DEFAULT '',
			actions TEXT NOT NULL,
			requires_auth INTEGER DEFAULT 0,
			role TEXT DEFAULT 'user',
			show_in_help INTEGER DEFAULT 1,
			enabled INTEGER DEFAULT 1,
			rate_limit_per_min INTEGER DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS users (
			username TEXT PRIMARY KEY,
			password TEXT NOT NULL,
			is_admin INTEGER DEFAULT 0,
			is_active INTEGER DEFAULT 1,
			last_login INTEGER,
			created_at INTEGER NOT NULL
		)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}
	return nil
}

// CommandStore loads command definitions. Implements session.CommandSource.
type CommandStore struct {
	db *sql.DB
}

// NewCommandStore wraps an open database handle.
func NewCommandStore(db *sql.DB) *CommandStore {
	return &CommandStore{db: db}
}

// LoadCommands reads the full command list. A row whose actions column fails
// to parse is logged and skipped; only a failing query is returned as an
// error.
func (s *CommandStore) LoadCommands(ctx context.Context) ([]*command.Command, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, aliases, description, actions,
		       requires_auth, role, show_in_help, enabled, rate_limit_per_min
		FROM commands`)
	if err != nil {
		return nil, fmt.Errorf("querying commands: %w", err)
	}
	defer rows.Close()

	var commands []*command.Command
	for rows.Next() {
		var (
			name, aliases, description, actionsJSON, role string
			requiresAuth, showInHelp, enabled             bool
			rateLimit                                     int
		)
		if err := rows.Scan(&name, &aliases, &description, &actionsJSON,
			&requiresAuth, &role, &showInHelp, &enabled, &rateLimit); err != nil {
			return nil, fmt.Errorf("scanning command row: %w", err)
		}

		actions, err := command.ParseActions([]byte(actionsJSON))
		if err != nil {
			logger.Warn(logger.AreaDatabase, "skipping command %q: %v", name, err)
			continue
		}

		commands = append(commands, &command.Command{
			Name:            name,
			Aliases:         splitAliases(aliases),
			Description:     description,
			Actions:         actions,
			RequiresAuth:    requiresAuth,
			Role:            command.Role(role),
			ShowInHelp:      showInHelp,
			Enabled:         enabled,
			RateLimitPerMin: rateLimit,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating command rows: %w", err)
	}

	logger.Info(logger.AreaDatabase, "loaded %d command definitions", len(commands))
	return commands, nil
}

// splitAliases parses the comma-separated aliases column.
func splitAliases(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var aliases []string
	for _, alias := range strings.Split(raw, ",") {
		if alias = strings.TrimSpace(alias); alias != "" {
			aliases = append(aliases, alias)
		}
	}
	return aliases
}

// dummyHash is compared against when the user does not exist, keeping the
// timing of unknown-user and wrong-password rejections alike.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("folioterm-timing-pad"), bcrypt.DefaultCost)

// UserStore verifies credentials against the users table.
type UserStore struct {
	db *sql.DB
}

// NewUserStore wraps an open database handle.
func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

// Authenticate checks the username/password pair. Returns the admin flag on
// success and command.ErrInvalidCredentials for unknown users, inactive
// accounts, and wrong passwords alike.
func (s *UserStore) Authenticate(ctx context.Context, username, password string) (isAdmin bool, err error) {
	var (
		passwordHash string
		admin        bool
		active       bool
	)
	err = s.db.QueryRowContext(ctx,
		`SELECT password, is_admin, is_active FROM users WHERE username = ?`,
		username).Scan(&passwordHash, &admin, &active)
	if err == sql.ErrNoRows {
		// Burn a comparison so unknown users cost the same as wrong passwords.
		bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return false, command.ErrInvalidCredentials
	}
	if err != nil {
		return false, fmt.Errorf("querying user %s: %w", username, err)
	}
	if !active {
		return false, command.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(password)); err != nil {
		return false, command.ErrInvalidCredentials
	}

	if _, err := s.db.ExecContext(ctx,
		`UPDATE users SET last_login = ? WHERE username = ?`,
		time.Now().Unix(), username); err != nil {
		logger.Warn(logger.AreaDatabase, "updating last_login for %s: %v", username, err)
	}
	return admin, nil
}

// CreateUser inserts a user with a bcrypt-hashed password.
func (s *UserStore) CreateUser(ctx context.Context, username, password string, isAdmin bool) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO users (username, password, is_admin, created_at) VALUES (?, ?, ?, ?)`,
		username, string(hash), isAdmin, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("inserting user %s: %w", username, err)
	}
	return nil
}
