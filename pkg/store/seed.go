package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/folioterm/folioterm/pkg/logger"
)

// seedCommand mirrors one row of the commands table.
type seedCommand struct {
	name, aliases, description, actions string
	requiresAuth                        bool
	role                                string
	showInHelp, enabled                 bool
	rateLimitPerMin                     int
}

var demoCommands = []seedCommand{
	{
		name:        "about",
		aliases:     "whoami,bio",
		description: "who runs this site",
		actions:     `[{"type":"print","text":"Hi, I build things for the web.\nThis terminal is the front door to my portfolio."}]`,
		role:        "user", showInHelp: true, enabled: true,
	},
	{
		name:        "projects",
		aliases:     "work",
		description: "browse my projects",
		actions:     `[{"type":"print","text":"Opening the projects page..."},{"type":"navigate","href":"/projects"}]`,
		role:        "user", showInHelp: true, enabled: true,
	},
	{
		name:        "github",
		aliases:     "gh",
		description: "my code on GitHub",
		actions:     `[{"type":"openUrl","url":"https://github.com","newTab":true}]`,
		role:        "user", showInHelp: true, enabled: true,
	},
	{
		name:        "music",
		description: "play the site soundtrack",
		actions:     `[{"type":"print","text":"Now playing."},{"type":"audio","src":"/media/theme.mp3"}]`,
		role:        "user", showInHelp: true, enabled: true, rateLimitPerMin: 6,
	},
	{
		name:        "showreel",
		aliases:     "reel",
		description: "watch the showreel",
		actions:     `[{"type":"video","src":"/media/showreel.mp4"}]`,
		role:        "user", showInHelp: true, enabled: true, rateLimitPerMin: 6,
	},
	{
		name:        "photos",
		aliases:     "gallery",
		description: "photo gallery",
		actions:     `[{"type":"gallery","images":["/media/01.jpg","/media/02.jpg","/media/03.jpg"]}]`,
		role:        "user", showInHelp: true, enabled: true,
	},
	{
		name:         "drafts",
		description:  "unpublished blog drafts",
		actions:      `[{"type":"navigate","href":"/admin/drafts"}]`,
		requiresAuth: true,
		role:         "admin", showInHelp: false, enabled: true,
	},
}

// SeedDemoCommands fills an empty commands table with the demo portfolio
// command set. Existing rows are never touched.
func SeedDemoCommands(ctx context.Context, db *sql.DB) error {
	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM commands`).Scan(&count); err != nil {
		return fmt.Errorf("counting commands: %w", err)
	}
	if count > 0 {
		return nil
	}

	for _, cmd := range demoCommands {
		_, err := db.ExecContext(ctx, `
			INSERT INTO commands
				(name, aliases, description, actions, requires_auth, role,
				 show_in_help, enabled, rate_limit_per_min)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			cmd.name, cmd.aliases, cmd.description, cmd.actions,
			cmd.requiresAuth, cmd.role, cmd.showInHelp, cmd.enabled, cmd.rateLimitPerMin)
		if err != nil {
			return fmt.Errorf("seeding command %s: %w", cmd.name, err)
		}
	}
	logger.Info(logger.AreaDatabase, "seeded %d demo commands", len(demoCommands))
	return nil
}
