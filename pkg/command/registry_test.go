package command

import "testing"

func testCommand(name string, aliases ...string) *Command {
	return &Command{
		Name:       name,
		Aliases:    aliases,
		Enabled:    true,
		ShowInHelp: true,
	}
}

// Every alias and the primary name must resolve to the very same value.
func TestAliasIdentity(t *testing.T) {
	r := NewRegistry()
	cmd := testCommand("Projects", "work", "PORTFOLIO")
	r.Register(cmd)

	for _, key := range []string{"projects", "PROJECTS", "work", "portfolio"} {
		got, ok := r.Resolve(key)
		if !ok {
			t.Fatalf("expected %q to resolve", key)
		}
		if got != cmd {
			t.Errorf("%q resolved to a different value", key)
		}
	}
}

// List must return each distinct command once, regardless of alias count.
func TestListDedupesAliases(t *testing.T) {
	r := NewRegistry()
	r.Register(testCommand("about", "whoami", "bio"))
	r.Register(testCommand("github", "gh"))

	list := r.List()
	if len(list) != 2 {
		t.Fatalf("expected 2 distinct commands, got %d", len(list))
	}
	if list[0].Name != "about" || list[1].Name != "github" {
		t.Errorf("expected registration order, got %v, %v", list[0].Name, list[1].Name)
	}
}

func TestListVisibleFiltersHiddenAndDisabled(t *testing.T) {
	r := NewRegistry()
	r.Register(testCommand("shown"))
	hidden := testCommand("hidden")
	hidden.ShowInHelp = false
	r.Register(hidden)
	disabled := testCommand("disabled")
	disabled.Enabled = false
	r.Register(disabled)

	visible := r.ListVisible()
	if len(visible) != 1 || visible[0].Name != "shown" {
		t.Errorf("expected only the shown command, got %d entries", len(visible))
	}
}

func TestRegisterNormalizes(t *testing.T) {
	r := NewRegistry()
	cmd := &Command{Name: "  MiXeD  ", Aliases: []string{" A1 "}, Enabled: true}
	r.Register(cmd)

	if cmd.Name != "mixed" {
		t.Errorf("name should be lower-cased and trimmed, got %q", cmd.Name)
	}
	if cmd.Role != RoleUser {
		t.Errorf("empty role should default to user, got %q", cmd.Role)
	}
	if _, ok := r.Resolve("a1"); !ok {
		t.Error("trimmed alias should resolve")
	}
}

func TestReplaceAllRebuildsLookup(t *testing.T) {
	r := NewRegistry()
	r.Register(testCommand("old", "legacy"))

	r.ReplaceAll([]*Command{testCommand("new")})

	if _, ok := r.Resolve("old"); ok {
		t.Error("replaced command should no longer resolve")
	}
	if _, ok := r.Resolve("legacy"); ok {
		t.Error("replaced alias should no longer resolve")
	}
	if _, ok := r.Resolve("new"); !ok {
		t.Error("new command should resolve")
	}
	if r.Len() != 1 {
		t.Errorf("expected 1 command after replace, got %d", r.Len())
	}
}
