package command

import "testing"

func TestParseActionsArray(t *testing.T) {
	raw := `[{"type":"print","text":"hi"},{"type":"navigate","href":"/x"}]`

	actions, err := ParseActions([]byte(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(actions) != 2 {
		t.Fatalf("expected 2 actions, got %d", len(actions))
	}
	if actions[0].Kind != ActionPrint || actions[0].Text != "hi" {
		t.Errorf("unexpected first action: %+v", actions[0])
	}
	if actions[1].Kind != ActionNavigate || actions[1].Href != "/x" {
		t.Errorf("unexpected second action: %+v", actions[1])
	}
}

// The actions column may arrive as a JSON string containing the encoded
// array; both shapes must decode identically.
func TestParseActionsDoubleEncoded(t *testing.T) {
	raw := `"[{\"type\":\"openUrl\",\"url\":\"https://example.com\",\"newTab\":true}]"`

	actions, err := ParseActions([]byte(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(actions) != 1 {
		t.Fatalf("expected 1 action, got %d", len(actions))
	}
	if actions[0].Kind != ActionOpenURL || actions[0].URL != "https://example.com" || !actions[0].NewTab {
		t.Errorf("unexpected action: %+v", actions[0])
	}
}

func TestParseActionsRejectsUnknownTag(t *testing.T) {
	raw := `[{"type":"teleport","href":"/x"}]`

	if _, err := ParseActions([]byte(raw)); err == nil {
		t.Error("expected an error for an unknown action tag")
	}
}

func TestParseActionsRejectsMissingPayload(t *testing.T) {
	cases := []string{
		`[{"type":"navigate"}]`,
		`[{"type":"audio"}]`,
		`[{"type":"gallery"}]`,
	}
	for _, raw := range cases {
		if _, err := ParseActions([]byte(raw)); err == nil {
			t.Errorf("expected an error for %s", raw)
		}
	}
}

func TestParseActionsRejectsGarbage(t *testing.T) {
	if _, err := ParseActions([]byte(`not json`)); err == nil {
		t.Error("expected an error for malformed input")
	}
	if _, err := ParseActions([]byte(`"still not an array"`)); err == nil {
		t.Error("expected an error for a double-encoded non-array")
	}
}
