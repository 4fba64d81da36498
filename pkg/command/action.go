package command

import (
	"encoding/json"
	"fmt"
)

// ActionKind tags one step of a command. The set is closed; dispatch in the
// interpreter matches exhaustively and rejects unknown tags.
type ActionKind string

const (
	ActionPrint    ActionKind = "print"
	ActionNavigate ActionKind = "navigate"
	ActionOpenURL  ActionKind = "openUrl"
	ActionAudio    ActionKind = "audio"
	ActionVideo    ActionKind = "video"
	ActionGallery  ActionKind = "gallery"
)

// Action is one declarative step of a command. Only the fields for its Kind
// are meaningful.
type Action struct {
	Kind   ActionKind `json:"type"`
	Text   string     `json:"text,omitempty"`   // print
	Href   string     `json:"href,omitempty"`   // navigate
	URL    string     `json:"url,omitempty"`    // openUrl
	NewTab bool       `json:"newTab,omitempty"` // openUrl
	Src    string     `json:"src,omitempty"`    // audio, video
	Images []string   `json:"images,omitempty"` // gallery
}

// validate checks that the action carries a known tag and its payload.
func (a Action) validate() error {
	switch a.Kind {
	case ActionPrint:
		return nil
	case ActionNavigate:
		if a.Href == "" {
			return fmt.Errorf("navigate action missing href")
		}
	case ActionOpenURL:
		if a.URL == "" {
			return fmt.Errorf("openUrl action missing url")
		}
	case ActionAudio, ActionVideo:
		if a.Src == "" {
			return fmt.Errorf("%s action missing src", a.Kind)
		}
	case ActionGallery:
		if len(a.Images) == 0 {
			return fmt.Errorf("gallery action missing images")
		}
	default:
		return fmt.Errorf("unknown action type %q", a.Kind)
	}
	return nil
}

// ParseActions decodes a command row's actions column. The column arrives
// either as a native JSON array or as a JSON string that itself contains the
// encoded array; both shapes are accepted.
func ParseActions(raw []byte) ([]Action, error) {
	data := raw
	// A leading quote means the array is double encoded.
	trimmed := firstNonSpace(raw)
	if trimmed == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return nil, fmt.Errorf("decoding actions string: %w", err)
		}
		data = []byte(inner)
	}

	var actions []Action
	if err := json.Unmarshal(data, &actions); err != nil {
		return nil, fmt.Errorf("decoding actions array: %w", err)
	}
	for i, action := range actions {
		if err := action.validate(); err != nil {
			return nil, fmt.Errorf("action %d: %w", i, err)
		}
	}
	return actions, nil
}

func firstNonSpace(data []byte) byte {
	for _, c := range data {
		switch c {
		case ' ', '\t', '\n', '\r':
			continue
		}
		return c
	}
	return 0
}
