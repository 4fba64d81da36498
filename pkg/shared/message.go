package shared

// MessageType identifies a websocket frame for the browser frontend.
type MessageType int

// Frame types, matched against the RESPONSE_TYPE_MAP in the frontend console
// script. The numeric values are part of the wire contract.
const (
	MessageTypeText        MessageType = 0  // text output, one complete line
	MessageTypeChar        MessageType = 1  // single revealed character (typewriter)
	MessageTypeNewline     MessageType = 2  // open a fresh output line
	MessageTypeClear       MessageType = 3  // wipe the terminal screen
	MessageTypePrompt      MessageType = 4  // prompt symbol / input state change
	MessageTypeNavigate    MessageType = 5  // client-side route change
	MessageTypeOpenURL     MessageType = 6  // open an external URL
	MessageTypePlayAudio   MessageType = 7  // start audio playback
	MessageTypeShowVideo   MessageType = 8  // show the video widget
	MessageTypeShowGallery MessageType = 9  // show the image gallery
	MessageTypeMediaPause  MessageType = 10 // pause a registered media widget
	MessageTypeSession     MessageType = 11 // session ID handover
	MessageTypeAuthToken   MessageType = 12 // JWT after a successful login
	MessageTypeInputCtl    MessageType = 13 // enable/disable or mask the input line
	MessageTypeInputLine   MessageType = 14 // replace the input line (history recall)
	MessageTypeMediaRate   MessageType = 15 // reset a media widget's playback rate
	MessageTypeMediaNotice MessageType = 16 // manager notification for a media widget
)

// Message is one frame sent to (or received from) the frontend. Field names
// mirror the property accesses in the frontend console script.
type Message struct {
	Type    MessageType `json:"type"`
	Content string      `json:"content,omitempty"`

	// For MessageTypeSession.
	SessionID string `json:"sessionId,omitempty"`

	// For MessageTypeOpenURL.
	NewTab bool `json:"newTab,omitempty"`

	// For MessageTypePlayAudio / MessageTypeShowVideo / MessageTypeMediaPause:
	// the media widget key in the exclusivity registry.
	MediaKey string `json:"mediaKey,omitempty"`

	// For MessageTypeShowGallery.
	Images []string `json:"images,omitempty"`

	// For MessageTypePrompt.
	PromptSymbol string `json:"promptSymbol,omitempty"`

	// For MessageTypeInputCtl. Pointer so "not set" and false stay distinct.
	InputEnabled *bool `json:"inputEnabled,omitempty"`
	MaskInput    bool  `json:"maskInput,omitempty"`
}

// TextMessage builds a plain full-line text frame.
func TextMessage(content string) Message {
	return Message{Type: MessageTypeText, Content: content}
}

// ClientMessage is one frame received from the frontend.
type ClientMessage struct {
	Type    string `json:"type"` // "input", "register-media", "unregister-media", "history-prev", "history-next"
	Content string `json:"content,omitempty"`

	// For media registration frames.
	MediaKey string `json:"mediaKey,omitempty"`
}
