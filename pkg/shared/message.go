package shared

// MessageType definiert den Typ einer Nachricht für die WebSocket-Kommunikation.
type MessageType int

// Konstanten für MessageType
const (
	MessageTypeOutput    MessageType = 0 // Komplette Textausgabe der VM
	MessageTypeControls  MessageType = 1 // Stop/Continue Buttons aktivieren/deaktivieren
	MessageTypeVariables MessageType = 2 // Variablenliste nach dem Verlassen der Run-Loop
	MessageTypeSound     MessageType = 3 // Gespielter Sound-Eintrag
	MessageTypeSource    MessageType = 4 // Programmtext (nach LOAD, MERGE, RENUM)
	MessageTypeSession   MessageType = 5 // Session-ID Übermittlung
	MessageTypeError     MessageType = 6 // Fehlermeldung ohne VM-Bezug
	MessageTypeScroll    MessageType = 7 // Ausgabe ans Ende scrollen
	MessageTypeFiles     MessageType = 8 // Programme in der Bibliothek
)

// Control names used in MessageTypeControls.
const (
	ControlStop     = "stop"
	ControlContinue = "continue"
)

// Message repräsentiert eine Nachricht, die über WebSocket gesendet wird.
type Message struct {
	Type    MessageType `json:"type"`
	Content string      `json:"content,omitempty"`

	// Für SESSION
	SessionID string `json:"sessionId,omitempty"`

	// Für CONTROLS
	Control string `json:"control,omitempty"`
	Enabled *bool  `json:"enabled,omitempty"` // Pointer, um false von "nicht gesetzt" zu unterscheiden

	// Für VARIABLES und FILES
	Variables []string `json:"variables,omitempty"`
	Files     []string `json:"files,omitempty"`

	// Für SOUND: Kanal, Periode, Dauer usw.
	Params map[string]interface{} `json:"params,omitempty"`
}

// Request is what a client sends over the websocket.
type Request struct {
	Action  string `json:"action"`
	Content string `json:"content,omitempty"`
	Key     string `json:"key,omitempty"`
	Name    string `json:"name,omitempty"`
	Line    int    `json:"line,omitempty"` // RENUM start line
	Step    int    `json:"step,omitempty"`
}

// BoolPtr returns a pointer to b.
func BoolPtr(b bool) *bool {
	return &b
}
