package api

// Wire messages exchanged with viewers. All are JSON text frames with a
// "type" discriminator.

// inboundMessage is the union of everything a viewer may send. Unknown types
// and unparseable frames are dropped without closing the connection.
type inboundMessage struct {
	Type   string  `json:"type"`
	Action string  `json:"action,omitempty"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Button string  `json:"button,omitempty"`
	Key    string  `json:"key,omitempty"`
	DeltaX float64 `json:"deltaX"`
	DeltaY float64 `json:"deltaY"`
	ID     string  `json:"id,omitempty"`
}

// roomMessage tells a viewer the code of the room it was placed in. Sent only
// when the viewer connected without one.
type roomMessage struct {
	Type string `json:"type"`
	Room string `json:"room"`
}

type statusMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// readyMessage signals that the viewer may start rendering. Sent once, after
// the first successful capture.
type readyMessage struct {
	Type string `json:"type"`
}

// screenshotMessage carries one base64-encoded JPEG frame.
type screenshotMessage struct {
	Type  string `json:"type"`
	Data  string `json:"data"`
	Frame int64  `json:"frame"`
}

// cursorMessage relays a peer's cursor position to the other viewers of the
// same room.
type cursorMessage struct {
	Type string  `json:"type"`
	ID   string  `json:"id"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}
