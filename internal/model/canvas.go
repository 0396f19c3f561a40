package model

import (
	"encoding/json"
	"time"
)

// Element is one drawable item on a canvas. The hub treats contents as
// opaque beyond "id" and "type"; presentation data stays nested as-is.
type Element map[string]any

// ID returns the element's string identifier, or "" if absent.
func (e Element) ID() string {
	if id, ok := e["id"].(string); ok {
		return id
	}
	return ""
}

// Kind returns the element's type tag, or "" if absent.
func (e Element) Kind() string {
	if t, ok := e["type"].(string); ok {
		return t
	}
	return ""
}

// Merge applies patch fields onto the element. The element id is never
// overwritten by a patch.
func (e Element) Merge(patch map[string]any) {
	for k, v := range patch {
		if k == "id" {
			continue
		}
		e[k] = v
	}
}

// Clone returns a shallow copy of the element.
func (e Element) Clone() Element {
	out := make(Element, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

// CanvasDocument is the in-memory form of a whiteboard's live state.
type CanvasDocument struct {
	WhiteboardID string    `json:"whiteboardId"`
	OwnerID      int64     `json:"ownerId"`
	Elements     []Element `json:"elements"`
	Version      int       `json:"version"`
	Background   string    `json:"background"`
	RestoredFrom *int      `json:"restoredFrom,omitempty"`
	LastModified time.Time `json:"lastModified"`
}

// CloneElements deep-copies the element slice one level down, enough to keep
// snapshot rows isolated from later in-place merges.
func (d *CanvasDocument) CloneElements() []Element {
	out := make([]Element, len(d.Elements))
	for i, el := range d.Elements {
		out[i] = el.Clone()
	}
	return out
}

// CanvasSnapshot is an immutable numbered copy of a canvas document.
type CanvasSnapshot struct {
	WhiteboardID  string    `json:"whiteboardId"`
	VersionNumber int       `json:"versionNumber"`
	Elements      []Element `json:"elements"`
	Background    string    `json:"background"`
	CreatedBy     int64     `json:"createdBy"`
	CreatedAt     time.Time `json:"createdAt"`
}

// EncodeElements serializes an element sequence for a jsonb column.
func EncodeElements(elements []Element) (string, error) {
	if elements == nil {
		elements = []Element{}
	}
	raw, err := json.Marshal(elements)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// DecodeElements parses a jsonb column back into an element sequence.
func DecodeElements(raw string) ([]Element, error) {
	if raw == "" {
		return []Element{}, nil
	}
	var elements []Element
	if err := json.Unmarshal([]byte(raw), &elements); err != nil {
		return nil, err
	}
	if elements == nil {
		elements = []Element{}
	}
	return elements, nil
}
