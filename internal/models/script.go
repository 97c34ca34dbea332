// Package models defines the records exchanged with the VSS scripts API.
package models

import (
	"encoding/json"
	"time"
)

// Script is a named, persisted node graph. Content is the opaque element
// array produced by the graph codec.
type Script struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Content json.RawMessage `json:"content"`
}

// Envelope is the response wrapper used by every VSS endpoint.
type Envelope[T any] struct {
	Code      int    `json:"code"`
	Message   string `json:"message"`
	Data      T      `json:"data"`
	Timestamp string `json:"timestamp,omitempty"`
}

// RunReceipt acknowledges a script execution request.
type RunReceipt struct {
	ScriptID  string    `json:"script_id"`
	RunID     string    `json:"run_id"`
	StartedAt time.Time `json:"started_at"`
}

// DraftMetadata is a lightweight representation of a local draft file.
type DraftMetadata struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}
