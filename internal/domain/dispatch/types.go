package dispatch

import (
	"context"
	"time"
)

// Intent classifies what a natural-language command asks for.
type Intent string

const (
	IntentGeocode       Intent = "geocode"
	IntentDeviceControl Intent = "device_control"
	IntentAnswer        Intent = "answer"
	IntentUnknown       Intent = "unknown"
)

// Command is one inbound natural-language request.
type Command struct {
	ID         string
	SessionID  string
	Text       string
	ReceivedAt time.Time
}

// IntentResult is the structured interpretation produced by the inference
// collaborator.
type IntentResult struct {
	Intent   Intent `json:"intent"`
	Query    string `json:"query,omitempty"`
	DeviceID string `json:"device_id,omitempty"`
	Action   string `json:"action,omitempty"`
	Reply    string `json:"reply,omitempty"`
}

// Location is a resolved place from the geocoding collaborator.
type Location struct {
	Query       string  `json:"query"`
	DisplayName string  `json:"display_name"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
}

// DeviceCommand is an instruction published to the device-control broker.
type DeviceCommand struct {
	CommandID string            `json:"command_id"`
	DeviceID  string            `json:"device_id"`
	Action    string            `json:"action"`
	Arguments map[string]string `json:"arguments,omitempty"`
	IssuedAt  time.Time         `json:"issued_at"`
}

// UIAction is an immutable instruction for the client UI, shaped once per
// dispatch and serialized as-is.
type UIAction struct {
	Kind    string         `json:"kind"`
	Title   string         `json:"title,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Result is the value object returned to the web layer for one command.
type Result struct {
	CommandID   string     `json:"command_id"`
	Intent      Intent     `json:"intent"`
	Reply       string     `json:"reply,omitempty"`
	Actions     []UIAction `json:"actions,omitempty"`
	CompletedAt time.Time  `json:"completed_at"`
}

// Record captures a finished dispatch for the history store.
type Record struct {
	PublicID  string
	SessionID string
	Text      string
	Intent    Intent
	Reply     string
	Succeeded bool
	CreatedAt time.Time
}

// IntentExtractor interprets a command via the inference backends.
type IntentExtractor interface {
	ExtractIntent(ctx context.Context, text string) (*IntentResult, error)
}

// Geocoder resolves a free-text place query.
type Geocoder interface {
	Forward(ctx context.Context, query string) (*Location, error)
}

// DevicePublisher hands a device command to the control plane.
type DevicePublisher interface {
	PublishCommand(ctx context.Context, command DeviceCommand) error
}

// HistoryRepository persists dispatch records.
type HistoryRepository interface {
	Save(ctx context.Context, record *Record) error
	FindByPublicID(ctx context.Context, publicID string) (*Record, error)
	ListRecent(ctx context.Context, limit int) ([]*Record, error)
}
