package dto

import (
	"time"

	"dispatch-server/services/dispatch-api/internal/domain/dispatch"
)

// DispatchRequest is the body of POST /v1/dispatch.
type DispatchRequest struct {
	Text      string `json:"text" validate:"required,min=1,max=2000"`
	SessionID string `json:"session_id,omitempty" validate:"omitempty,max=128"`
}

// DispatchResponse mirrors a dispatch result on the wire.
type DispatchResponse struct {
	CommandID   string              `json:"command_id"`
	Intent      string              `json:"intent"`
	Reply       string              `json:"reply,omitempty"`
	Actions     []dispatch.UIAction `json:"actions,omitempty"`
	CompletedAt time.Time           `json:"completed_at"`
}

// DispatchRecordResponse is a stored dispatch looked up by public id.
type DispatchRecordResponse struct {
	PublicID  string    `json:"public_id"`
	SessionID string    `json:"session_id,omitempty"`
	Text      string    `json:"text"`
	Intent    string    `json:"intent"`
	Reply     string    `json:"reply,omitempty"`
	Succeeded bool      `json:"succeeded"`
	CreatedAt time.Time `json:"created_at"`
}

// FromResult converts a domain result into its wire shape.
func FromResult(result *dispatch.Result) DispatchResponse {
	return DispatchResponse{
		CommandID:   result.CommandID,
		Intent:      string(result.Intent),
		Reply:       result.Reply,
		Actions:     result.Actions,
		CompletedAt: result.CompletedAt,
	}
}

// FromRecord converts a stored dispatch record into its wire shape.
func FromRecord(record *dispatch.Record) DispatchRecordResponse {
	return DispatchRecordResponse{
		PublicID:  record.PublicID,
		SessionID: record.SessionID,
		Text:      record.Text,
		Intent:    string(record.Intent),
		Reply:     record.Reply,
		Succeeded: record.Succeeded,
		CreatedAt: record.CreatedAt,
	}
}
