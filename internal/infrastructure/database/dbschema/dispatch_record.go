package dbschema

import (
	"time"

	"dispatch-server/services/dispatch-api/internal/domain/dispatch"
	"dispatch-server/services/dispatch-api/internal/infrastructure/database"
)

func init() {
	database.RegisterSchemaForAutoMigrate(&DispatchRecord{})
}

// DispatchRecord persists one handled command.
type DispatchRecord struct {
	ID        uint   `gorm:"primaryKey"`
	PublicID  string `gorm:"type:uuid;uniqueIndex;not null"`
	SessionID string `gorm:"type:varchar(64);index"`
	Text      string `gorm:"type:text;not null"`
	Intent    string `gorm:"type:varchar(32);not null;index"`
	Reply     string `gorm:"type:text"`
	Succeeded bool   `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// EtoD converts schema model to domain representation.
func (r *DispatchRecord) EtoD() *dispatch.Record {
	if r == nil {
		return nil
	}
	return &dispatch.Record{
		PublicID:  r.PublicID,
		SessionID: r.SessionID,
		Text:      r.Text,
		Intent:    dispatch.Intent(r.Intent),
		Reply:     r.Reply,
		Succeeded: r.Succeeded,
		CreatedAt: r.CreatedAt,
	}
}

// FromDomain converts domain model to schema representation.
func FromDomain(record *dispatch.Record) *DispatchRecord {
	if record == nil {
		return nil
	}
	return &DispatchRecord{
		PublicID:  record.PublicID,
		SessionID: record.SessionID,
		Text:      record.Text,
		Intent:    string(record.Intent),
		Reply:     record.Reply,
		Succeeded: record.Succeeded,
		CreatedAt: record.CreatedAt,
	}
}
