package models

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// AuditAction constants represent archive operations recorded in the audit trail.
const (
	AuditActionArchiveCreate  = "ARCHIVE_CREATE"
	AuditActionArchiveDelete  = "ARCHIVE_DELETE"
	AuditActionArchiveRestore = "ARCHIVE_RESTORE"
)

// JSONDocument is raw JSON bound as text so JSONB and TEXT columns both accept it.
type JSONDocument []byte

// Value implements driver.Valuer.
func (d JSONDocument) Value() (driver.Value, error) {
	if len(d) == 0 {
		return nil, nil
	}
	return string(d), nil
}

// Scan implements sql.Scanner.
func (d *JSONDocument) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*d = nil
	case []byte:
		*d = append((*d)[:0], v...)
	case string:
		*d = JSONDocument(v)
	default:
		return fmt.Errorf("scan json document: unsupported type %T", src)
	}
	return nil
}

// MarshalJSON emits the document unchanged.
func (d JSONDocument) MarshalJSON() ([]byte, error) {
	if len(d) == 0 {
		return []byte("null"), nil
	}
	return d, nil
}

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string       `db:"id" json:"id"`
	UserID     *string      `db:"user_id" json:"userId,omitempty"`
	Action     string       `db:"action" json:"action"`
	Resource   string       `db:"resource" json:"resource"`
	ResourceID *string      `db:"resource_id" json:"resourceId,omitempty"`
	OldValues  JSONDocument `db:"old_values" json:"oldValues,omitempty"`
	NewValues  JSONDocument `db:"new_values" json:"newValues,omitempty"`
	IPAddress  string       `db:"ip_address" json:"ipAddress"`
	UserAgent  string       `db:"user_agent" json:"userAgent"`
	CreatedAt  time.Time    `db:"created_at" json:"createdAt"`
}
