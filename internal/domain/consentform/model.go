package consentform

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Type is the stored consent form category.
type Type string

const (
	TypeSurgical   Type = "SURGICAL"
	TypeAnesthesia Type = "ANESTHESIA"
)

// ParseType accepts either the stored form (SURGICAL) or the path form
// (surgical).
func ParseType(s string) (Type, bool) {
	switch Type(strings.ToUpper(strings.TrimSpace(s))) {
	case TypeSurgical:
		return TypeSurgical, true
	case TypeAnesthesia:
		return TypeAnesthesia, true
	}
	return "", false
}

// ConsentForm maps to the consent_form table. Content is loaded only by
// GetContent.
type ConsentForm struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Type      Type      `db:"type" json:"type"`
	FileName  string    `db:"file_name" json:"file_name"`
	FilePath  string    `db:"file_path" json:"file_path"`
	FileSize  int64     `db:"file_size" json:"file_size"`
	Content   []byte    `db:"file_content" json:"-"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Summary is the id and file name embedded in patient reads.
type Summary struct {
	ID       uuid.UUID `json:"id"`
	FileName string    `json:"file_name"`
}
