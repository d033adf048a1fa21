package models

import (
	"path/filepath"
	"time"
)

const (
	KindFile   = "file"
	KindQRCode = "qrcode"
)

// UploadedFile records a stored upload so it can be listed, counted and expired.
type UploadedFile struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	Kind         string     `gorm:"size:16;index;not null" json:"kind"`
	OriginalName string     `gorm:"size:512" json:"original_name"` // client supplied, sanitized
	StoredName   string     `gorm:"size:255;not null" json:"stored_name"`
	Dir          string     `gorm:"size:1024;not null" json:"-"`
	URL          string     `gorm:"size:1024;not null" json:"url"` // public path like /uploads/...
	Size         int64      `gorm:"not null;default:0" json:"size"`
	ContentType  string     `gorm:"size:255" json:"content_type"`
	ExpireAt     *time.Time `gorm:"index" json:"expire_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// DiskPath is where the stored bytes live.
func (f UploadedFile) DiskPath() string {
	return filepath.Join(f.Dir, f.StoredName)
}
