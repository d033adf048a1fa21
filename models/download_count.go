package models

import "time"

// DownloadCount stores how often a stored upload was fetched, per day and path.
type DownloadCount struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Date      time.Time `gorm:"index:idx_dl_date_path,unique;type:date;not null" json:"date"`
	Path      string    `gorm:"index;index:idx_dl_date_path,unique;size:255;not null" json:"path"`
	Hits      int64     `gorm:"not null;default:0" json:"hits"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
