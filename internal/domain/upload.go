package domain

import "time"

// Upload tracks one chunked upload session
type Upload struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	RegistryID *string   `gorm:"size:36;index" json:"registry_id"`
	UserID     string    `gorm:"size:36;index;not null" json:"user_id"`
	Filename   string    `gorm:"size:255;not null" json:"filename"`
	Size       int64     `gorm:"not null" json:"size"`
	Mime       string    `gorm:"size:128" json:"mime"`
	Completed  bool      `gorm:"not null;default:false" json:"completed"`
	URL        string    `gorm:"size:500" json:"url"`
	CreatedAt  time.Time `json:"created_at"`
}
