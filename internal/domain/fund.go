package domain

import "time"

// Fund is a single monetary goal inside a registry
type Fund struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	RegistryID  string    `gorm:"size:36;index;not null" json:"registry_id"`
	Title       string    `gorm:"size:200;not null" json:"title"`
	Description *string   `gorm:"type:text" json:"description"`
	Goal        float64   `gorm:"not null;default:0" json:"goal"`
	CoverURL    *string   `gorm:"size:500" json:"cover_url"`
	Category    *string   `gorm:"size:64" json:"category"`
	Visible     bool      `gorm:"not null" json:"visible"`
	Order       int       `gorm:"column:sort_order;not null;default:0" json:"order"`
	Pinned      bool      `gorm:"not null;default:false" json:"pinned"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
