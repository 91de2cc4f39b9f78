package domain

import "time"

// Contribution is a guest gift toward a fund
type Contribution struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	FundID    string    `gorm:"size:36;index;not null" json:"fund_id"`
	Name      *string   `gorm:"size:200" json:"name"`
	Amount    float64   `gorm:"not null" json:"amount"`
	Message   *string   `gorm:"type:text" json:"message"`
	Public    bool      `gorm:"not null" json:"public"`
	Method    *string   `gorm:"size:32" json:"method"`
	Email     *string   `gorm:"size:180" json:"email,omitempty"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}
