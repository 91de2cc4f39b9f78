package domain

import "time"

// Registry is a named collection of funds owned by one user
type Registry struct {
	ID            string    `gorm:"primaryKey;size:36" json:"id"`
	CoupleNames   string    `gorm:"size:200;not null" json:"couple_names"`
	EventDate     *string   `gorm:"size:10" json:"event_date"` // YYYY-MM-DD
	Location      *string   `gorm:"size:200" json:"location"`
	Currency      string    `gorm:"size:8;not null;default:AED" json:"currency"`
	HeroImage     *string   `gorm:"size:500" json:"hero_image"`
	Slug          string    `gorm:"size:64;uniqueIndex;not null" json:"slug"`
	Theme         string    `gorm:"size:32;not null;default:modern" json:"theme"`
	OwnerID       string    `gorm:"size:36;index;not null" json:"owner_id"`
	Collaborators []string  `gorm:"-" json:"collaborators"` // Loaded from registry_collaborators
	Locked        bool      `gorm:"not null;default:false" json:"locked"`
	LockReason    *string   `gorm:"size:500" json:"lock_reason"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// RegistryCollaborator links a user with write access to a registry
type RegistryCollaborator struct {
	RegistryID string    `gorm:"primaryKey;size:36"`
	UserID     string    `gorm:"primaryKey;size:36;index"`
	CreatedAt  time.Time
}

// IsOwner reports whether userID owns the registry
func (r *Registry) IsOwner(userID string) bool {
	return r.OwnerID == userID
}

// CanEdit reports whether userID is the owner or a collaborator
func (r *Registry) CanEdit(userID string) bool {
	if r.IsOwner(userID) {
		return true
	}
	for _, id := range r.Collaborators {
		if id == userID {
			return true
		}
	}
	return false
}
