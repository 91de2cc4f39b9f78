package domain

import "time"

// Audit actions
const (
	ActionRegistryCreate     = "registry.create"
	ActionRegistryUpdate     = "registry.update"
	ActionRegistryDelete     = "registry.delete"
	ActionRegistryLock       = "registry.lock"
	ActionRegistryUnlock     = "registry.unlock"
	ActionCollaboratorAdd    = "collaborator.add"
	ActionCollaboratorRemove = "collaborator.remove"
	ActionFundCreate         = "fund.create"
	ActionFundUpdate         = "fund.update"
	ActionFundDelete         = "fund.delete"
	ActionFundBulkUpsert     = "fund.bulk_upsert"
	ActionContributionCreate = "contribution.create"
	ActionUploadComplete     = "upload.complete"
)

// AuditLog is an append-only record of a mutation on a registry
type AuditLog struct {
	ID         string         `gorm:"primaryKey;size:36" json:"id"`
	RegistryID string         `gorm:"size:36;index;not null" json:"registry_id"`
	UserID     *string        `gorm:"size:36" json:"user_id"` // nil for anonymous actions
	Action     string         `gorm:"size:64;not null" json:"action"`
	Meta       map[string]any `gorm:"serializer:json;type:text" json:"meta"`
	CreatedAt  time.Time      `gorm:"index" json:"created_at"`
}
