package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// TenantRecord is the master-catalog row for one customer organization.
// Credentials columns hold base64 ciphertext; plaintext never touches the
// catalog. Records are suspended, never hard-deleted, and a subdomain is
// never reused after deletion without explicit administrative action.
type TenantRecord struct {
	Id                   string            `json:"tenant_id" gorm:"primaryKey"`
	Subdomain            string            `json:"subdomain" gorm:"uniqueIndex;not null;size:50"`
	CompanyName          string            `json:"company_name" gorm:"not null"`
	EncryptedDatabaseURL string            `json:"-" gorm:"not null"`
	EncryptedCredentials string            `json:"-" gorm:"not null"`
	IsActive             bool              `json:"is_active" gorm:"not null;default:true"`
	SuspendedAt          *time.Time        `json:"suspended_at"`
	Metadata             datatypes.JSONMap `json:"metadata"`
	CreatedAt            time.Time         `json:"created_at"`
	UpdatedAt            time.Time         `json:"updated_at"`
}

func (t *TenantRecord) BeforeCreate(tx *gorm.DB) (err error) {
	// UUID version 4
	if t.Id == "" {
		t.Id = uuid.NewString()
	}
	return
}

// TenantCredentials is the plaintext shape of the encrypted credentials
// blob: the per-tenant database API keys.
type TenantCredentials struct {
	AnonKey    string `json:"anon_key"`
	ServiceKey string `json:"service_key"`
}
