package models

import (
	"time"

	"gorm.io/gorm"
)

// TenantMembership joins a user to a tenant with a role. A user may hold
// memberships in several tenants; login then goes through the selection
// step instead of binding a tenant directly.
type TenantMembership struct {
	ID        uint         `json:"id" gorm:"primaryKey"`
	UserId    string       `json:"user_id" gorm:"uniqueIndex:idx_memberships_user_tenant;not null"`
	TenantId  string       `json:"tenant_id" gorm:"uniqueIndex:idx_memberships_user_tenant;not null"`
	Role      Role         `json:"role" gorm:"not null;default:member"`
	User      User         `json:"-" gorm:"foreignKey:UserId;references:Id"`
	Tenant    TenantRecord `json:"-" gorm:"foreignKey:TenantId;references:Id"`
	CreatedAt time.Time    `json:"created_at"`
}

func (m *TenantMembership) BeforeCreate(tx *gorm.DB) (err error) {
	if m.Role == "" {
		m.Role = RoleMember
	}
	return
}
