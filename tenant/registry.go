package tenant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"mandanten-backend/apperrors"
	"mandanten-backend/models"
	"mandanten-backend/secrets"
	"mandanten-backend/utils"
)

// NewTenant is the provisioning input. Database URL and keys arrive in
// plaintext and are encrypted before they ever hit the catalog.
type NewTenant struct {
	Subdomain   string         `json:"subdomain" validate:"required,lowercase"`
	CompanyName string         `json:"company_name" validate:"required"`
	DatabaseURL string         `json:"database_url" validate:"required,url"`
	AnonKey     string         `json:"anon_key" validate:"required"`
	ServiceKey  string         `json:"service_key" validate:"required"`
	Metadata    map[string]any `json:"metadata"`
}

// TenantPatch updates only the fields that are non-nil. Credential fields
// travel together: changing the database URL or keys re-encrypts both
// columns.
type TenantPatch struct {
	CompanyName *string         `json:"company_name"`
	DatabaseURL *string         `json:"database_url"`
	AnonKey     *string         `json:"anon_key"`
	ServiceKey  *string         `json:"service_key"`
	Metadata    *map[string]any `json:"metadata"`
}

// RotatesCredentials reports whether applying the patch changes the
// tenant's database URL or keys; the caller must then invalidate the
// tenant's connection pool.
func (p *TenantPatch) RotatesCredentials() bool {
	return p.DatabaseURL != nil || p.AnonKey != nil || p.ServiceKey != nil
}

// Registry is CRUD over the master tenant catalog.
type Registry interface {
	Create(ctx context.Context, in *NewTenant) (*models.TenantRecord, error)
	GetBySubdomain(ctx context.Context, subdomain string) (*models.TenantRecord, error)
	GetByID(ctx context.Context, id string) (*models.TenantRecord, error)
	Update(ctx context.Context, id string, patch *TenantPatch) (*models.TenantRecord, error)
	Suspend(ctx context.Context, id string) error
	Reactivate(ctx context.Context, id string) error
}

type gormRegistry struct {
	db     *gorm.DB
	cipher *secrets.Cipher
}

// NewRegistry builds the GORM-backed registry over the master catalog.
func NewRegistry(db *gorm.DB, cipher *secrets.Cipher) Registry {
	return &gormRegistry{db: db, cipher: cipher}
}

func (r *gormRegistry) Create(ctx context.Context, in *NewTenant) (*models.TenantRecord, error) {
	sub := strings.ToLower(strings.TrimSpace(in.Subdomain))
	if !ValidSubdomain(sub) {
		return nil, apperrors.E(apperrors.KindInvalid, "invalid subdomain")
	}
	if sub == DemoTenantID {
		return nil, apperrors.E(apperrors.KindConflict, "subdomain is reserved")
	}

	encURL, err := r.cipher.Encrypt(in.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("encrypt database url: %w", err)
	}
	creds, err := json.Marshal(models.TenantCredentials{AnonKey: in.AnonKey, ServiceKey: in.ServiceKey})
	if err != nil {
		return nil, fmt.Errorf("marshal credentials: %w", err)
	}
	encCreds, err := r.cipher.Encrypt(string(creds))
	if err != nil {
		return nil, fmt.Errorf("encrypt credentials: %w", err)
	}

	rec := &models.TenantRecord{
		Subdomain:            sub,
		CompanyName:          strings.TrimSpace(in.CompanyName),
		EncryptedDatabaseURL: encURL,
		EncryptedCredentials: encCreds,
		IsActive:             true,
		Metadata:             datatypes.JSONMap(in.Metadata),
	}
	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperrors.E(apperrors.KindConflict, "subdomain already exists")
		}
		return nil, apperrors.Wrap(apperrors.KindUnavailable, "create tenant failed", err)
	}
	return rec, nil
}

func (r *gormRegistry) GetBySubdomain(ctx context.Context, subdomain string) (*models.TenantRecord, error) {
	var rec models.TenantRecord
	err := r.db.WithContext(ctx).Where("subdomain = ?", strings.ToLower(subdomain)).First(&rec).Error
	return mapLookup(&rec, err)
}

func (r *gormRegistry) GetByID(ctx context.Context, id string) (*models.TenantRecord, error) {
	var rec models.TenantRecord
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error
	return mapLookup(&rec, err)
}

func mapLookup(rec *models.TenantRecord, err error) (*models.TenantRecord, error) {
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.E(apperrors.KindNotFound, "tenant not found")
		}
		return nil, apperrors.Wrap(apperrors.KindUnavailable, "tenant lookup failed", err)
	}
	return rec, nil
}

func (r *gormRegistry) Update(ctx context.Context, id string, patch *TenantPatch) (*models.TenantRecord, error) {
	rec, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := utils.UpdatesFromPtrDTO(patch, nil)
	// Credential fields never land in columns as-is; re-encrypt instead.
	delete(updates, "database_url")
	delete(updates, "anon_key")
	delete(updates, "service_key")

	if patch.RotatesCredentials() {
		url := patch.DatabaseURL
		if url == nil {
			plain, derr := r.cipher.Decrypt(rec.EncryptedDatabaseURL)
			if derr != nil {
				return nil, derr
			}
			url = &plain
		}
		creds, derr := r.decryptCredentials(rec)
		if derr != nil {
			return nil, derr
		}
		if patch.AnonKey != nil {
			creds.AnonKey = *patch.AnonKey
		}
		if patch.ServiceKey != nil {
			creds.ServiceKey = *patch.ServiceKey
		}

		encURL, eerr := r.cipher.Encrypt(*url)
		if eerr != nil {
			return nil, fmt.Errorf("encrypt database url: %w", eerr)
		}
		blob, merr := json.Marshal(creds)
		if merr != nil {
			return nil, fmt.Errorf("marshal credentials: %w", merr)
		}
		encCreds, eerr := r.cipher.Encrypt(string(blob))
		if eerr != nil {
			return nil, fmt.Errorf("encrypt credentials: %w", eerr)
		}
		updates["encrypted_database_url"] = encURL
		updates["encrypted_credentials"] = encCreds
	}

	if len(updates) == 0 {
		return rec, nil
	}
	updates["updated_at"] = time.Now().UTC()

	if err := r.db.WithContext(ctx).Model(rec).Updates(updates).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.KindUnavailable, "update tenant failed", err)
	}
	return r.GetByID(ctx, id)
}

func (r *gormRegistry) Suspend(ctx context.Context, id string) error {
	return r.setActive(ctx, id, false)
}

// Reactivate clears the suspension marker and re-enables resolution.
func (r *gormRegistry) Reactivate(ctx context.Context, id string) error {
	return r.setActive(ctx, id, true)
}

func (r *gormRegistry) setActive(ctx context.Context, id string, active bool) error {
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	now := time.Now().UTC()
	updates := map[string]any{
		"is_active":  active,
		"updated_at": now,
	}
	if active {
		updates["suspended_at"] = nil
	} else {
		updates["suspended_at"] = &now
	}
	if err := r.db.WithContext(ctx).Model(&models.TenantRecord{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return apperrors.Wrap(apperrors.KindUnavailable, "update tenant failed", err)
	}
	return nil
}

func (r *gormRegistry) decryptCredentials(rec *models.TenantRecord) (*models.TenantCredentials, error) {
	plain, err := r.cipher.Decrypt(rec.EncryptedCredentials)
	if err != nil {
		return nil, err
	}
	var creds models.TenantCredentials
	if err := json.Unmarshal([]byte(plain), &creds); err != nil {
		return nil, apperrors.Wrap(apperrors.KindDecryption, "credentials blob is not valid JSON", err)
	}
	return &creds, nil
}
