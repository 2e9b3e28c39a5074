package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"mandanten-backend/apperrors"
	"mandanten-backend/models"
)

// TenantOption is one tenant a user may log into.
type TenantOption struct {
	TenantID    string      `json:"tenant_id"`
	Subdomain   string      `json:"subdomain"`
	CompanyName string      `json:"company_name"`
	Role        models.Role `json:"role"`
}

// DirectoryStore is the membership join this service queries:
// email -> user -> memberships -> active tenants.
type DirectoryStore interface {
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	ActiveTenantsFor(ctx context.Context, userID string) ([]TenantOption, error)
	RoleFor(ctx context.Context, userID, tenantID string) (models.Role, error)
}

// DiscoveryResult is the outcome of tenant discovery for an email.
type DiscoveryResult struct {
	// Single is set when exactly one tenant matched; the client should
	// redirect straight to it without a selection step.
	Single  *TenantOption
	Tenants []TenantOption
}

// LoginResult carries either a full tenant-bound token (single membership)
// or a temp single-use token plus the candidate list (multiple).
type LoginResult struct {
	Token     string
	Temporary bool
	Single    *TenantOption
	Tenants   []TenantOption
}

// DiscoveryService implements single- and multi-tenant login flows on top
// of credential verification and the membership join.
type DiscoveryService struct {
	store  DirectoryStore
	tokens *TokenService
	logger *slog.Logger
}

func NewDiscoveryService(store DirectoryStore, tokens *TokenService, logger *slog.Logger) *DiscoveryService {
	return &DiscoveryService{store: store, tokens: tokens, logger: logger}
}

// Discover returns the active tenants for an email without authenticating.
// Zero matches is NotFound; exactly one match is flagged for direct
// redirect, skipping the trivial selection step.
func (s *DiscoveryService) Discover(ctx context.Context, email string) (*DiscoveryResult, error) {
	user, err := s.store.FindUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	tenants, err := s.store.ActiveTenantsFor(ctx, user.Id)
	if err != nil {
		return nil, err
	}
	if len(tenants) == 0 {
		return nil, apperrors.E(apperrors.KindNotFound, "no tenants for this account")
	}
	res := &DiscoveryResult{Tenants: tenants}
	if len(tenants) == 1 {
		res.Single = &tenants[0]
	}
	return res, nil
}

// LoginAndDiscover verifies credentials, then binds the tenant directly when
// there is exactly one membership, or defers binding to the exchange step
// with a temp single-use token when there are several.
func (s *DiscoveryService) LoginAndDiscover(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.store.FindUserByEmail(ctx, email)
	if err != nil {
		if apperrors.KindOf(err) == apperrors.KindNotFound {
			// Same answer as a bad password; do not leak which emails exist.
			return nil, apperrors.E(apperrors.KindAuthFailed, "invalid credentials")
		}
		return nil, err
	}
	if err := user.ComparePassword(password); err != nil {
		return nil, apperrors.E(apperrors.KindAuthFailed, "invalid credentials")
	}

	tenants, err := s.store.ActiveTenantsFor(ctx, user.Id)
	if err != nil {
		return nil, err
	}
	switch len(tenants) {
	case 0:
		return nil, apperrors.E(apperrors.KindAuthFailed, "no tenants for this account")
	case 1:
		t := tenants[0]
		token, err := s.tokens.IssueFull(user, t.Role, t.TenantID, t.Subdomain)
		if err != nil {
			return nil, err
		}
		return &LoginResult{Token: token, Single: &t, Tenants: tenants}, nil
	default:
		token, err := s.tokens.IssueTemp(user)
		if err != nil {
			return nil, err
		}
		return &LoginResult{Token: token, Temporary: true, Tenants: tenants}, nil
	}
}

// Exchange redeems a temp single-use token for a full token bound to the
// selected tenant. The jti is consumed before the full token is issued;
// concurrent redemptions of the same token see AlreadyUsed.
func (s *DiscoveryService) Exchange(ctx context.Context, guard ReplayGuard, rawToken, tenantID string) (string, *TenantOption, error) {
	claims, err := s.tokens.Verify(rawToken)
	if err != nil {
		return "", nil, err
	}
	if !claims.Temp || claims.ID == "" {
		return "", nil, apperrors.E(apperrors.KindAuthFailed, "not a selection token")
	}

	role, err := s.store.RoleFor(ctx, claims.Subject, tenantID)
	if err != nil {
		return "", nil, err
	}
	tenants, err := s.store.ActiveTenantsFor(ctx, claims.Subject)
	if err != nil {
		return "", nil, err
	}
	var selected *TenantOption
	for i := range tenants {
		if tenants[i].TenantID == tenantID {
			selected = &tenants[i]
			break
		}
	}
	if selected == nil {
		return "", nil, apperrors.E(apperrors.KindAuthFailed, "no membership in selected tenant")
	}

	// Mark consumed first. TTL covers at least the remaining token life so
	// the jti stays burned until the token itself expires.
	ttl := claims.RemainingLife(time.Now()) + time.Minute
	if err := guard.Consume(ctx, claims.ID, ttl); err != nil {
		return "", nil, err
	}

	user := &models.User{Id: claims.Subject, Email: claims.Email}
	token, err := s.tokens.IssueFull(user, role, selected.TenantID, selected.Subdomain)
	if err != nil {
		return "", nil, err
	}
	s.logger.Info("selection token redeemed", "user_id", claims.Subject, "tenant_id", tenantID)
	return token, selected, nil
}

// gormDirectory implements DirectoryStore on the master catalog.
type gormDirectory struct {
	db *gorm.DB
}

func NewDirectoryStore(db *gorm.DB) DirectoryStore {
	return &gormDirectory{db: db}
}

func (d *gormDirectory) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := d.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.E(apperrors.KindNotFound, "user not found")
		}
		return nil, apperrors.Wrap(apperrors.KindUnavailable, "user lookup failed", err)
	}
	return &user, nil
}

func (d *gormDirectory) ActiveTenantsFor(ctx context.Context, userID string) ([]TenantOption, error) {
	var out []TenantOption
	err := d.db.WithContext(ctx).
		Table("tenant_memberships").
		Select("tenant_records.id AS tenant_id, tenant_records.subdomain, tenant_records.company_name, tenant_memberships.role").
		Joins("JOIN tenant_records ON tenant_records.id = tenant_memberships.tenant_id").
		Where("tenant_memberships.user_id = ? AND tenant_records.is_active = true", userID).
		Order("tenant_records.subdomain").
		Scan(&out).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindUnavailable, "membership lookup failed", err)
	}
	return out, nil
}

func (d *gormDirectory) RoleFor(ctx context.Context, userID, tenantID string) (models.Role, error) {
	var m models.TenantMembership
	err := d.db.WithContext(ctx).
		Where("user_id = ? AND tenant_id = ?", userID, tenantID).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", apperrors.E(apperrors.KindAuthFailed, "no membership in selected tenant")
		}
		return "", apperrors.Wrap(apperrors.KindUnavailable, "membership lookup failed", err)
	}
	return m.Role, nil
}
