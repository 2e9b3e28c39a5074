package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	"mandanten-backend/apperrors"
	"mandanten-backend/models"
)

// Claims is the JWT payload. A full token always carries both TenantID and
// Subdomain, matching one tenant record. A temporary token carries neither,
// has Temp set, and is only valid for the tenant-selection exchange.
type Claims struct {
	Email     string      `json:"email"`
	Role      models.Role `json:"role"`
	TenantID  string      `json:"tenant_id,omitempty"`
	Subdomain string      `json:"subdomain,omitempty"`
	Temp      bool        `json:"temp,omitempty"`
	jwt.RegisteredClaims
}

// IsFull reports whether the claims bind exactly one tenant.
func (c *Claims) IsFull() bool {
	return !c.Temp && c.TenantID != "" && c.Subdomain != ""
}

// TokenService issues and verifies HS256 access tokens.
type TokenService struct {
	secret       []byte
	tokenTTL     time.Duration
	tempTokenTTL time.Duration
}

func NewTokenService(secret string, tokenTTL, tempTokenTTL time.Duration) (*TokenService, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("JWT secret not configured")
	}
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	if tempTokenTTL <= 0 || tempTokenTTL > time.Hour {
		// Single-use tokens live minutes, not hours.
		tempTokenTTL = 10 * time.Minute
	}
	return &TokenService{secret: []byte(secret), tokenTTL: tokenTTL, tempTokenTTL: tempTokenTTL}, nil
}

// IssueFull signs a tenant-bound token for the user.
func (s *TokenService) IssueFull(user *models.User, role models.Role, tenantID, subdomain string) (string, error) {
	if tenantID == "" || subdomain == "" {
		return "", errors.New("full token requires tenant_id and subdomain")
	}
	return s.sign(&Claims{
		Email:     user.Email,
		Role:      role,
		TenantID:  tenantID,
		Subdomain: subdomain,
	}, user.Id, s.tokenTTL, false)
}

// IssueTemp signs a short-lived, single-use pre-selection token. It carries
// no tenant binding; a fresh random jti makes it consumable exactly once.
func (s *TokenService) IssueTemp(user *models.User) (string, error) {
	return s.sign(&Claims{
		Email: user.Email,
		Temp:  true,
	}, user.Id, s.tempTokenTTL, true)
}

func (s *TokenService) sign(claims *Claims, subject string, ttl time.Duration, singleUse bool) (string, error) {
	now := time.Now()
	claims.Subject = subject
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	if singleUse {
		claims.ID = uuid.NewString()
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Verify checks signature and expiry and returns the claims. It does not
// check replay; single-use consumption is the ReplayGuard's job.
func (s *TokenService) Verify(raw string) (*Claims, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	var claims Claims
	token, err := parser.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		// Parser already restricts to HS256; this is just defense-in-depth.
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperrors.E(apperrors.KindExpired, "token expired")
		}
		return nil, apperrors.Wrap(apperrors.KindAuthFailed, "invalid token", err)
	}
	if !token.Valid {
		return nil, apperrors.E(apperrors.KindAuthFailed, "invalid token")
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, apperrors.E(apperrors.KindAuthFailed, "token missing subject")
	}
	return &claims, nil
}

// RemainingLife returns how long the claims stay valid, floored at zero.
func (c *Claims) RemainingLife(now time.Time) time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	d := c.ExpiresAt.Time.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}
