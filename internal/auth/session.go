// Package auth verifies dashboard session tokens and turns them into a browse scope.
//
// Sessions are HS256 JWTs signed by the dashboard with a key shared with this tool.
// The claims carry the user's role and the company and branch it is scoped to.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/fedesuarez16/opting-sub000/internal/models"
)

const issuer = "opting-dashboard"

var (
	ErrMissingSigningKey = errors.New("session signing key is not configured")
	ErrMissingToken      = errors.New("no session token")
	ErrInvalidToken      = errors.New("invalid session token")
	ErrExpiredToken      = errors.New("session token expired")
	ErrCompanyRequired   = errors.New("a company is required for this role")
	ErrBranchRequired    = errors.New("branch_manager sessions must carry a branch id")
)

// Claims holds session token claims.
type Claims struct {
	Role        string `json:"role"`
	CompanyID   string `json:"company_id,omitempty"`
	CompanyName string `json:"company_name,omitempty"`
	BranchID    string `json:"branch_id,omitempty"`
	jwt.RegisteredClaims
}

// Verifier checks session tokens against the shared key.
type Verifier struct {
	secret []byte
	now    func() time.Time
}

// NewVerifier creates a verifier for signingKey.
func NewVerifier(signingKey string) (*Verifier, error) {
	if strings.TrimSpace(signingKey) == "" {
		return nil, ErrMissingSigningKey
	}
	return &Verifier{secret: []byte(signingKey), now: time.Now}, nil
}

// Verify parses tokenStr and checks signature, expiry and role.
func (v *Verifier) Verify(tokenStr string) (*Claims, error) {
	tokenStr = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(tokenStr), "Bearer "))
	if tokenStr == "" {
		return nil, ErrMissingToken
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(v.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	if _, err := models.ParseRole(claims.Role); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}

// Sign issues a token for claims valid for ttl. Used by tooling and tests; the
// dashboard issues real sessions.
func (v *Verifier) Sign(claims Claims, ttl time.Duration) (string, error) {
	now := v.now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Subject:   claims.Subject,
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
		Issuer:    issuer,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return s, nil
}

// Inspect decodes tokenStr without verifying the signature, for display only.
func Inspect(tokenStr string) (*Claims, error) {
	tokenStr = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(tokenStr), "Bearer "))
	if tokenStr == "" {
		return nil, ErrMissingToken
	}
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}

// Scope returns the browse scope the session grants.
//
// admin may browse any company and takes it from requested; general_manager is
// locked to its own company; branch_manager is locked to its branch. For the
// locked roles a requested company other than its own is refused.
func (c *Claims) Scope(requested models.Scope) (models.Scope, error) {
	role, err := models.ParseRole(c.Role)
	if err != nil {
		return models.Scope{}, err
	}

	switch role {
	case models.RoleAdmin:
		if requested.CompanyID == "" && requested.CompanyName == "" {
			return models.Scope{}, ErrCompanyRequired
		}
		return requested, nil
	default:
		if c.CompanyID == "" {
			return models.Scope{}, fmt.Errorf("%w: session has no company id", ErrCompanyRequired)
		}
		if requested.CompanyID != "" && requested.CompanyID != c.CompanyID {
			return models.Scope{}, fmt.Errorf("role %s may not browse company %s", role, requested.CompanyID)
		}
		scope := models.Scope{CompanyID: c.CompanyID, CompanyName: c.CompanyName}
		if role == models.RoleBranchManager {
			if c.BranchID == "" {
				return models.Scope{}, ErrBranchRequired
			}
			return scope.ForBranch(c.BranchID), nil
		}
		// general managers may still open one of their own branches directly
		if requested.BranchID != "" {
			return scope.ForBranch(requested.BranchID), nil
		}
		return scope, nil
	}
}

// Expiry returns the expiry, or the zero time when the token has none
func (c *Claims) Expiry() time.Time {
	if c.RegisteredClaims.ExpiresAt == nil {
		return time.Time{}
	}
	return c.RegisteredClaims.ExpiresAt.Time
}
