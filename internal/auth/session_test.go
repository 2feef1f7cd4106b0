package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fedesuarez16/opting-sub000/internal/models"
)

func newTestVerifier(t *testing.T, now time.Time) *Verifier {
	t.Helper()
	v, err := NewVerifier("shared-secret")
	require.NoError(t, err)
	v.now = func() time.Time { return now }
	return v
}

func TestNewVerifierRequiresKey(t *testing.T) {
	_, err := NewVerifier("  ")
	assert.ErrorIs(t, err, ErrMissingSigningKey)
}

func TestVerify(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("should accept a token it signed", func(t *testing.T) {
		v := newTestVerifier(t, now)
		token, err := v.Sign(Claims{Role: "general_manager", CompanyID: "c1", CompanyName: "Acme"}, time.Hour)
		require.NoError(t, err)

		claims, err := v.Verify("Bearer " + token)

		require.NoError(t, err)
		assert.Equal(t, "c1", claims.CompanyID)
		assert.WithinDuration(t, now.Add(time.Hour), claims.Expiry(), 0)
	})

	t.Run("should reject expired tokens", func(t *testing.T) {
		signer := newTestVerifier(t, now.Add(-2*time.Hour))
		token, err := signer.Sign(Claims{Role: "admin"}, time.Hour)
		require.NoError(t, err)

		_, err = newTestVerifier(t, now).Verify(token)

		assert.ErrorIs(t, err, ErrExpiredToken)
	})

	t.Run("should reject a different key", func(t *testing.T) {
		token, err := newTestVerifier(t, now).Sign(Claims{Role: "admin"}, time.Hour)
		require.NoError(t, err)
		other, err := NewVerifier("another-secret")
		require.NoError(t, err)
		other.now = func() time.Time { return now }

		_, err = other.Verify(token)

		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("should reject unsigned tokens", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{Role: "admin"}).
			SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = newTestVerifier(t, now).Verify(token)

		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("should reject unknown roles", func(t *testing.T) {
		v := newTestVerifier(t, now)
		token, err := v.Sign(Claims{Role: "auditor"}, time.Hour)
		require.NoError(t, err)

		_, err = v.Verify(token)

		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("should report a missing token", func(t *testing.T) {
		_, err := newTestVerifier(t, now).Verify("")
		assert.ErrorIs(t, err, ErrMissingToken)
	})
}

func TestInspect(t *testing.T) {
	v := newTestVerifier(t, time.Now())
	token, err := v.Sign(Claims{Role: "branch_manager", CompanyID: "c1", BranchID: "b7"}, time.Hour)
	require.NoError(t, err)

	claims, err := Inspect(token)

	require.NoError(t, err)
	assert.Equal(t, "b7", claims.BranchID)
	assert.Equal(t, issuer, claims.Issuer)

	_, err = Inspect("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestClaimsScope(t *testing.T) {
	tests := []struct {
		name      string
		claims    Claims
		requested models.Scope
		want      models.Scope
		wantErr   error
		anyErr    bool
	}{
		{
			name:      "admin browses the requested company",
			claims:    Claims{Role: "admin"},
			requested: models.Scope{CompanyID: "c9", CompanyName: "Otra"},
			want:      models.Scope{CompanyID: "c9", CompanyName: "Otra"},
		},
		{
			name:    "admin needs a company",
			claims:  Claims{Role: "admin"},
			wantErr: ErrCompanyRequired,
		},
		{
			name:   "general manager is locked to its company",
			claims: Claims{Role: "general_manager", CompanyID: "c1", CompanyName: "Acme"},
			want:   models.Scope{CompanyID: "c1", CompanyName: "Acme"},
		},
		{
			name:      "general manager may open one of its branches",
			claims:    Claims{Role: "general_manager", CompanyID: "c1", CompanyName: "Acme"},
			requested: models.Scope{CompanyID: "c1", BranchID: "b2"},
			want:      models.Scope{CompanyID: "c1", CompanyName: "Acme", BranchID: "b2"},
		},
		{
			name:      "general manager may not switch company",
			claims:    Claims{Role: "general_manager", CompanyID: "c1"},
			requested: models.Scope{CompanyID: "c2"},
			anyErr:    true,
		},
		{
			name:      "branch manager is locked to its branch",
			claims:    Claims{Role: "branch_manager", CompanyID: "c1", CompanyName: "Acme", BranchID: "b7"},
			requested: models.Scope{CompanyID: "c1", BranchID: "b8"},
			want:      models.Scope{CompanyID: "c1", CompanyName: "Acme", BranchID: "b7"},
		},
		{
			name:    "branch manager needs a branch",
			claims:  Claims{Role: "branch_manager", CompanyID: "c1"},
			wantErr: ErrBranchRequired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.claims.Scope(tt.requested)

			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.anyErr:
				assert.Error(t, err)
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
		})
	}
}
