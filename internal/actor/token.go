package actor

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	id "caredesk/pkg/domain"
	dErrors "caredesk/pkg/domain-errors"
)

// Claims are the actor claims the identity service puts in its access tokens.
type Claims struct {
	Role       Role   `json:"role"`
	BranchID   string `json:"branch_id,omitempty"`
	BranchName string `json:"branch_name,omitempty"`
	jwt.RegisteredClaims
}

// Verifier validates HS256 actor tokens.
type Verifier struct {
	signingKey []byte
	issuer     string
}

func NewVerifier(signingKey, issuer string) *Verifier {
	return &Verifier{signingKey: []byte(signingKey), issuer: issuer}
}

// Issue signs a token for a. The identity service owns issuance in production;
// this exists for local tooling and tests.
func (v *Verifier) Issue(a Context, expiresIn time.Duration) (string, error) {
	role := RoleStaff
	if a.SuperAdmin {
		role = RoleSuperAdmin
	}
	claims := Claims{
		Role:       role,
		BranchName: a.BranchName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   a.Subject,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
			ID:        uuid.NewString(),
		},
	}
	if a.HasBranch() {
		claims.BranchID = a.BranchID.String()
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.signingKey)
}

// Verify parses tokenString and converts its claims into an authorized Context.
func (v *Verifier) Verify(tokenString string) (Context, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(*jwt.Token) (any, error) {
		return v.signingKey, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Anonymous, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return Anonymous, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Anonymous, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	return fromClaims(string(claims.Role), claims.BranchID, claims.BranchName, claims.Subject)
}

// fromClaims builds an authorized actor. Unknown roles are rejected; a
// malformed branch id is rejected rather than silently dropped.
func fromClaims(role, branchID, branchName, subject string) (Context, error) {
	a := Context{Authorized: true, BranchName: branchName, Subject: subject}
	switch Role(role) {
	case RoleSuperAdmin:
		a.SuperAdmin = true
	case RoleStaff:
	default:
		return Anonymous, dErrors.New(dErrors.CodeUnauthorized, "unknown role")
	}
	if branchID != "" {
		parsed, err := id.ParseBranchID(branchID)
		if err != nil {
			return Anonymous, dErrors.New(dErrors.CodeUnauthorized, "invalid branch claim")
		}
		a.BranchID = parsed
	}
	return a, nil
}
