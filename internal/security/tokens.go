// Package security verifies the bearer tokens API callers present: merchants, acquiring
// channels (POS/ATM switches, USSD gateways, wallet apps) and operators.
package security

import (
	"crypto"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned when a token is malformed, expired or not issued for this service.
var ErrInvalidToken = errors.New("invalid token")

// Role is what a caller may do.
type Role string

const (
	// RoleMerchant issues tokens and manages terminals for its own merchant id.
	RoleMerchant Role = "merchant"
	// RoleAcquirer relays scans from a channel: validates and redeems tokens, reports terminal heartbeats.
	RoleAcquirer Role = "acquirer"
	// RoleOperator runs the scheme and may do anything, including revoking terminals.
	RoleOperator Role = "operator"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleMerchant || r == RoleAcquirer || r == RoleOperator
}

// Caller is the authenticated identity behind a request.
type Caller struct {
	Subject    string
	MerchantID string
	Role       Role
}

// CallerClaims holds JWT claims for an API caller token.
type CallerClaims struct {
	jwt.RegisteredClaims
	MerchantID string `json:"merchant_id,omitempty"`
	Role       Role   `json:"role"`
}

// TokenProvider validates caller JWTs (RS256 or ES256) against the auth service's public key.
// A provider built with a private key can also issue them, for tests and local tooling.
type TokenProvider struct {
	privateKey crypto.Signer
	publicKey  crypto.PublicKey
	issuer     string
	audience   string
}

// NewTokenProvider returns a TokenProvider. privateKey may be nil for a verify-only provider.
func NewTokenProvider(privateKey crypto.Signer, publicKey crypto.PublicKey, issuer, audience string) *TokenProvider {
	return &TokenProvider{
		privateKey: privateKey,
		publicKey:  publicKey,
		issuer:     issuer,
		audience:   audience,
	}
}

// Issue signs a caller token valid for ttl.
func (p *TokenProvider) Issue(c Caller, ttl time.Duration) (string, time.Time, error) {
	if p.privateKey == nil || !c.Role.Valid() || c.Subject == "" {
		return "", time.Time{}, ErrInvalidToken
	}
	method := signingMethodFor(p.privateKey.Public())
	if method == nil {
		return "", time.Time{}, ErrInvalidKey
	}
	now := time.Now().UTC()
	expiresAt := now.Add(ttl)
	claims := CallerClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   c.Subject,
			Issuer:    p.issuer,
			Audience:  jwt.ClaimStrings{p.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		MerchantID: c.MerchantID,
		Role:       c.Role,
	}
	token, err := jwt.NewWithClaims(method, claims).SignedString(p.privateKey)
	return token, expiresAt, err
}

// Validate parses and validates a caller token (signature, exp, iss, aud, role).
// Merchant tokens must name the merchant they act for.
func (p *TokenProvider) Validate(tokenString string) (Caller, error) {
	method := signingMethodFor(p.publicKey)
	if method == nil {
		return Caller{}, ErrInvalidKey
	}
	var claims CallerClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (interface{}, error) {
		return p.publicKey, nil
	},
		jwt.WithValidMethods([]string{method.Alg()}),
		jwt.WithIssuer(p.issuer),
		jwt.WithAudience(p.audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return Caller{}, ErrInvalidToken
	}
	if claims.Subject == "" || !claims.Role.Valid() {
		return Caller{}, ErrInvalidToken
	}
	if claims.Role == RoleMerchant && claims.MerchantID == "" {
		return Caller{}, ErrInvalidToken
	}
	return Caller{Subject: claims.Subject, MerchantID: claims.MerchantID, Role: claims.Role}, nil
}
