package credential

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/google/uuid"
)

// Claims are the claims embedded in a self-issued bearer token.
type Claims struct {
	Subject string `json:"sub"`
}

// TokenManager issues and validates self-signed bearer tokens using a
// configurable HMAC algorithm.
type TokenManager struct {
	signingKey []byte
	maxAge     time.Duration
	algorithm  jose.SignatureAlgorithm
}

// NewTokenManager creates a token manager. The secret must be at least 32
// bytes. algorithm selects the HMAC signing algorithm (HS256, HS384, or
// HS512); an empty string defaults to HS256.
func NewTokenManager(secret string, maxAge time.Duration, algorithm string) (*TokenManager, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("jwt secret must be at least 32 bytes, got %d", len(secret))
	}
	alg, err := parseAlgorithm(algorithm)
	if err != nil {
		return nil, err
	}
	return &TokenManager{
		signingKey: []byte(secret),
		maxAge:     maxAge,
		algorithm:  alg,
	}, nil
}

// parseAlgorithm maps a configured algorithm name onto the go-jose HMAC
// signature algorithms storectl supports.
func parseAlgorithm(algorithm string) (jose.SignatureAlgorithm, error) {
	switch strings.ToUpper(algorithm) {
	case "", "HS256":
		return jose.HS256, nil
	case "HS384":
		return jose.HS384, nil
	case "HS512":
		return jose.HS512, nil
	default:
		return "", fmt.Errorf("unsupported jwt algorithm: %s", algorithm)
	}
}

// IssueToken creates a signed JWT carrying the principal's ID as subject.
func (tm *TokenManager) IssueToken(principalID uuid.UUID) (string, error) {
	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: tm.algorithm, Key: tm.signingKey},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		return "", fmt.Errorf("creating signer: %w", err)
	}

	now := time.Now()
	registered := jwt.Claims{
		Subject:   principalID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		Expiry:    jwt.NewNumericDate(now.Add(tm.maxAge)),
		NotBefore: jwt.NewNumericDate(now),
		Issuer:    "storectl",
	}

	token, err := jwt.Signed(signer).Claims(registered).Serialize()
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return token, nil
}

// ValidateToken verifies the JWT signature and expiry and returns the principal ID.
func (tm *TokenManager) ValidateToken(raw string) (uuid.UUID, error) {
	tok, err := jwt.ParseSigned(raw, []jose.SignatureAlgorithm{tm.algorithm})
	if err != nil {
		return uuid.Nil, fmt.Errorf("parsing token: %w", err)
	}

	var registered jwt.Claims
	if err := tok.Claims(tm.signingKey, &registered); err != nil {
		return uuid.Nil, fmt.Errorf("verifying token: %w", err)
	}

	if err := registered.ValidateWithLeeway(jwt.Expected{
		Issuer: "storectl",
		Time:   time.Now(),
	}, 5*time.Second); err != nil {
		return uuid.Nil, fmt.Errorf("validating claims: %w", err)
	}

	id, err := uuid.Parse(registered.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid subject claim: %w", err)
	}

	return id, nil
}
