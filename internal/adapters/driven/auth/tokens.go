// Package auth issues and validates the signed bearer tokens that
// identify callers of mutating operations. User accounts live elsewhere;
// a valid token is the only proof of identity the engine accepts.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/sspi-index/sspi-engine/internal/core/domain"
	"github.com/sspi-index/sspi-engine/internal/errkind"
)

// DefaultTTL is the lifetime of issued tokens when none is configured.
const DefaultTTL = 24 * time.Hour

// Claims are the claims carried by an access token.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// TokenService signs and checks HS256 tokens.
type TokenService struct {
	signingKey []byte
	issuer     string
	ttl        time.Duration
	now        func() time.Time
}

// NewTokenService creates a token service. An empty key is a
// configuration error: every token would be forgeable.
func NewTokenService(signingKey, issuer string, ttl time.Duration) (*TokenService, error) {
	if signingKey == "" {
		return nil, errkind.Configuration.New("auth.jwt_signing_key is not set")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &TokenService{signingKey: []byte(signingKey), issuer: issuer, ttl: ttl, now: time.Now}, nil
}

// Issue returns a signed token for username.
func (s *TokenService) Issue(username string) (string, error) {
	if username == "" {
		return "", fmt.Errorf("%w: empty username", domain.ErrInvalidInput)
	}
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			ID:        uuid.NewString(),
		},
	})
	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// Validate checks a token and returns the principal it names.
func (s *TokenService) Validate(tokenString string) (domain.Principal, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(*jwt.Token) (any, error) {
		return s.signingKey, nil
	}, opts...)
	if err != nil {
		reason := "invalid token"
		if errors.Is(err, jwt.ErrTokenExpired) {
			reason = "token has expired"
		}
		return domain.Principal{}, errkind.Authorization.Wrap(fmt.Errorf("%w: %s", domain.ErrInvalidToken, reason))
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Username == "" {
		return domain.Principal{}, errkind.Authorization.Wrap(domain.ErrInvalidToken)
	}
	return domain.Principal{Username: claims.Username}, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
