package admin

import (
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/keyxmakerx/nexus/internal/apperror"
)

// Admin tokens are HS256 JWTs with these fixed claims.
const (
	tokenIssuer   = "nexus"
	tokenAudience = "nexus-admin"
	tokenSubject  = "admin"
)

// Gate is the shared-secret admin check. It never consults user sessions.
type Gate struct {
	passwordDigest [32]byte
	signingKey     []byte
	tokenTTL       time.Duration
	now            func() time.Time
}

// NewGate creates a gate for the given admin password. signingKey signs
// the short-lived tokens issued by IssueToken.
func NewGate(password, signingKey string, tokenTTL time.Duration) *Gate {
	return &Gate{
		passwordDigest: sha256.Sum256([]byte(strings.TrimSpace(password))),
		signingKey:     []byte(signingKey),
		tokenTTL:       tokenTTL,
		now:            time.Now,
	}
}

func errAdminUnauthorized() *apperror.AppError {
	return apperror.NewUnauthorized("Unauthorized")
}

// Authorize checks a provided secret. Surrounding whitespace is ignored;
// otherwise the match is exact. Both sides are hashed first so the
// comparison time does not depend on the secret's length.
func (g *Gate) Authorize(provided string) error {
	provided = strings.TrimSpace(provided)
	if provided == "" {
		return errAdminUnauthorized()
	}
	digest := sha256.Sum256([]byte(provided))
	if subtle.ConstantTimeCompare(digest[:], g.passwordDigest[:]) != 1 {
		return errAdminUnauthorized()
	}
	return nil
}

// IssueToken returns a signed admin token and its expiry.
func (g *Gate) IssueToken() (string, time.Time, error) {
	now := g.now()
	expires := now.Add(g.tokenTTL)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   tokenSubject,
		Audience:  jwt.ClaimStrings{tokenAudience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
	})
	signed, err := token.SignedString(g.signingKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing admin token: %w", err)
	}
	return signed, expires, nil
}

// VerifyToken accepts only unexpired HS256 tokens minted by IssueToken.
func (g *Gate) VerifyToken(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return errAdminUnauthorized()
	}
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return g.signingKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithAudience(tokenAudience),
		jwt.WithSubject(tokenSubject),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(g.now),
	)
	if err != nil || !token.Valid {
		slog.Debug("admin token rejected", slog.Any("error", err))
		return errAdminUnauthorized()
	}
	return nil
}
