package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/serroba/linktrail/internal/handlers"
)

// OwnerCookie is the cookie consulted when no Authorization header is sent.
const OwnerCookie = "jwt"

var (
	ErrMissingToken  = errors.New("missing token")
	ErrInvalidToken  = errors.New("invalid token")
	ErrMissingSecret = errors.New("token secret is not configured")
)

// TokenVerifier issues and verifies HS256 owner tokens. The subject claim is
// the owner ID.
type TokenVerifier struct {
	secret []byte
	now    func() time.Time
}

func NewTokenVerifier(secret string) *TokenVerifier {
	return &TokenVerifier{secret: []byte(secret), now: time.Now}
}

// Issue signs a token for ownerID valid for ttl.
func (v *TokenVerifier) Issue(ownerID string, ttl time.Duration) (string, error) {
	if len(v.secret) == 0 {
		return "", ErrMissingSecret
	}

	now := v.now()
	claims := &jwt.RegisteredClaims{
		Subject:   ownerID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return signed, nil
}

// Verify returns the owner ID carried by a valid token.
func (v *TokenVerifier) Verify(raw string) (string, error) {
	if len(v.secret) == 0 {
		return "", ErrMissingSecret
	}

	if raw == "" {
		return "", ErrMissingToken
	}

	claims := &jwt.RegisteredClaims{}

	_, err := jwt.ParseWithClaims(raw, claims, func(_ *jwt.Token) (any, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	if claims.Subject == "" {
		return "", fmt.Errorf("%w: empty subject", ErrInvalidToken)
	}

	return claims.Subject, nil
}

// OwnerIdentity authenticates the caller from a Bearer token or the jwt cookie
// and stores the owner ID in the request context.
func OwnerIdentity(api huma.API, verifier *TokenVerifier) func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		ownerID, err := verifier.Verify(bearerToken(ctx))
		if err != nil {
			_ = huma.WriteErr(api, ctx, http.StatusUnauthorized, "unauthorized")

			return
		}

		next(huma.WithContext(ctx, handlers.ContextWithOwner(ctx.Context(), ownerID)))
	}
}

func bearerToken(ctx huma.Context) string {
	if auth := ctx.Header("Authorization"); auth != "" {
		scheme, token, ok := strings.Cut(auth, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}

		return ""
	}

	if cookie, err := huma.ReadCookie(ctx, OwnerCookie); err == nil {
		return cookie.Value
	}

	return ""
}
