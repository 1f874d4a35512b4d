// Package auth resolves bearer credentials to callers.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/zulandar/taskyard/internal/errs"
	"github.com/zulandar/taskyard/internal/models"
)

// Caller is the authenticated identity behind a request.
type Caller struct {
	UserID string
	Role   string
}

// IsAdmin reports whether the caller holds the global admin role.
func (c Caller) IsAdmin() bool {
	return c.Role == "admin"
}

// UserLookup confirms a token subject still exists.
type UserLookup interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
}

// JWTProvider verifies and mints HS256 tokens signed with a shared secret.
type JWTProvider struct {
	secret []byte
	issuer string
	users  UserLookup
	parser *jwt.Parser
}

// NewJWTProvider returns a provider. users may be nil, in which case the
// role claim is trusted as-is; otherwise the stored user's role wins.
func NewJWTProvider(secret, issuer string, users UserLookup) *JWTProvider {
	return &JWTProvider{
		secret: []byte(secret),
		issuer: issuer,
		users:  users,
		parser: jwt.NewParser(jwt.WithValidMethods([]string{"HS256"})),
	}
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, error) {
	if header == "" {
		return "", fmt.Errorf("auth: missing authorization header: %w", errs.ErrUnauthenticated)
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", fmt.Errorf("auth: bad authorization header: %w", errs.ErrInvalidCredential)
	}
	return strings.TrimSpace(token), nil
}

// ResolveCaller verifies credential and returns its caller. An empty
// credential is errs.ErrUnauthenticated; a bad signature, expired token,
// wrong issuer or unknown subject is errs.ErrInvalidCredential.
func (p *JWTProvider) ResolveCaller(ctx context.Context, credential string) (Caller, error) {
	if credential == "" {
		return Caller{}, fmt.Errorf("auth: no credential: %w", errs.ErrUnauthenticated)
	}

	token, err := p.parser.Parse(credential, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return p.secret, nil
	})
	if err != nil {
		return Caller{}, fmt.Errorf("auth: %v: %w", err, errs.ErrInvalidCredential)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Caller{}, fmt.Errorf("auth: invalid claims: %w", errs.ErrInvalidCredential)
	}
	if !claims.VerifyExpiresAt(time.Now().Unix(), true) {
		return Caller{}, fmt.Errorf("auth: token expired: %w", errs.ErrInvalidCredential)
	}
	if p.issuer != "" && !claims.VerifyIssuer(p.issuer, true) {
		return Caller{}, fmt.Errorf("auth: invalid issuer: %w", errs.ErrInvalidCredential)
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return Caller{}, fmt.Errorf("auth: missing sub: %w", errs.ErrInvalidCredential)
	}
	role, _ := claims["role"].(string)

	if p.users != nil {
		user, err := p.users.GetUser(ctx, sub)
		if errors.Is(err, errs.ErrNotFound) {
			return Caller{}, fmt.Errorf("auth: unknown user %s: %w", sub, errs.ErrInvalidCredential)
		}
		if err != nil {
			return Caller{}, fmt.Errorf("auth: look up %s: %w", sub, err)
		}
		role = user.Role
	}
	if role == "" {
		role = "user"
	}
	return Caller{UserID: sub, Role: role}, nil
}

// Issue mints a token for userID valid for ttl.
func (p *JWTProvider) Issue(userID, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  userID,
		"role": role,
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	}
	if p.issuer != "" {
		claims["iss"] = p.issuer
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign token for %s: %w", userID, err)
	}
	return signed, nil
}
