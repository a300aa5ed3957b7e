package backend

import (
	"context"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	pkgerrors "github.com/safliix/console-backend/pkg/errors"
)

// TokenProvider supplies the bearer credential per call. Sessions live in the
// external identity broker; this interface only hands credentials through.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// TokenFunc adapts a function to TokenProvider.
type TokenFunc func(ctx context.Context) (string, error)

func (f TokenFunc) Token(ctx context.Context) (string, error) { return f(ctx) }

// StaticTokenProvider holds a fixed bearer token. When the token parses as a
// JWT it is rejected locally once expired, so a dead session fails before the
// network call instead of after it. Opaque tokens pass through untouched.
type StaticTokenProvider struct {
	token string
	now   func() time.Time
}

func NewStaticTokenProvider(token string) *StaticTokenProvider {
	return &StaticTokenProvider{token: strings.TrimSpace(token), now: time.Now}
}

func (p *StaticTokenProvider) Token(ctx context.Context) (string, error) {
	if p.token == "" {
		return "", pkgerrors.New(pkgerrors.CodeUnauthorized, "no session credential configured")
	}

	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(p.token, claims); err == nil {
		exp, err := claims.GetExpirationTime()
		if err == nil && exp != nil && exp.Before(p.now()) {
			return "", pkgerrors.New(pkgerrors.CodeUnauthorized, "session expired")
		}
	}
	return p.token, nil
}
