package backend

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	pkgerrors "github.com/safliix/console-backend/pkg/errors"
)

func signedToken(t *testing.T, expiresAt time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "admin-1",
		"exp": expiresAt.Unix(),
	})
	signed, err := tok.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return signed
}

func TestStaticTokenProviderPassesLiveJWT(t *testing.T) {
	t.Parallel()

	provider := NewStaticTokenProvider(signedToken(t, time.Now().Add(time.Hour)))
	token, err := provider.Token(context.Background())
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	if token == "" {
		t.Fatal("expected a token")
	}
}

func TestStaticTokenProviderRejectsExpiredJWT(t *testing.T) {
	t.Parallel()

	provider := NewStaticTokenProvider(signedToken(t, time.Now().Add(-time.Minute)))
	_, err := provider.Token(context.Background())
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected session expired, got %v", err)
	}
}

func TestStaticTokenProviderPassesOpaqueToken(t *testing.T) {
	t.Parallel()

	provider := NewStaticTokenProvider("opaque-session-credential")
	token, err := provider.Token(context.Background())
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	if token != "opaque-session-credential" {
		t.Fatalf("unexpected token %q", token)
	}
}

func TestStaticTokenProviderRequiresCredential(t *testing.T) {
	t.Parallel()

	_, err := NewStaticTokenProvider("   ").Token(context.Background())
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}
