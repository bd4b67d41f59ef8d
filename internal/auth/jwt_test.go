package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/giacomoarchidi/tutoring-platform/internal/model"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	issuer, err := NewTokenIssuer("secret", "test-issuer", "HS256", time.Minute)
	if err != nil {
		t.Fatalf("issuer error: %v", err)
	}

	userID := uuid.New()
	token, err := issuer.Issue(userID, model.RoleTutor)
	if err != nil {
		t.Fatalf("token error: %v", err)
	}

	claims, err := issuer.Parse(token)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if claims.Role != "tutor" {
		t.Fatalf("unexpected role claim %q", claims.Role)
	}
	parsed, err := claims.UserID()
	if err != nil || parsed != userID {
		t.Fatalf("unexpected subject claim %q", claims.Subject)
	}
}

func TestExpiredToken(t *testing.T) {
	issuer, err := NewTokenIssuer("secret", "test-issuer", "HS256", -time.Minute)
	if err != nil {
		t.Fatalf("issuer error: %v", err)
	}

	token, err := issuer.Issue(uuid.New(), model.RoleStudent)
	if err != nil {
		t.Fatalf("token error: %v", err)
	}

	if _, err := issuer.Parse(token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestTokenWrongSecret(t *testing.T) {
	issuer, err := NewTokenIssuer("secret", "test-issuer", "HS256", time.Minute)
	if err != nil {
		t.Fatalf("issuer error: %v", err)
	}
	other, err := NewTokenIssuer("other-secret", "test-issuer", "HS256", time.Minute)
	if err != nil {
		t.Fatalf("issuer error: %v", err)
	}

	token, err := issuer.Issue(uuid.New(), model.RoleStudent)
	if err != nil {
		t.Fatalf("token error: %v", err)
	}

	if _, err := other.Parse(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
	if _, err := issuer.Parse("not-a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for malformed token, got %v", err)
	}
}

func TestTokenWrongIssuer(t *testing.T) {
	issuer, err := NewTokenIssuer("secret", "issuer-a", "HS256", time.Minute)
	if err != nil {
		t.Fatalf("issuer error: %v", err)
	}
	other, err := NewTokenIssuer("secret", "issuer-b", "HS256", time.Minute)
	if err != nil {
		t.Fatalf("issuer error: %v", err)
	}

	token, err := issuer.Issue(uuid.New(), model.RoleStudent)
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	if _, err := other.Parse(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestUnsupportedAlgorithm(t *testing.T) {
	if _, err := NewTokenIssuer("secret", "test-issuer", "RS256", time.Minute); err == nil {
		t.Fatalf("expected error for non-HMAC algorithm")
	}
	if _, err := NewTokenIssuer("", "test-issuer", "HS256", time.Minute); err == nil {
		t.Fatalf("expected error for empty secret")
	}
}
