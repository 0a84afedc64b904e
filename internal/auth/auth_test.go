package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestIssueAndVerify(t *testing.T) {
	t.Parallel()

	issuer := NewIssuer("super-secret", time.Hour, 24*time.Hour)
	userID := uuid.New()

	pair, err := issuer.IssuePair(userID)
	if err != nil {
		t.Fatalf("IssuePair error: %v", err)
	}
	if pair.TokenType != "bearer" {
		t.Fatalf("token type = %q", pair.TokenType)
	}

	got, err := issuer.Verify(pair.AccessToken, TokenAccess)
	if err != nil {
		t.Fatalf("Verify access error: %v", err)
	}
	if got != userID {
		t.Fatalf("subject mismatch: got %s want %s", got, userID)
	}

	got, err = issuer.Verify(pair.RefreshToken, TokenRefresh)
	if err != nil || got != userID {
		t.Fatalf("Verify refresh: %s, %v", got, err)
	}
}

func TestVerify_WrongType(t *testing.T) {
	t.Parallel()

	issuer := NewIssuer("secret", time.Hour, time.Hour)
	pair, err := issuer.IssuePair(uuid.New())
	if err != nil {
		t.Fatalf("IssuePair error: %v", err)
	}

	if _, err := issuer.Verify(pair.AccessToken, TokenRefresh); !errors.Is(err, ErrTokenType) {
		t.Fatalf("expected ErrTokenType, got %v", err)
	}
	if _, err := issuer.Verify(pair.RefreshToken, TokenAccess); !errors.Is(err, ErrTokenType) {
		t.Fatalf("expected ErrTokenType, got %v", err)
	}
}

func TestVerify_Expired(t *testing.T) {
	t.Parallel()

	issuer := NewIssuer("secret", time.Minute, time.Hour)
	issued := time.Now().Add(-2 * time.Minute)
	issuer.now = func() time.Time { return issued }
	token, err := issuer.Issue(uuid.New(), TokenAccess)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	issuer.now = time.Now
	if _, err := issuer.Verify(token, TokenAccess); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestVerify_BadSignatureAndGarbage(t *testing.T) {
	t.Parallel()

	token, err := NewIssuer("one", time.Hour, time.Hour).Issue(uuid.New(), TokenAccess)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	other := NewIssuer("two", time.Hour, time.Hour)
	if _, err := other.Verify(token, TokenAccess); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
	if _, err := other.Verify("not-a-jwt", TokenAccess); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestPasswordHashing(t *testing.T) {
	t.Parallel()

	digest, err := HashPassword("hunter22")
	if err != nil {
		t.Fatalf("HashPassword error: %v", err)
	}
	if !VerifyPassword("hunter22", digest) {
		t.Fatalf("expected password to verify")
	}
	if VerifyPassword("hunter23", digest) {
		t.Fatalf("expected wrong password to fail")
	}

	long := strings.Repeat("a", MaxPasswordBytes+1)
	if _, err := HashPassword(long); !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("expected ErrPasswordTooLong, got %v", err)
	}
	if VerifyPassword(long, digest) {
		t.Fatalf("over-long password must not verify")
	}
}
