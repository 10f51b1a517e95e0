package auth

import (
	"errors"
	"testing"
	"time"
)

func newTestManager(t *testing.T, ttl time.Duration) *Manager {
	t.Helper()
	m, err := NewManager("test-secret", ttl)
	if err != nil {
		t.Fatalf("NewManager() failed: %v", err)
	}
	return m
}

func TestNewManagerRequiresSecret(t *testing.T) {
	if _, err := NewManager("", 0); err == nil {
		t.Error("NewManager() should reject an empty secret")
	}
}

func TestPasswordHashing(t *testing.T) {
	m := newTestManager(t, 0)

	hash, err := m.HashPassword("s3cret")
	if err != nil {
		t.Fatalf("HashPassword() failed: %v", err)
	}
	if hash == "s3cret" {
		t.Fatal("hash should not equal the plaintext password")
	}

	if !m.VerifyPassword("s3cret", hash) {
		t.Error("VerifyPassword() should accept the original password")
	}
	if m.VerifyPassword("wrong", hash) {
		t.Error("VerifyPassword() should reject a wrong password")
	}
}

func TestTokenRoundTrip(t *testing.T) {
	m := newTestManager(t, time.Hour)

	token, err := m.IssueToken("user-1", "tenant-1", "admin")
	if err != nil {
		t.Fatalf("IssueToken() failed: %v", err)
	}

	claims, err := m.ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken() failed: %v", err)
	}
	if claims.Subject != "user-1" {
		t.Errorf("Subject = %q, want %q", claims.Subject, "user-1")
	}
	if claims.TenantID != "tenant-1" {
		t.Errorf("TenantID = %q, want %q", claims.TenantID, "tenant-1")
	}
	if claims.Role != "admin" {
		t.Errorf("Role = %q, want %q", claims.Role, "admin")
	}
}

func TestParseTokenRejectsTampering(t *testing.T) {
	m := newTestManager(t, time.Hour)
	other := newTestManager(t, time.Hour)
	other.secret = []byte("different-secret")

	token, err := other.IssueToken("user-1", "tenant-1", "admin")
	if err != nil {
		t.Fatalf("IssueToken() failed: %v", err)
	}

	if _, err := m.ParseToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("ParseToken(foreign token) error = %v, want ErrInvalidToken", err)
	}
	if _, err := m.ParseToken("not-a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("ParseToken(garbage) error = %v, want ErrInvalidToken", err)
	}
}

func TestParseTokenRejectsExpired(t *testing.T) {
	m := newTestManager(t, time.Millisecond)

	token, err := m.IssueToken("user-1", "tenant-1", "admin")
	if err != nil {
		t.Fatalf("IssueToken() failed: %v", err)
	}

	time.Sleep(10 * time.Millisecond)

	if _, err := m.ParseToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("ParseToken(expired) error = %v, want ErrInvalidToken", err)
	}
}
