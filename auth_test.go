package lilac

import (
	"errors"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

func newTestAuthenticator(t *testing.T) *Authenticator {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	return NewAuthenticator(testUsername, string(hash), []byte("secret"), 10*time.Minute)
}

func TestAuthenticate(t *testing.T) {
	au := newTestAuthenticator(t)

	tests := []struct {
		name     string
		username string
		password string
		ok       bool
	}{
		{"exact pair", testUsername, testPassword, true},
		{"wrong password", testUsername, testPassword + "x", false},
		{"wrong username", "Admin", testPassword, false},
		{"empty username", "", testPassword, false},
		{"empty password", testUsername, "", false},
		{"both empty", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := au.Authenticate(tt.username, tt.password)
			if tt.ok {
				if err != nil {
					t.Fatalf("Authenticate: %v", err)
				}
				if u.Username != testUsername || !u.IsAdmin {
					t.Errorf("user = %+v", u)
				}
				return
			}
			if !errors.Is(err, ErrInvalidCredentials) {
				t.Errorf("err = %v, want ErrInvalidCredentials", err)
			}
		})
	}
}

func TestAuthenticateWithoutConfiguredUser(t *testing.T) {
	au := NewAuthenticator("", "", []byte("secret"), time.Minute)
	if _, err := au.Authenticate("", ""); err == nil {
		t.Fatal("expected failure when no admin is configured")
	}
}

func TestTokenRoundTrip(t *testing.T) {
	au := newTestAuthenticator(t)
	token, err := au.IssueToken(User{Username: testUsername, IsAdmin: true})
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	u, err := au.VerifyToken(token)
	if err != nil {
		t.Fatalf("VerifyToken: %v", err)
	}
	if u.Username != testUsername || !u.IsAdmin {
		t.Errorf("user = %+v", u)
	}
}

func TestTokenExpires(t *testing.T) {
	au := newTestAuthenticator(t)
	issued := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	au.now = func() time.Time { return issued }
	token, err := au.IssueToken(User{Username: testUsername, IsAdmin: true})
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	au.now = func() time.Time { return issued.Add(9 * time.Minute) }
	if _, err := au.VerifyToken(token); err != nil {
		t.Fatalf("token rejected before expiry: %v", err)
	}
	au.now = func() time.Time { return issued.Add(11 * time.Minute) }
	if _, err := au.VerifyToken(token); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestTamperedTokenRejected(t *testing.T) {
	au := newTestAuthenticator(t)
	token, err := au.IssueToken(User{Username: testUsername, IsAdmin: true})
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	other := NewAuthenticator(testUsername, "", []byte("another secret"), time.Minute)
	forged, err := other.IssueToken(User{Username: "mallory", IsAdmin: true})
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	parts := strings.Split(token, ".")
	forgedParts := strings.Split(forged, ".")
	tests := map[string]string{
		"foreign secret":  forged,
		"swapped payload": parts[0] + "." + forgedParts[1] + "." + parts[2],
		"alg none":        "eyJhbGciOiJub25lIiwidHlwIjoiSldUIn0." + parts[1] + ".",
		"garbage":         "abc",
	}
	for name, tok := range tests {
		if _, err := au.VerifyToken(tok); err == nil {
			t.Errorf("%s: expected rejection", name)
		}
	}
}

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte("s3cret")); err != nil {
		t.Errorf("hash does not match: %v", err)
	}
	if cost, _ := bcrypt.Cost([]byte(hash)); cost != bcryptCost {
		t.Errorf("cost = %d, want %d", cost, bcryptCost)
	}
}
