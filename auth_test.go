package main

import (
	"errors"
	"strings"
	"testing"
)

func newTestAuth(t *testing.T) (*Auth, *DB) {
	t.Helper()
	db := openTestDB(t)
	return NewAuth(db), db
}

func TestRegisterAndLogin(t *testing.T) {
	a, _ := newTestAuth(t)
	id, token, err := a.Register("alice", "secret1")
	if err != nil {
		t.Fatal(err)
	}
	if id <= 0 || token == "" {
		t.Fatalf("register should return id and token, got %d %q", id, token)
	}

	pid, name, err := a.ValidateToken(token)
	if err != nil {
		t.Fatal(err)
	}
	if pid != id || name != "alice" {
		t.Errorf("token should carry identity, got %d %q", pid, name)
	}

	lid, ltoken, err := a.Login("alice", "secret1", "1.2.3.4")
	if err != nil {
		t.Fatal(err)
	}
	if lid != id || ltoken == "" {
		t.Errorf("login should return the same account, got %d", lid)
	}

	if _, _, err := a.Login("alice", "wrong", "1.2.3.4"); !errors.Is(err, errBadCredentials) {
		t.Errorf("wrong password should be errBadCredentials, got %v", err)
	}
	if _, _, err := a.Login("nobody", "secret1", "1.2.3.4"); !errors.Is(err, errBadCredentials) {
		t.Errorf("unknown account should be errBadCredentials, got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	a, _ := newTestAuth(t)
	if _, _, err := a.Register("a", "secret1"); err == nil {
		t.Error("one-char username should be rejected")
	}
	if _, _, err := a.Register(strings.Repeat("x", 20), "secret1"); err == nil {
		t.Error("overlong username should be rejected")
	}
	if _, _, err := a.Register("alice", "short"); err == nil {
		t.Error("short password should be rejected")
	}
	if _, _, err := a.Register("Guest_1234", "secret1"); err == nil {
		t.Error("guest name prefix is reserved")
	}
	if _, _, err := a.Register("alice", "secret1"); err != nil {
		t.Fatal(err)
	}
	if _, _, err := a.Register("alice", "secret2"); err == nil {
		t.Error("duplicate username should be rejected")
	}
}

func TestLoginThrottle(t *testing.T) {
	a, _ := newTestAuth(t)
	a.Register("alice", "secret1")
	for i := 0; i < maxLoginAttempts; i++ {
		a.Login("alice", "wrong", "9.9.9.9")
	}
	if _, _, err := a.Login("alice", "secret1", "9.9.9.9"); !errors.Is(err, errLoginThrottled) {
		t.Errorf("hammered IP should throttle, got %v", err)
	}
	// Other IPs are unaffected
	if _, _, err := a.Login("alice", "secret1", "8.8.8.8"); err != nil {
		t.Errorf("throttle is per IP, got %v", err)
	}
}

func TestTokenRejectsTampering(t *testing.T) {
	a, _ := newTestAuth(t)
	_, token, err := a.Register("alice", "secret1")
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := a.ValidateToken(token + "x"); err == nil {
		t.Error("tampered signature should fail")
	}
	if _, _, err := a.ValidateToken("not.a.token"); err == nil {
		t.Error("garbage token should fail")
	}

	// A token minted under a different secret is rejected
	other := &Auth{secret: []byte("0123456789abcdef0123456789abcdef"), rateMap: map[string]*loginRate{}}
	foreign, err := other.mintToken(1, "eve")
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := a.ValidateToken(foreign); err == nil {
		t.Error("foreign-secret token should fail")
	}
}

func TestSecretPersistsAcrossRestart(t *testing.T) {
	db := openTestDB(t)
	a1 := NewAuth(db)
	_, token, err := a1.Register("alice", "secret1")
	if err != nil {
		t.Fatal(err)
	}
	a2 := NewAuth(db)
	if _, _, err := a2.ValidateToken(token); err != nil {
		t.Errorf("token should survive an auth restart, got %v", err)
	}
}

func TestGenerateGuestName(t *testing.T) {
	name := GenerateGuestName()
	if !strings.HasPrefix(name, "Guest_") || len(name) != len("Guest_")+4 {
		t.Errorf("unexpected guest name %q", name)
	}
}
