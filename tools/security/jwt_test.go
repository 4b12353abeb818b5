package security

import (
	"testing"
	"time"
)

func TestGenerateVerifyRoundTrip(t *testing.T) {
	opts := DefaultOptions([]byte("test-secret"))

	token, exp, err := Generate(opts, "alice")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !exp.After(time.Now()) {
		t.Errorf("expiry %v not in the future", exp)
	}

	sub, err := Verify(opts, token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if sub != "alice" {
		t.Errorf("subject = %q, want alice", sub)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	token, _, err := Generate(DefaultOptions([]byte("secret-a")), "alice")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := Verify(DefaultOptions([]byte("secret-b")), token); err == nil {
		t.Fatalf("token signed with another key verified")
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	opts := DefaultOptions([]byte("test-secret"))
	opts.TTL = time.Millisecond

	token, _, err := Generate(opts, "alice")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	// exp claims have second precision; wait past the boundary
	time.Sleep(1200 * time.Millisecond)
	if _, err := Verify(opts, token); err == nil {
		t.Fatalf("expired token verified")
	}
}

func TestUnsupportedAlg(t *testing.T) {
	opts := Options{Secret: []byte("x"), Alg: "RS256"}
	if _, _, err := Generate(opts, "alice"); err == nil {
		t.Fatalf("asymmetric alg should be rejected")
	}
}
