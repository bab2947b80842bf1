package servicetoken

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestSignerVerifierRoundTrip(t *testing.T) {
	signer, err := NewSigner("game-server", testSecret, 2*time.Second)
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	verifier, err := NewVerifier("barker", testSecret, []string{"game-server"}, time.Second)
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	token, err := signer.Sign("barker")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	claims, err := verifier.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Issuer != "game-server" {
		t.Fatalf("unexpected issuer: %s", claims.Issuer)
	}
	if claims.ID == "" {
		t.Fatalf("expected jti")
	}
}

func TestSignerRejectsShortSecret(t *testing.T) {
	if _, err := NewSigner("game-server", "tooshort", time.Minute); err == nil {
		t.Fatalf("expected short secret to fail")
	}
}

func TestVerifierRejectsWrongAudience(t *testing.T) {
	signer, _ := NewSigner("game-server", testSecret, time.Minute)
	verifier, _ := NewVerifier("replay-service", testSecret, []string{"game-server"}, time.Second)
	token, _ := signer.Sign("barker")
	if _, err := verifier.Verify(token); err == nil {
		t.Fatalf("expected audience mismatch")
	}
}

func TestVerifierRejectsUnknownIssuer(t *testing.T) {
	signer, _ := NewSigner("rogue-service", testSecret, time.Minute)
	verifier, _ := NewVerifier("barker", testSecret, []string{"game-server"}, time.Second)
	token, _ := signer.Sign("barker")
	if _, err := verifier.Verify(token); err == nil {
		t.Fatalf("expected unknown issuer to fail")
	}
}

func TestVerifierRejectsWrongSecret(t *testing.T) {
	signer, _ := NewSigner("game-server", testSecret, time.Minute)
	verifier, _ := NewVerifier("barker", strings.Repeat("x", 32), []string{"game-server"}, time.Second)
	token, _ := signer.Sign("barker")
	if _, err := verifier.Verify(token); err == nil {
		t.Fatalf("expected signature mismatch")
	}
}

func TestVerifierRejectsExpiredToken(t *testing.T) {
	verifier, _ := NewVerifier("barker", testSecret, []string{"game-server"}, time.Millisecond)
	now := time.Now().UTC().Add(-time.Hour)
	claims := jwt.RegisteredClaims{
		Issuer:    "game-server",
		Subject:   "game-server",
		Audience:  jwt.ClaimStrings{"barker"},
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
		ID:        "jti-expired",
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if _, err := verifier.Verify(token); err == nil {
		t.Fatalf("expected expired token to fail")
	}
}

func TestBearerToken(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer abc")
	token, ok := BearerToken(req)
	if !ok || token != "abc" {
		t.Fatalf("expected bearer token")
	}
	req.Header.Set("Authorization", "Basic abc")
	if _, ok := BearerToken(req); ok {
		t.Fatalf("expected non-bearer header to be rejected")
	}
}
