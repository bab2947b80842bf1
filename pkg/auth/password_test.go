package auth

import "testing"

func TestHashAdminKeyAndCheck(t *testing.T) {
	hash, err := HashAdminKey("s3wer-admin")
	if err != nil {
		t.Fatalf("hash admin key: %v", err)
	}
	if hash == "" {
		t.Fatalf("expected non-empty hash")
	}
	if !CheckAdminKey("s3wer-admin", hash) {
		t.Fatalf("expected bcrypt key check to pass")
	}
	if CheckAdminKey("wrong", hash) {
		t.Fatalf("expected bcrypt key check to fail")
	}
}

func TestCheckAdminKeyPlaintext(t *testing.T) {
	if !CheckAdminKey("dev-key", "dev-key") {
		t.Fatalf("expected plaintext match to pass")
	}
	if CheckAdminKey("dev-key", "other-key") {
		t.Fatalf("expected plaintext mismatch to fail")
	}
	if CheckAdminKey("", "dev-key") {
		t.Fatalf("expected empty presented key to fail")
	}
	if CheckAdminKey("dev-key", "") {
		t.Fatalf("expected empty stored key to fail")
	}
}
