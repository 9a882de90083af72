package internal

import (
	"strings"
	"testing"
)

func TestSeriesIDRoundTrip(t *testing.T) {
	sid, err := NewSeriesID()
	if err != nil {
		t.Fatalf("NewSeriesID failed: %v", err)
	}

	encoded := sid.String()
	if strings.ContainsAny(encoded, "+/=") {
		t.Fatalf("series id %q is not base64url without padding", encoded)
	}

	parsed, err := ParseSeriesID(encoded)
	if err != nil {
		t.Fatalf("ParseSeriesID failed: %v", err)
	}
	if parsed != sid {
		t.Fatalf("round trip mismatch: %v != %v", parsed, sid)
	}
}

func TestParseSeriesIDRejectsBadInput(t *testing.T) {
	for _, input := range []string{"", "!!!", "dG9vLXNob3J0"} {
		if _, err := ParseSeriesID(input); err == nil {
			t.Fatalf("ParseSeriesID(%q) accepted bad input", input)
		}
	}
}

func TestTokenEncodeDecodeRoundTrip(t *testing.T) {
	sid, err := NewSeriesID()
	if err != nil {
		t.Fatalf("NewSeriesID failed: %v", err)
	}
	secret, err := NewTokenSecret()
	if err != nil {
		t.Fatalf("NewTokenSecret failed: %v", err)
	}

	encoded, err := EncodeToken(sid.String(), secret)
	if err != nil {
		t.Fatalf("EncodeToken failed: %v", err)
	}

	gotID, gotSecret, err := DecodeToken(encoded)
	if err != nil {
		t.Fatalf("DecodeToken failed: %v", err)
	}
	if gotID != sid.String() {
		t.Fatalf("series id mismatch: %q != %q", gotID, sid.String())
	}
	if gotSecret != secret {
		t.Fatal("secret mismatch after round trip")
	}
}

func TestDecodeTokenRejectsWrongSize(t *testing.T) {
	for _, input := range []string{"", "AAAA", "%%%"} {
		if _, _, err := DecodeToken(input); err == nil {
			t.Fatalf("DecodeToken(%q) accepted bad input", input)
		}
	}
}

func TestHashTokenSecretMatchesHashTokenBytes(t *testing.T) {
	secret, err := NewTokenSecret()
	if err != nil {
		t.Fatalf("NewTokenSecret failed: %v", err)
	}

	if HashTokenSecret(secret) != HashTokenBytes(secret[:]) {
		t.Fatal("the two hash forms must agree on identical input")
	}
}

func TestTokenSecretsAreUnique(t *testing.T) {
	a, err := NewTokenSecret()
	if err != nil {
		t.Fatalf("NewTokenSecret failed: %v", err)
	}
	b, err := NewTokenSecret()
	if err != nil {
		t.Fatalf("NewTokenSecret failed: %v", err)
	}
	if a == b {
		t.Fatal("two fresh secrets collided")
	}
}
