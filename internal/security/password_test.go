package security

import (
	"strings"
	"testing"
)

func TestHashPasswordDistinctDigests(t *testing.T) {
	a, err := HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatal(err)
	}
	b, err := HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Fatal("same password hashed to identical digest twice")
	}
	if !strings.HasPrefix(a, "$argon2id$v=19$") {
		t.Fatalf("unexpected digest format: %s", a)
	}
}

func TestVerifyPassword(t *testing.T) {
	digest, err := HashPassword("s3cret-pass")
	if err != nil {
		t.Fatal(err)
	}

	ok, err := VerifyPassword("s3cret-pass", digest)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("correct password rejected")
	}

	ok, err = VerifyPassword("wrong-pass", digest)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("wrong password accepted")
	}
}

func TestVerifyPasswordMalformedHash(t *testing.T) {
	for _, bad := range []string{
		"",
		"plaintext",
		"$argon2id$v=19$t=3,m=65536$onlyfiveparts",
		"$bcrypt$v=19$t=3,m=65536,p=2$c2FsdA$aGFzaA",
	} {
		if _, err := VerifyPassword("x", bad); err == nil {
			t.Errorf("malformed hash %q accepted", bad)
		}
	}
}
