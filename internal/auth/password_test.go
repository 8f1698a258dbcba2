// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package auth

import (
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func testHasher(t *testing.T, algorithm string) *Hasher {
	t.Helper()
	h, err := NewHasher(algorithm, bcrypt.MinCost)
	if err != nil {
		t.Fatalf("NewHasher(%q): %v", algorithm, err)
	}
	return h
}

func TestHasher_RoundTrip(t *testing.T) {
	for _, algorithm := range []string{AlgorithmBcrypt, AlgorithmArgon2id} {
		t.Run(algorithm, func(t *testing.T) {
			h := testHasher(t, algorithm)

			hash, err := h.Hash("changeme")
			if err != nil {
				t.Fatalf("Hash error: %v", err)
			}
			if hash == "" || hash == "changeme" {
				t.Fatalf("Hash returned %q", hash)
			}

			valid, err := h.Verify("changeme", hash)
			if err != nil {
				t.Fatalf("Verify error: %v", err)
			}
			if !valid {
				t.Fatal("Correct password was rejected")
			}

			valid, err = h.Verify("wrongpassword", hash)
			if err != nil {
				t.Fatalf("Verify error: %v", err)
			}
			if valid {
				t.Fatal("Wrong password was accepted")
			}
		})
	}
}

func TestHasher_Salted(t *testing.T) {
	h := testHasher(t, AlgorithmBcrypt)
	a, _ := h.Hash("same-password")
	b, _ := h.Hash("same-password")
	if a == b {
		t.Error("two hashes of the same password must differ")
	}
}

func TestHasher_VerifiesOtherAlgorithm(t *testing.T) {
	argon := testHasher(t, AlgorithmArgon2id)
	bc := testHasher(t, AlgorithmBcrypt)

	hash, err := argon.Hash("changeme")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	valid, err := bc.Verify("changeme", hash)
	if err != nil || !valid {
		t.Fatalf("bcrypt hasher should verify argon2id hash: valid=%v err=%v", valid, err)
	}
	if !bc.NeedsRehash(hash) {
		t.Error("argon2id hash should need rehash under bcrypt configuration")
	}
}

func TestHasher_DBHash(t *testing.T) {
	// argon2id hash with non-default parameters
	dbHash := "$argon2id$v=19$m=65536,t=1,p=4$mucMvOaS6lZ2LWNS1OEFKw$UYEWv8cvCOO6l2zGeqv3JPVe1nyy0x9GXBfYEuDM544"
	h := testHasher(t, AlgorithmArgon2id)

	valid, err := h.Verify("changeme", dbHash)
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if !valid {
		t.Fatal("DB hash rejected correct password 'changeme'")
	}
	if !h.NeedsRehash(dbHash) {
		t.Error("hash with old parameters should need rehash")
	}
}

func TestHasher_InvalidHash(t *testing.T) {
	h := testHasher(t, AlgorithmBcrypt)
	for _, hash := range []string{"", "plain", "$argon2id$broken", "$md5$abc"} {
		if _, err := h.Verify("x", hash); err == nil {
			t.Errorf("Verify(%q) expected error", hash)
		}
	}
}

func TestHasher_BcryptCostRehash(t *testing.T) {
	low := testHasher(t, AlgorithmBcrypt)
	hash, err := low.Hash("changeme")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if low.NeedsRehash(hash) {
		t.Error("hash produced with current cost should not need rehash")
	}

	higher, err := NewHasher(AlgorithmBcrypt, bcrypt.MinCost+1)
	if err != nil {
		t.Fatalf("NewHasher: %v", err)
	}
	if !higher.NeedsRehash(hash) {
		t.Error("hash with lower cost should need rehash")
	}
}

func TestHasher_PasswordTooLong(t *testing.T) {
	h := testHasher(t, AlgorithmBcrypt)
	if _, err := h.Hash(strings.Repeat("a", 73)); err != ErrPasswordTooLong {
		t.Errorf("Hash error = %v, want ErrPasswordTooLong", err)
	}
}

func TestNewHasher_Invalid(t *testing.T) {
	if _, err := NewHasher("md5", 10); err == nil {
		t.Error("expected error for unsupported algorithm")
	}
	if _, err := NewHasher(AlgorithmBcrypt, 99); err == nil {
		t.Error("expected error for out of range cost")
	}
	h, err := NewHasher("", 0)
	if err != nil {
		t.Fatalf("NewHasher defaults: %v", err)
	}
	if h.Algorithm() != AlgorithmBcrypt {
		t.Errorf("default algorithm = %q, want bcrypt", h.Algorithm())
	}
}

func TestHasher_VerifyDummy(t *testing.T) {
	h := testHasher(t, AlgorithmBcrypt)
	// Must not panic and must be callable repeatedly.
	h.VerifyDummy("whatever")
	h.VerifyDummy("whatever")
	if h.dummyHash == "" {
		t.Error("dummy hash should be initialized")
	}
}

func TestNeedsRehash_Argon2(t *testing.T) {
	hash, err := HashArgon2("changeme")
	if err != nil {
		t.Fatalf("HashArgon2 error: %v", err)
	}
	if NeedsRehash(hash) {
		t.Error("fresh hash should not need rehash")
	}
	if !NeedsRehash("$2a$10$abcdefghijklmnopqrstuv") {
		t.Error("non-argon2 hash should need rehash")
	}
}
