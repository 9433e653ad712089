package mintauth

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"errors"
	"testing"

	"github.com/Subham-Satapathy/lunchpad/internal/protocol"
)

func testKeypairBytes(t *testing.T) []byte {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate keypair: %v", err)
	}
	return priv
}

func TestLoadAuthorityFromJSONArray(t *testing.T) {
	// The keygen tooling stores keypairs as a JSON array of 64 ints.
	key := testKeypairBytes(t)
	ints := make([]int, len(key))
	for i, b := range key {
		ints[i] = int(b)
	}
	raw, err := json.Marshal(ints)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	auth, err := LoadAuthority(string(raw))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if auth.PublicKey() == "" {
		t.Fatal("expected a public key")
	}
}

func TestLoadAuthorityFromBase64(t *testing.T) {
	raw := base64.StdEncoding.EncodeToString(testKeypairBytes(t))

	auth, err := LoadAuthority(raw)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if auth.PublicKey() == "" {
		t.Fatal("expected a public key")
	}
}

func TestLoadAuthorityRejectsBadMaterial(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"short array", "[1,2,3]"},
		{"byte out of range", "[300,1,2]"},
		{"garbage", "not a key"},
		{"short base64", base64.StdEncoding.EncodeToString([]byte("too short"))},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadAuthority(tc.raw)
			if !errors.Is(err, protocol.ErrAuthorityFault) {
				t.Fatalf("expected AuthorityFault, got %v", err)
			}
		})
	}
}
