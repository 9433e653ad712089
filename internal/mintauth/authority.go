package mintauth

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"log"

	"github.com/blocto/solana-go-sdk/types"

	"github.com/Subham-Satapathy/lunchpad/internal/protocol"
)

// Authority wraps the service's mint keypair. It is loaded once at startup,
// validated before first use and held for the process lifetime. Only the
// public key ever reaches logs or the wire.
type Authority struct {
	account types.Account
}

// LoadAuthority decodes keypair material in either of the accepted formats:
// a solana-keygen JSON array of 64 byte values, or base64 of the raw 64
// bytes. Anything else is an authority fault and must abort startup.
func LoadAuthority(raw string) (*Authority, error) {
	if raw == "" {
		return nil, protocol.ErrAuthorityFault.Wrapf("mint authority key material is empty")
	}

	keyBytes, err := decodeKeypair(raw)
	if err != nil {
		return nil, protocol.ErrAuthorityFault.Wrap(err)
	}
	if len(keyBytes) != ed25519.PrivateKeySize {
		return nil, protocol.ErrAuthorityFault.Wrapf(
			"unexpected key length: got %d, want %d", len(keyBytes), ed25519.PrivateKeySize)
	}

	acc, err := types.AccountFromBytes(keyBytes)
	if err != nil {
		return nil, protocol.ErrAuthorityFault.Wrapf("restore keypair: %v", err)
	}

	log.Printf("[mintauth] mint authority loaded pubkey=%s", acc.PublicKey.ToBase58())

	return &Authority{account: acc}, nil
}

// Account exposes the keypair for transaction signing.
func (a *Authority) Account() types.Account { return a.account }

// PublicKey returns the authority's base58 public key.
func (a *Authority) PublicKey() string { return a.account.PublicKey.ToBase58() }

func decodeKeypair(raw string) ([]byte, error) {
	var ints []int
	if err := json.Unmarshal([]byte(raw), &ints); err == nil {
		out := make([]byte, len(ints))
		for i, v := range ints {
			if v < 0 || v > 255 {
				return nil, protocol.ErrAuthorityFault.Wrapf("key byte out of range at %d: %d", i, v)
			}
			out[i] = byte(v)
		}
		return out, nil
	}

	out, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, protocol.ErrAuthorityFault.Wrapf("key material is neither a JSON byte array nor base64")
	}
	return out, nil
}
