package core

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// InfoHash is the 20-byte SHA-1 of a torrent's bencoded info dictionary. It
// is the remote's authoritative identifier for a torrent's payload and is
// always stored and compared as uppercase hex, per the remote's convention.
type InfoHash [20]byte

// NewInfoHashFromHex converts a hexadecimal string into an InfoHash. Accepts
// either case; storage and String() always render uppercase.
func NewInfoHashFromHex(s string) (InfoHash, error) {
	if len(s) != 40 {
		return InfoHash{}, fmt.Errorf("invalid info hash: expected 40 characters, got %d", len(s))
	}
	var h InfoHash
	n, err := hex.Decode(h[:], []byte(s))
	if err != nil {
		return InfoHash{}, fmt.Errorf("invalid hex: %s", err)
	}
	if n != 20 {
		return InfoHash{}, fmt.Errorf("invariant violation: expected 20 bytes, got %d", n)
	}
	return h, nil
}

// Bytes converts h to raw bytes.
func (h InfoHash) Bytes() []byte {
	return h[:]
}

// Hex converts h into its canonical uppercase hexadecimal string.
func (h InfoHash) Hex() string {
	return strings.ToUpper(hex.EncodeToString(h[:]))
}

func (h InfoHash) String() string {
	return h.Hex()
}

// MarshalJSON renders the info hash as its uppercase hex string.
func (h InfoHash) MarshalJSON() ([]byte, error) {
	return []byte(`"` + h.Hex() + `"`), nil
}

// UnmarshalJSON parses an info hash from its hex string form.
func (h *InfoHash) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*h = InfoHash{}
		return nil
	}
	parsed, err := NewInfoHashFromHex(s)
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}
