// Package cursor provides opaque pagination tokens for ledger pages.
package cursor

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Cursor marks a position in the descending ledger walk. The next page
// holds entries with sequence numbers strictly below Seq.
type Cursor struct {
	// Seq is the sequence number of the last entry the previous page returned.
	Seq int64 `json:"seq"`
	// FilterHash invalidates tokens when the filter changes between pages.
	FilterHash string `json:"filter_hash,omitempty"`
}

// Encode encodes a cursor to an opaque base64 string.
func Encode(c Cursor) (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("marshal cursor: %w", err)
	}
	return base64.URLEncoding.EncodeToString(data), nil
}

// Decode decodes an opaque base64 string to a cursor.
// Returns an error if the token is invalid or malformed.
func Decode(token string) (Cursor, error) {
	if token == "" {
		return Cursor{}, fmt.Errorf("empty token")
	}

	data, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, fmt.Errorf("decode base64: %w", err)
	}

	var c Cursor
	if err := json.Unmarshal(data, &c); err != nil {
		return Cursor{}, fmt.Errorf("unmarshal cursor: %w", err)
	}

	if c.Seq <= 0 {
		return Cursor{}, fmt.Errorf("invalid cursor position: %d", c.Seq)
	}

	return c, nil
}

// HashFilter computes a short hash of the filter fingerprint for token
// validation. Returns empty string for an empty fingerprint.
func HashFilter(filter string) string {
	if filter == "" {
		return ""
	}
	h := sha256.Sum256([]byte(filter))
	return hex.EncodeToString(h[:8])
}

// ValidateFilterHash checks that the token was minted under the filter
// that is active now. Returns an error if the filter has changed since
// the cursor was created.
func ValidateFilterHash(c Cursor, currentFilter string) error {
	if c.FilterHash != HashFilter(currentFilter) {
		return fmt.Errorf("filter changed since cursor was created")
	}
	return nil
}
