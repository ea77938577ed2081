package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"noticebot/internal/notice"
)

// Fingerprint returns the sha256 hex digest of the canonical JSON encoding
// of notices. Keys are emitted in sorted order (time, type, values) and a nil
// values list is encoded as [] so structurally equal sequences always agree.
func Fingerprint(notices []notice.Notice) string {
	canon := make([]notice.Notice, len(notices))
	for i, n := range notices {
		if n.Values == nil {
			n.Values = []string{}
		}
		canon[i] = n
	}
	// Marshal of plain strings cannot fail.
	b, _ := json.Marshal(canon)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
