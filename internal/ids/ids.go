// Package ids generates unique, sortable-by-creation identifiers for every
// aggregate in the system. Each entity kind gets its own prefix so IDs are
// self-describing in logs and URLs.
package ids

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// Kind is a short, stable prefix identifying which aggregate an ID belongs to.
type Kind string

const (
	KindJob    Kind = "job"
	KindMedia  Kind = "media"
	KindBucket Kind = "bucket"
	KindMatch  Kind = "match"
)

// New generates a new identifier of the form "<kind>-<unix-seconds>-<hex>".
// Falls back to timestamp-only if crypto/rand is unavailable.
func New(kind Kind) string {
	timestamp := time.Now().Unix()
	random := make([]byte, 4)
	if _, err := rand.Read(random); err != nil {
		return fmt.Sprintf("%s-%d", kind, timestamp)
	}
	return fmt.Sprintf("%s-%d-%s", kind, timestamp, hex.EncodeToString(random))
}
