// Package hash derives stable keys for cached backend responses.
package hash

import (
	"crypto/sha256"
	"encoding/hex"
)

// QueryKeyLength is the length of a key returned by QueryKey.
const QueryKeyLength = 32

// QueryKey derives a cache key for a serialized backend query.
// Endpoint is part of the key so two backends never share entries.
func QueryKey(endpoint, queryString string) string {
	h := sha256.New()
	h.Write([]byte(endpoint))
	h.Write([]byte{'?'})
	h.Write([]byte(queryString))
	return hex.EncodeToString(h.Sum(nil))[:QueryKeyLength]
}
