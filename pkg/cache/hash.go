package cache

import (
	"crypto/sha256"
	"encoding/hex"
)

// hashKey returns "prefix:sha256(source)". Source URLs can be long and carry
// query strings, so they never appear in keys verbatim.
func hashKey(prefix, source string) string {
	return prefix + ":" + Hash([]byte(source))
}

// Hash returns the hex SHA-256 of data.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
