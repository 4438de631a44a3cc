package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// GenerateKey joins a prefix and an identifier into a cache key.
func GenerateKey(prefix, id string) string {
	return prefix + ":" + id
}

// GenerateKeyWithParams builds a cache key from a prefix and an ordered
// list of parameters. The parameter order is part of the key, so callers
// must pass them in a stable order.
func GenerateKeyWithParams(prefix string, params ...interface{}) string {
	var b strings.Builder
	b.WriteString(prefix)
	for _, p := range params {
		fmt.Fprintf(&b, ":%v", p)
	}
	return b.String()
}

// HashKey returns the hex SHA-256 of key. Disk caches use it to turn
// arbitrary keys into safe fixed-length filenames.
func HashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// BuildPattern returns a glob that matches every key under prefix.
func BuildPattern(prefix string) string {
	return prefix + "*"
}
