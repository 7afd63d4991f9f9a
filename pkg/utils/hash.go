package utils

import (
	"crypto/md5"
	"fmt"
	"strings"
)

func HashString(input string) string {
	hash := md5.Sum([]byte(input))
	return fmt.Sprintf("%x", hash)
}

// CacheKey joins parts with a separator that cannot occur in a hex digest and hashes the result.
func CacheKey(prefix string, parts ...string) string {
	return prefix + ":" + HashString(strings.Join(parts, "\x1f"))
}
