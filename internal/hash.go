package internal

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// SHA256sum computes a cryptographic hash. Used where a submitted value is
// derived from an issued token, such as slider offsets.
func SHA256sum(text string) string {
	hash := sha256.New()
	hash.Write([]byte(text))
	return hex.EncodeToString(hash.Sum(nil))
}

// FastHash is a high-performance non-cryptographic hash function suitable for
// route identifiers and log-safe session references where cryptographic
// security is not required.
func FastHash(text string) string {
	h := xxhash.Sum64String(text)
	return strconv.FormatUint(h, 16)
}

// SessionRef is what logs show instead of a session id. The id is the lookup
// key of cached challenges in shared stores and must not leak through logs.
func SessionRef(id string) string {
	if id == "" {
		return ""
	}
	return FastHash(id)
}
