package util

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// HexHmacSHA256 returns the hex digest under a raw (possibly binary) key.
func HexHmacSHA256(key []byte, data string) string {
	return hex.EncodeToString(HmacSHA256Raw(key, data))
}

// HmacSHA256Raw returns the raw digest for use as a derived key.
func HmacSHA256Raw(key []byte, data string) []byte {
	h := hmac.New(sha256.New, key)
	h.Write([]byte(data))
	return h.Sum(nil)
}

func ConstantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
