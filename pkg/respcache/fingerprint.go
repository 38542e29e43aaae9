package respcache

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// FingerprintInput holds the semantically relevant parts of a request.
// Volatile fields (timestamps, request ids, trace ids) must never be
// part of the key or identical requests would stop colliding.
type FingerprintInput struct {
	TenantId string
	Stage    string
	Model    string
	Message  string
	Extras   map[string]string
}

// Fingerprint derives a deterministic fixed-length cache key.
func Fingerprint(in FingerprintInput) string {
	h := sha256.New()
	h.Write([]byte(in.TenantId))
	h.Write([]byte{0})
	h.Write([]byte(in.Stage))
	h.Write([]byte{0})
	h.Write([]byte(in.Model))
	h.Write([]byte{0})
	h.Write([]byte(normalize(in.Message)))

	// Extras in sorted key order so map iteration cannot change the key.
	keys := make([]string, 0, len(in.Extras))
	for k := range in.Extras {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		h.Write([]byte{0})
		h.Write([]byte(k))
		h.Write([]byte{1})
		h.Write([]byte(in.Extras[k]))
	}

	return hex.EncodeToString(h.Sum(nil))
}

// normalize collapses whitespace and case so trivially reworded
// identical messages share a slot.
func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
