package state

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"

	"golang.org/x/text/unicode/norm"
)

// Fingerprint computes a content hash of a snapshot.
//
// The engine uses fingerprints for cycle detection: a cascade that
// reproduces a store snapshot already seen earlier in the same cascade is
// looping and must be halted.
//
// Canonical form: keys and values NFC-normalized, keys sorted bytewise,
// each entry written as key, NUL, value, NUL. NFC normalization keeps the
// fingerprint stable across equivalent Unicode encodings of the same text
// (e.g. precomposed vs decomposed accents).
func Fingerprint(snap map[string]string) string {
	keys := make([]string, 0, len(snap))
	for k := range snap {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	// Keys are normalized at the write boundary only; the map lookup must
	// use the original key.
	h := sha256.New()
	for _, k := range keys {
		h.Write([]byte(norm.NFC.String(k)))
		h.Write([]byte{0})
		h.Write([]byte(norm.NFC.String(snap[k])))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
