package harvest

import (
	"crypto/md5" //nolint:gosec // frozen identifier scheme, not a security boundary
	"crypto/sha1"
	"encoding/hex"
)

// Identifier derivation is a cross-run compatibility contract: downstream
// consumers key on paper_id, so the hash functions, the 16-character
// truncation, and the prefixes below must never change.
const (
	hashIDPrefix  = "hash_"
	errorIDPrefix = "error_"
	idHashLen     = 16
)

// PaperID returns the stable identifier for a successfully parsed document:
// the DOI when present, else a deterministic hash of the source URL.
func PaperID(doi, url string) string {
	if doi != "" {
		return doi
	}
	sum := md5.Sum([]byte(url)) //nolint:gosec
	return hashIDPrefix + hex.EncodeToString(sum[:])[:idHashLen]
}

// FailureID returns the deterministic identifier assigned to failed
// documents.
func FailureID(url string) string {
	sum := sha1.Sum([]byte(url)) //nolint:gosec
	return errorIDPrefix + hex.EncodeToString(sum[:])[:idHashLen]
}
