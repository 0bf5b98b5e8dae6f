package common

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Fingerprint computes the 12-character dedup hash from the visible
// list-page fields. Two postings that normalize to the same
// title|company|salary|location map to the same fingerprint, which lets
// the extractor skip the detail page entirely on a hit.
func Fingerprint(title, company, salary, location string) string {
	normalized := strings.Join([]string{
		normalizeField(title),
		normalizeField(company),
		normalizeField(salary),
		normalizeField(location),
	}, "|")

	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])[:12]
}

func normalizeField(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Join(strings.Fields(s), " ")
}
