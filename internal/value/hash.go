package value

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DomainInputSet is the hash domain for input snapshots.
// Version suffix enables future algorithm migration.
const DomainInputSet = "rdsquote/inputs/v1"

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Hash computes the content hash of an InputSet.
// Equal sets (including 20 vs 20.0) hash identically.
func Hash(s InputSet) (string, error) {
	canonical, err := MarshalCanonical(s)
	if err != nil {
		return "", fmt.Errorf("hash inputs: %w", err)
	}
	return hashWithDomain(DomainInputSet, canonical), nil
}
