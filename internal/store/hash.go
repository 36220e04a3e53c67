package store

import (
	"crypto/sha256"
	"fmt"
)

// RunID derives the deterministic run identifier from the corpus
// document ids (in corpus order) plus the canonical effective config.
// Identical inputs and config always produce the same run id, which is
// what makes re-running on unchanged sources a detectable no-op
// (SaveProfile returns ErrRunExists).
func RunID(docIDs []string, configJSON string) string {
	h := sha256.New()
	for _, id := range docIDs {
		h.Write([]byte(id))
		h.Write([]byte{0})
	}
	h.Write([]byte(configJSON))
	return fmt.Sprintf("%x", h.Sum(nil))[:16]
}
