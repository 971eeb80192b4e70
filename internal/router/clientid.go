package router

import (
	"crypto/sha256"
	"encoding/hex"
)

// clientIDPrefix marks orders placed by this router on the exchange.
const clientIDPrefix = "fsm_"

// ClientOrderID derives the deterministic client order id for an intent:
// "fsm_" plus the first 16 hex characters of sha256(intentID). The same
// intent always maps to the same id, so the exchange deduplicates
// resubmissions even when the local result cache has been lost.
func ClientOrderID(intentID string) string {
	sum := sha256.Sum256([]byte(intentID))
	return clientIDPrefix + hex.EncodeToString(sum[:])[:16]
}
