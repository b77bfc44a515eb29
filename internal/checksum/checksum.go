package checksum

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"

	"staffdir-scraper/internal/scraper"
)

type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

// RecordHash computes the SHA256 content hash of a record. ScrapedAt is
// excluded so re-fetching an unchanged profile yields the same hash, which
// is what keeps second-run artifacts byte-identical.
func (g *Generator) RecordHash(record *scraper.EntityRecord) string {
	clone := *record
	clone.ScrapedAt = time.Time{}

	// json.Marshal on a struct has deterministic field order.
	payload, err := json.Marshal(&clone)
	if err != nil {
		// EntityRecord contains only marshalable types; this cannot happen
		// for real records.
		payload = []byte(record.Key)
	}

	hash := sha256.Sum256(payload)
	return fmt.Sprintf("%x", hash)
}

// Verify reports whether the record still matches expectedHash.
func (g *Generator) Verify(expectedHash string, record *scraper.EntityRecord) bool {
	return g.RecordHash(record) == expectedHash
}
