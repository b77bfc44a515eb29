package checksum

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"staffdir-scraper/internal/scraper"
)

func record(scrapedAt time.Time) *scraper.EntityRecord {
	return &scraper.EntityRecord{
		Key:         "jane-doe",
		DisplayName: "Jane Doe",
		Email:       "jane.doe@example.com",
		Title:       "Architect",
		SourceURL:   "https://intranet.example.com/employee/jane-doe",
		Education:   []scraper.SectionItem{{Value: "MIT, BS 1999"}},
		ScrapedAt:   scrapedAt,
	}
}

func TestRecordHashIgnoresScrapedAt(t *testing.T) {
	g := NewGenerator()

	first := record(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	second := record(time.Date(2026, 6, 1, 12, 30, 0, 0, time.UTC))

	assert.Equal(t, g.RecordHash(first), g.RecordHash(second))
}

func TestRecordHashDetectsContentChange(t *testing.T) {
	g := NewGenerator()

	base := record(time.Time{})
	changed := record(time.Time{})
	changed.Title = "Senior Architect"

	assert.NotEqual(t, g.RecordHash(base), g.RecordHash(changed))
}

func TestRecordHashDoesNotMutateInput(t *testing.T) {
	g := NewGenerator()

	scrapedAt := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rec := record(scrapedAt)
	g.RecordHash(rec)

	assert.Equal(t, scrapedAt, rec.ScrapedAt)
}

func TestVerify(t *testing.T) {
	g := NewGenerator()

	rec := record(time.Time{})
	hash := g.RecordHash(rec)

	assert.True(t, g.Verify(hash, rec))
	rec.Email = "other@example.com"
	assert.False(t, g.Verify(hash, rec))
}
