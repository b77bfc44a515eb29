package scraper

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"staffdir-scraper/internal/session"
)

const fullProfileHTML = `
<html><body>
	<h1>Jane Q. Doe</h1>
	<span class="employee-title">Senior Architect</span>
	<div class="department">Design</div>
	<div class="office">nyc</div>
	<a href="mailto:jane.doe@example.com">Email</a>
	<a href="tel:+1-212-555-0100">Call</a>
	<img class="profile-image" src="/images/jane-doe.jpg">
	<div class="bio">Jane leads the housing studio.</div>
	<a href="https://www.linkedin.com/in/janedoe">LinkedIn</a>

	<h3>Education</h3>
	<ul><li>MIT, BS 1999</li></ul>
	<h3>Licenses</h3>
	<ul><li>PE NY</li></ul>
	<h3>Memberships</h3>
	<ul><li>AIA</li></ul>
	<h3>Projects</h3>
	<ul><li>Riverside Tower</li></ul>
	<h3>Recent Posts</h3>
	<ul><li>On mass timber</li></ul>
</body></html>`

func renderedDoc(t *testing.T, html string) *session.RenderedDocument {
	t.Helper()
	doc, err := session.NewRenderedDocument("https://intranet.example.com/employee/jane-doe", html)
	require.NoError(t, err)
	return doc
}

func newTestExtractor() *Extractor {
	return NewExtractor(DefaultSelectors(), AllSections(), zap.NewNop())
}

func TestExtractFullProfile(t *testing.T) {
	doc := renderedDoc(t, fullProfileHTML)

	record, degraded, err := newTestExtractor().Extract(doc, doc.URL)
	require.NoError(t, err)
	assert.Empty(t, degraded)

	assert.Equal(t, "jane-q-doe", record.Key)
	assert.Equal(t, "Jane Q. Doe", record.DisplayName)
	assert.Equal(t, "jane.doe@example.com", record.Email)
	assert.Equal(t, "+1-212-555-0100", record.Phone)
	assert.Equal(t, "Senior Architect", record.Title)
	assert.Equal(t, "Design", record.Department)
	assert.Equal(t, "New York", record.OfficeLocation)
	assert.Equal(t, "/images/jane-doe.jpg", record.ImageRef)
	assert.Equal(t, doc.URL, record.SourceURL)
	assert.False(t, record.ScrapedAt.IsZero())

	require.Len(t, record.Education, 1)
	assert.Equal(t, "MIT, BS 1999", record.Education[0].Value)
	require.Len(t, record.Licenses, 1)
	require.Len(t, record.Memberships, 1)
	require.Len(t, record.Projects, 1)
	require.Len(t, record.RecentPosts, 1)
	assert.Equal(t, "https://www.linkedin.com/in/janedoe", record.SocialLinks["linkedin"])
}

func TestExtractMissingSectionsDegrade(t *testing.T) {
	html := `
	<html><body>
		<h1>Sam Roe</h1>
		<span class="employee-title">Engineer</span>
		<a href="mailto:sam.roe@example.com">Email</a>
	</body></html>`

	record, degraded, err := newTestExtractor().Extract(renderedDoc(t, html), "u")
	require.NoError(t, err)

	assert.Equal(t, "sam-roe", record.Key)
	assert.Contains(t, degraded, "phone")
	assert.Contains(t, degraded, "bio")
	assert.Contains(t, degraded, "section:Education")
	assert.Contains(t, degraded, "section:Social Links")
	assert.NotContains(t, degraded, "email")
	assert.NotContains(t, degraded, "title")
}

func TestExtractMissingNameFails(t *testing.T) {
	html := `<html><body><span class="employee-title">Engineer</span></body></html>`

	_, _, err := newTestExtractor().Extract(renderedDoc(t, html), "u")
	assert.True(t, errors.Is(err, ErrMissingIdentity))
}

func TestExtractNoEmailNoTitleFailsValidation(t *testing.T) {
	html := `
	<html><body>
		<h1>Ghost Entry</h1>
		<div class="bio">No contact details at all.</div>
	</body></html>`

	_, _, err := newTestExtractor().Extract(renderedDoc(t, html), "u")
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestExtractEmailOnlyPassesValidation(t *testing.T) {
	html := `
	<html><body>
		<h1>Min Imal</h1>
		<a href="mailto:min@example.com">Email</a>
	</body></html>`

	record, degraded, err := newTestExtractor().Extract(renderedDoc(t, html), "u")
	require.NoError(t, err)
	assert.Equal(t, "min@example.com", record.Email)
	assert.Contains(t, degraded, "title")
}

func TestExtractKeyMatchesNormalizedName(t *testing.T) {
	html := `
	<html><body>
		<h1>  José   Muñoz </h1>
		<a href="mailto:jm@example.com">Email</a>
	</body></html>`

	record, _, err := newTestExtractor().Extract(renderedDoc(t, html), "u")
	require.NoError(t, err)
	assert.Equal(t, "jose-munoz", record.Key)
	assert.Equal(t, "José Muñoz", record.DisplayName)
}
