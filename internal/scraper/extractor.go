package scraper

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"staffdir-scraper/internal/normalize"
	"staffdir-scraper/internal/session"
)

var (
	// ErrMissingIdentity means the page had no display name. The name is the
	// key-derivation input, so the entity cannot be persisted at all.
	ErrMissingIdentity = errors.New("profile has no display name")
	// ErrValidation rejects a record with neither email nor title.
	ErrValidation = errors.New("record failed validation")
)

// Capabilities selects which optional sections an extractor attempts. One
// extractor configured by a capability set replaces the old simple/complete
// split.
type Capabilities struct {
	Sections []string
}

func AllSections() Capabilities {
	return Capabilities{Sections: []string{
		SectionNames.Education,
		SectionNames.Licenses,
		SectionNames.Memberships,
		SectionNames.Projects,
		SectionNames.RecentPosts,
	}}
}

// Extractor turns one rendered profile page into a validated EntityRecord.
type Extractor struct {
	selectors *Selectors
	caps      Capabilities
	sections  *SectionParser
	logger    *zap.Logger
}

func NewExtractor(selectors *Selectors, caps Capabilities, logger *zap.Logger) *Extractor {
	known := append([]string{SectionNames.SocialLinks}, caps.Sections...)
	return &Extractor{
		selectors: selectors,
		caps:      caps,
		sections:  NewSectionParser(selectors, known, logger),
		logger:    logger,
	}
}

// Extract reads the fixed fields and every configured section from doc. The
// returned slice names the optional fields and sections that were missing or
// degraded; the caller uses it to classify the outcome as partial.
func (e *Extractor) Extract(doc *session.RenderedDocument, sourceURL string) (*EntityRecord, []string, error) {
	name := e.firstText(doc, e.selectors.Name)
	if name == "" {
		return nil, nil, errors.Wrapf(ErrMissingIdentity, "page %s", sourceURL)
	}

	record := &EntityRecord{
		Key:         normalize.Key(name),
		DisplayName: name,
		SourceURL:   sourceURL,
		ScrapedAt:   time.Now().UTC(),
	}

	var degraded []string
	missing := func(field, value string) string {
		if value == "" {
			degraded = append(degraded, field)
		}
		return value
	}

	record.Email = missing("email", e.firstAttr(doc, e.selectors.Email, "href", "mailto:"))
	record.Phone = missing("phone", e.firstAttr(doc, e.selectors.Phone, "href", "tel:"))
	record.Title = missing("title", e.firstText(doc, e.selectors.Title))
	record.Department = missing("department", e.firstText(doc, e.selectors.Department))
	record.Bio = missing("bio", e.firstText(doc, e.selectors.Bio))
	record.ImageRef = missing("image", e.firstAttr(doc, e.selectors.Image, "src", ""))
	record.OfficeLocation = missing("officeLocation",
		normalize.OfficeLocation(e.firstText(doc, e.selectors.Location)))

	for _, heading := range e.caps.Sections {
		block := e.sections.ExtractSection(doc.Doc(), heading)
		if block == nil || len(block.Items) == 0 {
			degraded = append(degraded, "section:"+heading)
			continue
		}
		e.attachSection(record, heading, block.Items)
	}

	record.SocialLinks = e.socialLinks(doc)
	if len(record.SocialLinks) == 0 {
		degraded = append(degraded, "section:"+SectionNames.SocialLinks)
	}

	// A record is only worth persisting when it is reachable: a name plus
	// at least one of email or title.
	if record.Email == "" && record.Title == "" {
		return nil, nil, errors.Wrapf(ErrValidation, "%q has neither email nor title", name)
	}

	return record, degraded, nil
}

func (e *Extractor) attachSection(record *EntityRecord, heading string, items []SectionItem) {
	switch heading {
	case SectionNames.Education:
		record.Education = items
	case SectionNames.Licenses:
		record.Licenses = items
	case SectionNames.Memberships:
		record.Memberships = items
	case SectionNames.Projects:
		record.Projects = items
	case SectionNames.RecentPosts:
		record.RecentPosts = items
	default:
		e.logger.Debug("unmapped section dropped", zap.String("heading", heading))
	}
}

// socialLinks collects external profile anchors keyed by service.
func (e *Extractor) socialLinks(doc *session.RenderedDocument) map[string]string {
	links := make(map[string]string)
	for _, el := range doc.ReadAll("a[href]") {
		href, _ := el.Attr("href")
		switch {
		case strings.Contains(href, "linkedin.com"):
			links["linkedin"] = href
		case strings.Contains(href, "teams.microsoft.com"):
			links["teams"] = href
		}
	}
	if len(links) == 0 {
		return nil
	}
	return links
}

// firstText tries the selectors in order; the first non-empty text wins.
func (e *Extractor) firstText(doc *session.RenderedDocument, selectors []string) string {
	for _, selector := range selectors {
		if text := doc.ReadText(selector); text != "" {
			return text
		}
	}
	return ""
}

// firstAttr tries the selectors in order and returns the named attribute of
// the first match, with stripPrefix removed.
func (e *Extractor) firstAttr(doc *session.RenderedDocument, selectors []string, attr, stripPrefix string) string {
	for _, selector := range selectors {
		for _, el := range doc.ReadAll(selector) {
			value, ok := el.Attr(attr)
			if !ok || value == "" {
				continue
			}
			if stripPrefix != "" {
				value = strings.TrimPrefix(value, stripPrefix)
			}
			return strings.TrimSpace(value)
		}
	}
	return ""
}
