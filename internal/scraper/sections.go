package scraper

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"staffdir-scraper/internal/normalize"
)

// SectionParser recovers heading-delimited sections from rendered profile
// pages. Pages are end-user-authored, so a missing section is a normal
// outcome, never an error: ExtractSection returns nil when the heading is
// absent.
type SectionParser struct {
	selectors *Selectors
	// knownHeadings bound the text-scan fallback: a line matching any of
	// them ends the current section.
	knownHeadings []string
	logger        *zap.Logger
}

func NewSectionParser(selectors *Selectors, knownHeadings []string, logger *zap.Logger) *SectionParser {
	return &SectionParser{
		selectors:     selectors,
		knownHeadings: knownHeadings,
		logger:        logger,
	}
}

// ExtractSection finds the first heading-styled element matching headingText
// (case-insensitive, whitespace-collapsed) and collects the content that
// follows it, up to the next heading or the end of the containing block.
// Duplicate heading matches are logged and ignored.
func (p *SectionParser) ExtractSection(doc *goquery.Document, headingText string) *SectionBlock {
	if block := p.extractFromHeadings(doc, headingText); block != nil {
		return block
	}
	// Layout family without heading elements: fall back to scanning the
	// rendered text line by line.
	return p.extractFromText(doc, headingText)
}

func (p *SectionParser) extractFromHeadings(doc *goquery.Document, headingText string) *SectionBlock {
	headingSel := strings.Join(p.selectors.Headings, ", ")
	want := strings.ToLower(normalize.CollapseWhitespace(headingText))

	var match *goquery.Selection
	doc.Find(headingSel).Each(func(_ int, sel *goquery.Selection) {
		text := strings.ToLower(normalize.CollapseWhitespace(sel.Text()))
		if text != want && !strings.Contains(text, want) {
			return
		}
		if match != nil {
			// First match in document order wins.
			p.logger.Debug("duplicate section heading ignored", zap.String("heading", headingText))
			return
		}
		match = sel
	})
	if match == nil {
		return nil
	}

	block := &SectionBlock{Heading: headingText}
	// Heading present but empty content is still a found section.
	match.NextUntil(headingSel).Each(func(_ int, sel *goquery.Selection) {
		block.Items = append(block.Items, p.rowsOf(sel)...)
	})
	return block
}

// rowsOf partitions one content element into item rows.
func (p *SectionParser) rowsOf(sel *goquery.Selection) []SectionItem {
	var items []SectionItem

	switch goquery.NodeName(sel) {
	case "ul", "ol":
		sel.Find("li").Each(func(_ int, li *goquery.Selection) {
			if item, ok := itemFromText(li.Text()); ok {
				items = append(items, item)
			}
		})
	case "table":
		sel.Find("tr").Each(func(_ int, tr *goquery.Selection) {
			if item, ok := itemFromCells(tr.Find("th, td")); ok {
				items = append(items, item)
			}
		})
	case "dl":
		terms := sel.Find("dt")
		values := sel.Find("dd")
		terms.Each(func(i int, dt *goquery.Selection) {
			if i >= values.Length() {
				return
			}
			label := normalize.CollapseWhitespace(dt.Text())
			value := normalize.CollapseWhitespace(values.Eq(i).Text())
			if value != "" {
				items = append(items, SectionItem{Label: label, Value: value})
			}
		})
	default:
		// Paired sub-elements read as (label, value); otherwise each text
		// line is one row.
		if item, ok := itemFromCells(sel.ChildrenFiltered("span, div, p")); ok && item.Label != "" {
			items = append(items, item)
			return items
		}
		for _, line := range strings.Split(sel.Text(), "\n") {
			if item, ok := itemFromText(line); ok {
				items = append(items, item)
			}
		}
	}
	return items
}

// itemFromCells builds a (label, value) pair from exactly two child cells.
func itemFromCells(cells *goquery.Selection) (SectionItem, bool) {
	if cells.Length() != 2 {
		return SectionItem{}, false
	}
	label := normalize.CollapseWhitespace(cells.Eq(0).Text())
	value := normalize.CollapseWhitespace(cells.Eq(1).Text())
	if label == "" || value == "" {
		return SectionItem{}, false
	}
	return SectionItem{Label: label, Value: value}, true
}

// itemFromText turns one row of text into an item, splitting on the first
// colon when both sides are non-empty.
func itemFromText(raw string) (SectionItem, bool) {
	text := normalize.CollapseWhitespace(raw)
	if text == "" {
		return SectionItem{}, false
	}
	if idx := strings.Index(text, ":"); idx > 0 && idx < len(text)-1 {
		label := strings.TrimSpace(text[:idx])
		value := strings.TrimSpace(text[idx+1:])
		if label != "" && value != "" {
			return SectionItem{Label: label, Value: value}, true
		}
	}
	return SectionItem{Value: text}, true
}

// extractFromText scans the page text line by line: the section starts at
// the line matching headingText and stops at the first line that matches
// another known heading.
func (p *SectionParser) extractFromText(doc *goquery.Document, headingText string) *SectionBlock {
	want := strings.ToLower(normalize.CollapseWhitespace(headingText))

	var block *SectionBlock
	for _, line := range strings.Split(doc.Text(), "\n") {
		text := normalize.CollapseWhitespace(line)
		if text == "" {
			continue
		}
		lower := strings.ToLower(text)

		if block == nil {
			if lower == want || strings.Contains(lower, want) {
				block = &SectionBlock{Heading: headingText}
			}
			continue
		}
		if p.isKnownHeading(lower) {
			break
		}
		if item, ok := itemFromText(text); ok {
			block.Items = append(block.Items, item)
		}
	}
	return block
}

func (p *SectionParser) isKnownHeading(lower string) bool {
	for _, heading := range p.knownHeadings {
		if lower == strings.ToLower(heading) {
			return true
		}
	}
	return false
}
