package scraper

import "time"

// EntityRecord is the canonical per-profile output. Optional fields are
// omitted from the artifact when absent; unknown page content is dropped at
// the parse boundary.
type EntityRecord struct {
	Key            string `json:"key"`
	DisplayName    string `json:"displayName"`
	Email          string `json:"email,omitempty"`
	Phone          string `json:"phone,omitempty"`
	Title          string `json:"title,omitempty"`
	Department     string `json:"department,omitempty"`
	Bio            string `json:"bio,omitempty"`
	OfficeLocation string `json:"officeLocation,omitempty"`
	SourceURL      string `json:"sourceUrl"`
	ImageRef       string `json:"imageRef,omitempty"`

	Education   []SectionItem     `json:"education,omitempty"`
	Licenses    []SectionItem     `json:"licenses,omitempty"`
	Memberships []SectionItem     `json:"memberships,omitempty"`
	Projects    []SectionItem     `json:"projects,omitempty"`
	RecentPosts []SectionItem     `json:"recentPosts,omitempty"`
	SocialLinks map[string]string `json:"socialLinks,omitempty"`

	ScrapedAt time.Time `json:"scrapedAt"`
}

// SectionItem is one row of a heading-delimited section. Label is empty for
// plain string items.
type SectionItem struct {
	Label string `json:"label,omitempty"`
	Value string `json:"value"`
}

// SectionBlock is the transient result of parsing one section; it is not
// persisted on its own.
type SectionBlock struct {
	Heading string
	Items   []SectionItem
}

// Selectors describes where the fixed profile fields live on a page. Loaded
// from yaml so layout drift is a config change, not a code change.
type Selectors struct {
	// Listing page
	Card        string   `yaml:"card"`
	CardName    []string `yaml:"card_name"`
	CardLink    []string `yaml:"card_link"`
	CardImage   []string `yaml:"card_image"`
	CardsParent string   `yaml:"cards_parent"`

	// Profile page fixed fields
	Name       []string `yaml:"name"`
	Email      []string `yaml:"email"`
	Phone      []string `yaml:"phone"`
	Title      []string `yaml:"title"`
	Department []string `yaml:"department"`
	Bio        []string `yaml:"bio"`
	Location   []string `yaml:"location"`
	Image      []string `yaml:"image"`

	// Elements treated as section headings by the section parser.
	Headings []string `yaml:"headings"`
}

// DefaultSelectors matches the known directory layout family.
func DefaultSelectors() *Selectors {
	return &Selectors{
		Card:        ".employee-card, .profile-card, [data-employee]",
		CardName:    []string{".employee-name", ".profile-name", "h3", "h4"},
		CardLink:    []string{"a[href*='/employee/']", "a[href*='/profile/']", "a"},
		CardImage:   []string{"img.profile-image", ".employee-photo img", ".avatar img", "img"},
		CardsParent: ".employee-list, .directory, main",

		Name:       []string{"h1", ".employee-name", ".profile-name"},
		Email:      []string{"a[href^='mailto:']"},
		Phone:      []string{"a[href^='tel:']"},
		Title:      []string{".employee-title", ".profile-title", ".position", "span[data-field='title']"},
		Department: []string{".department", ".team", ".division"},
		Bio:        []string{".bio", ".about", ".employee-bio", ".profile-description"},
		Location:   []string{".office", ".location", ".office-location", "[data-location]"},
		Image:      []string{"img.profile-image", ".employee-photo img", ".avatar img", ".headshot img"},

		Headings: []string{"h1", "h2", "h3", "h4", ".section-title", ".section-heading"},
	}
}

// SectionNames lists the optional heading-delimited sections the extractor
// attempts. Absence of any of them is a normal outcome.
var SectionNames = struct {
	Education   string
	Licenses    string
	Memberships string
	Projects    string
	RecentPosts string
	SocialLinks string
}{
	Education:   "Education",
	Licenses:    "Licenses",
	Memberships: "Memberships",
	Projects:    "Projects",
	RecentPosts: "Recent Posts",
	SocialLinks: "Social Links",
}
