package scraper

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadSelectors reads the selector overrides yaml. An empty path means the
// built-in defaults for the known directory layout.
func LoadSelectors(filePath string) (*Selectors, error) {
	if filePath == "" {
		return DefaultSelectors(), nil
	}

	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open selectors file: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()

	selectors := DefaultSelectors()
	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(selectors); err != nil {
		return nil, fmt.Errorf("failed to parse selectors yaml: %w", err)
	}

	if err := validateSelectors(selectors); err != nil {
		return nil, err
	}

	return selectors, nil
}

func validateSelectors(s *Selectors) error {
	if s.Card == "" {
		return fmt.Errorf("card selector is required")
	}
	if len(s.CardName) == 0 {
		return fmt.Errorf("card_name selectors are required")
	}
	if len(s.CardLink) == 0 {
		return fmt.Errorf("card_link selectors are required")
	}
	if len(s.Name) == 0 {
		return fmt.Errorf("name selectors are required")
	}
	if len(s.Headings) == 0 {
		return fmt.Errorf("headings selectors are required")
	}
	return nil
}
