package detect

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// defaultTerms mirrors the sensitive-topic list the tracker has always
// shipped with. Catalog matching is substring containment, so multi-word
// phrases match regardless of surrounding text.
var defaultTerms = []string{
	"oncology", "cancer", "chemotherapy",
	"hiv", "aids",
	"mental health", "depression", "anxiety", "psychiatric",
	"abortion", "pregnancy",
	"addiction", "substance abuse",
	"std", "sexually transmitted",
	"erectile dysfunction",
	"fertility",
}

// Catalog is an immutable, ordered set of lowercase sensitive phrases.
// Matching is case-insensitive substring containment, deliberately not
// word-boundary aware: "std" matches inside unrelated words. Callers that
// need higher precision must change the contract, not this implementation.
type Catalog struct {
	terms []string
}

func NewCatalog(terms []string) *Catalog {
	normalized := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		normalized = append(normalized, t)
	}
	return &Catalog{terms: normalized}
}

func DefaultCatalog() *Catalog {
	return NewCatalog(defaultTerms)
}

type catalogFile struct {
	Terms []string `yaml:"terms"`
}

// LoadCatalogFile reads a YAML file of the form `terms: [..]` and builds a
// catalog from it, replacing the default list entirely.
func LoadCatalogFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}

	var cf catalogFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("parse catalog file: %w", err)
	}

	catalog := NewCatalog(cf.Terms)
	if len(catalog.terms) == 0 {
		return nil, fmt.Errorf("catalog file %s contains no terms", path)
	}
	return catalog, nil
}

// Match returns every catalog phrase contained in text, in catalog order.
// The scan never fails; an empty text simply matches nothing.
func (c *Catalog) Match(text string) []string {
	lowered := strings.ToLower(text)
	var matched []string
	for _, term := range c.terms {
		if strings.Contains(lowered, term) {
			matched = append(matched, term)
		}
	}
	return matched
}

// Terms returns a copy of the catalog's phrases in match order.
func (c *Catalog) Terms() []string {
	out := make([]string, len(c.terms))
	copy(out, c.terms)
	return out
}
