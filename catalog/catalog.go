package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

var (
	ErrPageNotFound   = errors.New("page not found")
	ErrInvalidCatalog = errors.New("invalid catalog")
)

// Page describes one catalog page hosted by the kiosk. Pages are read once
// at startup and never change for the lifetime of the process.
type Page struct {
	ID            string   `json:"id" yaml:"id"`
	Label         string   `json:"label" yaml:"label"`
	PageName      string   `json:"page_name,omitempty" yaml:"page_name,omitempty"`
	URL           string   `json:"url" yaml:"url"`
	MaskSelectors []string `json:"mask_selectors,omitempty" yaml:"mask_selectors,omitempty"`
	Group         string   `json:"group,omitempty" yaml:"group,omitempty"`
}

// MaskCSS renders the page's mask selectors as a stylesheet that hides every
// matching element. It returns "" when the page has nothing to mask.
func (p Page) MaskCSS() string {
	if len(p.MaskSelectors) == 0 {
		return ""
	}

	rules := make([]string, 0, len(p.MaskSelectors))
	for _, sel := range p.MaskSelectors {
		sel = strings.TrimSpace(sel)
		if sel == "" {
			continue
		}
		rules = append(rules, fmt.Sprintf("%s { display: none !important; }", sel))
	}
	return strings.Join(rules, "\n")
}

// File is the on-disk catalog document.
type File struct {
	Pages []Page `json:"pages" yaml:"pages"`
}

// Manager holds the page catalog loaded from a YAML or JSON file
type Manager struct {
	path  string
	pages []Page
	byID  map[string]Page
	mu    sync.RWMutex
}

// NewManager loads and validates the catalog at path
func NewManager(path string) (*Manager, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("catalog file does not exist: %s", path)
	}

	pages, err := LoadFile(path)
	if err != nil {
		return nil, err
	}

	return NewStatic(path, pages)
}

// NewStatic builds a Manager from an in-memory page list
func NewStatic(source string, pages []Page) (*Manager, error) {
	if err := Validate(pages); err != nil {
		return nil, err
	}

	m := &Manager{
		path:  source,
		pages: append([]Page(nil), pages...),
		byID:  make(map[string]Page, len(pages)),
	}
	for _, p := range pages {
		m.byID[p.ID] = p
	}
	return m, nil
}

// LoadFile parses a catalog document. The format is picked from the file
// extension; anything that is not .json is parsed as YAML.
func LoadFile(path string) ([]Page, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}

	var doc File
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, &doc)
	} else {
		err = yaml.Unmarshal(data, &doc)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	return doc.Pages, nil
}

// Validate checks that every page has a unique id and an absolute http(s) URL.
func Validate(pages []Page) error {
	if len(pages) == 0 {
		return fmt.Errorf("%w: no pages defined", ErrInvalidCatalog)
	}

	seen := make(map[string]bool, len(pages))
	for i, p := range pages {
		if strings.TrimSpace(p.ID) == "" {
			return fmt.Errorf("%w: page %d has no id", ErrInvalidCatalog, i)
		}
		if seen[p.ID] {
			return fmt.Errorf("%w: duplicate page id %q", ErrInvalidCatalog, p.ID)
		}
		seen[p.ID] = true

		u, err := url.Parse(p.URL)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Errorf("%w: page %q has invalid url %q", ErrInvalidCatalog, p.ID, p.URL)
		}

		for _, sel := range p.MaskSelectors {
			if strings.TrimSpace(sel) == "" {
				return fmt.Errorf("%w: page %q has an empty mask selector", ErrInvalidCatalog, p.ID)
			}
		}
	}
	return nil
}

// Page returns the descriptor for id
func (m *Manager) Page(id string) (Page, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.byID[id]
	return p, ok
}

// Lookup is Page with an error result for callers that propagate it
func (m *Manager) Lookup(id string) (Page, error) {
	if p, ok := m.Page(id); ok {
		return p, nil
	}
	return Page{}, fmt.Errorf("%w: %s", ErrPageNotFound, id)
}

// Pages returns all pages in catalog order
func (m *Manager) Pages() []Page {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Page(nil), m.pages...)
}

// Groups returns the set of group tags used in the catalog, in first-seen order
func (m *Manager) Groups() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var groups []string
	seen := map[string]bool{}
	for _, p := range m.pages {
		if p.Group == "" || seen[p.Group] {
			continue
		}
		seen[p.Group] = true
		groups = append(groups, p.Group)
	}
	return groups
}

// Source returns where the catalog was loaded from
func (m *Manager) Source() string {
	return m.path
}
