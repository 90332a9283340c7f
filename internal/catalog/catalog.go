package catalog

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed scenarios.yaml
var defaultScenarios []byte

// ErrCategoryNotFound indicates the requested category id is unknown.
var ErrCategoryNotFound = errors.New("category not found")

// ErrScenarioOutOfRange indicates a scenario index outside the category.
var ErrScenarioOutOfRange = errors.New("scenario index out of range")

// Scenario is one multiple-choice crisis situation with a single correct option.
type Scenario struct {
	ID            string   `yaml:"id" json:"id"`
	CategoryID    string   `yaml:"-" json:"category_id"`
	Label         string   `yaml:"label" json:"label"`
	Question      string   `yaml:"question" json:"question"`
	Options       []string `yaml:"options" json:"options"`
	CorrectOption int      `yaml:"correct_option" json:"-"`
	Explanation   string   `yaml:"explanation" json:"-"`
}

// CorrectAnswer returns the text of the correct option.
func (s Scenario) CorrectAnswer() string {
	return s.Options[s.CorrectOption]
}

// IsCorrect reports whether the option index is the designated answer.
func (s Scenario) IsCorrect(option int) bool {
	return option == s.CorrectOption
}

// Category groups a fixed, ordered list of scenarios.
type Category struct {
	ID          string     `yaml:"id" json:"id"`
	Name        string     `yaml:"name" json:"name"`
	Description string     `yaml:"description" json:"description"`
	Scenarios   []Scenario `yaml:"scenarios" json:"-"`
}

// Len returns the number of scenarios in the category.
func (c Category) Len() int {
	return len(c.Scenarios)
}

// MedalName is the medal awarded for a perfect run through the category.
func (c Category) MedalName() string {
	return c.Name + " Master"
}

// Catalog is a read-only lookup over categories. It is safe for concurrent use.
type Catalog struct {
	order      []string
	categories map[string]Category
}

type document struct {
	Categories []Category `yaml:"categories"`
}

// Load parses and validates a YAML catalog document.
func Load(r io.Reader) (*Catalog, error) {
	var doc document
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	c := &Catalog{
		order:      make([]string, 0, len(doc.Categories)),
		categories: make(map[string]Category, len(doc.Categories)),
	}

	for _, category := range doc.Categories {
		category.ID = strings.TrimSpace(category.ID)
		if category.ID == "" {
			return nil, fmt.Errorf("category without id")
		}
		if _, exists := c.categories[category.ID]; exists {
			return nil, fmt.Errorf("duplicate category %q", category.ID)
		}
		if len(category.Scenarios) == 0 {
			return nil, fmt.Errorf("category %q has no scenarios", category.ID)
		}
		for i := range category.Scenarios {
			scenario := &category.Scenarios[i]
			scenario.CategoryID = category.ID
			if err := validateScenario(*scenario); err != nil {
				return nil, fmt.Errorf("category %q: %w", category.ID, err)
			}
		}
		c.order = append(c.order, category.ID)
		c.categories[category.ID] = category
	}

	if len(c.order) == 0 {
		return nil, fmt.Errorf("catalog is empty")
	}

	return c, nil
}

func validateScenario(s Scenario) error {
	if s.ID == "" {
		return fmt.Errorf("scenario without id")
	}
	if len(s.Options) < 2 {
		return fmt.Errorf("scenario %q needs at least two options", s.ID)
	}
	if s.CorrectOption < 0 || s.CorrectOption >= len(s.Options) {
		return fmt.Errorf("scenario %q correct option %d out of range", s.ID, s.CorrectOption)
	}
	if strings.TrimSpace(s.Question) == "" {
		return fmt.Errorf("scenario %q has no question", s.ID)
	}
	return nil
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
	defaultErr     error
)

// Default returns the catalog shipped with the binary.
func Default() (*Catalog, error) {
	defaultOnce.Do(func() {
		defaultCatalog, defaultErr = Load(bytes.NewReader(defaultScenarios))
	})
	return defaultCatalog, defaultErr
}

// List returns all categories in catalog order.
func (c *Catalog) List() []Category {
	out := make([]Category, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.categories[id])
	}
	return out
}

// Get looks a category up by id.
func (c *Catalog) Get(id string) (Category, error) {
	category, ok := c.categories[id]
	if !ok {
		return Category{}, ErrCategoryNotFound
	}
	return category, nil
}

// Scenario returns the scenario at index within the category.
func (c *Catalog) Scenario(categoryID string, index int) (Scenario, error) {
	category, err := c.Get(categoryID)
	if err != nil {
		return Scenario{}, err
	}
	if index < 0 || index >= len(category.Scenarios) {
		return Scenario{}, ErrScenarioOutOfRange
	}
	return category.Scenarios[index], nil
}
