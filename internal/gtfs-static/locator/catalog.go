package locator

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalogYAML []byte

const ModeRail = "rail"

// Catalog lists the known feed operators in priority order.
type Catalog struct {
	BaseURL   string     `yaml:"base_url" validate:"required,url"`
	Operators []Operator `yaml:"operators" validate:"required,min=1,dive"`
}

// Operator is one agency on the feed portal. Operators with categories
// publish one feed per category and need a category query parameter.
type Operator struct {
	ID         string   `yaml:"id" validate:"required,excludesall=/?#"`
	Name       string   `yaml:"name"`
	Mode       string   `yaml:"mode" validate:"omitempty,oneof=rail bus ferry"`
	Categories []string `yaml:"categories" validate:"dive,required"`
}

func (o Operator) MultiCategory() bool {
	return len(o.Categories) > 0
}

// DefaultCatalog returns the built-in catalog.
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(defaultCatalogYAML)
}

// LoadCatalog reads a catalog file, or the built-in one when path is empty.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}
	return ParseCatalog(data)
}

func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decoding catalog: %w", err)
	}
	if err := validator.New().Struct(c); err != nil {
		return nil, fmt.Errorf("invalid catalog: %w", err)
	}

	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	for i := range c.Operators {
		op := &c.Operators[i]
		op.ID = strings.ToLower(op.ID)
		for j := range op.Categories {
			op.Categories[j] = strings.ToLower(op.Categories[j])
		}
	}
	return &c, nil
}

// Operator looks up an operator by id.
func (c *Catalog) Operator(id string) (Operator, bool) {
	for _, op := range c.Operators {
		if op.ID == id {
			return op, true
		}
	}
	return Operator{}, false
}
