package catalog

import (
	_ "embed"
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"taskboard/internal/models"
)

//go:embed templates.yaml
var defaultTemplates []byte

type document struct {
	Version   int               `yaml:"version"`
	Templates []models.Template `yaml:"templates"`
}

// Catalog is a read-only, versioned library of task templates indexed by
// service category.
type Catalog struct {
	version    int
	templates  []models.Template
	byCategory map[string]int
}

// Default returns the catalog bundled with the binary.
func Default() (*Catalog, error) {
	c, err := Parse(defaultTemplates)
	if err != nil {
		return nil, errors.Wrap(err, "could not parse bundled templates")
	}
	return c, nil
}

// Load reads a catalog from a YAML file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read template catalog '%s'", path)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "could not parse template catalog '%s'", path)
	}
	return c, nil
}

// Parse decodes and validates a YAML catalog document.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.WithStack(err)
	}

	c := &Catalog{
		version:    doc.Version,
		templates:  make([]models.Template, 0, len(doc.Templates)),
		byCategory: make(map[string]int, len(doc.Templates)),
	}

	for i, tpl := range doc.Templates {
		tpl, err := normalize(tpl)
		if err != nil {
			return nil, errors.Wrapf(err, "template #%d", i)
		}
		if _, exists := c.byCategory[tpl.Category]; exists {
			return nil, errors.Errorf("template #%d: duplicate category '%s'", i, tpl.Category)
		}
		c.byCategory[tpl.Category] = len(c.templates)
		c.templates = append(c.templates, tpl)
	}

	return c, nil
}

func normalize(tpl models.Template) (models.Template, error) {
	tpl.Category = strings.ToLower(strings.TrimSpace(tpl.Category))
	if tpl.Category == "" {
		return tpl, errors.New("category must not be empty")
	}
	if strings.TrimSpace(tpl.ID) == "" {
		tpl.ID = "tpl-" + tpl.Category
	}

	blueprints := make([]models.Blueprint, 0, len(tpl.Blueprints))
	for i, bp := range tpl.Blueprints {
		bp.Title = strings.TrimSpace(bp.Title)
		bp.Description = strings.TrimSpace(bp.Description)
		if bp.Title == "" || bp.Description == "" {
			return tpl, errors.Errorf("blueprint #%d: title and description are required", i)
		}
		if bp.Priority == "" {
			bp.Priority = models.PriorityMedium
		}
		if !bp.Priority.Valid() {
			return tpl, errors.Errorf("blueprint #%d: unknown priority '%s'", i, bp.Priority)
		}
		if bp.EstimatedHours != nil && *bp.EstimatedHours < 0 {
			return tpl, errors.Errorf("blueprint #%d: estimated hours must not be negative", i)
		}
		bp.Tags = models.NormalizeTags(bp.Tags)
		blueprints = append(blueprints, bp)
	}
	tpl.Blueprints = blueprints

	return tpl, nil
}

func (c *Catalog) Version() int {
	return c.version
}

// Lookup returns the template registered for the given category key.
func (c *Catalog) Lookup(category string) (models.Template, bool) {
	idx, ok := c.byCategory[strings.ToLower(strings.TrimSpace(category))]
	if !ok {
		return models.Template{}, false
	}
	return c.templates[idx], true
}

// Templates returns the templates in catalog order.
func (c *Catalog) Templates() []models.Template {
	return append([]models.Template(nil), c.templates...)
}
