/*
Package factory provides YAML to Go template conversion.

PURPOSE:
  Converts YAML template definitions into catalog records (templates and
  their ordered items). This enables template configuration without code
  changes - evaluation engineers can define a checklist in YAML, and the
  factory loads it into the store at startup.

WHY YAML?
  - Non-developers can author evaluation templates
  - Version control for template definitions
  - One file can seed a whole environment

YAML SCHEMA:
  templates:
    - id: tpl-safety
      name: "Vehicle Safety Evaluation"
      status: ACTIVE
      version: 1
      items:
        - key: max_speed
          label: "Maximum speed"
          kind: NUMBER
          unit: km/h
          required: true
          weight: "1.5"
        - key: passed
          label: "Passed overall"
          kind: BOOL

KEY FEATURES:
  - Validates item kinds (NUMBER, TEXT, BOOL)
  - Rejects duplicate item keys within a template
  - Assigns display order from YAML order (10, 20, 30, ...)
  - Parses weights as exact decimals
  - Generates ids where the YAML omits them

USAGE:
  defs, err := factory.ParseFile("./templates.yaml")
  if err != nil {
      log.Fatal(err)
  }
  if err := factory.Import(ctx, store, defs); err != nil {
      log.Fatal(err)
  }

SEE ALSO:
  - record/types.go: Item type definition
  - store/sqlite/sqlite.go: Catalog persistence
*/
package factory

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/eval-engine/record"
	"github.com/warp/eval-engine/store/sqlite"
	"gopkg.in/yaml.v3"
)

// orderStep leaves gaps between consecutive items so manual inserts
// don't force a full renumber.
const orderStep = 10

// =============================================================================
// YAML SCHEMA TYPES
// =============================================================================

// FileYAML is the root of a template definition file.
type FileYAML struct {
	Templates []TemplateYAML `yaml:"templates"`
}

// TemplateYAML is the YAML representation of one evaluation template.
type TemplateYAML struct {
	ID      string     `yaml:"id,omitempty"`
	Name    string     `yaml:"name"`
	Status  string     `yaml:"status,omitempty"`  // Default ACTIVE
	Version int        `yaml:"version,omitempty"` // Default 1
	Items   []ItemYAML `yaml:"items"`
}

// ItemYAML is the YAML representation of one measured item.
type ItemYAML struct {
	ID       string `yaml:"id,omitempty"`
	Key      string `yaml:"key"`
	Label    string `yaml:"label,omitempty"` // Default: the key
	Kind     string `yaml:"kind"`            // NUMBER, TEXT, BOOL
	Unit     string `yaml:"unit,omitempty"`
	Required bool   `yaml:"required,omitempty"`
	Weight   string `yaml:"weight,omitempty"` // Decimal string, default "1"
}

// Definition is one parsed template plus its ordered items, ready to store.
type Definition struct {
	Template sqlite.Template
	Items    []record.Item
}

// =============================================================================
// PARSING
// =============================================================================

// ParseFile reads and parses a YAML template definition file.
func ParseFile(path string) ([]Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read template file: %w", err)
	}
	return Parse(data)
}

// Parse converts YAML bytes into template definitions.
func Parse(data []byte) ([]Definition, error) {
	var file FileYAML
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse template YAML: %w", err)
	}

	defs := make([]Definition, 0, len(file.Templates))
	for i, tj := range file.Templates {
		def, err := fromYAML(tj)
		if err != nil {
			return nil, fmt.Errorf("template %d (%q): %w", i+1, tj.Name, err)
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// fromYAML converts TemplateYAML to a Definition with defaults applied.
func fromYAML(tj TemplateYAML) (Definition, error) {
	if strings.TrimSpace(tj.Name) == "" {
		return Definition{}, fmt.Errorf("template name is required")
	}
	if len(tj.Items) == 0 {
		return Definition{}, fmt.Errorf("template has no items")
	}

	tpl := sqlite.Template{
		ID:      tj.ID,
		Name:    tj.Name,
		Status:  tj.Status,
		Version: tj.Version,
	}
	if tpl.ID == "" {
		tpl.ID = uuid.NewString()
	}
	if tpl.Status == "" {
		tpl.Status = "ACTIVE"
	}
	if tpl.Version == 0 {
		tpl.Version = 1
	}

	items := make([]record.Item, 0, len(tj.Items))
	seen := make(map[string]bool, len(tj.Items))
	for i, ij := range tj.Items {
		item, err := itemFromYAML(tpl.ID, ij, (i+1)*orderStep)
		if err != nil {
			return Definition{}, fmt.Errorf("item %d: %w", i+1, err)
		}
		if seen[item.Key] {
			return Definition{}, fmt.Errorf("item %d: duplicate key %q", i+1, item.Key)
		}
		seen[item.Key] = true
		items = append(items, item)
	}

	return Definition{Template: tpl, Items: items}, nil
}

func itemFromYAML(templateID string, ij ItemYAML, order int) (record.Item, error) {
	key := strings.TrimSpace(ij.Key)
	if key == "" {
		return record.Item{}, fmt.Errorf("item key is required")
	}

	kind := record.ItemKind(strings.ToUpper(strings.TrimSpace(ij.Kind)))
	if !kind.Valid() {
		return record.Item{}, fmt.Errorf("unknown item kind %q (want NUMBER, TEXT or BOOL)", ij.Kind)
	}

	weight := decimal.NewFromInt(1)
	if ij.Weight != "" {
		var err error
		weight, err = decimal.NewFromString(ij.Weight)
		if err != nil {
			return record.Item{}, fmt.Errorf("invalid weight %q: %w", ij.Weight, err)
		}
	}

	item := record.Item{
		ID:         ij.ID,
		TemplateID: templateID,
		Key:        key,
		Label:      ij.Label,
		Kind:       kind,
		Unit:       ij.Unit,
		Required:   ij.Required,
		Weight:     weight,
		Order:      order,
	}
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.Label == "" {
		item.Label = key
	}
	return item, nil
}

// =============================================================================
// IMPORT
// =============================================================================

// Catalog is the subset of the store the importer writes to.
type Catalog interface {
	SaveTemplate(ctx context.Context, tpl sqlite.Template) error
	SaveItem(ctx context.Context, item record.Item) error
}

// Import persists parsed definitions into the catalog. Saving an already
// present id updates it in place, so re-importing the same file is safe.
func Import(ctx context.Context, store Catalog, defs []Definition) error {
	for _, def := range defs {
		if err := store.SaveTemplate(ctx, def.Template); err != nil {
			return fmt.Errorf("save template %q: %w", def.Template.Name, err)
		}
		for _, item := range def.Items {
			if err := store.SaveItem(ctx, item); err != nil {
				return fmt.Errorf("save item %q: %w", item.Key, err)
			}
		}
	}
	return nil
}
