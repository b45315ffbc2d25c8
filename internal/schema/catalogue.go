package schema

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// ErrUnknownModule is returned when no schema is registered under a name.
var ErrUnknownModule = errors.New("unknown module")

type catalogueFile struct {
	Modules []*FieldSchema `yaml:"modules"`
}

// Catalogue is the read-only set of module schemas.
type Catalogue struct {
	modules map[string]*FieldSchema
}

// LoadCatalogue reads and prepares every module in the YAML file at path.
func LoadCatalogue(path string) (*Catalogue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseCatalogue(data)
}

func ParseCatalogue(data []byte) (*Catalogue, error) {
	var f catalogueFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse module catalogue: %w", err)
	}
	return NewCatalogue(f.Modules...)
}

// NewCatalogue prepares the given schemas and indexes them by name.
func NewCatalogue(modules ...*FieldSchema) (*Catalogue, error) {
	c := &Catalogue{modules: make(map[string]*FieldSchema, len(modules))}
	tables := map[string]string{}
	for _, m := range modules {
		if err := m.Prepare(); err != nil {
			return nil, err
		}
		if _, dup := c.modules[m.Name]; dup {
			return nil, fmt.Errorf("module %s declared twice", m.Name)
		}
		if other, dup := tables[m.Table]; dup {
			return nil, fmt.Errorf("modules %s and %s share table %s", other, m.Name, m.Table)
		}
		tables[m.Table] = m.Name
		c.modules[m.Name] = m
	}
	return c, nil
}

func (c *Catalogue) Get(name string) (*FieldSchema, error) {
	m, ok := c.modules[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownModule, name)
	}
	return m, nil
}

// Names returns the module names sorted.
func (c *Catalogue) Names() []string {
	out := make([]string, 0, len(c.modules))
	for n := range c.modules {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Tables maps each module table to its stored columns.
func (c *Catalogue) Tables() map[string][]string {
	out := make(map[string][]string, len(c.modules))
	for _, m := range c.modules {
		out[m.Table] = m.StoredColumns()
	}
	return out
}
