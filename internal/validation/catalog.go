package validation

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"slices"

	"gopkg.in/yaml.v3"
)

//go:embed schemas/*.yaml
var schemaFS embed.FS

// Catalog holds named schemas loaded once at startup.
type Catalog struct {
	schemas map[string]*Schema
}

// NewCatalog loads the schemas embedded in the binary.
func NewCatalog() (*Catalog, error) {
	return LoadCatalog(schemaFS, "schemas/*.yaml")
}

// LoadCatalog reads every YAML file in fsys matching pattern. A file may hold
// several schemas separated by "---". Duplicate names, unknown types and
// unparsable rule tags fail the whole load.
func LoadCatalog(fsys fs.FS, pattern string) (*Catalog, error) {
	files, err := fs.Glob(fsys, pattern)
	if err != nil {
		return nil, fmt.Errorf("glob schemas: %w", err)
	}

	c := &Catalog{schemas: make(map[string]*Schema)}
	for _, file := range files {
		data, err := fs.ReadFile(fsys, file)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", file, err)
		}
		schemas, err := ParseSchemas(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", file, err)
		}
		for _, s := range schemas {
			if _, dup := c.schemas[s.Name]; dup {
				return nil, fmt.Errorf("%s: duplicate schema %q", file, s.Name)
			}
			c.schemas[s.Name] = s
		}
	}
	return c, nil
}

// ParseSchemas decodes one or more YAML schema documents.
func ParseSchemas(data []byte) ([]*Schema, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var out []*Schema
	for {
		var s Schema
		err := dec.Decode(&s)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode schema: %w", err)
		}
		if err := s.check(); err != nil {
			return nil, err
		}
		out = append(out, &s)
	}
	return out, nil
}

// Get returns the schema registered under name.
func (c *Catalog) Get(name string) (*Schema, bool) {
	s, ok := c.schemas[name]
	return s, ok
}

// MustGet is Get for wiring code, where a missing schema is a programming error.
func (c *Catalog) MustGet(name string) *Schema {
	s, ok := c.schemas[name]
	if !ok {
		panic(fmt.Sprintf("validation: unknown schema %q", name))
	}
	return s
}

// Names lists the loaded schemas in sorted order.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.schemas))
	for name := range c.schemas {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
