package ruleset

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed defaults/classes.yaml
var defaultClassesYAML []byte

type classFile struct {
	Classes []*Class `yaml:"classes"`
}

// Catalog is a read-only, concurrency-safe set of classes keyed by id.
type Catalog struct {
	mu      sync.RWMutex
	classes map[string]*Class
}

// NewCatalog validates classes and indexes them by id. Later entries replace
// earlier ones with the same id.
//
// Postcondition: Returns a Catalog or the first validation error.
func NewCatalog(classes ...*Class) (*Catalog, error) {
	c := &Catalog{classes: make(map[string]*Class, len(classes))}
	for _, cl := range classes {
		if err := cl.Validate(); err != nil {
			return nil, err
		}
		c.classes[strings.ToLower(cl.ID)] = cl
	}
	return c, nil
}

// DefaultCatalog returns the built-in Warrior, Mage, Rogue and Ranger.
func DefaultCatalog() (*Catalog, error) {
	classes, err := ParseClasses(defaultClassesYAML)
	if err != nil {
		return nil, fmt.Errorf("parsing built-in classes: %w", err)
	}
	return NewCatalog(classes...)
}

// LoadCatalog merges the built-in classes with every .yaml file in dir.
// An empty dir returns the built-ins.
//
// Precondition: dir, when non-empty, must be a readable directory.
func LoadCatalog(dir string) (*Catalog, error) {
	base, err := ParseClasses(defaultClassesYAML)
	if err != nil {
		return nil, fmt.Errorf("parsing built-in classes: %w", err)
	}
	if dir == "" {
		return NewCatalog(base...)
	}
	extra, err := LoadClasses(dir)
	if err != nil {
		return nil, err
	}
	return NewCatalog(append(base, extra...)...)
}

// ParseClasses parses a YAML document holding a top-level "classes" list.
func ParseClasses(data []byte) ([]*Class, error) {
	var f classFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing classes YAML: %w", err)
	}
	return f.Classes, nil
}

// LoadClasses reads all .yaml files in dir and parses each as a list of classes.
//
// Precondition: dir must be a readable directory path.
// Postcondition: Returns all parsed classes (may be empty) or a non-nil error.
func LoadClasses(dir string) ([]*Class, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading class dir %s: %w", dir, err)
	}
	var out []*Class
	for _, e := range entries {
		if e.IsDir() || (filepath.Ext(e.Name()) != ".yaml" && filepath.Ext(e.Name()) != ".yml") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		classes, err := ParseClasses(data)
		if err != nil {
			return nil, fmt.Errorf("parsing class file %s: %w", path, err)
		}
		out = append(out, classes...)
	}
	return out, nil
}

// Class returns the class with the given id, case-insensitively.
func (c *Catalog) Class(id string) (*Class, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cl, ok := c.classes[strings.ToLower(id)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownClass, id)
	}
	return cl, nil
}

// IDs returns every class id in sorted order.
func (c *Catalog) IDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]string, 0, len(c.classes))
	for id := range c.classes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
