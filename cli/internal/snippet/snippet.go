// Package snippet holds per-function usage examples that are added to
// generation prompts when available. Snippets are optional context: a
// function with none is still processed.
package snippet

import (
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// Store maps a function name to its usage examples in insertion order.
// The zero value is ready to use. Not safe for concurrent writes.
type Store struct {
	byName map[string][]string
}

// Add appends snippet to the examples for functionName.
func (s *Store) Add(functionName, snippet string) {
	if s.byName == nil {
		s.byName = make(map[string][]string)
	}
	s.byName[functionName] = append(s.byName[functionName], snippet)
}

// Get returns a copy of the examples for functionName (nil when none).
func (s *Store) Get(functionName string) []string {
	if s == nil {
		return nil
	}
	return slices.Clone(s.byName[functionName])
}

// Has reports whether functionName has at least one example.
func (s *Store) Has(functionName string) bool {
	return s != nil && len(s.byName[functionName]) > 0
}

// Len returns the number of functions with examples.
func (s *Store) Len() int {
	if s == nil {
		return 0
	}
	return len(s.byName)
}

// file is the on-disk shape of snippets.yaml:
//
//	snippets:
//	  add:
//	    - "add(1, 2) // 3"
type file struct {
	Snippets map[string][]string `yaml:"snippets"`
}

// Load reads a YAML snippet file. A missing file yields an empty store and no
// error; malformed YAML is an error.
func Load(path string) (*Store, error) {
	s := &Store{}
	if path == "" {
		return s, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("read snippets %s: %w", path, err)
	}
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse snippets %s: %w", path, err)
	}
	for name, list := range f.Snippets {
		for _, sn := range list {
			s.Add(name, sn)
		}
	}
	return s, nil
}
