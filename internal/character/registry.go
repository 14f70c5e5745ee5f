// Package character holds the immutable NPC roster.
package character

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/easeaico/npc-town/internal/apperr"
	"github.com/easeaico/npc-town/internal/types"
)

//go:embed roster.yaml
var defaultRoster []byte

type rosterFile struct {
	Characters []types.Character `yaml:"characters"`
}

// Registry is a read-only, ordered set of characters.
type Registry struct {
	ordered []types.Character
	byName  map[string]types.Character
}

// NewRegistry loads the embedded roster.
func NewRegistry() (*Registry, error) {
	return Parse(defaultRoster)
}

// LoadFile loads a roster from a YAML file, falling back to the embedded
// roster when path is empty.
func LoadFile(path string) (*Registry, error) {
	if strings.TrimSpace(path) == "" {
		return NewRegistry()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read roster %s: %w", path, err)
	}
	return Parse(data)
}

// Parse builds a Registry from YAML bytes.
func Parse(data []byte) (*Registry, error) {
	var file rosterFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to unmarshal roster: %w", err)
	}
	if len(file.Characters) == 0 {
		return nil, fmt.Errorf("roster has no characters")
	}

	r := &Registry{byName: make(map[string]types.Character, len(file.Characters))}
	for _, c := range file.Characters {
		c.Name = strings.TrimSpace(c.Name)
		if c.Name == "" {
			return nil, fmt.Errorf("roster entry without name")
		}
		if _, dup := r.byName[c.Name]; dup {
			return nil, fmt.Errorf("duplicate character %q in roster", c.Name)
		}
		r.byName[c.Name] = c
		r.ordered = append(r.ordered, c)
	}
	return r, nil
}

// Get returns the named character or a not-found error.
func (r *Registry) Get(name string) (types.Character, error) {
	c, ok := r.byName[name]
	if !ok {
		return types.Character{}, apperr.NotFound("NPC '%s' 不存在", name)
	}
	return c, nil
}

// All returns the characters in roster order.
func (r *Registry) All() []types.Character {
	out := make([]types.Character, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Names returns the character names in roster order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.ordered))
	for _, c := range r.ordered {
		names = append(names, c.Name)
	}
	return names
}

func (r *Registry) Len() int {
	return len(r.ordered)
}
