package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// PivotsConfig holds declared pivot definitions (read/write).
type PivotsConfig struct {
	Pivots map[string]PivotEntry `yaml:"pivots,omitempty"`
}

// PivotEntry declares one pivot.
type PivotEntry struct {
	Left        string `yaml:"left"`
	Right       string `yaml:"right"`
	OnDelete    string `yaml:"on_delete,omitempty"`
	OnDuplicate string `yaml:"on_duplicate,omitempty"`
	Description string `yaml:"description,omitempty"`
}

// LoadPivots loads pivot declarations from the .pivot directory.
func LoadPivots(basePath string) (*PivotsConfig, error) {
	data, err := os.ReadFile(PivotsFilePath(basePath))
	if os.IsNotExist(err) {
		// Return empty config if file doesn't exist
		return &PivotsConfig{
			Pivots: make(map[string]PivotEntry),
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading pivots file: %w", err)
	}

	var cfg PivotsConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing pivots file: %w", err)
	}

	if cfg.Pivots == nil {
		cfg.Pivots = make(map[string]PivotEntry)
	}

	return &cfg, nil
}

// Save writes the pivot declarations to the pivots file.
func (p *PivotsConfig) Save(basePath string) error {
	if err := os.MkdirAll(ConfigDir(basePath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshaling pivots config: %w", err)
	}

	if err := os.WriteFile(PivotsFilePath(basePath), data, 0600); err != nil {
		return fmt.Errorf("writing pivots file: %w", err)
	}

	return nil
}

// Add adds a pivot declaration.
func (p *PivotsConfig) Add(name string, entry PivotEntry) {
	if p.Pivots == nil {
		p.Pivots = make(map[string]PivotEntry)
	}
	p.Pivots[name] = entry
}

// Remove removes a pivot declaration.
func (p *PivotsConfig) Remove(name string) {
	if p.Pivots != nil {
		delete(p.Pivots, name)
	}
}

// Get returns the declaration of a specific pivot.
func (p *PivotsConfig) Get(name string) (*PivotEntry, error) {
	if len(p.Pivots) == 0 {
		return nil, errors.New("no pivots declared")
	}

	entry, ok := p.Pivots[name]
	if !ok {
		names := p.Names()
		if len(names) > 5 {
			names = append(names[:5], "...")
		}
		return nil, fmt.Errorf("pivot %q not declared (available: %s)", name, strings.Join(names, ", "))
	}

	return &entry, nil
}

// Names returns the declared pivot names in sorted order.
func (p *PivotsConfig) Names() []string {
	names := make([]string, 0, len(p.Pivots))
	for name := range p.Pivots {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Exists checks if a pivot is declared.
func (p *PivotsConfig) Exists(name string) bool {
	if p.Pivots == nil {
		return false
	}
	_, ok := p.Pivots[name]
	return ok
}
