package fields

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FileProvider serves definitions from a YAML (or JSON) file keyed by
// category:
//
//	deal:
//	  - key: 3f0c...
//	    name: Priority
//	    type: enum
//	    options: [{id: 1, label: High}]
type FileProvider struct {
	defs Static
}

// LoadFileProvider reads a definitions file.
func LoadFileProvider(path string) (*FileProvider, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read field definitions %s: %w", path, err)
	}

	return ParseFileProvider(data)
}

// ParseFileProvider parses definitions from YAML or JSON data.
func ParseFileProvider(data []byte) (*FileProvider, error) {
	var defs map[string][]Definition

	err := yaml.Unmarshal(data, &defs)
	if err != nil {
		return nil, fmt.Errorf("failed to parse field definitions: %w", err)
	}

	for category, list := range defs {
		for i, d := range list {
			if d.Key == "" {
				return nil, fmt.Errorf("%s field %d: missing key", category, i)
			}
		}
	}

	return &FileProvider{defs: defs}, nil
}

// Fields implements Provider.
func (p *FileProvider) Fields(ctx context.Context, category string) ([]Definition, error) {
	return p.defs.Fields(ctx, category)
}
