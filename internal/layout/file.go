package layout

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type fileDoc struct {
	Layouts []fileLayout `yaml:"layouts"`
}

type fileLayout struct {
	ID          int      `yaml:"id"`
	Name        string   `yaml:"name"`
	Title       string   `yaml:"title"`
	Table       string   `yaml:"table"`
	Summary     string   `yaml:"summary"`
	Diagnostics []string `yaml:"diagnostics"`
	Fields      []Field  `yaml:"fields"`
}

// Parse reads layout descriptors from YAML:
//
//	layouts:
//	  - id: 1
//	    name: analog_meters
//	    table: control_panel7
//	    diagnostics: ["An analog voltmeter (V)"]
//	    fields:
//	      - {name: CurrentDateTime, type: string, required: true}
//	      - {name: Voltmeter_V, type: real}
func Parse(data []byte) ([]Descriptor, error) {
	var doc fileDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse layouts: %w", err)
	}
	out := make([]Descriptor, 0, len(doc.Layouts))
	for _, l := range doc.Layouts {
		title := l.Title
		if title == "" {
			title = l.Name
		}
		out = append(out, newDescriptor(l.ID, l.Name, title, l.Table, l.Summary, l.Diagnostics, l.Fields))
	}
	return out, nil
}

// LoadFile reads descriptors from a YAML file.
func LoadFile(path string) ([]Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read layouts file: %w", err)
	}
	return Parse(data)
}

// Load returns the registry from path, or the built-in registry when path is empty.
func Load(path string) (*Registry, error) {
	if path == "" {
		return NewRegistry(Builtin()...)
	}
	descs, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	return NewRegistry(descs...)
}
