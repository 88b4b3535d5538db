package domain

import (
	"bytes"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	apperrors "github.com/SirClappington/enqarchive/internal/errors"
)

type descriptorFile struct {
	Entities []*Descriptor `yaml:"entities"`
}

// LoadFile reads descriptors from a YAML file.
func LoadFile(path string) ([]*Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.Configuration("read descriptors %s: %v", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates a descriptor document. Entities without an
// exit code get -(position+1).
func Parse(data []byte) ([]*Descriptor, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f descriptorFile
	if err := dec.Decode(&f); err != nil && err != io.EOF {
		return nil, apperrors.Configuration("decode descriptors: %v", err)
	}
	if len(f.Entities) == 0 {
		return nil, apperrors.Configuration("descriptor file declares no entities")
	}

	names := make(map[string]bool, len(f.Entities))
	for i, d := range f.Entities {
		if d == nil {
			return nil, apperrors.Configuration("entity %d is empty", i+1)
		}
		if d.ExitCode == 0 {
			d.ExitCode = -(i + 1)
		}
		if err := d.Validate(); err != nil {
			return nil, err
		}
		if names[d.Name] {
			return nil, apperrors.Configuration("entity %q declared twice", d.Name)
		}
		names[d.Name] = true
	}
	return f.Entities, nil
}

// Select keeps the descriptors named in names, in the order of names. An
// empty names list keeps everything in declaration order. Naming an entity
// twice is an error.
func Select(all []*Descriptor, names []string) ([]*Descriptor, error) {
	if len(names) == 0 {
		return all, nil
	}
	byName := make(map[string]*Descriptor, len(all))
	for _, d := range all {
		byName[d.Name] = d
	}
	out := make([]*Descriptor, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		d, ok := byName[n]
		if !ok {
			return nil, apperrors.Configuration("unknown entity %q", n)
		}
		if seen[n] {
			return nil, apperrors.Configuration("entity %q selected twice", n)
		}
		seen[n] = true
		out = append(out, d)
	}
	return out, nil
}
