package directory

import (
	"context"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/moveis-planejados/lead-api/internal/model"
)

type seedFile struct {
	Stores []model.StoreRecord `yaml:"stores"`
}

// File serves a fixed store list loaded from a YAML seed file.
type File struct {
	stores []model.StoreRecord
}

// LoadFile reads the seed at path. The file holds a top-level "stores" list.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "directory: read seed file %s", path)
	}
	return ParseFile(data)
}

// ParseFile decodes a YAML seed document.
func ParseFile(data []byte) (*File, error) {
	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, eris.Wrap(err, "directory: parse seed file")
	}
	seen := make(map[model.StoreID]bool, len(seed.Stores))
	for i, s := range seed.Stores {
		if s.ID == "" {
			return nil, eris.Errorf("directory: seed store %d has no id", i)
		}
		if seen[s.ID] {
			return nil, eris.Errorf("directory: duplicate seed store id %s", s.ID)
		}
		seen[s.ID] = true
	}
	return &File{stores: seed.Stores}, nil
}

func (f *File) Stores(_ context.Context) ([]model.StoreRecord, error) {
	out := make([]model.StoreRecord, len(f.stores))
	copy(out, f.stores)
	return out, nil
}
