package catalog

import (
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	breverrors "github.com/brevdev/hfi-regress/pkg/errors"
)

type catalogFile struct {
	Tests []Entry `yaml:"tests"`
}

// LoadYAML reads catalog entries from path.
func LoadYAML(fs afero.Fs, path string) ([]Entry, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, breverrors.WrapAndTrace(err)
	}
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, breverrors.WrapAndTrace(err, "parsing", path)
	}
	return f.Tests, nil
}

// Load returns the default catalog with the YAML file at path overlaid.
// An empty path is just the default catalog.
func Load(fs afero.Fs, path string) (*Catalog, error) {
	c := Default()
	if path == "" {
		return c, nil
	}
	entries, err := LoadYAML(fs, path)
	if err != nil {
		return nil, err
	}
	c, err = c.Overlay(entries)
	if err != nil {
		return nil, breverrors.NewConfigError("catalog %s: %v", path, err)
	}
	return c, nil
}
