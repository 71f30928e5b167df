package typeconf

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type fileConfig struct {
	Types map[string]typeEntry `yaml:"types"`
}

type typeEntry struct {
	Keys []string `yaml:"keys"`
}

// Load reads a type-configuration file of the form:
//
//	types:
//	  User:
//	    keys: [id]
//	  Post:
//	    keys: [slug, locale]
//
// Types listed without keys default to ["id"].
func Load(path string) (Map, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading type configuration: %w", err)
	}
	return Parse(raw)
}

// Parse decodes YAML type configuration from memory.
func Parse(raw []byte) (Map, error) {
	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return nil, fmt.Errorf("parsing type configuration: %w", err)
	}
	m := make(Map, len(fc.Types))
	for name, entry := range fc.Types {
		keys := entry.Keys
		if len(keys) == 0 {
			keys = []string{"id"}
		}
		m[name] = Config{Keys: keys}
	}
	return m, nil
}
