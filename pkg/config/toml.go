package config

import (
	"bytes"

	"github.com/BurntSushi/toml"
)

// tomlParser adapts BurntSushi/toml to koanf's Parser interface. koanf
// only needs the nested map; flattening to dotted keys happens inside
// koanf itself.
type tomlParser struct{}

func (tomlParser) Unmarshal(b []byte) (map[string]any, error) {
	var out map[string]any
	if err := toml.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (tomlParser) Marshal(m map[string]any) ([]byte, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(m); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
