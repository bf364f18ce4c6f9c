package k8sockscfg

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"

	"github.com/kompox/k8socks/domain/model"
)

// EnvConfigPath names an explicit configuration file.
const EnvConfigPath = "K8SOCKS_CONFIG"

// Load decodes a YAML or JSON layer. Unknown fields are rejected.
func Load(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return &cfg, nil
		}
		return nil, fmt.Errorf("%w: %v", model.ErrConfig, err)
	}
	return &cfg, nil
}

// LoadFile reads and decodes the layer at path.
func LoadFile(path string) (*Config, error) {
	p, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrConfig, err)
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read file %s: %v", model.ErrConfig, p, err)
	}
	cfg, err := Load(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p, err)
	}
	return cfg, nil
}

// SearchPaths returns the candidate config files in priority order.
func SearchPaths() []string {
	var paths []string
	if p := os.Getenv(EnvConfigPath); p != "" {
		paths = append(paths, p)
	}
	if home, err := homedir.Dir(); err == nil {
		paths = append(paths,
			filepath.Join(home, ".k8socks", "config.yaml"),
			filepath.Join(home, ".k8socks", "config.json"),
		)
	}
	return append(paths, "config.json")
}

// LoadFromPaths loads the first existing file among paths (SearchPaths when
// nil). It returns an empty layer and "" when none exists.
func LoadFromPaths(paths []string) (*Config, string, error) {
	if paths == nil {
		paths = SearchPaths()
	}
	for _, p := range paths {
		expanded, err := homedir.Expand(p)
		if err != nil {
			continue
		}
		if _, err := os.Stat(expanded); err != nil {
			continue
		}
		cfg, err := LoadFile(expanded)
		if err != nil {
			return nil, expanded, err
		}
		return cfg, expanded, nil
	}
	return &Config{}, "", nil
}
