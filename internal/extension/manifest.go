package extension

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// manifestFiles are tried in order. package.json decodes as YAML.
var manifestFiles = []string{"extension.yaml", "package.json"}

// Manifest is the package description found in an extension directory.
type Manifest struct {
	Name             string            `yaml:"name"`
	Main             string            `yaml:"main"`
	PeerDependencies map[string]string `yaml:"peerDependencies"`
}

// errNoManifest marks a directory without any manifest file.
var errNoManifest = errors.New("no manifest")

func readManifest(dir string) (*Manifest, error) {
	for _, name := range manifestFiles {
		path := filepath.Join(dir, name)
		raw, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		var m Manifest
		if err := yaml.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		return &m, nil
	}
	return nil, errNoManifest
}
