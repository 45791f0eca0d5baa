package compose

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

var DefaultFilenames = []string{"compose.yaml", "compose.yml", "docker-compose.yaml", "docker-compose.yml"}

// File is the subset of a compose file this tool reads.
type File struct {
	Name     string             `yaml:"name,omitempty"`
	Services map[string]Service `yaml:"services"`
	Volumes  map[string]*Volume `yaml:"volumes,omitempty"`
}

type Service struct {
	Image         string   `yaml:"image,omitempty"`
	ContainerName string   `yaml:"container_name,omitempty"`
	Volumes       []any    `yaml:"volumes,omitempty"`
	DependsOn     any      `yaml:"depends_on,omitempty"`
	Profiles      []string `yaml:"profiles,omitempty"`
}

type Volume struct {
	Name     string `yaml:"name,omitempty"`
	External any    `yaml:"external,omitempty"`
}

// FindFile returns the first default compose file present in dir.
func FindFile(dir string) (string, error) {
	for _, name := range DefaultFilenames {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", errors.Errorf("no compose file in %s", dir)
}

func LoadFile(path string) (*File, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read compose file")
	}
	var f File
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, errors.Wrap(err, "parse compose yaml")
	}
	return &f, nil
}

// VolumeName resolves the engine-side name of a volume key. An explicit
// `name:` wins (after expand); otherwise fallback is used.
func (f *File) VolumeName(key string, expand func(string) string, fallback string) string {
	if f == nil {
		return fallback
	}
	v, ok := f.Volumes[key]
	if !ok || v == nil || v.Name == "" {
		return fallback
	}
	if expand == nil {
		return v.Name
	}
	return expand(v.Name)
}

// MissingServices returns the names not declared under services:, sorted.
func (f *File) MissingServices(names ...string) []string {
	var out []string
	for _, n := range names {
		if f == nil {
			out = append(out, n)
			continue
		}
		if _, ok := f.Services[n]; !ok {
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out
}
