package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultManifest is the manifest file looked up when none is given.
const DefaultManifest = "cssmerge.yml"

// Job is one baseline/candidate pair to merge.
type Job struct {
	Name     string `yaml:"name,omitempty"`
	Restore  string `yaml:"restore"`
	Current  string `yaml:"current"`
	Output   string `yaml:"output,omitempty"`
	Rev      string `yaml:"rev,omitempty"`
	Markdown bool   `yaml:"markdown,omitempty"`
}

// Manifest lists the merges of a batch run.
type Manifest struct {
	Concurrency int   `yaml:"concurrency,omitempty"`
	Jobs        []Job `yaml:"jobs"`
}

// Load reads a manifest. Relative paths in jobs are resolved against the
// manifest's directory, and a job without an output overwrites its current
// document.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}
	if len(m.Jobs) == 0 {
		return nil, fmt.Errorf("manifest %s has no jobs", path)
	}

	dir, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, err
	}
	for i := range m.Jobs {
		if err := m.Jobs[i].normalize(dir, i); err != nil {
			return nil, fmt.Errorf("manifest %s: %w", path, err)
		}
	}
	return &m, nil
}

func (j *Job) normalize(dir string, index int) error {
	if j.Restore == "" || j.Current == "" {
		return fmt.Errorf("job %d: restore and current are required", index)
	}
	if j.Current == "-" {
		return errors.New("stdin cannot be used in a manifest")
	}
	if j.Output == "" {
		j.Output = j.Current
	}
	j.Restore = resolve(dir, j.Restore)
	j.Current = resolve(dir, j.Current)
	j.Output = resolve(dir, j.Output)
	if j.Name == "" {
		j.Name = filepath.Base(j.Output)
	}
	return nil
}

func resolve(dir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}
