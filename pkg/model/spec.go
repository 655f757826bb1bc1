// Package model describes pipeline projects: the pipeline definition file,
// its task graph and the selection of tasks for an export run.
package model

import (
	"fmt"
	"path"
	"unicode"

	"github.com/pipeship/pipeship/pkg/errors"
	"github.com/spf13/afero"
	yaml "gopkg.in/yaml.v2"
)

const (
	// DefaultSpecFile is the pipeline definition file expected at the project root
	DefaultSpecFile = "pipeline.yaml"

	// PackagedSrcDir is where packaged projects keep their source and pipeline definition
	PackagedSrcDir = "src"
)

var (
	// ErrSpecNotFound indicates no pipeline definition was found for the project
	ErrSpecNotFound = errors.New("no pipeline definition found")

	// ErrInvalidSpec indicates the pipeline definition failed validation
	ErrInvalidSpec = errors.New("invalid pipeline definition")
)

// Meta describes the project a pipeline belongs to
type Meta struct {
	Name    string `yaml:"name,omitempty" json:"name,omitempty"`
	Version string `yaml:"version,omitempty" json:"version,omitempty"`
}

// Task is a single pipeline step: a script with a product, possibly
// depending on the products of upstream tasks
type Task struct {
	Name     string            `yaml:"name" json:"name"`
	Source   string            `yaml:"source" json:"source"`
	Product  string            `yaml:"product,omitempty" json:"product,omitempty"`
	Upstream []string          `yaml:"upstream,omitempty" json:"upstream,omitempty"`
	Params   map[string]string `yaml:"params,omitempty" json:"params,omitempty"`
}

// Spec is a parsed pipeline definition
type Spec struct {
	Meta  Meta   `yaml:"meta,omitempty" json:"meta,omitempty"`
	Tasks []Task `yaml:"tasks" json:"tasks"`

	// EntryPoint records the path the spec was loaded from, relative to the project root
	EntryPoint string `yaml:"-" json:"-"`
}

// LoadSpec parses a pipeline definition file
func LoadSpec(fs afero.Fs, specPath string) (*Spec, error) {
	b, err := afero.ReadFile(fs, specPath)
	if err != nil {
		return nil, ErrSpecNotFound.WrapMessage("reading %q: %w", specPath, err)
	}
	var spec Spec
	if err := yaml.UnmarshalStrict(b, &spec); err != nil {
		return nil, ErrInvalidSpec.WrapMessage("parsing %q: %w", specPath, err)
	}
	spec.EntryPoint = specPath
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return &spec, nil
}

// FindSpec resolves the pipeline definition for a project, honoring
// target-specific definitions (pipeline.<target>.yaml) and packaged
// layouts (src/<pkg>/pipeline.yaml).
func FindSpec(fs afero.Fs, root, target string) (string, error) {
	for _, dir := range specDirs(fs, root) {
		if target != "" {
			p := path.Join(dir, fmt.Sprintf("pipeline.%s.yaml", target))
			if ok, _ := afero.Exists(fs, p); ok {
				return p, nil
			}
		}
		p := path.Join(dir, DefaultSpecFile)
		if ok, _ := afero.Exists(fs, p); ok {
			return p, nil
		}
	}
	return "", ErrSpecNotFound.WrapMessage("expected %s under %q", DefaultSpecFile, root)
}

func specDirs(fs afero.Fs, root string) []string {
	dirs := []string{root}
	entries, err := afero.ReadDir(fs, path.Join(root, PackagedSrcDir))
	if err != nil {
		return dirs
	}
	for _, entry := range entries {
		if entry.IsDir() {
			dirs = append(dirs, path.Join(root, PackagedSrcDir, entry.Name()))
		}
	}
	return dirs
}

// Validate checks task names, duplicates and upstream references
func (s *Spec) Validate() error {
	seen := make(map[string]bool, len(s.Tasks))
	for _, task := range s.Tasks {
		if task.Name == "" {
			return ErrInvalidSpec.WrapMessage("task with empty name (source %q)", task.Source)
		}
		if err := validateTaskName(task.Name); err != nil {
			return err
		}
		if seen[task.Name] {
			return ErrInvalidSpec.WrapMessage("duplicate task name %q", task.Name)
		}
		seen[task.Name] = true
	}
	for _, task := range s.Tasks {
		for _, up := range task.Upstream {
			if !seen[up] {
				return ErrInvalidSpec.WrapMessage(
					"task %q depends on unknown task %q", task.Name, up)
			}
		}
	}
	return nil
}

// Task names end up in image tags, job names and file names, so the
// character set is restricted.
func validateTaskName(name string) error {
	for _, c := range name {
		if !unicode.IsDigit(c) && !unicode.IsLetter(c) &&
			c != '-' && c != '_' && c != '.' {
			return ErrInvalidSpec.WrapMessage(
				"task name %q contains unsupported character %q",
				name, string(c))
		}
	}
	return nil
}

// Task returns the named task
func (s *Spec) Task(name string) (Task, bool) {
	for _, t := range s.Tasks {
		if t.Name == name {
			return t, true
		}
	}
	return Task{}, false
}

// Names returns all task names in definition order
func (s *Spec) Names() []string {
	names := make([]string, 0, len(s.Tasks))
	for _, t := range s.Tasks {
		names = append(names, t.Name)
	}
	return names
}

// PackageName is the project name used for image tags and job definitions
func (s *Spec) PackageName() string {
	if s.Meta.Name != "" {
		return s.Meta.Name
	}
	return "pipeline"
}

// PackageVersion is the project version used for image tags
func (s *Spec) PackageVersion() string {
	if s.Meta.Version != "" {
		return s.Meta.Version
	}
	return "latest"
}
