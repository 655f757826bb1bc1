// Package config reads and writes pipeship.yaml, the per-target export
// configuration living next to the pipeline definition.
package config

import (
	"sort"

	"github.com/pipeship/pipeship/pkg/errors"
	"github.com/pipeship/pipeship/pkg/model"
	"github.com/spf13/afero"
	yaml "gopkg.in/yaml.v2"
)

const (
	// FileName is the export configuration file at the project root
	FileName = "pipeship.yaml"

	// PlaceholderRepository is written by `pipeship add` and must be
	// replaced before exporting
	PlaceholderRepository = "your-repository/name"

	// PlaceholderJobQueue is written by `pipeship add` for AWS Batch targets
	PlaceholderJobQueue = "your-job-queue"
)

var (
	// ErrConfigNotFound indicates the configuration file is missing
	ErrConfigNotFound = errors.New("missing " + FileName)

	// ErrInvalidConfig indicates the configuration failed validation
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrTargetExists indicates `add` was called for an existing target
	ErrTargetExists = errors.New("target already configured")

	// ErrTargetNotFound indicates an export for an unknown target
	ErrTargetNotFound = errors.New("target not configured")

	// ErrPlaceholderRepository indicates the scaffolded repository value was not replaced
	ErrPlaceholderRepository = errors.Newf(
		"invalid repository %q in %s, please add a valid value", PlaceholderRepository, FileName)
)

// ContainerProperties describe the default container for backend jobs
type ContainerProperties struct {
	Image     string `yaml:"image,omitempty"`
	VCPUs     int    `yaml:"vcpus,omitempty"`
	MemoryMiB int    `yaml:"memory,omitempty"`
}

// Resources are per-task overrides of the default container resources
type Resources struct {
	VCPUs     int `yaml:"vcpus,omitempty"`
	MemoryMiB int `yaml:"memory,omitempty"`
	GPUs      int `yaml:"gpu,omitempty"`
}

// Target configures one export destination
type Target struct {
	Backend    string   `yaml:"backend"`
	Repository string   `yaml:"repository,omitempty"`
	Include    []string `yaml:"include,omitempty"`
	Exclude    []string `yaml:"exclude,omitempty"`

	// Runner is the orchestrator command invoked inside containers
	Runner string `yaml:"runner,omitempty"`

	// AWS Batch settings
	JobQueue string `yaml:"job_queue,omitempty"`
	Region   string `yaml:"region,omitempty"`
	Endpoint string `yaml:"endpoint,omitempty"`

	// Static credentials for local stacks (moto, localstack); the
	// default AWS credential chain applies when unset
	AccessKey string `yaml:"access_key,omitempty"`
	SecretKey string `yaml:"secret_key,omitempty"`

	ContainerProperties ContainerProperties  `yaml:"container_properties,omitempty"`
	TaskResources       map[string]Resources `yaml:"task_resources,omitempty"`
}

// DefaultRunner is the orchestrator CLI assumed when a target does not name one
const DefaultRunner = "ploomber"

// RunnerCommand returns the configured orchestrator command
func (t *Target) RunnerCommand() string {
	if t.Runner == "" {
		return DefaultRunner
	}
	return t.Runner
}

// File is the full configuration: target name to target settings
type File struct {
	Targets map[string]*Target
}

// Load reads the configuration file. Unknown keys are errors so typos
// in pipeship.yaml surface before an export run does anything.
func Load(fs afero.Fs, path string) (*File, error) {
	b, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, ErrConfigNotFound.Wrap(err)
	}
	targets := make(map[string]*Target)
	if err := yaml.UnmarshalStrict(b, &targets); err != nil {
		return nil, ErrInvalidConfig.WrapMessage("parsing %q: %w", path, err)
	}
	return &File{Targets: targets}, nil
}

// LoadOrEmpty reads the configuration file, tolerating its absence
func LoadOrEmpty(fs afero.Fs, path string) (*File, error) {
	f, err := Load(fs, path)
	if errors.Is(err, ErrConfigNotFound) {
		return &File{Targets: make(map[string]*Target)}, nil
	}
	return f, err
}

// Save writes the configuration back, keeping every target section
func (f *File) Save(fs afero.Fs, path string) error {
	b, err := yaml.Marshal(f.Targets)
	if err != nil {
		return ErrInvalidConfig.Wrap(err)
	}
	return afero.WriteFile(fs, path, b, 0644)
}

// Target returns the named target section
func (f *File) Target(name string) (*Target, error) {
	t, ok := f.Targets[name]
	if !ok || t == nil {
		return nil, ErrTargetNotFound.WrapMessage("no section %q in %s", name, FileName)
	}
	return t, nil
}

// Add registers a new target section, refusing to overwrite
func (f *File) Add(name string, target *Target) error {
	if _, ok := f.Targets[name]; ok {
		return ErrTargetExists.WrapMessage("section %q already in %s", name, FileName)
	}
	f.Targets[name] = target
	return nil
}

// ValidateRepository rejects the scaffolded placeholder value
func (t *Target) ValidateRepository() error {
	if t.Repository == PlaceholderRepository {
		return ErrPlaceholderRepository
	}
	return nil
}

// ValidateTaskResources checks that every task_resources key names a
// spec task or matches one through its pattern.
func (t *Target) ValidateTaskResources(taskNames []string) error {
	if len(t.TaskResources) == 0 {
		return nil
	}
	known := make(map[string]bool, len(taskNames))
	for _, name := range taskNames {
		known[name] = true
	}
	var unexpected []string
	for pattern := range t.TaskResources {
		if known[pattern] {
			continue
		}
		matched := false
		for _, name := range taskNames {
			if model.MatchesWildcard(pattern, name) {
				matched = true
				break
			}
		}
		if !matched {
			unexpected = append(unexpected, pattern)
		}
	}
	if len(unexpected) > 0 {
		sort.Strings(unexpected)
		return ErrInvalidConfig.WrapMessage(
			"unexpected task names in task_resources: %v, valid names are: %v",
			unexpected, taskNames)
	}
	return nil
}
