// Package export turns a packaged pipeline project into jobs on an
// execution backend. Backends register themselves and are looked up by
// the name recorded in pipeship.yaml.
package export

import (
	"context"
	"sort"

	"github.com/pipeship/pipeship/pkg/config"
	"github.com/pipeship/pipeship/pkg/dependencies"
	"github.com/pipeship/pipeship/pkg/errors"
	"github.com/pipeship/pipeship/pkg/image"
	"github.com/pipeship/pipeship/pkg/model"
	"github.com/pipeship/pipeship/pkg/shell"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

var (
	// ErrUnknownBackend indicates a backend name with no registered exporter
	ErrUnknownBackend = errors.New("unknown backend")

	// ErrNoTasks indicates the selected mode left nothing to submit
	ErrNoTasks = errors.New(
		`loaded pipeline has no tasks to submit. Try "--mode force" to submit all tasks regardless of status`)
)

// Options tune an export run
type Options struct {
	Mode      string
	Until     string
	SkipTests bool
	IgnoreGit bool
}

// Workspace carries everything an exporter needs about the project
type Workspace struct {
	Fs     afero.Fs
	Sh     shell.Runner
	Log    *zap.Logger
	Root   string
	Target string
	Config *config.Target
}

// Exporter is one execution backend
type Exporter interface {
	// Name is the backend name used in pipeship.yaml
	Name() string

	// DefaultTarget is the configuration section written by `add`
	DefaultTarget() *config.Target

	// Add scaffolds the target directory for this backend
	Add(ctx context.Context, ws *Workspace) error

	// Export submits the planned tasks to the backend
	Export(ctx context.Context, ws *Workspace, plan *model.Plan, opts Options) error
}

var registry = make(map[string]func() Exporter)

// Register makes a backend available by name. Meant to be called from
// backend package init functions.
func Register(name string, factory func() Exporter) {
	registry[name] = factory
}

// Lookup resolves a backend name
func Lookup(name string) (Exporter, error) {
	factory, ok := registry[name]
	if !ok {
		return nil, ErrUnknownBackend.WrapMessage("%q, available backends: %v", name, Backends())
	}
	return factory(), nil
}

// Backends lists the registered backend names
func Backends() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run loads the pipeline, selects tasks by mode and hands the plan to
// the target's backend.
func Run(ctx context.Context, ws *Workspace, opts Options) error {
	exporter, err := Lookup(ws.Config.Backend)
	if err != nil {
		return err
	}
	specPath, err := model.FindSpec(ws.Fs, ws.Root, ws.Target)
	if err != nil {
		return err
	}
	spec, err := model.LoadSpec(ws.Fs, specPath)
	if err != nil {
		return err
	}
	plan, err := spec.Select(ws.Fs, ws.Root, opts.Mode)
	if err != nil {
		return err
	}
	if plan.Empty() {
		return ErrNoTasks.WrapMessage("mode %q", opts.Mode)
	}
	if err := ws.Config.ValidateTaskResources(spec.Names()); err != nil {
		return err
	}
	return exporter.Export(ctx, ws, plan, opts)
}

// BuildImages is the shared docker path of container backends: validate
// the repository setting, check dependency locks, then build one image
// per task pattern.
func (ws *Workspace) BuildImages(ctx context.Context, plan *model.Plan, opts Options) (map[string]string, error) {
	if err := ws.Config.ValidateRepository(); err != nil {
		return nil, err
	}
	if err := dependencies.CheckLockFiles(ws.Fs, ws.Root); err != nil {
		return nil, err
	}
	manifests, err := dependencies.TaskManifests(ws.Fs, ws.Root)
	if err != nil {
		return nil, err
	}
	builder := image.NewBuilder(ws.Fs, ws.Sh, ws.Log)
	return builder.Build(ctx, plan.Spec, manifests, image.Options{
		Root:       ws.Root,
		Target:     ws.Target,
		Repository: ws.Config.Repository,
		Runner:     ws.Config.RunnerCommand(),
		EntryPoint: plan.Spec.EntryPoint,
		Until:      opts.Until,
		SkipTests:  opts.SkipTests,
		IgnoreGit:  opts.IgnoreGit,
		Include:    ws.Config.Include,
		Exclude:    ws.Config.Exclude,
	})
}

// TaskCommand is the command line running one task inside a backend job
func (ws *Workspace) TaskCommand(plan *model.Plan, task string) []string {
	cmd := []string{ws.Config.RunnerCommand(), "task", task,
		"--entry-point", plan.Spec.EntryPoint}
	if plan.Force() {
		cmd = append(cmd, "--force")
	}
	return cmd
}
