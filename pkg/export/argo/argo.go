// Package argo exports a pipeline as an Argo Workflows manifest. The
// exporter builds the task images, then renders a Workflow with one
// container template per task and a DAG wiring the upstream edges.
package argo

import (
	"context"
	"path"
	"sort"

	"github.com/pipeship/pipeship/pkg/config"
	"github.com/pipeship/pipeship/pkg/export"
	"github.com/pipeship/pipeship/pkg/model"
	"github.com/spf13/afero"
	yaml "gopkg.in/yaml.v2"
)

// Backend is the backend name in pipeship.yaml
const Backend = "argo-workflows"

// ManifestName is the file written into the target directory
const ManifestName = "workflow.yaml"

const dagTemplateName = "dag"

func init() {
	export.Register(Backend, func() export.Exporter { return New() })
}

// Exporter renders Argo Workflow manifests
type Exporter struct{}

// New builds the Argo Workflows exporter
func New() *Exporter { return &Exporter{} }

// Name is the backend name
func (e *Exporter) Name() string { return Backend }

// DefaultTarget is the pipeship.yaml section scaffolded by `add`
func (e *Exporter) DefaultTarget() *config.Target {
	return &config.Target{
		Backend:    Backend,
		Repository: config.PlaceholderRepository,
	}
}

// Add scaffolds the target directory with a starter Dockerfile
func (e *Exporter) Add(ctx context.Context, ws *export.Workspace) error {
	dockerfile, err := export.RenderDockerfile(ws.UsesConda())
	if err != nil {
		return err
	}
	return ws.Scaffold(map[string][]byte{"Dockerfile": dockerfile})
}

// Export builds the images and writes the workflow manifest into the
// target directory.
func (e *Exporter) Export(ctx context.Context, ws *export.Workspace, plan *model.Plan, opts export.Options) error {
	images, err := ws.BuildImages(ctx, plan, opts)
	if err != nil {
		return err
	}
	wf, err := e.workflow(ws, plan, images)
	if err != nil {
		return err
	}
	out, err := yaml.Marshal(wf)
	if err != nil {
		return err
	}
	manifest := path.Join(ws.Root, ws.Target, ManifestName)
	if err := afero.WriteFile(ws.Fs, manifest, out, 0644); err != nil {
		return err
	}
	ws.Log.Sugar().Infof("done. Submit the workflow with: argo submit -n argo --watch %s", manifest)
	return nil
}

// workflow orders the templates by the plan's topological sort so the
// manifest is stable across runs.
func (e *Exporter) workflow(ws *export.Workspace, plan *model.Plan, images map[string]string) (*workflow, error) {
	order, err := plan.Graph.Sorted()
	if err != nil {
		return nil, err
	}
	patterns := make([]string, 0, len(images))
	for p := range images {
		patterns = append(patterns, p)
	}
	sort.Strings(patterns)

	templates := make([]template, 0, len(order)+1)
	dag := dagTemplate{Tasks: make([]dagTask, 0, len(order))}
	for _, task := range order {
		pattern := model.MatchPattern(patterns, task)
		templates = append(templates, template{
			Name: task,
			Container: &containerSpec{
				Image:   images[pattern],
				Command: ws.TaskCommand(plan, task),
			},
		})
		dag.Tasks = append(dag.Tasks, dagTask{
			Name:         task,
			Template:     task,
			Dependencies: plan.Graph[task],
		})
	}
	templates = append(templates, template{Name: dagTemplateName, DAG: &dag})

	return &workflow{
		APIVersion: "argoproj.io/v1alpha1",
		Kind:       "Workflow",
		Metadata:   metadata{GenerateName: plan.Spec.PackageName() + "-"},
		Spec: workflowSpec{
			Entrypoint: dagTemplateName,
			Templates:  templates,
		},
	}, nil
}

type workflow struct {
	APIVersion string       `yaml:"apiVersion"`
	Kind       string       `yaml:"kind"`
	Metadata   metadata     `yaml:"metadata"`
	Spec       workflowSpec `yaml:"spec"`
}

type metadata struct {
	GenerateName string `yaml:"generateName"`
}

type workflowSpec struct {
	Entrypoint string     `yaml:"entrypoint"`
	Templates  []template `yaml:"templates"`
}

type template struct {
	Name      string         `yaml:"name"`
	Container *containerSpec `yaml:"container,omitempty"`
	DAG       *dagTemplate   `yaml:"dag,omitempty"`
}

type containerSpec struct {
	Image   string   `yaml:"image"`
	Command []string `yaml:"command"`
}

type dagTemplate struct {
	Tasks []dagTask `yaml:"tasks"`
}

type dagTask struct {
	Name         string   `yaml:"name"`
	Template     string   `yaml:"template"`
	Dependencies []string `yaml:"dependencies,omitempty"`
}
