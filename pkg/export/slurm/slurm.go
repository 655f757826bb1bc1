// Package slurm exports a pipeline to a SLURM cluster. There is no
// container packaging here: each task becomes a job script rendered
// from a template in the target directory and submitted with sbatch,
// dependencies expressed as afterok constraints.
package slurm

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"path"
	"strings"
	"text/template"

	"github.com/pipeship/pipeship/pkg/config"
	"github.com/pipeship/pipeship/pkg/errors"
	"github.com/pipeship/pipeship/pkg/export"
	"github.com/pipeship/pipeship/pkg/model"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// Backend is the backend name in pipeship.yaml
const Backend = "slurm"

// TemplateName is the default job script template in the target directory
const TemplateName = "template.sh"

//go:embed templates/template.sh
var defaultTemplate []byte

// ErrMissingTemplate indicates the target directory has no job script template
var ErrMissingTemplate = errors.New("missing job script template")

// ErrSubmitFailed indicates sbatch did not report a job ID
var ErrSubmitFailed = errors.New("unable to parse the job ID from the sbatch output")

func init() {
	export.Register(Backend, func() export.Exporter { return New() })
}

// Exporter submits pipelines through sbatch
type Exporter struct{}

// New builds the SLURM exporter
func New() *Exporter { return &Exporter{} }

// Name is the backend name
func (e *Exporter) Name() string { return Backend }

// DefaultTarget is the pipeship.yaml section scaffolded by `add`
func (e *Exporter) DefaultTarget() *config.Target {
	return &config.Target{Backend: Backend}
}

// Add scaffolds the target directory with the default job template
func (e *Exporter) Add(ctx context.Context, ws *export.Workspace) error {
	return ws.Scaffold(map[string][]byte{TemplateName: defaultTemplate})
}

// Export renders one job script per planned task and submits them in
// topological order, wiring upstream job IDs into afterok dependencies.
func (e *Exporter) Export(ctx context.Context, ws *export.Workspace, plan *model.Plan, opts export.Options) error {
	order, err := plan.Graph.Sorted()
	if err != nil {
		return err
	}
	jobIDs := make(map[string]string, len(order))
	for _, task := range order {
		script, err := e.renderScript(ws, plan, task)
		if err != nil {
			return err
		}
		id, err := e.submit(ctx, ws, plan, task, script, jobIDs)
		if err != nil {
			return err
		}
		jobIDs[task] = id
		ws.Log.Info("submitted task", zap.String("task", task), zap.String("job", id))
	}
	ws.Log.Info("done. Submitted to SLURM", zap.Int("jobs", len(jobIDs)))
	return nil
}

// renderScript writes <task>.job.sh in the target directory from the
// most specific template available.
func (e *Exporter) renderScript(ws *export.Workspace, plan *model.Plan, task string) (string, error) {
	tplPath, err := e.templateFor(ws, task)
	if err != nil {
		return "", err
	}
	raw, err := afero.ReadFile(ws.Fs, tplPath)
	if err != nil {
		return "", err
	}
	tpl, err := template.New(path.Base(tplPath)).Parse(string(raw))
	if err != nil {
		return "", fmt.Errorf("parsing %s: %w", tplPath, err)
	}
	var buf bytes.Buffer
	err = tpl.Execute(&buf, struct {
		Name    string
		Command string
	}{
		Name:    task,
		Command: strings.Join(ws.TaskCommand(plan, task), " "),
	})
	if err != nil {
		return "", err
	}
	script := path.Join(ws.Root, ws.Target, task+".job.sh")
	if err := afero.WriteFile(ws.Fs, script, buf.Bytes(), 0755); err != nil {
		return "", err
	}
	return script, nil
}

// templateFor picks template.<task>.sh over a template.<pattern>.sh
// wildcard match over the shared template.sh.
func (e *Exporter) templateFor(ws *export.Workspace, task string) (string, error) {
	dir := path.Join(ws.Root, ws.Target)
	exact := path.Join(dir, fmt.Sprintf("template.%s.sh", task))
	if ok, _ := afero.Exists(ws.Fs, exact); ok {
		return exact, nil
	}
	entries, err := afero.ReadDir(ws.Fs, dir)
	if err != nil {
		return "", err
	}
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, "template.") || !strings.HasSuffix(name, ".sh") {
			continue
		}
		pattern := strings.TrimSuffix(strings.TrimPrefix(name, "template."), ".sh")
		if pattern != "" && model.MatchesWildcard(pattern, task) {
			return path.Join(dir, name), nil
		}
	}
	shared := path.Join(dir, TemplateName)
	if ok, _ := afero.Exists(ws.Fs, shared); ok {
		return shared, nil
	}
	return "", ErrMissingTemplate.WrapMessage(
		"expected %s in %q. Run \"pipeship add\" to scaffold one", TemplateName, dir)
}

// submit runs sbatch for one task. Sorted() guarantees upstream tasks
// were submitted already, so their IDs are present in jobIDs.
func (e *Exporter) submit(ctx context.Context, ws *export.Workspace, plan *model.Plan, task, script string, jobIDs map[string]string) (string, error) {
	var args []string
	if deps := plan.Graph[task]; len(deps) > 0 {
		ids := make([]string, 0, len(deps))
		for _, up := range deps {
			ids = append(ids, jobIDs[up])
		}
		args = append(args,
			fmt.Sprintf("--dependency=afterok:%s", strings.Join(ids, ":")),
			"--kill-on-invalid-dep=yes")
	}
	args = append(args, fmt.Sprintf("--job-name=%s", task), script)

	out, err := ws.Sh.Output(ctx, "sbatch", args...)
	if err != nil {
		return "", err
	}
	return parseJobID(out)
}

// parseJobID extracts the ID from sbatch's "Submitted batch job N" line
func parseJobID(out []byte) (string, error) {
	fields := strings.Fields(strings.TrimSpace(string(out)))
	if len(fields) == 0 {
		return "", ErrSubmitFailed.WrapMessage("got: %q", string(out))
	}
	id := fields[len(fields)-1]
	for _, r := range id {
		if r < '0' || r > '9' {
			return "", ErrSubmitFailed.WrapMessage("got: %q", string(out))
		}
	}
	return id, nil
}
