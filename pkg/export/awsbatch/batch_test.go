package awsbatch

import (
	"context"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/batch"
	"github.com/aws/aws-sdk-go-v2/service/batch/types"
	"github.com/pipeship/pipeship/pkg/config"
	"github.com/pipeship/pipeship/pkg/export"
	"github.com/pipeship/pipeship/pkg/model"
	"github.com/pipeship/pipeship/pkg/shell"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const samplePipeline = `meta:
  name: sample_project
  version: latest
tasks:
  - name: get
    source: get.py
  - name: fit-1
    source: fit.py
    upstream: [get]
  - name: plot
    source: plot.py
    upstream: [fit-1]
`

// fakeBatch records every call and hands back predictable ARNs and
// job IDs.
type fakeBatch struct {
	defs    []*batch.RegisterJobDefinitionInput
	jobs    []*batch.SubmitJobInput
	failure error
}

func (f *fakeBatch) RegisterJobDefinition(_ context.Context, params *batch.RegisterJobDefinitionInput,
	_ ...func(*batch.Options)) (*batch.RegisterJobDefinitionOutput, error) {
	if f.failure != nil {
		return nil, f.failure
	}
	f.defs = append(f.defs, params)
	arn := fmt.Sprintf("arn:%s", aws.ToString(params.JobDefinitionName))
	return &batch.RegisterJobDefinitionOutput{JobDefinitionArn: aws.String(arn)}, nil
}

func (f *fakeBatch) SubmitJob(_ context.Context, params *batch.SubmitJobInput,
	_ ...func(*batch.Options)) (*batch.SubmitJobOutput, error) {
	if f.failure != nil {
		return nil, f.failure
	}
	f.jobs = append(f.jobs, params)
	id := fmt.Sprintf("job-%d", len(f.jobs))
	return &batch.SubmitJobOutput{JobId: aws.String(id)}, nil
}

func batchProject(t *testing.T) afero.Fs {
	fs := afero.NewMemMapFs()
	for name, content := range map[string]string{
		"pipeline.yaml":               samplePipeline,
		"get.py":                      "# get",
		"fit.py":                      "# fit",
		"plot.py":                     "# plot",
		"requirements.txt":            "pandas",
		"requirements.lock.txt":       "pandas==1.0",
		"requirements.fit-*.txt":      "torch",
		"requirements.fit-*.lock.txt": "torch==2.0",
		"batch-env/Dockerfile":        "FROM python:3.11-slim",
	} {
		require.NoError(t, afero.WriteFile(fs, name, []byte(content), 0600))
	}
	return fs
}

func batchWorkspace(t *testing.T) *export.Workspace {
	return &export.Workspace{
		Fs:     batchProject(t),
		Sh:     shell.NewRecorder(),
		Log:    zap.NewNop(),
		Root:   ".",
		Target: "batch-env",
		Config: &config.Target{
			Backend:    Backend,
			Repository: "repo.domain.com/sample",
			JobQueue:   "my-queue",
			TaskResources: map[string]config.Resources{
				"fit-*": {GPUs: 1, MemoryMiB: 8192},
			},
		},
	}
}

func batchPlan(t *testing.T, ws *export.Workspace) *model.Plan {
	spec, err := model.LoadSpec(ws.Fs, "pipeline.yaml")
	require.NoError(t, err)
	plan, err := spec.Select(ws.Fs, ws.Root, model.ModeForce)
	require.NoError(t, err)
	return plan
}

func TestDefaultTarget(t *testing.T) {
	target := New().DefaultTarget()
	assert.Equal(t, Backend, target.Backend)
	assert.Equal(t, config.PlaceholderRepository, target.Repository)
	assert.Equal(t, config.PlaceholderJobQueue, target.JobQueue)
	assert.Equal(t, "us-east-1", target.Region)
}

func TestAddScaffoldsDockerfile(t *testing.T) {
	ws := batchWorkspace(t)
	ws.Target = "fresh-env"

	require.NoError(t, New().Add(context.Background(), ws))
	content, err := afero.ReadFile(ws.Fs, "fresh-env/Dockerfile")
	require.NoError(t, err)
	assert.Contains(t, string(content), "requirements.lock.txt")
}

func TestExportRegistersAndSubmits(t *testing.T) {
	ws := batchWorkspace(t)
	fake := &fakeBatch{}
	e := New()
	e.newAPI = func(context.Context, *config.Target) (API, error) { return fake, nil }

	require.NoError(t, e.Export(context.Background(), ws, batchPlan(t, ws), export.Options{
		Mode:      model.ModeForce,
		IgnoreGit: true,
	}))

	// one job definition per image pattern
	names := make(map[string]string, len(fake.defs))
	for _, def := range fake.defs {
		names[aws.ToString(def.JobDefinitionName)] = aws.ToString(def.ContainerProperties.Image)
	}
	assert.Equal(t, map[string]string{
		"sample_project":         "repo.domain.com/sample:latest-default",
		"sample_project-fit-any": "repo.domain.com/sample:latest-fit-any",
	}, names)

	// jobs arrive upstream first
	require.Len(t, fake.jobs, 3)
	assert.Equal(t, "get", aws.ToString(fake.jobs[0].JobName))
	assert.Equal(t, "fit-1", aws.ToString(fake.jobs[1].JobName))
	assert.Equal(t, "plot", aws.ToString(fake.jobs[2].JobName))
	for _, job := range fake.jobs {
		assert.Equal(t, "my-queue", aws.ToString(job.JobQueue))
	}

	// dependsOn carries the upstream job IDs
	assert.Empty(t, fake.jobs[0].DependsOn)
	require.Len(t, fake.jobs[1].DependsOn, 1)
	assert.Equal(t, "job-1", aws.ToString(fake.jobs[1].DependsOn[0].JobId))
	require.Len(t, fake.jobs[2].DependsOn, 1)
	assert.Equal(t, "job-2", aws.ToString(fake.jobs[2].DependsOn[0].JobId))

	// the fit task runs on the pattern image definition
	assert.Equal(t, "arn:sample_project-fit-any", aws.ToString(fake.jobs[1].JobDefinition))
	assert.Equal(t, "arn:sample_project", aws.ToString(fake.jobs[0].JobDefinition))

	// command override runs the task through the runner
	assert.Equal(t, []string{"ploomber", "task", "get", "--entry-point", "pipeline.yaml", "--force"},
		fake.jobs[0].ContainerOverrides.Command)
}

func TestExportOverlappingPatterns(t *testing.T) {
	ws := batchWorkspace(t)
	// a second wildcard manifest also matching fit-1: resolution must
	// not depend on map iteration order
	for name, content := range map[string]string{
		"requirements.f*.txt":      "scipy",
		"requirements.f*.lock.txt": "scipy==1.0",
	} {
		require.NoError(t, afero.WriteFile(ws.Fs, name, []byte(content), 0600))
	}
	fake := &fakeBatch{}
	e := New()
	e.newAPI = func(context.Context, *config.Target) (API, error) { return fake, nil }

	for i := 0; i < 5; i++ {
		fake.jobs = nil
		require.NoError(t, e.Export(context.Background(), ws, batchPlan(t, ws), export.Options{
			Mode:      model.ModeForce,
			IgnoreGit: true,
		}))
		require.Len(t, fake.jobs, 3)
		// "f*" sorts before "fit-*"
		assert.Equal(t, "arn:sample_project-fany", aws.ToString(fake.jobs[1].JobDefinition))
	}
}

func TestExportTaskResources(t *testing.T) {
	ws := batchWorkspace(t)
	fake := &fakeBatch{}
	e := New()
	e.newAPI = func(context.Context, *config.Target) (API, error) { return fake, nil }

	require.NoError(t, e.Export(context.Background(), ws, batchPlan(t, ws), export.Options{
		Mode:      model.ModeForce,
		IgnoreGit: true,
	}))

	byType := func(reqs []types.ResourceRequirement) map[types.ResourceType]string {
		out := make(map[types.ResourceType]string, len(reqs))
		for _, r := range reqs {
			out[r.Type] = aws.ToString(r.Value)
		}
		return out
	}
	require.Len(t, fake.jobs, 3)
	assert.Empty(t, fake.jobs[0].ContainerOverrides.ResourceRequirements)
	assert.Equal(t, map[types.ResourceType]string{
		types.ResourceTypeGpu:    "1",
		types.ResourceTypeMemory: "8192",
	}, byType(fake.jobs[1].ContainerOverrides.ResourceRequirements))
}

func TestExportPlaceholderRepository(t *testing.T) {
	ws := batchWorkspace(t)
	ws.Config.Repository = config.PlaceholderRepository
	e := New()
	e.newAPI = func(context.Context, *config.Target) (API, error) {
		t.Fatal("client must not be built when the repository is invalid")
		return nil, nil
	}

	err := e.Export(context.Background(), ws, batchPlan(t, ws), export.Options{
		Mode:      model.ModeForce,
		IgnoreGit: true,
	})
	require.Error(t, err)
	assert.True(t, config.ErrPlaceholderRepository.Is(err))
}
