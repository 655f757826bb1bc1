package config

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
train:
  backend: aws-batch
  repository: registry.example.com/sample
  job_queue: training-queue
  region: us-east-1
  container_properties:
    vcpus: 8
    memory: 16384
  task_resources:
    fit-*:
      vcpus: 32
      memory: 32768
      gpu: 2
serve:
  backend: argo-workflows
  repository: registry.example.com/sample
  exclude:
    - output
`

func loadSample(t *testing.T) (*File, afero.Fs) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, FileName, []byte(sampleConfig), 0600))
	f, err := Load(fs, FileName)
	require.NoError(t, err)
	return f, fs
}

func TestLoad(t *testing.T) {
	f, _ := loadSample(t)

	train, err := f.Target("train")
	require.NoError(t, err)
	assert.Equal(t, "aws-batch", train.Backend)
	assert.Equal(t, "training-queue", train.JobQueue)
	assert.Equal(t, 8, train.ContainerProperties.VCPUs)
	assert.Equal(t, 2, train.TaskResources["fit-*"].GPUs)
	assert.Equal(t, DefaultRunner, train.RunnerCommand())

	_, err = f.Target("deploy")
	require.Error(t, err)
	assert.True(t, ErrTargetNotFound.Is(err))
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, FileName,
		[]byte("train:\n  backend: aws-batch\n  job_queues: oops\n"), 0600))
	_, err := Load(fs, FileName)
	require.Error(t, err)
	assert.True(t, ErrInvalidConfig.Is(err))
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(afero.NewMemMapFs(), FileName)
	require.Error(t, err)
	assert.True(t, ErrConfigNotFound.Is(err))

	f, err := LoadOrEmpty(afero.NewMemMapFs(), FileName)
	require.NoError(t, err)
	assert.Empty(t, f.Targets)
}

func TestAddAndSaveKeepsSections(t *testing.T) {
	f, fs := loadSample(t)

	require.NoError(t, f.Add("deploy", &Target{
		Backend:    "aws-batch",
		Repository: PlaceholderRepository,
	}))
	require.Error(t, f.Add("train", &Target{Backend: "aws-batch"}))

	require.NoError(t, f.Save(fs, FileName))

	reloaded, err := Load(fs, FileName)
	require.NoError(t, err)
	assert.Len(t, reloaded.Targets, 3)
	train, err := reloaded.Target("train")
	require.NoError(t, err)
	assert.Equal(t, "training-queue", train.JobQueue)
}

func TestValidateRepository(t *testing.T) {
	target := &Target{Repository: PlaceholderRepository}
	err := target.ValidateRepository()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "your-repository/name")

	target.Repository = "registry.example.com/sample"
	require.NoError(t, target.ValidateRepository())
}

func TestValidateTaskResources(t *testing.T) {
	tasks := []string{"get", "fit-1", "fit-2"}

	target := &Target{TaskResources: map[string]Resources{
		"get":   {VCPUs: 4},
		"fit-*": {VCPUs: 32},
	}}
	require.NoError(t, target.ValidateTaskResources(tasks))

	target.TaskResources["not-a-task"] = Resources{VCPUs: 1}
	err := target.ValidateTaskResources(tasks)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected task names in task_resources")
	assert.Contains(t, err.Error(), "not-a-task")
}
