package export

import (
	"context"
	"testing"

	"github.com/pipeship/pipeship/pkg/config"
	"github.com/pipeship/pipeship/pkg/model"
	"github.com/pipeship/pipeship/pkg/shell"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const samplePipeline = `meta:
  name: sample_project
tasks:
  - name: get
    source: get.py
    product: output/get.csv
  - name: plot
    source: plot.py
    upstream: [get]
    product: output/plot.png
`

// stub captures what Run hands to a backend
type stub struct {
	target *config.Target
	added  bool
	plan   *model.Plan
	opts   Options
	err    error
}

func (s *stub) Name() string                  { return "stub" }
func (s *stub) DefaultTarget() *config.Target { return s.target }

func (s *stub) Add(ctx context.Context, ws *Workspace) error {
	s.added = true
	return s.err
}

func (s *stub) Export(ctx context.Context, ws *Workspace, plan *model.Plan, opts Options) error {
	s.plan = plan
	s.opts = opts
	return s.err
}

func stubWorkspace(t *testing.T, backend string) *Workspace {
	fs := afero.NewMemMapFs()
	for name, content := range map[string]string{
		"pipeline.yaml":         samplePipeline,
		"get.py":                "# get",
		"plot.py":               "# plot",
		"requirements.txt":      "pandas",
		"requirements.lock.txt": "pandas==1.0",
	} {
		require.NoError(t, afero.WriteFile(fs, name, []byte(content), 0600))
	}
	return &Workspace{
		Fs:     fs,
		Sh:     shell.NewRecorder(),
		Log:    zap.NewNop(),
		Root:   ".",
		Target: "some-env",
		Config: &config.Target{Backend: backend, Repository: "repo.domain.com/sample"},
	}
}

func TestLookupUnknownBackend(t *testing.T) {
	_, err := Lookup("no-such-backend")
	require.Error(t, err)
	assert.True(t, ErrUnknownBackend.Is(err))
}

func TestRegisterAndBackends(t *testing.T) {
	s := &stub{target: &config.Target{Backend: "stub"}}
	Register("stub", func() Exporter { return s })
	defer delete(registry, "stub")

	assert.Contains(t, Backends(), "stub")
	got, err := Lookup("stub")
	require.NoError(t, err)
	assert.Equal(t, "stub", got.Name())
}

func TestRunHandsPlanToBackend(t *testing.T) {
	s := &stub{target: &config.Target{Backend: "stub"}}
	Register("stub", func() Exporter { return s })
	defer delete(registry, "stub")

	ws := stubWorkspace(t, "stub")
	opts := Options{Mode: model.ModeForce, IgnoreGit: true}
	require.NoError(t, Run(context.Background(), ws, opts))

	require.NotNil(t, s.plan)
	assert.Equal(t, []string{"get", "plot"}, s.plan.Spec.Names())
	assert.True(t, s.plan.Force())
	assert.Equal(t, opts, s.opts)
}

func TestRunNoTasks(t *testing.T) {
	s := &stub{target: &config.Target{Backend: "stub"}}
	Register("stub", func() Exporter { return s })
	defer delete(registry, "stub")

	// products newer than sources, incremental mode selects nothing
	ws := stubWorkspace(t, "stub")
	for _, name := range []string{"output/get.csv", "output/plot.png"} {
		require.NoError(t, afero.WriteFile(ws.Fs, name, []byte("x"), 0600))
	}

	err := Run(context.Background(), ws, Options{Mode: model.ModeIncremental})
	require.Error(t, err)
	assert.True(t, ErrNoTasks.Is(err))
	assert.Nil(t, s.plan)
}

func TestRunUnexpectedTaskResources(t *testing.T) {
	s := &stub{target: &config.Target{Backend: "stub"}}
	Register("stub", func() Exporter { return s })
	defer delete(registry, "stub")

	ws := stubWorkspace(t, "stub")
	ws.Config.TaskResources = map[string]config.Resources{"train-*": {GPUs: 1}}

	err := Run(context.Background(), ws, Options{Mode: model.ModeForce})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "task_resources")
}

func TestScaffoldRefusesExistingDir(t *testing.T) {
	ws := stubWorkspace(t, "stub")
	require.NoError(t, ws.Fs.MkdirAll("some-env", 0755))

	err := ws.Scaffold(map[string][]byte{"Dockerfile": []byte("FROM scratch")})
	require.Error(t, err)
	assert.True(t, ErrTargetDirExists.Is(err))
}

func TestAddWritesConfigSection(t *testing.T) {
	s := &stub{target: &config.Target{Backend: "stub", Repository: config.PlaceholderRepository}}
	Register("stub", func() Exporter { return s })
	defer delete(registry, "stub")

	ws := stubWorkspace(t, "stub")
	ws.Target = "fresh-env"
	require.NoError(t, Add(context.Background(), ws, "stub"))
	assert.True(t, s.added)

	cfg, err := config.Load(ws.Fs, config.FileName)
	require.NoError(t, err)
	target, err := cfg.Target("fresh-env")
	require.NoError(t, err)
	assert.Equal(t, "stub", target.Backend)
	assert.Equal(t, config.PlaceholderRepository, target.Repository)

	// a second add for the same target must refuse
	err = Add(context.Background(), ws, "stub")
	require.Error(t, err)
	assert.True(t, config.ErrTargetExists.Is(err))
}

func TestRenderDockerfile(t *testing.T) {
	pip, err := RenderDockerfile(false)
	require.NoError(t, err)
	assert.Contains(t, string(pip), "requirements.lock.txt")
	assert.NotContains(t, string(pip), "environment.lock.yml")

	conda, err := RenderDockerfile(true)
	require.NoError(t, err)
	assert.Contains(t, string(conda), "environment.lock.yml")
}

func TestUsesConda(t *testing.T) {
	ws := stubWorkspace(t, "stub")
	assert.False(t, ws.UsesConda())

	require.NoError(t, ws.Fs.Remove("requirements.lock.txt"))
	require.NoError(t, afero.WriteFile(ws.Fs, "environment.lock.yml", []byte("name: env"), 0600))
	assert.True(t, ws.UsesConda())
}
