package dependencies

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, fs afero.Fs, names ...string) {
	for _, name := range names {
		require.NoError(t, afero.WriteFile(fs, name, []byte{}, 0600))
	}
}

func TestCheckLockFilesMissingRoot(t *testing.T) {
	fs := afero.NewMemMapFs()
	err := CheckLockFiles(fs, ".")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected requirements.lock.txt or environment.lock.yml")
	assert.Contains(t, err.Error(), "pip freeze")
}

func TestCheckLockFilesPaired(t *testing.T) {
	fs := afero.NewMemMapFs()
	touch(t, fs,
		"requirements.txt", "requirements.lock.txt",
		"requirements.fit-*.txt", "requirements.fit-*.lock.txt",
	)
	require.NoError(t, CheckLockFiles(fs, "."))
}

func TestCheckLockFilesUnpaired(t *testing.T) {
	fs := afero.NewMemMapFs()
	touch(t, fs,
		"requirements.txt", "requirements.lock.txt",
		"requirements.fit-*.txt",
	)
	err := CheckLockFiles(fs, ".")
	require.Error(t, err)
	assert.True(t, ErrUnpairedManifest.Is(err))
	assert.Contains(t, err.Error(), "requirements.fit-*.lock.txt")
}

func TestCheckLockFilesCondaOnly(t *testing.T) {
	fs := afero.NewMemMapFs()
	touch(t, fs, "environment.yml", "environment.lock.yml")
	require.NoError(t, CheckLockFiles(fs, "."))
}

func TestTaskManifests(t *testing.T) {
	fs := afero.NewMemMapFs()
	touch(t, fs,
		"requirements.txt", "requirements.lock.txt",
		"requirements.fit-*.txt", "requirements.fit-*.lock.txt",
		"environment.plot.yml", "environment.plot.lock.yml",
		"get.py", "pipeline.yaml",
	)

	manifests, err := TaskManifests(fs, ".")
	require.NoError(t, err)
	require.Len(t, manifests, 3)

	assert.Equal(t, Manifest{
		Pattern: "default",
		File:    "requirements.txt",
		Lock:    "requirements.lock.txt",
	}, manifests[0])
	assert.Equal(t, Manifest{
		Pattern: "fit-*",
		File:    "requirements.fit-*.txt",
		Lock:    "requirements.fit-*.lock.txt",
	}, manifests[1])
	assert.Equal(t, Manifest{
		Pattern: "plot",
		File:    "environment.plot.yml",
		Lock:    "environment.plot.lock.yml",
		Conda:   true,
	}, manifests[2])
}

func TestTaskManifestsPipWinsOverConda(t *testing.T) {
	fs := afero.NewMemMapFs()
	touch(t, fs, "requirements.txt", "environment.yml")

	manifests, err := TaskManifests(fs, ".")
	require.NoError(t, err)
	require.Len(t, manifests, 1)
	assert.Equal(t, "requirements.txt", manifests[0].File)
	assert.False(t, manifests[0].Conda)
}

func TestCanonicalLockName(t *testing.T) {
	assert.Equal(t, "requirements.lock.txt", CanonicalLockName(false))
	assert.Equal(t, "environment.lock.yml", CanonicalLockName(true))
}

func TestPipFromCondaEnv(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "environment.yml", []byte(`
dependencies:
  - python=3.9
  - pip:
    - pandas
    - scikit-learn
`), 0600))

	deps, err := PipFromCondaEnv(fs, "environment.yml")
	require.NoError(t, err)
	assert.Equal(t, []string{"pandas", "scikit-learn"}, deps)
}

func TestPipFromCondaEnvErrors(t *testing.T) {
	for _, tc := range []struct {
		name    string
		content string
		msg     string
	}{
		{"missing dependencies", "name: env\n", "missing dependencies section"},
		{"missing pip", "dependencies:\n  - python=3.9\n", "missing dependencies.pip section"},
		{"pip not a list", "dependencies:\n  - pip: 1\n", "expected a list of dependencies, got: 1"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			require.NoError(t, afero.WriteFile(fs, "environment.yml", []byte(tc.content), 0600))
			_, err := PipFromCondaEnv(fs, "environment.yml")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.msg)
		})
	}
}
