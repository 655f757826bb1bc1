package export

import (
	"bytes"
	"embed"
	"path"
	"text/template"

	"github.com/pipeship/pipeship/pkg/dependencies"
	"github.com/spf13/afero"
)

//go:embed templates/Dockerfile.tmpl
var templatesFS embed.FS

// RenderDockerfile produces the starter Dockerfile for a docker-based
// backend. The conda flavor is picked when the project locks its
// environment with conda rather than pip.
func RenderDockerfile(conda bool) ([]byte, error) {
	tmpl, err := template.ParseFS(templatesFS, "templates/Dockerfile.tmpl")
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, struct{ Conda bool }{Conda: conda}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UsesConda reports whether the project root carries a conda lock file
// and no pip lock file.
func (ws *Workspace) UsesConda() bool {
	pip, _ := afero.Exists(ws.Fs, path.Join(ws.Root, dependencies.CanonicalLockName(false)))
	conda, _ := afero.Exists(ws.Fs, path.Join(ws.Root, dependencies.CanonicalLockName(true)))
	return conda && !pip
}
