package export

import (
	"context"
	"path"

	"github.com/pipeship/pipeship/pkg/config"
	"github.com/pipeship/pipeship/pkg/errors"
	"github.com/spf13/afero"
)

// ErrTargetDirExists indicates `add` would overwrite an existing target directory
var ErrTargetDirExists = errors.New("target directory already exists")

// Scaffold creates the target directory and writes the backend's
// starter files into it, refusing to overwrite.
func (ws *Workspace) Scaffold(files map[string][]byte) error {
	dir := path.Join(ws.Root, ws.Target)
	if ok, _ := afero.DirExists(ws.Fs, dir); ok {
		return ErrTargetDirExists.WrapMessage("%q", dir)
	}
	if err := ws.Fs.MkdirAll(dir, 0755); err != nil {
		return err
	}
	for name, content := range files {
		if err := afero.WriteFile(ws.Fs, path.Join(dir, name), content, 0644); err != nil {
			return err
		}
	}
	return nil
}

// Add scaffolds a new target for the named backend and records its
// section in pipeship.yaml.
func Add(ctx context.Context, ws *Workspace, backend string) error {
	exporter, err := Lookup(backend)
	if err != nil {
		return err
	}
	cfgPath := path.Join(ws.Root, config.FileName)
	cfg, err := config.LoadOrEmpty(ws.Fs, cfgPath)
	if err != nil {
		return err
	}
	target := exporter.DefaultTarget()
	if err := cfg.Add(ws.Target, target); err != nil {
		return err
	}
	ws.Config = target
	if err := exporter.Add(ctx, ws); err != nil {
		return err
	}
	if err := cfg.Save(ws.Fs, cfgPath); err != nil {
		return err
	}
	ws.Log.Sugar().Infof(
		"done. Fill in the configuration in the %q section in %s, then export with: pipeship export %s",
		ws.Target, config.FileName, ws.Target)
	return nil
}
