package cmd

import (
	"path"

	"github.com/pipeship/pipeship/pkg/config"
	"github.com/pipeship/pipeship/pkg/export"
	"github.com/pipeship/pipeship/pkg/logging"
	"github.com/pipeship/pipeship/pkg/shell"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// newWorkspace assembles the pieces every project command needs. The
// target config stays nil until loadTargetConfig resolves it.
func newWorkspace(target string) (*export.Workspace, error) {
	log, err := logging.GetLogger(pipeshipFlags.root.logLevel)
	if err != nil {
		return nil, err
	}
	sh := shell.NewExec(log, pipeshipFlags.project.root)
	sh.Verbose = pipeshipFlags.root.logLevel == logging.LogLevelDebug
	return &export.Workspace{
		Fs:     afero.NewOsFs(),
		Sh:     sh,
		Log:    log,
		Root:   pipeshipFlags.project.root,
		Target: target,
	}, nil
}

// loadTargetConfig reads the target's section from pipeship.yaml
func loadTargetConfig(ws *export.Workspace) error {
	cfg, err := config.Load(ws.Fs, path.Join(ws.Root, config.FileName))
	if err != nil {
		return err
	}
	target, err := cfg.Target(ws.Target)
	if err != nil {
		return err
	}
	ws.Config = target
	ws.Log.Debug("loaded target configuration",
		zap.String("target", ws.Target), zap.String("backend", target.Backend))
	return nil
}
