// Package image builds, tests and pushes the docker images backing an
// export: one image per task pattern, each carrying the project source
// and the pattern's dependency lock file.
package image

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/pipeship/pipeship/pkg/dependencies"
	"github.com/pipeship/pipeship/pkg/errors"
	"github.com/pipeship/pipeship/pkg/model"
	"github.com/pipeship/pipeship/pkg/shell"
	"github.com/pipeship/pipeship/pkg/source"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// Stages the build can stop at early
const (
	UntilBuild = "build"
	UntilPush  = "push"
)

var (
	// ErrMissingDockerfile indicates the target directory has no Dockerfile
	ErrMissingDockerfile = errors.New("missing Dockerfile in target directory")

	// ErrStoppedAfterBuild is returned under --until build
	ErrStoppedAfterBuild = errors.New(`done. Run "docker images" to see the built images`)

	// ErrStoppedAfterPush is returned under --until push
	ErrStoppedAfterPush = errors.New("done. Images pushed to repository")
)

// Options tune an image build
type Options struct {
	// Root is the project directory
	Root string

	// Target is the export target, owning <target>/Dockerfile
	Target string

	// Repository to push images to; empty keeps images local
	Repository string

	// Runner is the orchestrator command checked inside the image
	Runner string

	// Until stops early after the named stage
	Until string

	// EntryPoint is the pipeline definition path inside the image
	EntryPoint string

	// SkipTests disables the image smoke test
	SkipTests bool

	// IgnoreGit, Include and Exclude are passed through to source packaging
	IgnoreGit bool
	Include   []string
	Exclude   []string
}

// Builder drives docker via the shell runner
type Builder struct {
	fs  afero.Fs
	sh  shell.Runner
	log *zap.Logger
}

// NewBuilder builds a Builder
func NewBuilder(fs afero.Fs, sh shell.Runner, log *zap.Logger) *Builder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Builder{fs: fs, sh: sh, log: log}
}

// Build produces one image per task pattern and returns the pattern to
// image-reference map. The default pattern is always present since the
// root dependency manifest backs it.
func (b *Builder) Build(ctx context.Context, spec *model.Spec, manifests []dependencies.Manifest, opts Options) (map[string]string, error) {
	dockerfile := path.Join(opts.Root, opts.Target, "Dockerfile")
	if ok, _ := afero.Exists(b.fs, dockerfile); !ok {
		return nil, ErrMissingDockerfile.WrapMessage("expected %s", dockerfile)
	}
	if len(manifests) == 0 {
		manifests = []dependencies.Manifest{{Pattern: model.DefaultPattern}}
	}

	images := make(map[string]string, len(manifests))
	for _, m := range manifests {
		local, err := b.buildOne(ctx, spec, m, manifests, opts)
		if err != nil {
			return nil, err
		}
		images[m.Pattern] = local
	}
	if opts.Until == UntilBuild {
		return images, ErrStoppedAfterBuild
	}

	if !opts.SkipTests {
		for _, m := range manifests {
			if err := b.smokeTest(ctx, images[m.Pattern], opts); err != nil {
				return nil, err
			}
		}
	}

	if opts.Repository != "" {
		for _, m := range manifests {
			remote, err := b.push(ctx, images[m.Pattern], spec, m.Pattern, opts)
			if err != nil {
				return nil, err
			}
			images[m.Pattern] = remote
		}
	}
	if opts.Until == UntilPush {
		return images, ErrStoppedAfterPush
	}
	return images, nil
}

// buildOne packages the source for one pattern and builds its image.
// The build context receives the source archive under dist/ and the
// pattern's lock file renamed to the canonical name.
func (b *Builder) buildOne(ctx context.Context, spec *model.Spec, m dependencies.Manifest, all []dependencies.Manifest, opts Options) (string, error) {
	pkg := spec.PackageName()
	contextDir := path.Join(opts.Root, opts.Target)
	stage := path.Join(contextDir, "dist", pkg)

	exclude := append([]string{}, opts.Exclude...)
	exclude = append(exclude, opts.Target)
	rename := map[string]string{}
	for _, other := range all {
		if other.Pattern == m.Pattern || other.Lock == "" {
			continue
		}
		exclude = append(exclude, other.File, other.Lock)
	}
	if m.Lock != "" {
		rename[m.Lock] = dependencies.CanonicalLockName(m.Conda)
	}

	if err := b.fs.RemoveAll(path.Join(contextDir, "dist")); err != nil {
		return "", err
	}
	b.log.Info("packaging code", zap.String("pattern", m.Pattern))
	err := source.Copy(ctx, b.fs, b.sh, b.log, opts.Root, stage, source.CopyOptions{
		Include:   opts.Include,
		Exclude:   exclude,
		IgnoreGit: opts.IgnoreGit,
		Rename:    rename,
	})
	if err != nil {
		return "", err
	}
	archive := path.Join(contextDir, "dist", pkg+".tar.gz")
	if err := source.CompressDir(b.fs, b.log, stage, archive); err != nil {
		return "", err
	}

	// the Dockerfile installs the lock file from the context root
	if m.Lock != "" {
		lock, err := afero.ReadFile(b.fs, path.Join(opts.Root, m.Lock))
		if err != nil {
			return "", err
		}
		canonical := path.Join(contextDir, dependencies.CanonicalLockName(m.Conda))
		if err := afero.WriteFile(b.fs, canonical, lock, 0644); err != nil {
			return "", err
		}
	}

	image := fmt.Sprintf("%s:%s-%s", pkg, spec.PackageVersion(), model.SanitizePattern(m.Pattern))
	b.log.Info("building image", zap.String("image", image))
	if err := b.sh.Run(ctx, "docker", "build", contextDir, "--tag", image); err != nil {
		return "", fmt.Errorf("building image %s: %w", image, err)
	}
	return image, nil
}

// smokeTest checks the pipeline loads inside the image before anything
// is pushed or submitted.
func (b *Builder) smokeTest(ctx context.Context, image string, opts Options) error {
	b.log.Info("testing image", zap.String("image", image))
	err := b.sh.Run(ctx, "docker", "run", image,
		opts.Runner, "status", "--entry-point", opts.entryPoint())
	if err != nil {
		return fmt.Errorf("error while testing your docker image: %w\n"+
			"Use \"docker run -it %s /bin/bash\" to start an interactive session to debug your image",
			err, image)
	}
	return nil
}

func (b *Builder) push(ctx context.Context, local string, spec *model.Spec, pattern string, opts Options) (string, error) {
	remote := opts.Repository
	// a repository without an explicit tag gets the local version tag
	if !strings.Contains(remote, ":") {
		remote = fmt.Sprintf("%s:%s-%s", remote, spec.PackageVersion(), model.SanitizePattern(pattern))
	}
	b.log.Info("tagging", zap.String("image", remote))
	if err := b.sh.Run(ctx, "docker", "tag", local, remote); err != nil {
		return "", err
	}
	b.log.Info("pushing image", zap.String("image", remote))
	if err := b.sh.Run(ctx, "docker", "push", remote); err != nil {
		return "", err
	}
	return remote, nil
}

// entryPoint returns the pipeline definition path passed to the
// orchestrator inside containers.
func (o *Options) entryPoint() string {
	if o.EntryPoint != "" {
		return o.EntryPoint
	}
	return model.DefaultSpecFile
}
